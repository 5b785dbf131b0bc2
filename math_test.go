package prismvk

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/require"
)

func requireMatInDelta(t *testing.T, want, got mgl32.Mat4) {
	t.Helper()
	for c := 0; c < 4; c++ {
		for r := 0; r < 4; r++ {
			require.InDelta(t, want.At(r, c), got.At(r, c), 1e-5, "column %d row %d", c, r)
		}
	}
}

func floatAt(b []byte, i int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
}

func TestVulkanProjectionMat(t *testing.T) {
	out := VulkanProjectionMat(mgl32.Ident4())

	requireMatInDelta(t, mgl32.Mat4{
		1, 0, 0, 0,
		0, -1, 0, 0,
		0, 0, 0.5, 0,
		0, 0, 0.5, 1,
	}, out)
}

func TestVulkanProjectionMapsDepthRange(t *testing.T) {
	cam := NewCamera()
	cam.SetPerspective(float32(math.Pi/2), 1, 1, 10)

	clipDepth := func(z float32) float32 {
		clip := cam.Projection.Mul4x1(mgl32.Vec4{0, 0, z, 1})
		return clip[2] / clip[3]
	}
	require.InDelta(t, 0, clipDepth(-1), 1e-5, "near plane lands on 0")
	require.InDelta(t, 1, clipDepth(-10), 1e-5, "far plane lands on 1")
}

func TestTransformMat4(t *testing.T) {
	requireMatInDelta(t, mgl32.Ident4(), NewTransform().Mat4())

	tr := NewTransform()
	tr.Translation = mgl32.Vec3{1, 2, 3}
	tr.Scale = mgl32.Vec3{2, 2, 2}
	m := tr.Mat4()
	require.InDelta(t, 1, m.At(0, 3), 1e-6)
	require.InDelta(t, 2, m.At(1, 3), 1e-6)
	require.InDelta(t, 3, m.At(2, 3), 1e-6)
	require.InDelta(t, 2, m.At(0, 0), 1e-6)
	require.InDelta(t, 2, m.At(1, 1), 1e-6)

	spin := NewTransform()
	spin.Rotation = mgl32.Vec3{0, 0, float32(math.Pi / 2)}
	m = spin.Mat4()
	// x axis turns onto y
	require.InDelta(t, 0, m.At(0, 0), 1e-5)
	require.InDelta(t, 1, m.At(1, 0), 1e-5)
}

func TestCameraUniformBytes(t *testing.T) {
	cam := NewCamera()
	b := cam.UniformBytes()
	require.Len(t, b, CameraUniformSize)
	require.Equal(t, float32(1), floatAt(b, 0))
	require.Equal(t, float32(0), floatAt(b, 1))
	require.Equal(t, float32(1), floatAt(b, 5))
	require.Equal(t, float32(1), floatAt(b, 15))

	cam.SetOrthographic(-2, 2, -1, 1, 0, 1)
	b = cam.UniformBytes()
	require.InDelta(t, 0.5, floatAt(b, 0), 1e-6)
	require.InDelta(t, -1, floatAt(b, 5), 1e-6, "y flips into Vulkan clip space")
}
