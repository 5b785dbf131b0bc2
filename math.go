package prismvk

import (
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
)

// vulkanClip flips Y and remaps depth from [-1, 1] to [0, 1].
var vulkanClip = mgl32.Mat4{
	1, 0, 0, 0,
	0, -1, 0, 0,
	0, 0, 0.5, 0,
	0, 0, 0.5, 1,
}

// VulkanProjectionMat converts an OpenGL style projection matrix to Vulkan style.
// Vulkan has a top-left clip space with a [0, 1] depth range instead of [-1, 1].
//
// mgl32 builds projection matrices in GL clip space, so apply a fixup step
// that flips Y and remaps Z.
func VulkanProjectionMat(proj mgl32.Mat4) mgl32.Mat4 {
	return vulkanClip.Mul4(proj)
}

// Transform places an object in the world. Rotation is in radians around X, Y then Z.
type Transform struct {
	Translation mgl32.Vec3
	Rotation    mgl32.Vec3
	Scale       mgl32.Vec3
}

// NewTransform is the identity transform.
func NewTransform() Transform {
	return Transform{Scale: mgl32.Vec3{1, 1, 1}}
}

// Mat4 composes Translate * Rx * Ry * Rz * Scale.
func (t Transform) Mat4() mgl32.Mat4 {
	return mgl32.Translate3D(t.Translation[0], t.Translation[1], t.Translation[2]).
		Mul4(mgl32.HomogRotate3DX(t.Rotation[0])).
		Mul4(mgl32.HomogRotate3DY(t.Rotation[1])).
		Mul4(mgl32.HomogRotate3DZ(t.Rotation[2])).
		Mul4(mgl32.Scale3D(t.Scale[0], t.Scale[1], t.Scale[2]))
}

//matBytes views a column-major matrix as the 64 bytes a shader expects
func matBytes(m *mgl32.Mat4) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(&m[0])), int(unsafe.Sizeof(*m)))
}
