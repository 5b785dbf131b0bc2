package prismvk

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Camera holds a Vulkan clip-space projection and a view matrix.
type Camera struct {
	Projection mgl32.Mat4
	View       mgl32.Mat4
}

// NewCamera starts with identity projection and view.
func NewCamera() *Camera {
	return &Camera{Projection: mgl32.Ident4(), View: mgl32.Ident4()}
}

// SetPerspective sets a perspective projection, fovy in radians.
func (c *Camera) SetPerspective(fovy, aspect, near, far float32) {
	c.Projection = VulkanProjectionMat(mgl32.Perspective(fovy, aspect, near, far))
}

// SetOrthographic sets an orthographic projection over the given volume.
func (c *Camera) SetOrthographic(left, right, bottom, top, near, far float32) {
	c.Projection = VulkanProjectionMat(mgl32.Ortho(left, right, bottom, top, near, far))
}

// LookAt points the camera from eye towards target.
func (c *Camera) LookAt(eye, target, up mgl32.Vec3) {
	c.View = mgl32.LookAtV(eye, target, up)
}

// ViewProjection is Projection * View.
func (c *Camera) ViewProjection() mgl32.Mat4 {
	return c.Projection.Mul4(c.View)
}

// UniformBytes is the per-frame camera uniform: the view-projection matrix.
func (c *Camera) UniformBytes() []byte {
	vp := c.ViewProjection()
	out := make([]byte, CameraUniformSize)
	copy(out, matBytes(&vp))
	return out
}

// CameraUniformSize is the byte size of the camera uniform block.
const CameraUniformSize = 64
