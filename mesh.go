package prismvk

import (
	"sync/atomic"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

// Vertex is the layout consumed by the vertex shader at binding 0.
type Vertex struct {
	Position mgl32.Vec3
	Color    mgl32.Vec3
	Normal   mgl32.Vec3
	UV       mgl32.Vec2
}

// VertexBindingDescription describes one interleaved vertex stream.
func VertexBindingDescription() vk.VertexInputBindingDescription {
	return vk.VertexInputBindingDescription{
		Binding:   0,
		Stride:    uint32(unsafe.Sizeof(Vertex{})),
		InputRate: vk.VertexInputRateVertex,
	}
}

// VertexAttributeDescriptions maps Vertex fields to shader locations 0..3.
func VertexAttributeDescriptions() []vk.VertexInputAttributeDescription {
	var v Vertex
	return []vk.VertexInputAttributeDescription{
		{Location: 0, Binding: 0, Format: vk.FormatR32g32b32Sfloat, Offset: uint32(unsafe.Offsetof(v.Position))},
		{Location: 1, Binding: 0, Format: vk.FormatR32g32b32Sfloat, Offset: uint32(unsafe.Offsetof(v.Color))},
		{Location: 2, Binding: 0, Format: vk.FormatR32g32b32Sfloat, Offset: uint32(unsafe.Offsetof(v.Normal))},
		{Location: 3, Binding: 0, Format: vk.FormatR32g32Sfloat, Offset: uint32(unsafe.Offsetof(v.UV))},
	}
}

func vertexBytes(vertices []Vertex) []byte {
	if len(vertices) == 0 {
		return nil
	}
	size := len(vertices) * int(unsafe.Sizeof(Vertex{}))
	return unsafe.Slice((*byte)(unsafe.Pointer(&vertices[0])), size)
}

func indexBytes(indices []uint32) []byte {
	if len(indices) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&indices[0])), len(indices)*4)
}

// Mesh is vertex and optional index data resident in device-local memory.
type Mesh struct {
	vertices    *Buffer
	indices     *Buffer
	vertexCount uint32
	indexCount  uint32
}

// NewMesh uploads vertices and indices through a staging buffer. indices may be empty.
func NewMesh(ctx *DeviceContext, pool *CommandPool, vertices []Vertex, indices []uint32) (*Mesh, error) {
	if len(vertices) == 0 {
		return nil, errors.New("mesh has no vertices")
	}
	for _, idx := range indices {
		if int(idx) >= len(vertices) {
			return nil, errors.Errorf("index %d out of range for %d vertices", idx, len(vertices))
		}
	}

	vb, err := ctx.UploadBuffer(pool, vertexBytes(vertices), vk.BufferUsageVertexBufferBit)
	if err != nil {
		return nil, errors.Wrap(err, "upload vertices")
	}
	m := &Mesh{vertices: vb, vertexCount: uint32(len(vertices))}
	if len(indices) > 0 {
		ib, err := ctx.UploadBuffer(pool, indexBytes(indices), vk.BufferUsageIndexBufferBit)
		if err != nil {
			vb.Destroy()
			return nil, errors.Wrap(err, "upload indices")
		}
		m.indices = ib
		m.indexCount = uint32(len(indices))
	}
	return m, nil
}

func (m *Mesh) VertexCount() uint32 { return m.vertexCount }
func (m *Mesh) IndexCount() uint32  { return m.indexCount }

// Draw binds the mesh buffers and issues an indexed draw when indices exist.
func (m *Mesh) Draw(enc CommandEncoder) {
	enc.BindVertexBuffers(bufferHandle(m.vertices))
	if m.indexCount > 0 {
		enc.BindIndexBuffer(bufferHandle(m.indices))
		enc.DrawIndexed(m.indexCount)
		return
	}
	enc.Draw(m.vertexCount)
}

func (m *Mesh) Destroy() {
	m.vertices.Destroy()
	m.indices.Destroy()
	m.vertices, m.indices = nil, nil
}

func bufferHandle(b *Buffer) vk.Buffer {
	if b == nil {
		return vk.NullBuffer
	}
	return b.Buffer
}

// PushConstantsSize is the byte size of PushConstants.
const PushConstantsSize = 80

// PushConstants is the per-object block: model matrix then colour.
type PushConstants struct {
	Model mgl32.Mat4
	Color mgl32.Vec4
}

func (p *PushConstants) Bytes() []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(p)), PushConstantsSize)
}

// Renderable records its own draw commands inside the frame's render pass.
type Renderable interface {
	Render(enc CommandEncoder, cam *Camera, layout vk.PipelineLayout)
}

var gameObjectID atomic.Uint64

// GameObject is a mesh placed in the world with a flat colour.
type GameObject struct {
	id        uint64
	Mesh      *Mesh
	Transform Transform
	Color     mgl32.Vec4
}

// NewGameObject gives the object the next id and an identity transform.
func NewGameObject(mesh *Mesh) *GameObject {
	return &GameObject{
		id:        gameObjectID.Add(1),
		Mesh:      mesh,
		Transform: NewTransform(),
		Color:     mgl32.Vec4{1, 1, 1, 1},
	}
}

func (g *GameObject) ID() uint64 { return g.id }

// Render pushes the model matrix and colour, then draws the mesh.
func (g *GameObject) Render(enc CommandEncoder, cam *Camera, layout vk.PipelineLayout) {
	if g.Mesh == nil {
		return
	}
	pc := PushConstants{Model: g.Transform.Mat4(), Color: g.Color}
	enc.PushConstants(layout, vk.ShaderStageVertexBit|vk.ShaderStageFragmentBit, 0, pc.Bytes())
	g.Mesh.Draw(enc)
}
