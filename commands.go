package prismvk

import (
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

// CommandEncoder records draw commands into one command buffer.
type CommandEncoder interface {
	BeginRenderPass(pass vk.RenderPass, fb vk.Framebuffer, extent vk.Extent2D, clear [4]float32)
	EndRenderPass()
	SetViewportAndScissor(extent vk.Extent2D)
	BindPipeline(pipeline vk.Pipeline)
	BindDescriptorSets(layout vk.PipelineLayout, sets ...vk.DescriptorSet)
	PushConstants(layout vk.PipelineLayout, stages vk.ShaderStageFlagBits, offset uint32, data []byte)
	BindVertexBuffers(buffers ...vk.Buffer)
	BindIndexBuffer(buffer vk.Buffer)
	Draw(vertexCount uint32)
	DrawIndexed(indexCount uint32)
}

// commandRecorder is the CommandEncoder over a real command buffer.
type commandRecorder struct {
	cmd vk.CommandBuffer
}

func (r *commandRecorder) BeginRenderPass(pass vk.RenderPass, fb vk.Framebuffer, extent vk.Extent2D, clear [4]float32) {
	clearValues := []vk.ClearValue{
		vk.NewClearValue(clear[:]),
		vk.NewClearDepthStencil(1.0, 0),
	}
	vk.CmdBeginRenderPass(r.cmd, &vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  pass,
		Framebuffer: fb,
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{},
			Extent: extent,
		},
		ClearValueCount: uint32(len(clearValues)),
		PClearValues:    clearValues,
	}, vk.SubpassContentsInline)
}

func (r *commandRecorder) EndRenderPass() {
	vk.CmdEndRenderPass(r.cmd)
}

func (r *commandRecorder) SetViewportAndScissor(extent vk.Extent2D) {
	vk.CmdSetViewport(r.cmd, 0, 1, []vk.Viewport{{
		Width:    float32(extent.Width),
		Height:   float32(extent.Height),
		MinDepth: 0.0,
		MaxDepth: 1.0,
	}})
	vk.CmdSetScissor(r.cmd, 0, 1, []vk.Rect2D{{
		Offset: vk.Offset2D{},
		Extent: extent,
	}})
}

func (r *commandRecorder) BindPipeline(pipeline vk.Pipeline) {
	vk.CmdBindPipeline(r.cmd, vk.PipelineBindPointGraphics, pipeline)
}

func (r *commandRecorder) BindDescriptorSets(layout vk.PipelineLayout, sets ...vk.DescriptorSet) {
	if len(sets) == 0 {
		return
	}
	vk.CmdBindDescriptorSets(r.cmd, vk.PipelineBindPointGraphics, layout, 0,
		uint32(len(sets)), sets, 0, nil)
}

func (r *commandRecorder) PushConstants(layout vk.PipelineLayout, stages vk.ShaderStageFlagBits, offset uint32, data []byte) {
	if len(data) == 0 {
		return
	}
	vk.CmdPushConstants(r.cmd, layout, vk.ShaderStageFlags(stages), offset,
		uint32(len(data)), unsafe.Pointer(&data[0]))
}

func (r *commandRecorder) BindVertexBuffers(buffers ...vk.Buffer) {
	offsets := make([]vk.DeviceSize, len(buffers))
	vk.CmdBindVertexBuffers(r.cmd, 0, uint32(len(buffers)), buffers, offsets)
}

func (r *commandRecorder) BindIndexBuffer(buffer vk.Buffer) {
	vk.CmdBindIndexBuffer(r.cmd, buffer, 0, vk.IndexTypeUint32)
}

func (r *commandRecorder) Draw(vertexCount uint32) {
	vk.CmdDraw(r.cmd, vertexCount, 1, 0, 0)
}

func (r *commandRecorder) DrawIndexed(indexCount uint32) {
	vk.CmdDrawIndexed(r.cmd, indexCount, 1, 0, 0, 0)
}
