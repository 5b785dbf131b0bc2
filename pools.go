package prismvk

import (
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

// CommandPool hands out primary command buffers for one queue family.
type CommandPool struct {
	device vk.Device
	pool   vk.CommandPool
}

// NewCommandPool creates a pool whose buffers can be reset individually.
func NewCommandPool(device vk.Device, familyIndex uint32) (*CommandPool, error) {
	var pool vk.CommandPool
	ret := vk.CreateCommandPool(device, &vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: familyIndex,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}, nil, &pool)
	if isError(ret) {
		return nil, errors.Wrap(NewError(ret), "create command pool")
	}
	return &CommandPool{device: device, pool: pool}, nil
}

// Allocate returns count primary command buffers.
func (c *CommandPool) Allocate(count int) ([]vk.CommandBuffer, error) {
	buffers := make([]vk.CommandBuffer, count)
	ret := vk.AllocateCommandBuffers(c.device, &vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        c.pool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: uint32(count),
	}, buffers)
	if isError(ret) {
		return nil, errors.Wrap(NewError(ret), "allocate command buffers")
	}
	return buffers, nil
}

// Free returns buffers to the pool.
func (c *CommandPool) Free(buffers []vk.CommandBuffer) {
	if len(buffers) > 0 {
		vk.FreeCommandBuffers(c.device, c.pool, uint32(len(buffers)), buffers)
	}
}

// RunOnce records a one-time command buffer with record, submits it to queue and waits
// for the queue to drain.
func (c *CommandPool) RunOnce(queue vk.Queue, record func(cmd vk.CommandBuffer)) error {
	buffers, err := c.Allocate(1)
	if err != nil {
		return err
	}
	defer c.Free(buffers)
	cmd := buffers[0]

	ret := vk.BeginCommandBuffer(cmd, &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	})
	if isError(ret) {
		return errors.Wrap(NewError(ret), "begin one-time command buffer")
	}
	record(cmd)
	if ret = vk.EndCommandBuffer(cmd); isError(ret) {
		return errors.Wrap(NewError(ret), "end one-time command buffer")
	}

	ret = vk.QueueSubmit(queue, 1, []vk.SubmitInfo{{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    buffers,
	}}, vk.NullFence)
	if isError(ret) {
		return errors.Wrap(NewError(ret), "submit one-time command buffer")
	}
	return NewError(vk.QueueWaitIdle(queue))
}

func (c *CommandPool) Destroy() {
	if c.pool != vk.NullCommandPool {
		vk.DestroyCommandPool(c.device, c.pool, nil)
		c.pool = vk.NullCommandPool
	}
}
