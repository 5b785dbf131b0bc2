package prismvk

import (
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

// deviceFence is a Vulkan fence owned by a logical device.
type deviceFence struct {
	device vk.Device
	handle vk.Fence
}

func newDeviceFence(device vk.Device, signaled bool) (*deviceFence, error) {
	info := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if signaled {
		info.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var fence vk.Fence
	if ret := vk.CreateFence(device, &info, nil, &fence); isError(ret) {
		return nil, errors.Wrap(NewError(ret), "create fence")
	}
	return &deviceFence{device: device, handle: fence}, nil
}

func (f *deviceFence) Wait() vk.Result {
	return vk.WaitForFences(f.device, 1, []vk.Fence{f.handle}, vk.True, vk.MaxUint64)
}

func (f *deviceFence) Reset() vk.Result {
	return vk.ResetFences(f.device, 1, []vk.Fence{f.handle})
}

func (f *deviceFence) Destroy() {
	if f.handle != vk.NullFence {
		vk.DestroyFence(f.device, f.handle, nil)
		f.handle = vk.NullFence
	}
}

// deviceSemaphore is a binary Vulkan semaphore owned by a logical device.
type deviceSemaphore struct {
	device vk.Device
	handle vk.Semaphore
}

func newDeviceSemaphore(device vk.Device) (*deviceSemaphore, error) {
	var sem vk.Semaphore
	ret := vk.CreateSemaphore(device, &vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}, nil, &sem)
	if isError(ret) {
		return nil, errors.Wrap(NewError(ret), "create semaphore")
	}
	return &deviceSemaphore{device: device, handle: sem}, nil
}

func (s *deviceSemaphore) Destroy() {
	if s.handle != vk.NullSemaphore {
		vk.DestroySemaphore(s.device, s.handle, nil)
		s.handle = vk.NullSemaphore
	}
}

// deviceChain is a native VkSwapchainKHR.
type deviceChain struct {
	device vk.Device
	handle vk.Swapchain
}

func (c *deviceChain) Images() ([]vk.Image, error) {
	var count uint32
	if ret := vk.GetSwapchainImages(c.device, c.handle, &count, nil); isError(ret) {
		return nil, errors.Wrap(NewError(ret), "count swapchain images")
	}
	images := make([]vk.Image, count)
	if ret := vk.GetSwapchainImages(c.device, c.handle, &count, images); isError(ret) {
		return nil, errors.Wrap(NewError(ret), "get swapchain images")
	}
	return images[:count], nil
}

func (c *deviceChain) AcquireNextImage(sem Semaphore) (uint32, vk.Result) {
	var index uint32
	ret := vk.AcquireNextImage(c.device, c.handle, vk.MaxUint64, semaphoreHandle(sem), vk.NullFence, &index)
	return index, ret
}

func (c *deviceChain) Destroy() {
	if c.handle != vk.NullSwapchain {
		vk.DestroySwapchain(c.device, c.handle, nil)
		c.handle = vk.NullSwapchain
	}
}

func fenceHandle(f Fence) vk.Fence {
	if df, ok := f.(*deviceFence); ok && df != nil {
		return df.handle
	}
	return vk.NullFence
}

func semaphoreHandle(s Semaphore) vk.Semaphore {
	if ds, ok := s.(*deviceSemaphore); ok && ds != nil {
		return ds.handle
	}
	return vk.NullSemaphore
}

func chainHandle(c PresentChain) vk.Swapchain {
	if dc, ok := c.(*deviceChain); ok && dc != nil {
		return dc.handle
	}
	return vk.NullSwapchain
}
