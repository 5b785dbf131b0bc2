package prismvk

import (
	vk "github.com/vulkan-go/vulkan"
)

// Fence is a CPU-waitable GPU completion signal.
type Fence interface {
	// Wait blocks without a timeout until the fence is signalled.
	Wait() vk.Result
	// Reset returns the fence to the unsignalled state.
	Reset() vk.Result
	Destroy()
}

// Semaphore orders GPU work against other GPU work.
type Semaphore interface {
	Destroy()
}

// PresentChain is the native swapchain object.
type PresentChain interface {
	Images() ([]vk.Image, error)
	// AcquireNextImage blocks without a timeout and signals sem once the image is usable.
	AcquireNextImage(sem Semaphore) (uint32, vk.Result)
	Destroy()
}

// SurfaceSupport is what the surface reports for the selected physical device.
type SurfaceSupport struct {
	Capabilities vk.SurfaceCapabilities
	Formats      []vk.SurfaceFormat
	PresentModes []vk.PresentMode
}

// SwapchainConfig carries the negotiated swapchain parameters.
type SwapchainConfig struct {
	Format         vk.SurfaceFormat
	PresentMode    vk.PresentMode
	Extent         vk.Extent2D
	ImageCount     uint32
	PreTransform   vk.SurfaceTransformFlagBits
	CompositeAlpha vk.CompositeAlphaFlagBits
}

// DepthImage is a depth attachment with its backing memory and view.
type DepthImage struct {
	Image  vk.Image
	Memory vk.DeviceMemory
	View   vk.ImageView
}

// Driver is the device surface the swapchain and frame loop are written against.
// DeviceContext implements it on top of Vulkan.
type Driver interface {
	SurfaceSupport() (SurfaceSupport, error)
	QueueFamilies() QueueFamilyIndices
	FormatSupportsDepth(format vk.Format) bool

	CreateSwapchain(cfg SwapchainConfig, old PresentChain) (PresentChain, error)
	CreateImageView(image vk.Image, format vk.Format, aspect vk.ImageAspectFlagBits) (vk.ImageView, error)
	DestroyImageView(view vk.ImageView)
	CreateDepthImage(extent vk.Extent2D, format vk.Format) (DepthImage, error)
	DestroyDepthImage(img DepthImage)
	CreateRenderPass(color, depth vk.Format) (vk.RenderPass, error)
	DestroyRenderPass(pass vk.RenderPass)
	CreateFramebuffer(pass vk.RenderPass, views []vk.ImageView, extent vk.Extent2D) (vk.Framebuffer, error)
	DestroyFramebuffer(fb vk.Framebuffer)

	CreateFence(signaled bool) (Fence, error)
	CreateSemaphore() (Semaphore, error)

	Submit(cmd vk.CommandBuffer, wait Semaphore, stages vk.PipelineStageFlags, signal Semaphore, fence Fence) vk.Result
	Present(chain PresentChain, imageIndex uint32, wait Semaphore) vk.Result

	WaitIdle() error
	GraphicsQueueWaitIdle() error
}
