package prismvk

import (
	vk "github.com/vulkan-go/vulkan"
)

// Window is the native window the renderer presents into.
type Window interface {
	// GetInstanceExtensions lists the instance extensions the window system needs.
	GetInstanceExtensions() []string
	CreateSurface(instance vk.Instance) (vk.Surface, error)
	// GetExtent is the framebuffer size in pixels.
	GetExtent() vk.Extent2D
}
