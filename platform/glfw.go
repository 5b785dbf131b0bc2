// Package platform provides the native window the renderer presents into.
package platform

import (
	"github.com/andewx/prismvk"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

var _ prismvk.Window = (*GLFWWindow)(nil)

// GLFWWindow is a resizable GLFW window without a client API, ready for a Vulkan surface.
// All methods must be called from the main thread.
type GLFWWindow struct {
	window  *glfw.Window
	resized bool
}

// NewGLFWWindow initialises GLFW and the Vulkan loader and opens a window.
func NewGLFWWindow(width, height int, title string) (*GLFWWindow, error) {
	if err := glfw.Init(); err != nil {
		return nil, errors.Wrap(err, "glfw init")
	}
	if !glfw.VulkanSupported() {
		glfw.Terminate()
		return nil, errors.New("glfw reports no Vulkan loader")
	}
	procAddr := glfw.GetVulkanGetInstanceProcAddress()
	if procAddr == nil {
		glfw.Terminate()
		return nil, errors.New("GetInstanceProcAddress is nil")
	}
	vk.SetGetInstanceProcAddr(procAddr)
	if err := vk.Init(); err != nil {
		glfw.Terminate()
		return nil, errors.Wrap(err, "vulkan init")
	}

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.Visible, glfw.True)
	window, err := glfw.CreateWindow(width, height, title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, errors.Wrap(err, "create window")
	}

	w := &GLFWWindow{window: window}
	window.SetFramebufferSizeCallback(func(*glfw.Window, int, int) {
		w.resized = true
	})
	return w, nil
}

func (w *GLFWWindow) GetInstanceExtensions() []string {
	return w.window.GetRequiredInstanceExtensions()
}

func (w *GLFWWindow) CreateSurface(instance vk.Instance) (vk.Surface, error) {
	ptr, err := w.window.CreateWindowSurface(instance, nil)
	if err != nil {
		return vk.NullSurface, errors.Wrap(err, "create window surface")
	}
	return vk.SurfaceFromPointer(ptr), nil
}

// GetExtent is the framebuffer size, which differs from the window size on HiDPI screens.
func (w *GLFWWindow) GetExtent() vk.Extent2D {
	width, height := w.window.GetFramebufferSize()
	return vk.Extent2D{Width: uint32(width), Height: uint32(height)}
}

// Resized reports and clears whether the framebuffer changed size since the last call.
func (w *GLFWWindow) Resized() bool {
	r := w.resized
	w.resized = false
	return r
}

// Minimized reports a zero-area framebuffer.
func (w *GLFWWindow) Minimized() bool {
	width, height := w.window.GetFramebufferSize()
	return width == 0 || height == 0
}

func (w *GLFWWindow) ShouldClose() bool {
	return w.window.ShouldClose()
}

func (w *GLFWWindow) SetTitle(title string) {
	w.window.SetTitle(title)
}

func (w *GLFWWindow) PollEvents() {
	glfw.PollEvents()
}

// WaitEvents blocks until at least one event arrives, used while minimised.
func (w *GLFWWindow) WaitEvents() {
	glfw.WaitEvents()
}

// Destroy closes the window and terminates GLFW.
func (w *GLFWWindow) Destroy() {
	if w.window != nil {
		w.window.Destroy()
		w.window = nil
		glfw.Terminate()
	}
}
