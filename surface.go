package prismvk

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"
)

// SurfaceFormatPriority is the preferred colour format order, best first.
var SurfaceFormatPriority = []vk.SurfaceFormat{
	{Format: vk.FormatR8g8b8a8Srgb, ColorSpace: vk.ColorSpaceSrgbNonlinear},
	{Format: vk.FormatB8g8r8a8Srgb, ColorSpace: vk.ColorSpaceSrgbNonlinear},
	{Format: vk.FormatR8g8b8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear},
	{Format: vk.FormatB8g8r8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear},
}

// DepthFormatCandidates is tried in order for depth-stencil attachment support.
var DepthFormatCandidates = []vk.Format{
	vk.FormatD32Sfloat,
	vk.FormatD32SfloatS8Uint,
	vk.FormatD24UnormS8Uint,
}

// extentUndefined is the currentExtent width a surface reports when the swapchain decides.
const extentUndefined = ^uint32(0)

//vk structs hold unexported C refs, so compare and copy by field
func sameSurfaceFormat(a, b vk.SurfaceFormat) bool {
	return a.Format == b.Format && a.ColorSpace == b.ColorSpace
}

func cleanSurfaceFormat(f vk.SurfaceFormat) vk.SurfaceFormat {
	return vk.SurfaceFormat{Format: f.Format, ColorSpace: f.ColorSpace}
}

// ChooseFormat picks the first priority entry the device offers.
// A lone UNDEFINED entry means any format works and priority[0] is used.
// When nothing matches the device's first format is returned and matched is false.
func ChooseFormat(available, priority []vk.SurfaceFormat) (format vk.SurfaceFormat, matched bool) {
	if len(available) == 0 {
		return vk.SurfaceFormat{}, false
	}
	for i := range available {
		available[i].Deref()
	}
	if len(available) == 1 && available[0].Format == vk.FormatUndefined && len(priority) > 0 {
		return cleanSurfaceFormat(priority[0]), true
	}
	for _, want := range priority {
		for _, have := range available {
			if sameSurfaceFormat(want, have) {
				return cleanSurfaceFormat(have), true
			}
		}
	}
	return cleanSurfaceFormat(available[0]), false
}

// ChoosePresentMode returns requested when offered, otherwise FIFO which every device supports.
func ChoosePresentMode(requested vk.PresentMode, available []vk.PresentMode) (mode vk.PresentMode, matched bool) {
	for _, m := range available {
		if m == requested {
			return requested, true
		}
	}
	return vk.PresentModeFifo, requested == vk.PresentModeFifo
}

// ChooseExtent resolves the swapchain size. When the surface leaves the size to the
// swapchain the window extent is used as is. A degenerate window extent falls back to
// the surface's current extent and reports degraded.
func ChooseExtent(caps vk.SurfaceCapabilities, window vk.Extent2D) (extent vk.Extent2D, degraded bool) {
	caps.Deref()
	caps.CurrentExtent.Deref()
	caps.MinImageExtent.Deref()
	caps.MaxImageExtent.Deref()

	current := vk.Extent2D{Width: caps.CurrentExtent.Width, Height: caps.CurrentExtent.Height}
	if current.Width == extentUndefined {
		return vk.Extent2D{Width: window.Width, Height: window.Height}, false
	}
	if window.Width < 1 || window.Height < 1 {
		return current, true
	}
	return vk.Extent2D{
		Width:  clampUint32(window.Width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
		Height: clampUint32(window.Height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
	}, false
}

// ChooseImageCount asks for one image more than the minimum, capped by a nonzero maximum.
func ChooseImageCount(caps vk.SurfaceCapabilities) uint32 {
	caps.Deref()
	count := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && count > caps.MaxImageCount {
		count = caps.MaxImageCount
	}
	return count
}

// ChoosePreTransform prefers identity and otherwise keeps the current transform.
func ChoosePreTransform(caps vk.SurfaceCapabilities) vk.SurfaceTransformFlagBits {
	caps.Deref()
	if vk.SurfaceTransformFlagBits(caps.SupportedTransforms)&vk.SurfaceTransformIdentityBit != 0 {
		return vk.SurfaceTransformIdentityBit
	}
	return caps.CurrentTransform
}

// ChooseCompositeAlpha returns the first supported mode, one of them is always set.
func ChooseCompositeAlpha(caps vk.SurfaceCapabilities) vk.CompositeAlphaFlagBits {
	caps.Deref()
	for _, flag := range []vk.CompositeAlphaFlagBits{
		vk.CompositeAlphaOpaqueBit,
		vk.CompositeAlphaPreMultipliedBit,
		vk.CompositeAlphaPostMultipliedBit,
		vk.CompositeAlphaInheritBit,
	} {
		if caps.SupportedCompositeAlpha&vk.CompositeAlphaFlags(flag) != 0 {
			return flag
		}
	}
	return vk.CompositeAlphaOpaqueBit
}

// ChooseDepthFormat returns the first candidate the device can use as a depth attachment.
func ChooseDepthFormat(candidates []vk.Format, supported func(vk.Format) bool) (vk.Format, bool) {
	for _, f := range candidates {
		if supported(f) {
			return f, true
		}
	}
	return vk.FormatUndefined, false
}

// SurfaceExtent is the size the surface wants right now, using window when the
// surface leaves it to the swapchain.
func SurfaceExtent(caps vk.SurfaceCapabilities, window vk.Extent2D) vk.Extent2D {
	caps.Deref()
	caps.CurrentExtent.Deref()
	if caps.CurrentExtent.Width == extentUndefined {
		return vk.Extent2D{Width: window.Width, Height: window.Height}
	}
	return vk.Extent2D{Width: caps.CurrentExtent.Width, Height: caps.CurrentExtent.Height}
}

func clampUint32(v, lo, hi uint32) uint32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func extentString(e vk.Extent2D) string {
	return fmt.Sprintf("%dx%d", e.Width, e.Height)
}
