package prismvk

import (
	"testing"

	"github.com/stretchr/testify/require"
	vk "github.com/vulkan-go/vulkan"
)

func surfaceFormat(f vk.Format) vk.SurfaceFormat {
	return vk.SurfaceFormat{Format: f, ColorSpace: vk.ColorSpaceSrgbNonlinear}
}

func TestChooseFormat(t *testing.T) {
	cases := []struct {
		name      string
		available []vk.SurfaceFormat
		want      vk.Format
		matched   bool
	}{
		{"exact priority entry", []vk.SurfaceFormat{surfaceFormat(vk.FormatR8g8b8a8Srgb)}, vk.FormatR8g8b8a8Srgb, true},
		{"priority order wins over device order",
			[]vk.SurfaceFormat{surfaceFormat(vk.FormatB8g8r8a8Unorm), surfaceFormat(vk.FormatB8g8r8a8Srgb)},
			vk.FormatB8g8r8a8Srgb, true},
		{"lone undefined means anything goes", []vk.SurfaceFormat{surfaceFormat(vk.FormatUndefined)}, vk.FormatR8g8b8a8Srgb, true},
		{"falls back to first offered",
			[]vk.SurfaceFormat{surfaceFormat(vk.FormatA2b10g10r10UnormPack32), surfaceFormat(vk.FormatR16g16b16a16Sfloat)},
			vk.FormatA2b10g10r10UnormPack32, false},
		{"colour space must match too",
			[]vk.SurfaceFormat{{Format: vk.FormatR8g8b8a8Srgb, ColorSpace: vk.ColorSpace(1000104002)}},
			vk.FormatR8g8b8a8Srgb, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, matched := ChooseFormat(tc.available, SurfaceFormatPriority)
			require.Equal(t, tc.want, got.Format)
			require.Equal(t, tc.matched, matched)
		})
	}

	_, matched := ChooseFormat(nil, SurfaceFormatPriority)
	require.False(t, matched)
}

func TestChoosePresentMode(t *testing.T) {
	mode, ok := ChoosePresentMode(vk.PresentModeMailbox, []vk.PresentMode{vk.PresentModeFifo, vk.PresentModeMailbox})
	require.Equal(t, vk.PresentModeMailbox, mode)
	require.True(t, ok)

	mode, ok = ChoosePresentMode(vk.PresentModeMailbox, []vk.PresentMode{vk.PresentModeFifo})
	require.Equal(t, vk.PresentModeFifo, mode)
	require.False(t, ok)

	mode, ok = ChoosePresentMode(vk.PresentModeImmediate, []vk.PresentMode{vk.PresentModeImmediate})
	require.Equal(t, vk.PresentModeImmediate, mode)
	require.True(t, ok)

	mode, ok = ChoosePresentMode(vk.PresentModeFifo, nil)
	require.Equal(t, vk.PresentModeFifo, mode)
	require.True(t, ok)
}

func capsWithExtent(current, min, max vk.Extent2D) vk.SurfaceCapabilities {
	return vk.SurfaceCapabilities{
		CurrentExtent:  current,
		MinImageExtent: min,
		MaxImageExtent: max,
	}
}

func TestChooseExtent(t *testing.T) {
	min := vk.Extent2D{Width: 100, Height: 100}
	max := vk.Extent2D{Width: 2000, Height: 1000}
	undefined := vk.Extent2D{Width: extentUndefined, Height: extentUndefined}
	current := vk.Extent2D{Width: 800, Height: 600}

	got, degraded := ChooseExtent(capsWithExtent(undefined, min, max), vk.Extent2D{Width: 5000, Height: 50})
	require.Equal(t, vk.Extent2D{Width: 5000, Height: 50}, got, "undefined surface takes the window size as is")
	require.False(t, degraded)

	got, degraded = ChooseExtent(capsWithExtent(current, min, max), vk.Extent2D{Width: 5000, Height: 50})
	require.Equal(t, vk.Extent2D{Width: 2000, Height: 100}, got)
	require.False(t, degraded)

	got, degraded = ChooseExtent(capsWithExtent(current, min, max), vk.Extent2D{Width: 1024, Height: 768})
	require.Equal(t, vk.Extent2D{Width: 1024, Height: 768}, got)
	require.False(t, degraded)

	got, degraded = ChooseExtent(capsWithExtent(current, min, max), vk.Extent2D{Width: 0, Height: 768})
	require.Equal(t, current, got)
	require.True(t, degraded)
}

func TestChooseImageCount(t *testing.T) {
	require.Equal(t, uint32(3), ChooseImageCount(vk.SurfaceCapabilities{MinImageCount: 2}))
	require.Equal(t, uint32(3), ChooseImageCount(vk.SurfaceCapabilities{MinImageCount: 2, MaxImageCount: 8}))
	require.Equal(t, uint32(2), ChooseImageCount(vk.SurfaceCapabilities{MinImageCount: 2, MaxImageCount: 2}))
	require.Equal(t, uint32(1), ChooseImageCount(vk.SurfaceCapabilities{MinImageCount: 0, MaxImageCount: 0}))
}

func TestChoosePreTransform(t *testing.T) {
	caps := vk.SurfaceCapabilities{
		SupportedTransforms: vk.SurfaceTransformFlags(vk.SurfaceTransformIdentityBit | vk.SurfaceTransformRotate90Bit),
		CurrentTransform:    vk.SurfaceTransformRotate90Bit,
	}
	require.Equal(t, vk.SurfaceTransformIdentityBit, ChoosePreTransform(caps))

	caps.SupportedTransforms = vk.SurfaceTransformFlags(vk.SurfaceTransformRotate90Bit)
	require.Equal(t, vk.SurfaceTransformRotate90Bit, ChoosePreTransform(caps))
}

func TestChooseCompositeAlpha(t *testing.T) {
	caps := vk.SurfaceCapabilities{
		SupportedCompositeAlpha: vk.CompositeAlphaFlags(vk.CompositeAlphaInheritBit | vk.CompositeAlphaPreMultipliedBit),
	}
	require.Equal(t, vk.CompositeAlphaPreMultipliedBit, ChooseCompositeAlpha(caps))

	caps.SupportedCompositeAlpha = vk.CompositeAlphaFlags(vk.CompositeAlphaOpaqueBit | vk.CompositeAlphaInheritBit)
	require.Equal(t, vk.CompositeAlphaOpaqueBit, ChooseCompositeAlpha(caps))
}

func TestChooseDepthFormat(t *testing.T) {
	format, ok := ChooseDepthFormat(DepthFormatCandidates, func(f vk.Format) bool {
		return f == vk.FormatD24UnormS8Uint || f == vk.FormatD32SfloatS8Uint
	})
	require.True(t, ok)
	require.Equal(t, vk.FormatD32SfloatS8Uint, format)

	format, ok = ChooseDepthFormat(DepthFormatCandidates, func(vk.Format) bool { return false })
	require.False(t, ok)
	require.Equal(t, vk.FormatUndefined, format)
}

func TestSurfaceExtent(t *testing.T) {
	window := vk.Extent2D{Width: 640, Height: 480}
	undefined := vk.Extent2D{Width: extentUndefined, Height: extentUndefined}
	require.Equal(t, window, SurfaceExtent(vk.SurfaceCapabilities{CurrentExtent: undefined}, window))

	current := vk.Extent2D{Width: 1920, Height: 1080}
	require.Equal(t, current, SurfaceExtent(vk.SurfaceCapabilities{CurrentExtent: current}, window))
	require.Equal(t, "1920x1080", extentString(current))
}
