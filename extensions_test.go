package prismvk

import (
	"testing"

	"github.com/stretchr/testify/require"
	vk "github.com/vulkan-go/vulkan"
)

func TestMissingNames(t *testing.T) {
	available := []string{"VK_KHR_surface\x00", "VK_KHR_xcb_surface"}
	require.Empty(t, missingNames([]string{"VK_KHR_surface", "VK_KHR_xcb_surface\x00"}, available))
	require.Equal(t,
		[]string{"VK_EXT_debug_report", "VK_KHR_swapchain"},
		missingNames([]string{"VK_EXT_debug_report", "VK_KHR_surface", "VK_KHR_swapchain"}, available))
	require.Empty(t, missingNames(nil, available))
}

func TestRequireNames(t *testing.T) {
	require.NoError(t, requireNames("device extensions", []string{SwapchainExtension}, []string{SwapchainExtension}))

	err := requireNames("device extensions", []string{SwapchainExtension, "VK_KHR_maintenance1"}, nil)
	require.EqualError(t, err, "missing required device extensions: VK_KHR_swapchain, VK_KHR_maintenance1")
}

func TestMergeNames(t *testing.T) {
	merged := mergeNames(
		[]string{"VK_KHR_swapchain\x00", "VK_KHR_maintenance1"},
		[]string{SwapchainExtension, ""},
		nil,
	)
	require.Equal(t, []string{"VK_KHR_maintenance1", "VK_KHR_swapchain"}, merged)
}

func TestSafeStrings(t *testing.T) {
	require.Equal(t, "main\x00", safeString("main"))
	require.Equal(t, "main\x00", safeString("main\x00"))
	require.Equal(t, "\x00", safeString(""))

	in := []string{"a", "b\x00"}
	out := safeStrings(in)
	require.Equal(t, []string{"a\x00", "b\x00"}, out)
	require.Equal(t, "a", in[0], "input is not modified")
}

func TestSliceUint32(t *testing.T) {
	require.Nil(t, sliceUint32([]byte{1, 2, 3}))
	require.Len(t, sliceUint32(make([]byte, 10)), 2)
}

func TestEnumerate(t *testing.T) {
	available := []uint32{7, 8, 9}
	var calls int
	list, err := enumerate(func(count *uint32, list []uint32) vk.Result {
		calls++
		if list == nil {
			*count = uint32(len(available))
			return vk.Success
		}
		*count = uint32(copy(list, available))
		return vk.Success
	})
	require.NoError(t, err)
	require.Equal(t, available, list)
	require.Equal(t, 2, calls)

	t.Run("empty list skips the fill", func(t *testing.T) {
		calls = 0
		list, err := enumerate(func(count *uint32, list []uint32) vk.Result {
			calls++
			*count = 0
			return vk.Success
		})
		require.NoError(t, err)
		require.Empty(t, list)
		require.Equal(t, 1, calls)
	})

	t.Run("incomplete fill keeps what was written", func(t *testing.T) {
		list, err := enumerate(func(count *uint32, list []uint32) vk.Result {
			if list == nil {
				*count = 3
				return vk.Success
			}
			list[0], list[1] = 1, 2
			*count = 2
			return vk.Incomplete
		})
		require.NoError(t, err)
		require.Equal(t, []uint32{1, 2}, list)
	})

	t.Run("count failure", func(t *testing.T) {
		_, err := enumerate(func(count *uint32, list []vk.PresentMode) vk.Result {
			return vk.ErrorSurfaceLost
		})
		require.Error(t, err)
	})

	t.Run("fill failure", func(t *testing.T) {
		_, err := enumerate(func(count *uint32, list []vk.PresentMode) vk.Result {
			if list == nil {
				*count = 1
				return vk.Success
			}
			return vk.ErrorOutOfHostMemory
		})
		require.Error(t, err)
	})
}

func TestExtensionNames(t *testing.T) {
	var surface, swapchain vk.ExtensionProperties
	copy(surface.ExtensionName[:], "VK_KHR_surface")
	copy(swapchain.ExtensionName[:], SwapchainExtension)
	require.Equal(t,
		[]string{"VK_KHR_surface", SwapchainExtension},
		extensionNames([]vk.ExtensionProperties{surface, swapchain}))
	require.Empty(t, extensionNames(nil))
}
