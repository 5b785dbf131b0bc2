package prismvk

import (
	"sort"
	"strings"
	"unsafe"

	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

// SwapchainExtension is always appended to the requested device extensions.
const SwapchainExtension = "VK_KHR_swapchain"

// DebugReportExtension is enabled alongside validation layers.
const DebugReportExtension = "VK_EXT_debug_report"

//enumerate runs the count-then-fill query pair Vulkan uses for every list.
//Incomplete on the fill means the list grew in between; what was written is kept
func enumerate[T any](query func(count *uint32, list []T) vk.Result) ([]T, error) {
	var count uint32
	if ret := query(&count, nil); isError(ret) {
		return nil, NewError(ret)
	}
	if count == 0 {
		return nil, nil
	}
	list := make([]T, count)
	if ret := query(&count, list); isError(ret) && ret != vk.Incomplete {
		return nil, NewError(ret)
	}
	if int(count) < len(list) {
		list = list[:count]
	}
	return list, nil
}

func extensionNames(list []vk.ExtensionProperties) []string {
	names := make([]string, 0, len(list))
	for i := range list {
		list[i].Deref()
		names = append(names, vk.ToString(list[i].ExtensionName[:]))
	}
	return names
}

// InstanceExtensions gets a list of instance extensions available on the platform.
func InstanceExtensions() ([]string, error) {
	list, err := enumerate(func(count *uint32, list []vk.ExtensionProperties) vk.Result {
		return vk.EnumerateInstanceExtensionProperties("", count, list)
	})
	if err != nil {
		return nil, errors.Wrap(err, "instance extensions")
	}
	return extensionNames(list), nil
}

// DeviceExtensions gets a list of extensions available on the provided physical device.
func DeviceExtensions(gpu vk.PhysicalDevice) ([]string, error) {
	list, err := enumerate(func(count *uint32, list []vk.ExtensionProperties) vk.Result {
		return vk.EnumerateDeviceExtensionProperties(gpu, "", count, list)
	})
	if err != nil {
		return nil, errors.Wrap(err, "device extensions")
	}
	return extensionNames(list), nil
}

// ValidationLayers gets a list of validation layers available on the platform.
func ValidationLayers() ([]string, error) {
	list, err := enumerate(vk.EnumerateInstanceLayerProperties)
	if err != nil {
		return nil, errors.Wrap(err, "validation layers")
	}
	names := make([]string, 0, len(list))
	for i := range list {
		list[i].Deref()
		names = append(names, vk.ToString(list[i].LayerName[:]))
	}
	return names, nil
}

//missingNames returns every wanted name absent from available, in the order wanted lists them
func missingNames(wanted, available []string) []string {
	have := make(map[string]struct{}, len(available))
	for _, name := range available {
		have[strings.TrimRight(name, "\x00")] = struct{}{}
	}
	var missing []string
	for _, name := range wanted {
		if _, ok := have[strings.TrimRight(name, "\x00")]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

//requireNames fails with an error naming every missing entry
func requireNames(kind string, wanted, available []string) error {
	if missing := missingNames(wanted, available); len(missing) > 0 {
		return errors.Errorf("missing required %s: %s", kind, strings.Join(missing, ", "))
	}
	return nil
}

//mergeNames unions lists and removes duplicates, keeping the result sorted
func mergeNames(lists ...[]string) []string {
	set := make(map[string]struct{})
	for _, list := range lists {
		for _, name := range list {
			if name = strings.TrimRight(name, "\x00"); name != "" {
				set[name] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

const endChar = '\x00'

func safeString(s string) string {
	if len(s) == 0 || s[len(s)-1] != endChar {
		return s + string(endChar)
	}
	return s
}

func safeStrings(list []string) []string {
	out := make([]string, len(list))
	for i := range list {
		out[i] = safeString(list[i])
	}
	return out
}

//Vulkan expects SPIR-V as 32-bit words
func sliceUint32(data []byte) []uint32 {
	if len(data) < 4 {
		return nil
	}
	return unsafe.Slice((*uint32)(unsafe.Pointer(&data[0])), len(data)/4)
}
