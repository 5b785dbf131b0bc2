package prismvk

import (
	vk "github.com/vulkan-go/vulkan"
)

// QueueFamilyUnresolved marks a queue family index that was not found.
const QueueFamilyUnresolved int32 = -1

// QueueFamilyIndices names the graphics and present queue families of a physical device.
type QueueFamilyIndices struct {
	Graphics int32
	Present  int32
}

//UnresolvedQueueFamilies has neither family found
func UnresolvedQueueFamilies() QueueFamilyIndices {
	return QueueFamilyIndices{Graphics: QueueFamilyUnresolved, Present: QueueFamilyUnresolved}
}

// IsValid is true when both families were resolved.
func (q QueueFamilyIndices) IsValid() bool {
	return q.Graphics != QueueFamilyUnresolved && q.Present != QueueFamilyUnresolved
}

// Separate is true when presentation happens on a different family than rendering.
func (q QueueFamilyIndices) Separate() bool {
	return q.Graphics != q.Present
}

// Unique returns the distinct family indices, graphics first.
func (q QueueFamilyIndices) Unique() []uint32 {
	if !q.Separate() {
		return []uint32{uint32(q.Graphics)}
	}
	return []uint32{uint32(q.Graphics), uint32(q.Present)}
}

// SharingMode picks how swapchain images are shared between the two families.
// Concurrent sharing lists both families; exclusive sharing lists none.
func (q QueueFamilyIndices) SharingMode() (vk.SharingMode, []uint32) {
	if !q.Separate() {
		return vk.SharingModeExclusive, nil
	}
	return vk.SharingModeConcurrent, q.Unique()
}

//findQueueFamilies walks the families in order, recording each graphics family
//(queueCount > 0) and each present-capable family, and stops at the first index
//where both are resolved
func findQueueFamilies(props []vk.QueueFamilyProperties, presentSupport func(uint32) bool) QueueFamilyIndices {
	indices := UnresolvedQueueFamilies()
	for i := range props {
		family := props[i]
		family.Deref()
		index := uint32(i)
		if family.QueueCount > 0 && family.QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) != 0 {
			indices.Graphics = int32(index)
		}
		if presentSupport(index) {
			indices.Present = int32(index)
		}
		if indices.IsValid() {
			break
		}
	}
	return indices
}

// GetQueueFamilyIndices scans the queue families of gpu against surface.
func GetQueueFamilyIndices(gpu vk.PhysicalDevice, surface vk.Surface) QueueFamilyIndices {
	props, _ := enumerate(func(count *uint32, list []vk.QueueFamilyProperties) vk.Result {
		vk.GetPhysicalDeviceQueueFamilyProperties(gpu, count, list)
		return vk.Success
	})
	return findQueueFamilies(props, func(index uint32) bool {
		var supported vk.Bool32
		ret := vk.GetPhysicalDeviceSurfaceSupport(gpu, index, surface, &supported)
		return ret == vk.Success && supported.B()
	})
}

//queueCreateInfos requests one queue at full priority per distinct family
func queueCreateInfos(q QueueFamilyIndices) []vk.DeviceQueueCreateInfo {
	families := q.Unique()
	infos := make([]vk.DeviceQueueCreateInfo, len(families))
	for i, family := range families {
		infos[i] = vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: family,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}
	}
	return infos
}
