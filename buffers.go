package prismvk

import (
	"unsafe"

	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

// FindRequiredMemoryType returns the first memory type allowed by typeBits that has
// every flag in required.
func FindRequiredMemoryType(props vk.PhysicalDeviceMemoryProperties,
	typeBits uint32, required vk.MemoryPropertyFlagBits) (uint32, bool) {

	count := props.MemoryTypeCount
	if count > vk.MaxMemoryTypes {
		count = vk.MaxMemoryTypes
	}
	want := vk.MemoryPropertyFlags(required)
	for i := uint32(0); i < count; i++ {
		if typeBits&(1<<i) == 0 {
			continue
		}
		props.MemoryTypes[i].Deref()
		if props.MemoryTypes[i].PropertyFlags&want == want {
			return i, true
		}
	}
	return 0, false
}

// Buffer is a VkBuffer with its dedicated memory allocation.
type Buffer struct {
	// device for destroy purposes.
	device vk.Device
	Buffer vk.Buffer
	Memory vk.DeviceMemory
	Size   vk.DeviceSize
	mapped unsafe.Pointer
}

// CreateBuffer allocates a buffer of size bytes in memory with the given properties.
func (d *DeviceContext) CreateBuffer(size vk.DeviceSize, usage vk.BufferUsageFlagBits,
	memFlags vk.MemoryPropertyFlagBits) (_ *Buffer, err error) {

	b := &Buffer{device: d.device, Size: size}
	defer func() {
		if err != nil {
			b.Destroy()
		}
	}()

	ret := vk.CreateBuffer(d.device, &vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Usage:       vk.BufferUsageFlags(usage),
		Size:        size,
		SharingMode: vk.SharingModeExclusive,
	}, nil, &b.Buffer)
	if isError(ret) {
		return nil, errors.Wrap(NewError(ret), "create buffer")
	}

	// Ask device about its memory requirements.
	var reqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.device, b.Buffer, &reqs)
	reqs.Deref()

	memType, ok := FindRequiredMemoryType(d.memoryProperties, reqs.MemoryTypeBits, memFlags)
	if !ok {
		return nil, errors.Errorf("no memory type with flags %#x for buffer", memFlags)
	}
	ret = vk.AllocateMemory(d.device, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  reqs.Size,
		MemoryTypeIndex: memType,
	}, nil, &b.Memory)
	if isError(ret) {
		return nil, errors.Wrap(NewError(ret), "allocate buffer memory")
	}
	if ret = vk.BindBufferMemory(d.device, b.Buffer, b.Memory, 0); isError(ret) {
		return nil, errors.Wrap(NewError(ret), "bind buffer memory")
	}
	return b, nil
}

// Map keeps the buffer memory mapped until Destroy. Only valid for host-visible memory.
func (b *Buffer) Map() error {
	if b.mapped != nil {
		return nil
	}
	if ret := vk.MapMemory(b.device, b.Memory, 0, b.Size, 0, &b.mapped); isError(ret) {
		b.mapped = nil
		return errors.Wrap(NewError(ret), "map buffer memory")
	}
	return nil
}

// Write copies data to the start of a host-visible buffer.
func (b *Buffer) Write(data []byte) error {
	if vk.DeviceSize(len(data)) > b.Size {
		return errors.Errorf("write of %d bytes overflows %d byte buffer", len(data), b.Size)
	}
	if len(data) == 0 {
		return nil
	}
	if b.mapped != nil {
		vk.Memcopy(b.mapped, data)
		return nil
	}

	var pData unsafe.Pointer
	if ret := vk.MapMemory(b.device, b.Memory, 0, vk.DeviceSize(len(data)), 0, &pData); isError(ret) {
		return errors.Wrapf(NewError(ret), "map %d bytes", len(data))
	}
	n := vk.Memcopy(pData, data)
	vk.UnmapMemory(b.device, b.Memory)
	if n != len(data) {
		return errors.Errorf("copied %d of %d bytes", n, len(data))
	}
	return nil
}

func (b *Buffer) Destroy() {
	if b == nil || b.device == nil {
		return
	}
	if b.mapped != nil {
		vk.UnmapMemory(b.device, b.Memory)
		b.mapped = nil
	}
	if b.Buffer != vk.NullBuffer {
		vk.DestroyBuffer(b.device, b.Buffer, nil)
	}
	if b.Memory != vk.NullDeviceMemory {
		vk.FreeMemory(b.device, b.Memory, nil)
	}
	b.device = nil
}

// UploadBuffer copies data into a new device-local buffer through a host-visible staging
// buffer. The copy runs on the graphics queue and is complete on return.
func (d *DeviceContext) UploadBuffer(pool *CommandPool, data []byte, usage vk.BufferUsageFlagBits) (*Buffer, error) {
	if len(data) == 0 {
		return nil, errors.New("upload of empty buffer")
	}
	size := vk.DeviceSize(len(data))
	staging, err := d.CreateBuffer(size, vk.BufferUsageTransferSrcBit,
		vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit)
	if err != nil {
		return nil, errors.Wrap(err, "staging buffer")
	}
	defer staging.Destroy()
	if err := staging.Write(data); err != nil {
		return nil, errors.Wrap(err, "fill staging buffer")
	}

	dst, err := d.CreateBuffer(size, usage|vk.BufferUsageTransferDstBit, vk.MemoryPropertyDeviceLocalBit)
	if err != nil {
		return nil, err
	}
	err = pool.RunOnce(d.graphicsQueue, func(cmd vk.CommandBuffer) {
		vk.CmdCopyBuffer(cmd, staging.Buffer, dst.Buffer, 1, []vk.BufferCopy{{Size: size}})
	})
	if err != nil {
		dst.Destroy()
		return nil, errors.Wrap(err, "copy staging buffer")
	}
	return dst, nil
}
