package prismvk

import (
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

// CreateImageView creates a 2D view over the first mip and layer of image.
func (d *DeviceContext) CreateImageView(image vk.Image, format vk.Format, aspect vk.ImageAspectFlagBits) (vk.ImageView, error) {
	var view vk.ImageView
	ret := vk.CreateImageView(d.device, &vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleR,
			G: vk.ComponentSwizzleG,
			B: vk.ComponentSwizzleB,
			A: vk.ComponentSwizzleA,
		},
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(aspect),
			LevelCount: 1,
			LayerCount: 1,
		},
	}, nil, &view)
	if isError(ret) {
		return vk.NullImageView, NewError(ret)
	}
	return view, nil
}

func (d *DeviceContext) DestroyImageView(view vk.ImageView) {
	if view != vk.NullImageView {
		vk.DestroyImageView(d.device, view, nil)
	}
}

//createImage makes a single-mip 2D image with optimal tiling backed by its own
//device-local allocation. On failure nothing is left allocated.
func (d *DeviceContext) createImage(extent vk.Extent2D, format vk.Format, usage vk.ImageUsageFlagBits) (image vk.Image, memory vk.DeviceMemory, err error) {
	defer func() {
		if err != nil {
			d.destroyImage(image, memory)
			image, memory = vk.NullImage, vk.NullDeviceMemory
		}
	}()

	ret := vk.CreateImage(d.device, &vk.ImageCreateInfo{
		SType:         vk.StructureTypeImageCreateInfo,
		ImageType:     vk.ImageType2d,
		Format:        format,
		Extent:        vk.Extent3D{Width: extent.Width, Height: extent.Height, Depth: 1},
		MipLevels:     1,
		ArrayLayers:   1,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         vk.ImageUsageFlags(usage),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}, nil, &image)
	if isError(ret) {
		return image, memory, errors.Wrap(NewError(ret), "create image")
	}

	var reqs vk.MemoryRequirements
	vk.GetImageMemoryRequirements(d.device, image, &reqs)
	reqs.Deref()

	memType, ok := FindRequiredMemoryType(d.memoryProperties, reqs.MemoryTypeBits,
		vk.MemoryPropertyDeviceLocalBit)
	if !ok {
		return image, memory, errors.New("no device-local memory type for image")
	}
	ret = vk.AllocateMemory(d.device, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  reqs.Size,
		MemoryTypeIndex: memType,
	}, nil, &memory)
	if isError(ret) {
		return image, memory, errors.Wrap(NewError(ret), "allocate image memory")
	}
	if ret = vk.BindImageMemory(d.device, image, memory, 0); isError(ret) {
		return image, memory, errors.Wrap(NewError(ret), "bind image memory")
	}
	return image, memory, nil
}

func (d *DeviceContext) destroyImage(image vk.Image, memory vk.DeviceMemory) {
	if image != vk.NullImage {
		vk.DestroyImage(d.device, image, nil)
	}
	if memory != vk.NullDeviceMemory {
		vk.FreeMemory(d.device, memory, nil)
	}
}

// CreateDepthImage allocates a device-local depth attachment of the given size.
func (d *DeviceContext) CreateDepthImage(extent vk.Extent2D, format vk.Format) (depth DepthImage, err error) {
	depth.Image, depth.Memory, err = d.createImage(extent, format, vk.ImageUsageDepthStencilAttachmentBit)
	if err != nil {
		return DepthImage{}, errors.Wrap(err, "depth image")
	}
	depth.View, err = d.CreateImageView(depth.Image, format, vk.ImageAspectDepthBit)
	if err != nil {
		d.destroyImage(depth.Image, depth.Memory)
		return DepthImage{}, errors.Wrap(err, "depth image view")
	}
	return depth, nil
}

func (d *DeviceContext) DestroyDepthImage(depth DepthImage) {
	d.DestroyImageView(depth.View)
	d.destroyImage(depth.Image, depth.Memory)
}
