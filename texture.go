package prismvk

import (
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// TextureFormat is the only texel format textures are uploaded as.
const TextureFormat = vk.FormatR8g8b8a8Srgb

// MaxTextureSize caps the longest edge of a decoded texture.
const MaxTextureSize = 4096

// Texture is a sampled 2D image in shader-read layout with its own sampler.
type Texture struct {
	// device for destroy purposes.
	device *DeviceContext

	Image   vk.Image
	Memory  vk.DeviceMemory
	View    vk.ImageView
	Sampler vk.Sampler
	Width   uint32
	Height  uint32
}

// DecodeTexture decodes a PNG, JPEG, BMP or WebP image into RGBA texels.
// Images with an edge longer than maxSize are scaled down, keeping the aspect ratio.
func DecodeTexture(r io.Reader, maxSize int) (*image.RGBA, error) {
	src, format, err := image.Decode(r)
	if err != nil {
		return nil, errors.Wrap(err, "decode texture")
	}
	bounds := src.Bounds()
	if bounds.Empty() {
		return nil, errors.Errorf("empty %s texture", format)
	}

	w, h := bounds.Dx(), bounds.Dy()
	if maxSize > 0 && (w > maxSize || h > maxSize) {
		if w >= h {
			h = max(1, h*maxSize/w)
			w = maxSize
		} else {
			w = max(1, w*maxSize/h)
			h = maxSize
		}
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Src, nil)
		return dst, nil
	}

	if rgba, ok := src.(*image.RGBA); ok && bounds.Min == (image.Point{}) {
		return rgba, nil
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.Draw(dst, dst.Bounds(), src, bounds.Min, xdraw.Src)
	return dst, nil
}

// SolidImage is a single texel of colour c.
func SolidImage(c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	img.SetRGBA(0, 0, c)
	return img
}

//tightPixels returns the texels with no row padding, as a buffer-to-image copy expects
func tightPixels(img *image.RGBA) []byte {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	row := w * 4
	if img.Stride == row && len(img.Pix) == row*h {
		return img.Pix
	}
	out := make([]byte, 0, row*h)
	for y := 0; y < h; y++ {
		start := y * img.Stride
		out = append(out, img.Pix[start:start+row]...)
	}
	return out
}

// layoutBarrier is the access and stage masks of one supported layout transition.
type layoutBarrier struct {
	srcAccess vk.AccessFlags
	dstAccess vk.AccessFlags
	srcStage  vk.PipelineStageFlags
	dstStage  vk.PipelineStageFlags
}

func layoutTransition(oldLayout, newLayout vk.ImageLayout) (layoutBarrier, error) {
	switch {
	case oldLayout == vk.ImageLayoutUndefined && newLayout == vk.ImageLayoutTransferDstOptimal:
		return layoutBarrier{
			dstAccess: vk.AccessFlags(vk.AccessTransferWriteBit),
			srcStage:  vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit),
			dstStage:  vk.PipelineStageFlags(vk.PipelineStageTransferBit),
		}, nil
	case oldLayout == vk.ImageLayoutTransferDstOptimal && newLayout == vk.ImageLayoutShaderReadOnlyOptimal:
		return layoutBarrier{
			srcAccess: vk.AccessFlags(vk.AccessTransferWriteBit),
			dstAccess: vk.AccessFlags(vk.AccessShaderReadBit),
			srcStage:  vk.PipelineStageFlags(vk.PipelineStageTransferBit),
			dstStage:  vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit),
		}, nil
	}
	return layoutBarrier{}, errors.Errorf("unsupported layout transition %d -> %d", oldLayout, newLayout)
}

func recordTransition(cmd vk.CommandBuffer, image vk.Image, b layoutBarrier, oldLayout, newLayout vk.ImageLayout) {
	vk.CmdPipelineBarrier(cmd, b.srcStage, b.dstStage, 0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       b.srcAccess,
		DstAccessMask:       b.dstAccess,
		OldLayout:           oldLayout,
		NewLayout:           newLayout,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               image,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LevelCount: 1,
			LayerCount: 1,
		},
	}})
}

// NewTexture uploads img through a staging buffer into a device-local image and
// leaves it ready for fragment shader reads. The upload is complete on return.
func NewTexture(ctx *DeviceContext, pool *CommandPool, img *image.RGBA) (_ *Texture, err error) {
	if img == nil || img.Rect.Empty() {
		return nil, errors.New("texture from empty image")
	}
	toTransfer, err := layoutTransition(vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal)
	if err != nil {
		return nil, err
	}
	toShader, err := layoutTransition(vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutShaderReadOnlyOptimal)
	if err != nil {
		return nil, err
	}

	t := &Texture{
		device: ctx,
		Width:  uint32(img.Rect.Dx()),
		Height: uint32(img.Rect.Dy()),
	}
	defer func() {
		if err != nil {
			t.Destroy()
		}
	}()

	pixels := tightPixels(img)
	staging, err := ctx.CreateBuffer(vk.DeviceSize(len(pixels)), vk.BufferUsageTransferSrcBit,
		vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit)
	if err != nil {
		return nil, errors.Wrap(err, "texture staging buffer")
	}
	defer staging.Destroy()
	if err = staging.Write(pixels); err != nil {
		return nil, errors.Wrap(err, "fill texture staging buffer")
	}

	extent := vk.Extent2D{Width: t.Width, Height: t.Height}
	t.Image, t.Memory, err = ctx.createImage(extent, TextureFormat,
		vk.ImageUsageTransferDstBit|vk.ImageUsageSampledBit)
	if err != nil {
		return nil, errors.Wrap(err, "texture image")
	}

	err = pool.RunOnce(ctx.GraphicsQueue(), func(cmd vk.CommandBuffer) {
		recordTransition(cmd, t.Image, toTransfer, vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal)
		vk.CmdCopyBufferToImage(cmd, staging.Buffer, t.Image, vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{{
			ImageSubresource: vk.ImageSubresourceLayers{
				AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
				LayerCount: 1,
			},
			ImageExtent: vk.Extent3D{Width: t.Width, Height: t.Height, Depth: 1},
		}})
		recordTransition(cmd, t.Image, toShader, vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutShaderReadOnlyOptimal)
	})
	if err != nil {
		return nil, errors.Wrap(err, "upload texture")
	}

	if t.View, err = ctx.CreateImageView(t.Image, TextureFormat, vk.ImageAspectColorBit); err != nil {
		return nil, errors.Wrap(err, "texture view")
	}

	ret := vk.CreateSampler(ctx.Device(), &vk.SamplerCreateInfo{
		SType:         vk.StructureTypeSamplerCreateInfo,
		MagFilter:     vk.FilterLinear,
		MinFilter:     vk.FilterLinear,
		MipmapMode:    vk.SamplerMipmapModeLinear,
		AddressModeU:  vk.SamplerAddressModeRepeat,
		AddressModeV:  vk.SamplerAddressModeRepeat,
		AddressModeW:  vk.SamplerAddressModeRepeat,
		MaxAnisotropy: 1,
		CompareOp:     vk.CompareOpAlways,
		BorderColor:   vk.BorderColorIntOpaqueBlack,
	}, nil, &t.Sampler)
	if isError(ret) {
		return nil, errors.Wrap(NewError(ret), "create sampler")
	}
	return t, nil
}

// LoadTextureFile decodes path and uploads it with NewTexture.
func LoadTextureFile(ctx *DeviceContext, pool *CommandPool, path string) (*Texture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open texture")
	}
	defer f.Close()

	img, err := DecodeTexture(f, MaxTextureSize)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	return NewTexture(ctx, pool, img)
}

// DescriptorInfo is the combined image sampler write for this texture.
func (t *Texture) DescriptorInfo() vk.DescriptorImageInfo {
	return vk.DescriptorImageInfo{
		Sampler:     t.Sampler,
		ImageView:   t.View,
		ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
	}
}

// Destroy releases the sampler, view, image and memory. The device must be done with them.
func (t *Texture) Destroy() {
	if t == nil || t.device == nil {
		return
	}
	if t.Sampler != vk.NullSampler {
		vk.DestroySampler(t.device.Device(), t.Sampler, nil)
		t.Sampler = vk.NullSampler
	}
	t.device.DestroyImageView(t.View)
	t.device.destroyImage(t.Image, t.Memory)
	t.View, t.Image, t.Memory = vk.NullImageView, vk.NullImage, vk.NullDeviceMemory
	t.device = nil
}
