package prismvk

import (
	"log/slog"

	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

// SwapchainImage is a presentable image and its colour view.
type SwapchainImage struct {
	Image vk.Image
	View  vk.ImageView
}

// Swapchain owns the presentable images and every per-image resource built on them,
// plus the FrameSync that drives acquire and submit.
type Swapchain struct {
	driver Driver
	log    *slog.Logger

	chain        PresentChain
	format       vk.SurfaceFormat
	presentMode  vk.PresentMode
	extent       vk.Extent2D
	depthFormat  vk.Format
	images       []SwapchainImage
	depthImages  []DepthImage
	renderPass   vk.RenderPass
	framebuffers []vk.Framebuffer

	sync         *FrameSync
	needsRebuild bool
}

// NewSwapchain negotiates and builds a swapchain for the driver's surface.
//
// When old is non-nil its native chain is passed as the creation hint, its FrameSync
// moves to the new swapchain and old is destroyed. old must not be used afterwards.
func NewSwapchain(driver Driver, windowExtent vk.Extent2D, requested vk.PresentMode, old *Swapchain, log *slog.Logger) (_ *Swapchain, err error) {
	sc := &Swapchain{
		driver: driver,
		log:    ensureLogger(log),
	}
	defer func() {
		if err != nil {
			sc.destroyChainResources()
		}
	}()

	support, err := driver.SurfaceSupport()
	if err != nil {
		return nil, errors.Wrap(err, "query surface support")
	}
	if len(support.Formats) == 0 {
		return nil, errors.New("surface reports no formats")
	}
	if len(support.PresentModes) == 0 {
		return nil, errors.New("surface reports no present modes")
	}

	format, matched := ChooseFormat(support.Formats, SurfaceFormatPriority)
	if !matched {
		sc.log.Warn("no preferred surface format available, using device default",
			"format", format.Format, "colorSpace", format.ColorSpace)
	}
	mode, matched := ChoosePresentMode(requested, support.PresentModes)
	if !matched {
		sc.log.Warn("requested present mode unavailable, falling back to FIFO", "requested", requested)
	}
	extent, degraded := ChooseExtent(support.Capabilities, windowExtent)
	if degraded {
		sc.log.Warn("window extent is degenerate, using surface extent",
			"window", extentString(windowExtent), "surface", extentString(extent))
	}
	depthFormat, ok := ChooseDepthFormat(DepthFormatCandidates, driver.FormatSupportsDepth)
	if !ok {
		return nil, errors.New("no supported depth format")
	}

	sc.format = format
	sc.presentMode = mode
	sc.extent = extent
	sc.depthFormat = depthFormat

	var oldChain PresentChain
	if old != nil {
		oldChain = old.chain
	}
	sc.chain, err = driver.CreateSwapchain(SwapchainConfig{
		Format:         format,
		PresentMode:    mode,
		Extent:         extent,
		ImageCount:     ChooseImageCount(support.Capabilities),
		PreTransform:   ChoosePreTransform(support.Capabilities),
		CompositeAlpha: ChooseCompositeAlpha(support.Capabilities),
	}, oldChain)
	if err != nil {
		return nil, errors.Wrap(err, "create swapchain")
	}

	if err = sc.createImageViews(); err != nil {
		return nil, err
	}
	if err = sc.createDepthImages(); err != nil {
		return nil, err
	}
	if sc.renderPass, err = driver.CreateRenderPass(format.Format, depthFormat); err != nil {
		return nil, errors.Wrap(err, "create render pass")
	}
	if err = sc.createFramebuffers(); err != nil {
		return nil, err
	}

	if old != nil && old.sync != nil {
		if err = old.sync.Rebind(len(sc.images)); err != nil {
			return nil, err
		}
		sc.sync, old.sync = old.sync, nil
	} else if sc.sync, err = NewFrameSync(driver, len(sc.images)); err != nil {
		return nil, err
	}

	if old != nil {
		old.Destroy()
	}

	sc.log.Debug("swapchain created",
		"extent", extentString(extent), "images", len(sc.images),
		"format", format.Format, "presentMode", mode)
	return sc, nil
}

func (sc *Swapchain) createImageViews() error {
	images, err := sc.chain.Images()
	if err != nil {
		return errors.Wrap(err, "swapchain images")
	}
	sc.images = make([]SwapchainImage, 0, len(images))
	for i, img := range images {
		view, err := sc.driver.CreateImageView(img, sc.format.Format, vk.ImageAspectColorBit)
		if err != nil {
			return errors.Wrapf(err, "swapchain image view %d", i)
		}
		sc.images = append(sc.images, SwapchainImage{Image: img, View: view})
	}
	return nil
}

func (sc *Swapchain) createDepthImages() error {
	sc.depthImages = make([]DepthImage, 0, len(sc.images))
	for i := range sc.images {
		depth, err := sc.driver.CreateDepthImage(sc.extent, sc.depthFormat)
		if err != nil {
			return errors.Wrapf(err, "depth image %d", i)
		}
		sc.depthImages = append(sc.depthImages, depth)
	}
	return nil
}

func (sc *Swapchain) createFramebuffers() error {
	sc.framebuffers = make([]vk.Framebuffer, 0, len(sc.images))
	for i := range sc.images {
		views := []vk.ImageView{sc.images[i].View, sc.depthImages[i].View}
		fb, err := sc.driver.CreateFramebuffer(sc.renderPass, views, sc.extent)
		if err != nil {
			return errors.Wrapf(err, "framebuffer %d", i)
		}
		sc.framebuffers = append(sc.framebuffers, fb)
	}
	return nil
}

// AcquireNextImage waits for the current slot, acquires an image and makes sure no
// earlier frame still renders into it. Success and Suboptimal both yield a usable image.
func (sc *Swapchain) AcquireNextImage() (uint32, vk.Result) {
	slot := sc.sync.slot()
	if ret := slot.inFlight.Wait(); ret != vk.Success {
		return 0, ret
	}

	index, ret := sc.chain.AcquireNextImage(slot.imageAvailable)
	if ret != vk.Success && ret != vk.Suboptimal {
		return index, ret
	}

	if prev := sc.sync.ImageFence(index); prev != nil && prev != slot.inFlight {
		if wret := prev.Wait(); wret != vk.Success {
			return index, wret
		}
	}
	sc.sync.stamp(index, slot.inFlight)
	return index, ret
}

// SubmitCommandBuffers submits cmd for imageIndex, presents it and advances the frame slot.
// The present result is returned. When the submission itself fails the slot is restored
// and the submission result is returned instead.
func (sc *Swapchain) SubmitCommandBuffers(cmd vk.CommandBuffer, imageIndex uint32) vk.Result {
	slot := sc.sync.slot()
	if ret := slot.inFlight.Reset(); ret != vk.Success {
		return ret
	}

	stages := vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit | vk.PipelineStageEarlyFragmentTestsBit)
	if ret := sc.driver.Submit(cmd, slot.imageAvailable, stages, slot.renderFinished, slot.inFlight); ret != vk.Success {
		if err := sc.sync.restoreSlot(); err != nil {
			sc.log.Error("restore frame slot", "slot", sc.sync.Current(), "err", err)
		}
		sc.needsRebuild = true
		sc.sync.advance()
		return ret
	}

	ret := sc.driver.Present(sc.chain, imageIndex, slot.renderFinished)
	sc.sync.advance()
	return ret
}

// NeedsRebuild is set after a failed submission left an image acquired but never presented.
func (sc *Swapchain) NeedsRebuild() bool { return sc.needsRebuild }

func (sc *Swapchain) Extent() vk.Extent2D         { return sc.extent }
func (sc *Swapchain) Format() vk.SurfaceFormat    { return sc.format }
func (sc *Swapchain) PresentMode() vk.PresentMode { return sc.presentMode }
func (sc *Swapchain) DepthFormat() vk.Format      { return sc.depthFormat }
func (sc *Swapchain) RenderPass() vk.RenderPass   { return sc.renderPass }
func (sc *Swapchain) ImageCount() int             { return len(sc.images) }
func (sc *Swapchain) Images() []SwapchainImage    { return sc.images }
func (sc *Swapchain) FrameSync() *FrameSync       { return sc.sync }
func (sc *Swapchain) Framebuffer(i uint32) vk.Framebuffer {
	return sc.framebuffers[i]
}

// CurrentFrame is the active frame slot.
func (sc *Swapchain) CurrentFrame() int {
	if sc.sync == nil {
		return 0
	}
	return sc.sync.Current()
}

// AspectRatio is width over height of the swapchain extent.
func (sc *Swapchain) AspectRatio() float32 {
	if sc.extent.Height == 0 {
		return 1
	}
	return float32(sc.extent.Width) / float32(sc.extent.Height)
}

// ExtentEquals reports whether the swapchain already has extent e.
func (sc *Swapchain) ExtentEquals(e vk.Extent2D) bool {
	return sc.extent.Width == e.Width && sc.extent.Height == e.Height
}

//views, framebuffers, render pass, depth, chain
func (sc *Swapchain) destroyChainResources() {
	for _, img := range sc.images {
		sc.driver.DestroyImageView(img.View)
	}
	sc.images = nil
	for _, fb := range sc.framebuffers {
		sc.driver.DestroyFramebuffer(fb)
	}
	sc.framebuffers = nil
	if sc.renderPass != vk.NullRenderPass {
		sc.driver.DestroyRenderPass(sc.renderPass)
		sc.renderPass = vk.NullRenderPass
	}
	for _, depth := range sc.depthImages {
		sc.driver.DestroyDepthImage(depth)
	}
	sc.depthImages = nil
	if sc.chain != nil {
		sc.chain.Destroy()
		sc.chain = nil
	}
}

// Destroy releases the chain resources and the FrameSync it still owns.
func (sc *Swapchain) Destroy() {
	sc.destroyChainResources()
	if sc.sync != nil {
		sc.sync.Destroy()
		sc.sync = nil
	}
}
