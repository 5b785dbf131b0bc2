package prismvk

import (
	"log/slog"

	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

// RendererOptions tunes a Renderer. The zero value asks for mailbox presentation,
// a black clear colour and no logging.
type RendererOptions struct {
	Logger *slog.Logger
	// PresentMode is one of "mailbox", "fifo", "fifo_relaxed" or "immediate".
	PresentMode string
	ClearColor  [4]float32
}

// Renderer drives one frame per Draw call: acquire, record, submit, present, and
// swapchain recreation whenever the surface asks for it.
type Renderer struct {
	log         *slog.Logger
	driver      Driver
	window      Window
	frames      FrameResources
	presentMode vk.PresentMode
	clearColor  [4]float32

	sc           *Swapchain
	forceRebuild bool
}

// NewRenderer builds the first swapchain and the pipeline for its render pass.
func NewRenderer(driver Driver, window Window, frames FrameResources, opts RendererOptions) (*Renderer, error) {
	r := &Renderer{
		log:         ensureLogger(opts.Logger),
		driver:      driver,
		window:      window,
		frames:      frames,
		presentMode: PresentModeByName(opts.PresentMode),
		clearColor:  opts.ClearColor,
	}

	sc, err := NewSwapchain(driver, window.GetExtent(), r.presentMode, nil, r.log)
	if err != nil {
		return nil, errors.Wrap(err, "initial swapchain")
	}
	if err := frames.RebuildPipeline(sc.RenderPass()); err != nil {
		sc.Destroy()
		return nil, errors.Wrap(err, "initial pipeline")
	}
	r.sc = sc
	return r, nil
}

// Swapchain is the current swapchain. It changes across recreations.
func (r *Renderer) Swapchain() *Swapchain {
	return r.sc
}

// Draw renders objects from cam's point of view. Failures are logged and the frame is
// dropped, the next call starts clean.
func (r *Renderer) Draw(objects []Renderable, cam *Camera) {
	if r.forceRebuild || r.sc.NeedsRebuild() {
		if !r.recreate(true) {
			return
		}
	}

	imageIndex, ret := r.sc.AcquireNextImage()
	if isStale(ret) {
		rebuilt := r.RecreateSwapchain()
		if rebuilt || ret == vk.ErrorOutOfDate {
			imageIndex, ret = r.sc.AcquireNextImage()
		}
	}
	if ret == vk.ErrorOutOfDate {
		// same extent but still out of date, rebuild unconditionally next frame
		r.forceRebuild = true
	}
	if ret != vk.Success && ret != vk.Suboptimal {
		if err := r.driver.GraphicsQueueWaitIdle(); err != nil {
			r.log.Error("graphics queue idle after failed acquire", "err", err)
		}
		r.log.Error("failed to acquire swapchain image", "err", NewError(ret))
		return
	}

	slot := r.sc.CurrentFrame()
	cmd, err := r.record(slot, imageIndex, objects, cam)
	if err != nil {
		// the acquired image is never presented, only a rebuild gets it back
		r.log.Error("failed to record frame", "slot", slot, "image", imageIndex, "err", err)
		r.forceRebuild = true
		return
	}

	ret = r.sc.SubmitCommandBuffers(cmd, imageIndex)
	switch {
	case isStale(ret):
		r.RecreateSwapchain()
	case ret != vk.Success:
		r.log.Error("failed to submit or present frame", "image", imageIndex, "err", NewError(ret))
	}
}

func (r *Renderer) record(slot int, imageIndex uint32, objects []Renderable, cam *Camera) (vk.CommandBuffer, error) {
	if cam != nil {
		if err := r.frames.UpdateUniforms(slot, cam.UniformBytes()); err != nil {
			return nil, errors.Wrap(err, "camera uniform")
		}
	}
	enc, err := r.frames.Begin(slot)
	if err != nil {
		return nil, err
	}

	extent := r.sc.Extent()
	layout := r.frames.PipelineLayout()
	enc.BeginRenderPass(r.sc.RenderPass(), r.sc.Framebuffer(imageIndex), extent, r.clearColor)
	enc.SetViewportAndScissor(extent)
	enc.BindPipeline(r.frames.Pipeline())
	enc.BindDescriptorSets(layout, r.frames.DescriptorSet(slot))
	for _, obj := range objects {
		obj.Render(enc, cam, layout)
	}
	enc.EndRenderPass()

	return r.frames.End(slot)
}

// RecreateSwapchain rebuilds the swapchain when the surface size changed. It reports
// whether a new swapchain is in place. A minimised window or an unchanged size is a no-op.
func (r *Renderer) RecreateSwapchain() bool {
	return r.recreate(false)
}

func (r *Renderer) recreate(force bool) bool {
	support, err := r.driver.SurfaceSupport()
	if err != nil {
		r.log.Error("query surface for swapchain rebuild", "err", err)
		return false
	}
	windowExtent := r.window.GetExtent()
	extent := SurfaceExtent(support.Capabilities, windowExtent)
	if extent.Width == 0 || extent.Height == 0 {
		r.log.Debug("surface has zero area, skipping swapchain rebuild")
		return false
	}
	if !force && r.sc.ExtentEquals(extent) {
		return false
	}

	if err := r.driver.WaitIdle(); err != nil {
		Fatal(r.log, errors.Wrap(err, "wait idle before swapchain rebuild"), r.Destroy)
		return false
	}
	sc, err := NewSwapchain(r.driver, windowExtent, r.presentMode, r.sc, r.log)
	if err != nil {
		Fatal(r.log, errors.Wrap(err, "recreate swapchain"), r.Destroy)
		return false
	}
	r.sc = sc
	r.forceRebuild = false
	if err := r.frames.RebuildPipeline(sc.RenderPass()); err != nil {
		Fatal(r.log, errors.Wrap(err, "rebuild pipeline"), r.Destroy)
		return false
	}
	r.log.Debug("swapchain recreated", "extent", extentString(sc.Extent()), "forced", force)
	return true
}

// SetTexture binds tex as the albedo texture once the device has gone idle. nil restores
// the default white texture. The caller keeps ownership of tex.
func (r *Renderer) SetTexture(tex *Texture) error {
	if r.frames == nil {
		return errors.New("renderer destroyed")
	}
	if err := r.driver.WaitIdle(); err != nil {
		return errors.Wrap(err, "wait idle before texture bind")
	}
	r.frames.SetTexture(tex)
	return nil
}

// Destroy waits for the device to go idle and releases the frame resources, then the
// swapchain. Safe to call more than once.
func (r *Renderer) Destroy() {
	if err := r.driver.WaitIdle(); err != nil {
		r.log.Error("wait idle before teardown", "err", err)
	}
	if r.frames != nil {
		r.frames.Destroy()
		r.frames = nil
	}
	if r.sc != nil {
		r.sc.Destroy()
		r.sc = nil
	}
}
