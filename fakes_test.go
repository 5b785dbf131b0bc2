package prismvk

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

// handleArena backs fake Vulkan handles with real Go memory so they are distinct,
// non-null and safe for the garbage collector.
var (
	handleArena [1 << 14]byte
	handleNext  atomic.Int32
)

func fakeHandle() unsafe.Pointer {
	n := handleNext.Add(1)
	return unsafe.Pointer(&handleArena[int(n)%len(handleArena)])
}

// eventLog records driver calls in order.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(format string, args ...interface{}) {
	l.mu.Lock()
	l.events = append(l.events, fmt.Sprintf(format, args...))
	l.mu.Unlock()
}

func (l *eventLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

func (l *eventLog) reset() {
	l.mu.Lock()
	l.events = nil
	l.mu.Unlock()
}

// with returns events starting with prefix.
func (l *eventLog) with(prefix string) []string {
	var out []string
	for _, e := range l.all() {
		if strings.HasPrefix(e, prefix) {
			out = append(out, e)
		}
	}
	return out
}

func (l *eventLog) index(event string) int {
	for i, e := range l.all() {
		if e == event {
			return i
		}
	}
	return -1
}

type fakeFence struct {
	id  int
	log *eventLog

	mu        sync.Mutex
	cond      *sync.Cond
	signaled  bool
	waits     int
	destroyed bool
}

func newFakeFence(id int, signaled bool, log *eventLog) *fakeFence {
	f := &fakeFence{id: id, signaled: signaled, log: log}
	f.cond = sync.NewCond(&f.mu)
	return f
}

func (f *fakeFence) Wait() vk.Result {
	f.mu.Lock()
	for !f.signaled {
		f.cond.Wait()
	}
	f.waits++
	f.mu.Unlock()
	f.log.add("wait fence %d", f.id)
	return vk.Success
}

func (f *fakeFence) Reset() vk.Result {
	f.mu.Lock()
	f.signaled = false
	f.mu.Unlock()
	f.log.add("reset fence %d", f.id)
	return vk.Success
}

func (f *fakeFence) Destroy() {
	f.mu.Lock()
	f.destroyed = true
	f.mu.Unlock()
	f.log.add("destroy fence %d", f.id)
}

func (f *fakeFence) signal() {
	f.log.add("signal fence %d", f.id)
	f.mu.Lock()
	f.signaled = true
	f.cond.Broadcast()
	f.mu.Unlock()
}

func (f *fakeFence) isSignaled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signaled
}

func (f *fakeFence) isDestroyed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.destroyed
}

type fakeSemaphore struct {
	id        int
	log       *eventLog
	destroyed bool
}

func (s *fakeSemaphore) Destroy() {
	s.destroyed = true
	s.log.add("destroy semaphore %d", s.id)
}

type acquireStep struct {
	index uint32
	ret   vk.Result
}

type fakeChain struct {
	id     int
	log    *eventLog
	images []vk.Image
	script []acquireStep
	next   uint32

	acquired  []*fakeSemaphore
	destroyed bool
}

func (c *fakeChain) Images() ([]vk.Image, error) {
	return c.images, nil
}

func (c *fakeChain) AcquireNextImage(sem Semaphore) (uint32, vk.Result) {
	c.acquired = append(c.acquired, sem.(*fakeSemaphore))
	step := acquireStep{index: c.next % uint32(len(c.images)), ret: vk.Success}
	if len(c.script) > 0 {
		step, c.script = c.script[0], c.script[1:]
	} else {
		c.next++
	}
	c.log.add("acquire chain %d image %d", c.id, step.index)
	return step.index, step.ret
}

func (c *fakeChain) Destroy() {
	c.destroyed = true
	c.log.add("destroy chain %d", c.id)
}

type fakeSubmit struct {
	cmd    vk.CommandBuffer
	wait   *fakeSemaphore
	signal *fakeSemaphore
	fence  *fakeFence
}

type fakePresent struct {
	chain      *fakeChain
	imageIndex uint32
	wait       *fakeSemaphore
}

// fakeDriver is an in-memory Driver. Submitted work completes immediately unless
// holdFences is set, in which case tests signal fences themselves.
type fakeDriver struct {
	log *eventLog

	support    SurfaceSupport
	supportErr error
	families   QueueFamilyIndices
	depthOK    func(vk.Format) bool

	// chainImages overrides the image count of created chains when nonzero.
	chainImages    int
	createChainErr error
	nextScript     []acquireStep
	chains         []*fakeChain
	configs        []SwapchainConfig
	olds           []PresentChain

	fences     []*fakeFence
	semaphores []*fakeSemaphore
	holdFences bool

	// semaphoreLimit makes CreateSemaphore fail once reached when nonzero.
	semaphoreLimit int

	submitResults  []vk.Result
	presentResults []vk.Result
	submits        []fakeSubmit
	presents       []fakePresent

	waitIdle      int
	waitIdleErr   error
	graphicsIdle  int
	liveViews     map[vk.ImageView]bool
	liveDepth     int
	livePasses    int
	liveFramebufs int
}

func newFakeDriver(support SurfaceSupport) *fakeDriver {
	return &fakeDriver{
		log:       &eventLog{},
		support:   support,
		families:  QueueFamilyIndices{Graphics: 0, Present: 0},
		depthOK:   func(f vk.Format) bool { return f == vk.FormatD32Sfloat },
		liveViews: map[vk.ImageView]bool{},
	}
}

// testSupport builds surface capabilities with a fixed current extent.
func testSupport(minImages, maxImages uint32, current vk.Extent2D,
	formats []vk.SurfaceFormat, modes []vk.PresentMode) SurfaceSupport {

	return SurfaceSupport{
		Capabilities: vk.SurfaceCapabilities{
			MinImageCount:           minImages,
			MaxImageCount:           maxImages,
			CurrentExtent:           current,
			MinImageExtent:          vk.Extent2D{Width: 1, Height: 1},
			MaxImageExtent:          vk.Extent2D{Width: 4096, Height: 4096},
			MaxImageArrayLayers:     1,
			SupportedTransforms:     vk.SurfaceTransformFlags(vk.SurfaceTransformIdentityBit),
			CurrentTransform:        vk.SurfaceTransformIdentityBit,
			SupportedCompositeAlpha: vk.CompositeAlphaFlags(vk.CompositeAlphaOpaqueBit),
		},
		Formats:      formats,
		PresentModes: modes,
	}
}

func defaultSupport() SurfaceSupport {
	return testSupport(2, 0, vk.Extent2D{Width: 800, Height: 600},
		[]vk.SurfaceFormat{{Format: vk.FormatB8g8r8a8Srgb, ColorSpace: vk.ColorSpaceSrgbNonlinear}},
		[]vk.PresentMode{vk.PresentModeFifo, vk.PresentModeMailbox})
}

func (d *fakeDriver) setExtent(width, height uint32) {
	d.support.Capabilities.CurrentExtent = vk.Extent2D{Width: width, Height: height}
}

func (d *fakeDriver) lastChain() *fakeChain {
	if len(d.chains) == 0 {
		return nil
	}
	return d.chains[len(d.chains)-1]
}

func (d *fakeDriver) SurfaceSupport() (SurfaceSupport, error) {
	if d.supportErr != nil {
		return SurfaceSupport{}, d.supportErr
	}
	s := d.support
	s.Formats = append([]vk.SurfaceFormat(nil), d.support.Formats...)
	s.PresentModes = append([]vk.PresentMode(nil), d.support.PresentModes...)
	return s, nil
}

func (d *fakeDriver) QueueFamilies() QueueFamilyIndices { return d.families }

func (d *fakeDriver) FormatSupportsDepth(format vk.Format) bool {
	return d.depthOK(format)
}

func (d *fakeDriver) CreateSwapchain(cfg SwapchainConfig, old PresentChain) (PresentChain, error) {
	if d.createChainErr != nil {
		return nil, d.createChainErr
	}
	count := int(cfg.ImageCount)
	if d.chainImages > 0 {
		count = d.chainImages
	}
	c := &fakeChain{id: len(d.chains), log: d.log, script: d.nextScript}
	d.nextScript = nil
	for i := 0; i < count; i++ {
		c.images = append(c.images, vk.Image(fakeHandle()))
	}
	d.chains = append(d.chains, c)
	d.configs = append(d.configs, cfg)
	d.olds = append(d.olds, old)
	d.log.add("create chain %d", c.id)
	return c, nil
}

func (d *fakeDriver) CreateImageView(image vk.Image, format vk.Format, aspect vk.ImageAspectFlagBits) (vk.ImageView, error) {
	view := vk.ImageView(fakeHandle())
	d.liveViews[view] = true
	d.log.add("create view")
	return view, nil
}

func (d *fakeDriver) DestroyImageView(view vk.ImageView) {
	delete(d.liveViews, view)
	d.log.add("destroy view")
}

func (d *fakeDriver) CreateDepthImage(extent vk.Extent2D, format vk.Format) (DepthImage, error) {
	d.liveDepth++
	d.log.add("create depth %dx%d", extent.Width, extent.Height)
	return DepthImage{
		Image:  vk.Image(fakeHandle()),
		Memory: vk.DeviceMemory(fakeHandle()),
		View:   vk.ImageView(fakeHandle()),
	}, nil
}

func (d *fakeDriver) DestroyDepthImage(img DepthImage) {
	d.liveDepth--
	d.log.add("destroy depth")
}

func (d *fakeDriver) CreateRenderPass(color, depth vk.Format) (vk.RenderPass, error) {
	d.livePasses++
	d.log.add("create renderpass")
	return vk.RenderPass(fakeHandle()), nil
}

func (d *fakeDriver) DestroyRenderPass(pass vk.RenderPass) {
	d.livePasses--
	d.log.add("destroy renderpass")
}

func (d *fakeDriver) CreateFramebuffer(pass vk.RenderPass, views []vk.ImageView, extent vk.Extent2D) (vk.Framebuffer, error) {
	if len(views) != 2 {
		return vk.NullFramebuffer, errors.Errorf("framebuffer wants colour and depth views, got %d", len(views))
	}
	d.liveFramebufs++
	d.log.add("create framebuffer")
	return vk.Framebuffer(fakeHandle()), nil
}

func (d *fakeDriver) DestroyFramebuffer(fb vk.Framebuffer) {
	d.liveFramebufs--
	d.log.add("destroy framebuffer")
}

func (d *fakeDriver) CreateFence(signaled bool) (Fence, error) {
	f := newFakeFence(len(d.fences), signaled, d.log)
	d.fences = append(d.fences, f)
	d.log.add("create fence %d", f.id)
	return f, nil
}

func (d *fakeDriver) CreateSemaphore() (Semaphore, error) {
	if d.semaphoreLimit > 0 && len(d.semaphores) >= d.semaphoreLimit {
		return nil, errors.New("out of semaphores")
	}
	s := &fakeSemaphore{id: len(d.semaphores), log: d.log}
	d.semaphores = append(d.semaphores, s)
	d.log.add("create semaphore %d", s.id)
	return s, nil
}

func (d *fakeDriver) Submit(cmd vk.CommandBuffer, wait Semaphore, stages vk.PipelineStageFlags, signal Semaphore, fence Fence) vk.Result {
	ret := vk.Success
	if len(d.submitResults) > 0 {
		ret, d.submitResults = d.submitResults[0], d.submitResults[1:]
	}
	f := fence.(*fakeFence)
	d.log.add("submit fence %d", f.id)
	if ret != vk.Success {
		return ret
	}
	d.submits = append(d.submits, fakeSubmit{
		cmd:    cmd,
		wait:   wait.(*fakeSemaphore),
		signal: signal.(*fakeSemaphore),
		fence:  f,
	})
	if !d.holdFences {
		f.signal()
	}
	return vk.Success
}

func (d *fakeDriver) Present(chain PresentChain, imageIndex uint32, wait Semaphore) vk.Result {
	ret := vk.Success
	if len(d.presentResults) > 0 {
		ret, d.presentResults = d.presentResults[0], d.presentResults[1:]
	}
	d.presents = append(d.presents, fakePresent{
		chain:      chain.(*fakeChain),
		imageIndex: imageIndex,
		wait:       wait.(*fakeSemaphore),
	})
	d.log.add("present image %d", imageIndex)
	return ret
}

func (d *fakeDriver) WaitIdle() error {
	d.waitIdle++
	d.log.add("wait idle")
	return d.waitIdleErr
}

func (d *fakeDriver) GraphicsQueueWaitIdle() error {
	d.graphicsIdle++
	d.log.add("graphics idle")
	return nil
}

var _ Driver = (*fakeDriver)(nil)

// fakeWindow reports a settable framebuffer extent.
type fakeWindow struct {
	extent vk.Extent2D
}

func (w *fakeWindow) GetInstanceExtensions() []string { return []string{"VK_KHR_surface"} }
func (w *fakeWindow) CreateSurface(vk.Instance) (vk.Surface, error) {
	return vk.Surface(fakeHandle()), nil
}
func (w *fakeWindow) GetExtent() vk.Extent2D { return w.extent }

// fakeEncoder records the commands issued against it.
type fakeEncoder struct {
	calls     []string
	pushes    [][]byte
	clear     [4]float32
	extent    vk.Extent2D
	drawCount uint32
}

func (e *fakeEncoder) BeginRenderPass(pass vk.RenderPass, fb vk.Framebuffer, extent vk.Extent2D, clear [4]float32) {
	e.calls = append(e.calls, "begin pass")
	e.clear = clear
	e.extent = extent
}
func (e *fakeEncoder) EndRenderPass() { e.calls = append(e.calls, "end pass") }
func (e *fakeEncoder) SetViewportAndScissor(extent vk.Extent2D) {
	e.calls = append(e.calls, "viewport")
}
func (e *fakeEncoder) BindPipeline(vk.Pipeline) { e.calls = append(e.calls, "bind pipeline") }
func (e *fakeEncoder) BindDescriptorSets(layout vk.PipelineLayout, sets ...vk.DescriptorSet) {
	e.calls = append(e.calls, fmt.Sprintf("bind sets %d", len(sets)))
}
func (e *fakeEncoder) PushConstants(layout vk.PipelineLayout, stages vk.ShaderStageFlagBits, offset uint32, data []byte) {
	e.calls = append(e.calls, "push constants")
	e.pushes = append(e.pushes, append([]byte(nil), data...))
}
func (e *fakeEncoder) BindVertexBuffers(buffers ...vk.Buffer) {
	e.calls = append(e.calls, "bind vertices")
}
func (e *fakeEncoder) BindIndexBuffer(vk.Buffer) { e.calls = append(e.calls, "bind indices") }
func (e *fakeEncoder) Draw(n uint32) {
	e.drawCount = n
	e.calls = append(e.calls, "draw")
}
func (e *fakeEncoder) DrawIndexed(n uint32) {
	e.drawCount = n
	e.calls = append(e.calls, "draw indexed")
}

// fakeFrames is FrameResources over fakeEncoders.
type fakeFrames struct {
	encoders  [MaxFramesInFlight]*fakeEncoder
	uniforms  [MaxFramesInFlight][]byte
	pipelines []vk.RenderPass
	textures  []*Texture
	beginErr  error
	destroyed bool
	log       *eventLog
}

func newFakeFrames(log *eventLog) *fakeFrames {
	return &fakeFrames{log: log}
}

func (f *fakeFrames) Begin(slot int) (CommandEncoder, error) {
	if f.beginErr != nil {
		return nil, f.beginErr
	}
	f.encoders[slot] = &fakeEncoder{}
	f.log.add("begin slot %d", slot)
	return f.encoders[slot], nil
}

func (f *fakeFrames) End(slot int) (vk.CommandBuffer, error) {
	f.log.add("end slot %d", slot)
	return vk.CommandBuffer(fakeHandle()), nil
}

func (f *fakeFrames) UpdateUniforms(slot int, data []byte) error {
	f.uniforms[slot] = append([]byte(nil), data...)
	return nil
}

func (f *fakeFrames) SetTexture(tex *Texture) {
	f.textures = append(f.textures, tex)
	f.log.add("set texture")
}

func (f *fakeFrames) DescriptorSet(int) vk.DescriptorSet { return vk.DescriptorSet(fakeHandle()) }
func (f *fakeFrames) PipelineLayout() vk.PipelineLayout  { return vk.NullPipelineLayout }
func (f *fakeFrames) Pipeline() vk.Pipeline              { return vk.NullPipeline }
func (f *fakeFrames) RebuildPipeline(pass vk.RenderPass) error {
	f.pipelines = append(f.pipelines, pass)
	f.log.add("rebuild pipeline")
	return nil
}

func (f *fakeFrames) Destroy() {
	f.destroyed = true
	f.log.add("destroy frames")
}

var _ FrameResources = (*fakeFrames)(nil)
