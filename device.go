package prismvk

import (
	"log/slog"

	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

// DeviceContext owns the instance, surface, physical and logical device and the
// graphics and present queues. It is the Vulkan implementation of Driver.
type DeviceContext struct {
	log    *slog.Logger
	window Window

	instance      vk.Instance
	debugCallback vk.DebugReportCallback
	layers        []string
	surface       vk.Surface

	gpu              vk.PhysicalDevice
	gpuProperties    vk.PhysicalDeviceProperties
	memoryProperties vk.PhysicalDeviceMemoryProperties
	families         QueueFamilyIndices

	device        vk.Device
	graphicsQueue vk.Queue
	presentQueue  vk.Queue
}

// NewDeviceContext brings up Vulkan for window: instance (plus validation when
// configured), surface, physical device and logical device.
func NewDeviceContext(window Window, cfg Config, log *slog.Logger) (_ *DeviceContext, err error) {
	d := &DeviceContext{
		log:      ensureLogger(log),
		window:   window,
		families: UnresolvedQueueFamilies(),
	}
	defer func() {
		if err != nil {
			d.Destroy()
		}
	}()

	d.instance, d.layers, err = createInstance(window, cfg, d.log)
	if err != nil {
		return nil, err
	}
	if cfg.Validation.Enabled && len(d.layers) > 0 {
		if d.debugCallback, err = createDebugCallback(d.instance, d.log); err != nil {
			return nil, err
		}
	}
	if d.surface, err = window.CreateSurface(d.instance); err != nil {
		return nil, errors.Wrap(err, "create window surface")
	}
	if d.surface == vk.NullSurface {
		return nil, errors.New("window returned a null surface")
	}
	if err = d.FindPhysicalDevice(); err != nil {
		return nil, err
	}
	if err = d.CreateLogicalDevice(mergeNames(cfg.DeviceExtensions, []string{SwapchainExtension})); err != nil {
		return nil, err
	}
	return d, nil
}

type gpuCandidate struct {
	name       string
	deviceType vk.PhysicalDeviceType
	families   func() QueueFamilyIndices
}

//selectPhysicalDevice picks the first discrete GPU with usable queues, else device 0
func selectPhysicalDevice(candidates []gpuCandidate, log *slog.Logger) (int, QueueFamilyIndices, error) {
	if len(candidates) == 0 {
		return -1, UnresolvedQueueFamilies(), errors.New("no Vulkan capable GPU found")
	}
	for i, c := range candidates {
		if c.deviceType != vk.PhysicalDeviceTypeDiscreteGpu {
			continue
		}
		if families := c.families(); families.IsValid() {
			return i, families, nil
		}
	}
	log.Warn("no discrete GPU with graphics and present queues, falling back to device 0",
		"device", candidates[0].name)
	families := candidates[0].families()
	if !families.IsValid() {
		return -1, families, errors.Errorf("device %q lacks graphics or present queue families", candidates[0].name)
	}
	return 0, families, nil
}

// FindPhysicalDevice selects the GPU and resolves its queue families.
func (d *DeviceContext) FindPhysicalDevice() (err error) {
	defer checkErr(&err)

	gpus, err := enumerate(func(count *uint32, list []vk.PhysicalDevice) vk.Result {
		return vk.EnumeratePhysicalDevices(d.instance, count, list)
	})
	orPanic(err)

	candidates := make([]gpuCandidate, len(gpus))
	for i := range gpus {
		gpu := gpus[i]
		var props vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(gpu, &props)
		props.Deref()
		candidates[i] = gpuCandidate{
			name:       vk.ToString(props.DeviceName[:]),
			deviceType: props.DeviceType,
			families: func() QueueFamilyIndices {
				return GetQueueFamilyIndices(gpu, d.surface)
			},
		}
	}

	index, families, err := selectPhysicalDevice(candidates, d.log)
	if err != nil {
		return err
	}
	d.gpu = gpus[index]
	d.families = families
	vk.GetPhysicalDeviceProperties(d.gpu, &d.gpuProperties)
	d.gpuProperties.Deref()
	d.gpuProperties.Limits.Deref()
	vk.GetPhysicalDeviceMemoryProperties(d.gpu, &d.memoryProperties)
	d.memoryProperties.Deref()

	d.log.Info("selected GPU", "name", candidates[index].name,
		"graphicsFamily", families.Graphics, "presentFamily", families.Present)
	return nil
}

// CreateLogicalDevice creates the device with one queue per distinct family.
// Every name in extensions must be supported.
func (d *DeviceContext) CreateLogicalDevice(extensions []string) (err error) {
	defer checkErr(&err)

	available, err := DeviceExtensions(d.gpu)
	orPanic(err)
	if err := requireNames("device extensions", extensions, available); err != nil {
		return err
	}

	queueInfos := queueCreateInfos(d.families)
	var device vk.Device
	ret := vk.CreateDevice(d.gpu, &vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: safeStrings(extensions),
		EnabledLayerCount:       uint32(len(d.layers)),
		PpEnabledLayerNames:     safeStrings(d.layers),
	}, nil, &device)
	if isError(ret) {
		return errors.Wrap(NewError(ret), "create logical device")
	}
	d.device = device

	vk.GetDeviceQueue(device, uint32(d.families.Graphics), 0, &d.graphicsQueue)
	if d.families.Separate() {
		vk.GetDeviceQueue(device, uint32(d.families.Present), 0, &d.presentQueue)
	} else {
		d.presentQueue = d.graphicsQueue
	}
	d.log.Debug("logical device created", "extensions", extensions)
	return nil
}

func (d *DeviceContext) Instance() vk.Instance                   { return d.instance }
func (d *DeviceContext) Surface() vk.Surface                     { return d.surface }
func (d *DeviceContext) PhysicalDevice() vk.PhysicalDevice       { return d.gpu }
func (d *DeviceContext) Device() vk.Device                       { return d.device }
func (d *DeviceContext) GraphicsQueue() vk.Queue                 { return d.graphicsQueue }
func (d *DeviceContext) PresentQueue() vk.Queue                  { return d.presentQueue }
func (d *DeviceContext) QueueFamilies() QueueFamilyIndices       { return d.families }
func (d *DeviceContext) Properties() vk.PhysicalDeviceProperties { return d.gpuProperties }
func (d *DeviceContext) MemoryProperties() vk.PhysicalDeviceMemoryProperties {
	return d.memoryProperties
}

// SurfaceSupport queries capabilities, formats and present modes of the surface.
func (d *DeviceContext) SurfaceSupport() (support SurfaceSupport, err error) {
	var caps vk.SurfaceCapabilities
	if ret := vk.GetPhysicalDeviceSurfaceCapabilities(d.gpu, d.surface, &caps); isError(ret) {
		return support, errors.Wrap(NewError(ret), "surface capabilities")
	}
	caps.Deref()
	caps.CurrentExtent.Deref()
	caps.MinImageExtent.Deref()
	caps.MaxImageExtent.Deref()
	support.Capabilities = vk.SurfaceCapabilities{
		MinImageCount:           caps.MinImageCount,
		MaxImageCount:           caps.MaxImageCount,
		CurrentExtent:           vk.Extent2D{Width: caps.CurrentExtent.Width, Height: caps.CurrentExtent.Height},
		MinImageExtent:          vk.Extent2D{Width: caps.MinImageExtent.Width, Height: caps.MinImageExtent.Height},
		MaxImageExtent:          vk.Extent2D{Width: caps.MaxImageExtent.Width, Height: caps.MaxImageExtent.Height},
		MaxImageArrayLayers:     caps.MaxImageArrayLayers,
		SupportedTransforms:     caps.SupportedTransforms,
		CurrentTransform:        caps.CurrentTransform,
		SupportedCompositeAlpha: caps.SupportedCompositeAlpha,
		SupportedUsageFlags:     caps.SupportedUsageFlags,
	}

	formats, err := enumerate(func(count *uint32, list []vk.SurfaceFormat) vk.Result {
		return vk.GetPhysicalDeviceSurfaceFormats(d.gpu, d.surface, count, list)
	})
	if err != nil {
		return support, errors.Wrap(err, "surface formats")
	}
	support.Formats = make([]vk.SurfaceFormat, 0, len(formats))
	for i := range formats {
		formats[i].Deref()
		support.Formats = append(support.Formats, cleanSurfaceFormat(formats[i]))
	}

	modes, err := enumerate(func(count *uint32, list []vk.PresentMode) vk.Result {
		return vk.GetPhysicalDeviceSurfacePresentModes(d.gpu, d.surface, count, list)
	})
	if err != nil {
		return support, errors.Wrap(err, "present modes")
	}
	support.PresentModes = modes
	return support, nil
}

// FormatSupportsDepth reports optimal-tiling depth-stencil attachment support.
func (d *DeviceContext) FormatSupportsDepth(format vk.Format) bool {
	var props vk.FormatProperties
	vk.GetPhysicalDeviceFormatProperties(d.gpu, format, &props)
	props.Deref()
	want := vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit)
	return props.OptimalTilingFeatures&want == want
}

// CreateSwapchain creates the native chain, retiring old when given.
func (d *DeviceContext) CreateSwapchain(cfg SwapchainConfig, old PresentChain) (PresentChain, error) {
	sharing, families := d.families.SharingMode()
	var swapchain vk.Swapchain
	ret := vk.CreateSwapchain(d.device, &vk.SwapchainCreateInfo{
		SType:                 vk.StructureTypeSwapchainCreateInfo,
		Surface:               d.surface,
		MinImageCount:         cfg.ImageCount,
		ImageFormat:           cfg.Format.Format,
		ImageColorSpace:       cfg.Format.ColorSpace,
		ImageExtent:           cfg.Extent,
		ImageArrayLayers:      1,
		ImageUsage:            vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		ImageSharingMode:      sharing,
		QueueFamilyIndexCount: uint32(len(families)),
		PQueueFamilyIndices:   families,
		PreTransform:          cfg.PreTransform,
		CompositeAlpha:        cfg.CompositeAlpha,
		PresentMode:           cfg.PresentMode,
		Clipped:               vk.True,
		OldSwapchain:          chainHandle(old),
	}, nil, &swapchain)
	if isError(ret) {
		return nil, NewError(ret)
	}
	return &deviceChain{device: d.device, handle: swapchain}, nil
}

func (d *DeviceContext) CreateFence(signaled bool) (Fence, error) {
	f, err := newDeviceFence(d.device, signaled)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (d *DeviceContext) CreateSemaphore() (Semaphore, error) {
	s, err := newDeviceSemaphore(d.device)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Submit queues cmd on the graphics queue.
func (d *DeviceContext) Submit(cmd vk.CommandBuffer, wait Semaphore, stages vk.PipelineStageFlags, signal Semaphore, fence Fence) vk.Result {
	info := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{cmd},
	}
	if wait != nil {
		info.WaitSemaphoreCount = 1
		info.PWaitSemaphores = []vk.Semaphore{semaphoreHandle(wait)}
		info.PWaitDstStageMask = []vk.PipelineStageFlags{stages}
	}
	if signal != nil {
		info.SignalSemaphoreCount = 1
		info.PSignalSemaphores = []vk.Semaphore{semaphoreHandle(signal)}
	}
	return vk.QueueSubmit(d.graphicsQueue, 1, []vk.SubmitInfo{info}, fenceHandle(fence))
}

// Present queues imageIndex of chain for presentation on the present queue.
func (d *DeviceContext) Present(chain PresentChain, imageIndex uint32, wait Semaphore) vk.Result {
	info := vk.PresentInfo{
		SType:          vk.StructureTypePresentInfo,
		SwapchainCount: 1,
		PSwapchains:    []vk.Swapchain{chainHandle(chain)},
		PImageIndices:  []uint32{imageIndex},
	}
	if wait != nil {
		info.WaitSemaphoreCount = 1
		info.PWaitSemaphores = []vk.Semaphore{semaphoreHandle(wait)}
	}
	return vk.QueuePresent(d.presentQueue, &info)
}

func (d *DeviceContext) WaitIdle() error {
	if d.device == nil {
		return nil
	}
	return NewError(vk.DeviceWaitIdle(d.device))
}

func (d *DeviceContext) GraphicsQueueWaitIdle() error {
	if d.graphicsQueue == nil {
		return nil
	}
	return NewError(vk.QueueWaitIdle(d.graphicsQueue))
}

// Destroy waits for the device and releases surface, device, debug callback and instance.
func (d *DeviceContext) Destroy() {
	if err := d.WaitIdle(); err != nil {
		d.log.Error("wait for device idle", "err", err)
	}
	if d.surface != vk.NullSurface {
		vk.DestroySurface(d.instance, d.surface, nil)
		d.surface = vk.NullSurface
	}
	if d.device != nil {
		vk.DestroyDevice(d.device, nil)
		d.device = nil
		d.graphicsQueue = nil
		d.presentQueue = nil
	}
	if d.debugCallback != vk.NullDebugReportCallback {
		vk.DestroyDebugReportCallback(d.instance, d.debugCallback, nil)
		d.debugCallback = vk.NullDebugReportCallback
	}
	if d.instance != nil {
		vk.DestroyInstance(d.instance, nil)
		d.instance = nil
	}
}

var _ Driver = (*DeviceContext)(nil)
