package prismvk

import (
	"github.com/pkg/errors"
)

// MaxFramesInFlight is how many frames the CPU may record ahead of the GPU.
const MaxFramesInFlight = 2

type frameSlot struct {
	imageAvailable Semaphore
	renderFinished Semaphore
	inFlight       Fence
}

// FrameSync holds the per-slot semaphores and fences plus the image→fence table.
// It outlives swapchain recreation: a replacement swapchain takes it over and rebinds it.
type FrameSync struct {
	driver         Driver
	slots          [MaxFramesInFlight]frameSlot
	imagesInFlight []Fence
	current        int
}

// NewFrameSync creates MaxFramesInFlight slots with signalled fences.
func NewFrameSync(driver Driver, imageCount int) (_ *FrameSync, err error) {
	sync := &FrameSync{
		driver:         driver,
		imagesInFlight: make([]Fence, imageCount),
	}
	defer func() {
		if err != nil {
			sync.Destroy()
		}
	}()

	for i := range sync.slots {
		slot := &sync.slots[i]
		if slot.imageAvailable, err = driver.CreateSemaphore(); err != nil {
			return nil, errors.Wrapf(err, "frame slot %d image-available semaphore", i)
		}
		if slot.renderFinished, err = driver.CreateSemaphore(); err != nil {
			return nil, errors.Wrapf(err, "frame slot %d render-finished semaphore", i)
		}
		if slot.inFlight, err = driver.CreateFence(true); err != nil {
			return nil, errors.Wrapf(err, "frame slot %d in-flight fence", i)
		}
	}
	return sync, nil
}

// Current is the active frame slot, always in [0, MaxFramesInFlight).
func (f *FrameSync) Current() int {
	return f.current
}

// ImageFence returns the fence stamped for a swapchain image, or nil.
func (f *FrameSync) ImageFence(imageIndex uint32) Fence {
	if int(imageIndex) >= len(f.imagesInFlight) {
		return nil
	}
	return f.imagesInFlight[imageIndex]
}

func (f *FrameSync) slot() *frameSlot {
	return &f.slots[f.current]
}

func (f *FrameSync) stamp(imageIndex uint32, fence Fence) {
	if int(imageIndex) < len(f.imagesInFlight) {
		f.imagesInFlight[imageIndex] = fence
	}
}

func (f *FrameSync) advance() {
	f.current = (f.current + 1) % MaxFramesInFlight
}

// Rebind prepares the slots for a new swapchain. Must be called after a device idle wait.
//
// The image table is resized and cleared. Image-available semaphores are recycled since a
// suboptimal acquire can leave one signalled with no waiter.
func (f *FrameSync) Rebind(imageCount int) error {
	f.imagesInFlight = make([]Fence, imageCount)
	for i := range f.slots {
		slot := &f.slots[i]
		sem, err := f.driver.CreateSemaphore()
		if err != nil {
			return errors.Wrapf(err, "recycle frame slot %d image-available semaphore", i)
		}
		if slot.imageAvailable != nil {
			slot.imageAvailable.Destroy()
		}
		slot.imageAvailable = sem
	}
	return nil
}

// restoreSlot replaces the current slot's fence and image-available semaphore after
// a failed submission left them in an unknown state. Every image still stamped with
// the old fence is cleared, since that fence is destroyed here.
func (f *FrameSync) restoreSlot() error {
	slot := f.slot()
	fence, err := f.driver.CreateFence(true)
	if err != nil {
		return errors.Wrap(err, "restore in-flight fence")
	}
	sem, err := f.driver.CreateSemaphore()
	if err != nil {
		fence.Destroy()
		return errors.Wrap(err, "restore image-available semaphore")
	}
	for i, stamped := range f.imagesInFlight {
		if stamped != nil && stamped == slot.inFlight {
			f.imagesInFlight[i] = nil
		}
	}
	if slot.inFlight != nil {
		slot.inFlight.Destroy()
	}
	if slot.imageAvailable != nil {
		slot.imageAvailable.Destroy()
	}
	slot.inFlight = fence
	slot.imageAvailable = sem
	return nil
}

// Destroy releases every primitive. Callers wait for the device to go idle first.
func (f *FrameSync) Destroy() {
	for i := range f.slots {
		slot := &f.slots[i]
		if slot.imageAvailable != nil {
			slot.imageAvailable.Destroy()
		}
		if slot.renderFinished != nil {
			slot.renderFinished.Destroy()
		}
		if slot.inFlight != nil {
			slot.inFlight.Destroy()
		}
		*slot = frameSlot{}
	}
	f.imagesInFlight = nil
}
