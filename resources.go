package prismvk

import (
	"image/color"
	"log/slog"

	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

// FrameResources is everything the renderer records with that is owned per frame slot,
// plus the pipeline that has to follow the swapchain's render pass.
type FrameResources interface {
	// Begin resets and opens the slot's command buffer.
	Begin(slot int) (CommandEncoder, error)
	// End closes the slot's command buffer and returns it for submission.
	End(slot int) (vk.CommandBuffer, error)
	// UpdateUniforms writes the slot's camera uniform. The slot fence must have been waited.
	UpdateUniforms(slot int, data []byte) error
	// SetTexture binds tex as the albedo texture of every slot; nil restores the default.
	// No frame may be in flight.
	SetTexture(tex *Texture)
	DescriptorSet(slot int) vk.DescriptorSet
	PipelineLayout() vk.PipelineLayout
	Pipeline() vk.Pipeline
	// RebuildPipeline replaces the pipeline with one compatible with pass.
	RebuildPipeline(pass vk.RenderPass) error
	Destroy()
}

// DeviceFrames implements FrameResources on a DeviceContext.
type DeviceFrames struct {
	log    *slog.Logger
	device vk.Device

	pool     *CommandPool
	commands []vk.CommandBuffer
	uniforms [MaxFramesInFlight]*Buffer

	descriptorPool vk.DescriptorPool
	setLayout      vk.DescriptorSetLayout
	sets           [MaxFramesInFlight]vk.DescriptorSet

	// white is owned and bound whenever no texture is set.
	white   *Texture
	texture *Texture

	stages   []ShaderStage
	builder  *PipelineBuilder
	layout   vk.PipelineLayout
	pipeline vk.Pipeline
}

var _ FrameResources = (*DeviceFrames)(nil)

// NewDeviceFrames allocates the per-slot command buffers, camera uniforms and descriptor
// sets, with a white texel bound as the albedo texture. It takes ownership of stages. The pipeline is built by the first RebuildPipeline.
func NewDeviceFrames(ctx *DeviceContext, stages []ShaderStage, log *slog.Logger) (_ *DeviceFrames, err error) {
	f := &DeviceFrames{
		log:    ensureLogger(log),
		device: ctx.Device(),
		stages: stages,
	}
	defer func() {
		if err != nil {
			f.Destroy()
		}
	}()

	if f.pool, err = NewCommandPool(f.device, uint32(ctx.QueueFamilies().Graphics)); err != nil {
		return nil, err
	}
	if f.commands, err = f.pool.Allocate(MaxFramesInFlight); err != nil {
		return nil, err
	}
	for i := range f.uniforms {
		f.uniforms[i], err = ctx.CreateBuffer(CameraUniformSize, vk.BufferUsageUniformBufferBit,
			vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit)
		if err != nil {
			return nil, errors.Wrapf(err, "camera uniform %d", i)
		}
		if err = f.uniforms[i].Map(); err != nil {
			return nil, err
		}
	}

	if f.white, err = NewTexture(ctx, f.pool, SolidImage(color.RGBA{R: 255, G: 255, B: 255, A: 255})); err != nil {
		return nil, errors.Wrap(err, "default texture")
	}
	f.texture = f.white

	if f.setLayout, err = CreateCameraSetLayout(f.device); err != nil {
		return nil, err
	}
	if err = f.createDescriptorSets(); err != nil {
		return nil, err
	}
	if f.layout, err = CreatePipelineLayout(f.device, f.setLayout); err != nil {
		return nil, err
	}
	f.builder = NewPipelineBuilder(stages)
	return f, nil
}

func (f *DeviceFrames) createDescriptorSets() error {
	ret := vk.CreateDescriptorPool(f.device, &vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       MaxFramesInFlight,
		PoolSizeCount: 2,
		PPoolSizes: []vk.DescriptorPoolSize{{
			Type:            vk.DescriptorTypeUniformBuffer,
			DescriptorCount: MaxFramesInFlight,
		}, {
			Type:            vk.DescriptorTypeCombinedImageSampler,
			DescriptorCount: MaxFramesInFlight,
		}},
	}, nil, &f.descriptorPool)
	if isError(ret) {
		return errors.Wrap(NewError(ret), "create descriptor pool")
	}

	for i := range f.sets {
		ret = vk.AllocateDescriptorSets(f.device, &vk.DescriptorSetAllocateInfo{
			SType:              vk.StructureTypeDescriptorSetAllocateInfo,
			DescriptorPool:     f.descriptorPool,
			DescriptorSetCount: 1,
			PSetLayouts:        []vk.DescriptorSetLayout{f.setLayout},
		}, &f.sets[i])
		if isError(ret) {
			return errors.Wrapf(NewError(ret), "allocate descriptor set %d", i)
		}
		vk.UpdateDescriptorSets(f.device, 2, []vk.WriteDescriptorSet{{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          f.sets[i],
			DstBinding:      CameraBinding,
			DescriptorCount: 1,
			DescriptorType:  vk.DescriptorTypeUniformBuffer,
			PBufferInfo: []vk.DescriptorBufferInfo{{
				Buffer: f.uniforms[i].Buffer,
				Offset: 0,
				Range:  CameraUniformSize,
			}},
		}, albedoWrite(f.sets[i], f.texture)}, 0, nil)
	}
	return nil
}

func albedoWrite(set vk.DescriptorSet, tex *Texture) vk.WriteDescriptorSet {
	return vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          set,
		DstBinding:      AlbedoBinding,
		DescriptorCount: 1,
		DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
		PImageInfo:      []vk.DescriptorImageInfo{tex.DescriptorInfo()},
	}
}

// SetTexture does not take ownership of tex.
func (f *DeviceFrames) SetTexture(tex *Texture) {
	if tex == nil {
		tex = f.white
	}
	f.texture = tex
	writes := make([]vk.WriteDescriptorSet, len(f.sets))
	for i := range f.sets {
		writes[i] = albedoWrite(f.sets[i], tex)
	}
	vk.UpdateDescriptorSets(f.device, uint32(len(writes)), writes, 0, nil)
	f.log.Debug("albedo texture bound", "width", tex.Width, "height", tex.Height)
}

// Texture is the albedo texture currently bound.
func (f *DeviceFrames) Texture() *Texture { return f.texture }

func checkSlot(slot int) error {
	if slot < 0 || slot >= MaxFramesInFlight {
		return errors.Errorf("frame slot %d out of range", slot)
	}
	return nil
}

func (f *DeviceFrames) Begin(slot int) (CommandEncoder, error) {
	if err := checkSlot(slot); err != nil {
		return nil, err
	}
	cmd := f.commands[slot]
	if ret := vk.ResetCommandBuffer(cmd, 0); isError(ret) {
		return nil, errors.Wrapf(NewError(ret), "reset command buffer %d", slot)
	}
	ret := vk.BeginCommandBuffer(cmd, &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
	})
	if isError(ret) {
		return nil, errors.Wrapf(NewError(ret), "begin command buffer %d", slot)
	}
	return &commandRecorder{cmd: cmd}, nil
}

func (f *DeviceFrames) End(slot int) (vk.CommandBuffer, error) {
	if err := checkSlot(slot); err != nil {
		return nil, err
	}
	if ret := vk.EndCommandBuffer(f.commands[slot]); isError(ret) {
		return nil, errors.Wrapf(NewError(ret), "end command buffer %d", slot)
	}
	return f.commands[slot], nil
}

func (f *DeviceFrames) UpdateUniforms(slot int, data []byte) error {
	if err := checkSlot(slot); err != nil {
		return err
	}
	return f.uniforms[slot].Write(data)
}

func (f *DeviceFrames) DescriptorSet(slot int) vk.DescriptorSet {
	if checkSlot(slot) != nil {
		return vk.NullDescriptorSet
	}
	return f.sets[slot]
}

func (f *DeviceFrames) PipelineLayout() vk.PipelineLayout { return f.layout }
func (f *DeviceFrames) Pipeline() vk.Pipeline             { return f.pipeline }

// CommandPool is the graphics pool, also usable for one-off uploads.
func (f *DeviceFrames) CommandPool() *CommandPool {
	return f.pool
}

// RebuildPipeline must run while the device is idle.
func (f *DeviceFrames) RebuildPipeline(pass vk.RenderPass) error {
	pipeline, err := f.builder.Build(f.device, pass, f.layout)
	if err != nil {
		return err
	}
	if f.pipeline != vk.NullPipeline {
		vk.DestroyPipeline(f.device, f.pipeline, nil)
	}
	f.pipeline = pipeline
	f.log.Debug("pipeline rebuilt")
	return nil
}

func (f *DeviceFrames) Destroy() {
	if f.device == nil {
		return
	}
	if f.pipeline != vk.NullPipeline {
		vk.DestroyPipeline(f.device, f.pipeline, nil)
		f.pipeline = vk.NullPipeline
	}
	if f.layout != vk.NullPipelineLayout {
		vk.DestroyPipelineLayout(f.device, f.layout, nil)
		f.layout = vk.NullPipelineLayout
	}
	destroyShaderStages(f.device, f.stages)
	f.stages = nil
	// sets are freed with their pool
	if f.descriptorPool != vk.NullDescriptorPool {
		vk.DestroyDescriptorPool(f.device, f.descriptorPool, nil)
		f.descriptorPool = vk.NullDescriptorPool
	}
	if f.setLayout != vk.NullDescriptorSetLayout {
		vk.DestroyDescriptorSetLayout(f.device, f.setLayout, nil)
		f.setLayout = vk.NullDescriptorSetLayout
	}
	for i, b := range f.uniforms {
		b.Destroy()
		f.uniforms[i] = nil
	}
	f.white.Destroy()
	f.white, f.texture = nil, nil
	if f.pool != nil {
		f.pool.Free(f.commands)
		f.pool.Destroy()
		f.pool = nil
	}
	f.commands = nil
	f.device = nil
}
