package prismvk

import (
	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

// Set 0 bindings.
const (
	CameraBinding = 0
	AlbedoBinding = 1
)

// CreateCameraSetLayout describes set 0: the camera uniform for the vertex stage and the
// albedo texture for the fragment stage.
func CreateCameraSetLayout(device vk.Device) (vk.DescriptorSetLayout, error) {
	var layout vk.DescriptorSetLayout
	bindings := []vk.DescriptorSetLayoutBinding{{
		Binding:         CameraBinding,
		DescriptorType:  vk.DescriptorTypeUniformBuffer,
		DescriptorCount: 1,
		StageFlags:      vk.ShaderStageFlags(vk.ShaderStageVertexBit),
	}, {
		Binding:         AlbedoBinding,
		DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
		DescriptorCount: 1,
		StageFlags:      vk.ShaderStageFlags(vk.ShaderStageFragmentBit),
	}}
	ret := vk.CreateDescriptorSetLayout(device, &vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}, nil, &layout)
	if isError(ret) {
		return vk.NullDescriptorSetLayout, errors.Wrap(NewError(ret), "create descriptor set layout")
	}
	return layout, nil
}

// CreatePipelineLayout pairs the camera set layout with the per-object push-constant block.
func CreatePipelineLayout(device vk.Device, setLayout vk.DescriptorSetLayout) (vk.PipelineLayout, error) {
	var layout vk.PipelineLayout
	ranges := []vk.PushConstantRange{{
		StageFlags: vk.ShaderStageFlags(vk.ShaderStageVertexBit | vk.ShaderStageFragmentBit),
		Offset:     0,
		Size:       PushConstantsSize,
	}}
	ret := vk.CreatePipelineLayout(device, &vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         1,
		PSetLayouts:            []vk.DescriptorSetLayout{setLayout},
		PushConstantRangeCount: uint32(len(ranges)),
		PPushConstantRanges:    ranges,
	}, nil, &layout)
	if isError(ret) {
		return vk.NullPipelineLayout, errors.Wrap(NewError(ret), "create pipeline layout")
	}
	return layout, nil
}

// PipelineBuilder collects the fixed-function state of the mesh pipeline.
// Viewport and scissor are dynamic so the pipeline only depends on the render pass.
type PipelineBuilder struct {
	shaderStages         []vk.PipelineShaderStageCreateInfo
	vertexBindings       []vk.VertexInputBindingDescription
	vertexAttributes     []vk.VertexInputAttributeDescription
	inputAssembly        vk.PipelineInputAssemblyStateCreateInfo
	rasterizer           vk.PipelineRasterizationStateCreateInfo
	multisampling        vk.PipelineMultisampleStateCreateInfo
	depthStencil         vk.PipelineDepthStencilStateCreateInfo
	colorBlendAttachment vk.PipelineColorBlendAttachmentState
	dynamicStates        []vk.DynamicState
}

// NewPipelineBuilder sets up a filled, depth-tested triangle list pipeline over Vertex.
func NewPipelineBuilder(stages []ShaderStage) *PipelineBuilder {
	pb := &PipelineBuilder{
		vertexBindings:   []vk.VertexInputBindingDescription{VertexBindingDescription()},
		vertexAttributes: VertexAttributeDescriptions(),
		dynamicStates:    []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor},
	}

	for _, s := range stages {
		pb.shaderStages = append(pb.shaderStages, vk.PipelineShaderStageCreateInfo{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  s.Stage,
			Module: s.Module,
			PName:  safeString(s.EntryPoint),
		})
	}

	pb.inputAssembly = vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               vk.PrimitiveTopologyTriangleList,
		PrimitiveRestartEnable: vk.False,
	}

	pb.rasterizer = vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vk.False,
		RasterizerDiscardEnable: vk.False,
		PolygonMode:             vk.PolygonModeFill,
		CullMode:                vk.CullModeFlags(vk.CullModeBackBit),
		FrontFace:               vk.FrontFaceCounterClockwise,
		DepthBiasEnable:         vk.False,
		LineWidth:               1.0,
	}

	pb.multisampling = vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: vk.SampleCount1Bit,
		SampleShadingEnable:  vk.False,
		MinSampleShading:     1.0,
	}

	pb.depthStencil = vk.PipelineDepthStencilStateCreateInfo{
		SType:                 vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:       vk.True,
		DepthWriteEnable:      vk.True,
		DepthCompareOp:        vk.CompareOpLess,
		DepthBoundsTestEnable: vk.False,
		StencilTestEnable:     vk.False,
		MinDepthBounds:        0.0,
		MaxDepthBounds:        1.0,
	}

	rgba := vk.ColorComponentRBit | vk.ColorComponentGBit | vk.ColorComponentBBit | vk.ColorComponentABit
	pb.colorBlendAttachment = vk.PipelineColorBlendAttachmentState{
		ColorWriteMask: vk.ColorComponentFlags(rgba),
		BlendEnable:    vk.False,
	}
	return pb
}

// WithCullMode replaces the cull mode, CullModeNone draws both faces.
func (p *PipelineBuilder) WithCullMode(mode vk.CullModeFlagBits) *PipelineBuilder {
	p.rasterizer.CullMode = vk.CullModeFlags(mode)
	return p
}

// WithPolygonMode switches between fill and wireframe.
func (p *PipelineBuilder) WithPolygonMode(mode vk.PolygonMode) *PipelineBuilder {
	p.rasterizer.PolygonMode = mode
	return p
}

// Build creates the pipeline for subpass 0 of pass.
func (p *PipelineBuilder) Build(device vk.Device, pass vk.RenderPass, layout vk.PipelineLayout) (vk.Pipeline, error) {
	if len(p.shaderStages) == 0 {
		return vk.NullPipeline, errors.New("pipeline has no shader stages")
	}

	vertexInput := vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   uint32(len(p.vertexBindings)),
		PVertexBindingDescriptions:      p.vertexBindings,
		VertexAttributeDescriptionCount: uint32(len(p.vertexAttributes)),
		PVertexAttributeDescriptions:    p.vertexAttributes,
	}
	// counts only, the values are set per frame
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}
	blendState := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vk.False,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: 1,
		PAttachments:    []vk.PipelineColorBlendAttachmentState{p.colorBlendAttachment},
	}
	dynamicState := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(p.dynamicStates)),
		PDynamicStates:    p.dynamicStates,
	}

	info := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(p.shaderStages)),
		PStages:             p.shaderStages,
		PVertexInputState:   &vertexInput,
		PInputAssemblyState: &p.inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &p.rasterizer,
		PMultisampleState:   &p.multisampling,
		PDepthStencilState:  &p.depthStencil,
		PColorBlendState:    &blendState,
		PDynamicState:       &dynamicState,
		Layout:              layout,
		RenderPass:          pass,
		Subpass:             0,
	}

	pipelines := []vk.Pipeline{vk.NullPipeline}
	ret := vk.CreateGraphicsPipelines(device, vk.NullPipelineCache, 1,
		[]vk.GraphicsPipelineCreateInfo{info}, nil, pipelines)
	if isError(ret) {
		return vk.NullPipeline, errors.Wrap(NewError(ret), "create graphics pipeline")
	}
	return pipelines[0], nil
}
