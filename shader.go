package prismvk

import (
	"encoding/binary"
	"os"

	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

const spirvMagic = 0x07230203

// ShaderStage is one compiled shader of a pipeline.
type ShaderStage struct {
	Stage      vk.ShaderStageFlagBits
	Module     vk.ShaderModule
	EntryPoint string
}

//validateSPIRV checks word alignment and the magic number, the driver does the rest
func validateSPIRV(data []byte) error {
	if len(data) < 4 || len(data)%4 != 0 {
		return errors.Errorf("SPIR-V blob of %d bytes is not word aligned", len(data))
	}
	if binary.LittleEndian.Uint32(data) != spirvMagic {
		return errors.New("SPIR-V magic number mismatch")
	}
	return nil
}

// LoadShaderModule wraps a SPIR-V blob in a shader module.
func LoadShaderModule(device vk.Device, data []byte) (vk.ShaderModule, error) {
	if err := validateSPIRV(data); err != nil {
		return vk.NullShaderModule, err
	}
	var module vk.ShaderModule
	ret := vk.CreateShaderModule(device, &vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(data)),
		PCode:    sliceUint32(data),
	}, nil, &module)
	if isError(ret) {
		return vk.NullShaderModule, NewError(ret)
	}
	return module, nil
}

// LoadShaderFile reads and loads a SPIR-V file.
func LoadShaderFile(device vk.Device, path string) (vk.ShaderModule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return vk.NullShaderModule, errors.Wrapf(err, "read shader %s", path)
	}
	module, err := LoadShaderModule(device, data)
	if err != nil {
		return vk.NullShaderModule, errors.Wrapf(err, "shader %s", path)
	}
	return module, nil
}

// LoadShaderStages loads the vertex and fragment stages named in cfg.
func LoadShaderStages(device vk.Device, cfg Config) ([]ShaderStage, error) {
	vert, err := LoadShaderFile(device, cfg.Shaders.Vertex)
	if err != nil {
		return nil, err
	}
	frag, err := LoadShaderFile(device, cfg.Shaders.Fragment)
	if err != nil {
		vk.DestroyShaderModule(device, vert, nil)
		return nil, err
	}
	return []ShaderStage{
		{Stage: vk.ShaderStageVertexBit, Module: vert, EntryPoint: cfg.EntryPoint()},
		{Stage: vk.ShaderStageFragmentBit, Module: frag, EntryPoint: cfg.EntryPoint()},
	}, nil
}

func destroyShaderStages(device vk.Device, stages []ShaderStage) {
	for _, s := range stages {
		if s.Module != vk.NullShaderModule {
			vk.DestroyShaderModule(device, s.Module, nil)
		}
	}
}
