package prismvk

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
	"gopkg.in/yaml.v3"
)

// WindowConfig sizes the initial window.
type WindowConfig struct {
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	Title  string `yaml:"title"`
}

// ValidationConfig toggles the validation layers and the debug report callback.
type ValidationConfig struct {
	Enabled bool     `yaml:"enabled"`
	Layers  []string `yaml:"layers"`
}

// ShaderConfig names the SPIR-V blobs of the graphics pipeline.
type ShaderConfig struct {
	Vertex     string `yaml:"vertex"`
	Fragment   string `yaml:"fragment"`
	EntryPoint string `yaml:"entry_point"`
}

// Config is the renderer configuration, usually read from a YAML file.
type Config struct {
	AppName          string           `yaml:"app_name"`
	Window           WindowConfig     `yaml:"window"`
	Validation       ValidationConfig `yaml:"validation"`
	DeviceExtensions []string         `yaml:"device_extensions"`
	PresentMode      string           `yaml:"present_mode"`
	Shaders          ShaderConfig     `yaml:"shaders"`
	ClearColor       [4]float32       `yaml:"clear_color"`
	LogLevel         string           `yaml:"log_level"`

	// Texture is an image file sampled as the albedo texture. Empty keeps the default.
	Texture string `yaml:"texture"`
}

// DefaultValidationLayer is the Khronos validation layer.
const DefaultValidationLayer = "VK_LAYER_KHRONOS_validation"

// DefaultConfig returns a usable configuration without a file.
func DefaultConfig() Config {
	return Config{
		AppName: "prismvk",
		Window: WindowConfig{
			Width:  800,
			Height: 600,
			Title:  "prismvk",
		},
		Validation: ValidationConfig{
			Layers: []string{DefaultValidationLayer},
		},
		PresentMode: "mailbox",
		Shaders: ShaderConfig{
			Vertex:     "shaders/simple.vert.spv",
			Fragment:   "shaders/simple.frag.spv",
			EntryPoint: "main",
		},
		ClearColor: [4]float32{0.01, 0.01, 0.01, 1.0},
		LogLevel:   "info",
	}
}

// LoadConfig reads path over DefaultConfig. Keys missing from the file keep their defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "read config %s", path)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parse config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, errors.Wrapf(err, "config %s", path)
	}
	return cfg, nil
}

// Validate rejects values the renderer cannot start with.
func (c Config) Validate() error {
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return errors.Errorf("window size %dx%d must be positive", c.Window.Width, c.Window.Height)
	}
	if _, ok := presentModes[strings.ToLower(c.PresentMode)]; !ok && c.PresentMode != "" {
		return errors.Errorf("unknown present mode %q", c.PresentMode)
	}
	if c.Shaders.Vertex == "" || c.Shaders.Fragment == "" {
		return errors.New("vertex and fragment shader paths are required")
	}
	return nil
}

var presentModes = map[string]vk.PresentMode{
	"mailbox":      vk.PresentModeMailbox,
	"fifo":         vk.PresentModeFifo,
	"fifo_relaxed": vk.PresentModeFifoRelaxed,
	"immediate":    vk.PresentModeImmediate,
}

// PresentModeByName maps a mode name onto a present mode, mailbox when empty or unknown.
func PresentModeByName(name string) vk.PresentMode {
	if mode, ok := presentModes[strings.ToLower(name)]; ok {
		return mode
	}
	return vk.PresentModeMailbox
}

// RequestedPresentMode is the configured present mode.
func (c Config) RequestedPresentMode() vk.PresentMode {
	return PresentModeByName(c.PresentMode)
}

// EntryPoint is the shader entry point, "main" when unset.
func (c Config) EntryPoint() string {
	if c.Shaders.EntryPoint == "" {
		return "main"
	}
	return c.Shaders.EntryPoint
}

// WindowExtent is the configured window size.
func (c Config) WindowExtent() vk.Extent2D {
	return vk.Extent2D{Width: uint32(c.Window.Width), Height: uint32(c.Window.Height)}
}
