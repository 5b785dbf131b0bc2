package prismvk

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	vk "github.com/vulkan-go/vulkan"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prism.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	require.Equal(t, vk.PresentModeMailbox, cfg.RequestedPresentMode())
	require.Equal(t, "main", cfg.EntryPoint())
	require.Equal(t, vk.Extent2D{Width: 800, Height: 600}, cfg.WindowExtent())
	require.Equal(t, []string{DefaultValidationLayer}, cfg.Validation.Layers)
	require.False(t, cfg.Validation.Enabled)
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
app_name: cubes
window:
  width: 1280
  height: 720
validation:
  enabled: true
device_extensions: [VK_KHR_maintenance1]
present_mode: FIFO_relaxed
clear_color: [0.2, 0.3, 0.4, 1.0]
log_level: debug
texture: textures/crate.png
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	require.Equal(t, "cubes", cfg.AppName)
	require.Equal(t, 1280, cfg.Window.Width)
	require.Equal(t, "prismvk", cfg.Window.Title, "missing keys keep their defaults")
	require.True(t, cfg.Validation.Enabled)
	require.Equal(t, []string{DefaultValidationLayer}, cfg.Validation.Layers)
	require.Equal(t, []string{"VK_KHR_maintenance1"}, cfg.DeviceExtensions)
	require.Equal(t, vk.PresentModeFifoRelaxed, cfg.RequestedPresentMode())
	require.Equal(t, [4]float32{0.2, 0.3, 0.4, 1.0}, cfg.ClearColor)
	require.Equal(t, "shaders/simple.vert.spv", cfg.Shaders.Vertex)
	require.Equal(t, "main", cfg.EntryPoint())
	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, "textures/crate.png", cfg.Texture)
	require.Empty(t, DefaultConfig().Texture)
}

func TestLoadConfigRejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"bad size":     "window: {width: 0, height: 600}\n",
		"bad mode":     "present_mode: vsync\n",
		"no shader":    "shaders: {vertex: \"\"}\n",
		"not yaml":     "window: [\n",
		"wrong shape":  "window: 12\n",
		"bad clear":    "clear_color: red\n",
		"neg height":   "window: {width: 10, height: -1}\n",
		"no fragment":  "shaders: {fragment: \"\"}\n",
		"mode is list": "present_mode: [fifo]\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, body))
			require.Error(t, err)
		})
	}

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestPresentModeByName(t *testing.T) {
	require.Equal(t, vk.PresentModeImmediate, PresentModeByName("immediate"))
	require.Equal(t, vk.PresentModeFifo, PresentModeByName("Fifo"))
	require.Equal(t, vk.PresentModeMailbox, PresentModeByName(""))
	require.Equal(t, vk.PresentModeMailbox, PresentModeByName("unknown"))
}
