package prismvk

import (
	"log/slog"
	"sync/atomic"
	"unsafe"

	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

// debugLog receives validation-layer reports. The report callback is a plain function
// handed to the loader, so the logger it writes to lives here.
var debugLog atomic.Pointer[slog.Logger]

//createInstance enables the window's instance extensions (all required) and, when asked,
//the validation layers that are actually installed
func createInstance(window Window, cfg Config, log *slog.Logger) (instance vk.Instance, layers []string, err error) {
	defer checkErr(&err)

	wanted := window.GetInstanceExtensions()
	if cfg.Validation.Enabled {
		wanted = append(wanted, DebugReportExtension)
	}
	available, err := InstanceExtensions()
	orPanic(err)
	if err := requireNames("instance extensions", wanted, available); err != nil {
		return nil, nil, err
	}
	extensions := mergeNames(wanted)
	log.Debug("enabling instance extensions", "count", len(extensions), "names", extensions)

	if cfg.Validation.Enabled {
		installed, err := ValidationLayers()
		orPanic(err)
		if missing := missingNames(cfg.Validation.Layers, installed); len(missing) > 0 {
			log.Warn("validation layers not installed", "missing", missing)
		}
		for _, layer := range cfg.Validation.Layers {
			if len(missingNames([]string{layer}, installed)) == 0 {
				layers = append(layers, layer)
			}
		}
	}

	ret := vk.CreateInstance(&vk.InstanceCreateInfo{
		SType: vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: &vk.ApplicationInfo{
			SType:              vk.StructureTypeApplicationInfo,
			ApiVersion:         uint32(vk.MakeVersion(1, 0, 0)),
			ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
			PApplicationName:   safeString(cfg.AppName),
			PEngineName:        "prismvk\x00",
		},
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: safeStrings(extensions),
		EnabledLayerCount:       uint32(len(layers)),
		PpEnabledLayerNames:     safeStrings(layers),
	}, nil, &instance)
	if isError(ret) {
		return nil, nil, errors.Wrap(NewError(ret), "create instance")
	}
	orPanic(vk.InitInstance(instance))
	return instance, layers, nil
}

//createDebugCallback routes validation reports into log
func createDebugCallback(instance vk.Instance, log *slog.Logger) (vk.DebugReportCallback, error) {
	debugLog.Store(log)
	var callback vk.DebugReportCallback
	ret := vk.CreateDebugReportCallback(instance, &vk.DebugReportCallbackCreateInfo{
		SType: vk.StructureTypeDebugReportCallbackCreateInfo,
		Flags: vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit |
			vk.DebugReportPerformanceWarningBit),
		PfnCallback: dbgCallbackFunc,
	}, nil, &callback)
	if isError(ret) {
		return vk.NullDebugReportCallback, errors.Wrap(NewError(ret), "create debug report callback")
	}
	log.Info("validation debug report callback enabled")
	return callback, nil
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType,
	object uint64, location uint, messageCode int32, pLayerPrefix string,
	pMessage string, pUserData unsafe.Pointer) vk.Bool32 {

	log := ensureLogger(debugLog.Load())
	attrs := []any{"layer", pLayerPrefix, "code", messageCode}
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		log.Error(pMessage, attrs...)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		log.Warn(pMessage, attrs...)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		log.Warn(pMessage, append(attrs, "performance", true)...)
	case flags&vk.DebugReportFlags(vk.DebugReportDebugBit) != 0:
		log.Debug(pMessage, attrs...)
	default:
		log.Info(pMessage, attrs...)
	}
	return vk.Bool32(vk.False)
}
