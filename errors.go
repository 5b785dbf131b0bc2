package prismvk

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"
)

// osExit is swapped in tests so Fatal can be observed without ending the process.
var osExit = os.Exit

func isError(ret vk.Result) bool {
	return ret != vk.Success
}

// NewError converts a non-success Vulkan result into an error carrying a stack trace.
// Success yields nil.
func NewError(ret vk.Result) error {
	if ret == vk.Success {
		return nil
	}
	cause := vk.Error(ret)
	if cause == nil {
		// a non-error status such as Suboptimal where an error was expected
		return errors.Errorf("vulkan error: unexpected result (%d)", ret)
	}
	return errors.WithStack(fmt.Errorf("vulkan error: %w (%d)", cause, ret))
}

// Fatal runs the finalizers, logs err and exits the process. A nil err is a no-op.
//
// Construction-time GPU failures go through here: partially built device state
// cannot be unwound safely, so there is no recovery path.
func Fatal(log *slog.Logger, err error, finalizers ...func()) {
	if err == nil {
		return
	}
	for _, fn := range finalizers {
		fn()
	}
	ensureLogger(log).Error("fatal", "err", fmt.Sprintf("%+v", err))
	osExit(1)
}

func checkErr(err *error) {
	if v := recover(); v != nil {
		if e, ok := v.(error); ok {
			*err = errors.WithStack(e)
			return
		}
		*err = errors.Errorf("%+v", v)
	}
}

func orPanic(err error) {
	if err != nil {
		panic(err)
	}
}

// isStale reports whether the presentation engine wants the swapchain rebuilt.
func isStale(ret vk.Result) bool {
	return ret == vk.ErrorOutOfDate || ret == vk.Suboptimal
}
