// Command prismdemo opens a window and draws a spinning cube.
//
// Shaders are compiled ahead of time:
//
//	glslangValidator -V shaders/simple.vert -o shaders/simple.vert.spv
//	glslangValidator -V shaders/simple.frag -o shaders/simple.frag.spv
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"runtime"
	"time"

	"github.com/andewx/prismvk"
	"github.com/andewx/prismvk/platform"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"github.com/xlab/closer"
)

func init() {
	// GLFW and the presentation engine want the main thread.
	runtime.LockOSThread()
}

var (
	configPath = flag.String("config", "", "path to a YAML config file")
	logLevel   = flag.String("log-level", "", "log level: debug, info, warn or error")
	validation = flag.Bool("validation", false, "enable the Vulkan validation layers")
)

func main() {
	flag.Parse()

	cfg := prismvk.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = prismvk.LoadConfig(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "prismdemo: %+v\n", err)
			os.Exit(1)
		}
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *validation {
		cfg.Validation.Enabled = true
	}
	log := prismvk.NewLogger(os.Stderr, cfg.LogLevel)

	var teardown []func()
	runTeardown := func() {
		for i := len(teardown) - 1; i >= 0; i-- {
			teardown[i]()
		}
		teardown = nil
	}
	fail := func(err error, msg string) {
		if err != nil {
			prismvk.Fatal(log, errors.Wrap(err, msg), runTeardown)
		}
	}

	window, err := platform.NewGLFWWindow(cfg.Window.Width, cfg.Window.Height, cfg.Window.Title)
	fail(err, "window")
	teardown = append(teardown, window.Destroy)

	ctx, err := prismvk.NewDeviceContext(window, cfg, log)
	fail(err, "device")
	teardown = append(teardown, ctx.Destroy)

	stages, err := prismvk.LoadShaderStages(ctx.Device(), cfg)
	fail(err, "shaders")
	frames, err := prismvk.NewDeviceFrames(ctx, stages, log)
	fail(err, "frame resources")

	renderer, err := prismvk.NewRenderer(ctx, window, frames, prismvk.RendererOptions{
		Logger:      log,
		PresentMode: cfg.PresentMode,
		ClearColor:  cfg.ClearColor,
	})
	if err != nil {
		frames.Destroy()
		fail(err, "renderer")
	}
	teardown = append(teardown, renderer.Destroy)

	vertices, indices := cubeGeometry()
	mesh, err := prismvk.NewMesh(ctx, frames.CommandPool(), vertices, indices)
	fail(err, "cube mesh")
	// runs before renderer.Destroy, so wait for the GPU here too
	teardown = append(teardown, func() {
		_ = ctx.WaitIdle()
		mesh.Destroy()
	})

	var texture *prismvk.Texture
	if cfg.Texture != "" {
		texture, err = prismvk.LoadTextureFile(ctx, frames.CommandPool(), cfg.Texture)
	} else {
		texture, err = prismvk.NewTexture(ctx, frames.CommandPool(), checkerImage(256, 32))
	}
	fail(err, "texture")
	teardown = append(teardown, func() {
		_ = ctx.WaitIdle()
		texture.Destroy()
	})
	fail(renderer.SetTexture(texture), "bind texture")

	cube := prismvk.NewGameObject(mesh)
	objects := []prismvk.Renderable{cube}
	cam := prismvk.NewCamera()
	cam.LookAt(mgl32.Vec3{0, 1.2, 2.5}, mgl32.Vec3{0, 0, 0}, mgl32.Vec3{0, 1, 0})

	exitC := make(chan struct{}, 2)
	doneC := make(chan struct{}, 2)
	closer.Bind(func() {
		exitC <- struct{}{}
		<-doneC
		log.Info("bye")
	})
	defer closer.Close()

	run(log, window, renderer, cam, cube, objects, exitC)
	runTeardown()
	doneC <- struct{}{}
}

func run(log *slog.Logger, window *platform.GLFWWindow, renderer *prismvk.Renderer,
	cam *prismvk.Camera, cube *prismvk.GameObject, objects []prismvk.Renderable, exitC chan struct{}) {

	start := time.Now()
	last := start
	frames := 0
	for {
		select {
		case <-exitC:
			return
		default:
		}
		if window.ShouldClose() {
			exitC <- struct{}{}
			continue
		}

		window.PollEvents()
		if window.Minimized() {
			window.WaitEvents()
			continue
		}
		if window.Resized() {
			renderer.RecreateSwapchain()
		}

		t := float32(time.Since(start).Seconds())
		cube.Transform.Rotation = mgl32.Vec3{0.4 * t, 0.7 * t, 0}
		cam.SetPerspective(float32(math.Pi/4), renderer.Swapchain().AspectRatio(), 0.1, 100)
		renderer.Draw(objects, cam)

		frames++
		if now := time.Now(); now.Sub(last) >= 5*time.Second {
			log.Debug("frame rate", "fps", float64(frames)/now.Sub(last).Seconds(),
				"extent", fmt.Sprintf("%dx%d", renderer.Swapchain().Extent().Width, renderer.Swapchain().Extent().Height))
			frames, last = 0, now
		}
	}
}
