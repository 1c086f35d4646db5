// Command pointfield-demo renders a particle fountain as sphere sprites,
// on either the OpenGL or the WebGPU backend.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/pointfield3d/pointfield"
)

const (
	windowWidth  = 1280
	windowHeight = 720
)

func main() {
	backend := flag.String("backend", "gl", "graphics backend: gl or wgpu")
	cmyk := flag.Bool("cmyk", false, "shade sprites by CMYK ink separation")
	particles := flag.Int("particles", 4096, "particle pool size")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	log := pointfield.NewDefaultLogger("pointfield-demo", *debug)
	if err := run(pointfield.BackendName(*backend), *cmyk, *particles, log); err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}
}

func run(backend pointfield.BackendName, cmyk bool, particles int, log pointfield.Logger) error {
	api := pointfield.APIOpenGL
	if backend == pointfield.BackendWGPU {
		api = pointfield.APINone
	}
	win, err := pointfield.NewWindow(windowWidth, windowHeight, "pointfield", api)
	if err != nil {
		return err
	}
	defer win.Destroy()

	var dev pointfield.FrameDevice
	switch backend {
	case pointfield.BackendGL:
		dev, err = pointfield.NewGLDevice(log)
	case pointfield.BackendWGPU:
		dev, err = pointfield.NewWGPUDevice(win, log)
	default:
		return fmt.Errorf("unknown backend %q", backend)
	}
	if err != nil {
		return err
	}
	defer dev.Release()

	renderer, err := pointfield.New(dev, pointfield.Config{
		ParticleSize: 0.15,
		Colour:       mgl32.Vec3{0.55, 0.75, 1.0},
		ScreenWidth:  windowWidth,
		Logger:       log,
	})
	if err != nil {
		return err
	}
	defer renderer.Release()

	if err := renderer.Resize(particles); err != nil {
		return err
	}

	emitter := pointfield.NewEmitter(pointfield.EmitterConfig{
		MaxParticles:     particles,
		SpawnRate:        float32(particles) / 3,
		LifetimeRange:    [2]float32{2, 4},
		SpeedRange:       [2]float32{3, 5},
		ConeAngleDegrees: 20,
		Gravity:          9.81,
		Drag:             0.2,
	})

	proj := mgl32.Perspective(mgl32.DegToRad(45), float32(windowWidth)/float32(windowHeight), 0.1, 100)
	view := mgl32.LookAtV(mgl32.Vec3{0, 2.5, 9}, mgl32.Vec3{0, 2, 0}, mgl32.Vec3{0, 1, 0})

	log.Infof("rendering %d particles on %s (cmyk=%v)", particles, backend, cmyk)

	var angle float32
	last := time.Now()
	for !win.ShouldClose() {
		win.PollEvents()

		now := time.Now()
		dt := float32(now.Sub(last).Seconds())
		last = now

		emitter.Step(dt)
		angle += dt * 0.3

		err := renderer.UpdatePositions(func(positions []mgl32.Vec3) {
			copy(positions, emitter.Positions())
		})
		if err != nil {
			return err
		}

		if err := dev.BeginFrame(); err != nil {
			return err
		}
		model := mgl32.HomogRotate3DY(angle)
		// the emitter's live count drives the draw, not the pool capacity
		if cmyk {
			err = renderer.DrawCMYKFrom(renderer.Buffer(), emitter.Alive(), model, view, proj)
		} else {
			err = renderer.DrawFrom(renderer.Buffer(), emitter.Alive(), model, view, proj)
		}
		if err != nil {
			return err
		}
		if err := dev.EndFrame(); err != nil {
			return err
		}
		win.SwapBuffers()
	}
	return nil
}
