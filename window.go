package pointfield

import (
	"fmt"
	"runtime"

	"github.com/go-gl/glfw/v3.3/glfw"
)

// ContextAPI selects the client API requested from GLFW.
type ContextAPI int

const (
	// APIOpenGL creates an OpenGL 4.1 core context and makes it current,
	// ready for NewGLDevice.
	APIOpenGL ContextAPI = iota
	// APINone creates a window without a client API, for wrapping into a
	// WebGPU surface with NewWGPUDevice.
	APINone
)

// Window wraps a GLFW window. Creation locks the calling goroutine to its
// OS thread; every graphics call must stay on that thread.
type Window struct {
	win    *glfw.Window
	api    ContextAPI
	width  int
	height int
	title  string
}

// NewWindow initializes GLFW and opens a window for the given API.
func NewWindow(width, height int, title string, api ContextAPI) (*Window, error) {
	runtime.LockOSThread()
	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("initialize GLFW: %w", err)
	}

	glfw.WindowHint(glfw.Resizable, glfw.False)
	switch api {
	case APIOpenGL:
		glfw.WindowHint(glfw.ContextVersionMajor, 4)
		glfw.WindowHint(glfw.ContextVersionMinor, 1)
		glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
		glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
	case APINone:
		glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	}

	win, err := glfw.CreateWindow(width, height, title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, fmt.Errorf("create %dx%d window: %w", width, height, err)
	}
	if api == APIOpenGL {
		win.MakeContextCurrent()
		glfw.SwapInterval(1) // vsync
	}

	return &Window{
		win:    win,
		api:    api,
		width:  width,
		height: height,
		title:  title,
	}, nil
}

// Handle exposes the underlying GLFW window for surface creation.
func (w *Window) Handle() *glfw.Window { return w.win }

func (w *Window) Size() (width, height int) { return w.width, w.height }

func (w *Window) ShouldClose() bool { return w.win.ShouldClose() }

func (w *Window) PollEvents() { glfw.PollEvents() }

// SwapBuffers presents the frame on OpenGL windows. It is a no-op for
// APINone windows, where the WebGPU surface presents instead.
func (w *Window) SwapBuffers() {
	if w.api == APIOpenGL {
		w.win.SwapBuffers()
	}
}

// Destroy closes the window and terminates GLFW.
func (w *Window) Destroy() {
	w.win.Destroy()
	glfw.Terminate()
}
