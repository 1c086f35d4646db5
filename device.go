package pointfield

import "github.com/go-gl/mathgl/mgl32"

// ShaderVariant selects one of the two sprite shader configurations.
type ShaderVariant int

const (
	// VariantStandard shades sprites with the renderer's solid colour.
	VariantStandard ShaderVariant = iota
	// VariantCMYK shades sprites by CMYK ink separation and ignores the
	// colour uniform.
	VariantCMYK
)

func (v ShaderVariant) String() string {
	switch v {
	case VariantStandard:
		return "standard"
	case VariantCMYK:
		return "cmyk"
	}
	return "unknown"
}

// BackendName identifies a concrete Device implementation.
type BackendName string

const (
	BackendGL   BackendName = "gl"
	BackendWGPU BackendName = "wgpu"
)

// Buffer is a GPU-resident array of 3-component float32 positions. Buffers
// are created by a Device and must only be used with the Device that
// created them.
type Buffer interface {
	// Capacity reports the number of positions the buffer can hold.
	Capacity() int
	// Release frees the GPU storage. The buffer must not be used afterwards.
	Release()
}

// Program is a compiled and linked sprite shader with uniform values
// addressed by location. Locations are resolved once by name and reused.
type Program interface {
	// Bind makes the program current for subsequent uniform uploads and
	// draws.
	Bind()
	// UniformLocation resolves a uniform by name. Resolving a name the
	// program does not declare is an error.
	UniformLocation(name string) (int32, error)
	SetFloat(loc int32, v float32)
	SetVec3(loc int32, v mgl32.Vec3)
	SetMat4(loc int32, m mgl32.Mat4)
	// Release frees the program object.
	Release()
}

// Device is the subset of a graphics API the renderer needs: buffer
// lifecycle, sprite program compilation and point-draw dispatch. All
// methods must be called from the thread that owns the graphics context.
type Device interface {
	// CompileVariant builds the sprite program for the given variant from
	// the backend's embedded shader sources.
	CompileVariant(v ShaderVariant) (Program, error)
	// CreateBuffer allocates uninitialized storage for n positions, n > 0.
	CreateBuffer(n int) (Buffer, error)
	// WriteBuffer copies data into the front of buf. len(data) must not
	// exceed the buffer capacity.
	WriteBuffer(buf Buffer, data []mgl32.Vec3) error
	// MapBuffer exposes the buffer contents as a writable slice of length
	// Capacity(). The slice is only valid until UnmapBuffer.
	MapBuffer(buf Buffer) ([]mgl32.Vec3, error)
	// UnmapBuffer ends a mapping started by MapBuffer and makes any
	// writes visible to subsequent draws.
	UnmapBuffer(buf Buffer) error
	// DrawPoints binds prog and buf and issues a point-primitive draw of
	// count positions. Uniforms must already be uploaded via prog.
	DrawPoints(prog Program, buf Buffer, count int) error
	// Release frees device-owned resources. Buffers and programs created
	// by the device must be released separately before this call.
	Release()
}

// FrameDevice is implemented by backends that need explicit per-frame
// bracketing around draws (acquiring a surface texture, command encoding).
// The OpenGL backend clears the default framebuffer in BeginFrame; the
// WebGPU backend opens and closes a render pass.
type FrameDevice interface {
	Device
	BeginFrame() error
	EndFrame() error
}
