package pointfield

import (
	"fmt"
	"strings"
	"unsafe"

	"github.com/go-gl/gl/v4.1-core/gl"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/pointfield3d/pointfield/shaders"
)

const vec3Bytes = 3 * 4

// GLDevice is the OpenGL 4.1 core backend. It requires a current OpenGL
// context on the calling thread (see NewWindow with APIOpenGL).
type GLDevice struct {
	log Logger
}

// NewGLDevice initializes the OpenGL bindings against the current
// context and enables shader-controlled point sizes.
func NewGLDevice(log Logger) (*GLDevice, error) {
	if log == nil {
		log = NewNopLogger()
	}
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("initialize OpenGL bindings: %w", err)
	}
	gl.Enable(gl.PROGRAM_POINT_SIZE)
	gl.Enable(gl.DEPTH_TEST)

	log.Infof("OpenGL device ready: %s", gl.GoStr(gl.GetString(gl.VERSION)))
	return &GLDevice{log: log}, nil
}

// GLBuffer is a VAO/VBO pair holding particle positions.
type GLBuffer struct {
	vao      uint32
	vbo      uint32
	capacity int
}

// VAO is the vertex array object handle, usable with DrawFrom after an
// external producer has filled the VBO.
func (b *GLBuffer) VAO() uint32 { return b.vao }

// VBO is the buffer object handle holding the raw position data.
func (b *GLBuffer) VBO() uint32 { return b.vbo }

func (b *GLBuffer) Capacity() int { return b.capacity }

func (b *GLBuffer) Release() {
	gl.DeleteVertexArrays(1, &b.vao)
	gl.DeleteBuffers(1, &b.vbo)
	b.vao = 0
	b.vbo = 0
	b.capacity = 0
}

func (d *GLDevice) CreateBuffer(n int) (Buffer, error) {
	if n <= 0 {
		return nil, fmt.Errorf("pointfield: buffer capacity must be positive, got %d", n)
	}
	b := &GLBuffer{capacity: n}
	gl.GenVertexArrays(1, &b.vao)
	gl.GenBuffers(1, &b.vbo)

	gl.BindVertexArray(b.vao)
	gl.BindBuffer(gl.ARRAY_BUFFER, b.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, n*vec3Bytes, nil, gl.DYNAMIC_DRAW)
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointerWithOffset(0, 3, gl.FLOAT, false, 0, 0)
	gl.BindVertexArray(0)
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)

	if glErr := gl.GetError(); glErr != gl.NO_ERROR {
		b.Release()
		return nil, fmt.Errorf("allocate position buffer of %d vectors: GL error 0x%04x", n, glErr)
	}
	return b, nil
}

func (d *GLDevice) WriteBuffer(buf Buffer, data []mgl32.Vec3) error {
	b, err := d.glBuffer(buf)
	if err != nil {
		return err
	}
	if len(data) > b.capacity {
		return fmt.Errorf("%w: %d positions, capacity %d", ErrCapacityExceeded, len(data), b.capacity)
	}
	gl.BindBuffer(gl.ARRAY_BUFFER, b.vbo)
	gl.BufferSubData(gl.ARRAY_BUFFER, 0, len(data)*vec3Bytes, gl.Ptr(data))
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	return nil
}

func (d *GLDevice) MapBuffer(buf Buffer) ([]mgl32.Vec3, error) {
	b, err := d.glBuffer(buf)
	if err != nil {
		return nil, err
	}
	gl.BindBuffer(gl.ARRAY_BUFFER, b.vbo)
	ptr := gl.MapBuffer(gl.ARRAY_BUFFER, gl.READ_WRITE)
	if ptr == nil {
		gl.BindBuffer(gl.ARRAY_BUFFER, 0)
		return nil, fmt.Errorf("glMapBuffer failed: GL error 0x%04x", gl.GetError())
	}
	return unsafe.Slice((*mgl32.Vec3)(ptr), b.capacity), nil
}

func (d *GLDevice) UnmapBuffer(buf Buffer) error {
	b, err := d.glBuffer(buf)
	if err != nil {
		return err
	}
	gl.BindBuffer(gl.ARRAY_BUFFER, b.vbo)
	ok := gl.UnmapBuffer(gl.ARRAY_BUFFER)
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	if !ok {
		// the driver discarded the storage, e.g. on a mode switch
		return fmt.Errorf("glUnmapBuffer reported lost buffer storage")
	}
	return nil
}

func (d *GLDevice) DrawPoints(prog Program, buf Buffer, count int) error {
	b, err := d.glBuffer(buf)
	if err != nil {
		return err
	}
	if count <= 0 {
		return nil
	}
	prog.Bind()
	gl.BindVertexArray(b.vao)
	gl.DrawArrays(gl.POINTS, 0, int32(count))
	gl.BindVertexArray(0)
	if glErr := gl.GetError(); glErr != gl.NO_ERROR {
		return fmt.Errorf("glDrawArrays of %d points: GL error 0x%04x", count, glErr)
	}
	return nil
}

// BeginFrame clears the default framebuffer.
func (d *GLDevice) BeginFrame() error {
	gl.ClearColor(0.1, 0.2, 0.3, 1.0)
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
	return nil
}

// EndFrame is a no-op; presentation happens in Window.SwapBuffers.
func (d *GLDevice) EndFrame() error { return nil }

func (d *GLDevice) Release() {
	d.log.Debugf("OpenGL device released")
}

func (d *GLDevice) glBuffer(buf Buffer) (*GLBuffer, error) {
	b, ok := buf.(*GLBuffer)
	if !ok || b.vao == 0 {
		return nil, fmt.Errorf("pointfield: buffer was not created by this OpenGL device")
	}
	return b, nil
}

// GLProgram is a linked shader program with uniforms addressed by GL
// uniform locations.
type GLProgram struct {
	handle uint32
}

func (d *GLDevice) CompileVariant(v ShaderVariant) (Program, error) {
	frag := shaders.SpriteFrag
	if v == VariantCMYK {
		frag = shaders.SpriteCMYKFrag
	}
	handle, err := linkProgram(shaders.SpriteVert, frag)
	if err != nil {
		return nil, err
	}
	d.log.Debugf("%s sprite shader linked (program %d)", v, handle)
	return &GLProgram{handle: handle}, nil
}

func (p *GLProgram) Bind() { gl.UseProgram(p.handle) }

func (p *GLProgram) UniformLocation(name string) (int32, error) {
	loc := gl.GetUniformLocation(p.handle, gl.Str(name+"\x00"))
	if loc < 0 {
		return 0, fmt.Errorf("uniform %q not found", name)
	}
	return loc, nil
}

func (p *GLProgram) SetFloat(loc int32, v float32) { gl.Uniform1f(loc, v) }

func (p *GLProgram) SetVec3(loc int32, v mgl32.Vec3) { gl.Uniform3f(loc, v.X(), v.Y(), v.Z()) }

func (p *GLProgram) SetMat4(loc int32, m mgl32.Mat4) { gl.UniformMatrix4fv(loc, 1, false, &m[0]) }

func (p *GLProgram) Release() {
	if p.handle != 0 {
		gl.DeleteProgram(p.handle)
		p.handle = 0
	}
}

func linkProgram(vertSrc, fragSrc string) (uint32, error) {
	vert, err := compileShader(gl.VERTEX_SHADER, vertSrc)
	if err != nil {
		return 0, fmt.Errorf("vertex shader: %w", err)
	}
	frag, err := compileShader(gl.FRAGMENT_SHADER, fragSrc)
	if err != nil {
		gl.DeleteShader(vert)
		return 0, fmt.Errorf("fragment shader: %w", err)
	}

	handle := gl.CreateProgram()
	gl.AttachShader(handle, vert)
	gl.AttachShader(handle, frag)
	gl.LinkProgram(handle)

	// linked program no longer needs the individual shader objects
	gl.DeleteShader(vert)
	gl.DeleteShader(frag)

	var status int32
	gl.GetProgramiv(handle, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		infoLog := programInfoLog(handle)
		gl.DeleteProgram(handle)
		return 0, fmt.Errorf("program link failed: %s", infoLog)
	}
	return handle, nil
}

func compileShader(kind uint32, src string) (uint32, error) {
	handle := gl.CreateShader(kind)
	csrc, free := gl.Strs(src + "\x00")
	gl.ShaderSource(handle, 1, csrc, nil)
	free()
	gl.CompileShader(handle)

	var status int32
	gl.GetShaderiv(handle, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetShaderiv(handle, gl.INFO_LOG_LENGTH, &logLength)
		infoLog := strings.Repeat("\x00", int(logLength+1))
		gl.GetShaderInfoLog(handle, logLength, nil, gl.Str(infoLog))
		gl.DeleteShader(handle)
		return 0, fmt.Errorf("%s", strings.TrimRight(infoLog, "\x00"))
	}
	return handle, nil
}

func programInfoLog(handle uint32) string {
	var logLength int32
	gl.GetProgramiv(handle, gl.INFO_LOG_LENGTH, &logLength)
	if logLength == 0 {
		return "no info log"
	}
	infoLog := strings.Repeat("\x00", int(logLength+1))
	gl.GetProgramInfoLog(handle, logLength, nil, gl.Str(infoLog))
	return strings.TrimRight(infoLog, "\x00")
}
