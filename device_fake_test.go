package pointfield

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// fakeDevice records every program bind, uniform upload and draw so the
// renderer's command stream can be asserted without a graphics context.
type fakeDevice struct {
	programs []*fakeProgram
	buffers  []*fakeBuffer
	draws    []drawRecord

	failCompile bool
	missing     map[string]bool // uniform names that fail to resolve
}

type drawRecord struct {
	prog  *fakeProgram
	buf   *fakeBuffer
	count int
}

type fakeBuffer struct {
	data     []mgl32.Vec3
	mapped   bool
	released bool
}

func (b *fakeBuffer) Capacity() int { return len(b.data) }
func (b *fakeBuffer) Release()      { b.released = true }

type fakeProgram struct {
	variant  ShaderVariant
	names    map[int32]string
	nextLoc  int32
	locs     map[string]int32
	uniforms map[string]any // last value per uniform name
	binds    int
	released bool
	missing  map[string]bool
}

func (d *fakeDevice) CompileVariant(v ShaderVariant) (Program, error) {
	if d.failCompile {
		return nil, fmt.Errorf("shader backend unavailable")
	}
	p := &fakeProgram{
		variant:  v,
		names:    make(map[int32]string),
		locs:     make(map[string]int32),
		uniforms: make(map[string]any),
		missing:  d.missing,
	}
	d.programs = append(d.programs, p)
	return p, nil
}

func (d *fakeDevice) CreateBuffer(n int) (Buffer, error) {
	if n <= 0 {
		return nil, fmt.Errorf("capacity must be positive, got %d", n)
	}
	b := &fakeBuffer{data: make([]mgl32.Vec3, n)}
	d.buffers = append(d.buffers, b)
	return b, nil
}

func (d *fakeDevice) WriteBuffer(buf Buffer, data []mgl32.Vec3) error {
	b := buf.(*fakeBuffer)
	if len(data) > len(b.data) {
		return ErrCapacityExceeded
	}
	copy(b.data, data)
	return nil
}

func (d *fakeDevice) MapBuffer(buf Buffer) ([]mgl32.Vec3, error) {
	b := buf.(*fakeBuffer)
	if b.mapped {
		return nil, ErrAlreadyMapped
	}
	b.mapped = true
	return b.data, nil
}

func (d *fakeDevice) UnmapBuffer(buf Buffer) error {
	buf.(*fakeBuffer).mapped = false
	return nil
}

func (d *fakeDevice) DrawPoints(prog Program, buf Buffer, count int) error {
	d.draws = append(d.draws, drawRecord{
		prog:  prog.(*fakeProgram),
		buf:   buf.(*fakeBuffer),
		count: count,
	})
	return nil
}

func (d *fakeDevice) Release() {}

func (p *fakeProgram) Bind() { p.binds++ }

func (p *fakeProgram) UniformLocation(name string) (int32, error) {
	if p.missing[name] {
		return 0, fmt.Errorf("uniform %q not found", name)
	}
	if loc, ok := p.locs[name]; ok {
		return loc, nil
	}
	loc := p.nextLoc
	p.nextLoc++
	p.locs[name] = loc
	p.names[loc] = name
	return loc, nil
}

func (p *fakeProgram) SetFloat(loc int32, v float32) { p.uniforms[p.names[loc]] = v }

func (p *fakeProgram) SetVec3(loc int32, v mgl32.Vec3) { p.uniforms[p.names[loc]] = v }

func (p *fakeProgram) SetMat4(loc int32, m mgl32.Mat4) { p.uniforms[p.names[loc]] = m }

func (p *fakeProgram) Release() { p.released = true }
