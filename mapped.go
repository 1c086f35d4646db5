package pointfield

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// MappedPositions is scoped write access to the GPU position buffer,
// obtained from Renderer.MapPositions. While a mapping is open the
// Renderer rejects draws and buffer mutations; Close makes the writes
// visible and re-enables them. Close is safe to call more than once.
type MappedPositions struct {
	r      *Renderer
	data   []mgl32.Vec3
	closed bool
}

// MapPositions exposes the position buffer for direct writes, avoiding a
// staging copy for high-throughput producers. Only one mapping may be
// open at a time; nested acquisition fails with ErrAlreadyMapped.
func (r *Renderer) MapPositions() (*MappedPositions, error) {
	if r.mapped != nil {
		return nil, ErrAlreadyMapped
	}
	if r.buf == nil {
		return nil, fmt.Errorf("pointfield: no position buffer to map (capacity 0)")
	}
	data, err := r.dev.MapBuffer(r.buf)
	if err != nil {
		return nil, fmt.Errorf("map position buffer: %w", err)
	}
	m := &MappedPositions{r: r, data: data}
	r.mapped = m
	return m, nil
}

// UpdatePositions maps the buffer, passes the writable positions to fn
// and guarantees the mapping is released on every path, including a
// panic inside fn.
func (r *Renderer) UpdatePositions(fn func(positions []mgl32.Vec3)) error {
	m, err := r.MapPositions()
	if err != nil {
		return err
	}
	defer func() {
		_ = m.Close()
	}()
	fn(m.Positions())
	return m.Close()
}

// Positions is the writable view of the buffer. Its length equals the
// buffer capacity. The slice is invalid after Close.
func (m *MappedPositions) Positions() []mgl32.Vec3 {
	return m.data
}

// Len reports the number of mapped positions.
func (m *MappedPositions) Len() int { return len(m.data) }

// Set writes one position.
func (m *MappedPositions) Set(i int, v mgl32.Vec3) {
	m.data[i] = v
}

// Close unmaps the buffer. Calling Close on an already closed mapping is
// a no-op.
func (m *MappedPositions) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	m.data = nil
	m.r.mapped = nil
	if err := m.r.dev.UnmapBuffer(m.r.buf); err != nil {
		return fmt.Errorf("unmap position buffer: %w", err)
	}
	return nil
}
