package pointfield

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// Config holds the initial render configuration for a Renderer. Zero
// values are replaced with the documented defaults by New.
type Config struct {
	// ParticleSize is the world-space sprite diameter. Default 1.0.
	ParticleSize float32
	// Colour is the solid colour used by the standard shader. Default
	// white.
	Colour mgl32.Vec3
	// ScreenWidth is the viewport width in pixels, used by both shaders
	// to derive a consistent screen-space sprite size. Default 1280.
	ScreenWidth int
	// Logger receives debug and lifecycle messages. Default is a no-op
	// logger.
	Logger Logger
}

// variant is one sprite shader configuration with its uniform locations
// resolved once at construction.
type variant struct {
	prog          Program
	pointSize     int32
	colour        int32 // -1 for the CMYK variant
	modelView     int32
	modelViewProj int32
	proj          int32
	screenWidth   int32
}

// Renderer owns a GPU-resident buffer of particle positions and draws it
// as shaded sphere sprites. All methods must run on the thread that owns
// the graphics context; the Renderer performs no locking of its own.
type Renderer struct {
	dev Device
	log Logger

	particleSize float32
	colour       mgl32.Vec3
	screenWidth  float32

	capacity int
	buf      Buffer // nil while capacity == 0

	mapped *MappedPositions // non-nil while a mapping is open

	std  variant
	cmyk variant
}

// New compiles both sprite shader variants on dev and resolves their
// uniform locations. A shader failure aborts construction.
func New(dev Device, cfg Config) (*Renderer, error) {
	if cfg.ParticleSize <= 0 {
		cfg.ParticleSize = 1.0
	}
	if cfg.Colour == (mgl32.Vec3{}) {
		cfg.Colour = mgl32.Vec3{1, 1, 1}
	}
	if cfg.ScreenWidth <= 0 {
		cfg.ScreenWidth = 1280
	}
	if cfg.Logger == nil {
		cfg.Logger = NewNopLogger()
	}

	r := &Renderer{
		dev:          dev,
		log:          cfg.Logger,
		particleSize: cfg.ParticleSize,
		colour:       cfg.Colour,
		screenWidth:  float32(cfg.ScreenWidth),
	}

	var err error
	r.std, err = buildVariant(dev, VariantStandard)
	if err != nil {
		return nil, err
	}
	r.cmyk, err = buildVariant(dev, VariantCMYK)
	if err != nil {
		r.std.prog.Release()
		return nil, err
	}

	r.log.Debugf("renderer ready: size=%.2f screenWidth=%.0f", r.particleSize, r.screenWidth)
	return r, nil
}

func buildVariant(dev Device, sv ShaderVariant) (variant, error) {
	prog, err := dev.CompileVariant(sv)
	if err != nil {
		return variant{}, fmt.Errorf("compile %s sprite shader: %w", sv, err)
	}

	v := variant{prog: prog, colour: -1}
	locs := []struct {
		name string
		dst  *int32
	}{
		{"pointSize", &v.pointSize},
		{"MV", &v.modelView},
		{"MVP", &v.modelViewProj},
		{"P", &v.proj},
		{"screenWidth", &v.screenWidth},
	}
	for _, l := range locs {
		*l.dst, err = prog.UniformLocation(l.name)
		if err != nil {
			prog.Release()
			return variant{}, fmt.Errorf("%s sprite shader: %w", sv, err)
		}
	}
	if sv == VariantStandard {
		v.colour, err = prog.UniformLocation("colour")
		if err != nil {
			prog.Release()
			return variant{}, fmt.Errorf("%s sprite shader: %w", sv, err)
		}
	}
	return v, nil
}

// Resize reallocates the position storage to hold exactly n vectors.
// Prior contents are discarded. n <= 0 means zero particles: nothing is
// allocated and subsequent draws are no-ops.
func (r *Renderer) Resize(n int) error {
	if r.mapped != nil {
		return ErrMapped
	}
	if n < 0 {
		n = 0
	}
	if r.buf != nil {
		r.buf.Release()
		r.buf = nil
	}
	r.capacity = 0
	if n > 0 {
		buf, err := r.dev.CreateBuffer(n)
		if err != nil {
			return fmt.Errorf("resize to %d particles: %w", n, err)
		}
		r.buf = buf
		r.capacity = n
	}
	r.log.Debugf("position buffer resized to %d particles", n)
	return nil
}

// SetPositions copies data into the position buffer. If data is longer
// than the current capacity it fails with ErrCapacityExceeded and the
// buffer contents are left unchanged.
func (r *Renderer) SetPositions(data []mgl32.Vec3) error {
	if r.mapped != nil {
		return ErrMapped
	}
	if len(data) > r.capacity {
		return fmt.Errorf("%w: %d positions, capacity %d", ErrCapacityExceeded, len(data), r.capacity)
	}
	if len(data) == 0 {
		return nil
	}
	if err := r.dev.WriteBuffer(r.buf, data); err != nil {
		return fmt.Errorf("upload %d positions: %w", len(data), err)
	}
	return nil
}

// SetScreenWidth records the viewport width in pixels. Takes effect on
// the next draw.
func (r *Renderer) SetScreenWidth(w int) { r.screenWidth = float32(w) }

// SetParticleSize records the world-space sprite diameter. Takes effect
// on the next draw.
func (r *Renderer) SetParticleSize(s float32) { r.particleSize = s }

// SetColour records the solid colour used by the standard shader. Takes
// effect on the next draw.
func (r *Renderer) SetColour(red, green, blue float32) {
	r.colour = mgl32.Vec3{red, green, blue}
}

// ParticleSize reports the current sprite diameter.
func (r *Renderer) ParticleSize() float32 { return r.particleSize }

// Capacity reports how many positions the internal buffer holds.
func (r *Renderer) Capacity() int { return r.capacity }

// Buffer exposes the internal position buffer, for example to share it
// with a compute producer. It is nil while the capacity is zero.
func (r *Renderer) Buffer() Buffer { return r.buf }

// Draw renders the internal buffer with the standard shader. The draw
// count is always the buffer capacity.
func (r *Renderer) Draw(model, view, projection mgl32.Mat4) error {
	if r.mapped != nil {
		return ErrMapped
	}
	return r.drawVariant(&r.std, r.buf, r.capacity, model, view, projection)
}

// DrawFrom renders n positions from a caller-supplied buffer with the
// standard shader. The caller's count is authoritative; the internal
// buffer and capacity are not consulted.
func (r *Renderer) DrawFrom(buf Buffer, n int, model, view, projection mgl32.Mat4) error {
	if r.mapped != nil {
		return ErrMapped
	}
	return r.drawVariant(&r.std, buf, n, model, view, projection)
}

// DrawCMYKFrom is DrawFrom with the CMYK shader variant.
func (r *Renderer) DrawCMYKFrom(buf Buffer, n int, model, view, projection mgl32.Mat4) error {
	if r.mapped != nil {
		return ErrMapped
	}
	return r.drawVariant(&r.cmyk, buf, n, model, view, projection)
}

func (r *Renderer) drawVariant(v *variant, buf Buffer, n int, model, view, projection mgl32.Mat4) error {
	if buf == nil || n <= 0 {
		return nil
	}

	modelView := view.Mul4(model)
	modelViewProj := projection.Mul4(modelView)

	v.prog.Bind()
	v.prog.SetFloat(v.pointSize, r.particleSize)
	v.prog.SetFloat(v.screenWidth, r.screenWidth)
	if v.colour >= 0 {
		v.prog.SetVec3(v.colour, r.colour)
	}
	v.prog.SetMat4(v.modelView, modelView)
	v.prog.SetMat4(v.modelViewProj, modelViewProj)
	v.prog.SetMat4(v.proj, projection)

	if err := r.dev.DrawPoints(v.prog, buf, n); err != nil {
		return fmt.Errorf("point draw of %d particles: %w", n, err)
	}
	return nil
}

// Release frees the shader programs and the position buffer. The
// Renderer must not be used afterwards.
func (r *Renderer) Release() {
	if r.mapped != nil {
		_ = r.mapped.Close()
	}
	if r.buf != nil {
		r.buf.Release()
		r.buf = nil
	}
	r.capacity = 0
	r.std.prog.Release()
	r.cmyk.prog.Release()
}
