package pointfield

import (
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRenderer(t *testing.T, cfg Config) (*Renderer, *fakeDevice) {
	t.Helper()
	dev := &fakeDevice{}
	r, err := New(dev, cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return r, dev
}

func TestRenderer_ShaderFailureAbortsConstruction(t *testing.T) {
	dev := &fakeDevice{failCompile: true}
	if _, err := New(dev, Config{}); err == nil {
		t.Errorf("Expected construction to fail when the shader backend is unavailable")
	}
}

func TestRenderer_MissingUniformAbortsConstruction(t *testing.T) {
	dev := &fakeDevice{missing: map[string]bool{"colour": true}}
	_, err := New(dev, Config{})
	if err == nil {
		t.Fatalf("Expected construction to fail when a uniform cannot be resolved")
	}
	if len(dev.programs) == 0 || !dev.programs[0].released {
		t.Errorf("Expected the partially built program to be released")
	}
}

func TestRenderer_ResizeSetsCapacity(t *testing.T) {
	r, dev := newTestRenderer(t, Config{})

	for _, n := range []int{0, 1, 100, 3, -5} {
		if err := r.Resize(n); err != nil {
			t.Fatalf("Resize(%d) failed: %v", n, err)
		}
		want := n
		if want < 0 {
			want = 0
		}
		if r.Capacity() != want {
			t.Errorf("Expected capacity %d after Resize(%d), got %d", want, n, r.Capacity())
		}
	}

	// every earlier allocation is discarded on resize
	for _, b := range dev.buffers[:len(dev.buffers)-1] {
		if !b.released {
			t.Errorf("Expected prior buffer to be released on resize")
		}
	}
}

func TestRenderer_SetPositionsRoundTrip(t *testing.T) {
	r, _ := newTestRenderer(t, Config{})
	require.NoError(t, r.Resize(4))

	data := []mgl32.Vec3{{1, 2, 3}, {4, 5, 6}, {7, 8, 9}, {10, 11, 12}}
	require.NoError(t, r.SetPositions(data))

	m, err := r.MapPositions()
	require.NoError(t, err)
	assert.Equal(t, data, m.Positions())
	require.NoError(t, m.Close())
}

func TestRenderer_SetPositionsCapacityExceeded(t *testing.T) {
	r, dev := newTestRenderer(t, Config{})
	require.NoError(t, r.Resize(2))

	prior := []mgl32.Vec3{{1, 1, 1}, {2, 2, 2}}
	require.NoError(t, r.SetPositions(prior))

	err := r.SetPositions([]mgl32.Vec3{{9, 9, 9}, {9, 9, 9}, {9, 9, 9}})
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("Expected ErrCapacityExceeded, got %v", err)
	}
	// prior contents must be untouched
	assert.Equal(t, prior, dev.buffers[0].data)
}

func TestRenderer_DrawUploadsConfiguredUniforms(t *testing.T) {
	r, dev := newTestRenderer(t, Config{
		ParticleSize: 2.0,
		Colour:       mgl32.Vec3{1, 0, 0},
		ScreenWidth:  800,
	})
	require.NoError(t, r.Resize(100))

	ident := mgl32.Ident4()
	require.NoError(t, r.Draw(ident, ident, ident))

	require.Len(t, dev.draws, 1)
	d := dev.draws[0]
	assert.Equal(t, 100, d.count)
	assert.Equal(t, VariantStandard, d.prog.variant)
	assert.Equal(t, float32(2.0), d.prog.uniforms["pointSize"])
	assert.Equal(t, float32(800), d.prog.uniforms["screenWidth"])
	assert.Equal(t, mgl32.Vec3{1, 0, 0}, d.prog.uniforms["colour"])
	assert.Equal(t, ident, d.prog.uniforms["MV"])
	assert.Equal(t, ident, d.prog.uniforms["MVP"])
	assert.Equal(t, ident, d.prog.uniforms["P"])
}

func TestRenderer_DrawComputesTransformChain(t *testing.T) {
	r, dev := newTestRenderer(t, Config{})
	require.NoError(t, r.Resize(1))

	model := mgl32.Translate3D(1, 2, 3)
	view := mgl32.LookAtV(mgl32.Vec3{0, 0, 10}, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0})
	proj := mgl32.Perspective(mgl32.DegToRad(45), 16.0/9.0, 0.1, 100)

	require.NoError(t, r.Draw(model, view, proj))

	prog := dev.draws[0].prog
	wantMV := view.Mul4(model)
	assert.Equal(t, wantMV, prog.uniforms["MV"])
	assert.Equal(t, proj.Mul4(wantMV), prog.uniforms["MVP"])
	assert.Equal(t, proj, prog.uniforms["P"])
}

func TestRenderer_SettersTakeEffectOnNextDraw(t *testing.T) {
	r, dev := newTestRenderer(t, Config{ParticleSize: 1.0, ScreenWidth: 100})
	require.NoError(t, r.Resize(1))

	ident := mgl32.Ident4()
	require.NoError(t, r.Draw(ident, ident, ident))
	r.SetParticleSize(5.0)
	r.SetScreenWidth(1920)
	r.SetColour(0, 1, 0)
	require.NoError(t, r.Draw(ident, ident, ident))

	prog := dev.draws[1].prog
	assert.Equal(t, float32(5.0), prog.uniforms["pointSize"])
	assert.Equal(t, float32(1920), prog.uniforms["screenWidth"])
	assert.Equal(t, mgl32.Vec3{0, 1, 0}, prog.uniforms["colour"])
	assert.Equal(t, float32(5.0), r.ParticleSize())
}

func TestRenderer_DrawWithZeroCapacityIsNoop(t *testing.T) {
	r, dev := newTestRenderer(t, Config{})

	ident := mgl32.Ident4()
	if err := r.Draw(ident, ident, ident); err != nil {
		t.Fatalf("Draw with zero capacity failed: %v", err)
	}
	if len(dev.draws) != 0 {
		t.Errorf("Expected no draw calls, got %d", len(dev.draws))
	}
	if r.Buffer() != nil {
		t.Errorf("Expected nil buffer while capacity is zero")
	}
}

func TestRenderer_DrawCMYKFromUsesExternalCount(t *testing.T) {
	r, dev := newTestRenderer(t, Config{})
	require.NoError(t, r.Resize(10))

	ext, err := dev.CreateBuffer(50)
	require.NoError(t, err)

	ident := mgl32.Ident4()
	require.NoError(t, r.DrawCMYKFrom(ext, 7, ident, ident, ident))

	require.Len(t, dev.draws, 1)
	d := dev.draws[0]
	assert.Equal(t, VariantCMYK, d.prog.variant)
	assert.Equal(t, 7, d.count, "external count is authoritative, never the internal one")
	assert.Same(t, ext, Buffer(d.buf))
	// the CMYK shader has no colour uniform
	_, hasColour := d.prog.uniforms["colour"]
	assert.False(t, hasColour)
}

func TestRenderer_DrawFromExternalBuffer(t *testing.T) {
	r, dev := newTestRenderer(t, Config{})

	ext, err := dev.CreateBuffer(3)
	require.NoError(t, err)

	ident := mgl32.Ident4()
	require.NoError(t, r.DrawFrom(ext, 3, ident, ident, ident))

	require.Len(t, dev.draws, 1)
	assert.Equal(t, VariantStandard, dev.draws[0].prog.variant)
	assert.Equal(t, 3, dev.draws[0].count)
}

func TestRenderer_MapPositionsNestedAcquireFails(t *testing.T) {
	r, _ := newTestRenderer(t, Config{})
	require.NoError(t, r.Resize(5))

	m, err := r.MapPositions()
	require.NoError(t, err)

	if _, err := r.MapPositions(); !errors.Is(err, ErrAlreadyMapped) {
		t.Errorf("Expected ErrAlreadyMapped on nested acquire, got %v", err)
	}

	require.NoError(t, m.Close())
	require.NoError(t, m.Close(), "Close must be idempotent")

	m2, err := r.MapPositions()
	require.NoError(t, err)
	require.NoError(t, m2.Close())
}

func TestRenderer_OperationsWhileMappedFail(t *testing.T) {
	r, _ := newTestRenderer(t, Config{})
	require.NoError(t, r.Resize(5))

	m, err := r.MapPositions()
	require.NoError(t, err)
	defer m.Close()

	ident := mgl32.Ident4()
	if err := r.Draw(ident, ident, ident); !errors.Is(err, ErrMapped) {
		t.Errorf("Expected ErrMapped from Draw, got %v", err)
	}
	if err := r.DrawFrom(r.Buffer(), 5, ident, ident, ident); !errors.Is(err, ErrMapped) {
		t.Errorf("Expected ErrMapped from DrawFrom, got %v", err)
	}
	if err := r.SetPositions([]mgl32.Vec3{{1, 1, 1}}); !errors.Is(err, ErrMapped) {
		t.Errorf("Expected ErrMapped from SetPositions, got %v", err)
	}
	if err := r.Resize(10); !errors.Is(err, ErrMapped) {
		t.Errorf("Expected ErrMapped from Resize, got %v", err)
	}
}

func TestRenderer_MapPositionsWithZeroCapacityFails(t *testing.T) {
	r, _ := newTestRenderer(t, Config{})
	if _, err := r.MapPositions(); err == nil {
		t.Errorf("Expected MapPositions to fail while capacity is zero")
	}
}

func TestRenderer_UpdatePositionsReleasesOnPanic(t *testing.T) {
	r, _ := newTestRenderer(t, Config{})
	require.NoError(t, r.Resize(3))

	func() {
		defer func() {
			if recover() == nil {
				t.Errorf("Expected the panic to propagate")
			}
		}()
		_ = r.UpdatePositions(func(positions []mgl32.Vec3) {
			panic("producer failure")
		})
	}()

	// the mapping must have been released on the panic path
	m, err := r.MapPositions()
	require.NoError(t, err)
	require.NoError(t, m.Close())
}

func TestRenderer_Scenario100ZeroedParticles(t *testing.T) {
	r, dev := newTestRenderer(t, Config{ParticleSize: 2.0})
	require.NoError(t, r.Resize(100))

	require.NoError(t, r.UpdatePositions(func(positions []mgl32.Vec3) {
		for i := range positions {
			positions[i] = mgl32.Vec3{0, 0, 0}
		}
	}))

	ident := mgl32.Ident4()
	require.NoError(t, r.Draw(ident, ident, ident))

	require.Len(t, dev.draws, 1)
	assert.Equal(t, 100, dev.draws[0].count)
	assert.Equal(t, float32(2.0), dev.draws[0].prog.uniforms["pointSize"])
	assert.Equal(t, 1, dev.draws[0].prog.binds)
}

func TestRenderer_ReleaseFreesResources(t *testing.T) {
	r, dev := newTestRenderer(t, Config{})
	require.NoError(t, r.Resize(8))

	r.Release()

	for _, p := range dev.programs {
		if !p.released {
			t.Errorf("Expected program to be released")
		}
	}
	for _, b := range dev.buffers {
		if !b.released {
			t.Errorf("Expected buffer to be released")
		}
	}
}
