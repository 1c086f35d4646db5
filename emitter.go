package pointfield

import (
	"math"
	"math/rand"
	"time"

	"github.com/go-gl/mathgl/mgl32"
)

// EmitterConfig controls a CPU-simulated fountain emitter. The emitter is
// a position producer for a Renderer; it never touches the GPU itself.
type EmitterConfig struct {
	MaxParticles int

	SpawnRate     float32    // particles per second
	LifetimeRange [2]float32 // seconds (min,max)
	SpeedRange    [2]float32 // units/sec (min,max)

	Origin      mgl32.Vec3
	Orientation mgl32.Quat // rotates the emitter up axis (0,1,0)

	ConeAngleDegrees float32 // 0=along the up axis; larger spreads
	Gravity          float32 // acceleration along -Y (units/s^2)
	Drag             float32 // per-second linear drag

	Seed int64 // 0 means time-based
}

// Emitter simulates a pool of short-lived particles (SoA layout,
// swap-remove on death) and exposes the live positions for upload.
type Emitter struct {
	cfg EmitterConfig
	rng *rand.Rand

	pos  []mgl32.Vec3
	vel  []mgl32.Vec3
	age  []float32
	life []float32

	alive    int
	spawnAcc float32 // fractional spawns accumulator
}

func NewEmitter(cfg EmitterConfig) *Emitter {
	if cfg.MaxParticles <= 0 {
		cfg.MaxParticles = 1
	}
	if cfg.Orientation == (mgl32.Quat{}) {
		cfg.Orientation = mgl32.QuatIdent()
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	n := cfg.MaxParticles
	return &Emitter{
		cfg:  cfg,
		rng:  rand.New(rand.NewSource(seed)),
		pos:  make([]mgl32.Vec3, n),
		vel:  make([]mgl32.Vec3, n),
		age:  make([]float32, n),
		life: make([]float32, n),
	}
}

// Alive reports the number of live particles.
func (e *Emitter) Alive() int { return e.alive }

// Positions is the live particle positions, valid until the next Step.
func (e *Emitter) Positions() []mgl32.Vec3 { return e.pos[:e.alive] }

// Step advances the simulation by dt seconds: spawns according to the
// spawn rate, integrates gravity and drag, retires expired particles.
func (e *Emitter) Step(dt float32) {
	if dt <= 0 {
		return
	}

	// spawn
	e.spawnAcc += e.cfg.SpawnRate * dt
	spawnCount := int(e.spawnAcc)
	if spawnCount > 0 {
		e.spawnAcc -= float32(spawnCount)
	}
	if spawnCount > e.cfg.MaxParticles-e.alive {
		spawnCount = e.cfg.MaxParticles - e.alive
	}
	for i := 0; i < spawnCount; i++ {
		idx := e.alive
		e.alive++

		e.pos[idx] = e.cfg.Origin
		dir := e.sampleDirection()
		speed := lerp(e.cfg.SpeedRange[0], e.cfg.SpeedRange[1], e.rng.Float32())
		e.vel[idx] = dir.Mul(speed)
		e.age[idx] = 0
		e.life[idx] = lerp(e.cfg.LifetimeRange[0], e.cfg.LifetimeRange[1], e.rng.Float32())
	}

	// integrate
	drag := float32(math.Max(0, float64(1.0-e.cfg.Drag*dt)))
	i := 0
	for i < e.alive {
		v := e.vel[i]
		v = v.Add(mgl32.Vec3{0, -e.cfg.Gravity * dt, 0})
		v = v.Mul(drag)
		p := e.pos[i].Add(v.Mul(dt))

		age := e.age[i] + dt
		if age >= e.life[i] {
			e.killAt(i)
			continue
		}

		e.vel[i] = v
		e.pos[i] = p
		e.age[i] = age
		i++
	}
}

// swap-remove one particle
func (e *Emitter) killAt(i int) {
	last := e.alive - 1
	e.pos[i] = e.pos[last]
	e.vel[i] = e.vel[last]
	e.age[i] = e.age[last]
	e.life[i] = e.life[last]
	e.alive--
}

// Sample a direction in a cone around the emitter's up axis (0,1,0),
// rotated by the emitter orientation. Uniform over the cone.
func (e *Emitter) sampleDirection() mgl32.Vec3 {
	axis := mgl32.Vec3{0, 1, 0}
	coneDeg := e.cfg.ConeAngleDegrees
	if coneDeg <= 0.0 {
		return e.cfg.Orientation.Rotate(axis).Normalize()
	}
	thetaMax := float32(math.Pi) * (coneDeg / 180.0)
	u := e.rng.Float32()
	v := e.rng.Float32()
	cosTheta := lerp(float32(math.Cos(float64(thetaMax))), 1.0, u)
	sinTheta := float32(math.Sqrt(float64(1.0 - cosTheta*cosTheta)))
	phi := 2.0 * float32(math.Pi) * v

	// local basis where Y is the cone axis
	local := mgl32.Vec3{
		float32(math.Cos(float64(phi))) * sinTheta,
		cosTheta,
		float32(math.Sin(float64(phi))) * sinTheta,
	}
	return e.cfg.Orientation.Rotate(local).Normalize()
}

func lerp(a, b, t float32) float32 { return a + (b-a)*t }
