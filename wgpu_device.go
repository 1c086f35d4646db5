package pointfield

import (
	"fmt"
	"unsafe"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/pointfield3d/pointfield/shaders"
)

// spriteUniforms matches the SpriteUniforms block in sprite.wgsl.
type spriteUniforms struct {
	MV          mgl32.Mat4
	MVP         mgl32.Mat4
	Proj        mgl32.Mat4
	Colour      [4]float32
	PointSize   float32
	ScreenWidth float32
	Pad         [2]float32
}

// symbolic uniform locations for the WebGPU backend; the whole block is
// uploaded at once so locations select struct fields, not byte offsets
const (
	wgpuLocMV int32 = iota
	wgpuLocMVP
	wgpuLocP
	wgpuLocColour
	wgpuLocPointSize
	wgpuLocScreenWidth
)

const (
	// one 256-byte-aligned uniform slot per draw, reset each frame
	uniformSlotBytes   = 256
	maxDrawsPerFrame   = 64
	uniformBufferBytes = uniformSlotBytes * maxDrawsPerFrame
)

// WGPUDevice is the WebGPU backend. Sprites are expanded to camera-facing
// quads in the vertex stage since point-list primitives are a single
// pixel in WebGPU.
type WGPUDevice struct {
	log Logger

	surface       *wgpu.Surface
	adapter       *wgpu.Adapter
	device        *wgpu.Device
	queue         *wgpu.Queue
	surfaceConfig *wgpu.SurfaceConfiguration

	bindGroupLayout *wgpu.BindGroupLayout
	bindGroup       *wgpu.BindGroup
	uniformBuf      *wgpu.Buffer

	// per-frame state between BeginFrame and EndFrame
	frameView    *wgpu.TextureView
	frameEncoder *wgpu.CommandEncoder
	framePass    *wgpu.RenderPassEncoder
	frameDraws   int
}

// NewWGPUDevice creates a surface for win (which must have been opened
// with APINone) and allocates the device, queue and the shared uniform
// ring.
func NewWGPUDevice(win *Window, log Logger) (*WGPUDevice, error) {
	if log == nil {
		log = NewNopLogger()
	}

	instance := wgpu.CreateInstance(nil)
	defer instance.Release()

	surface := instance.CreateSurface(wgpuglfw.GetSurfaceDescriptor(win.Handle()))

	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: surface,
		PowerPreference:   wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		return nil, fmt.Errorf("request adapter: %w", err)
	}

	device, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Pointfield Device",
	})
	if err != nil {
		return nil, fmt.Errorf("request device: %w", err)
	}
	queue := device.GetQueue()

	width, height := win.Size()
	caps := surface.GetCapabilities(adapter)
	surfaceConfig := wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      caps.Formats[0],
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: wgpu.PresentModeFifo, // vsync
		AlphaMode:   caps.AlphaModes[0],
	}
	surface.Configure(adapter, device, &surfaceConfig)

	d := &WGPUDevice{
		log:           log,
		surface:       surface,
		adapter:       adapter,
		device:        device,
		queue:         queue,
		surfaceConfig: &surfaceConfig,
	}

	d.uniformBuf, err = device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "SpriteUniformRing",
		Size:  uniformBufferBytes,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create uniform ring buffer: %w", err)
	}

	d.bindGroupLayout, err = device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "SpriteUniformsBGL",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageVertex | wgpu.ShaderStageFragment,
				Buffer: wgpu.BufferBindingLayout{
					Type:             wgpu.BufferBindingTypeUniform,
					MinBindingSize:   uint64(unsafe.Sizeof(spriteUniforms{})),
					HasDynamicOffset: true,
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create bind group layout: %w", err)
	}

	d.bindGroup, err = device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "SpriteUniformsBG",
		Layout: d.bindGroupLayout,
		Entries: []wgpu.BindGroupEntry{
			{
				Binding: 0,
				Buffer:  d.uniformBuf,
				Size:    uint64(unsafe.Sizeof(spriteUniforms{})),
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create bind group: %w", err)
	}

	log.Infof("WebGPU device ready: surface %dx%d", width, height)
	return d, nil
}

// WGPUBuffer holds particle positions in a vertex buffer. Mapped writes
// are staged CPU-side and flushed to the GPU on unmap.
type WGPUBuffer struct {
	buf      *wgpu.Buffer
	capacity int
	staging  []mgl32.Vec3
	mapped   bool
}

func (b *WGPUBuffer) Capacity() int { return b.capacity }

func (b *WGPUBuffer) Release() {
	if b.buf != nil {
		b.buf.Release()
		b.buf = nil
	}
	b.capacity = 0
	b.staging = nil
}

func (d *WGPUDevice) CreateBuffer(n int) (Buffer, error) {
	if n <= 0 {
		return nil, fmt.Errorf("pointfield: buffer capacity must be positive, got %d", n)
	}
	buf, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "ParticlePositions",
		Size:  uint64(n * vec3Bytes),
		Usage: wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("allocate position buffer of %d vectors: %w", n, err)
	}
	return &WGPUBuffer{buf: buf, capacity: n}, nil
}

func (d *WGPUDevice) WriteBuffer(buf Buffer, data []mgl32.Vec3) error {
	b, err := d.wgpuBuffer(buf)
	if err != nil {
		return err
	}
	if len(data) > b.capacity {
		return fmt.Errorf("%w: %d positions, capacity %d", ErrCapacityExceeded, len(data), b.capacity)
	}
	if len(data) == 0 {
		return nil
	}
	if err := d.queue.WriteBuffer(b.buf, 0, wgpu.ToBytes(data)); err != nil {
		return fmt.Errorf("write %d positions: %w", len(data), err)
	}
	// keep the staging copy coherent for later mapped writes
	if b.staging != nil {
		copy(b.staging, data)
	}
	return nil
}

func (d *WGPUDevice) MapBuffer(buf Buffer) ([]mgl32.Vec3, error) {
	b, err := d.wgpuBuffer(buf)
	if err != nil {
		return nil, err
	}
	if b.mapped {
		return nil, ErrAlreadyMapped
	}
	if b.staging == nil {
		b.staging = make([]mgl32.Vec3, b.capacity)
	}
	b.mapped = true
	return b.staging, nil
}

func (d *WGPUDevice) UnmapBuffer(buf Buffer) error {
	b, err := d.wgpuBuffer(buf)
	if err != nil {
		return err
	}
	if !b.mapped {
		return nil
	}
	b.mapped = false
	if err := d.queue.WriteBuffer(b.buf, 0, wgpu.ToBytes(b.staging)); err != nil {
		return fmt.Errorf("flush mapped positions: %w", err)
	}
	return nil
}

func (d *WGPUDevice) CompileVariant(v ShaderVariant) (Program, error) {
	shader, err := d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "SpriteShader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.SpriteWGSL},
	})
	if err != nil {
		return nil, fmt.Errorf("compile sprite WGSL: %w", err)
	}
	defer shader.Release()

	pipelineLayout, err := d.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		BindGroupLayouts: []*wgpu.BindGroupLayout{d.bindGroupLayout},
	})
	if err != nil {
		return nil, fmt.Errorf("create pipeline layout: %w", err)
	}
	defer pipelineLayout.Release()

	fragEntry := "fs_standard"
	if v == VariantCMYK {
		fragEntry = "fs_cmyk"
	}

	pipeline, err := d.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  fmt.Sprintf("SpritePipeline-%s", v),
		Layout: pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     shader,
			EntryPoint: "vs_main",
			Buffers: []wgpu.VertexBufferLayout{
				{
					ArrayStride: vec3Bytes,
					StepMode:    wgpu.VertexStepModeInstance,
					Attributes: []wgpu.VertexAttribute{
						{
							Format:         wgpu.VertexFormatFloat32x3,
							Offset:         0,
							ShaderLocation: 0,
						},
					},
				},
			},
		},
		Fragment: &wgpu.FragmentState{
			Module:     shader,
			EntryPoint: fragEntry,
			Targets: []wgpu.ColorTargetState{
				{
					Format:    d.surfaceConfig.Format,
					Blend:     nil,
					WriteMask: wgpu.ColorWriteMaskAll,
				},
			},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone, // billboards face the camera by construction
		},
		Multisample: wgpu.MultisampleState{
			Count:                  1,
			Mask:                   0xFFFFFFFF,
			AlphaToCoverageEnabled: false,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create %s sprite pipeline: %w", v, err)
	}

	d.log.Debugf("%s sprite pipeline created", v)
	return &WGPUProgram{dev: d, pipeline: pipeline}, nil
}

// BeginFrame acquires the next surface texture and opens a render pass
// that clears it.
func (d *WGPUDevice) BeginFrame() error {
	if d.framePass != nil {
		return fmt.Errorf("pointfield: BeginFrame called twice without EndFrame")
	}
	nextTexture, err := d.surface.GetCurrentTexture()
	if err != nil {
		return fmt.Errorf("acquire surface texture: %w", err)
	}
	view, err := nextTexture.CreateView(nil)
	if err != nil {
		return fmt.Errorf("create surface view: %w", err)
	}
	encoder, err := d.device.CreateCommandEncoder(nil)
	if err != nil {
		view.Release()
		return fmt.Errorf("create command encoder: %w", err)
	}

	d.frameView = view
	d.frameEncoder = encoder
	d.framePass = encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:       view,
				LoadOp:     wgpu.LoadOpClear,
				StoreOp:    wgpu.StoreOpStore,
				ClearValue: wgpu.Color{R: 0.1, G: 0.2, B: 0.3, A: 1.0},
			},
		},
	})
	d.frameDraws = 0
	return nil
}

// EndFrame closes the render pass, submits the frame and presents it.
func (d *WGPUDevice) EndFrame() error {
	if d.framePass == nil {
		return fmt.Errorf("pointfield: EndFrame called without BeginFrame")
	}
	pass := d.framePass
	encoder := d.frameEncoder
	view := d.frameView
	d.framePass = nil
	d.frameEncoder = nil
	d.frameView = nil

	defer view.Release()
	defer encoder.Release()
	defer pass.Release()

	if err := pass.End(); err != nil {
		return fmt.Errorf("end render pass: %w", err)
	}
	cmdBuffer, err := encoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("finish command encoder: %w", err)
	}
	defer cmdBuffer.Release()

	d.queue.Submit(cmdBuffer)
	d.surface.Present()
	return nil
}

func (d *WGPUDevice) DrawPoints(prog Program, buf Buffer, count int) error {
	p, ok := prog.(*WGPUProgram)
	if !ok {
		return fmt.Errorf("pointfield: program was not created by this WebGPU device")
	}
	b, err := d.wgpuBuffer(buf)
	if err != nil {
		return err
	}
	if count <= 0 {
		return nil
	}
	if d.framePass == nil {
		return fmt.Errorf("pointfield: DrawPoints outside BeginFrame/EndFrame")
	}
	if d.frameDraws >= maxDrawsPerFrame {
		return fmt.Errorf("pointfield: more than %d draws in one frame", maxDrawsPerFrame)
	}

	offset := d.frameDraws * uniformSlotBytes
	d.frameDraws++
	if err := d.queue.WriteBuffer(d.uniformBuf, uint64(offset), wgpu.ToBytes([]spriteUniforms{p.uniforms})); err != nil {
		return fmt.Errorf("upload sprite uniforms: %w", err)
	}

	d.framePass.SetPipeline(p.pipeline)
	d.framePass.SetBindGroup(0, d.bindGroup, []uint32{uint32(offset)})
	d.framePass.SetVertexBuffer(0, b.buf, 0, wgpu.WholeSize)
	// six quad vertices per particle instance
	d.framePass.Draw(6, uint32(count), 0, 0)
	return nil
}

func (d *WGPUDevice) Release() {
	if d.bindGroup != nil {
		d.bindGroup.Release()
	}
	if d.bindGroupLayout != nil {
		d.bindGroupLayout.Release()
	}
	if d.uniformBuf != nil {
		d.uniformBuf.Release()
	}
	if d.device != nil {
		d.device.Release()
	}
	if d.adapter != nil {
		d.adapter.Release()
	}
	if d.surface != nil {
		d.surface.Release()
	}
	d.log.Debugf("WebGPU device released")
}

func (d *WGPUDevice) wgpuBuffer(buf Buffer) (*WGPUBuffer, error) {
	b, ok := buf.(*WGPUBuffer)
	if !ok || b.buf == nil {
		return nil, fmt.Errorf("pointfield: buffer was not created by this WebGPU device")
	}
	return b, nil
}

// WGPUProgram pairs a render pipeline with a CPU-side uniform block that
// is uploaded to the next free ring slot on each draw.
type WGPUProgram struct {
	dev      *WGPUDevice
	pipeline *wgpu.RenderPipeline
	uniforms spriteUniforms
}

// Bind is a no-op; the pipeline is set per draw inside the render pass.
func (p *WGPUProgram) Bind() {}

func (p *WGPUProgram) UniformLocation(name string) (int32, error) {
	switch name {
	case "MV":
		return wgpuLocMV, nil
	case "MVP":
		return wgpuLocMVP, nil
	case "P":
		return wgpuLocP, nil
	case "colour":
		return wgpuLocColour, nil
	case "pointSize":
		return wgpuLocPointSize, nil
	case "screenWidth":
		return wgpuLocScreenWidth, nil
	}
	return 0, fmt.Errorf("uniform %q not found", name)
}

func (p *WGPUProgram) SetFloat(loc int32, v float32) {
	switch loc {
	case wgpuLocPointSize:
		p.uniforms.PointSize = v
	case wgpuLocScreenWidth:
		p.uniforms.ScreenWidth = v
	}
}

func (p *WGPUProgram) SetVec3(loc int32, v mgl32.Vec3) {
	if loc == wgpuLocColour {
		p.uniforms.Colour = [4]float32{v.X(), v.Y(), v.Z(), 1}
	}
}

func (p *WGPUProgram) SetMat4(loc int32, m mgl32.Mat4) {
	switch loc {
	case wgpuLocMV:
		p.uniforms.MV = m
	case wgpuLocMVP:
		p.uniforms.MVP = m
	case wgpuLocP:
		p.uniforms.Proj = m
	}
}

func (p *WGPUProgram) Release() {
	if p.pipeline != nil {
		p.pipeline.Release()
		p.pipeline = nil
	}
}
