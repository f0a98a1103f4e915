package app

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gekko3d/terrastream/terrainrt/rt/core"
	"github.com/gekko3d/terrastream/terrainrt/rt/gpu"
	"github.com/gekko3d/terrastream/terrainrt/rt/shaders"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"
)

const CameraUniformSize = 96

// clipDepth maps OpenGL clip depth [-1, 1] to WebGPU's [0, 1].
var clipDepth = mgl32.Mat4{
	1, 0, 0, 0,
	0, 1, 0, 0,
	0, 0, 0.5, 0,
	0, 0, 0.5, 1,
}

// PackCamera encodes
//
//	struct Camera {
//	  view_proj: mat4x4<f32>;    -- 0
//	  light_dir: vec4<f32>;      -- 64
//	  height_range: vec4<f32>;   -- 80
//	} -> 96 bytes
func PackCamera(viewProj mgl32.Mat4, lightDir mgl32.Vec3, minH, maxH float32) []byte {
	buf := make([]byte, CameraUniformSize)
	for i, v := range viewProj {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	for k := 0; k < 3; k++ {
		binary.LittleEndian.PutUint32(buf[64+k*4:], math.Float32bits(lightDir[k]))
	}
	binary.LittleEndian.PutUint32(buf[80:], math.Float32bits(minH))
	binary.LittleEndian.PutUint32(buf[84:], math.Float32bits(maxH))
	return buf
}

// Renderer draws resident chunk meshes into a glfw window.
type Renderer struct {
	Window *glfw.Window
	Camera *CameraState
	Device *gpu.Device
	Light  mgl32.Vec3
	Edge   uint32
	MinH   float32
	MaxH   float32

	// Drawn and Culled count chunks of the last frame.
	Drawn  int
	Culled int

	instance  *wgpu.Instance
	surface   *wgpu.Surface
	config    *wgpu.SurfaceConfiguration
	pipeline  *wgpu.RenderPipeline
	cameraBuf *wgpu.Buffer
	bindGroup *wgpu.BindGroup
	depthTex  *wgpu.Texture
	depthView *wgpu.TextureView
}

func NewRenderer(window *glfw.Window, camera *CameraState, edge uint32, minH, maxH float32) (*Renderer, error) {
	r := &Renderer{
		Window: window,
		Camera: camera,
		Light:  mgl32.Vec3{-0.4, -1, -0.3}.Normalize(),
		Edge:   edge,
		MinH:   minH,
		MaxH:   maxH,
	}
	r.instance = wgpu.CreateInstance(nil)
	r.surface = r.instance.CreateSurface(wgpuglfw.GetSurfaceDescriptor(window))

	dev, err := gpu.Open(r.instance, r.surface)
	if err != nil {
		r.Release()
		return nil, err
	}
	r.Device = dev

	width, height := window.GetFramebufferSize()
	caps := r.surface.GetCapabilities(dev.Adapter)
	r.config = &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      caps.Formats[0],
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: wgpu.PresentModeFifo,
		AlphaMode:   caps.AlphaModes[0],
	}
	r.surface.Configure(dev.Adapter, dev.Device, r.config)

	if err := r.createPipeline(); err != nil {
		r.Release()
		return nil, err
	}
	if err := r.createDepth(); err != nil {
		r.Release()
		return nil, err
	}
	return r, nil
}

func (r *Renderer) createPipeline() error {
	device := r.Device.Device
	module, err := device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          "Chunk Render",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: shaders.ChunkRenderWGSL},
	})
	if err != nil {
		return core.Exhausted("create chunk shader", err)
	}
	defer module.Release()

	bgl, err := device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label: "Chunk Camera BGL",
		Entries: []wgpu.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: wgpu.ShaderStageVertex | wgpu.ShaderStageFragment,
				Buffer: wgpu.BufferBindingLayout{
					Type:           wgpu.BufferBindingTypeUniform,
					MinBindingSize: CameraUniformSize,
				},
			},
		},
	})
	if err != nil {
		return core.Exhausted("create chunk bind group layout", err)
	}
	defer bgl.Release()

	layout, err := device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		BindGroupLayouts: []*wgpu.BindGroupLayout{bgl},
	})
	if err != nil {
		return core.Exhausted("create chunk pipeline layout", err)
	}
	defer layout.Release()

	r.pipeline, err = device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  "Chunk Pipeline",
		Layout: layout,
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: "vs_main",
			Buffers: []wgpu.VertexBufferLayout{
				{
					ArrayStride: core.VertexStride,
					StepMode:    wgpu.VertexStepModeVertex,
					Attributes: []wgpu.VertexAttribute{
						{Format: wgpu.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
						{Format: wgpu.VertexFormatFloat32x3, Offset: 16, ShaderLocation: 1},
					},
				},
			},
		},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: "fs_main",
			Targets: []wgpu.ColorTargetState{
				{
					Format:    r.config.Format,
					WriteMask: wgpu.ColorWriteMaskAll,
				},
			},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		DepthStencil: &wgpu.DepthStencilState{
			Format:            wgpu.TextureFormatDepth32Float,
			DepthWriteEnabled: true,
			DepthCompare:      wgpu.CompareFunctionLess,
			StencilFront: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
			StencilBack: wgpu.StencilFaceState{
				Compare: wgpu.CompareFunctionAlways,
			},
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return core.Exhausted("create chunk pipeline", err)
	}

	r.cameraBuf, err = device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "Chunk Camera UB",
		Size:  CameraUniformSize,
		Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return core.Exhausted("create camera buffer", err)
	}

	r.bindGroup, err = device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  "Chunk Camera BG",
		Layout: r.pipeline.GetBindGroupLayout(0),
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: r.cameraBuf, Size: wgpu.WholeSize},
		},
	})
	if err != nil {
		return core.Exhausted("create camera bind group", err)
	}
	return nil
}

func (r *Renderer) createDepth() error {
	if r.depthView != nil {
		r.depthView.Release()
		r.depthView = nil
	}
	if r.depthTex != nil {
		r.depthTex.Release()
		r.depthTex = nil
	}
	var err error
	r.depthTex, err = r.Device.Device.CreateTexture(&wgpu.TextureDescriptor{
		Label: "Chunk Depth",
		Size: wgpu.Extent3D{
			Width:              r.config.Width,
			Height:             r.config.Height,
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        wgpu.TextureFormatDepth32Float,
		Usage:         wgpu.TextureUsageRenderAttachment,
	})
	if err != nil {
		return core.Exhausted("create depth texture", err)
	}
	r.depthView, err = r.depthTex.CreateView(nil)
	if err != nil {
		return core.Exhausted("create depth view", err)
	}
	return nil
}

// Resize reconfigures the surface after a framebuffer change.
func (r *Renderer) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return nil
	}
	r.config.Width = uint32(width)
	r.config.Height = uint32(height)
	r.surface.Configure(r.Device.Adapter, r.Device.Device, r.config)
	return r.createDepth()
}

// Render draws every resident mesh that carries device buffers and survives frustum culling.
func (r *Renderer) Render(resident *core.Cache[core.Mesh]) error {
	aspect := float32(r.config.Width) / float32(max(r.config.Height, 1))
	viewProj := r.Camera.ProjectionMatrix(aspect).Mul4(r.Camera.ViewMatrix())
	planes := ExtractFrustum(viewProj)
	r.Device.Queue.WriteBuffer(r.cameraBuf, 0, PackCamera(clipDepth.Mul4(viewProj), r.Light, r.MinH, r.MaxH))

	next, err := r.surface.GetCurrentTexture()
	if err != nil {
		return fmt.Errorf("get current texture: %w", err)
	}
	defer next.Release()
	view, err := next.CreateView(nil)
	if err != nil {
		return fmt.Errorf("create surface view: %w", err)
	}
	defer view.Release()

	encoder, err := r.Device.Device.CreateCommandEncoder(nil)
	if err != nil {
		return core.Exhausted("create command encoder", err)
	}
	defer encoder.Release()

	pass := encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		ColorAttachments: []wgpu.RenderPassColorAttachment{{
			View:       view,
			LoadOp:     wgpu.LoadOpClear,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: wgpu.Color{R: 0.55, G: 0.7, B: 0.9, A: 1},
		}},
		DepthStencilAttachment: &wgpu.RenderPassDepthStencilAttachment{
			View:            r.depthView,
			DepthLoadOp:     wgpu.LoadOpClear,
			DepthStoreOp:    wgpu.StoreOpDiscard,
			DepthClearValue: 1.0,
		},
	})
	pass.SetPipeline(r.pipeline)
	pass.SetBindGroup(0, r.bindGroup, nil)

	r.Drawn, r.Culled = 0, 0
	resident.Range(func(_ core.ChunkKey, m core.Mesh) bool {
		gm, ok := m.(*gpu.Mesh)
		if !ok || gm.VertexBuffer() == nil {
			return true
		}
		if !ChunkVisible(planes, gm.Coord(), r.Edge, r.MinH, r.MaxH) {
			r.Culled++
			return true
		}
		pass.SetVertexBuffer(0, gm.VertexBuffer(), 0, wgpu.WholeSize)
		pass.SetIndexBuffer(gm.IndexBuffer(), wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
		pass.DrawIndexed(gm.IndexCount(), 1, 0, 0, 0)
		r.Drawn++
		return true
	})
	if err := pass.End(); err != nil {
		return fmt.Errorf("chunk pass: %w", err)
	}

	cmd, err := encoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("finish encoder: %w", err)
	}
	defer cmd.Release()
	r.Device.Queue.Submit(cmd)
	r.surface.Present()
	return nil
}

func (r *Renderer) Release() {
	if r.bindGroup != nil {
		r.bindGroup.Release()
	}
	if r.cameraBuf != nil {
		r.cameraBuf.Release()
	}
	if r.pipeline != nil {
		r.pipeline.Release()
	}
	if r.depthView != nil {
		r.depthView.Release()
	}
	if r.depthTex != nil {
		r.depthTex.Release()
	}
	if r.Device != nil {
		r.Device.Release()
	}
	if r.surface != nil {
		r.surface.Release()
	}
	if r.instance != nil {
		r.instance.Release()
	}
}
