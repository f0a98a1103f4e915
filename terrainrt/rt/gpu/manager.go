package gpu

import (
	"fmt"

	"github.com/gekko3d/terrastream/terrainrt/rt/core"

	"github.com/cogentcore/webgpu/wgpu"
)

// BufferManager creates and reuses the device resources of one compute program.
type BufferManager struct {
	Device *wgpu.Device
}

func NewBufferManager(device *wgpu.Device) *BufferManager {
	return &BufferManager{Device: device}
}

// ensureBuffer makes *buf at least size bytes, replacing it when it is missing or too small.
// It reports whether a new buffer was created.
func (m *BufferManager) ensureBuffer(name string, buf **wgpu.Buffer, size uint64, usage wgpu.BufferUsage) (bool, error) {
	if size%4 != 0 {
		size += 4 - (size % 4)
	}
	current := *buf
	if current != nil && current.GetSize() >= size {
		return false, nil
	}
	if current != nil {
		current.Release()
		*buf = nil
	}
	newBuf, err := m.Device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            name,
		Size:             size,
		Usage:            usage,
		MappedAtCreation: false,
	})
	if err != nil {
		return false, core.Exhausted("create "+name, err)
	}
	*buf = newBuf
	return true, nil
}

func (m *BufferManager) write(buf *wgpu.Buffer, data []byte) {
	m.Device.GetQueue().WriteBuffer(buf, 0, data)
}

func releaseBuffer(buf **wgpu.Buffer) {
	if *buf != nil {
		(*buf).Release()
		*buf = nil
	}
}

// computePipeline builds a pipeline with an auto layout from WGSL source.
func (m *BufferManager) computePipeline(label, code string) (*wgpu.ComputePipeline, error) {
	module, err := m.Device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          label,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: code},
	})
	if err != nil {
		return nil, core.Exhausted("create shader module "+label, err)
	}
	defer module.Release()

	pipeline, err := m.Device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label: label,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     module,
			EntryPoint: "main",
		},
	})
	if err != nil {
		return nil, core.Exhausted("create pipeline "+label, err)
	}
	return pipeline, nil
}

// bindBuffers binds buffers to consecutive bindings of group 0.
func (m *BufferManager) bindBuffers(label string, pipeline *wgpu.ComputePipeline, buffers ...*wgpu.Buffer) (*wgpu.BindGroup, error) {
	layout := pipeline.GetBindGroupLayout(0)
	if layout == nil {
		return nil, fmt.Errorf("%s: pipeline has no bind group 0", label)
	}
	defer layout.Release()

	entries := make([]wgpu.BindGroupEntry, len(buffers))
	for i, b := range buffers {
		entries[i] = wgpu.BindGroupEntry{
			Binding: uint32(i),
			Buffer:  b,
			Size:    wgpu.WholeSize,
		}
	}
	bg, err := m.Device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   label,
		Layout:  layout,
		Entries: entries,
	})
	if err != nil {
		return nil, core.Exhausted("create bind group "+label, err)
	}
	return bg, nil
}

// submit records fn into a fresh encoder and submits it.
func (m *BufferManager) submit(label string, fn func(enc *wgpu.CommandEncoder) error) error {
	encoder, err := m.Device.CreateCommandEncoder(nil)
	if err != nil {
		return core.Exhausted(label+": create command encoder", err)
	}
	defer encoder.Release()

	if err := fn(encoder); err != nil {
		return err
	}
	cmd, err := encoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("%s: finish encoder: %w", label, err)
	}
	defer cmd.Release()
	m.Device.GetQueue().Submit(cmd)
	return nil
}

func dispatch(enc *wgpu.CommandEncoder, pipeline *wgpu.ComputePipeline, bg *wgpu.BindGroup, workgroups uint32) error {
	pass := enc.BeginComputePass(nil)
	pass.SetPipeline(pipeline)
	pass.SetBindGroup(0, bg, nil)
	pass.DispatchWorkgroups(workgroups, 1, 1)
	return pass.End()
}
