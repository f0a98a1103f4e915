// Package gpu is the wgpu backend: chunk generation and ray queries as compute programs, with
// results brought back to host memory through mapped staging buffers.
package gpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// Device bundles the wgpu handles shared by the generator, the query and the renderer.
type Device struct {
	Instance *wgpu.Instance
	Adapter  *wgpu.Adapter
	Device   *wgpu.Device
	Queue    *wgpu.Queue

	ownsInstance bool
}

// Open requests an adapter and device. A nil instance creates one; surface may be nil for
// headless use.
func Open(instance *wgpu.Instance, surface *wgpu.Surface) (*Device, error) {
	d := &Device{Instance: instance}
	if d.Instance == nil {
		d.Instance = wgpu.CreateInstance(nil)
		d.ownsInstance = true
	}

	adapter, err := d.Instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: surface,
		PowerPreference:   wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		d.Release()
		return nil, fmt.Errorf("request adapter: %w", err)
	}
	d.Adapter = adapter

	d.Device, err = adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Terrain Device",
	})
	if err != nil {
		d.Release()
		return nil, fmt.Errorf("request device: %w", err)
	}
	d.Queue = d.Device.GetQueue()
	return d, nil
}

func (d *Device) Release() {
	d.Queue = nil
	if d.Device != nil {
		d.Device.Release()
		d.Device = nil
	}
	if d.Adapter != nil {
		d.Adapter.Release()
		d.Adapter = nil
	}
	if d.ownsInstance && d.Instance != nil {
		d.Instance.Release()
		d.Instance = nil
	}
}
