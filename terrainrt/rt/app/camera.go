package app

import (
	"math"

	"github.com/gekko3d/terrastream/terrainrt/rt/core"

	"github.com/go-gl/mathgl/mgl32"
)

// CameraState is a Y-up fly camera over the terrain.
type CameraState struct {
	Position    mgl32.Vec3
	Yaw         float32
	Pitch       float32
	Speed       float32
	Sensitivity float32
	Fov         float32
	Near        float32
	Far         float32
}

func NewCameraState() *CameraState {
	return &CameraState{
		Position:    mgl32.Vec3{0, 12, 0},
		Pitch:       -0.35,
		Speed:       10.0,
		Sensitivity: 0.003,
		Fov:         60,
		Near:        0.1,
		Far:         1000,
	}
}

func (c *CameraState) Forward() mgl32.Vec3 {
	return mgl32.Vec3{
		float32(math.Cos(float64(c.Pitch)) * math.Sin(float64(c.Yaw))),
		float32(math.Sin(float64(c.Pitch))),
		float32(-math.Cos(float64(c.Pitch)) * math.Cos(float64(c.Yaw))),
	}
}

// Right lies in the XZ plane.
func (c *CameraState) Right() mgl32.Vec3 {
	return mgl32.Vec3{
		float32(math.Cos(float64(c.Yaw))),
		0,
		float32(math.Sin(float64(c.Yaw))),
	}
}

func (c *CameraState) ViewMatrix() mgl32.Mat4 {
	eye := c.Position
	return mgl32.LookAtV(eye, eye.Add(c.Forward()), mgl32.Vec3{0, 1, 0})
}

func (c *CameraState) ProjectionMatrix(aspect float32) mgl32.Mat4 {
	return mgl32.Perspective(mgl32.DegToRad(c.Fov), aspect, c.Near, c.Far)
}

func (c *CameraState) ClampPitch() {
	const limit = 1.5
	if c.Pitch > limit {
		c.Pitch = limit
	}
	if c.Pitch < -limit {
		c.Pitch = -limit
	}
}

// ExtractFrustum returns the Left, Right, Bottom, Top, Near, Far planes of vp, normalized,
// as Ax + By + Cz + D = 0.
func ExtractFrustum(vp mgl32.Mat4) [6]mgl32.Vec4 {
	var planes [6]mgl32.Vec4
	row := func(r int) mgl32.Vec4 {
		return mgl32.Vec4{vp.At(r, 0), vp.At(r, 1), vp.At(r, 2), vp.At(r, 3)}
	}
	r0, r1, r2, r3 := row(0), row(1), row(2), row(3)
	planes[0] = r3.Add(r0)
	planes[1] = r3.Sub(r0)
	planes[2] = r3.Add(r1)
	planes[3] = r3.Sub(r1)
	planes[4] = r3.Add(r2)
	planes[5] = r3.Sub(r2)

	for i := range planes {
		l := planes[i].Vec3().Len()
		if l > 0 {
			planes[i] = planes[i].Mul(1 / l)
		}
	}
	return planes
}

// ChunkVisible tests the chunk's bounding box, spanning [minH, maxH] vertically, against the
// frustum planes.
func ChunkVisible(planes [6]mgl32.Vec4, corner core.ChunkCoord, edge uint32, minH, maxH float32) bool {
	lo := mgl32.Vec3{float32(corner.X), minH, float32(corner.Z)}
	hi := mgl32.Vec3{float32(corner.X) + float32(edge), maxH, float32(corner.Z) + float32(edge)}
	for _, p := range planes {
		// Farthest corner along the plane normal.
		v := lo
		for k := 0; k < 3; k++ {
			if p[k] >= 0 {
				v[k] = hi[k]
			}
		}
		if p.Vec3().Dot(v)+p[3] < 0 {
			return false
		}
	}
	return true
}
