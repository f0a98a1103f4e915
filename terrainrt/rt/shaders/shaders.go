package shaders

import (
	_ "embed"
)

//go:embed terrain_gen.wgsl
var TerrainGenWGSL string

//go:embed ray_intersect.wgsl
var RayIntersectWGSL string

//go:embed chunk_render.wgsl
var ChunkRenderWGSL string
