package meshing

import (
	"landmass/internal/noise"
	"landmass/internal/profiling"

	"github.com/go-gl/mathgl/mgl32"
)

// BuildMesh converts a height map into a centered surface mesh.
//
// Samples are taken every Stride(detailLevel) cells. A sample (x, y) becomes the
// vertex (x - (w-1)/2, curve(h)*heightScale, (h-1)/2 - y), so the surface is centered
// on the origin with +z pointing "up" the map. Every sample that is not on the last
// kept row or column starts a quad split into the triangles (A, D, C) and (D, A, B),
// where B is right of A, C is below A and D is below B. Both face +y on flat input.
//
// A nil curve is treated as Linear.
func BuildMesh(h *noise.HeightMap, heightScale float32, curve Curve, detailLevel int) *Mesh {
	defer profiling.Track("meshing.BuildMesh")()

	if curve == nil {
		curve = Linear
	}
	level := ClampDetailLevel(detailLevel)
	stride := Stride(level)

	width, height := h.Width, h.Height
	cols := VerticesPerLine(width, level)
	rows := VerticesPerLine(height, level)

	topLeftX := float32(width-1) / -2
	topLeftZ := float32(height-1) / 2

	m := &Mesh{
		Vertices:    make([]mgl32.Vec3, 0, cols*rows),
		UVs:         make([]mgl32.Vec2, 0, cols*rows),
		Indices:     make([]uint32, 0, max(cols-1, 0)*max(rows-1, 0)*6),
		Cols:        cols,
		Rows:        rows,
		DetailLevel: level,
	}

	vertexIndex := 0
	for row, y := 0, 0; y < height; row, y = row+1, y+stride {
		for col, x := 0, 0; x < width; col, x = col+1, x+stride {
			m.Vertices = append(m.Vertices, mgl32.Vec3{
				topLeftX + float32(x),
				curve.Evaluate(h.At(x, y)) * heightScale,
				topLeftZ - float32(y),
			})
			m.UVs = append(m.UVs, mgl32.Vec2{
				float32(x) / float32(width),
				float32(y) / float32(height),
			})

			if col < cols-1 && row < rows-1 {
				a := vertexIndex
				b := a + 1
				c := a + cols
				d := c + 1
				m.addTriangle(a, d, c)
				m.addTriangle(d, a, b)
			}
			vertexIndex++
		}
	}

	m.recalculateNormals()
	return m
}
