package meshing

import "github.com/go-gl/mathgl/mgl32"

const (
	MinDetailLevel = 0
	MaxDetailLevel = 6
)

// Mesh is an indexed triangle surface. Vertices, UVs and Normals are parallel;
// Indices holds one triple per triangle.
type Mesh struct {
	Vertices []mgl32.Vec3
	UVs      []mgl32.Vec2
	Normals  []mgl32.Vec3
	Indices  []uint32

	// Cols and Rows count sub-sampled vertices per row and per column.
	Cols, Rows  int
	DetailLevel int
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Vertices)
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// ClampDetailLevel pulls level into [MinDetailLevel, MaxDetailLevel].
func ClampDetailLevel(level int) int {
	return min(max(level, MinDetailLevel), MaxDetailLevel)
}

// Stride is the sampling step for a detail level: max(1, 2*level).
func Stride(level int) int {
	return max(1, ClampDetailLevel(level)*2)
}

// VerticesPerLine is how many samples a line of n grid points keeps at a detail level.
func VerticesPerLine(n, level int) int {
	if n < 1 {
		return 0
	}
	return (n-1)/Stride(level) + 1
}

// addTriangle appends one triangle to the index buffer.
func (m *Mesh) addTriangle(a, b, c int) {
	m.Indices = append(m.Indices, uint32(a), uint32(b), uint32(c))
}

// recalculateNormals sets every vertex normal to the normalized sum of the unit
// normals of the triangles touching it. Vertices with no usable triangle point up.
func (m *Mesh) recalculateNormals() {
	normals := make([]mgl32.Vec3, len(m.Vertices))
	for i := 0; i+2 < len(m.Indices); i += 3 {
		a, b, c := m.Indices[i], m.Indices[i+1], m.Indices[i+2]
		n := faceNormal(m.Vertices[a], m.Vertices[b], m.Vertices[c])
		if n == (mgl32.Vec3{}) {
			continue
		}
		normals[a] = normals[a].Add(n)
		normals[b] = normals[b].Add(n)
		normals[c] = normals[c].Add(n)
	}
	for i, n := range normals {
		if n.Len() == 0 {
			normals[i] = mgl32.Vec3{0, 1, 0}
			continue
		}
		normals[i] = n.Normalize()
	}
	m.Normals = normals
}

// faceNormal returns the unit normal of triangle (v0, v1, v2), or zero for a degenerate face.
func faceNormal(v0, v1, v2 mgl32.Vec3) mgl32.Vec3 {
	n := v1.Sub(v0).Cross(v2.Sub(v0))
	if n.Len() == 0 {
		return mgl32.Vec3{}
	}
	return n.Normalize()
}
