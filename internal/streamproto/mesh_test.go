package streamproto

import (
	"encoding/binary"
	"errors"
	"testing"

	"landmass/internal/meshing"
	"landmass/internal/noise"
)

func testMesh(t testing.TB, level int) *meshing.Mesh {
	t.Helper()
	p := noise.DefaultParams()
	h := noise.Generate(17, 17, p)
	return meshing.BuildMesh(h, 12, nil, level)
}

func TestMeshFrameRoundTrip(t *testing.T) {
	m := testMesh(t, 1)
	frame, err := EncodeMesh(-3, 7, m)
	if err != nil {
		t.Fatalf("EncodeMesh: %v", err)
	}

	got, err := DecodeMesh(frame)
	if err != nil {
		t.Fatalf("DecodeMesh: %v", err)
	}
	if got.CX != -3 || got.CY != 7 {
		t.Errorf("coord = (%d,%d)", got.CX, got.CY)
	}
	dm := got.Mesh
	if dm.Cols != m.Cols || dm.Rows != m.Rows || dm.DetailLevel != 1 {
		t.Fatalf("shape %dx%d L%d", dm.Cols, dm.Rows, dm.DetailLevel)
	}
	for i := range m.Vertices {
		if dm.Vertices[i] != m.Vertices[i] || dm.Normals[i] != m.Normals[i] || dm.UVs[i] != m.UVs[i] {
			t.Fatalf("vertex %d differs", i)
		}
	}
	for i := range m.Indices {
		if dm.Indices[i] != m.Indices[i] {
			t.Fatalf("index %d differs", i)
		}
	}
}

func TestMeshFrameCompresses(t *testing.T) {
	h := &noise.HeightMap{Width: 65, Height: 65, Values: make([]float32, 65*65)}
	m := meshing.BuildMesh(h, 1, nil, 0)
	frame, err := EncodeMesh(0, 0, m)
	if err != nil {
		t.Fatal(err)
	}
	raw := headerSize + m.VertexCount()*8*4 + len(m.Indices)*4
	if len(frame) >= raw {
		t.Errorf("frame %d bytes, raw %d", len(frame), raw)
	}
}

func TestEncodeMeshRejectsInconsistentMesh(t *testing.T) {
	m := testMesh(t, 0)
	m.Normals = m.Normals[:1]
	if _, err := EncodeMesh(0, 0, m); err == nil {
		t.Errorf("mismatched attribute lengths accepted")
	}
	if _, err := EncodeMesh(0, 0, nil); err == nil {
		t.Errorf("nil mesh accepted")
	}
}

func TestDecodeMeshRejectsBadFrames(t *testing.T) {
	good, err := EncodeMesh(1, 2, testMesh(t, 2))
	if err != nil {
		t.Fatal(err)
	}
	raw, err := decoder().DecodeAll(good, nil)
	if err != nil {
		t.Fatal(err)
	}

	mutate := func(f func(b []byte) []byte) []byte {
		b := append([]byte(nil), raw...)
		return encoder().EncodeAll(f(b), nil)
	}

	cases := map[string][]byte{
		"not zstd":  []byte("hello world"),
		"empty":     nil,
		"truncated": mutate(func(b []byte) []byte { return b[:len(b)-4] }),
		"header":    mutate(func(b []byte) []byte { return b[:10] }),
		"magic":     mutate(func(b []byte) []byte { b[0] = 'X'; return b }),
		"version": mutate(func(b []byte) []byte {
			binary.LittleEndian.PutUint16(b[4:], 9)
			return b
		}),
		"counts": mutate(func(b []byte) []byte {
			binary.LittleEndian.PutUint32(b[16:], 1000) // cols
			return b
		}),
		"index range": mutate(func(b []byte) []byte {
			binary.LittleEndian.PutUint32(b[len(b)-4:], 1<<20)
			return b
		}),
	}
	for name, frame := range cases {
		if _, err := DecodeMesh(frame); !errors.Is(err, ErrBadFrame) {
			t.Errorf("%s: err = %v, want ErrBadFrame", name, err)
		}
	}
}

func BenchmarkEncodeMeshFullChunk(b *testing.B) {
	h := noise.Generate(241, 241, noise.DefaultParams())
	m := meshing.BuildMesh(h, 20, nil, 0)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := EncodeMesh(0, 0, m); err != nil {
			b.Fatal(err)
		}
	}
}
