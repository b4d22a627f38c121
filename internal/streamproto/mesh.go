package streamproto

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/klauspost/compress/zstd"

	"landmass/internal/meshing"
)

// ErrBadFrame is returned for binary frames that cannot be decoded.
var ErrBadFrame = errors.New("streamproto: bad mesh frame")

// Binary mesh frame, little endian, compressed as a whole with zstd:
//
//	magic "LMSH" | version u16 | detail level u16 | cx i32 | cy i32
//	cols u32 | rows u32 | vertex count u32 | index count u32
//	positions [n]f32x3 | normals [n]f32x3 | uvs [n]f32x2 | indices [m]u32
const (
	frameMagic   = "LMSH"
	FrameVersion = 1

	headerSize = 4 + 2 + 2 + 4*2 + 4*4

	// 64 MiB is well above a full 241x241 chunk.
	maxFrameSize = 64 << 20
)

// MeshFrame is a decoded chunk mesh.
type MeshFrame struct {
	CX, CY int
	Mesh   *meshing.Mesh
}

type frameHeader struct {
	Magic       [4]byte
	Version     uint16
	DetailLevel uint16
	CX, CY      int32
	Cols, Rows  uint32
	NumVertices uint32
	NumIndices  uint32
}

var (
	encOnce sync.Once
	enc     *zstd.Encoder
	decOnce sync.Once
	dec     *zstd.Decoder
)

func encoder() *zstd.Encoder {
	encOnce.Do(func() {
		enc, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	})
	return enc
}

func decoder() *zstd.Decoder {
	decOnce.Do(func() {
		dec, _ = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxFrameSize))
	})
	return dec
}

// EncodeMesh serializes and compresses the mesh of chunk (cx, cy).
func EncodeMesh(cx, cy int, m *meshing.Mesh) ([]byte, error) {
	if m == nil {
		return nil, errors.New("streamproto: nil mesh")
	}
	n := len(m.Vertices)
	if len(m.Normals) != n || len(m.UVs) != n {
		return nil, fmt.Errorf("streamproto: mesh attributes differ in length: %d/%d/%d", n, len(m.Normals), len(m.UVs))
	}

	h := frameHeader{
		Version:     FrameVersion,
		DetailLevel: uint16(m.DetailLevel),
		CX:          int32(cx),
		CY:          int32(cy),
		Cols:        uint32(m.Cols),
		Rows:        uint32(m.Rows),
		NumVertices: uint32(n),
		NumIndices:  uint32(len(m.Indices)),
	}
	copy(h.Magic[:], frameMagic)

	var buf bytes.Buffer
	buf.Grow(headerSize + n*8*4 + len(m.Indices)*4)
	for _, v := range []any{h, m.Vertices, m.Normals, m.UVs, m.Indices} {
		if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
			return nil, err
		}
	}
	return encoder().EncodeAll(buf.Bytes(), nil), nil
}

// DecodeMesh reverses EncodeMesh. Every malformed input yields an error wrapping
// ErrBadFrame.
func DecodeMesh(frame []byte) (MeshFrame, error) {
	raw, err := decoder().DecodeAll(frame, nil)
	if err != nil {
		return MeshFrame{}, fmt.Errorf("%w: %v", ErrBadFrame, err)
	}
	if len(raw) < headerSize {
		return MeshFrame{}, fmt.Errorf("%w: short header (%d bytes)", ErrBadFrame, len(raw))
	}

	r := bytes.NewReader(raw)
	var h frameHeader
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return MeshFrame{}, fmt.Errorf("%w: %v", ErrBadFrame, err)
	}
	if string(h.Magic[:]) != frameMagic {
		return MeshFrame{}, fmt.Errorf("%w: magic %q", ErrBadFrame, h.Magic[:])
	}
	if h.Version != FrameVersion {
		return MeshFrame{}, fmt.Errorf("%w: version %d", ErrBadFrame, h.Version)
	}

	n, ni := uint64(h.NumVertices), uint64(h.NumIndices)
	if uint64(h.Cols)*uint64(h.Rows) != n || ni%3 != 0 {
		return MeshFrame{}, fmt.Errorf("%w: inconsistent counts", ErrBadFrame)
	}
	if want := uint64(headerSize) + n*8*4 + ni*4; want != uint64(len(raw)) {
		return MeshFrame{}, fmt.Errorf("%w: payload is %d bytes, want %d", ErrBadFrame, len(raw), want)
	}

	m := &meshing.Mesh{
		Vertices:    make([]mgl32.Vec3, n),
		Normals:     make([]mgl32.Vec3, n),
		UVs:         make([]mgl32.Vec2, n),
		Indices:     make([]uint32, ni),
		Cols:        int(h.Cols),
		Rows:        int(h.Rows),
		DetailLevel: int(h.DetailLevel),
	}
	for _, v := range []any{m.Vertices, m.Normals, m.UVs, m.Indices} {
		if err := binary.Read(r, binary.LittleEndian, v); err != nil {
			return MeshFrame{}, fmt.Errorf("%w: %v", ErrBadFrame, err)
		}
	}
	for _, idx := range m.Indices {
		if uint64(idx) >= n {
			return MeshFrame{}, fmt.Errorf("%w: index %d out of range", ErrBadFrame, idx)
		}
	}
	return MeshFrame{CX: int(h.CX), CY: int(h.CY), Mesh: m}, nil
}
