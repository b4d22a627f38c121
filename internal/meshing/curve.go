package meshing

import "sort"

// Curve remaps a normalized height in [0,1] to a shaping factor.
type Curve interface {
	Evaluate(t float32) float32
}

// CurveFunc adapts a plain function to Curve.
type CurveFunc func(t float32) float32

func (f CurveFunc) Evaluate(t float32) float32 { return f(t) }

// Linear is the identity curve.
var Linear Curve = CurveFunc(func(t float32) float32 { return t })

// Keyframe is one control point of a KeyframeCurve. Tangents are slopes (dValue/dTime).
type Keyframe struct {
	Time       float32
	Value      float32
	InTangent  float32
	OutTangent float32
}

// KeyframeCurve is a piecewise cubic Hermite curve through its keys.
// Outside the key range it holds the first/last value.
type KeyframeCurve struct {
	keys []Keyframe
}

// NewKeyframeCurve sorts a copy of keys by time.
func NewKeyframeCurve(keys ...Keyframe) *KeyframeCurve {
	k := make([]Keyframe, len(keys))
	copy(k, keys)
	sort.SliceStable(k, func(i, j int) bool { return k[i].Time < k[j].Time })
	return &KeyframeCurve{keys: k}
}

// Keys returns a copy of the sorted keys.
func (c *KeyframeCurve) Keys() []Keyframe {
	out := make([]Keyframe, len(c.keys))
	copy(out, c.keys)
	return out
}

func (c *KeyframeCurve) Evaluate(t float32) float32 {
	n := len(c.keys)
	switch {
	case n == 0:
		return t
	case n == 1 || t <= c.keys[0].Time:
		return c.keys[0].Value
	case t >= c.keys[n-1].Time:
		return c.keys[n-1].Value
	}

	// first key strictly after t
	i := sort.Search(n, func(i int) bool { return c.keys[i].Time > t })
	k0, k1 := c.keys[i-1], c.keys[i]
	dt := k1.Time - k0.Time
	if dt <= 0 {
		return k1.Value
	}

	s := (t - k0.Time) / dt
	s2 := s * s
	s3 := s2 * s

	h00 := 2*s3 - 3*s2 + 1
	h10 := s3 - 2*s2 + s
	h01 := -2*s3 + 3*s2
	h11 := s3 - s2

	return h00*k0.Value + h10*dt*k0.OutTangent + h01*k1.Value + h11*dt*k1.InTangent
}
