package library

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Metric selects the vector distance function.
type Metric string

const (
	// MetricCosine is 1 - cosine similarity.
	MetricCosine Metric = "cosine"
	// MetricL2 is Euclidean distance.
	MetricL2 Metric = "l2"
)

// ParseMetric validates a metric name.
func ParseMetric(name string) (Metric, error) {
	switch Metric(name) {
	case MetricCosine, MetricL2:
		return Metric(name), nil
	case "":
		return MetricCosine, nil
	default:
		return "", fmt.Errorf("unknown vector metric %q", name)
	}
}

// Distance returns the distance between two equal-length vectors.
func (m Metric) Distance(a, b []float32) float64 {
	if m == MetricL2 {
		var sum float64
		for i := range a {
			d := float64(a[i]) - float64(b[i])
			sum += d * d
		}
		return math.Sqrt(sum)
	}

	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

// EncodeVector packs v as little-endian float32, 4 bytes per component.
func EncodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

// DecodeVector unpacks a blob written by EncodeVector.
func DecodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("vector blob length %d is not a multiple of 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, nil
}
