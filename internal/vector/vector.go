// Package vector implements the fixed-width style vector codec: packing,
// unpacking, checksum and L2 norm computation (SPEC_FULL.md §4.2).
package vector

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"

	"github.com/tracerun/coreruntime/internal/runtimeerr"
)

// Dim is the fixed vector dimension D.
const Dim = 128

// Encode packs a D-length float32 vector as little-endian IEEE-754 bytes.
// It does not validate length; callers that need the invariant enforced
// should call Validate first.
func Encode(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// Decode unpacks bytes into a float32 vector. It returns VectorDimension if
// the byte length is not a multiple of 4.
func Decode(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, runtimeerr.Wrap(runtimeerr.KindVectorDimension,
			"packed vector length not a multiple of 4", nil)
	}
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out, nil
}

// Validate enforces that v has exactly Dim elements and contains no
// NaN/Inf values.
func Validate(v []float32) error {
	if len(v) != Dim {
		return runtimeerr.Wrap(runtimeerr.KindVectorDimension,
			"vector does not have exactly D elements", nil)
	}
	for _, f := range v {
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return runtimeerr.Wrap(runtimeerr.KindVectorDimension,
				"vector contains non-finite value", nil)
		}
	}
	return nil
}

// L2Norm computes sqrt(sum(x_i^2)).
func L2Norm(v []float32) float64 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return math.Sqrt(sum)
}

// Checksum computes the SHA-256 hex digest over the packed concatenation of
// (stroke, image, temporal), in that fixed order, skipping any nil vector.
// This matches the StyleDNA.checksum invariant in SPEC_FULL.md §3/§4.2.
func Checksum(stroke, image, temporal []float32) string {
	h := sha256.New()
	for _, v := range [][]float32{stroke, image, temporal} {
		if v == nil {
			continue
		}
		h.Write(Encode(v))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// VerifyChecksum recomputes Checksum over the given vectors and compares it
// to want. An empty want is treated as "nothing to verify" (true).
func VerifyChecksum(want string, stroke, image, temporal []float32) bool {
	if want == "" {
		return true
	}
	return Checksum(stroke, image, temporal) == want
}
