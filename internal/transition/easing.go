package transition

import (
	"math"

	"vidforge/internal/domain"
)

// Ease maps normalized progress t in [0,1] to a blend weight using the
// named curve. Out-of-range inputs are clamped.
func Ease(kind domain.EasingType, t float64) float64 {
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}
	switch kind {
	case domain.EaseIn:
		return t * t
	case domain.EaseOut:
		return 1 - (1-t)*(1-t)
	case domain.EaseInOut:
		if t < 0.5 {
			return 2 * t * t
		}
		return 1 - 2*(1-t)*(1-t)
	case domain.EaseBounce:
		return bounceOut(t)
	case domain.EaseElastic:
		return elasticOut(t)
	default:
		return t
	}
}

// bounceOut is the standard four-segment bounce curve.
func bounceOut(t float64) float64 {
	const n1, d1 = 7.5625, 2.75
	switch {
	case t < 1/d1:
		return n1 * t * t
	case t < 2/d1:
		t -= 1.5 / d1
		return n1*t*t + 0.75
	case t < 2.5/d1:
		t -= 2.25 / d1
		return n1*t*t + 0.9375
	default:
		t -= 2.625 / d1
		return n1*t*t + 0.984375
	}
}

// elasticOut is a closed-form damped oscillation settling at 1.
func elasticOut(t float64) float64 {
	const c4 = 2 * math.Pi / 3
	return math.Pow(2, -10*t)*math.Sin((t*10-0.75)*c4) + 1
}

// SampleCurve evaluates the easing curve at n evenly spaced points from 0
// to 1 inclusive. Renderers consume the samples; no interpolation happens
// at render time here.
func SampleCurve(kind domain.EasingType, n int) []float64 {
	if n < 2 {
		n = 2
	}
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = Ease(kind, float64(i)/float64(n-1))
	}
	return samples
}
