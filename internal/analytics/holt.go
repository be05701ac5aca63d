package analytics

import "math"

// minFitPoints is the shortest history the trend model is fitted on; shorter
// histories project the last value flat.
const minFitPoints = 7

const gridStep = 0.05

// holtForecast projects horizon values with Holt's additive-trend
// exponential smoothing. Smoothing weights are chosen by grid search on the
// one-step-ahead squared error.
func holtForecast(y []float64, horizon int) []float64 {
	if len(y) < minFitPoints {
		last := 0.0
		if len(y) > 0 {
			last = y[len(y)-1]
		}
		return flat(last, horizon)
	}

	bestAlpha, bestBeta := 0.5, 0.1
	bestSSE := math.Inf(1)
	for alpha := gridStep; alpha < 1; alpha += gridStep {
		for beta := gridStep; beta < 1; beta += gridStep {
			_, _, sse := holtFit(y, alpha, beta)
			if sse < bestSSE {
				bestSSE, bestAlpha, bestBeta = sse, alpha, beta
			}
		}
	}

	level, trend, sse := holtFit(y, bestAlpha, bestBeta)
	if math.IsNaN(sse) || math.IsInf(sse, 0) {
		return flat(y[len(y)-1], horizon)
	}
	out := make([]float64, horizon)
	for k := range out {
		out[k] = level + float64(k+1)*trend
	}
	return out
}

// holtFit runs the smoothing recursion and returns the final state and SSE.
func holtFit(y []float64, alpha, beta float64) (level, trend, sse float64) {
	level = y[0]
	trend = y[1] - y[0]
	for t := 1; t < len(y); t++ {
		predicted := level + trend
		err := y[t] - predicted
		sse += err * err

		prevLevel := level
		level = alpha*y[t] + (1-alpha)*(level+trend)
		trend = beta*(level-prevLevel) + (1-beta)*trend
	}
	return level, trend, sse
}

func flat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}
