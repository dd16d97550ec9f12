package probability

import "math"

// Method names how a draw probability was computed.
type Method string

const (
	MethodHypergeometric Method = "hypergeometric"
	MethodMarginal       Method = "marginal"
)

// DrawProbability is the chance of seeing at least needed of successes tiles
// in draws draws from population tiles. Populations up to small use the exact
// hypergeometric tail; larger ones use the binomial approximation with
// p = successes/population, which for needed == 1 is 1-(1-k/N)^d.
func DrawProbability(population, successes, draws, needed, small int) (float64, Method) {
	method := MethodMarginal
	if population <= small {
		method = MethodHypergeometric
	}
	switch {
	case needed <= 0:
		return 1, method
	case population <= 0 || draws <= 0 || successes < needed:
		return 0, method
	}
	successes = min(successes, population)
	draws = min(draws, population)

	var miss float64
	if method == MethodHypergeometric {
		for i := 0; i < needed; i++ {
			miss += hypergeometricPMF(population, successes, draws, i)
		}
	} else {
		p := float64(successes) / float64(population)
		for i := 0; i < needed; i++ {
			miss += binomialPMF(draws, i, p)
		}
	}
	return clamp01(1 - miss), method
}

// ExpectedDraws is the mean number of draws until needed of successes tiles
// have appeared, -1 when there are not enough copies left.
func ExpectedDraws(population, successes, needed int) float64 {
	if needed <= 0 {
		return 0
	}
	if successes < needed || population <= 0 {
		return -1
	}
	return float64(needed) * float64(population+1) / float64(successes+1)
}

func hypergeometricPMF(n, k, d, i int) float64 {
	if i > k || d-i > n-k || i < 0 || d-i < 0 {
		return 0
	}
	return math.Exp(logChoose(k, i) + logChoose(n-k, d-i) - logChoose(n, d))
}

func binomialPMF(n, i int, p float64) float64 {
	if i < 0 || i > n {
		return 0
	}
	switch p {
	case 0:
		if i == 0 {
			return 1
		}
		return 0
	case 1:
		if i == n {
			return 1
		}
		return 0
	}
	return math.Exp(logChoose(n, i) + float64(i)*math.Log(p) + float64(n-i)*math.Log1p(-p))
}

func logChoose(n, k int) float64 {
	if k < 0 || k > n {
		return math.Inf(-1)
	}
	a, _ := math.Lgamma(float64(n + 1))
	b, _ := math.Lgamma(float64(k + 1))
	c, _ := math.Lgamma(float64(n - k + 1))
	return a - b - c
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
