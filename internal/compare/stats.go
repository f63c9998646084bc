package compare

import (
	"encoding/json"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// significanceThreshold is the |t| above which a difference is called
// significant. This is a large-sample approximation of the two-tailed 5%
// critical value and ignores the degrees of freedom; small batches will
// over-report significance. P is computed from the Student-t distribution
// for reference but does not drive the verdict. T uses unbiased sample
// variances, so it runs slightly smaller than a population-variance t.
const significanceThreshold = 2.0

// Descriptive holds summary statistics for one algorithm's final checkpoint
// retention rates across trials. Std is the population standard deviation.
type Descriptive struct {
	N    int     `json:"n"`
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
}

// Describe summarizes xs.
func Describe(xs []float64) (Descriptive, error) {
	if len(xs) == 0 {
		return Descriptive{}, &InsufficientSampleError{What: "retention rates", Need: 1}
	}
	mean, std := stat.PopMeanStdDev(xs, nil)
	return Descriptive{
		N:    len(xs),
		Mean: mean,
		Std:  std,
		Min:  floats.Min(xs),
		Max:  floats.Max(xs),
	}, nil
}

// Significance is the outcome of a Welch two-sample t statistic.
type Significance struct {
	T           float64 `json:"t"`
	DF          float64 `json:"df"`
	P           float64 `json:"p"`
	Significant bool    `json:"significant"`
	Threshold   float64 `json:"threshold"`
}

// MarshalJSON encodes an infinite t as a string, which JSON numbers cannot
// carry.
func (s Significance) MarshalJSON() ([]byte, error) {
	type plain Significance
	if !math.IsInf(s.T, 0) {
		return json.Marshal(plain(s))
	}
	return json.Marshal(struct {
		plain
		T string `json:"t"`
	}{plain(s), formatInf(s.T)})
}

func formatInf(v float64) string {
	if v > 0 {
		return "+Inf"
	}
	return "-Inf"
}

// Welch computes the unequal-variance t statistic for mean(a) - mean(b) using
// unbiased sample variances and Welch-Satterthwaite degrees of freedom. Each
// group needs at least two samples.
//
// When both variances are zero the standard error is zero: equal means give
// t = 0 and different means give an infinite t.
func Welch(a, b []float64) (Significance, error) {
	if len(a) < 2 {
		return Significance{}, &InsufficientSampleError{What: "welch group a", Have: len(a), Need: 2}
	}
	if len(b) < 2 {
		return Significance{}, &InsufficientSampleError{What: "welch group b", Have: len(b), Need: 2}
	}

	ma, va := stat.MeanVariance(a, nil)
	mb, vb := stat.MeanVariance(b, nil)
	na, nb := float64(len(a)), float64(len(b))

	qa, qb := va/na, vb/nb
	se := math.Sqrt(qa + qb)
	diff := ma - mb

	sig := Significance{Threshold: significanceThreshold}
	if se == 0 {
		sig.DF = na + nb - 2
		switch {
		case diff == 0:
			sig.T, sig.P = 0, 1
		default:
			sig.T, sig.P = math.Copysign(math.Inf(1), diff), 0
		}
		sig.Significant = math.Abs(sig.T) > significanceThreshold
		return sig, nil
	}

	sig.T = diff / se
	sig.DF = (qa + qb) * (qa + qb) / (qa*qa/(na-1) + qb*qb/(nb-1))
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: sig.DF}
	sig.P = 2 * dist.Survival(math.Abs(sig.T))
	sig.Significant = math.Abs(sig.T) > significanceThreshold
	return sig, nil
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// UnmarshalJSON accepts the string form MarshalJSON uses for an infinite t.
func (s *Significance) UnmarshalJSON(data []byte) error {
	type plain Significance
	var raw struct {
		plain
		T json.RawMessage `json:"t"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = Significance(raw.plain)
	if len(raw.T) == 0 {
		return nil
	}
	var str string
	if err := json.Unmarshal(raw.T, &str); err == nil {
		switch str {
		case "+Inf":
			s.T = math.Inf(1)
		case "-Inf":
			s.T = math.Inf(-1)
		default:
			return fmt.Errorf("significance: bad t %q", str)
		}
		return nil
	}
	return json.Unmarshal(raw.T, &s.T)
}
