package recovery

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

const (
	// SpikeSigma is the deviation, in population standard deviations,
	// that opens a spike segment.
	SpikeSigma = 4.0
	// ClipSigma is the deviation above which samples inside an open
	// segment are replaced by the mean.
	ClipSigma = 3.0
)

// Clip reports what one OutlierRecovery pass replaced.
type Clip struct {
	Start    int     // index of the first 4σ violation, -1 when none
	Replaced int     // samples set to Mean
	Mean     float64 // replacement value
	StdDev   float64 // population standard deviation before clipping
}

// OutlierRecovery finds the first sample deviating from the mean by more
// than 4σ and, scanning forward from it, replaces every sample beyond 3σ
// with the mean until one falls back within 3σ. Only the first spike
// segment is handled per call; disjoint spikes need further calls.
func OutlierRecovery(data []float64) Clip {
	clip := Clip{Start: -1}
	if len(data) == 0 {
		return clip
	}

	mean, std := stat.PopMeanStdDev(data, nil)
	clip.Mean, clip.StdDev = mean, std

	for i, v := range data {
		if math.Abs(v-mean) <= SpikeSigma*std {
			continue
		}
		clip.Start = i
		for j := i; j < len(data) && math.Abs(data[j]-mean) > ClipSigma*std; j++ {
			data[j] = mean
			clip.Replaced++
		}
		break
	}
	return clip
}
