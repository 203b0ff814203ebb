package audio

import "math"

// silenceFloorDB is reported for frames with no measurable energy.
const silenceFloorDB = -200

// LevelDB computes the RMS level of normalized samples in dBFS.
func LevelDB(samples []float32) float64 {
	if len(samples) == 0 {
		return silenceFloorDB
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	rms := math.Sqrt(sum / float64(len(samples)))
	if rms < 1e-10 {
		return silenceFloorDB
	}
	return 20 * math.Log10(rms)
}
