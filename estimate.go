package speechgate

import (
	"io"
	"math"
)

// DefaultMinChargeSeconds is the smallest charge applied to any cloud-served clip.
// Empty or unreadable clips still consume it, so zero-length uploads cannot be
// used to stay under the quota forever.
const DefaultMinChargeSeconds = 15.0

// Duration returns frames/sampleRate in seconds, or 0 for a non-positive rate.
func Duration(frames int64, sampleRate int) float64 {
	if sampleRate <= 0 || frames <= 0 {
		return 0
	}
	return float64(frames) / float64(sampleRate)
}

// ChargeSeconds applies the floor to a clip duration.
func ChargeSeconds(duration, floor float64) float64 {
	if math.IsNaN(duration) || duration < floor {
		return floor
	}
	return duration
}

// EstimateCharge decodes the WAV header from r and returns the seconds to charge.
// It never fails: anything it cannot parse is charged the floor.
func EstimateCharge(r io.ReadSeeker, floor float64) float64 {
	h, err := decodeHeader(r)
	if err != nil {
		return floor
	}
	return ChargeSeconds(Duration(h.frames, h.sampleRate), floor)
}
