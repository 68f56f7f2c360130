package track

import (
	"time"
)

// PrepareSamples turns a raw recorded lap into samples usable by NewLapInterpolator.
//
// The track's spline offset is applied to every position (wrapping past 1.0), leading
// samples recorded before the start line (position >= 0.1 after correction) are skipped,
// consecutive duplicate positions or times are dropped and the lap is cut at the first
// decreasing position. The result always starts at (0, 0) and ends at position 1.0,
// extrapolating the last segment if needed.
func PrepareSamples(raw []Sample, splinePosOffset float64) []Sample {
	out := make([]Sample, 0, len(raw)+2)
	out = append(out, Sample{Pos: 0, Time: 0})

	i := 0
	for ; i < len(raw); i++ {
		if wrapPos(raw[i].Pos+splinePosOffset) < 0.1 {
			break
		}
	}

	for ; i < len(raw); i++ {
		p := wrapPos(raw[i].Pos + splinePosOffset)
		t := raw[i].Time
		last := out[len(out)-1]
		if p == last.Pos || t == last.Time {
			continue
		}
		if p < last.Pos || p > 1.0 {
			break
		}
		out = append(out, Sample{Pos: p, Time: t})
	}

	if len(out) < 2 {
		return out
	}

	if last := out[len(out)-1]; last.Pos != 1.0 {
		prev := out[len(out)-2]
		slope := float64(last.Time-prev.Time) / (last.Pos - prev.Pos)
		out = append(out, Sample{Pos: 1.0, Time: prev.Time + time.Duration((1.0-prev.Pos)*slope)})
	}
	return out
}

func wrapPos(p float64) float64 {
	if p > 1.0 {
		return p - 1.0
	}
	return p
}
