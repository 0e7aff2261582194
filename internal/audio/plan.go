package audio

import "time"

// Default chunking parameters. The remote service caps uploads at 25 MB,
// so long recordings are transcribed as a sequence of overlapping windows.
const (
	DefaultChunkLength = 10 * time.Minute

	// DefaultOverlap is shared between adjacent windows so a word spoken
	// across a boundary lands whole in at least one of them.
	DefaultOverlap = 2 * time.Second
)

// Span is one time window of a larger audio stream.
type Span struct {
	Start time.Duration
	End   time.Duration
}

// Plan computes the ordered windows covering [0, total). Window i spans
// [max(0, i*chunkLen-overlap), min(total, i*chunkLen+chunkLen+overlap)],
// so every window except the first starts overlap early and every window
// except the last ends overlap late. A zero total yields no windows.
func Plan(total, chunkLen, overlap time.Duration) []Span {
	if total <= 0 || chunkLen <= 0 {
		return nil
	}
	if overlap < 0 {
		overlap = 0
	}

	var spans []Span
	for i := 0; time.Duration(i)*chunkLen < total; i++ {
		start := time.Duration(i)*chunkLen - overlap
		if start < 0 {
			start = 0
		}
		end := time.Duration(i)*chunkLen + chunkLen + overlap
		if end > total {
			end = total
		}
		spans = append(spans, Span{Start: start, End: end})
	}
	return spans
}
