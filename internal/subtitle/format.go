// Package subtitle renders plain transcription text as SRT or WebVTT.
//
// Timing is synthetic: each line gets a fixed 3-second display window.
// The remote service returns no per-word timestamps on the chunked path,
// so these cues are placeholders, not aligned to the audio.
package subtitle

import (
	"fmt"
	"strings"
	"time"
)

// lineWindow is the display duration assigned to each subtitle line.
const lineWindow = 3 * time.Second

// Known output formats for a transcription result.
const (
	FormatText = "text"
	FormatSRT  = "srt"
	FormatVTT  = "vtt"
)

// ValidFormat reports whether format is one of text, srt or vtt.
func ValidFormat(format string) bool {
	switch format {
	case FormatText, FormatSRT, FormatVTT:
		return true
	}
	return false
}

// Extension returns the output file extension for a format.
func Extension(format string) string {
	switch format {
	case FormatSRT:
		return "srt"
	case FormatVTT:
		return "vtt"
	default:
		return "txt"
	}
}

// Render converts text into the requested format. Unknown formats pass
// the text through unchanged.
func Render(text, format string) string {
	switch format {
	case FormatSRT:
		return ToSRT(text)
	case FormatVTT:
		return ToVTT(text)
	default:
		return text
	}
}

// ToSRT numbers each non-empty trimmed line of text as an SRT entry with
// a 3-second window: entry i spans [(i-1)*3s, i*3s).
func ToSRT(text string) string {
	var b strings.Builder
	idx := 0
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		idx++
		if idx > 1 {
			b.WriteString("\n")
		}
		start := time.Duration(idx-1) * lineWindow
		end := time.Duration(idx) * lineWindow
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n", idx, timestamp(start), timestamp(end), line)
	}
	return b.String()
}

// ToVTT is ToSRT with the WebVTT header prepended.
func ToVTT(text string) string {
	return "WEBVTT\n\n" + ToSRT(text)
}

// timestamp renders a duration as HH:MM:SS,mmm.
func timestamp(d time.Duration) string {
	ms := d.Milliseconds()
	h := ms / 3600000
	ms %= 3600000
	m := ms / 60000
	ms %= 60000
	s := ms / 1000
	ms %= 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}
