package audio

import "fmt"

// UnreadableAudioError reports an input file that cannot be opened or
// decoded. It wraps the underlying cause so callers can still inspect it.
type UnreadableAudioError struct {
	Path string
	Err  error
}

func (e *UnreadableAudioError) Error() string {
	return fmt.Sprintf("audio file %s is not readable: %v", e.Path, e.Err)
}

func (e *UnreadableAudioError) Unwrap() error {
	return e.Err
}
