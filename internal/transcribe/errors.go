package transcribe

import (
	"errors"
	"fmt"
)

// RemoteError is a failed call to the remote whisper service. Transient
// failures (network drops, rate limits, server errors) are worth retrying;
// anything else (auth, malformed audio) fails immediately.
type RemoteError struct {
	StatusCode int
	Transient  bool
	Err        error
}

func (e *RemoteError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("remote transcription failed (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("remote transcription failed: %v", e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is worth another attempt. Errors that
// carry no classification are treated as transient, matching how an
// unclassified network failure should behave.
func IsTransient(err error) bool {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Transient
	}
	return true
}
