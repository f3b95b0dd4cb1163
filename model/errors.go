package model

import (
	"fmt"
	"time"
)

// InputValidationError is returned when the caller omitted or emptied a
// required field. Nothing has been processed when it is returned.
type InputValidationError struct {
	Field   string
	Message string
}

func (e *InputValidationError) Error() string {
	return e.Message
}

var _ error = (*InputValidationError)(nil)

// ConfigurationError marks an operator fault: a missing default cover, an
// ambiguous cover secret, a missing encoder or a missing preset value.
type ConfigurationError struct {
	Message string
	Err     error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

var _ error = (*ConfigurationError)(nil)

// TranscodeTimeoutError is returned when the encoder exceeded its time budget.
// The encoder process has been killed by the time the error is seen.
type TranscodeTimeoutError struct {
	Timeout time.Duration
}

func (e *TranscodeTimeoutError) Error() string {
	return fmt.Sprintf("transcode timed out after %s", e.Timeout)
}

var _ error = (*TranscodeTimeoutError)(nil)

// TranscodeFailedError carries the tail of the encoder's diagnostic output.
type TranscodeFailedError struct {
	ExitCode    int
	Diagnostics string
	Err         error
}

func (e *TranscodeFailedError) Error() string {
	if e.Diagnostics == "" {
		return "FFmpeg failed"
	}
	return "FFmpeg failed: " + e.Diagnostics
}

func (e *TranscodeFailedError) Unwrap() error {
	return e.Err
}

var _ error = (*TranscodeFailedError)(nil)

// TagWriteFailedError wraps any failure while building or saving the ID3 tag.
type TagWriteFailedError struct {
	Op  string
	Err error
}

func (e *TagWriteFailedError) Error() string {
	return fmt.Sprintf("tag write failed (%s): %v", e.Op, e.Err)
}

func (e *TagWriteFailedError) Unwrap() error {
	return e.Err
}

var _ error = (*TagWriteFailedError)(nil)
