package envelope

import (
	"errors"
	"fmt"
)

// ErrDecode matches every failure to open a sealed payload. Callers must
// treat it as "this session cannot be resumed", never as "no session".
var ErrDecode = errors.New("envelope: cannot decode session")

// ErrInvalidPayload is returned by Seal for a payload that would not survive
// the JSON encoding unchanged.
var ErrInvalidPayload = errors.New("envelope: invalid payload")

// Stage names the step of Open that failed.
type Stage string

const (
	StageTag      Stage = "tag"
	StageEncoding Stage = "encoding"
	StageCipher   Stage = "cipher"
	StagePayload  Stage = "payload"
)

// DecodeError is the typed decode failure.
type DecodeError struct {
	Stage Stage
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("envelope: decode failed at %s", e.Stage)
	}
	return fmt.Sprintf("envelope: decode failed at %s: %v", e.Stage, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

func decodeErr(stage Stage, err error) error {
	return &DecodeError{Stage: stage, Err: err}
}
