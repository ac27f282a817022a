package domain

import "errors"

var (
	// ErrConfig marks malformed or missing configuration. Fatal at startup.
	ErrConfig = errors.New("configuration error")
	// ErrModelLoad marks a recognizer that could not be initialized. Fatal at startup.
	ErrModelLoad = errors.New("recognizer initialization failed")
	// ErrAudioSource marks a capture subprocess that failed to start.
	ErrAudioSource = errors.New("audio source failed")
	// ErrDecode marks a chunk the recognizer rejected.
	ErrDecode = errors.New("decode failed")
	// ErrActionSpawn marks an action that could not be launched.
	ErrActionSpawn = errors.New("action spawn failed")
)

// ErrorCode identifies non-fatal and fatal runtime errors reported to the event sink.
type ErrorCode string

const (
	ErrorCodeConfig      ErrorCode = "config"
	ErrorCodeModelLoad   ErrorCode = "model_load"
	ErrorCodeAudioSource ErrorCode = "audio_source"
	ErrorCodeAudioStream ErrorCode = "audio_stream"
	ErrorCodeDecode      ErrorCode = "decode"
	ErrorCodeActionSpawn ErrorCode = "action_spawn"
	ErrorCodeTyping      ErrorCode = "typing"
	ErrorCodeRules       ErrorCode = "rules"
	ErrorCodeKeys        ErrorCode = "keys"
	ErrorCodeNotify      ErrorCode = "notify"
)

// CodeFor maps a wrapped sentinel error to its reporting code.
func CodeFor(err error) ErrorCode {
	switch {
	case errors.Is(err, ErrConfig):
		return ErrorCodeConfig
	case errors.Is(err, ErrModelLoad):
		return ErrorCodeModelLoad
	case errors.Is(err, ErrAudioSource):
		return ErrorCodeAudioSource
	case errors.Is(err, ErrDecode):
		return ErrorCodeDecode
	case errors.Is(err, ErrActionSpawn):
		return ErrorCodeActionSpawn
	default:
		return ""
	}
}
