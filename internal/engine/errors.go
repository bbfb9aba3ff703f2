package engine

import "errors"

var (
	// ErrConfig marks an invalid timing or probability setting.
	ErrConfig = errors.New("invalid test configuration")
	// ErrDisplayUnavailable means the stimulus cannot be shown.
	ErrDisplayUnavailable = errors.New("display surface unavailable")
	ErrInvalidTransition  = errors.New("invalid phase transition")
	ErrSchedulerClosed    = errors.New("scheduler no longer accepts work")
	ErrSequenceExhausted  = errors.New("trial sequence exhausted")
	ErrRecordOrder        = errors.New("record out of order")
)
