package moderation

import "errors"

var (
	// ErrReportClosed is returned for any action on a resolved or rejected report.
	ErrReportClosed = errors.New("report closed")
	// ErrInvalidTransition is returned when an action is not allowed from the current status.
	ErrInvalidTransition = errors.New("invalid transition")
)
