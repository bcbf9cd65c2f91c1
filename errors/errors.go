package errors

import "fmt"

var (
	ErrMessageNotFound = fmt.Errorf("message not found")
	ErrChannelNotFound = fmt.Errorf("channel not found")
	ErrProfileNotFound = fmt.Errorf("profile not found")
	ErrContentMismatch = fmt.Errorf("message content does not match its type")
	ErrEngineSaturated = fmt.Errorf("command channel full")
	ErrWorkerPanic     = fmt.Errorf("worker panic")
	ErrInvalidToken    = fmt.Errorf("invalid token")
)
