package roomsync

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/tOgg1/roomsync/internal/models"
	"github.com/tOgg1/roomsync/internal/rocketchat"
)

// Error kinds. Use errors.Is against the result of Classify.
var (
	// ErrTransport is a network or server failure; retryable.
	ErrTransport = errors.New("transport error")
	// ErrNotFound means a room, message or user is absent.
	ErrNotFound = errors.New("not found")
	// ErrValidation is a rejected request that should not be retried as-is.
	ErrValidation = errors.New("validation error")
	// ErrStreamDisconnect demotes a room to poll fallback; never fatal.
	ErrStreamDisconnect = errors.New("stream disconnected")
	// ErrNoActiveRoom is returned by room-scoped calls when no room is selected.
	ErrNoActiveRoom = errors.New("no active room")
)

type classifiedError struct {
	kind error
	err  error
}

func (e *classifiedError) Error() string {
	return e.err.Error()
}

func (e *classifiedError) Unwrap() []error {
	return []error{e.kind, e.err}
}

func classified(kind, err error) error {
	return &classifiedError{kind: kind, err: err}
}

// Classify tags err with one of the error kinds when it can be recognized.
// Unrecognized errors, including context cancellation, are returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	for _, kind := range []error{ErrTransport, ErrNotFound, ErrValidation, ErrStreamDisconnect} {
		if errors.Is(err, kind) {
			return err
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var validation *models.ValidationErrors
	if errors.As(err, &validation) {
		return classified(ErrValidation, err)
	}
	if errors.Is(err, rocketchat.ErrStreamClosed) {
		return classified(ErrStreamDisconnect, err)
	}
	if apiErr, ok := rocketchat.IsAPIError(err); ok {
		return classifyAPIError(apiErr, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return classified(ErrTransport, err)
	}
	return err
}

func classifyAPIError(apiErr *rocketchat.APIError, err error) error {
	code := strings.ToLower(apiErr.Code)
	msg := strings.ToLower(apiErr.Message)
	switch {
	case apiErr.StatusCode >= http.StatusInternalServerError:
		return classified(ErrTransport, err)
	case apiErr.StatusCode == http.StatusNotFound,
		strings.Contains(code, "not-found"),
		strings.Contains(code, "invalid-room"),
		strings.Contains(code, "invalid-user"),
		strings.Contains(msg, "not found"):
		return classified(ErrNotFound, err)
	case apiErr.StatusCode == http.StatusBadRequest:
		return classified(ErrValidation, err)
	}
	return err
}

// IsTransient reports whether err is worth retrying later.
func IsTransient(err error) bool {
	err = Classify(err)
	return errors.Is(err, ErrTransport) || errors.Is(err, ErrStreamDisconnect)
}
