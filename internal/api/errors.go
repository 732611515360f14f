package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Makepad-fr/tada-client/internal/model"
)

// Sentinels for errors.Is. ErrValidation is shared with client-side
// validation so callers handle both the same way.
var (
	ErrValidation = model.ErrInvalid
	ErrNotFound   = errors.New("todo not found")
	ErrNetwork    = errors.New("network error")
	ErrServer     = errors.New("server error")
)

// Kind classifies an API failure.
type Kind int

const (
	KindNetwork Kind = iota
	KindServer
	KindValidation
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not found"
	case KindServer:
		return "server"
	}
	return "network"
}

// Error is returned by every Client operation that fails.
type Error struct {
	Kind    Kind
	Op      string // find, create, update, delete
	Status  int    // HTTP status, 0 for transport failures
	Message string // server-provided message when present
	Fields  []model.FieldError
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (%d)", e.Op, msg, e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	switch e.Kind {
	case KindValidation:
		return target == ErrValidation
	case KindNotFound:
		return target == ErrNotFound
	case KindServer:
		return target == ErrServer
	}
	return target == ErrNetwork
}

// ValidationError converts a server-side validation failure into the same
// shape the form uses for client-side failures.
func (e *Error) ValidationError() *model.ValidationError {
	if e.Kind != KindValidation {
		return nil
	}
	return &model.ValidationError{Fields: e.Fields}
}

// UserMessage is a short human-readable description for notifications.
func UserMessage(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		switch apiErr.Kind {
		case KindNotFound:
			return "Todo no longer exists"
		case KindNetwork:
			return "Cannot reach the server"
		}
		if apiErr.Message != "" {
			return apiErr.Message
		}
		return http.StatusText(apiErr.Status)
	}
	var ve *model.ValidationError
	if errors.As(err, &ve) {
		return ve.Error()
	}
	if err != nil {
		return err.Error()
	}
	return ""
}

func kindForStatus(status int) Kind {
	switch {
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return KindValidation
	}
	return KindServer
}
