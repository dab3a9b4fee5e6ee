package hub

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/odvcencio/hubsync/internal/isodate"
)

// Sentinels matched with errors.Is against the typed errors below.
var (
	ErrConnectivity = errors.New("hub connectivity failure")
	ErrNotFound     = errors.New("hub object not found")
	ErrAmbiguous    = errors.New("hub lookup is ambiguous")
	ErrValidation   = errors.New("hub request is invalid")
)

// ParseError is returned when a timestamp from the Hub cannot be read.
type ParseError = isodate.ParseError

// ConnectivityError is a transport failure or a non-2xx response other than
// 404. Status is zero when no response was received.
type ConnectivityError struct {
	Op           string
	Status       int
	Unauthorized bool
	Message      string
	Err          error
}

func (e *ConnectivityError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Unauthorized {
		msg = "unauthorized, check the Hub API key"
		if e.Message != "" {
			msg += ": " + e.Message
		}
	}
	if e.Status > 0 {
		return fmt.Sprintf("%s failed (status %d): %s", e.Op, e.Status, msg)
	}
	return fmt.Sprintf("%s failed: %s", e.Op, msg)
}

func (e *ConnectivityError) Unwrap() error        { return e.Err }
func (e *ConnectivityError) Is(target error) bool { return target == ErrConnectivity }

// NotFoundError means the Hub reported that no matching object exists.
type NotFoundError struct {
	Op      string
	Message string
}

func (e *NotFoundError) Error() string {
	if e.Op == "" {
		return e.Message
	}
	if e.Message == "" {
		return e.Op + ": not found"
	}
	return e.Op + ": " + e.Message
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// AmbiguityError is returned when a non-id environment search matches more
// than one environment.
type AmbiguityError struct {
	JdbcURL string
	Matches int
}

func (e *AmbiguityError) Error() string {
	return fmt.Sprintf("The url %s is used by more than one environment. "+
		"Please specify 'hubEnvironmentId=<hubEnvironmentId>' or 'changeLogFile=<changeLogFileName>' "+
		"in the configuration or on the command line.", e.JdbcURL)
}

func (e *AmbiguityError) Is(target error) bool { return target == ErrAmbiguous }

// ValidationError is a local precondition failure. No request was sent.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func IsNotFound(err error) bool     { return errors.Is(err, ErrNotFound) }
func IsConnectivity(err error) bool { return errors.Is(err, ErrConnectivity) }
func IsAmbiguous(err error) bool    { return errors.Is(err, ErrAmbiguous) }
func IsValidation(err error) bool   { return errors.Is(err, ErrValidation) }

func IsParse(err error) bool {
	var perr *ParseError
	return errors.As(err, &perr)
}

// classifyStatus maps a non-2xx status to the error taxonomy. It returns nil
// for 2xx.
func classifyStatus(op string, status int, body []byte) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusNotFound:
		return &NotFoundError{Op: op, Message: responseMessage(body, "not found")}
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &ConnectivityError{Op: op, Status: status, Unauthorized: true, Message: responseMessage(body, "")}
	default:
		return &ConnectivityError{Op: op, Status: status, Message: responseMessage(body, http.StatusText(status))}
	}
}
