// Package errors is the error type handlers return to the client: a status,
// a message and per-field details.
package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

type Error struct {
	Status  int
	Err     error // The error this wraps
	Details []Detail
}

type Detail struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d: %s, details: %v", e.Status, e.Err, e.Details)
}

func (e *Error) Unwrap() error {
	return e.Err
}

type transport struct {
	Message string   `json:"message"`
	Details []Detail `json:"details"`
	Status  int      `json:"status"`
}

func (e *Error) MarshalJSON() ([]byte, error) {
	t := transport{
		Message: http.StatusText(e.Status),
		Details: e.Details,
		Status:  e.Status,
	}
	if e.Err != nil {
		t.Message = e.Err.Error()
	}

	return json.Marshal(t)
}

func (e *Error) UnmarshalJSON(byts []byte) error {
	t := transport{}
	if err := json.Unmarshal(byts, &t); err != nil {
		return err
	}

	e.Err = errors.New(t.Message)
	e.Details = t.Details
	e.Status = t.Status
	return nil
}

// E builds an Error from its arguments in any order: a string or error for
// the message, an int for the status, and any number of details.
//
// The status defaults to 500.
func E(args ...any) *Error {
	ret := &Error{
		Status: http.StatusInternalServerError,
	}

	for _, arg := range args {
		switch arg := arg.(type) {
		case string:
			ret.Err = errors.New(arg)
		case error:
			ret.Err = arg
		case int:
			ret.Status = arg
		case Detail:
			ret.Details = append(ret.Details, arg)
		case []Detail:
			ret.Details = append(ret.Details, arg...)
		}
	}

	return ret
}

// Status is the status carried by err, or 500 if it carries none.
func Status(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}

	return http.StatusInternalServerError
}
