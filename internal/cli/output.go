package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Scenario failures or a client that stopped on error
	ExitCommandError = 2 // Command error (bad config, journal not found, etc.)
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// Response is the JSON envelope of every command's output.
type Response struct {
	Status string         `json:"status"`          // "ok" or "error"
	Data   any            `json:"data,omitempty"`  // success payload
	Error  *ResponseError `json:"error,omitempty"` // error details
}

// ResponseError is the error part of a Response.
type ResponseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Output writes command results as text or as a JSON Response.
type Output struct {
	Format string
	Writer io.Writer
}

// JSON reports whether results are written as JSON.
func (o Output) JSON() bool { return o.Format == "json" }

// Success writes data. In text mode data is printed with fmt.
func (o Output) Success(data any) error {
	if o.JSON() {
		return o.encode(Response{Status: "ok", Data: data})
	}
	fmt.Fprintln(o.Writer, data)
	return nil
}

// Failure writes data together with an error code. In text mode only the
// message is printed.
func (o Output) Failure(code, message string, data any) error {
	if o.JSON() {
		return o.encode(Response{
			Status: "error",
			Data:   data,
			Error:  &ResponseError{Code: code, Message: message},
		})
	}
	fmt.Fprintf(o.Writer, "Error [%s]: %s\n", code, message)
	return nil
}

func (o Output) encode(r Response) error {
	enc := json.NewEncoder(o.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
