package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// Exit codes for the fluxtrace CLI contract.
const (
	ExitSuccess      = 0 // line processed / view rendered
	ExitFailure      = 1 // rejected line, parse miss, or flow not found
	ExitCommandError = 2 // bad configuration, unreadable input, store failure
)

// Error codes carried in JSON error payloads.
const (
	codeNotFound = "E_NOT_FOUND"
	codeNoMatch  = "E_NO_MATCH"
	codeRejected = "E_REJECTED"
)

// ExitError carries the process exit code a failed command should
// terminate with.
type ExitError struct {
	Code    int
	Message string
	Err     error // underlying cause, optional
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

// NewExitError creates an ExitError with the given code and message.
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

// OutputFormatter renders command results as either human-readable text
// or a single CLIResponse JSON document, per the global --format flag
// and the per-command --json override some commands carry.
type OutputFormatter struct {
	Format  string
	Writer  io.Writer
	Verbose bool
}

// newFormatter builds the formatter for one command invocation.
// forceJSON is the per-command --json flag; it wins over --format.
func newFormatter(cmd *cobra.Command, opts *RootOptions, forceJSON bool) *OutputFormatter {
	format := opts.Format
	if forceJSON {
		format = "json"
	}
	return &OutputFormatter{Format: format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
}

// JSON reports whether this invocation renders JSON.
func (f *OutputFormatter) JSON() bool {
	return f.Format == "json"
}

// CLIResponse is the envelope every JSON-mode command prints.
type CLIResponse struct {
	Status  string      `json:"status"`             // "ok" or "error"
	Data    interface{} `json:"data,omitempty"`     // success payload
	Error   *CLIError   `json:"error,omitempty"`    // error details
	TraceID string      `json:"trace_id,omitempty"` // batch correlation token
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data interface{}) error {
	if f.JSON() {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	fmt.Fprintln(f.Writer, data)
	return nil
}

// SuccessWithTrace outputs a successful result carrying a batch
// correlation token (CLIResponse.TraceID in JSON mode; ignored in text
// mode, which already renders the token inline).
func (f *OutputFormatter) SuccessWithTrace(data interface{}, traceID string) error {
	if f.JSON() {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status:  "ok",
			Data:    data,
			TraceID: traceID,
		})
	}
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details interface{}) error {
	if f.JSON() {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}
