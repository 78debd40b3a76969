package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"insar-viewer/internal/catalog"
	"insar-viewer/internal/raster"
)

// ExitCode is the process exit status of insar-render
type ExitCode int

const (
	ExitSuccess      ExitCode = 0
	ExitGeneralError ExitCode = 1
	// ExitDirectoryError is returned when a product folder cannot be scanned
	ExitDirectoryError ExitCode = 2
	// ExitReadError is returned when a raster cannot be opened or decoded
	ExitReadError ExitCode = 3
	// ExitUsage is returned for bad arguments or flag values
	ExitUsage ExitCode = 4
)

// CLIError carries the exit code a command failure should produce
type CLIError struct {
	Code    ExitCode
	Message string
	Err     error
}

func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *CLIError) Unwrap() error {
	return e.Err
}

func usageError(format string, args ...interface{}) *CLIError {
	return &CLIError{Code: ExitUsage, Message: fmt.Sprintf(format, args...)}
}

// ExitCodeOf maps an error returned by a command to its exit code.
// Domain errors keep their code even when wrapped.
func ExitCodeOf(err error) ExitCode {
	if err == nil {
		return ExitSuccess
	}
	var (
		cliErr  *CLIError
		dirErr  *catalog.DirectoryError
		readErr *raster.ReadError
	)
	switch {
	case errors.As(err, &cliErr):
		return cliErr.Code
	case errors.As(err, &dirErr):
		return ExitDirectoryError
	case errors.As(err, &readErr):
		return ExitReadError
	}
	return ExitGeneralError
}

// withUsage tags positional argument errors as usage errors
func withUsage(args cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, a []string) error {
		if err := args(cmd, a); err != nil {
			return &CLIError{Code: ExitUsage, Message: err.Error()}
		}
		return nil
	}
}
