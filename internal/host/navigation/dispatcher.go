// internal/host/navigation/dispatcher.go
package navigation

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"go.uber.org/zap"
)

// OSDispatcher opens URLs with the platform's URL opener.
type OSDispatcher struct {
	command string
	args    []string
	logger  *zap.Logger
	run     func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewOSDispatcher uses command when set, otherwise xdg-open, open or rundll32 depending on
// the platform.
func NewOSDispatcher(command string, logger *zap.Logger) *OSDispatcher {
	name, args := opener(command, runtime.GOOS)
	return &OSDispatcher{
		command: name,
		args:    args,
		logger:  logger.Named("dispatcher"),
		run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).CombinedOutput()
		},
	}
}

// Open runs the opener once. A missing opener or a non-zero exit is ErrNoHandler.
func (d *OSDispatcher) Open(ctx context.Context, url string) error {
	args := append(append([]string(nil), d.args...), url)
	out, err := d.run(ctx, d.command, args...)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	var exitErr *exec.ExitError
	if errors.Is(err, exec.ErrNotFound) || errors.As(err, &exitErr) {
		d.logger.Debug("Opener reported no handler.", zap.String("command", d.command), zap.ByteString("output", out))
		return fmt.Errorf("%w: %v", ErrNoHandler, err)
	}
	return fmt.Errorf("navigation: run %s: %w", d.command, err)
}

func opener(command, goos string) (string, []string) {
	if fields := strings.Fields(command); len(fields) > 0 {
		return fields[0], fields[1:]
	}
	switch goos {
	case "darwin":
		return "open", nil
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler"}
	default:
		return "xdg-open", nil
	}
}
