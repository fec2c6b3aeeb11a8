// internal/infra/shell/shell_dispatcher.go
package shell

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"regexp"
	"strings"

	"github.com/DOH-JDJ0303/waphl-data/internal/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var nonEnvChars = regexp.MustCompile(`[^A-Z0-9_]`)

// shellDispatcher runs a local command per item.
type shellDispatcher struct {
	command string
	logger  *slog.Logger
	tracer  trace.Tracer
}

// NewShellDispatcher creates a dispatcher running command with bash -c. The
// item is exposed as ITEM_ID plus one ITEM_<ATTR> variable per attribute.
func NewShellDispatcher(command string, logger *slog.Logger) domain.Dispatcher {
	return &shellDispatcher{
		command: command,
		logger:  logger.With("dispatcher_type", "shell"),
		tracer:  otel.Tracer("waphl-shell-dispatcher"),
	}
}

// Environ returns the variables describing item.
func Environ(item domain.WorkItem) []string {
	env := []string{"ITEM_ID=" + item.ID}
	for _, a := range item.Attributes {
		name := "ITEM_" + nonEnvChars.ReplaceAllString(strings.ToUpper(a.Key), "_")
		env = append(env, name+"="+a.Value)
	}
	return env
}

// Dispatch runs the command and returns its trimmed stdout as the reference.
func (d *shellDispatcher) Dispatch(ctx context.Context, item domain.WorkItem) (string, error) {
	ctx, span := d.tracer.Start(ctx, "dispatcher.shell.Dispatch",
		trace.WithAttributes(
			attribute.String("item.id", item.ID),
			attribute.String("shell.command", d.command),
		))
	defer span.End()

	d.logger.Info("executing shell command", "command", d.command, "item_id", item.ID)

	cmd := exec.CommandContext(ctx, "bash", "-c", d.command)
	cmd.Env = append(os.Environ(), Environ(item)...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	output := strings.TrimSpace(stdout.String())
	errOutput := strings.TrimSpace(stderr.String())

	if output != "" {
		span.SetAttributes(attribute.String("shell.stdout", output))
	}
	if errOutput != "" {
		span.SetAttributes(attribute.String("shell.stderr", errOutput))
	}

	if err != nil {
		span.SetStatus(codes.Error, "shell command failed")
		span.RecordError(err)
		if ctx.Err() != nil {
			return "", fmt.Errorf("shell command interrupted: %w", ctx.Err())
		}
		return "", fmt.Errorf("shell command failed: %w: %s", err, errOutput)
	}

	d.logger.Info("shell command executed successfully", "item_id", item.ID)
	return output, nil
}
