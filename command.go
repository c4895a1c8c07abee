package trafficlight

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/Songmu/wrapcommander"
	"github.com/mattn/go-shellwords"
)

type CommandNotifierConfig struct {
	Run string `yaml:"run"`
}

// CommandNotifier runs a command for every transition. The transition is
// passed in TRAFFICLIGHT_* environment variables.
type CommandNotifier struct {
	name     string
	commands []string
}

func NewCommandNotifier(cfg *NotifierConfig) (*CommandNotifier, error) {
	cmds, err := shellwords.Parse(cfg.Command.Run)
	if err != nil {
		return nil, fmt.Errorf("failed to parse command: %s %w", cfg.Command.Run, err)
	}
	if len(cmds) == 0 {
		return nil, fmt.Errorf("notifier %s: no command", cfg.Name)
	}
	return &CommandNotifier{
		name:     cfg.Name,
		commands: cmds,
	}, nil
}

func (c *CommandNotifier) Name() string {
	return c.name
}

func (c *CommandNotifier) Notify(ctx context.Context, t Transition) error {
	logger := newLoggerFromContext(ctx).With(
		"name", c.name,
		"module", "commandnotifier",
		"commands", fmt.Sprintf("%v", c.commands),
	)
	logger.Debug("executing command")
	if len(c.commands) == 0 {
		return errors.New("no command")
	}
	cmd := exec.CommandContext(ctx, c.commands[0], c.commands[1:]...)
	cmd.Env = append(os.Environ(),
		"TRAFFICLIGHT_ID="+t.Light,
		"TRAFFICLIGHT_PHASE="+t.To.String(),
		"TRAFFICLIGHT_PREVIOUS_PHASE="+t.From.String(),
	)
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = 3 * time.Second
	out, err := cmd.CombinedOutput()
	if err != nil {
		logger.Info("command failed",
			slog.Int("exit_code", wrapcommander.ResolveExitCode(err)),
			slog.String("output", string(out)),
			slog.String("error", err.Error()),
		)
		return err
	}
	logger.Debug("command succeeded",
		slog.Int("exit_code", wrapcommander.ResolveExitCode(err)),
		slog.String("output", string(out)),
	)
	return nil
}
