package notify

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/kubo-market/airwatch/internal/domain"
)

// Command runs an external program per alert, typically an audio player such
// as `aplay warning.wav`. The alert identity is passed in AIRWATCH_ALERT and
// the alert id in AIRWATCH_ALERT_ID.
type Command struct {
	name string
	args []string
}

// NewCommand parses a whitespace separated command line.
func NewCommand(cmdline string) (*Command, error) {
	fields := strings.Fields(cmdline)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty alert command")
	}
	return &Command{name: fields[0], args: fields[1:]}, nil
}

// Notify implements Sink.
func (c *Command) Notify(ctx context.Context, alert domain.Alert) error {
	cmd := exec.CommandContext(ctx, c.name, c.args...)
	cmd.Env = append(cmd.Environ(),
		"AIRWATCH_ALERT="+alert.Identity.String(),
		"AIRWATCH_ALERT_ID="+alert.ID.String(),
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("run %s: %w: %s", c.name, err, strings.TrimSpace(string(out)))
	}
	return nil
}
