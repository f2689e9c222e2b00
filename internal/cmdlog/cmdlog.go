package cmdlog

import (
	"quillcast/internal/logging"
	"quillcast/internal/metrics"
)

// Run wraps one CLI command invocation with counters and a terminal log line.
func Run(cmd string, f func() error) error {
	metrics.IncCommandRun(cmd)
	err := f()
	if err != nil {
		metrics.IncCommandError(cmd)
		logging.Error(cmd+"_error", map[string]any{"error": err.Error()})
	} else {
		logging.Info(cmd+"_ok", nil)
	}
	return err
}
