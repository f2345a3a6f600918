package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/joshu-sajeev/queuectl/internal/dto"
	"github.com/joshu-sajeev/queuectl/internal/models"
	"github.com/spf13/cobra"
)

func newEnqueueCmd(a *app) *cobra.Command {
	var (
		command     string
		id          string
		maxRetries  int
		backoffBase string
		delay       string
		runAt       string
	)

	cmd := &cobra.Command{
		Use:   "enqueue [job-json]",
		Short: "Add a job to the queue",
		Long: `Add a job to the queue, either as a JSON object such as
  queuectl enqueue '{"id":"job1","command":"sleep 2"}'
or with flags
  queuectl enqueue --command "sleep 2" --max-retries 5`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var req dto.EnqueueRequest

			switch {
			case len(args) == 1 && command != "":
				return errors.New("pass either a JSON job or --command, not both")
			case len(args) == 1:
				if err := json.Unmarshal([]byte(args[0]), &req); err != nil {
					return fmt.Errorf("invalid job JSON: %w", err)
				}
			default:
				req.ID = id
				req.Command = command
			}

			flags := cmd.Flags()
			if flags.Changed("max-retries") {
				req.MaxRetries = &maxRetries
			}
			if flags.Changed("backoff-base") {
				d, err := models.ParseDuration(backoffBase)
				if err != nil {
					return fmt.Errorf("invalid --backoff-base: %w", err)
				}
				req.BackoffBase = &d
			}
			if flags.Changed("delay") {
				d, err := models.ParseDuration(delay)
				if err != nil {
					return fmt.Errorf("invalid --delay: %w", err)
				}
				req.Delay = &d
			}
			if flags.Changed("run-at") {
				t, err := time.Parse(time.RFC3339, runAt)
				if err != nil {
					return fmt.Errorf("invalid --run-at, want RFC 3339: %w", err)
				}
				req.RunAt = &t
			}

			j, err := a.jobs.Enqueue(cmd.Context(), &req)
			if err != nil {
				return err
			}

			if a.jsonOut {
				return a.printJSON(j)
			}
			fmt.Fprintf(a.out, "enqueued %s (next run %s)\n", j.ID, formatTime(j.NextEligibleAt))
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&command, "command", "", "shell command to run")
	f.StringVar(&id, "id", "", "job id (generated when empty)")
	f.IntVar(&maxRetries, "max-retries", 0, "retries after the first failure (default from config)")
	f.StringVar(&backoffBase, "backoff-base", "", "base retry delay, e.g. 2s (default from config)")
	f.StringVar(&delay, "delay", "", "wait this long before the first run")
	f.StringVar(&runAt, "run-at", "", "first run time, RFC 3339")
	cmd.MarkFlagsMutuallyExclusive("delay", "run-at")

	return cmd
}
