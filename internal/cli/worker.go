package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joshu-sajeev/queuectl/internal/dto"
	"github.com/joshu-sajeev/queuectl/internal/pool"
	"github.com/joshu-sajeev/queuectl/internal/registry"
	"github.com/joshu-sajeev/queuectl/internal/storage/filestore"
	"github.com/joshu-sajeev/queuectl/internal/worker"
	"github.com/spf13/cobra"
)

func newWorkerCmd(a *app) *cobra.Command {
	workerCmd := &cobra.Command{
		Use:   "worker",
		Short: "Manage worker processes",
	}

	workerCmd.AddCommand(
		newWorkerStartCmd(a),
		newWorkerRunCmd(a),
		newWorkerStopCmd(a),
		newWorkerListCmd(a),
		newWorkerPruneCmd(a),
	)
	return workerCmd
}

func newWorkerStartCmd(a *app) *cobra.Command {
	var (
		count      int
		foreground bool
	)

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start one or more worker processes in the background",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if count < 1 {
				return errors.New("--count must be at least 1")
			}

			p := pool.NewWorkerPool(count, pool.Options{
				Args: []string{"worker", "run"},
				Env: []string{
					"QUEUECTL_DATA_DIR=" + a.cfg.DataDir,
					"QUEUECTL_LOG_LEVEL=" + a.cfg.LogLevel,
					"QUEUECTL_LOG_FORMAT=" + a.cfg.LogFormat,
				},
				LogDir:     filepath.Join(a.cfg.DataDir, "logs"),
				StaleAfter: a.cfg.WorkerStaleThreshold,
			}, a.registry, a.coordinator, a.log)

			startErr := p.Start()
			procs := p.Processes()
			if err := a.printProcesses(procs); err != nil {
				return err
			}

			if !foreground {
				p.Detach()
				return startErr
			}
			if startErr != nil {
				if _, err := p.Stop(context.Background(), a.cfg.StopGrace); err != nil {
					a.log.WithError(err).Warn("stopping partially started pool failed")
				}
				return startErr
			}

			return a.supervise(cmd.Context(), p)
		},
	}

	cmd.Flags().IntVar(&count, "count", 1, "number of workers to start")
	cmd.Flags().BoolVar(&foreground, "foreground", false, "stay attached and stop the workers on Ctrl+C")
	return cmd
}

// supervise waits for the pool and runs the stop protocol on SIGINT/SIGTERM.
func (a *app) supervise(ctx context.Context, p *pool.WorkerPool) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	waitErr := make(chan error, 1)
	go func() { waitErr <- p.Wait(context.WithoutCancel(ctx)) }()

	a.log.Info("workers running, press Ctrl+C to stop")

	select {
	case err := <-waitErr:
		return err
	case <-ctx.Done():
	}

	a.log.WithField("grace", a.cfg.StopGrace).Info("stopping workers")
	report, err := p.Stop(context.Background(), a.cfg.StopGrace)
	if err != nil {
		return err
	}
	if err := a.printStopReport(report); err != nil {
		return err
	}

	// killed workers exit non-zero; the report already says so
	<-waitErr
	return nil
}

func (a *app) printProcesses(procs []pool.Process) error {
	if a.jsonOut {
		return a.printJSON(procs)
	}

	rows := make([][]string, 0, len(procs))
	for _, p := range procs {
		rows = append(rows, []string{p.WorkerID, fmt.Sprint(p.PID), p.LogFile})
	}
	return table(a.out, []string{"WORKER", "PID", "LOG"}, rows)
}

func newWorkerRunCmd(a *app) *cobra.Command {
	var id string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a single worker in this process until stopped",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if id == "" {
				generated, err := registry.NewWorkerID()
				if err != nil {
					return err
				}
				id = generated
			}

			// a signal lets the current job finish, like a stop request
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			wcfg := worker.Config{
				PollInterval:      a.cfg.PollInterval,
				HeartbeatInterval: a.cfg.HeartbeatInterval,
			}
			if a.cfg.WatchJobs {
				wcfg.WakeFile = a.store.Path(filestore.RecordJobs)
			}

			w := worker.NewWorker(id, a.jobs, a.registry, worker.NewShellExecutor(a.cfg.OutputLimit), wcfg, a.log)
			return w.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "worker id (generated when empty)")
	return cmd
}

func newWorkerStopCmd(a *app) *cobra.Command {
	var (
		id      string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Ask workers to finish their current job and exit",
		Long: `Ask workers to finish their current job and exit. Workers still
running when the timeout ends are sent SIGTERM, then SIGKILL.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("timeout") {
				timeout = a.cfg.StopGrace
			}

			report, err := a.coordinator.StopWorkers(cmd.Context(), id, timeout)
			if err != nil {
				return err
			}
			return a.printStopReport(report)
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "stop only this worker")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "grace period before forcing termination (env QUEUECTL_STOP_GRACE)")
	return cmd
}

func (a *app) printStopReport(r *dto.StopWorkersResponse) error {
	if a.jsonOut {
		return a.printJSON(r)
	}
	if len(r.Stopped)+len(r.Killed) == 0 {
		_, err := fmt.Fprintln(a.out, "no workers running")
		return err
	}

	rows := make([][]string, 0, len(r.Stopped)+len(r.Killed))
	for _, id := range r.Stopped {
		rows = append(rows, []string{id, "stopped"})
	}
	for _, id := range r.Killed {
		rows = append(rows, []string{id, "terminated"})
	}
	return table(a.out, []string{"WORKER", "OUTCOME"}, rows)
}

func newWorkerListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered workers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			recs, err := a.registry.List(cmd.Context())
			if err != nil {
				return err
			}

			now := time.Now().UTC()
			out := make([]dto.WorkerResponse, 0, len(recs))
			for _, rec := range recs {
				out = append(out, dto.NewWorkerResponse(rec, now, registry.IsLive(rec, now, a.cfg.WorkerStaleThreshold)))
			}

			if a.jsonOut {
				return a.printJSON(out)
			}
			if len(out) == 0 {
				_, err := fmt.Fprintln(a.out, "no workers registered")
				return err
			}

			rows := make([][]string, 0, len(out))
			for _, w := range out {
				live := "yes"
				if !w.Live {
					live = "no"
				}
				rows = append(rows, []string{
					w.WorkerID,
					fmt.Sprint(w.PID),
					string(w.Status),
					live,
					w.Uptime,
					orDash(w.CurrentJobID),
				})
			}
			return table(a.out, []string{"WORKER", "PID", "STATUS", "LIVE", "UPTIME", "JOB"}, rows)
		},
	}
}

func newWorkerPruneCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Remove records of workers that stopped or stopped heartbeating",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pruned, err := a.registry.PruneStale(cmd.Context(), a.cfg.WorkerStaleThreshold)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "pruned %d worker record(s)\n", len(pruned))
			return nil
		},
	}
}
