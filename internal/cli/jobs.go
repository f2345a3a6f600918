package cli

import (
	"fmt"

	"github.com/joshu-sajeev/queuectl/internal/config"
	"github.com/joshu-sajeev/queuectl/internal/dto"
	"github.com/spf13/cobra"
)

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show job counts per state and active workers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			counts, err := a.jobs.Stats(ctx)
			if err != nil {
				return err
			}
			active, err := a.registry.ActiveCount(ctx)
			if err != nil {
				return err
			}

			resp := dto.StatusResponse{Jobs: counts, ActiveWorkers: active}
			for _, n := range counts {
				resp.Total += n
			}

			if a.jsonOut {
				return a.printJSON(resp)
			}

			rows := make([][]string, 0, len(config.AllJobStates)+2)
			for _, st := range config.AllJobStates {
				rows = append(rows, []string{string(st), fmt.Sprint(counts[st])})
			}
			rows = append(rows,
				[]string{"total", fmt.Sprint(resp.Total)},
				[]string{"active workers", fmt.Sprint(active)},
			)
			return table(a.out, []string{"STATE", "COUNT"}, rows)
		},
	}
}

func newListCmd(a *app) *cobra.Command {
	var (
		state string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			jobs, err := a.jobs.List(cmd.Context(), dto.ListQuery{State: config.JobState(state), Limit: limit})
			if err != nil {
				return err
			}
			return a.printJobs(jobs)
		},
	}

	cmd.Flags().StringVar(&state, "state", "", "only jobs in this state (pending, running, succeeded, failed, dead_letter)")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of jobs to show (0 for all)")
	return cmd
}

func newGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <job-id>",
		Short: "Show one job including its captured output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := a.jobs.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.printJob(j)
		},
	}
}

func newDLQCmd(a *app) *cobra.Command {
	dlq := &cobra.Command{
		Use:   "dlq",
		Short: "Inspect and requeue dead lettered jobs",
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List jobs in the dead letter queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			jobs, err := a.jobs.DLQList(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return a.printJobs(jobs)
		},
	}
	list.Flags().IntVar(&limit, "limit", 0, "maximum number of jobs to show (0 for all)")

	requeue := &cobra.Command{
		Use:     "requeue <job-id>",
		Aliases: []string{"retry"},
		Short:   "Move a dead lettered job back to pending with a fresh retry budget",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := a.jobs.DLQRequeue(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if a.jsonOut {
				return a.printJSON(j)
			}
			fmt.Fprintf(a.out, "requeued %s\n", j.ID)
			return nil
		},
	}

	dlq.AddCommand(list, requeue)
	return dlq
}
