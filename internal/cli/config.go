package cli

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/joshu-sajeev/queuectl/internal/config"
	"github.com/joshu-sajeev/queuectl/internal/models"
	"github.com/spf13/cobra"
)

func newConfigCmd(a *app) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Read or change the queue policy applied to new jobs",
	}

	get := &cobra.Command{
		Use:       "get [key]",
		Short:     "Show one or all policy values",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: config.AllowedConfigKeys,
		RunE: func(cmd *cobra.Command, args []string) error {
			policy, err := a.policy.Load(cmd.Context())
			if err != nil {
				return err
			}

			values := map[string]string{
				config.KeyMaxRetries:  strconv.Itoa(policy.MaxRetries),
				config.KeyBackoffBase: policy.BackoffBase.String(),
			}

			if len(args) == 1 {
				v, ok := values[args[0]]
				if !ok {
					return unknownKey(args[0])
				}
				fmt.Fprintln(a.out, v)
				return nil
			}

			if a.jsonOut {
				return a.printJSON(policy)
			}
			rows := make([][]string, 0, len(config.AllowedConfigKeys))
			for _, k := range config.AllowedConfigKeys {
				rows = append(rows, []string{k, values[k]})
			}
			return table(a.out, []string{"KEY", "VALUE"}, rows)
		},
	}

	set := &cobra.Command{
		Use:       "set <key> <value>",
		Short:     "Persist a policy value; existing jobs keep theirs",
		Args:      cobra.ExactArgs(2),
		ValidArgs: config.AllowedConfigKeys,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, raw := args[0], args[1]
			if !slices.Contains(config.AllowedConfigKeys, key) {
				return unknownKey(key)
			}

			err := a.policy.Update(cmd.Context(), func(p *models.QueueConfig) error {
				switch key {
				case config.KeyMaxRetries:
					n, err := strconv.Atoi(raw)
					if err != nil {
						return fmt.Errorf("%s must be an integer: %w", key, err)
					}
					p.MaxRetries = n
				case config.KeyBackoffBase:
					d, err := models.ParseDuration(raw)
					if err != nil {
						return fmt.Errorf("%s: %w", key, err)
					}
					p.BackoffBase = d
				}
				return nil
			})
			if err != nil {
				return err
			}

			a.log.WithField(key, raw).Info("queue policy updated")
			fmt.Fprintf(a.out, "%s set to %s\n", key, raw)
			return nil
		},
	}

	cfgCmd.AddCommand(get, set)
	return cfgCmd
}

func unknownKey(key string) error {
	return fmt.Errorf("unknown config key %q, expected one of: %s", key, strings.Join(config.AllowedConfigKeys, ", "))
}
