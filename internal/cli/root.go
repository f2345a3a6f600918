// Package cli implements the queuectl command tree.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/joshu-sajeev/queuectl/internal/config"
	"github.com/joshu-sajeev/queuectl/internal/job"
	"github.com/joshu-sajeev/queuectl/internal/logging"
	"github.com/joshu-sajeev/queuectl/internal/registry"
	"github.com/joshu-sajeev/queuectl/internal/storage/filestore"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// app holds everything a command needs once flags and env are resolved.
type app struct {
	cfg         *config.Config
	log         *logrus.Logger
	store       *filestore.Store
	jobs        *job.JobService
	policy      *filestore.ConfigRepository
	registry    *registry.Registry
	coordinator *registry.Coordinator
	out         io.Writer
	jsonOut     bool
}

type rootFlags struct {
	dataDir   string
	logLevel  string
	logFormat string
	output    string
}

func NewRootCmd() *cobra.Command {
	var (
		flags rootFlags
		a     = &app{}
	)

	root := &cobra.Command{
		Use:           "queuectl",
		Short:         "A durable multi-process job queue for shell commands",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd, flags)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.dataDir, "data-dir", "", "directory holding the queue files (env QUEUECTL_DATA_DIR)")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level (env QUEUECTL_LOG_LEVEL)")
	pf.StringVar(&flags.logFormat, "log-format", "", "log format: text or json (env QUEUECTL_LOG_FORMAT)")
	pf.StringVarP(&flags.output, "output", "o", "table", "output format: table or json")

	root.AddCommand(
		newEnqueueCmd(a),
		newWorkerCmd(a),
		newStatusCmd(a),
		newListCmd(a),
		newGetCmd(a),
		newDLQCmd(a),
		newConfigCmd(a),
		newServeCmd(a),
	)

	return root
}

func (a *app) init(cmd *cobra.Command, flags rootFlags) error {
	// a missing .env is fine
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	cfg, err := config.LoadConfigFromEnv(cmd.Context())
	if err != nil {
		return err
	}

	if flags.dataDir != "" {
		cfg.DataDir = flags.dataDir
	}
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}
	if flags.logFormat != "" {
		cfg.LogFormat = flags.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	switch flags.output {
	case "table":
	case "json":
		a.jsonOut = true
	default:
		return fmt.Errorf("unknown output format %q", flags.output)
	}

	if abs, err := filepath.Abs(cfg.DataDir); err == nil {
		cfg.DataDir = abs
	}

	a.cfg = cfg
	a.out = cmd.OutOrStdout()
	a.log = logging.NewWithOutput(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)

	a.store, err = filestore.Open(cfg.DataDir,
		filestore.WithLockTimeout(cfg.LockTimeout),
		filestore.WithLogger(a.log),
	)
	if err != nil {
		return err
	}

	a.policy = filestore.NewConfigRepository(a.store)
	a.registry = registry.NewRegistry(filestore.NewWorkerRepository(a.store),
		registry.WithStaleAfter(cfg.WorkerStaleThreshold),
		registry.WithLogger(a.log),
	)
	a.coordinator = registry.NewCoordinator(a.registry, registry.OSProcesses{},
		registry.WithCoordinatorLogger(a.log),
	)
	a.jobs = job.NewJobService(filestore.NewJobRepository(a.store), a.policy,
		job.WithWorkerLiveness(a.registry),
		job.WithStaleClaimThreshold(cfg.StaleClaimThreshold),
		job.WithLogger(a.log),
	)

	return nil
}

// Describe renders err for the terminal, adding a hint for store errors.
func Describe(err error) string {
	var corrupt *filestore.CorruptStoreError
	switch {
	case errors.As(err, &corrupt):
		return fmt.Sprintf("%v\nthe file %s was left untouched; fix or remove it and retry", err, corrupt.Path)
	case errors.Is(err, filestore.ErrLockTimeout):
		return fmt.Sprintf("%v\nthe queue is busy, retry in a moment", err)
	default:
		return err.Error()
	}
}
