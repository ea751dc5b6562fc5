package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/kuitang/yanote/internal/backup"
	"github.com/kuitang/yanote/internal/config"
	"github.com/kuitang/yanote/internal/db"
	"github.com/kuitang/yanote/internal/obs"
	"github.com/kuitang/yanote/internal/s3client"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	envFile string
	noS3    bool
	test    bool
	verbose bool
}

// env is what a subcommand works against.
type env struct {
	db    *db.DB
	cfg   *config.Config
	store backup.ObjectStore
	close func()
}

// envLoader opens the database and backup store. Tests substitute one
// backed by an in-memory database.
type envLoader func(ctx context.Context, flags globalFlags) (*env, error)

func newRootCmd(load envLoader) *cobra.Command {
	var flags globalFlags

	root := &cobra.Command{
		Use:   "yanotectl",
		Short: "Administer a yanote installation",
		Long: `yanotectl works directly on the yanote database.
It creates accounts, lists a user's notes and exports backups to S3.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			obs.Init()
			if flags.verbose {
				obs.SetLevel(slog.LevelDebug)
			}
		},
	}

	root.PersistentFlags().StringVar(&flags.envFile, "env-file", ".env", "Path to a .env file")
	root.PersistentFlags().BoolVar(&flags.noS3, "no-s3", false, "Use an in-memory backup store")
	root.PersistentFlags().BoolVar(&flags.test, "test", false, "Test mode: MASTER_KEY optional, no S3")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Enable debug logging")

	// withEnv opens the environment for the duration of one command.
	withEnv := func(run func(cmd *cobra.Command, args []string, e *env) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			e, err := load(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer e.close()
			return run(cmd, args, e)
		}
	}

	root.AddCommand(
		newCreateUserCmd(withEnv),
		newNotesCmd(withEnv),
		newBackupCmd(withEnv),
		newCleanupSessionsCmd(withEnv),
		newLogoutCmd(withEnv),
	)
	return root
}

type envRunner func(run func(cmd *cobra.Command, args []string, e *env) error) func(*cobra.Command, []string) error

// loadEnv is the production envLoader: config from the environment,
// the SQLCipher database under DATA_DIR and the configured bucket.
func loadEnv(ctx context.Context, flags globalFlags) (*env, error) {
	cfg, err := config.LoadConfig(config.Flags{
		NoEmail:  true,
		NoS3:     flags.noS3 || flags.test,
		TestMode: flags.test,
		EnvFile:  flags.envFile,
	})
	if err != nil {
		return nil, err
	}

	key, err := cfg.DatabaseKey()
	if err != nil {
		return nil, err
	}
	database, err := db.Open(cfg.DataDir, key)
	if err != nil {
		return nil, err
	}

	var (
		store     *s3client.Client
		stopStore = func() {}
	)
	if cfg.NoS3 {
		store, stopStore, err = s3client.NewInMemory(ctx, "yanote-backups")
	} else {
		store, err = s3client.New(ctx, cfg.S3Config())
	}
	if err != nil {
		database.Close()
		return nil, err
	}

	return &env{
		db:    database,
		cfg:   cfg,
		store: store,
		close: func() {
			stopStore()
			database.Close()
		},
	}, nil
}
