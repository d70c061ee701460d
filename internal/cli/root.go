package cli

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ankittk/signoff/internal/config"
	"github.com/ankittk/signoff/internal/logging"
)

type settingsKey struct{}

// settings is resolved once per invocation by the root command.
type settings struct {
	cfg    config.Config
	cfgErr error // config file could not be read; cfg holds defaults
	log    *slog.Logger
}

func withSettings(ctx context.Context, s *settings) context.Context {
	return context.WithValue(ctx, settingsKey{}, s)
}

// settingsFrom returns the settings stored by the root command, loading them
// on the fly when a subcommand runs without it (tests).
func settingsFrom(cmd *cobra.Command) *settings {
	if s, ok := cmd.Context().Value(settingsKey{}).(*settings); ok && s != nil {
		return s
	}
	home := config.MustHomeFrom(cmd.Context())
	cfg, err := config.Load(home)
	if err != nil {
		cfg = config.Default(home)
	}
	return &settings{cfg: cfg, cfgErr: err, log: slog.Default()}
}

// loadConfig returns the effective configuration, or the error from reading the config file.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	s := settingsFrom(cmd)
	return s.cfg, s.cfgErr
}

func NewRootCmd(version string) *cobra.Command {
	var (
		homeOverride string
		logLevel     string
		logFormat    string
	)

	cmd := &cobra.Command{
		Use:          "signoff",
		Short:        "signoff: track tasks through approver comments and recommendations",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			home, err := config.ResolveHome(homeOverride)
			if err != nil {
				return err
			}
			ctx := config.WithHome(cmd.Context(), home)

			cfg, cfgErr := config.Load(home)
			if cfgErr != nil {
				cfg = config.Default(home)
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			if logFormat != "" {
				cfg.LogFormat = logFormat
			}
			log, err := logging.New(cmd.ErrOrStderr(), logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
			if err != nil {
				return err
			}
			slog.SetDefault(log)

			cmd.SetContext(withSettings(ctx, &settings{cfg: cfg, cfgErr: cfgErr, log: log}))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&homeOverride, "home", "", "Override signoff home directory (default: ~/.signoff, env: SIGNOFF_HOME)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (env: SIGNOFF_LOG_LEVEL)")
	cmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: text or json (env: SIGNOFF_LOG_FORMAT)")

	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newStopCmd())
	cmd.AddCommand(newStatusCmd())

	cmd.AddCommand(newTaskCmd())
	cmd.AddCommand(newIdentityCmd())
	cmd.AddCommand(newApikeyCmd())

	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)

	cmd.SetVersionTemplate("{{.Version}}\n")
	if version != "" {
		cmd.Version = version
	} else {
		cmd.Version = "dev"
	}

	return cmd
}
