package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ankittk/signoff/internal/config"
	"github.com/ankittk/signoff/internal/daemon"
)

func newServeCmd() *cobra.Command {
	var (
		addr       string
		detach     bool
		dev        bool
		pprofAddr  string
		envFile    string
		dbDriver   string
		dbURL      string
		dataDir    string
		enableOtel bool
		traceFile  string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the signoff HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			home := config.MustHomeFrom(cmd.Context())
			cfg, err := loadConfig(cmd)
			if envFile != "" {
				if err := config.LoadEnvFile(envFile); err != nil {
					return err
				}
				// Re-read so variables from the file override the config file.
				cfg, err = config.Load(home)
			}
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("addr") {
				cfg.Addr = addr
			}
			if flags.Changed("db-driver") {
				cfg.DBDriver = dbDriver
			}
			if flags.Changed("db-url") {
				cfg.DBURL = dbURL
			}
			if flags.Changed("data-dir") {
				cfg.DataDir = dataDir
			}
			if flags.Changed("otel") {
				cfg.OTel = enableOtel
			}
			if flags.Changed("trace-file") {
				cfg.TraceFile = traceFile
			}

			opts := daemon.StartOptions{
				Home:       home,
				Addr:       cfg.Addr,
				Dev:        dev,
				PprofAddr:  pprofAddr,
				APIKey:     cfg.APIKey,
				DBDriver:   cfg.DBDriver,
				DBURL:      cfg.DBURL,
				DataDir:    cfg.DataDir,
				EnableOtel: cfg.OTel,
				TraceFile:  cfg.TraceFile,
				Version:    cmd.Root().Version,
				Logger:     settingsFrom(cmd).log,
			}

			if detach {
				pid, err := daemon.StartBackground(cmd.Context(), opts)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "signoff started (pid %d)\n", pid)
				return nil
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Starting signoff on http://%s (store: %s)\n", opts.Addr, opts.DBDriver)
			return daemon.StartForeground(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", config.DefaultAddr, "Listen address (env: SIGNOFF_ADDR)")
	cmd.Flags().BoolVar(&detach, "detach", false, "Run in the background; logs go to <home>/protected/daemon.log")
	cmd.Flags().BoolVar(&dev, "dev", false, "Enable dev mode (permissive CORS)")
	cmd.Flags().StringVar(&pprofAddr, "pprof", "", "Enable pprof on address (e.g. 127.0.0.1:6060)")
	cmd.Flags().StringVar(&envFile, "env-file", "", "Load env vars from file (KEY=VALUE per line) before starting")
	cmd.Flags().StringVar(&dbDriver, "db-driver", config.DefaultDBDriver, "Store driver: json, sqlite, postgres or memory")
	cmd.Flags().StringVar(&dbURL, "db-url", "", "Store location: json dir, sqlite file or postgres URL (or DATABASE_URL)")
	cmd.Flags().StringVar(&dataDir, "data-dir", "", "Base directory for json and sqlite data (default: <home>/data)")
	cmd.Flags().BoolVar(&enableOtel, "otel", false, "Enable OpenTelemetry metrics (Prometheus exporter on /metrics, HTTP instrumentation)")
	cmd.Flags().StringVar(&traceFile, "trace-file", "", "Write OpenTelemetry spans to this file as JSON")

	return cmd
}
