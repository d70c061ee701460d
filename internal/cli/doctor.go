package cli

import (
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/ankittk/signoff/internal/config"
	"github.com/ankittk/signoff/internal/store/driver"
)

func newDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Verify home, configuration and store",
		RunE: func(cmd *cobra.Command, args []string) error {
			home := config.MustHomeFrom(cmd.Context())
			out := cmd.OutOrStdout()

			var problems []string

			if err := os.MkdirAll(home, 0o755); err != nil {
				problems = append(problems, fmt.Sprintf("home %s: %v", home, err))
			}

			cfg, err := loadConfig(cmd)
			switch {
			case err != nil:
				problems = append(problems, err.Error())
			case cfg.Source != "":
				_, _ = fmt.Fprintf(out, "config: %s\n", cfg.Source)
			default:
				_, _ = fmt.Fprintln(out, "config: defaults")
			}

			st, err := driver.Open(cmd.Context(), driver.Options{
				Driver:  cfg.DBDriver,
				DataDir: cfg.DataDir,
				DSN:     cfg.DBURL,
				Logger:  settingsFrom(cmd).log,
			})
			if err != nil {
				problems = append(problems, fmt.Sprintf("store (%s): %v", cfg.DBDriver, err))
			} else {
				n, err := st.Count(cmd.Context())
				_ = st.Close()
				if err != nil {
					problems = append(problems, fmt.Sprintf("store (%s): %v", cfg.DBDriver, err))
				} else {
					_, _ = fmt.Fprintf(out, "store: %s (%d tasks)\n", cfg.DBDriver, n)
				}
			}

			// git is only needed for `identity detect`.
			if _, err := exec.LookPath("git"); err != nil {
				_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "warning: git not found on PATH; identity detect unavailable")
			}

			if len(problems) > 0 {
				for _, p := range problems {
					_, _ = fmt.Fprintln(cmd.ErrOrStderr(), p)
				}
				return errors.New("doctor checks failed")
			}

			_, _ = fmt.Fprintln(out, "ok")
			return nil
		},
	}
	return cmd
}
