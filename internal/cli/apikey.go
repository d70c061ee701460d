package cli

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

const apiKeyEnv = "SIGNOFF_API_KEY"

func newApikeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apikey",
		Short: "Generate an API key for a server reachable over the network",
	}
	cmd.AddCommand(newApikeyGenerateCmd())
	return cmd
}

func newApikeyGenerateCmd() *cobra.Command {
	var envFile string
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a random API key and print usage instructions",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := generateAPIKey()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "Generated API key (save it somewhere safe):\n\n  %s\n\n", key)

			if envFile != "" {
				if err := appendEnv(envFile, apiKeyEnv, key); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(out, "Appended %s to %s\n", apiKeyEnv, envFile)
				_, _ = fmt.Fprintf(out, "Start the server with: signoff serve --env-file %s\n", envFile)
			} else {
				printKeyUsage(out, key)
			}
			_, _ = fmt.Fprintln(out)
			return nil
		},
	}
	cmd.Flags().StringVar(&envFile, "env", "", "Append "+apiKeyEnv+" to this file (e.g. .env)")
	return cmd
}

func generateAPIKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func printKeyUsage(w io.Writer, key string) {
	_, _ = fmt.Fprintln(w, "Use it:")
	_, _ = fmt.Fprintf(w, "  1. On the server: export %s=%s\n", apiKeyEnv, key)
	_, _ = fmt.Fprintln(w, "     or set api_key in <home>/signoff.yaml")
	_, _ = fmt.Fprintln(w, "  2. HTTP clients: send header X-API-Key: <key> or query ?api_key=<key>")
	_, _ = fmt.Fprintln(w, "  3. CLI: signoff task list --server http://host:5000 --api-key <key>")
}

// appendEnv appends KEY=value to path, creating it with owner-only permissions.
func appendEnv(path, key, value string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if _, err := fmt.Fprintf(f, "%s=%s\n", key, value); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
