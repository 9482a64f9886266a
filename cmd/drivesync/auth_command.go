package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"drivesync/internal/googleauth"
)

func newAuthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "Authorize access to Google Drive and Google Photos",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			url, err := googleauth.AuthCodeURL(cfg.Paths.CredentialsFile)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Open this URL in a browser and approve access:")
			fmt.Fprintln(out)
			fmt.Fprintf(out, "  %s\n", url)
			fmt.Fprintln(out)
			fmt.Fprint(out, "Paste the authorization code here: ")

			reader := bufio.NewReader(cmd.InOrStdin())
			line, err := reader.ReadString('\n')
			if err != nil {
				return fmt.Errorf("read authorization code: %w", err)
			}
			code := strings.TrimSpace(line)
			if code == "" {
				return fmt.Errorf("no authorization code entered")
			}

			if err := googleauth.Exchange(cmd.Context(), cfg.Paths.CredentialsFile, cfg.Paths.TokenFile, code); err != nil {
				return err
			}
			fmt.Fprintf(out, "Token saved to %s\n", cfg.Paths.TokenFile)
			return nil
		},
	}
}
