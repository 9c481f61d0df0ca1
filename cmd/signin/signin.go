package signin

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AMEND09/ID-Scanner/internal/app"
	"github.com/AMEND09/ID-Scanner/internal/conf"
)

// Command creates the signin command, which stores an OAuth access token after probing it.
func Command(settings *conf.Settings) *cobra.Command {
	var token string

	cmd := &cobra.Command{
		Use:   "signin",
		Short: "Sign in with a Google OAuth access token",
		Long: `Sign in with an OAuth access token that carries the spreadsheets and
drive.metadata.readonly scopes. Pass "-" to read the token from stdin.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "-" {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("failed to read token from stdin: %w", err)
				}
				token = line
			}
			if strings.TrimSpace(token) == "" {
				token = os.Getenv("IDSCANNER_TOKEN")
			}
			if strings.TrimSpace(token) == "" {
				return fmt.Errorf("an access token is required (--token or IDSCANNER_TOKEN)")
			}

			return app.Run(cmd.Context(), settings, func(a *app.App) error {
				return signIn(cmd.Context(), a, token, cmd)
			})
		},
	}

	cmd.Flags().StringVarP(&token, "token", "t", "", "OAuth access token, or - to read it from stdin")
	return cmd
}

func signIn(ctx context.Context, a *app.App, token string, cmd *cobra.Command) error {
	s, err := a.Sessions.SignIn(ctx, token)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Signed in, session %s\n", s.ID)

	if t := a.Sessions.Target(); t.Selected() {
		fmt.Fprintf(cmd.OutOrStdout(), "Selected sheet: %s\n", t.SpreadsheetName)
	}
	return nil
}
