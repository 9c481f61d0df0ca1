package signout

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AMEND09/ID-Scanner/internal/app"
	"github.com/AMEND09/ID-Scanner/internal/conf"
	"github.com/AMEND09/ID-Scanner/internal/session"
)

// Command creates the signout command, which revokes and forgets the stored token.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "signout",
		Short: "Revoke the stored token and clear the selected sheet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Run(cmd.Context(), settings, func(a *app.App) error {
				err := a.Sessions.SignOut(cmd.Context())
				if errors.Is(err, session.ErrNotSignedIn) {
					fmt.Fprintln(cmd.OutOrStdout(), "Not signed in")
					return nil
				}
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
				return nil
			})
		},
	}
}
