package sheets

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/AMEND09/ID-Scanner/internal/app"
	"github.com/AMEND09/ID-Scanner/internal/conf"
	"github.com/AMEND09/ID-Scanner/internal/session"
	"github.com/AMEND09/ID-Scanner/internal/sheets"
)

// Command creates the sheets command group for listing and selecting the write target.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sheets",
		Short: "List spreadsheets and choose where scans are written",
	}

	cmd.AddCommand(listCommand(settings), tabsCommand(settings), selectCommand(settings), targetCommand(settings))
	return cmd
}

func listCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the spreadsheets of the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Run(cmd.Context(), settings, func(a *app.App) error {
				list, err := a.Sessions.ListSpreadsheets(cmd.Context())
				if err != nil {
					return err
				}
				if len(list) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No spreadsheets found")
					return nil
				}
				w := newTable(cmd.OutOrStdout())
				fmt.Fprintln(w, "ID\tNAME")
				for _, s := range list {
					fmt.Fprintf(w, "%s\t%s\n", s.ID, s.Name)
				}
				return w.Flush()
			})
		},
	}
}

func tabsCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "tabs <spreadsheet-id>",
		Short: "List the tabs of a spreadsheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Run(cmd.Context(), settings, func(a *app.App) error {
				tabs, err := a.Sessions.ListTabs(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				printTabs(cmd.OutOrStdout(), tabs)
				return nil
			})
		},
	}
}

func selectCommand(settings *conf.Settings) *cobra.Command {
	var name, tab string

	cmd := &cobra.Command{
		Use:   "select <spreadsheet-id>",
		Short: "Select the spreadsheet, and optionally the tab, scans are written to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Run(cmd.Context(), settings, func(a *app.App) error {
				out := cmd.OutOrStdout()
				target, tabs, err := a.Sessions.SelectSpreadsheet(cmd.Context(), args[0], name)
				switch {
				case errors.Is(err, session.ErrTabsUnavailable):
					fmt.Fprintln(out, "Unable to read sheet tabs (permissions or network). Please enter tab name manually with --tab.")
				case err != nil:
					return err
				default:
					printTabs(out, tabs)
				}

				if tab != "" {
					if target, err = a.Sessions.SelectTab(cmd.Context(), tab); err != nil {
						return err
					}
				}
				printTarget(out, target)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Display name of the spreadsheet")
	cmd.Flags().StringVar(&tab, "tab", "", "Tab to write to")
	return cmd
}

func targetCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "target",
		Short: "Show the selected spreadsheet and tab",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Run(cmd.Context(), settings, func(a *app.App) error {
				printTarget(cmd.OutOrStdout(), a.Sessions.Target())
				return nil
			})
		},
	}
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

func printTabs(w io.Writer, tabs []sheets.Tab) {
	if len(tabs) == 0 {
		fmt.Fprintln(w, "No tabs found")
		return
	}
	fmt.Fprintln(w, "Tabs:")
	for _, t := range tabs {
		fmt.Fprintf(w, "  %s\n", t.Title)
	}
}

func printTarget(w io.Writer, t sheets.Target) {
	if !t.Selected() {
		fmt.Fprintln(w, "No Google Sheet selected")
		return
	}
	name := t.SpreadsheetName
	if name == "" {
		name = t.SpreadsheetID
	}
	tab := t.TabName
	if tab == "" {
		tab = "(default tab)"
	}
	fmt.Fprintf(w, "Selected: %s / %s\n", name, tab)
}
