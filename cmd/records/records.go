package records

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/AMEND09/ID-Scanner/internal/app"
	"github.com/AMEND09/ID-Scanner/internal/conf"
	"github.com/AMEND09/ID-Scanner/internal/export"
)

// Command creates the records command group for the local scan history.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "records",
		Short: "Inspect, resync and export the local scan history",
	}

	cmd.AddCommand(listCommand(settings), resyncCommand(settings), exportCommand(settings))
	return cmd
}

func listCommand(settings *conf.Settings) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the most recent scans",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Run(cmd.Context(), settings, func(a *app.App) error {
				list := a.Records.List(limit)
				if len(list) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No scans yet")
					return nil
				}

				loc := settings.Location()
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "TIME\tSTATUS\tLABEL")
				for _, r := range list {
					status := "✓"
					if !r.Succeeded {
						status = "✗"
					}
					fmt.Fprintf(w, "%s\t%s\t%s\n", r.Timestamp.In(loc).Format(export.DisplayLayout), status, r.Label)
				}
				if err := w.Flush(); err != nil {
					return err
				}
				if n := a.Records.Pending(); n > 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "%d scans not yet written to the sheet, run \"records resync\"\n", n)
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of scans to show, 0 for all")
	return cmd
}

func resyncCommand(settings *conf.Settings) *cobra.Command {
	var tab string

	cmd := &cobra.Command{
		Use:   "resync",
		Short: "Write the whole history to the selected sheet again",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Run(cmd.Context(), settings, func(a *app.App) error {
				n, err := a.Sessions.Resync(cmd.Context(), tab)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Resynced %d scans\n", n)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&tab, "tab", "", "Write to this tab instead of the selected one")
	return cmd
}

func exportCommand(settings *conf.Settings) *cobra.Command {
	var format, output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the history as json, csv or xlsx",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			return app.Run(cmd.Context(), settings, func(a *app.App) error {
				var buf bytes.Buffer
				if err := export.Write(&buf, f, a.Records.Snapshot(), settings.Location()); err != nil {
					return err
				}

				if output == "-" {
					_, err := cmd.OutOrStdout().Write(buf.Bytes())
					return err
				}
				path := output
				if path == "" {
					path = filepath.Join(settings.Export.Directory, export.Filename(f, time.Now()))
				}
				if dir := filepath.Dir(path); dir != "" {
					if err := os.MkdirAll(dir, 0o755); err != nil {
						return fmt.Errorf("failed to create export directory: %w", err)
					}
				}
				if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
					return fmt.Errorf("failed to write export: %w", err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d scans to %s\n", a.Records.Len(), path)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", string(export.FormatCSV), "Export format: json, csv or xlsx")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file, - for stdout (default <export.directory>/scans-<time>.<format>)")
	return cmd
}
