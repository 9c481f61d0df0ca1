package serve

import (
	"context"
	"net"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/AMEND09/ID-Scanner/internal/api"
	"github.com/AMEND09/ID-Scanner/internal/app"
	"github.com/AMEND09/ID-Scanner/internal/buildinfo"
	"github.com/AMEND09/ID-Scanner/internal/conf"
	"github.com/AMEND09/ID-Scanner/internal/logger"
)

// Command creates the serve command, which runs the HTTP API until interrupted.
func Command(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	var (
		host      string
		port      string
		autoStart bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the scanner API over HTTP",
		Long: `Serve the scanner over HTTP so a browser or a phone can sign in, pick a sheet,
push camera frames and scanned codes, and download exports.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if host == "" {
				host = settings.WebServer.Host
			}
			if port == "" {
				port = settings.WebServer.Port
			}
			return app.Run(cmd.Context(), settings, func(a *app.App) error {
				return run(cmd.Context(), a, build, net.JoinHostPort(host, port), autoStart)
			})
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "Listen host (default from webserver.host)")
	cmd.Flags().StringVarP(&port, "port", "p", "", "Listen port (default from webserver.port)")
	cmd.Flags().BoolVar(&autoStart, "start", false, "Start scanning right away when a sheet is selected")
	return cmd
}

func run(ctx context.Context, a *app.App, build *buildinfo.Context, addr string, autoStart bool) error {
	log := logger.Global().Module("cli")

	server := api.New(ctx, a, api.WithBuildInfo(build))

	if autoStart {
		if _, err := a.Sessions.StartScanner(ctx); err != nil {
			log.Warn("scanner not started", logger.Error(err))
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(gctx, addr)
	})
	g.Go(func() error {
		<-gctx.Done()
		a.Sessions.StopScanner()
		return nil
	})
	return g.Wait()
}
