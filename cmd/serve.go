package cmd

import (
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"faultline/internal/bootstrap"
	"faultline/internal/bootstrap/logging"
	"faultline/internal/errs"
	"faultline/internal/server"
	"faultline/internal/usecase/ingest"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the ingest HTTP server",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, ingestSvc *ingest.Service) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		ctx = logging.WithAttrs(ctx, slog.String("command", cmd.CommandPath()))
		logging.Info(ctx, "start serve", slog.String("addr", app.Config.Server.Addr))

		if err := ingestSvc.Start(ctx); err != nil {
			return errs.Wrap(err, "start ingest service")
		}
		defer ingestSvc.Stop()

		srv := server.New(app.Config.Server.Addr, ingestSvc)
		if err := srv.Run(ctx); err != nil {
			return errs.Wrap(err, "run http server")
		}

		logging.Info(ctx, "serve finished")
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
