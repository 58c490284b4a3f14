package cmd

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"faultline/internal/bootstrap"
	"faultline/internal/bootstrap/logging"
	domainingest "faultline/internal/domain/ingest"
	"faultline/internal/errs"
	"faultline/internal/infrastructure/persistence/sqlite/repository"
	"faultline/internal/ports"
	"faultline/internal/usecase/ingest"
)

var (
	seedOrgName     string
	seedProjectName string
	seedPublicKey   string
)

// seedProjectCmd represents the seedProject command
var seedProjectCmd = &cobra.Command{
	Use:   "seed-project",
	Short: "Create an organization, project, and DSN key",
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, _ *ingest.Service) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		// LookupByKey compares against the canonical dashed UUID form, so the
		// stored key must be canonical too.
		key := uuid.NewString()
		if seedPublicKey != "" {
			parsed, err := domainingest.ParseKey(seedPublicKey)
			if err != nil {
				return errs.Wrap(err, "parse public key")
			}
			key = parsed
		}

		projects := repository.NewProjectRepository(app.DB)
		result, err := projects.Seed(ctx, ports.ProjectSeed{
			OrganizationName: seedOrgName,
			ProjectName:      seedProjectName,
			PublicKey:        key,
			CreatedAt:        time.Now().UTC().Format(time.RFC3339),
		})
		if err != nil {
			logging.Error(ctx, "seed project failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "seed project")
		}

		logging.Info(ctx, "project seeded",
			slog.Uint64("organization_id", result.OrganizationID),
			slog.Uint64("project_id", result.ProjectID))

		addr := strings.TrimPrefix(app.Config.Server.Addr, ":")
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "project %d created\ndsn: http://%s@localhost:%s/%d\n",
			result.ProjectID, result.PublicKey, addr, result.ProjectID); err != nil {
			return errs.Wrap(err, "write seed-project output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(seedProjectCmd)

	seedProjectCmd.Flags().StringVar(&seedOrgName, "org", "default", "Organization name")
	seedProjectCmd.Flags().StringVar(&seedProjectName, "project", "default", "Project name")
	seedProjectCmd.Flags().StringVar(&seedPublicKey, "key", "", "DSN public key (generated when empty)")
}
