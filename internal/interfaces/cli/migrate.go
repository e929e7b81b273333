package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/infrastructure/database/postgres"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/infrastructure/monitoring/logging"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/pkg/errors"
)

// MigrationStatus is the applied core schema version.
type MigrationStatus struct {
	Version uint `json:"version"`
	Dirty   bool `json:"dirty"`
}

func (s MigrationStatus) String() string {
	if s.Dirty {
		return fmt.Sprintf("schema version %d (dirty, fix manually before migrating again)", s.Version)
	}
	return fmt.Sprintf("schema version %d", s.Version)
}

func (s MigrationStatus) TableHeaders() []string { return []string{"VERSION", "DIRTY"} }

func (s MigrationStatus) TableRows() [][]string {
	return [][]string{{fmt.Sprint(s.Version), fmt.Sprint(s.Dirty)}}
}

// NewMigrateCmd manages the static core schema. Annexure tables are not
// touched here; they evolve at runtime.
func NewMigrateCmd() *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the core database schema",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			if err := migrator(cliCtx).Up(postgres.DSN(cliCtx.Config.Database)); err != nil {
				return err
			}
			cliCtx.Logger.Info("migrations applied")
			PrintSuccess(cmd, "migrations applied")
			return nil
		},
	}

	var steps int
	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back applied migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			if steps <= 0 {
				return errors.InvalidParam("--steps must be positive").WithDetail(fmt.Sprint(steps))
			}
			if err := migrator(cliCtx).Down(postgres.DSN(cliCtx.Config.Database), steps); err != nil {
				return err
			}
			cliCtx.Logger.Warn("migrations rolled back", logging.Int("steps", steps))
			PrintSuccess(cmd, fmt.Sprintf("rolled back %d migration(s)", steps))
			return nil
		},
	}
	downCmd.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the applied schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			version, dirty, err := migrator(cliCtx).Status(postgres.DSN(cliCtx.Config.Database))
			if err != nil {
				return err
			}
			return PrintResult(cmd, MigrationStatus{Version: version, Dirty: dirty})
		},
	}

	migrateCmd.AddCommand(upCmd, downCmd, statusCmd)
	return migrateCmd
}

func migrator(cliCtx *CLIContext) Migrator {
	if cliCtx.Deps.Migrator != nil {
		return cliCtx.Deps.Migrator
	}
	return postgresMigrator{}
}
