package ledgerctl

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newMigrateCommand(sess *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the PostgreSQL schema",
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pg := sess.cfg.Postgres
			if err := sess.opts.Migrator.Up(pg.URL, pg.MigrationsPath); err != nil {
				return err
			}
			sess.logger.Info("Migrations applied", "path", pg.MigrationsPath)
			return nil
		},
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back the last migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pg := sess.cfg.Postgres
			if err := sess.opts.Migrator.Down(pg.URL, pg.MigrationsPath, steps); err != nil {
				return err
			}
			sess.logger.Info("Migrations rolled back", "steps", steps)
			return nil
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pg := sess.cfg.Postgres
			v, dirty, err := sess.opts.Migrator.Version(pg.URL, pg.MigrationsPath)
			if err != nil {
				return err
			}
			state := "clean"
			if dirty {
				state = "dirty"
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (%s)\n", v, state)
			return err
		},
	}

	cmd.AddCommand(up, down, versionCmd)
	return cmd
}
