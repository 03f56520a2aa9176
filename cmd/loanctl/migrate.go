// cmd/loanctl/migrate.go
package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newMigrateCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the entity table and its indexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := opts.runtime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			if rt.Postgres == nil {
				return fmt.Errorf("migrate requires the postgres driver, config uses %q", rt.Config.Database.Driver)
			}
			if err := rt.Postgres.Migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Migrated entities table on %s/%s\n",
				rt.Config.Database.Postgres.Host, rt.Config.Database.Postgres.Database)
			return nil
		},
	}
}
