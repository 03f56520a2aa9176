// cmd/loanctl/registry.go
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"loan-workers/pkg/registry"
)

func newRegistryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Activity registry commands",
	}
	cmd.AddCommand(newRegistryExportCmd())
	cmd.AddCommand(newRegistryValidateCmd())
	return cmd
}

func newRegistryExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export FILE",
		Short: "Write the built-in activity registry as JSON",
		Long:  "Writes the built-in registry so it can be edited and referenced from registry.path.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := registry.Builtin()
			if err := reg.Save(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d activities to %s\n", len(reg.Activities), args[0])
			return nil
		},
	}
}

func newRegistryValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE",
		Short: "Check a registry override file merges into a valid registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := registry.Load(args[0])
			if err != nil {
				return err
			}
			if err := reg.Validate(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registry is valid (%d activities, version %s)\n", len(reg.Activities), reg.Version)
			return nil
		},
	}
}
