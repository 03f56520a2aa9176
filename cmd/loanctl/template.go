// cmd/loanctl/template.go
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"loan-workers/internal/lending/template"
)

func newTemplateCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Form template commands",
	}
	cmd.AddCommand(newTemplateValidateCmd())
	cmd.AddCommand(newTemplateImportCmd(opts))
	return cmd
}

func newTemplateValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE",
		Short: "Check a template file without importing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tpl, err := template.Load(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %q is valid (%d questions, %d sections)\n",
				args[0], tpl.Title, len(tpl.Questions), len(tpl.Sections))
			return nil
		},
	}
}

func newTemplateImportCmd(opts *globalOptions) *cobra.Command {
	var createdBy string

	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Import a form template with its questions and sections",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tpl, err := template.Load(args[0])
			if err != nil {
				return err
			}

			rt, err := opts.runtime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()

			form, err := template.Import(cmd.Context(), rt.Store, tpl, createdBy)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %q form %s (%d questions, %d sections)\n",
				form.Type, form.ID, len(form.Questions), len(form.Sections))
			return nil
		},
	}
	cmd.Flags().StringVar(&createdBy, "created-by", "", "user recorded as the template author")
	return cmd
}
