// cmd/loanctl/loan.go
package main

import (
	"github.com/spf13/cobra"

	"loan-workers/internal/bootstrap"
	"loan-workers/internal/lending/service"
	"loan-workers/internal/models"
)

func newLoanCmd(opts *globalOptions) *cobra.Command {
	var actor string

	cmd := &cobra.Command{
		Use:   "loan",
		Short: "Run loan operations directly against the store",
	}
	cmd.PersistentFlags().StringVar(&actor, "actor", "", "user the operation runs as")
	_ = cmd.MarkPersistentFlagRequired("actor")

	// withService opens the runtime for one command and prints fn's result as JSON.
	withService := func(fn func(cmd *cobra.Command, args []string, svc *service.Service) (interface{}, error)) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			rt, err := opts.runtime(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.Close()
			return run(cmd, args, rt, fn)
		}
	}

	var forGroup bool
	create := &cobra.Command{
		Use:   "create CLIENT_ID",
		Short: "Create a loan application for a client",
		Args:  cobra.ExactArgs(1),
	}
	create.RunE = withService(func(cmd *cobra.Command, args []string, svc *service.Service) (interface{}, error) {
		res, err := svc.CreateLoan(cmd.Context(), service.CreateLoanRequest{
			ClientID: args[0], ForGroup: forGroup, Actor: actor,
		})
		if err != nil {
			return nil, err
		}
		return res.Loan, nil
	})
	create.Flags().BoolVar(&forGroup, "for-group", false, "group loan, skips the cycle ledger")

	get := &cobra.Command{
		Use:   "get LOAN_ID",
		Short: "Print a loan with its sections and questions",
		Args:  cobra.ExactArgs(1),
	}
	get.RunE = withService(func(cmd *cobra.Command, args []string, svc *service.Service) (interface{}, error) {
		return svc.GetLoan(cmd.Context(), args[0], actor)
	})

	var comment string
	status := &cobra.Command{
		Use:   "status LOAN_ID STATUS",
		Short: "Move a loan to a new status",
		Args:  cobra.ExactArgs(2),
	}
	status.RunE = withService(func(cmd *cobra.Command, args []string, svc *service.Service) (interface{}, error) {
		res, err := svc.UpdateLoanStatus(cmd.Context(), service.UpdateStatusRequest{
			LoanID:  args[0],
			Status:  models.LoanStatus(args[1]),
			Comment: comment,
			Actor:   actor,
		})
		if err != nil {
			return nil, err
		}
		return res.Loan, nil
	})
	status.Flags().StringVar(&comment, "comment", "", "comment stored with the transition")

	del := &cobra.Command{
		Use:   "delete LOAN_ID",
		Short: "Delete a loan with its sections and questions",
		Args:  cobra.ExactArgs(1),
	}
	del.RunE = withService(func(cmd *cobra.Command, args []string, svc *service.Service) (interface{}, error) {
		res, err := svc.DeleteLoan(cmd.Context(), args[0], actor)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"loanId": res.Loan.ID, "deleted": res.Deleted}, nil
	})

	cmd.AddCommand(create, get, status, del)
	return cmd
}

func run(cmd *cobra.Command, args []string, rt *bootstrap.Runtime, fn func(*cobra.Command, []string, *service.Service) (interface{}, error)) error {
	out, err := fn(cmd, args, rt.Service)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), out)
}
