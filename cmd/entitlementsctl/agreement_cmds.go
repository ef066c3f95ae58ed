package main

import (
	"context"
	"fmt"
	"strings"

	gocmd "github.com/goliatone/go-command"
	entcommand "github.com/goliatone/go-entitlements/command"
	"github.com/goliatone/go-entitlements/core"
	"github.com/spf13/cobra"
)

func newClearPermissionsCmd(opts *globalOptions) *cobra.Command {
	var (
		agreementID string
		userID      string
		internal    bool
	)
	cmd := &cobra.Command{
		Use:   "clear-permissions",
		Short: "Remove every permission a user holds under an agreement",
		RunE: func(cmd *cobra.Command, _ []string) error {
			user := core.User{ID: strings.TrimSpace(userID)}
			if internal {
				user = core.User{InternalID: strings.TrimSpace(userID)}
			}
			return runAgreementCommand(cmd, opts, func(ctx context.Context, commands commandSet) error {
				return commands.ClearUserPermissions.Execute(ctx, entcommand.ClearUserPermissionsMessage{
					Agreement: core.Agreement{ID: agreementID},
					User:      user,
				})
			})
		},
	}
	cmd.Flags().StringVar(&agreementID, "agreement", "", "Agreement id")
	cmd.Flags().StringVar(&userID, "user", "", "User id (external unless --internal)")
	cmd.Flags().BoolVar(&internal, "internal", false, "Treat --user as an internal user id")
	_ = cmd.MarkFlagRequired("agreement")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newRemoveAdminsCmd(opts *globalOptions) *cobra.Command {
	var agreementID string
	cmd := &cobra.Command{
		Use:   "remove-admins",
		Short: "Remove every administrator from an agreement",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAgreementCommand(cmd, opts, func(ctx context.Context, commands commandSet) error {
				return commands.RemoveAdministrators.Execute(ctx, entcommand.RemoveAdministratorsMessage{
					Agreement: core.Agreement{ID: agreementID},
				})
			})
		},
	}
	cmd.Flags().StringVar(&agreementID, "agreement", "", "Agreement id")
	_ = cmd.MarkFlagRequired("agreement")
	return cmd
}

func newDeletePermissionGroupsCmd(opts *globalOptions) *cobra.Command {
	var agreementID string
	cmd := &cobra.Command{
		Use:   "delete-permission-groups",
		Short: "Delete every permission group of an agreement",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAgreementCommand(cmd, opts, func(ctx context.Context, commands commandSet) error {
				return commands.DeletePermissionGroups.Execute(ctx, entcommand.DeletePermissionGroupsMessage{
					Agreement: core.Agreement{ID: agreementID},
				})
			})
		},
	}
	cmd.Flags().StringVar(&agreementID, "agreement", "", "Agreement id")
	_ = cmd.MarkFlagRequired("agreement")
	return cmd
}

type commandSet struct {
	ClearUserPermissions   gocmd.Commander[entcommand.ClearUserPermissionsMessage]
	RemoveAdministrators   gocmd.Commander[entcommand.RemoveAdministratorsMessage]
	DeletePermissionGroups gocmd.Commander[entcommand.DeletePermissionGroupsMessage]
}

// runAgreementCommand runs a mutation that yields no value and prints the
// records it produced.
func runAgreementCommand(cmd *cobra.Command, opts *globalOptions, run func(context.Context, commandSet) error) error {
	rt, err := openRuntime(cmd.Context(), opts)
	if err != nil {
		return err
	}
	defer rt.Close()

	commands := rt.facade.Commands()
	collector := gocmd.NewResult[entcommand.Result[struct{}]]()
	ctx := gocmd.ContextWithResult(cmd.Context(), collector)
	runErr := run(ctx, commandSet{
		ClearUserPermissions:   commands.ClearUserPermissions,
		RemoveAdministrators:   commands.RemoveAdministrators,
		DeletePermissionGroups: commands.DeletePermissionGroups,
	})
	if result, ok := collector.Load(); ok {
		if err := writeRecords(cmd.OutOrStdout(), opts.output, result.Records); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "execution %s: %d record(s), %d error(s)\n",
			result.ExecutionID, len(result.Records), len(result.Errors()))
	}
	return runErr
}
