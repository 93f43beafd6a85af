package main

import (
	"errors"
	"fmt"

	"github.com/jonathan/resume-vault/internal/admin"
	"github.com/jonathan/resume-vault/internal/types"
	"github.com/spf13/cobra"
)

// directory loads the user table for an administrator.
func (a *app) directory(cmd *cobra.Command, assumeYes bool) (*admin.Directory, error) {
	p, err := a.principal()
	if err != nil {
		return nil, err
	}
	if !types.CapabilitiesOf(p).Has(types.CapManageUsers) {
		return nil, errors.New("only administrators can manage users")
	}
	dir := admin.NewDirectory(a.admin, a.confirm(assumeYes), a.logger)
	if err := dir.Refresh(cmd.Context()); err != nil {
		return nil, report(err)
	}
	return dir, nil
}

func newAdminCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage accounts and bidder assignments",
	}
	cmd.AddCommand(
		newAdminUsersCmd(a),
		newAdminCreateCmd(a),
		newAdminRemoveCmd(a),
		newAdminRoleCmd(a),
		newAdminAssignCmd(a),
		newAdminPasswordCmd(a),
	)
	return cmd
}

func newAdminUsersCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List every account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dir, err := a.directory(cmd, false)
			if err != nil {
				return err
			}
			a.printer.PrintUsers("USERS", dir.Users())
			return nil
		},
	}
}

func newAdminCreateCmd(a *app) *cobra.Command {
	var req types.CreateUserRequest
	var role string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a bidder or developer account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req.Role = types.Role(role)
			if err := req.Validate(); err != nil {
				return fmt.Errorf("create user: %s", types.ValidationMessage(err))
			}
			dir, err := a.directory(cmd, false)
			if err != nil {
				return err
			}
			if err := dir.Create(cmd.Context(), req); err != nil {
				return report(err)
			}
			a.printer.PrintUsers("USERS", dir.Users())
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Username, "username", "", "Username")
	cmd.Flags().StringVar(&req.Password, "password", "", "Initial password")
	cmd.Flags().StringVar(&role, "role", string(types.RoleBidder), "Role: bidder or developer")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newAdminRemoveCmd(a *app) *cobra.Command {
	var assumeYes bool
	cmd := &cobra.Command{
		Use:   "remove USER_ID",
		Short: "Delete an account after confirmation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := a.directory(cmd, assumeYes)
			if err != nil {
				return err
			}
			deleted, err := dir.Delete(cmd.Context(), args[0])
			if err != nil {
				return report(err)
			}
			if !deleted {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing deleted.")
				return nil
			}
			a.printer.PrintUsers("USERS", dir.Users())
			return nil
		},
	}
	cmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func newAdminRoleCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "role USER_ID ROLE",
		Short: "Switch an account between bidder and developer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := types.RoleChangeRequest{Role: types.Role(args[1])}
			if err := req.Validate(); err != nil {
				return fmt.Errorf("change role: %s", types.ValidationMessage(err))
			}
			dir, err := a.directory(cmd, false)
			if err != nil {
				return err
			}
			if err := dir.ChangeRole(cmd.Context(), args[0], req.Role); err != nil {
				return report(err)
			}
			a.printer.PrintUsers("USERS", dir.Users())
			return nil
		},
	}
}

func newAdminAssignCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "assign BIDDER_ID DEVELOPER_ID",
		Short: "Assign a bidder to a developer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := a.directory(cmd, false)
			if err != nil {
				return err
			}
			known := false
			for _, d := range dir.Developers() {
				known = known || d.ID == args[1]
			}
			if !known {
				return fmt.Errorf("%s is not a developer", args[1])
			}
			if err := dir.Assign(cmd.Context(), args[0], args[1]); err != nil {
				return report(err)
			}
			a.printer.PrintUsers("USERS", dir.Users())
			return nil
		},
	}
}

func newAdminPasswordCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "password USER_ID PASSWORD",
		Short: "Set an account's password",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := types.PasswordUpdateRequest{Password: args[1]}
			if err := req.Validate(); err != nil {
				return fmt.Errorf("update password: %s", types.ValidationMessage(err))
			}
			if _, err := a.directory(cmd, false); err != nil {
				return err
			}
			if err := a.admin.UpdatePassword(cmd.Context(), args[0], req.Password); err != nil {
				return report(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Password updated.")
			return nil
		},
	}
}
