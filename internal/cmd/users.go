package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"tarediiran-industries.com/ticketing-services/internal/authz"
	"tarediiran-industries.com/ticketing-services/internal/model"
	"tarediiran-industries.com/ticketing-services/internal/store"
)

func NewUsersCmd(app *CtlApp) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Manage login accounts",
	}

	cmd.AddCommand(newUsersCreateCmd(app))
	cmd.AddCommand(newUsersListCmd(app))

	return cmd
}

func newUsersCreateCmd(app *CtlApp) *cobra.Command {
	var email, name, password, role string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user, typically the first admin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			userRole := model.Role(role)
			if userRole != model.RoleAdmin && userRole != model.RoleCustomer {
				return fmt.Errorf("--role must be %s or %s", model.RoleAdmin, model.RoleCustomer)
			}
			hash, err := authz.HashPassword(password)
			if err != nil {
				return err
			}

			return app.withStore(cmd, func(ctx context.Context, ticketingStore *store.Store) error {
				user, err := ticketingStore.CreateUser(ctx, model.User{Email: email, Name: name, Role: userRole, PasswordHash: hash})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created %s %s (id %d)\n", user.Role, user.Email, user.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Login email")
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().StringVar(&password, "password", "", "Initial password")
	cmd.Flags().StringVar(&role, "role", string(model.RoleCustomer), "admin or customer")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("password")

	return cmd
}

func newUsersListCmd(app *CtlApp) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.withStore(cmd, func(ctx context.Context, ticketingStore *store.Store) error {
				users, err := ticketingStore.ListUsers(ctx, store.UserFilter{}, store.Page{Limit: limit})
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(users))
				for _, user := range users {
					rows = append(rows, []string{strconv.FormatInt(user.ID, 10), user.Email, user.Name, string(user.Role)})
				}
				printTable(cmd.OutOrStdout(), []string{"ID", "Email", "Name", "Role"}, rows)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", store.DefaultPageSize, "Maximum rows")

	return cmd
}
