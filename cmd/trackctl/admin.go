package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/BearBump/TrackDesk/internal/models"
	"github.com/BearBump/TrackDesk/internal/services/admins"
	"github.com/spf13/cobra"
)

func (c *cli) adminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage admin users",
	}
	cmd.AddCommand(c.adminCreateCmd(), c.adminListCmd())
	return cmd
}

func (c *cli) adminCreateCmd() *cobra.Command {
	var in admins.CreateInput
	var role string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an admin user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Role = models.AdminRole(role)
			return c.withStore(func(st cliStore) error {
				// сессии CLI не нужны
				a, err := admins.New(st, nil).Create(cmd.Context(), in)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created admin %s <%s> role=%s id=%s\n", a.Name, a.Email, a.Role, a.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&in.Name, "name", "", "display name")
	cmd.Flags().StringVar(&in.Email, "email", "", "login email")
	cmd.Flags().StringVar(&in.Password, "password", "", "password, at least 8 characters")
	cmd.Flags().StringVar(&role, "role", string(models.AdminRoleAdmin), "admin | super_admin | viewer")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func (c *cli) adminListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List admin users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withStore(func(st cliStore) error {
				list, err := st.ListAdmins(cmd.Context())
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME\tEMAIL\tROLE\tLAST LOGIN")
				for _, a := range list {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", a.ID, a.Name, a.Email, a.Role, models.FormatDateTime(a.LastLogin))
				}
				return w.Flush()
			})
		},
	}
}
