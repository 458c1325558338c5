package cli

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nao1215/resourcehub/internal/notification"
	"github.com/nao1215/resourcehub/pkg/api"
)

func (c *cli) userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "user",
		Aliases: []string{"users"},
		Short:   "Manage users",
	}
	cmd.AddCommand(
		c.userListCmd(),
		c.userGetCmd(),
		c.userUpdateCmd(),
		c.userDeleteCmd(),
	)
	return cmd
}

func (c *cli) userListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resp, err := c.app.API.Users.List(cmd.Context())
			if err != nil {
				return err
			}

			users := slices.Clone(resp.Data)
			slices.SortFunc(users, func(a, b api.User) int { return cmp.Compare(a.ID, b.ID) })

			t := newTable(c.app.out, "ID", "USER", "EMAIL", "JOINED")
			for _, u := range users {
				t.row(
					strconv.FormatUint(uint64(u.ID), 10),
					formatUser(u),
					u.Email,
					c.app.Dates.LocalDate(u.CreatedAt),
				)
			}
			return t.flush()
		},
	}
}

func (c *cli) userGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get ID",
		Short: "Show a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := api.ParseID(args[0])
			if err != nil {
				return err
			}
			resp, err := c.app.API.Users.Get(cmd.Context(), id)
			if err != nil {
				return err
			}

			u := resp.Data
			c.printf("ID:       %d\n", u.ID)
			c.printf("Username: %s\n", u.Username)
			c.printf("Email:    %s\n", u.Email)
			c.printf("Name:     %s\n", u.DisplayName())
			c.printf("Joined:   %s\n", c.app.Dates.LocalDate(u.CreatedAt))
			return nil
		},
	}
}

func (c *cli) userUpdateCmd() *cobra.Command {
	var username, email, names, password string

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update the logged in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.requireLogin(); err != nil {
				return err
			}

			var req api.UpdateUserRequest
			flags := cmd.Flags()
			if flags.Changed("username") {
				req.Username = &username
			}
			if flags.Changed("email") {
				req.Email = &email
			}
			if flags.Changed("names") {
				req.Names = &names
			}
			if flags.Changed("password") {
				req.Password = &password
			}
			if req == (api.UpdateUserRequest{}) {
				return errors.New("更新する項目を指定してください")
			}

			state := c.app.Session.State()
			resp, err := c.app.API.Users.Update(c.actingAs(cmd.Context()), state.User.ID, req)
			if err != nil {
				return err
			}

			// 保存済みのユーザー情報も更新後の内容に合わせる
			c.app.Session.Login(cmd.Context(), resp.Data, state.Token)
			c.app.notify(notification.TypeSuccess, "ユーザー情報を更新しました", resp.Data.DisplayName())
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "new username")
	cmd.Flags().StringVarP(&email, "email", "e", "", "new email address")
	cmd.Flags().StringVar(&names, "names", "", "new display name")
	cmd.Flags().StringVarP(&password, "password", "p", "", "new password")

	return cmd
}

func (c *cli) userDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a user account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.requireLogin(); err != nil {
				return err
			}
			id, err := api.ParseID(args[0])
			if err != nil {
				return err
			}
			if _, err := c.app.API.Users.Delete(c.actingAs(cmd.Context()), id); err != nil {
				return err
			}

			c.app.notify(notification.TypeSuccess, "ユーザーを削除しました", fmt.Sprintf("#%d", id))
			if state := c.app.Session.State(); state.User != nil && state.User.ID == id {
				c.app.Session.Logout(cmd.Context())
			}
			return nil
		},
	}
}
