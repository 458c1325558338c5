package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/resourcehub/internal/notification"
	"github.com/nao1215/resourcehub/pkg/api"
)

func (c *cli) loginCmd() *cobra.Command {
	var req api.LoginRequest

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session locally",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resp, err := c.app.API.Auth.Login(cmd.Context(), req)
			if err != nil {
				return err
			}

			user := resp.Data.User
			if user.Username == "" {
				u, err := c.resolveUser(cmd, resp.Data.Token)
				if err != nil {
					return err
				}
				user = *u
			}

			state := c.app.Session.Login(cmd.Context(), user, resp.Data.Token)
			c.app.notify(notification.TypeSuccess, "ログインしました", state.User.DisplayName())
			return nil
		},
	}

	cmd.Flags().StringVarP(&req.Username, "username", "u", "", "username or email")
	cmd.Flags().StringVarP(&req.Password, "password", "p", "", "password")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func (c *cli) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c.app.Session.Logout(cmd.Context())
			c.app.notify(notification.TypeInfo, "ログアウトしました", "")
			return nil
		},
	}
}

func (c *cli) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged in user",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if err := c.requireLogin(); err != nil {
				return err
			}

			state := c.app.Session.State()
			u := state.User
			c.printf("ID:       %d\n", u.ID)
			c.printf("Username: %s\n", u.Username)
			c.printf("Email:    %s\n", u.Email)
			if u.Names != "" {
				c.printf("Names:    %s\n", u.Names)
			}
			c.printf("Since:    %s\n", c.app.Dates.LocalDate(u.CreatedAt))

			// JWTでないトークンは有効期限を表示しない
			info, err := api.InspectToken(state.Token)
			if err != nil || info.ExpiresAt.IsZero() {
				return nil
			}
			if info.Expired(time.Now()) {
				c.printf("Expires:  expired %s\n", c.app.Dates.RelativeTime(info.ExpiresAt))
				return nil
			}
			c.printf("Expires:  %s\n", c.app.Dates.RelativeTime(info.ExpiresAt))
			return nil
		},
	}
}

func (c *cli) registerCmd() *cobra.Command {
	var req api.RegisterRequest

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a new account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resp, err := c.app.API.Auth.Register(cmd.Context(), req)
			if err != nil {
				return err
			}
			c.app.notify(notification.TypeSuccess, "ユーザーを登録しました", resp.Data.Username)
			return nil
		},
	}

	cmd.Flags().StringVarP(&req.Username, "username", "u", "", "username")
	cmd.Flags().StringVarP(&req.Email, "email", "e", "", "email address")
	cmd.Flags().StringVarP(&req.Password, "password", "p", "", "password")
	cmd.Flags().StringVar(&req.Names, "names", "", "display name")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

// resolveUser はトークンしか返さないサーバーのために、クレームのuser_idからユーザーを取得する。
func (c *cli) resolveUser(cmd *cobra.Command, token string) (*api.User, error) {
	info, err := api.InspectToken(token)
	if err != nil {
		return nil, err
	}
	if info.UserID == 0 {
		return nil, errors.New("ログイン応答からユーザーを特定できません")
	}
	resp, err := c.app.API.Users.Get(cmd.Context(), info.UserID)
	if err != nil {
		return nil, err
	}
	return &resp.Data, nil
}

// formatUser はユーザーを1行で表す。
func formatUser(u api.User) string {
	if u.Names != "" {
		return fmt.Sprintf("%s (%s)", u.Username, u.Names)
	}
	return u.Username
}
