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

func (c *cli) resourceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "resource",
		Aliases: []string{"resources", "res"},
		Short:   "Manage resources",
	}
	cmd.AddCommand(
		c.resourceListCmd(),
		c.resourceGetCmd(),
		c.resourceCreateCmd(),
		c.resourceUpdateCmd(),
		c.resourceDeleteCmd(),
		c.resourceHistoryCmd(),
	)
	return cmd
}

func (c *cli) resourceListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all resources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resp, err := c.app.API.Resources.List(cmd.Context())
			if err != nil {
				return err
			}

			resources := slices.Clone(resp.Data)
			slices.SortFunc(resources, func(a, b api.Resource) int { return cmp.Compare(a.ID, b.ID) })

			t := newTable(c.app.out, "ID", "NAME", "QUANTITY", "UNIT", "UPDATED")
			skipped := 0
			for _, r := range resources {
				if !api.ValidateResource(&r) {
					skipped++
					continue
				}
				t.row(
					strconv.FormatUint(uint64(r.ID), 10),
					r.Name,
					strconv.Itoa(r.Quantity),
					r.Unit,
					c.app.Dates.RelativeTime(r.UpdatedAt),
				)
			}
			if err := t.flush(); err != nil {
				return err
			}
			if skipped > 0 {
				c.app.notify(notification.TypeWarning, "不完全なリソースを表示しませんでした", fmt.Sprintf("%d件", skipped))
			}
			return nil
		},
	}
}

func (c *cli) resourceGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get ID",
		Short: "Show a resource",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := api.ParseID(args[0])
			if err != nil {
				return err
			}
			resp, err := c.app.API.Resources.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			c.printResource(&resp.Data)
			return nil
		},
	}
}

func (c *cli) resourceCreateCmd() *cobra.Command {
	var req api.CreateResourceRequest

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a resource",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.requireLogin(); err != nil {
				return err
			}
			if req.Name == "" || req.Unit == "" {
				return errors.New("--name と --unit は必須です")
			}

			resp, err := c.app.API.Resources.Create(c.actingAs(cmd.Context()), req)
			if err != nil {
				return err
			}
			c.app.notify(notification.TypeSuccess, "リソースを作成しました", fmt.Sprintf("#%d %s", resp.Data.ID, resp.Data.Name))
			c.printResource(&resp.Data)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Name, "name", "", "resource name")
	cmd.Flags().StringVar(&req.Description, "description", "", "description")
	cmd.Flags().StringVar(&req.Unit, "unit", "", "unit of quantity (kg, l, ...)")
	cmd.Flags().IntVar(&req.Quantity, "quantity", 0, "quantity")

	return cmd
}

func (c *cli) resourceUpdateCmd() *cobra.Command {
	var (
		name, description, unit string
		quantity                int
	)

	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Update fields of a resource",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.requireLogin(); err != nil {
				return err
			}
			id, err := api.ParseID(args[0])
			if err != nil {
				return err
			}

			var req api.UpdateResourceRequest
			flags := cmd.Flags()
			if flags.Changed("name") {
				req.Name = &name
			}
			if flags.Changed("description") {
				req.Description = &description
			}
			if flags.Changed("unit") {
				req.Unit = &unit
			}
			if flags.Changed("quantity") {
				req.Quantity = &quantity
			}
			if req == (api.UpdateResourceRequest{}) {
				return errors.New("更新する項目を指定してください")
			}

			resp, err := c.app.API.Resources.Update(c.actingAs(cmd.Context()), id, req)
			if err != nil {
				return err
			}
			c.app.notify(notification.TypeSuccess, "リソースを更新しました", fmt.Sprintf("#%d %s", resp.Data.ID, resp.Data.Name))
			c.printResource(&resp.Data)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "resource name")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&unit, "unit", "", "unit of quantity")
	cmd.Flags().IntVar(&quantity, "quantity", 0, "quantity")

	return cmd
}

func (c *cli) resourceDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a resource",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.requireLogin(); err != nil {
				return err
			}
			id, err := api.ParseID(args[0])
			if err != nil {
				return err
			}
			if _, err := c.app.API.Resources.Delete(c.actingAs(cmd.Context()), id); err != nil {
				return err
			}
			c.app.notify(notification.TypeSuccess, "リソースを削除しました", fmt.Sprintf("#%d", id))
			return nil
		},
	}
}

func (c *cli) resourceHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history ID",
		Short: "Show the change history of a resource",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := api.ParseID(args[0])
			if err != nil {
				return err
			}
			resp, err := c.app.API.Resources.History(cmd.Context(), id)
			if err != nil {
				return err
			}

			t := newTable(c.app.out, "WHEN", "ACTION", "BY", "CHANGE")
			for _, h := range resp.Data {
				t.row(
					c.app.Dates.RelativeTime(h.Timestamp),
					string(h.Action),
					formatUser(h.User),
					describeChange(&h),
				)
			}
			return t.flush()
		},
	}
}

// describeChange は履歴1件の変更内容を短く表す。
func describeChange(h *api.ResourceHistory) string {
	before, berr := h.Before()
	after, aerr := h.After()

	switch {
	case berr == nil && aerr == nil:
		if before.Quantity != after.Quantity {
			return fmt.Sprintf("quantity %d -> %d %s", before.Quantity, after.Quantity, after.Unit)
		}
		if before.Name != after.Name {
			return fmt.Sprintf("name %q -> %q", before.Name, after.Name)
		}
	case aerr == nil:
		return fmt.Sprintf("%s %d %s", after.Name, after.Quantity, after.Unit)
	case berr == nil:
		return fmt.Sprintf("%s %d %s", before.Name, before.Quantity, before.Unit)
	}
	return h.Description
}

// printResource はリソースの詳細を出力する。
func (c *cli) printResource(r *api.Resource) {
	c.printf("ID:          %d\n", r.ID)
	c.printf("Name:        %s\n", r.Name)
	if r.Description != "" {
		c.printf("Description: %s\n", r.Description)
	}
	c.printf("Quantity:    %d %s\n", r.Quantity, r.Unit)
	c.printf("Created:     %s\n", c.app.Dates.LocalDate(r.CreatedAt))
	c.printf("Updated:     %s\n", c.app.Dates.RelativeTime(r.UpdatedAt))
}
