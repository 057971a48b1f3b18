package main

import (
	"fmt"

	"github.com/medistore/backend/internal/domain/cart"
	"github.com/spf13/cobra"
)

func (c *cli) cartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Manage the local cart",
	}

	var quantity int
	add := &cobra.Command{
		Use:   "add <product-id>",
		Short: "Add a product to the cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.context(cmd)
			defer cancel()
			items, err := c.app.Cart.Add(ctx, cart.Item{ProductID: args[0], Quantity: quantity})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cart has %d item(s)\n", items.Count())
			return nil
		},
	}
	add.Flags().IntVarP(&quantity, "quantity", "q", 1, "Quantity")

	remove := &cobra.Command{
		Use:   "remove <product-id>",
		Short: "Remove every line for a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.context(cmd)
			defer cancel()
			items, err := c.app.Cart.Remove(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cart has %d item(s)\n", items.Count())
			return nil
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List cart lines",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := c.context(cmd)
			defer cancel()
			items, err := c.app.Cart.List(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(items) == 0 {
				fmt.Fprintln(out, "Cart is empty")
				return nil
			}
			for i, it := range items {
				fmt.Fprintf(out, "%d. %s x%d\n", i+1, it.ProductID, it.Quantity)
			}
			return nil
		},
	}

	count := &cobra.Command{
		Use:   "count",
		Short: "Print the number of cart lines",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := c.context(cmd)
			defer cancel()
			n, err := c.app.Cart.GetCount(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Empty the cart",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := c.context(cmd)
			defer cancel()
			return c.app.Cart.Clear(ctx)
		},
	}

	cmd.AddCommand(add, remove, list, count, clearCmd)
	return cmd
}
