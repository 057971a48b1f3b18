package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/medistore/backend/internal/client"
	"github.com/medistore/backend/internal/domain/session"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func (c *cli) checkoutCmd() *cobra.Command {
	var total string
	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Place an order for the cart",
		RunE: func(cmd *cobra.Command, _ []string) error {
			amount, err := decimal.NewFromString(total)
			if err != nil {
				return fmt.Errorf("invalid --total %q: %w", total, err)
			}
			ctx, cancel := c.context(cmd)
			defer cancel()
			order, err := c.app.Orders.Checkout(ctx, amount)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Order %s placed, total %s\n", order.ID, order.Total.StringFixed(2))
			return nil
		},
	}
	cmd.Flags().StringVar(&total, "total", "", "Order total, e.g. 24.90")
	_ = cmd.MarkFlagRequired("total")
	return cmd
}

func (c *cli) ordersCmd() *cobra.Command {
	var page, pageSize int
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "List past orders",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := c.context(cmd)
			defer cancel()
			result, err := c.app.Provider.Orders(ctx, page, pageSize)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, o := range result.Orders {
				fmt.Fprintf(out, "%s  %s  %d line(s)  %s\n",
					o.CreatedAt.Format("2006-01-02 15:04"), o.ID, len(o.Items), o.Total.StringFixed(2))
			}
			fmt.Fprintf(out, "Page %d of %d (%d orders)\n", result.Page, result.TotalPages, result.Total)
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().IntVar(&pageSize, "page-size", 20, "Orders per page")
	return cmd
}

func (c *cli) profileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show the profile",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := c.context(cmd)
			defer cancel()
			user, err := c.app.Provider.CurrentUser(ctx)
			if err != nil {
				return err
			}
			view, err := c.app.Profiles.Load(ctx, user)
			printProfile(cmd, view.Username, view.Greeting, view.IsNewUser, err)
			return nil
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "set-username <username>",
		Short: "Change the username",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.context(cmd)
			defer cancel()
			view, err := c.app.Provider.UpdateUsername(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Username set to %s\n", view.Username)
			return nil
		},
	})
	return cmd
}

func printProfile(cmd *cobra.Command, username, greeting string, isNew bool, loadErr error) {
	out := cmd.OutOrStdout()
	if isNew {
		fmt.Fprintf(out, "Welcome, %s!\n", greeting)
	} else {
		fmt.Fprintf(out, "Welcome back, %s!\n", greeting)
	}
	fmt.Fprintf(out, "Username: %s\n", username)
	if loadErr != nil {
		fmt.Fprintf(out, "(profile not loaded: %v)\n", loadErr)
	}
}

func (c *cli) dashboardCmd() *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Show the signed-in dashboard",
		Long: `Show the dashboard once the session has resolved. Without a session
the command redirects to login instead. With --watch it stays open and
exits when the session signs out.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				ctx    context.Context
				cancel context.CancelFunc
			)
			if watch {
				ctx, cancel = signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			} else {
				ctx, cancel = c.context(cmd)
			}
			defer cancel()
			return c.runDashboard(ctx, cmd, watch)
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "Keep following the session")
	return cmd
}

func (c *cli) runDashboard(ctx context.Context, cmd *cobra.Command, watch bool) error {
	out := cmd.OutOrStdout()
	guard := session.NewGuard(func(path string) {
		fmt.Fprintf(out, "Not signed in, redirecting to %s. Run: shopctl login\n", path)
	})

	changes := make(chan *session.User, 16)
	unsubscribe := c.app.Session.Subscribe(func(u *session.User) {
		guard.Resolve(u)
		select {
		case changes <- u:
		default:
		}
	})
	defer unsubscribe()

	if err := c.app.Session.Start(ctx); err != nil {
		return err
	}
	if guard.View() == session.ViewLoading {
		fmt.Fprintln(out, "Loading...")
	}

	for {
		select {
		case <-ctx.Done():
			if c.app.Session.IsLoading() {
				return errors.New("session did not resolve; is the server reachable?")
			}
			return nil
		case <-changes:
		}
		if !guard.CanRender() {
			return nil
		}
		d, err := c.app.Dashboard(ctx, c.app.Session.Current())
		if err != nil {
			return err
		}
		printDashboard(cmd, d)
		if !watch {
			return nil
		}
	}
}

func printDashboard(cmd *cobra.Command, d *client.Dashboard) {
	printProfile(cmd, d.Profile.Username, d.Profile.Greeting, d.Profile.IsNewUser, d.ProfileErr)
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Cart: %d item(s)\n", d.CartCount)
	if d.Profile.Loaded {
		counters := d.Profile.Counters
		fmt.Fprintf(out, "Orders: %d  Appointments: %d  Prescriptions: %d  Notifications: %d\n",
			counters.Orders, counters.Appointments, counters.Prescriptions, counters.Notifications)
	}
}
