// Command shopctl is a terminal storefront client: sign in, manage the
// local cart, check out and view the dashboard.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/medistore/backend/internal/client"
	"github.com/medistore/backend/internal/infrastructure/config"
	"github.com/medistore/backend/internal/infrastructure/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// cli holds the flags and the client shared by every command
type cli struct {
	configPath string
	baseURL    string
	storePath  string
	logLevel   string
	timeout    time.Duration

	app    *client.App
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "shopctl",
		Short:         "MediStore storefront client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.open()
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return c.close()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.configPath, "config", "", "Path to config file")
	flags.StringVar(&c.baseURL, "base-url", "", "API base URL (overrides client.base_url)")
	flags.StringVar(&c.storePath, "store", "", "Local store file (overrides client.store_path)")
	flags.StringVar(&c.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	flags.DurationVar(&c.timeout, "timeout", 30*time.Second, "Command timeout")

	root.AddCommand(
		c.signupCmd(),
		c.loginCmd(),
		c.logoutCmd(),
		c.whoamiCmd(),
		c.cartCmd(),
		c.checkoutCmd(),
		c.ordersCmd(),
		c.profileCmd(),
		c.dashboardCmd(),
	)
	return root
}

func (c *cli) open() error {
	cfg, err := config.LoadFrom(c.configPath)
	if err != nil {
		return err
	}
	if c.baseURL != "" {
		cfg.Client.BaseURL = c.baseURL
	}
	if c.storePath != "" {
		cfg.Client.StorePath = c.storePath
	}
	c.logger = logger.NewCLI(c.logLevel)
	c.app, err = client.New(cfg.Client, c.logger)
	return err
}

func (c *cli) close() error {
	if c.app == nil {
		return nil
	}
	err := c.app.Close()
	c.app = nil
	_ = c.logger.Sync()
	return err
}

// context bounds a command by --timeout
func (c *cli) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), c.timeout)
}

func main() {
	root := newRootCmd()
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
