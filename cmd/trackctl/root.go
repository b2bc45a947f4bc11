package main

import (
	"fmt"
	"os"

	"github.com/BearBump/TrackDesk/config"
	"github.com/BearBump/TrackDesk/internal/services/admins"
	"github.com/BearBump/TrackDesk/internal/services/orders"
	"github.com/BearBump/TrackDesk/internal/storage/pgstore"
	"github.com/spf13/cobra"
)

// cliStore: всё, что трогают команды trackctl.
type cliStore interface {
	orders.Repository
	admins.Repository
}

type openStoreFunc func(configPath string) (cliStore, func(), error)

func defaultOpenStore(configPath string) (cliStore, func(), error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	// pgstore.New создаёт схему, если её ещё нет
	st, err := pgstore.New(cfg.Database.ConnString())
	if err != nil {
		return nil, nil, err
	}
	return st, st.Close, nil
}

type cli struct {
	configPath string
	open       openStoreFunc
}

func newRootCmd(open openStoreFunc) *cobra.Command {
	c := &cli{open: open}

	root := &cobra.Command{
		Use:           "trackctl",
		Short:         "TrackDesk maintenance tool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", os.Getenv("configPath"), "path to the YAML config")

	root.AddCommand(c.migrateCmd(), c.adminCmd(), c.orderCmd())
	return root
}

func (c *cli) withStore(fn func(st cliStore) error) error {
	st, closeFn, err := c.open(c.configPath)
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer closeFn()
	}
	return fn(st)
}

func (c *cli) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withStore(func(cliStore) error {
				fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
				return nil
			})
		},
	}
}
