package main

import (
	"github.com/goliatone/go-entityref/pkg/di"
	"github.com/goliatone/go-entityref/store"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newSeedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <fixture.json>",
		Short: "Create the reference tables and load a fixture into them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.container()
			if err != nil {
				return err
			}
			defer c.Close()

			return seed(cmd, c, args[0])
		},
	}
}

func seed(cmd *cobra.Command, c *di.Container, path string) error {
	fixture, err := store.LoadFixture(path)
	if err != nil {
		return err
	}
	if err := fixture.Seed(cmd.Context(), c.DB()); err != nil {
		return err
	}

	c.Logger().WithFields(logrus.Fields{
		"fixture": path,
		"records": fixture.Len(),
	}).Info("seeded reference tables")
	return nil
}
