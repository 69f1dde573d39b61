package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/openrport/devhost/caddy"
	"github.com/openrport/devhost/domain"
	"github.com/openrport/devhost/share/files"
	"github.com/openrport/devhost/share/logger"
)

var downCmd = &cobra.Command{
	Use:     "down",
	Short:   "remove the route of the project domain",
	Long:    "Remove the route of the project domain. With --port only a route pointing at that port is removed.",
	Example: "devhost down --port 5173",
	Run: func(*cobra.Command, []string) {
		filesAPI := files.NewFileSystem()
		l, shutdown := setup(filesAPI)
		defer shutdown()

		ctx, cancel := signalContext()
		defer cancel()

		if err := runDown(ctx, &cfg.Config, filesAPI, l, os.Stdout); err != nil {
			log.Fatal(err)
		}
	},
}

func runDown(ctx context.Context, c *caddy.Config, filesAPI files.FileAPI, l *logger.Logger, out io.Writer) error {
	d, err := domain.Resolve(c.DomainOptions(), filesAPI)
	if err != nil {
		return err
	}

	client, err := caddy.NewClient(c.AdminURL, c.RequestTimeout, l.Fork("admin"))
	if err != nil {
		return err
	}

	removed, err := caddy.NewEngine(client, c, l).Remove(ctx, d, c.Port)
	if err != nil {
		return err
	}
	if removed {
		_, err = fmt.Fprintf(out, "removed route for %s\n", d)
		return err
	}
	_, err = fmt.Fprintf(out, "no route removed for %s\n", d)
	return err
}
