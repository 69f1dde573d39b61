package main

import (
	"context"
	"errors"
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

// exitCodeConflict tells a supervising process the domain belongs to
// another running server and the local one should be stopped.
const exitCodeConflict = 3

var upCmd = &cobra.Command{
	Use:     "up",
	Short:   "route the project domain to the local server",
	Long:    "Bootstrap caddy and create or update the route for the project domain",
	Example: "devhost up --port 5173",
	Run:     runUpCmd,
}

func runUpCmd(*cobra.Command, []string) {
	filesAPI := files.NewFileSystem()
	l, shutdown := setup(filesAPI)
	defer shutdown()

	ctx, cancel := signalContext()
	defer cancel()

	err := runUp(ctx, &cfg.Config, filesAPI, l, os.Stdout)
	var conflict *caddy.ConflictError
	if errors.As(err, &conflict) {
		l.Errorf("%v", err)
		shutdown()
		os.Exit(exitCodeConflict)
	}
	if err != nil {
		log.Fatal(err)
	}
}

// runUp reconciles the project's route and prints the resulting url to out.
func runUp(ctx context.Context, c *caddy.Config, filesAPI files.FileAPI, l *logger.Logger, out io.Writer) error {
	if c.Port <= 0 {
		return caddy.ErrLocalPortUnknown
	}

	d, err := domain.Resolve(c.DomainOptions(), filesAPI)
	if err != nil {
		return err
	}
	if err := caddy.ValidateDomain(d); err != nil {
		return err
	}
	l.Debugf("project domain: %s", d)
	checkHosts(filesAPI, c.HostsFile, d, l)

	client, err := caddy.NewClient(c.AdminURL, c.RequestTimeout, l.Fork("admin"))
	if err != nil {
		return err
	}
	engine := caddy.NewEngine(client, c, l)

	res, err := engine.Reconcile(ctx, d, c.Port)
	if err != nil {
		return err
	}

	if res.Action == caddy.ActionConflict {
		_, err = fmt.Fprintf(out, "%s is served by port %d, not %d\n", engine.URL(d), res.ActivePort, c.Port)
		return err
	}
	_, err = fmt.Fprintf(out, "%s -> %s:%d\n", engine.URL(d), c.UpstreamHost, c.Port)
	return err
}

// checkHosts warns when a domain outside .localhost has no hosts file entry.
func checkHosts(filesAPI files.FileAPI, hostsFile, d string, l *logger.Logger) {
	if !domain.NeedsHostsEntry(d) {
		return
	}
	found, err := domain.CheckHosts(filesAPI, hostsFile, d)
	if err != nil {
		l.Warnf("unable to check hosts file: %v", err)
		return
	}
	if !found {
		l.Warnf("%s is not in %s, add \"127.0.0.1 %s\" to it for the domain to resolve", d, hostsFile, d)
	}
}
