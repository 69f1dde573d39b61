package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/openrport/devhost/caddy"
	"github.com/openrport/devhost/domain"
	"github.com/openrport/devhost/share/files"
)

var domainCmd = &cobra.Command{
	Use:     "domain",
	Short:   "print the project domain",
	Long:    "Print the domain and url the project would be served under",
	Example: "devhost domain --name-source pkg",
	Run: func(*cobra.Command, []string) {
		filesAPI := files.NewFileSystem()
		_, shutdown := setup(filesAPI)
		defer shutdown()

		if err := printDomain(&cfg.Config, filesAPI, os.Stdout); err != nil {
			log.Fatal(err)
		}
	},
}

func printDomain(c *caddy.Config, filesAPI files.FileAPI, out io.Writer) error {
	d, err := domain.Resolve(c.DomainOptions(), filesAPI)
	if err != nil {
		return err
	}
	if err := caddy.ValidateDomain(d); err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "%s\t%s\n", d, caddy.HTTPSURL(d, c.Listen))
	return err
}
