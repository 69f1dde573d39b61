package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/openrport/devhost/caddy"
	"github.com/openrport/devhost/domain"
	"github.com/openrport/devhost/share"
	"github.com/openrport/devhost/share/files"
	"github.com/openrport/devhost/share/logger"
	"github.com/openrport/devhost/share/ports"
)

const (
	DefaultConfigName = "devhost.conf"
	EnvPrefix         = "DEVHOST_"
)

var devhostHelp = `
  Usage: devhost [command] [options]

  Gives the project in the current directory a stable https domain served by
  caddy, e.g. https://my-app.localhost, routed to the local development server.

  Commands:

    up        create or update the route for the project domain (default)
    down      remove the route for the project domain
    domain    print the project domain and url without touching caddy

  Examples:

    devhost up --port 5173
    routes https://<folder name>.localhost to 127.0.0.1:5173

    PORT=3000 devhost up --name-source pkg --tld test
    routes https://<package.json name>.test to 127.0.0.1:3000

    devhost down --port 5173
    removes the route again if it still points at port 5173

  Options:

    --port, -p, Port of the local development server. Required for "up".
    (defaults to the environment variable DEVHOST_PORT, then PORT).

    --admin-url, Caddy admin API address. Either an http(s) url, host:port
    or a unix socket in caddy notation, e.g. unix//run/caddy/admin.sock.
    Defaults to http://127.0.0.1:2019.

    --server-id, Id of the caddy HTTP server the route is managed in. Defaults to "srv0".

    --listen, Comma separated addresses the managed server must listen on.
    Addresses caddy already listens on are kept. Defaults to ":443".

    --name-source, Where the project name comes from: "folder" (the project
    directory name) or "pkg" (the "name" of the manifest). Defaults to "folder".

    --manifest, Manifest file read for --name-source=pkg, relative to the
    project directory. Defaults to "package.json".

    --tld, Top level domain appended to the project name. Defaults to "localhost".
    Domains outside .localhost need an entry in the hosts file.

    --domain, Use this domain instead of deriving one.

    --fail-on-active-domain, Exit with an error when the domain is already routed
    to another port that is still in use. With "false" the route is left alone and
    a warning is printed. Defaults to "true".

    --append-route, Add a new route after the existing routes instead of first.

    --upstream-host, Host the route dials. Defaults to 127.0.0.1.

    --probe-timeout, How long to wait when checking whether a port is in use. Defaults to 300ms.

    --request-timeout, Timeout of each admin API request. Defaults to 5s.

    --project-dir, -d, Project directory. Defaults to the current directory.

    --hosts-file, Hosts file checked for domains outside .localhost.

    --log-level, Values: "error", "warn", "info", "debug" (defaults to "info")

    --verbose, -v, Same as --log-level=debug

    --log-file, -l, Specifies log file path. (defaults to empty string: log printed to stderr)

    --config, -c, An optional arg to define a path to a config file. By default
    devhost.conf in the project directory is used if present. Command arguments and
    env variables override it. Config file should be in TOML format. You can find an
    example in devhost.example.conf.

    --help, -h, This help text

    --version, Print version info and exit

`

var (
	RootCmd = &cobra.Command{
		Use:     "devhost",
		Version: share.BuildVersion,
		Run:     runUpCmd,
	}

	cfgPath  *string
	viperCfg *viper.Viper
	cfg      = &Config{}
)

// configKeys maps config file keys to CLI flags.
var configKeys = map[string]string{
	"admin_url":             "admin-url",
	"server_id":             "server-id",
	"listen":                "listen",
	"name_source":           "name-source",
	"manifest":              "manifest",
	"tld":                   "tld",
	"domain":                "domain",
	"fail_on_active_domain": "fail-on-active-domain",
	"append_route":          "append-route",
	"port":                  "port",
	"upstream_host":         "upstream-host",
	"probe_timeout":         "probe-timeout",
	"request_timeout":       "request-timeout",
	"project_dir":           "project-dir",
	"hosts_file":            "hosts-file",
	"log_level":             "log-level",
	"log_file":              "log-file",
	"verbose":               "verbose",
}

func init() {
	pFlags := RootCmd.PersistentFlags()
	setPFlags(pFlags)
	cfgPath = pFlags.StringP("config", "c", "", "")

	RootCmd.SetUsageFunc(func(*cobra.Command) error {
		fmt.Print(devhostHelp)
		os.Exit(1)
		return nil
	})

	RootCmd.AddCommand(upCmd, downCmd, domainCmd)

	viperCfg = viper.New()
	viperCfg.SetConfigType("toml")
	bindPFlags(pFlags, viperCfg)
}

func setPFlags(pFlags *pflag.FlagSet) {
	pFlags.IntP("port", "p", 0, "")
	pFlags.String("admin-url", caddy.DefaultAdminURL, "")
	pFlags.String("server-id", caddy.DefaultServerID, "")
	pFlags.StringSlice("listen", caddy.DefaultListen, "")
	pFlags.String("name-source", string(domain.NameSourceFolder), "")
	pFlags.String("manifest", domain.DefaultManifest, "")
	pFlags.String("tld", domain.DefaultTLD, "")
	pFlags.String("domain", "", "")
	pFlags.Bool("fail-on-active-domain", true, "")
	pFlags.Bool("append-route", false, "")
	pFlags.String("upstream-host", ports.DefaultHost, "")
	pFlags.Duration("probe-timeout", ports.DefaultProbeTimeout, "")
	pFlags.Duration("request-timeout", caddy.DefaultRequestTimeout, "")
	pFlags.StringP("project-dir", "d", "", "")
	pFlags.String("hosts-file", files.DefaultHostsFile, "")
	pFlags.String("log-level", "info", "")
	pFlags.BoolP("verbose", "v", false, "")
	pFlags.StringP("log-file", "l", "", "")
}

func bindPFlags(pFlags *pflag.FlagSet, v *viper.Viper) {
	// map config fields to CLI args and ENV variables:
	// _ is used to ignore errors to pass linter check
	for key, flag := range configKeys {
		_ = v.BindPFlag(key, pFlags.Lookup(flag))
		_ = v.BindEnv(key, EnvPrefix+strings.ToUpper(key))
	}
	_ = v.BindEnv("port", EnvPrefix+"PORT", "PORT")
}

func main() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func tryDecodeConfig() error {
	if *cfgPath != "" {
		viperCfg.SetConfigFile(*cfgPath)
	} else {
		dir := viperCfg.GetString("project_dir")
		if dir == "" {
			dir = "."
		}
		viperCfg.AddConfigPath(dir)
		viperCfg.SetConfigName(DefaultConfigName)
	}

	return share.DecodeViperConfig(viperCfg, cfg)
}

func decodeAndValidateConfig(mLog *logger.MemLogger, filesAPI files.FileAPI) error {
	err := tryDecodeConfig()
	if err != nil {
		return err
	}

	return cfg.ParseAndValidate(mLog, filesAPI)
}

// setup decodes the config and starts logging. The returned func shuts the
// log output down.
func setup(filesAPI files.FileAPI) (*logger.Logger, func()) {
	mLog := logger.NewMemLogger()
	err := decodeAndValidateConfig(&mLog, filesAPI)
	if err != nil {
		log.Fatalf("Invalid config: %v. See devhost --help", err)
	}

	l, err := cfg.NewLogger()
	if err != nil {
		log.Fatal(err)
	}
	mLog.Flush(l)

	return l, cfg.LogOutput.Shutdown
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
