package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/rndsolutions/HawkCD/internal/client"
	"github.com/rndsolutions/HawkCD/internal/config"
	"github.com/rndsolutions/HawkCD/internal/tui"
)

// version is set at build time via -ldflags "-X main.version=x.y.z".
var version = "dev"

func main() {
	var (
		configPath  string
		server      string
		showVersion bool
	)
	flagSet := pflag.NewFlagSet("hawkctl", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", config.DefaultClientConfigPath(), "path to the TOML config file")
	flagSet.StringVar(&server, "server", "", "hawkd base URL (overrides client.server)")
	flagSet.BoolVar(&showVersion, "version", false, "print version and exit")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
	if showVersion {
		fmt.Println("hawkctl", version)
		os.Exit(0)
	}

	cfg, err := config.LoadFrom(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}
	if server != "" {
		cfg.Client.Server = server
	}

	if err := tui.Run(client.New(cfg.Client.Server), cfg.Client.Server, cfg.Client.RefreshInterval.Duration); err != nil {
		fmt.Fprintf(os.Stderr, "hawkctl error: %v\n", err)
		os.Exit(1)
	}
}
