package main

import (
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		// The logger may not be initialized yet.
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "homeview",
		Usage: "Serve the home page view over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML config file",
				EnvVars: []string{"HOMEVIEW_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			serveCommand,
			routesCommand,
		},
		Action: serve,
	}
}
