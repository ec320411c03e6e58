package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/rxtech-lab/argo-paper-trading/internal/config"
	"github.com/rxtech-lab/argo-paper-trading/internal/version"
	"github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:    "paper-trading",
		Usage:   "Paper trading ledger with a realtime WebSocket hub",
		Version: version.GetVersion(),
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Run the paper trading server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to the YAML configuration `FILE`",
						Sources: cli.EnvVars("PAPER_CONFIG"),
					},
					&cli.StringFlag{
						Name:  "log-level",
						Usage: "Override the configured log level (debug, info, warn, error)",
					},
					&cli.StringFlag{
						Name:    "address",
						Aliases: []string{"a"},
						Usage:   "Override the configured listen address",
					},
					&cli.StringFlag{
						Name:  "signals",
						Usage: "Read JSON-lines trading signals from `FILE` (- for stdin)",
					},
				},
				Action: serveAction,
			},
			{
				Name:   "schema",
				Usage:  "Print the JSON schema of the configuration file",
				Action: schemaAction,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func schemaAction(_ context.Context, _ *cli.Command) error {
	cfg := config.Default()

	schema, err := cfg.GenerateSchemaJSON()
	if err != nil {
		return fmt.Errorf("failed to generate schema: %w", err)
	}

	fmt.Println(schema)

	return nil
}
