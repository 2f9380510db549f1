package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/gridcat/internal"
	"github.com/starford/gridcat/internal/collection"
	pkgconfig "github.com/starford/gridcat/pkg/config"
)

var version = "dev"

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.Load(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func policyFlag(cmd *cli.Command, name string) (collection.Policy, error) {
	v := cmd.String(name)
	if v == "" {
		return "", nil
	}
	return collection.ParsePolicy(v)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg), internal.WithVersion(version)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func update(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	self, err := policyFlag(cmd, "collection-policy")
	if err != nil {
		return err
	}
	children, err := policyFlag(cmd, "children-policy")
	if err != nil {
		return err
	}

	results, runErr := internal.RunUpdate(ctx, cmd.Args().Slice(), self, children,
		internal.WithConfig(cfg), internal.WithLogOutput(os.Stderr))
	if err := printJSON(results); err != nil {
		return err
	}
	return runErr
}

func inspect(_ context.Context, cmd *cli.Command) error {
	path := cmd.Args().First()
	if path == "" {
		return fmt.Errorf("inspect: index path is required")
	}
	nodes, err := internal.Inspect(path, cmd.Bool("members"))
	if err != nil {
		return err
	}
	return printJSON(nodes)
}

func mcpServe(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, internal.WithConfig(cfg), internal.WithVersion(version))
}

func main() {
	cmd := &cli.Command{
		Name:    "gridcat",
		Usage:   "Persistent binary catalog over GRIB archives",
		Version: version,
		Action:  serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API, initial sync and filesystem watcher",
				Action: serve,
			},
			{
				Name:      "update",
				Usage:     "Update the named collections once (all when none are given)",
				ArgsUsage: "[collection...]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "collection-policy",
						Usage: "Policy for each top node: always, test, nocheck or never",
					},
					&cli.StringFlag{
						Name:  "children-policy",
						Usage: "Policy for descendants: always, test, nocheck or never",
					},
				},
				Action: update,
			},
			{
				Name:      "inspect",
				Usage:     "Print the index tree rooted at an index file",
				ArgsUsage: "<index.gcx>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "members", Usage: "Include member file lists"},
				},
				Action: inspect,
			},
			{
				Name:   "mcp",
				Usage:  "Serve catalog tools over MCP stdio",
				Action: mcpServe,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
