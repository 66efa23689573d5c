package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/egret-dev/egret/internal"
	"github.com/egret-dev/egret/internal/activity"
	"github.com/egret-dev/egret/internal/mcpserver"
	"github.com/egret-dev/egret/internal/projectservice"
	"github.com/egret-dev/egret/internal/storage"
	"github.com/egret-dev/egret/internal/taskstore"
	pkgconfig "github.com/egret-dev/egret/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if _, err := os.Stat(configPath); err == nil {
		if err := pkgconfig.Load(configPath, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	} else if cmd.IsSet("config") {
		return nil, fmt.Errorf("config file not found: %s", configPath)
	}
	return cfg, nil
}

// buildService wires a project service for the direct CLI commands,
// which talk to the work directory without going through HTTP.
func buildService(cfg *internal.Config) (*projectservice.Service, func(), error) {
	store, err := storage.NewFS(cfg.Work.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("open work dir: %w", err)
	}

	stateDir := cfg.Work.StateDir
	if stateDir == "" {
		stateDir = filepath.Join(cfg.Work.Path, ".egret-state")
	}
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create state dir: %w", err)
	}

	opts := projectservice.Options{
		StateDir:    stateDir,
		ArchiveDir:  cfg.Work.ArchiveDir,
		DefaultTags: cfg.Work.DefaultTags,
		Activity:    &activity.Git{AuthorEmail: cfg.Work.AuthorEmail},
		Log:         slog.Default(),
	}

	cleanup := func() {}
	if cfg.TaskDB.Enabled() {
		db, err := taskstore.Open(cfg.TaskDB.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("open task store: %w", err)
		}
		cleanup = func() { db.Close() }
		opts.Tasks = db
	}

	return projectservice.NewService(store, opts), cleanup, nil
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func runMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	svc, cleanup, err := buildService(cfg)
	if err != nil {
		return err
	}
	defer cleanup()
	return mcpserver.New(svc).ServeStdio()
}

func runAnnotate(ctx context.Context, cmd *cli.Command) error {
	name := cmd.Args().First()
	if name == "" {
		return errors.New("usage: egret annotate <project>")
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	svc, cleanup, err := buildService(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	detail, err := svc.Annotate(ctx, name)
	if err != nil {
		return err
	}
	fmt.Print(detail.Content)
	return nil
}

func runArchive(ctx context.Context, cmd *cli.Command) error {
	name := cmd.Args().First()
	if name == "" {
		return errors.New("usage: egret archive <project>")
	}
	cutoff := time.Now()
	if s := cmd.String("before"); s != "" {
		var err error
		cutoff, err = time.ParseInLocation("2006-01-02", s, time.Local)
		if err != nil {
			return fmt.Errorf("--before must be a YYYY-MM-DD date: %w", err)
		}
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	svc, cleanup, err := buildService(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	results, err := svc.Archive(ctx, name, cutoff)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Println("nothing to archive")
		return nil
	}
	for _, r := range results {
		fmt.Printf("%s -> %s\n", r.Month, r.Path)
	}
	return nil
}

func runCat(ctx context.Context, cmd *cli.Command) error {
	name := cmd.Args().First()
	if name == "" {
		return errors.New("usage: egret cat <project>")
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	svc, cleanup, err := buildService(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	data, _, err := svc.ReadRaw(ctx, name)
	if err != nil {
		return err
	}
	os.Stdout.Write(data)
	return nil
}

func main() {
	configFlag := &cli.StringFlag{
		Name:        "config",
		Aliases:     []string{"c"},
		Usage:       "Path to config file",
		DefaultText: "config/config.yaml",
		Value:       "config/config.yaml",
		Sources:     cli.EnvVars("EGRET_CONFIG_FILE"),
	}

	cmd := &cli.Command{
		Name:  "egret",
		Usage: "Plain-text project and time-log tracker",
		Flags: []cli.Flag{configFlag},
		Commands: []*cli.Command{
			{
				Name:      "annotate",
				Usage:     "Resolve log shorthand, sync tasks and refresh totals of a project",
				ArgsUsage: "<project>",
				Action:    runAnnotate,
			},
			{
				Name:      "archive",
				Usage:     "Move complete months before a cutoff into monthly archive files",
				ArgsUsage: "<project>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "before",
						Usage: "Cutoff date (YYYY-MM-DD), defaults to today",
					},
				},
				Action: runArchive,
			},
			{
				Name:   "serve",
				Usage:  "Run the HTTP API server with the file watcher",
				Action: runServe,
			},
			{
				Name:   "mcp",
				Usage:  "Run the MCP server on stdin/stdout",
				Action: runMCP,
			},
			{
				Name:      "cat",
				Usage:     "Print the raw text of a project file",
				ArgsUsage: "<project>",
				Action:    runCat,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("command failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
