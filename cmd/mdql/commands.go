package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/starford/mdql/internal"
	"github.com/starford/mdql/internal/models"
	"github.com/starford/mdql/internal/query"
	"github.com/starford/mdql/internal/report"
	"github.com/starford/mdql/internal/storage"
	"github.com/starford/mdql/internal/taskservice"
	"github.com/starford/mdql/internal/writer"
	pkgconfig "github.com/starford/mdql/pkg/config"
)

// cliLogger keeps one-shot commands quiet unless something goes wrong.
var cliLogger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "mdql",
		Usage:   "Query and edit Markdown task lists",
		Version: version,
		Commands: []*cli.Command{
			queryCommand(),
			toggleCommand("done", "Mark the task on a line as completed", writer.OpComplete),
			toggleCommand("undo", "Mark the task on a line as not completed", writer.OpReopen),
			editCommand(),
			removeCommand(),
			addCommand(),
			summaryCommand(),
			serveCommand(),
			mcpCommand(),
		},
	}
}

// openFile returns a service rooted at the directory of file and the file's
// name within it.
func openFile(file string) (*taskservice.Service, string, error) {
	abs, err := filepath.Abs(file)
	if err != nil {
		return nil, "", fmt.Errorf("resolve %s: %w", file, err)
	}
	store, err := storage.NewFS(filepath.Dir(abs))
	if err != nil {
		return nil, "", err
	}
	return taskservice.NewService(store, nil, cliLogger), filepath.Base(abs), nil
}

// args returns exactly n positional arguments, the last one absorbing any
// extra words.
func args(cmd *cli.Command, n int) ([]string, error) {
	a := cmd.Args().Slice()
	if len(a) < n {
		return nil, fmt.Errorf("%s: expected %s", cmd.Name, cmd.ArgsUsage)
	}
	if len(a) > n {
		a = append(a[:n-1], strings.Join(a[n-1:], " "))
	}
	return a, nil
}

func lineArg(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("line must be a positive integer, got %q", s)
	}
	return n, nil
}

func printTask(cmd *cli.Command, t *models.Task) {
	status := query.GlyphOpen
	if t.Completed {
		status = query.GlyphDone
	}
	fmt.Fprintf(cmd.Root().Writer, "%s %s (line %d)\n", status, t.Text, t.Line)
}

func queryCommand() *cli.Command {
	return &cli.Command{
		Name:      "query",
		Usage:     "Run a SELECT ... FROM ... WHERE ... query against a file",
		ArgsUsage: "<file> <query>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Usage: "Limit number of results"},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Value:   report.FormatTable,
				Usage:   "Output format: " + strings.Join(report.Formats, ", "),
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := args(cmd, 2)
			if err != nil {
				return err
			}
			svc, name, err := openFile(a[0])
			if err != nil {
				return err
			}
			res, err := svc.RunMQL(ctx, name, a[1], int(cmd.Int("limit")))
			if err != nil {
				return err
			}
			return report.WriteResults(cmd.Root().Writer, cmd.String("format"), res.Doc, res.Tasks, res.Columns)
		},
	}
}

func mutate(ctx context.Context, file string, m writer.Mutation) (*taskservice.File, error) {
	svc, name, err := openFile(file)
	if err != nil {
		return nil, err
	}
	return svc.Mutate(ctx, name, m, "")
}

func toggleCommand(name, usage string, op writer.Op) *cli.Command {
	return &cli.Command{
		Name:      name,
		Usage:     usage,
		ArgsUsage: "<file> <line>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := args(cmd, 2)
			if err != nil {
				return err
			}
			line, err := lineArg(a[1])
			if err != nil {
				return err
			}
			f, err := mutate(ctx, a[0], writer.Mutation{Op: op, Line: line})
			if err != nil {
				return err
			}
			t := f.TaskAt(line)
			if t == nil {
				return fmt.Errorf("no task on line %d of %s", line, a[0])
			}
			printTask(cmd, t)
			return nil
		},
	}
}

func editCommand() *cli.Command {
	return &cli.Command{
		Name:      "edit",
		Usage:     "Replace the text of the task on a line",
		ArgsUsage: "<file> <line> <text>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := args(cmd, 3)
			if err != nil {
				return err
			}
			line, err := lineArg(a[1])
			if err != nil {
				return err
			}
			f, err := mutate(ctx, a[0], writer.Mutation{Op: writer.OpRetext, Line: line, Text: a[2]})
			if err != nil {
				return err
			}
			if t := f.TaskAt(line); t != nil {
				printTask(cmd, t)
			}
			return nil
		},
	}
}

func removeCommand() *cli.Command {
	return &cli.Command{
		Name:      "rm",
		Usage:     "Delete a line",
		ArgsUsage: "<file> <line>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := args(cmd, 2)
			if err != nil {
				return err
			}
			line, err := lineArg(a[1])
			if err != nil {
				return err
			}
			if _, err := mutate(ctx, a[0], writer.Mutation{Op: writer.OpDelete, Line: line}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.Root().Writer, "removed line %d\n", line)
			return nil
		},
	}
}

func addCommand() *cli.Command {
	return &cli.Command{
		Name:      "add",
		Usage:     "Append a task at the end of a section",
		ArgsUsage: "<file> <text>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "section", Aliases: []string{"s"}, Usage: "Heading text of the section", Required: true},
			&cli.IntFlag{Name: "indent", Usage: "Indent level (two spaces each)"},
			&cli.BoolFlag{Name: "done", Usage: "Create the task already completed"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := args(cmd, 2)
			if err != nil {
				return err
			}
			m := writer.Mutation{
				Op:        writer.OpAdd,
				Section:   cmd.String("section"),
				Text:      a[1],
				Indent:    int(cmd.Int("indent")),
				Completed: cmd.Bool("done"),
			}
			if _, err := mutate(ctx, a[0], m); err != nil {
				return err
			}
			fmt.Fprintf(cmd.Root().Writer, "%s\n", writer.FormatTask(strings.TrimSpace(a[1]), m.Indent, m.Completed))
			return nil
		},
	}
}

func summaryCommand() *cli.Command {
	return &cli.Command{
		Name:      "summary",
		Usage:     "Show per-section completion",
		ArgsUsage: "<file>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := args(cmd, 1)
			if err != nil {
				return err
			}
			svc, name, err := openFile(a[0])
			if err != nil {
				return err
			}
			s, err := svc.Summary(ctx, name)
			if err != nil {
				return err
			}
			return report.WriteSummary(cmd.Root().Writer, s)
		},
	}
}

func serverFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "Path to config file",
			DefaultText: "config/config.yaml",
			Value:       "config/config.yaml",
			Sources:     cli.EnvVars("APP_CONFIG_FILE"),
		},
		&cli.StringFlag{
			Name:    "vault",
			Usage:   "Directory of task files (overrides the config file)",
			Sources: cli.EnvVars("MDQL_VAULT"),
		},
	}
}

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if v := cmd.String("vault"); v != "" {
		cfg.Vault.Path = v
	}
	return cfg, nil
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the REST API and live events over a directory of task files",
		Flags: serverFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := internal.Run(ctx, internal.WithConfig(cfg), internal.WithVersion(version)); err != nil {
				return fmt.Errorf("app run error: %w", err)
			}
			return nil
		},
	}
}

func mcpCommand() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve the task tools to an MCP client over stdio",
		Flags: serverFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return internal.RunMCP(ctx, internal.WithConfig(cfg), internal.WithVersion(version))
		},
	}
}
