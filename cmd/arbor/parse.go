package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"mercator-hq/arbor/pkg/cli"
	"mercator-hq/arbor/pkg/parse"
	"mercator-hq/arbor/pkg/setup"
	"mercator-hq/arbor/pkg/tree"
)

// stdinPath names standard input on the command line.
const stdinPath = "-"

// parseOptions controls how each file is parsed.
type parseOptions struct {
	backend  string
	resource string
	fallback bool
	tree     bool
	maxDepth int
	jobs     int
}

var parseFlags struct {
	parseOptions
	progress bool
}

var parseCmd = &cobra.Command{
	Use:   "parse FILE...",
	Short: "Parse files into normalized trees",
	Long: `Parse one or more files and report the backend used, the node count and
any syntax errors. The resource is detected from the file extension
(.toml, .yaml/.yml, .hcl/.tf, .go; anything else is text) unless
--resource is given. Use - to read standard input.

The command exits with status 5 when any file has syntax errors.

Examples:
  # Parse with automatic backend selection
  arbor parse config.toml deploy/values.yaml

  # Force a backend
  arbor parse --backend burntsushi config.toml

  # Fall back to other backends when the chosen one is unavailable
  arbor parse --backend goast --fallback main.go

  # Print the tree, three levels deep
  arbor parse --tree --max-depth 3 -o json main.tf

  # Parse standard input as YAML
  cat values.yaml | arbor parse --resource yaml -`,
	Args: cobra.MinimumNArgs(1),
	RunE: runParse,
}

func init() {
	rootCmd.AddCommand(parseCmd)

	parseCmd.Flags().StringVarP(&parseFlags.backend, "backend", "b", "", "explicit backend id")
	parseCmd.Flags().StringVarP(&parseFlags.resource, "resource", "r", "", "resource for every file (detected from the extension when empty)")
	parseCmd.Flags().BoolVar(&parseFlags.fallback, "fallback", false, "try other backends when the chosen one is not available")
	parseCmd.Flags().BoolVar(&parseFlags.tree, "tree", false, "include the tree in the output")
	parseCmd.Flags().IntVar(&parseFlags.maxDepth, "max-depth", 0, "limit the depth of printed trees (0 = unlimited)")
	parseCmd.Flags().IntVarP(&parseFlags.jobs, "jobs", "j", 4, "files parsed concurrently")
	parseCmd.Flags().BoolVar(&parseFlags.progress, "progress", false, "report progress on stderr")
}

// FileResult is the outcome of parsing one file.
type FileResult struct {
	File     string            `json:"file" yaml:"file"`
	Resource string            `json:"resource" yaml:"resource"`
	Backend  string            `json:"backend" yaml:"backend"`
	Nodes    int               `json:"nodes" yaml:"nodes"`
	Comments int               `json:"comments" yaml:"comments"`
	Errors   []tree.Diagnostic `json:"errors,omitempty" yaml:"errors,omitempty"`
	Warnings []tree.Diagnostic `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Duration string            `json:"duration" yaml:"duration"`
	Tree     *tree.View        `json:"tree,omitempty" yaml:"tree,omitempty"`
}

// ParseReport lists the results of one parse command in argument order.
type ParseReport []FileResult

// Failed returns the files that parsed with syntax errors.
func (r ParseReport) Failed() []string {
	var files []string
	for _, f := range r {
		if len(f.Errors) > 0 {
			files = append(files, f.File)
		}
	}
	return files
}

// Header implements cli.Table.
func (r ParseReport) Header() []string {
	return []string{"file", "resource", "backend", "nodes", "comments", "errors", "warnings", "duration"}
}

// Rows implements cli.Table.
func (r ParseReport) Rows() [][]string {
	rows := make([][]string, 0, len(r))
	for _, f := range r {
		rows = append(rows, []string{
			f.File, f.Resource, f.Backend,
			strconv.Itoa(f.Nodes), strconv.Itoa(f.Comments),
			strconv.Itoa(len(f.Errors)), strconv.Itoa(len(f.Warnings)),
			f.Duration,
		})
	}
	return rows
}

// WriteText implements cli.TextWriter.
func (r ParseReport) WriteText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, f := range r {
		status := "ok"
		if n := len(f.Errors); n > 0 {
			status = plural(n, "error")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", f.File, f.Resource, f.Backend, plural(f.Nodes, "node"), status)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, f := range r {
		for _, d := range f.Errors {
			fmt.Fprintf(w, "%s:%s\n", f.File, d)
		}
		for _, d := range f.Warnings {
			fmt.Fprintf(w, "%s:%s (warning)\n", f.File, d)
		}
		if f.Tree != nil && f.Tree.Root != nil {
			fmt.Fprintf(w, "\n%s:\n", f.File)
			writeNode(w, f.Tree.Root, 1)
		}
	}
	return nil
}

func writeNode(w io.Writer, n *tree.NodeView, depth int) {
	indent := fmt.Sprintf("%*s", depth*2, "")
	line := fmt.Sprintf("%s%s [%s]", indent, n.Type, n.Position)
	if n.Text != "" {
		line += " " + strconv.Quote(n.Text)
	}
	if n.Truncated > 0 {
		line += fmt.Sprintf(" (+%d)", n.Truncated)
	}
	fmt.Fprintln(w, line)
	for i := range n.Children {
		writeNode(w, &n.Children[i], depth+1)
	}
}

func plural(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return fmt.Sprintf("%d %ss", n, word)
}

func runParse(cmd *cobra.Command, args []string) error {
	ctx, stop := cli.SetupSignalHandler(cmd.Context())
	defer stop()

	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.Close(context.Background())

	var progress cli.ProgressReporter = cli.NoProgress{}
	if parseFlags.progress {
		progress = cli.NewProgressReporter(cmd.ErrOrStderr())
	}

	progress.Start(int64(len(args)))
	report, err := parseFiles(ctx, rt.Parser, args, cmd.InOrStdin(), parseFlags.parseOptions, progress)
	if err != nil {
		progress.Error(err)
		return cli.NewCommandError("parse", err)
	}
	progress.Finish()

	if err := printResult(cmd, report); err != nil {
		return err
	}
	if failed := report.Failed(); len(failed) > 0 {
		return &cli.SyntaxError{Files: failed}
	}
	return nil
}

// parseFiles parses paths concurrently. Results keep argument order; the
// first resolution or read error cancels the remaining files.
func parseFiles(ctx context.Context, p *parse.Parser, paths []string, stdin io.Reader, opts parseOptions, progress cli.ProgressReporter) (ParseReport, error) {
	report := make(ParseReport, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.jobs, 1))

	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := parseFile(ctx, p, path, stdin, opts)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			report[i] = res
			progress.Increment()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return report, nil
}

func parseFile(ctx context.Context, p *parse.Parser, path string, stdin io.Reader, opts parseOptions) (FileResult, error) {
	var (
		src []byte
		err error
	)
	if path == stdinPath {
		src, err = io.ReadAll(stdin)
	} else {
		src, err = os.ReadFile(path)
	}
	if err != nil {
		return FileResult{}, err
	}

	resource := opts.resource
	if resource == "" {
		resource = setup.ResourceForPath(path)
	}
	lang := tree.NewLanguage(resource)

	start := time.Now()
	var t *tree.Tree
	if opts.fallback {
		chain := p.DefaultChain(ctx, resource)
		if opts.backend != "" {
			chain = append([]string{opts.backend}, chain...)
		}
		t, err = p.ParseWithFallback(ctx, lang, src, chain...)
	} else {
		t, err = p.Parse(ctx, lang, src, parse.WithBackend(opts.backend))
	}
	if err != nil {
		return FileResult{}, err
	}

	res := FileResult{
		File:     path,
		Resource: resource,
		Backend:  t.Backend(),
		Nodes:    t.NodeCount(),
		Comments: len(t.Comments()),
		Errors:   t.Errors(),
		Warnings: t.Warnings(),
		Duration: time.Since(start).Round(time.Microsecond).String(),
	}
	if opts.tree {
		v := t.View(opts.maxDepth)
		res.Tree = &v
	}
	return res, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
