package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"mercator-hq/arbor/pkg/resolve"
)

var backendsCmd = &cobra.Command{
	Use:   "backends",
	Short: "List backends with availability and conflicts",
	Long: `List every registered backend in auto selection order with its
implementation key, availability, the resources it parses and the backends
it conflicts with.

Examples:
  arbor backends
  arbor backends -o csv
  arbor backends --config arbor.yaml -o json`,
	Args: cobra.NoArgs,
	RunE: runBackends,
}

func init() {
	rootCmd.AddCommand(backendsCmd)
}

// BackendsReport is the output of the backends command.
type BackendsReport struct {
	Default  string                  `json:"default" yaml:"default"`
	Backends []resolve.BackendStatus `json:"backends" yaml:"backends"`
}

// Header implements cli.Table.
func (r BackendsReport) Header() []string {
	return []string{"priority", "id", "key", "available", "default", "conflicts_with"}
}

// Rows implements cli.Table.
func (r BackendsReport) Rows() [][]string {
	rows := make([][]string, 0, len(r.Backends))
	for _, b := range r.Backends {
		rows = append(rows, []string{
			strconv.Itoa(b.Priority), b.ID, b.Key,
			strconv.FormatBool(b.Available), strconv.FormatBool(b.Default),
			strings.Join(b.ConflictWith, " "),
		})
	}
	return rows
}

// WriteText implements cli.TextWriter.
func (r BackendsReport) WriteText(w io.Writer) error {
	fmt.Fprintf(w, "Default: %s\n\n", r.Default)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PRIORITY\tID\tKEY\tAVAILABLE\tCONFLICTS\tDESCRIPTION")
	for _, b := range r.Backends {
		available := "yes"
		if !b.Available {
			available = "no"
		}
		conflicts := "-"
		if len(b.ConflictWith) > 0 {
			conflicts = strings.Join(b.ConflictWith, ",")
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", b.Priority, b.ID, b.Key, available, conflicts, b.Description)
	}
	return tw.Flush()
}

func runBackends(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.Close(cmd.Context())

	return printResult(cmd, BackendsReport{
		Default:  rt.Engine.ResolveEffective(cmd.Context(), ""),
		Backends: rt.Engine.Status(),
	})
}
