package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"mercator-hq/arbor/pkg/backend"
)

var resolveFlags struct {
	backend  string
	resource string
}

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Report which backend a request would use",
	Long: `Resolve a backend without parsing anything or recording usage.

With --resource only backends that parse that resource are considered, as
the parse command does.

Examples:
  arbor resolve
  arbor resolve --resource yaml
  arbor resolve --resource toml --backend burntsushi`,
	Args: cobra.NoArgs,
	RunE: runResolve,
}

func init() {
	rootCmd.AddCommand(resolveCmd)

	resolveCmd.Flags().StringVarP(&resolveFlags.backend, "backend", "b", "", "explicit backend id")
	resolveCmd.Flags().StringVarP(&resolveFlags.resource, "resource", "r", "", "resource to resolve for")
}

// Resolution is the output of the resolve command.
type Resolution struct {
	Requested    string               `json:"requested,omitempty" yaml:"requested,omitempty"`
	Effective    string               `json:"effective" yaml:"effective"`
	Resource     string               `json:"resource,omitempty" yaml:"resource,omitempty"`
	Backend      string               `json:"backend" yaml:"backend"`
	Key          string               `json:"key" yaml:"key"`
	Capabilities backend.Capabilities `json:"capabilities,omitempty" yaml:"capabilities,omitempty"`
}

// WriteText implements cli.TextWriter.
func (r Resolution) WriteText(w io.Writer) error {
	fmt.Fprintf(w, "Effective: %s\n", r.Effective)
	if r.Resource != "" {
		fmt.Fprintf(w, "Resource:  %s\n", r.Resource)
	}
	fmt.Fprintf(w, "Backend:   %s (%s)\n", r.Backend, r.Key)

	for _, name := range r.Capabilities.Names() {
		fmt.Fprintf(w, "  %s: %v\n", name, r.Capabilities[name])
	}
	return nil
}

func runResolve(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	defer rt.Close(ctx)

	var desc backend.Descriptor
	if resolveFlags.resource != "" {
		desc, err = rt.Parser.Check(ctx, resolveFlags.resource, resolveFlags.backend)
	} else {
		desc, err = rt.Engine.Check(ctx, resolveFlags.backend)
	}
	if err != nil {
		return err
	}

	return printResult(cmd, Resolution{
		Requested:    backend.NormalizeID(resolveFlags.backend),
		Effective:    rt.Engine.ResolveEffective(ctx, resolveFlags.backend),
		Resource:     resolveFlags.resource,
		Backend:      desc.ID,
		Key:          desc.Key,
		Capabilities: desc.Capabilities.Clone(),
	})
}
