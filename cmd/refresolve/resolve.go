package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/goliatone/go-entityref/entity"
	"github.com/goliatone/go-entityref/resolver"
	"github.com/spf13/cobra"
)

type resolveOptions struct {
	fixture string
	origin  string
	asJSON  bool
	stats   bool
}

func newResolveCmd(a *app) *cobra.Command {
	opts := &resolveOptions{}

	cmd := &cobra.Command{
		Use:   "resolve <type:id>...",
		Short: "Resolve entity keys and print their references",
		Example: `  refresolve resolve --fixture refs.json item:potion-1 condition:c1
  REFRESOLVE_DATABASE_DSN=./refs.db refresolve resolve --json monster:goblin`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := parseKeys(args)
			if err != nil {
				return err
			}

			c, err := a.container()
			if err != nil {
				return err
			}
			defer c.Close()

			if opts.fixture != "" {
				if err := seed(cmd, c, opts.fixture); err != nil {
					return err
				}
			}

			ctx := cmd.Context()
			if opts.origin != "" {
				ctx = resolver.WithOrigin(ctx, opts.origin)
			}

			refs, err := c.Query().ResolveMany(ctx, keys)
			if err != nil {
				return err
			}

			ordered := make([]entity.Reference, len(keys))
			for i, key := range keys {
				ordered[i] = refs[key]
			}

			out := cmd.OutOrStdout()
			if opts.asJSON {
				err = writeJSON(out, ordered)
			} else {
				err = writeTable(out, ordered)
			}
			if err != nil {
				return err
			}

			if opts.stats {
				return writeStats(out, c.Resolver().Stats())
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.fixture, "fixture", "", "seed this fixture before resolving")
	cmd.Flags().StringVar(&opts.origin, "origin", "cli", "request origin recorded in logs")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print JSON")
	cmd.Flags().BoolVar(&opts.stats, "stats", false, "print resolver counters")
	return cmd
}

// parseKeys parses type:id arguments, dropping repeats and keeping order.
func parseKeys(args []string) ([]entity.Key, error) {
	seen := make(map[entity.Key]struct{}, len(args))
	keys := make([]entity.Key, 0, len(args))
	for _, arg := range args {
		key, err := entity.ParseKey(arg)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	return keys, nil
}

func writeJSON(w io.Writer, refs []entity.Reference) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(refs)
}

func writeTable(w io.Writer, refs []entity.Reference) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tSTATUS\tLABEL\tSLUG")
	for _, ref := range refs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", ref.Key, ref.Status, ref.Label(), ref.Slug)
	}
	return tw.Flush()
}

func writeStats(w io.Writer, stats map[entity.Type]resolver.Stats) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\nTYPE\tHITS\tSTALE\tMISSES\tCOALESCED\tLOADS\tFAILURES\tABSENT")
	for _, t := range entity.AllTypes() {
		s, ok := stats[t]
		if !ok {
			continue
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\t%d\t%d\n",
			t, s.Hits, s.StaleHits, s.Misses, s.Coalesced, s.LoaderCalls, s.LoaderFailures, s.Absent)
	}
	return tw.Flush()
}
