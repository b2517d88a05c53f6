package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/domainrouter-go/internal/build"
)

func newBuildCmd(g *globalOptions) *cobra.Command {
	var source, out string
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Reduce every group of a rule-source document and write the output tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sum, err := build.Run(cmd.Context(), build.Options{
				Config: g.cfg,
				Source: source,
				OutDir: out,
			})
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			for _, f := range sum.Files {
				fmt.Fprintf(w, "  %s\n", f)
			}
			for _, name := range sum.Skipped {
				fmt.Fprintf(w, "skipped empty group %s\n", name)
			}
			fmt.Fprintf(w, "%d files, %d groups, %d entries removed", len(sum.Files), sum.Groups, sum.Removed)
			if sum.FetchErrors > 0 {
				fmt.Fprintf(w, ", %d sources failed", sum.FetchErrors)
			}
			fmt.Fprintln(w)
			return nil
		},
	}
	cmd.Flags().StringVarP(&source, "source", "s", "", "rule-source document, path or URL (overrides config source)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output directory (overrides config output_dir)")
	return cmd
}
