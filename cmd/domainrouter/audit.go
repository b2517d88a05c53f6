package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/John-Robertt/domainrouter-go/internal/audit"
	"github.com/John-Robertt/domainrouter-go/internal/model"
)

func newAuditCmd(g *globalOptions) *cobra.Command {
	var (
		path string
		list bool
	)
	cmd := &cobra.Command{
		Use:   "audit [GROUP...]",
		Short: "Summarize the removal audit file written by build",
		Long: `audit reads the audit file (audit.path, or the default file under
$XDG_STATE_HOME/domainrouter) and prints per-group removal counts by
reason. --list prints every record instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if path == "" {
				path = g.cfg.Audit.Path
			}
			if path == "" {
				p, err := audit.DefaultFilePath()
				if err != nil {
					return err
				}
				path = p
			}
			records, err := audit.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read audit file: %w", err)
			}

			groups := args
			if len(groups) == 0 {
				for name := range records {
					groups = append(groups, name)
				}
				sort.Strings(groups)
			}

			w := cmd.OutOrStdout()
			for _, name := range groups {
				rs := records[name]
				if list {
					for _, r := range rs {
						fmt.Fprintln(w, audit.FormatRecord(name, r))
					}
					continue
				}
				fmt.Fprintf(w, "%s\t%d", name, len(rs))
				for _, rc := range countReasons(rs) {
					fmt.Fprintf(w, "\t%s=%d", rc.reason, rc.n)
				}
				fmt.Fprintln(w)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "file", "", "audit file to read (default audit.path)")
	cmd.Flags().BoolVar(&list, "list", false, "print every record")
	return cmd
}

type reasonCount struct {
	reason model.RemovalReason
	n      int
}

func countReasons(rs []model.Removal) []reasonCount {
	m := make(map[model.RemovalReason]int)
	for _, r := range rs {
		m[r.Reason]++
	}
	out := make([]reasonCount, 0, len(m))
	for reason, n := range m {
		out = append(out, reasonCount{reason, n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].reason < out[j].reason })
	return out
}
