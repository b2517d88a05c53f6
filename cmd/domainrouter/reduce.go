package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/John-Robertt/domainrouter-go/internal/compiler"
	"github.com/John-Robertt/domainrouter-go/internal/fetch"
	"github.com/John-Robertt/domainrouter-go/internal/model"
	"github.com/John-Robertt/domainrouter-go/internal/rules"
)

const maxStdinBytes = 32 << 20

type reduceOutput struct {
	Entries []string        `json:"entries"`
	Removed []model.Removal `json:"removed"`
	Counts  model.Counts    `json:"counts"`
}

func newReduceCmd(g *globalOptions) *cobra.Command {
	var (
		asJSON   bool
		collapse bool
		illegal  int
	)
	cmd := &cobra.Command{
		Use:   "reduce [FILE|URL...]",
		Short: "Reduce rule lists and print the canonical result",
		Long: `reduce merges the given lists (or standard input when none, or "-",
is given) into one batch and prints the surviving entries, one per line,
in canonical order. --json also reports what was removed and why.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opt := g.cfg.RulesOptions()
			if cmd.Flags().Changed("collapse") {
				opt.Networks.Collapse = collapse
			}
			if cmd.Flags().Changed("max-illegal-chars") {
				if illegal < 0 {
					return fmt.Errorf("--max-illegal-chars must not be negative")
				}
				opt.Policy = rules.StrictPolicy(illegal)
			}

			lines, err := readInputs(cmd, g, args)
			if err != nil {
				return err
			}
			res := rules.Process(lines, opt)
			log.Info().
				Int("input", len(lines)).
				Int("kept", len(res.Entries)).
				Int("removed", len(res.Removed)).
				Msg("reduce finished")

			w := cmd.OutOrStdout()
			if asJSON {
				out := reduceOutput{Entries: res.Lines(), Removed: res.Removed, Counts: res.Counts}
				if out.Removed == nil {
					out.Removed = []model.Removal{}
				}
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}
			for _, l := range res.Lines() {
				fmt.Fprintln(w, l)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print entries, removals and counts as JSON")
	cmd.Flags().BoolVar(&collapse, "collapse", true, "merge adjacent networks (default from engine.collapse_networks)")
	cmd.Flags().IntVar(&illegal, "max-illegal-chars", 0, "illegal characters tolerated per domain, 0 rejects any")
	return cmd
}

func readInputs(cmd *cobra.Command, g *globalOptions, args []string) ([]string, error) {
	if len(args) == 0 {
		args = []string{"-"}
	}
	retry := fetch.RetryPolicy{
		Attempts: g.cfg.Fetch.Retries,
		Wait:     g.cfg.Fetch.RetryWait,
		Options:  fetch.Options{Timeout: g.cfg.Fetch.Timeout, MaxBytes: g.cfg.Fetch.MaxBytes},
	}

	var lines []string
	for _, ref := range args {
		if ref == "-" {
			b, err := io.ReadAll(io.LimitReader(cmd.InOrStdin(), maxStdinBytes))
			if err != nil {
				return nil, fmt.Errorf("read stdin: %w", err)
			}
			if !utf8.Valid(b) {
				return nil, fmt.Errorf("stdin is not valid UTF-8")
			}
			lines = append(lines, compiler.SplitLines(string(b))...)
			continue
		}
		text, err := fetch.Load(cmd.Context(), fetch.KindRuleSource, strings.TrimSpace(ref), retry)
		if err != nil {
			return nil, err
		}
		lines = append(lines, compiler.SplitLines(text)...)
	}
	return lines, nil
}
