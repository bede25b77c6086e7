// Package main provides the semdiff CLI.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"semdiff/bundle"
	"semdiff/diff"
	"semdiff/langmatch"
	"semdiff/normalize"
	"semdiff/parse"
)

// Version is the current semdiff CLI version
var Version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:           "semdiff",
	Short:         "semdiff - structural, normalization-aware diffs",
	Long:          `semdiff compares two versions of a source file, ignores formatting-only changes, and reports inserts, deletes, updates, moves and renames.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var diffCmd = &cobra.Command{
	Use:   "diff <old-file> <new-file>",
	Short: "Show structural differences between two files",
	Long: `Show structural differences between two files.

The language is inferred from the new file's path unless --lang is given.

Examples:
  semdiff diff a.tsx b.tsx                 # Text summary
  semdiff diff a.py b.py --format json     # Diff document as JSON
  semdiff diff a.html b.html --bundle d.json  # Also write a redacted diagnostics bundle
  semdiff diff a.go b.go --bundle d.json.zst  # Same, zstd-compressed`,
	Args: cobra.ExactArgs(2),
	RunE: runDiff,
}

var parseCmd = &cobra.Command{
	Use:   "parse <file>",
	Short: "Parse a file and summarize the result",
	Args:  cobra.ExactArgs(1),
	RunE:  runParse,
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "List parser backends and their capabilities",
	Args:  cobra.NoArgs,
	RunE:  runDoctor,
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the diff document JSON Schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := cmd.OutOrStdout().Write(diff.Schema())
		return err
	},
}

var (
	langFlag      string
	configFlag    string
	languagesFlag string
	verboseFlag   bool

	diffFormat        string
	diffThreshold     float64
	diffBundle        string
	diffIncludeSource bool

	parseJSON bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&languagesFlag, "languages", "", "YAML file with extra path-to-language rules")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Log debug records to stderr")

	diffCmd.Flags().StringVar(&langFlag, "lang", "", "Language id (default: inferred from path)")
	diffCmd.Flags().StringVar(&configFlag, "config", "", "Normalizer config file (YAML or JSON)")
	diffCmd.Flags().StringVar(&diffFormat, "format", "text", "Output format: text, json, compact or stats")
	diffCmd.Flags().Float64Var(&diffThreshold, "threshold", diff.DefaultMoveThreshold, "Minimum similarity for near-duplicate moves")
	diffCmd.Flags().StringVar(&diffBundle, "bundle", "", "Write a diagnostics bundle to this file")
	diffCmd.Flags().BoolVar(&diffIncludeSource, "include-source", false, "Keep source text in the bundle")

	parseCmd.Flags().StringVar(&langFlag, "lang", "", "Language id (default: inferred from path)")
	parseCmd.Flags().BoolVar(&parseJSON, "json", false, "Output the full parse result as JSON")

	rootCmd.AddCommand(diffCmd, parseCmd, doctorCmd, schemaCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(cmd *cobra.Command) *slog.Logger {
	if !verboseFlag {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func newRegistry(logger *slog.Logger) (*parse.Registry, error) {
	opts := []parse.Option{parse.WithLogger(logger)}
	if languagesFlag != "" {
		rules, err := langmatch.LoadRules(languagesFlag)
		if err != nil {
			return nil, err
		}
		opts = append(opts, parse.WithLanguageRules(rules.WithFallback(langmatch.Default())))
	}
	return parse.NewRegistry(opts...), nil
}

func loadNormalizer() (normalize.Config, error) {
	if configFlag == "" {
		return normalize.DefaultConfig(), nil
	}
	return normalize.LoadConfig(configFlag)
}

func runDiff(cmd *cobra.Command, args []string) error {
	before, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading old file: %w", err)
	}
	after, err := os.ReadFile(args[1])
	if err != nil {
		return fmt.Errorf("reading new file: %w", err)
	}

	cfg, err := loadNormalizer()
	if err != nil {
		return err
	}
	logger := newLogger(cmd)
	registry, err := newRegistry(logger)
	if err != nil {
		return err
	}

	d := diff.NewDiffer(
		diff.WithNormalizer(cfg),
		diff.WithRegistry(registry),
		diff.WithMoveThreshold(diffThreshold),
		diff.WithLogger(logger),
	)
	doc := d.Diff(string(before), string(after), diff.Options{Language: langFlag, Path: args[1]})

	if diffBundle != "" {
		b, err := bundle.New(doc, &cfg, bundle.Options{IncludeSource: diffIncludeSource})
		if err != nil {
			return err
		}
		if err := b.Write(diffBundle); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	switch diffFormat {
	case "json":
		data, err := doc.FormatJSON()
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
	case "compact":
		if s := doc.FormatCompact(); s != "" {
			fmt.Fprintln(out, s)
		}
	case "stats":
		fmt.Fprintln(out, doc.FormatStats())
	case "text":
		if len(doc.Operations) == 0 {
			fmt.Fprintln(out, "No changes.")
			return nil
		}
		fmt.Fprint(out, doc.FormatText())
	default:
		return fmt.Errorf("unknown format %q (want text, json, compact or stats)", diffFormat)
	}
	return nil
}

func runParse(cmd *cobra.Command, args []string) error {
	content, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}
	registry, err := newRegistry(newLogger(cmd))
	if err != nil {
		return err
	}

	res, err := registry.Parse(parse.Input{Content: string(content), Path: args[0], Language: langFlag})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if parseJSON {
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	lang := res.Language
	if lang == "" {
		lang = "(unknown)"
	}
	nodes := 0
	if res.Root != nil {
		res.Root.Walk(func(*parse.Node) bool {
			nodes++
			return true
		})
	}
	fmt.Fprintf(out, "language:    %s\n", lang)
	fmt.Fprintf(out, "parser:      %s (%s)\n", res.Parser, res.Kind)
	fmt.Fprintf(out, "lines:       %d\n", len(res.Lines))
	fmt.Fprintf(out, "nodes:       %d\n", nodes)
	fmt.Fprintf(out, "tokens:      %d\n", len(res.Tokens))
	fmt.Fprintf(out, "diagnostics: %d\n", len(res.Diagnostics))
	for _, diag := range res.Diagnostics {
		fmt.Fprintf(out, "  %s\n", diag)
	}
	return nil
}

func runDoctor(cmd *cobra.Command, args []string) error {
	registry, err := newRegistry(newLogger(cmd))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, info := range registry.Backends() {
		langs := strings.Join(info.Languages, ", ")
		if langs == "" {
			langs = "(fallback)"
		}
		fmt.Fprintf(out, "%-11s %s\n", info.ID, langs)
		fmt.Fprintf(out, "            ast=%t tokens=%t recovery=%t incremental=%t\n",
			info.Capabilities.HasAstKinds,
			info.Capabilities.HasTokenRanges,
			info.Capabilities.SupportsErrorRecovery,
			info.Capabilities.SupportsIncrementalParse)
	}
	return nil
}
