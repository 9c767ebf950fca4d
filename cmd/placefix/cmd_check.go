package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"placefix/internal/annotate"
	"placefix/internal/ir"
	"placefix/internal/model"
	"placefix/internal/solver"
)

var (
	checkFormat     string
	checkSplitKey   string
	checkDefaultKey string
	checkCycle      bool
)

// errConflicts makes a conflicting check exit non-zero; the annotations
// already went to stderr, so cobra adds only this one-line error.
var errConflicts = errors.New("conflicts found")

var checkCmd = &cobra.Command{
	Use:   "check PATH",
	Short: "Check an entity file for placement conflicts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		entities, err := loadEntities(path, checkFormat)
		if err != nil {
			return err
		}

		engines := cfg.EngineNames()
		if cmd.Flags().Changed("cycle-check") {
			engines = withEngine(engines, "ring", checkCycle)
		}
		opts := solver.Options{Engines: engines}

		if checkSplitKey == "" {
			m, err := solver.BuildEntityMap(entities)
			if err != nil {
				return err
			}
			verdict, err := solver.Solve(m, opts)
			if err != nil {
				return err
			}
			return reportVerdict(map[string]solver.Verdict{"": verdict})
		}

		defaultKey := checkDefaultKey
		if defaultKey == "" {
			defaultKey = cfg.Solver.DefaultTopologyKey
		}
		parts := solver.SplitByMetadata(entities, checkSplitKey, defaultKey)
		verdicts, err := solver.SolvePartitions(parts, opts)
		if err != nil {
			return err
		}
		return reportVerdict(verdicts)
	},
}

func init() {
	checkCmd.Flags().StringVarP(&checkFormat, "format", "f", "", "Input format: ir, json or yaml (default: by extension)")
	checkCmd.Flags().StringVar(&checkSplitKey, "split-key", "", "Partition by this rule-metadata key before solving")
	checkCmd.Flags().StringVar(&checkDefaultKey, "default-key", "", "Partition for rules missing the split key")
	checkCmd.Flags().BoolVar(&checkCycle, "cycle-check", true, "Also run the require-cycle engine")
}

// loadEntities parses an entity file in any of the supported formats.
func loadEntities(path, format string) ([]model.Entity, error) {
	if format == "" {
		format = strings.TrimPrefix(filepath.Ext(path), ".")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	source := model.FileSource(path)

	switch format {
	case "ir":
		return ir.Parse(string(data), source)
	case "json":
		return model.EntitiesFromJSON(data, source)
	case "yaml", "yml":
		return model.EntitiesFromYAML(data, source)
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
}

func withEngine(engines []string, name string, enabled bool) []string {
	out := make([]string, 0, len(engines)+1)
	for _, e := range engines {
		if e != name {
			out = append(out, e)
		}
	}
	if enabled {
		out = append(out, name)
	}
	return out
}

// reportVerdict prints annotations for every conflicting partition and
// returns errConflicts when any partition failed.
func reportVerdict(verdicts map[string]solver.Verdict) error {
	keys := make([]string, 0, len(verdicts))
	for key := range verdicts {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	conflict := false
	for _, key := range keys {
		verdict := verdicts[key]
		if verdict.IsOk() {
			continue
		}
		conflict = true
		if key != "" {
			fmt.Fprintf(os.Stderr, "partition %s:\n", key)
		}
		fmt.Fprintln(os.Stderr, annotate.RenderConflicts(verdict.Conflicts()))
	}

	if conflict {
		return errConflicts
	}
	logger.Info("no conflict found")
	return nil
}

var (
	fmtWrite bool
)

var fmtCmd = &cobra.Command{
	Use:   "fmt PATH",
	Short: "Reformat a rule IR file canonically",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		entities, err := ir.Parse(string(data), model.FileSource(path))
		if err != nil {
			return err
		}
		out := ir.Format(entities)
		if fmtWrite {
			return os.WriteFile(path, []byte(out), 0o644)
		}
		fmt.Print(out)
		return nil
	},
}

func init() {
	fmtCmd.Flags().BoolVarP(&fmtWrite, "write", "W", false, "Rewrite the file in place")
}
