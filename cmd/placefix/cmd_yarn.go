package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"placefix/internal/ir"
	"placefix/internal/model"
	"placefix/internal/plugin/yarn"
)

var yarnCmd = &cobra.Command{
	Use:   "yarn",
	Short: "Work with YARN placement specifications",
}

var yarnImportOut string

var yarnImportCmd = &cobra.Command{
	Use:   "import PATHS...",
	Short: "Extract placement rules from spec files into an IR dump",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var entities []model.Entity
		for _, path := range args {
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			parsed, err := yarn.Parse(string(data), path)
			if err != nil {
				return err
			}
			entities = append(entities, parsed...)
		}
		if len(entities) == 0 {
			return fmt.Errorf("no entities found")
		}

		out := ir.Format(model.MergeEntities(entities, nil))
		if err := os.WriteFile(yarnImportOut, []byte(out), 0o644); err != nil {
			return err
		}
		logger.Sugar().Infof("wrote %s", yarnImportOut)
		return nil
	},
}

var yarnInjectCmd = &cobra.Command{
	Use:   "inject OUTPUT_FILE IR_PATHS...",
	Short: "Write IR rules back out as a placement specification",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		outputFile := args[0]

		var entities []model.Entity
		for _, path := range args[1:] {
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			parsed, err := ir.Parse(string(data), model.FileSource(path))
			if err != nil {
				return err
			}
			entities = append(entities, parsed...)
		}
		entities = model.MergeEntities(entities, preferManifestSource(".spec"))

		out := yarn.Format(entities)
		if dir := filepath.Dir(outputFile); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
		}
		if _, err := os.Stat(outputFile); err == nil {
			logger.Sugar().Warnf("replacing existing %s", outputFile)
		}
		if !strings.HasSuffix(out, "\n") {
			out += "\n"
		}
		return os.WriteFile(outputFile, []byte(out), 0o644)
	},
}

func init() {
	yarnImportCmd.Flags().StringVarP(&yarnImportOut, "output", "o", "output.ir", "Output IR file")
	yarnCmd.AddCommand(yarnImportCmd, yarnInjectCmd)
}
