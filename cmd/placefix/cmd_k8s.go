package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"placefix/internal/annotate"
	"placefix/internal/ir"
	"placefix/internal/model"
	"placefix/internal/plugin/k8s"
	"placefix/internal/solver"
)

var k8sCmd = &cobra.Command{
	Use:   "k8s",
	Short: "Work with Kubernetes manifests",
}

var k8sImportOut string

var k8sImportCmd = &cobra.Command{
	Use:   "import PATHS...",
	Short: "Extract placement rules from manifests into an IR dump",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var entities []model.Entity
		for _, path := range args {
			extracted, err := k8s.ExtractEntitiesFromFile(path)
			if err != nil {
				logger.Sugar().Warnf("failed to extract entities from %s: %v", path, err)
				continue
			}
			entities = append(entities, extracted...)
		}
		if len(entities) == 0 {
			return fmt.Errorf("no entities found")
		}

		out := ir.Format(model.MergeEntities(entities, nil))
		if err := os.WriteFile(k8sImportOut, []byte(out), 0o644); err != nil {
			return err
		}
		logger.Sugar().Infof("wrote %s", k8sImportOut)
		return nil
	},
}

var k8sInjectCmd = &cobra.Command{
	Use:   "inject OUTPUT_DIR IR_PATHS...",
	Short: "Write IR rules back into manifest affinity stanzas",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		outputDir := args[0]

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
		entities = model.MergeEntities(entities, preferManifestSource(".yaml"))

		mapping, err := k8s.ScanEntityFileMapping(entities)
		if err != nil {
			return err
		}
		docs, err := k8s.InjectEntities(entities, mapping)
		if err != nil {
			return err
		}
		return writeDocs(outputDir, docs)
	},
}

var (
	k8sRecommend       bool
	k8sRecommendPolicy string
	k8sEnvFile         string
	k8sCycleCheck      bool
	k8sRejectUnknown   bool
)

var k8sGoCmd = &cobra.Command{
	Use:   "go SOURCE_DIR INJECT_DIR OUTPUT_DIR",
	Short: "Run the full pipeline: extract, solve, report, recommend, inject",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		sourceDir, injectDir, outputDir := args[0], args[1], args[2]
		log := logger.Sugar()

		manifestEntities, err := collectManifestEntities(sourceDir)
		if err != nil {
			return err
		}
		irEntities := collectIREntities(injectDir)
		hasInjected := len(irEntities) > 0

		entities := model.MergeEntities(
			append(manifestEntities, irEntities...),
			preferManifestSource(".yaml"))

		report, err := k8s.NewReport(outputDir)
		if err != nil {
			return err
		}
		if err := report.WriteDump(entities); err != nil {
			return err
		}
		if err := report.WriteDefinitions(entities); err != nil {
			return err
		}

		var envs []model.Env
		if k8sEnvFile != "" {
			data, err := os.ReadFile(k8sEnvFile)
			if err != nil {
				return err
			}
			if envs, err = model.ParseEnvs(string(data)); err != nil {
				return err
			}
		}

		policy, err := solver.ParsePolicy(k8sRecommendPolicy)
		if err != nil {
			return err
		}

		engines := []string{"sat"}
		if k8sCycleCheck {
			engines = append(engines, "ring")
		}
		if k8sRejectUnknown {
			engines = append(engines, "unknown")
		}
		opts := solver.Options{Engines: engines, Envs: envs}

		parts := solver.SplitByTopology(entities, cfg.Solver.DefaultTopologyKey)
		keys := make([]string, 0, len(parts))
		for key := range parts {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		hasConflict := false
		for _, key := range keys {
			log.Infof("checking topology %s", key)
			partition := parts[key]

			entityMap, err := solver.BuildEntityMap(partition)
			if err != nil {
				return err
			}
			if err := report.WritePartitionDump(key, partition); err != nil {
				return err
			}

			verdict, err := solver.Solve(entityMap, opts)
			if err != nil {
				return err
			}
			if verdict.IsOk() {
				continue
			}
			hasConflict = true
			conflicts := verdict.Conflicts()

			if k8sRecommend {
				recs := solver.Recommend(conflicts, entityMap.Entities, policy)
				if err := report.WriteRecommendations(recs); err != nil {
					return err
				}
				mapping, err := k8s.ScanEntityFileMapping(partition)
				if err != nil {
					return err
				}
				docs, err := k8s.RemoveRules(partition, recs, mapping)
				if err != nil {
					return err
				}
				if err := report.WriteDocs("solution", docs); err != nil {
					return err
				}
			}

			if err := report.WriteConflicts(key, conflicts); err != nil {
				return err
			}
			fmt.Fprintln(os.Stderr, annotate.RenderConflicts(conflicts))
		}

		if hasConflict {
			return errConflicts
		}
		log.Info("no conflicts found")

		if !hasInjected {
			log.Info("no injected entities found, skipping injection")
			return nil
		}
		log.Info("injecting entities")
		mapping, err := k8s.ScanEntityFileMapping(entities)
		if err != nil {
			return err
		}
		docs, err := k8s.InjectEntities(entities, mapping)
		if err != nil {
			return err
		}
		return writeDocs(outputDir, docs)
	},
}

func init() {
	k8sImportCmd.Flags().StringVarP(&k8sImportOut, "output", "o", "output.ir", "Output IR file")

	k8sGoCmd.Flags().BoolVarP(&k8sRecommend, "recommend", "r", false, "Recommend a rule-removal set when unsatisfiable")
	k8sGoCmd.Flags().StringVar(&k8sRecommendPolicy, "recommend-policy", "HighPriorityFirst", "Recommendation policy: HighPriorityFirst or All")
	k8sGoCmd.Flags().StringVar(&k8sEnvFile, "env-file", "", "Environment file for environment-scoped probing")
	k8sGoCmd.Flags().BoolVar(&k8sCycleCheck, "cycle-check", false, "Also run the require-cycle engine")
	k8sGoCmd.Flags().BoolVar(&k8sRejectUnknown, "reject-unknown", false, "Report rules referencing undefined entities")

	k8sCmd.AddCommand(k8sImportCmd, k8sInjectCmd, k8sGoCmd)
}

// collectManifestEntities extracts entities from every yaml manifest in a
// directory; extraction failures skip the file with a warning.
func collectManifestEntities(dir string) ([]model.Entity, error) {
	items, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read source directory %s: %w", dir, err)
	}

	var entities []model.Entity
	for _, item := range items {
		name := item.Name()
		if item.IsDir() || !strings.HasSuffix(name, ".yaml") {
			continue
		}
		extracted, err := k8s.ExtractEntitiesFromFile(filepath.Join(dir, name))
		if err != nil {
			logger.Sugar().Warnf("failed to extract entities from %s: %v", name, err)
			continue
		}
		entities = append(entities, extracted...)
	}
	return entities, nil
}

// collectIREntities parses every .ir file in a directory. A missing
// directory just means nothing to inject.
func collectIREntities(dir string) []model.Entity {
	items, err := os.ReadDir(dir)
	if err != nil {
		logger.Sugar().Warnf("failed to read inject directory: %v", err)
		return nil
	}

	var entities []model.Entity
	for _, item := range items {
		name := item.Name()
		if item.IsDir() || !strings.HasSuffix(name, ".ir") {
			continue
		}
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Sugar().Warnf("failed to read %s: %v", path, err)
			continue
		}
		parsed, err := ir.Parse(string(data), model.FileSource(path))
		if err != nil {
			logger.Sugar().Warnf("failed to parse %s: %v", path, err)
			continue
		}
		entities = append(entities, parsed...)
	}
	return entities
}

// preferManifestSource keeps the manifest-backed source when an entity was
// seen both in a manifest and in an IR dump.
func preferManifestSource(ext string) model.MergeSourceFunc {
	return func(dst *model.Source, src model.Source) {
		if !strings.HasSuffix(string(*dst), ext) {
			logger.Sugar().Warnf("replacing source %s with %s", *dst, src)
			*dst = src
		}
	}
}

func writeDocs(dir string, docs []k8s.NamedDoc) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, doc := range docs {
		if err := os.WriteFile(filepath.Join(dir, doc.Name), doc.Data, 0o644); err != nil {
			return err
		}
	}
	return nil
}
