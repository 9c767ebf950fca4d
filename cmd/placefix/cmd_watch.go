package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"placefix/internal/annotate"
	"placefix/internal/solver"
	"placefix/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch DIR",
	Short: "Re-check entity files in a directory whenever they change",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := args[0]
		log := logger.Sugar()

		w, err := watch.New(dir, func(path string) {
			entities, err := loadEntities(path, "")
			if err != nil {
				log.Warnf("%s: %v", path, err)
				return
			}
			m, err := solver.BuildEntityMap(entities)
			if err != nil {
				log.Warnf("%s: %v", path, err)
				return
			}
			verdict, err := solver.Solve(m, solver.Options{Engines: cfg.EngineNames()})
			if err != nil {
				log.Warnf("%s: %v", path, err)
				return
			}
			if verdict.IsConflict() {
				fmt.Fprintln(os.Stderr, annotate.RenderConflicts(verdict.Conflicts()))
				return
			}
			log.Infof("%s: no conflict found", path)
		})
		if err != nil {
			return err
		}
		if err := w.Start(); err != nil {
			return err
		}
		defer w.Stop()

		log.Infof("watching %s", dir)
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		return nil
	},
}
