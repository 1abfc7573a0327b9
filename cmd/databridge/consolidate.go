package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lsats/databridge/internal/consolidate"
	"github.com/lsats/databridge/internal/ledger"
	"github.com/lsats/databridge/internal/model"
)

var consolidateCmd = &cobra.Command{
	Use:   "consolidate [entity]",
	Short: "Merge per-source Silver tables into canonical users/departments/groups/computers",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := setup(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		engine := consolidate.New(db, ledger.New(db.DB))
		opts := jobOptions()
		ctx := cmd.Context()
		only := ""
		if len(args) == 1 {
			only = args[0]
		}

		var total model.Stats
		run := func(entity string, fn func() (model.Stats, error)) bool {
			if only != "" && only != entity {
				return true
			}
			log.Infof("consolidate %s starting", entity)
			start := time.Now()
			stats, err := fn()
			recordMetrics("consolidate", "silver_consolidation", entity, stats, start, err)
			if err != nil {
				reportAndExit(log, "consolidate", total, fmt.Errorf("%s: %w", entity, err))
				return false
			}
			total = addStats(total, stats)
			return true
		}

		if !run("users", func() (model.Stats, error) { return engine.RunUsers(ctx, opts) }) {
			return nil
		}
		if !run("departments", func() (model.Stats, error) { return engine.RunDepartments(ctx, opts) }) {
			return nil
		}
		if !run("groups", func() (model.Stats, error) { return engine.RunGroups(ctx, opts) }) {
			return nil
		}
		if !run("computers", func() (model.Stats, error) {
			stats, _, err := engine.RunComputers(ctx, opts, time.Now().UTC())
			return stats, err
		}) {
			return nil
		}

		reportAndExit(log, "consolidate", total, nil)
		return nil
	},
}

func addStats(a, b model.Stats) model.Stats {
	a.Processed += b.Processed
	a.Created += b.Created
	a.Updated += b.Updated
	a.SkippedUnchanged += b.SkippedUnchanged
	a.Errors += b.Errors
	a.ErrorSummary = append(a.ErrorSummary, b.ErrorSummary...)
	return a
}
