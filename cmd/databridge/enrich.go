package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lsats/databridge/internal/enrich"
	"github.com/lsats/databridge/internal/ledger"
	"github.com/lsats/databridge/internal/model"
)

var enrichCmd = &cobra.Command{
	Use:   "enrich [source-entity]",
	Short: "Fetch detail documents for TDX rows missing an enriched hash",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := setup(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		engine := enrich.New(db, ledger.New(db.DB))
		opts := jobOptions()

		var total model.Stats
		for _, def := range enrichDefs() {
			if !sourceEntityArg(args, string(def.SourceSystem), string(def.EntityType)) {
				continue
			}
			log.Infof("enrich %s/%s starting", def.SourceSystem, def.EntityType)
			start := time.Now()
			stats, err := engine.Enrich(cmd.Context(), def, opts)
			recordMetrics("enrich", string(def.SourceSystem), string(def.EntityType), stats, start, err)
			if err != nil {
				reportAndExit(log, "enrich", total, fmt.Errorf("%s/%s: %w", def.SourceSystem, def.EntityType, err))
				return nil
			}
			total = addStats(total, stats)
		}

		reportAndExit(log, "enrich", total, nil)
		return nil
	},
}
