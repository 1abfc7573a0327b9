package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lsats/databridge/internal/ingest"
	"github.com/lsats/databridge/internal/ledger"
	"github.com/lsats/databridge/internal/model"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [source-entity]",
	Short: "Fetch source records and append changed rows to bronze.raw_entities",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := setup(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		engine := ingest.New(db, ledger.New(db.DB))
		opts := jobOptions()

		var total model.Stats
		for _, def := range ingestDefs() {
			if !sourceEntityArg(args, string(def.SourceSystem), string(def.EntityType)) {
				continue
			}
			log.Infof("ingest %s/%s starting", def.SourceSystem, def.EntityType)
			start := time.Now()
			stats, err := engine.Ingest(cmd.Context(), def, opts)
			recordMetrics("ingest", string(def.SourceSystem), string(def.EntityType), stats, start, err)
			if err != nil {
				reportAndExit(log, "ingest", total, fmt.Errorf("%s/%s: %w", def.SourceSystem, def.EntityType, err))
				return nil
			}
			total = addStats(total, stats)
		}

		reportAndExit(log, "ingest", total, nil)
		return nil
	},
}
