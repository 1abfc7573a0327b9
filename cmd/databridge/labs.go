package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/lsats/databridge/internal/labassoc"
	"github.com/lsats/databridge/internal/ledger"
)

var labsCmd = &cobra.Command{
	Use:   "associate-labs",
	Short: "Discover and score computer-to-lab associations, rebuild silver.lab_computers",
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := setup(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		engine := labassoc.New(db, ledger.New(db.DB))
		start := time.Now()
		stats, err := engine.Run(cmd.Context(), jobOptions())
		recordMetrics("associate-labs", "lab_association", "computer", stats, start, err)
		reportAndExit(log, "labs", stats, err)
		return nil
	},
}
