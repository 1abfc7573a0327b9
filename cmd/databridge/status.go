package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lsats/databridge/internal/ledger"
	"github.com/lsats/databridge/internal/model"
)

var recentChangesDays int

// statusSources lists every (source, entity) key status can report on,
// mirroring the registries in sources.go and transform.go.
func statusSources() [][2]string {
	return [][2]string{
		{string(model.SourceTDX), string(model.EntityUser)},
		{string(model.SourceTDX), string(model.EntityDepartment)},
		{string(model.SourceTDX), string(model.EntityAsset)},
		{string(model.SourceActiveDirectory), string(model.EntityUser)},
		{string(model.SourceActiveDirectory), string(model.EntityGroup)},
		{string(model.SourceActiveDirectory), string(model.EntityComputer)},
		{string(model.SourceMCommunityLDAP), string(model.EntityUser)},
		{string(model.SourceMCommunityLDAP), string(model.EntityGroup)},
		{string(model.SourceUMichAPI), string(model.EntityUser)},
		{string(model.SourceUMichAPI), string(model.EntityDepartment)},
		{string(model.SourceKeyClient), string(model.EntityComputer)},
		{string(model.SourceLabAwards), string(model.EntityLabAward)},
	}
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report the last run per (source, entity), or every run of the last N days",
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := setup(cmd)
		if err != nil {
			return err
		}
		defer db.Close()
		defer log.Close()

		l := ledger.New(db.DB)
		ctx := cmd.Context()

		if recentChangesDays > 0 {
			runs, err := l.RecentChanges(ctx, recentChangesDays)
			if err != nil {
				return err
			}
			printStatus(fmt.Sprintf("recent changes (last %d days)", recentChangesDays), runs)
			return nil
		}

		var runs []ledger.Run
		for _, se := range statusSources() {
			run, err := l.Status(ctx, se[0], se[1])
			if err != nil {
				continue // no run recorded yet for this (source, entity)
			}
			runs = append(runs, *run)
		}
		printStatus("status", runs)
		return nil
	},
}

func printStatus(label string, runs []ledger.Run) {
	if jsonOutput {
		printJSON(map[string]any{"report": label, "runs": runs})
		return
	}
	fmt.Printf("%s:\n", label)
	for _, r := range runs {
		completed := "running"
		if r.CompletedAt != nil {
			completed = r.CompletedAt.Format("2006-01-02T15:04:05Z")
		}
		fmt.Printf("  %-20s %-14s status=%-9s processed=%-6d created=%-6d updated=%-6d completed=%s\n",
			r.SourceSystem, r.EntityType, r.Status, r.RecordsProcessed, r.RecordsCreated, r.RecordsUpdated, completed)
	}
}

func init() {
	statusCmd.Flags().IntVar(&recentChangesDays, "show-recent-changes", 0, "Report every ingestion run started in the last DAYS days instead of per-source status")
}
