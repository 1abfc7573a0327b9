package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/lsats/databridge/internal/hashing"
	"github.com/lsats/databridge/internal/model"
	"github.com/lsats/databridge/internal/relate"
)

var relationshipsCmd = &cobra.Command{
	Use:   "extract-relationships",
	Short: "Rebuild group_members and group_owners from silver.groups",
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := setup(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		rows, err := db.SelectAllAsMaps(cmd.Context(), "silver.groups", "")
		if err != nil {
			reportAndExit(log, "relationships", model.Stats{}, err)
			return nil
		}

		groups := make([]relate.GroupInput, 0, len(rows))
		for _, r := range rows {
			groups = append(groups, relate.GroupInput{
				GroupID:       stringField(r, "distinguished_name"),
				Members:       hashing.StringSlice(r["members"]),
				DirectMembers: hashing.StringSlice(r["direct_members"]),
				Owners:        hashing.StringSlice(r["owners"]),
				SourceSystem:  stringField(r, "source_system"),
			})
		}

		engine := relate.New(db)
		start := time.Now()
		memberCount, ownerCount, err := engine.Run(cmd.Context(), groups)
		stats := model.Stats{Processed: len(groups), Created: memberCount + ownerCount}
		recordMetrics("extract-relationships", "relationship_extraction", "group", stats, start, err)
		if err != nil {
			reportAndExit(log, "relationships", stats, err)
			return nil
		}

		log.Infof("relationships: %d group_members, %d group_owners written", memberCount, ownerCount)
		reportAndExit(log, "relationships", stats, nil)
		return nil
	},
}

func stringField(row map[string]any, field string) string {
	s, _ := row[field].(string)
	return s
}
