package sourceclient

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/lsats/databridge/internal/config"
)

// CSVSource reads the lab-awards export: the newest file matching a glob,
// one Record per data row keyed by header column name. There is no detail
// endpoint and no server-side since-filtering — every run reads the whole
// file (spec.md §4.5.1: "each row is its own entity").
type CSVSource struct {
	glob string
}

func NewCSVSource(cfg config.CSVConfig) *CSVSource {
	return &CSVSource{glob: cfg.Glob}
}

func (c *CSVSource) List(ctx context.Context, since *time.Time) ([]Record, error) {
	path, err := c.newestMatch()
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path) // #nosec G304 - path resolved from an operator-supplied glob
	if err != nil {
		return nil, fmt.Errorf("opening csv %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("reading csv header %s: %w", path, err)
	}

	var records []Record
	for {
		row, err := r.Read()
		if err != nil {
			break // io.EOF or malformed trailing row; either way, stop
		}
		rec := Record{}
		for i, col := range header {
			if i < len(row) {
				rec[col] = row[i]
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

func (c *CSVSource) newestMatch() (string, error) {
	matches, err := filepath.Glob(c.glob)
	if err != nil {
		return "", fmt.Errorf("globbing %s: %w", c.glob, err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("no files matched glob %s", c.glob)
	}

	type fileInfo struct {
		path    string
		modTime time.Time
	}
	infos := make([]fileInfo, 0, len(matches))
	for _, m := range matches {
		st, err := os.Stat(m)
		if err != nil {
			continue
		}
		infos = append(infos, fileInfo{path: m, modTime: st.ModTime()})
	}
	if len(infos) == 0 {
		return "", fmt.Errorf("no readable files matched glob %s", c.glob)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].modTime.After(infos[j].modTime) })
	return infos[0].path, nil
}

// Detail is unsupported: CSV rows are already complete.
func (c *CSVSource) Detail(ctx context.Context, externalID string) (Record, error) {
	return nil, ErrNoDetailEndpoint
}
