package reporting

import (
	"fmt"
	"os"
	"path/filepath"
)

// Statement output file names.
const (
	StatementFile = "statement.md"
	ReceiptsFile  = "receipts.csv"
	SnapshotsFile = "snapshots.csv"
)

// WriteStatement writes the Markdown statement and both CSV files to dir,
// creating it if needed.
func WriteStatement(dir string, s *Statement) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	files := []struct {
		name    string
		content string
	}{
		{StatementFile, RenderStatementMarkdown(s)},
		{ReceiptsFile, RenderReceiptsCSV(s.Receipts)},
		{SnapshotsFile, RenderSnapshotsCSV(s.Snapshots)},
	}
	for _, f := range files {
		path := filepath.Join(dir, f.name)
		if err := os.WriteFile(path, []byte(f.content), 0644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	return nil
}
