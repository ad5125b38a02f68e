package recorder

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gocarina/gocsv"

	"EarningsScreener/internal/model"
)

// ExportPath returns the CSV path for a session date inside dir.
func ExportPath(dir string, date time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("reco%s.csv", date.Format("20060102")))
}

// ExportCSV writes rows to dir/recoYYYYMMDD.csv, replacing any earlier export for the date.
func ExportCSV(dir string, date time.Time, rows []model.ResultRow) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	path := ExportPath(dir, date)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create export file: %w", err)
	}
	defer f.Close()

	if err := gocsv.MarshalFile(&rows, f); err != nil {
		return "", fmt.Errorf("write export: %w", err)
	}
	return path, nil
}
