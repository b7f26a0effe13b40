package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/antlu/statusbot/internal/meeting"
)

type reportRow struct {
	Nick       string    `csv:"nick"`
	Report     string    `csv:"report"`
	ReportedAt time.Time `csv:"reported_at"`
}

// ReportsFile keeps the latest report of every participant in a CSV file
// that is rewritten wholesale on every change.
type ReportsFile struct {
	path string
}

var _ meeting.ReportStore = (*ReportsFile)(nil)

func NewReportsFile(path string) *ReportsFile {
	return &ReportsFile{path: path}
}

// Load returns the stored reports. A missing or empty file is empty state.
// A corrupt file also yields empty state, together with the parse error.
func (f *ReportsFile) Load() (map[string]meeting.Report, error) {
	reports := make(map[string]meeting.Report)

	file, err := os.Open(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return reports, nil
	}
	if err != nil {
		return reports, fmt.Errorf("error opening reports file: %w", err)
	}
	defer file.Close()

	fi, err := file.Stat()
	if err != nil {
		return reports, fmt.Errorf("error reading reports file: %w", err)
	}
	if fi.Size() == 0 {
		return reports, nil
	}

	rows := []reportRow{}
	if err := gocsv.UnmarshalFile(file, &rows); err != nil {
		return make(map[string]meeting.Report), fmt.Errorf("error parsing %s: %w", f.path, err)
	}

	for _, row := range rows {
		reports[row.Nick] = meeting.Report{Nick: row.Nick, Text: row.Report, At: row.ReportedAt}
	}
	return reports, nil
}

func (f *ReportsFile) Save(reports map[string]meeting.Report) error {
	rows := make([]reportRow, 0, len(reports))
	for _, r := range reports {
		rows = append(rows, reportRow{Nick: r.Nick, Report: r.Text, ReportedAt: r.At.UTC()})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Nick < rows[j].Nick })

	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("error creating %s directory: %w", filepath.Dir(f.path), err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".reports-*.csv")
	if err != nil {
		return fmt.Errorf("error creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := gocsv.MarshalFile(&rows, tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("error writing reports: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("error closing temp file: %w", err)
	}

	return os.Rename(tmp.Name(), f.path)
}
