package formatter

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/nifx/internal/models"
	"github.com/desertthunder/nifx/internal/sanitizer"
	"github.com/desertthunder/nifx/internal/shared"
	"github.com/desertthunder/nifx/internal/tasks"
	tu "github.com/desertthunder/nifx/internal/testing"
)

func testResult() *tasks.RunResult {
	unit := func(id string) models.Unit {
		return models.Unit{GroupID: "ACRIN-6698-7", DateKey: "03-14-2021", UnitID: id}
	}
	started := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	completed := started.Add(90 * time.Second)

	done := models.NewCompleted(unit("a"), nil)
	done.Duration = 2500 * time.Millisecond
	degraded := models.NewCompleted(unit("b"), []string{"copy sidecar: permission denied"})
	outcomes := []models.Outcome{
		done,
		degraded,
		models.NewCorruptArchive(unit("c"), shared.ErrCorruptArchive),
		models.NewCopyFailure(unit("d"), models.StageMaterialize, errors.New("copy failed, disk full")),
	}

	return &tasks.RunResult{
		Run: &models.Run{
			ID:          "run-1",
			Sequence:    7,
			InputRoot:   "/in",
			OutputRoot:  "/out",
			Workers:     2,
			Total:       4,
			StartedAt:   started,
			CompletedAt: &completed,
		},
		Outcomes: outcomes,
		Summary:  models.Summarize(outcomes),
		Sweep:    &sanitizer.Report{FilesRemoved: 3, DirsRemoved: 2, Passes: 2},
	}
}

func TestNewRunReport(t *testing.T) {
	r := NewRunReport(testResult())

	if r.RunID != "run-1" || r.Sequence != 7 || r.Workers != 2 {
		t.Errorf("unexpected run fields: %+v", r)
	}
	if r.Summary.Total != 4 || r.Summary.Completed != 2 || r.Summary.Skipped != 2 || r.Summary.Degraded != 1 {
		t.Errorf("unexpected summary: %+v", r.Summary)
	}
	if r.Summary.ByKind["skipped_corrupt_archive"] != 1 || r.Summary.ByKind["completed"] != 2 {
		t.Errorf("unexpected by_kind: %v", r.Summary.ByKind)
	}
	if len(r.Units) != 4 {
		t.Fatalf("got %d units, want 4", len(r.Units))
	}
	if r.Units[0].Stage != "" {
		t.Errorf("completed unit should have no stage, got %q", r.Units[0].Stage)
	}
	if r.Units[3].Stage != "materialize" || r.Units[3].Error != "copy failed, disk full" {
		t.Errorf("unexpected copy failure row: %+v", r.Units[3])
	}
}

func TestToJSON(t *testing.T) {
	report := NewRunReport(testResult())
	data, err := ToJSON(report)
	if err != nil {
		t.Fatalf("ToJSON failed: %v", err)
	}

	var decoded RunReport
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("report is not valid JSON: %v", err)
	}
	if !reflect.DeepEqual(decoded.Units, report.Units) {
		t.Errorf("units did not round-trip:\n got %+v\nwant %+v", decoded.Units, report.Units)
	}
	if decoded.Sweep == nil || decoded.Sweep.FilesRemoved != 3 {
		t.Errorf("sweep did not round-trip: %+v", decoded.Sweep)
	}
	if !strings.Contains(string(data), "\n  \"run_id\": \"run-1\"") {
		t.Errorf("JSON should be indented, got: %s", data)
	}
}

func TestToCSV(t *testing.T) {
	data, err := ToCSV(NewRunReport(testResult()))
	if err != nil {
		t.Fatalf("ToCSV failed: %v", err)
	}

	records, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
	if err != nil {
		t.Fatalf("report is not valid CSV: %v", err)
	}
	if len(records) != 5 {
		t.Fatalf("got %d records, want header + 4", len(records))
	}
	if !reflect.DeepEqual(records[0], CSVHeaders) {
		t.Errorf("headers = %v", records[0])
	}

	tests := []struct {
		row  int
		want []string
	}{
		{1, []string{"ACRIN-6698-7", "03-14-2021", "a", "completed", "", "", "0", "2500"}},
		{2, []string{"ACRIN-6698-7", "03-14-2021", "b", "completed", "", "", "1", "0"}},
		{3, []string{"ACRIN-6698-7", "03-14-2021", "c", "skipped_corrupt_archive", "extract", "corrupt archive", "0", "0"}},
		{4, []string{"ACRIN-6698-7", "03-14-2021", "d", "skipped_copy_failure", "materialize", "copy failed, disk full", "0", "0"}},
	}
	for _, tt := range tests {
		if !reflect.DeepEqual(records[tt.row], tt.want) {
			t.Errorf("row %d = %v, want %v", tt.row, records[tt.row], tt.want)
		}
	}
}

func TestFormatForPath(t *testing.T) {
	tests := []struct {
		format  string
		path    string
		want    string
		wantErr bool
	}{
		{"", "report.json", FormatJSON, false},
		{"", "report.CSV", FormatCSV, false},
		{"", "report", FormatJSON, false},
		{"csv", "report.json", FormatCSV, false},
		{"JSON", "report.csv", FormatJSON, false},
		{"xml", "report.xml", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.format+"/"+tt.path, func(t *testing.T) {
			got, err := FormatForPath(tt.format, tt.path)
			if tt.wantErr {
				if !errors.Is(err, shared.ErrInvalidFlag) {
					t.Errorf("expected ErrInvalidFlag, got %v", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("FormatForPath(%q, %q) = %q, %v; want %q", tt.format, tt.path, got, err, tt.want)
			}
		})
	}
}

func TestWriteRunReport(t *testing.T) {
	t.Run("writes CSV into new directory", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "reports", "run.csv")
		if err := WriteRunReport(testResult(), "", path); err != nil {
			t.Fatalf("WriteRunReport failed: %v", err)
		}
		content := tu.MustReadFile(t, path)
		if !strings.HasPrefix(content, strings.Join(CSVHeaders, ",")+"\n") {
			t.Errorf("unexpected CSV content: %s", content)
		}
	})

	t.Run("writes JSON", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "run.json")
		if err := WriteRunReport(testResult(), FormatJSON, path); err != nil {
			t.Fatalf("WriteRunReport failed: %v", err)
		}
		var decoded RunReport
		if err := json.Unmarshal([]byte(tu.MustReadFile(t, path)), &decoded); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(decoded.Units) != 4 {
			t.Errorf("got %d units, want 4", len(decoded.Units))
		}
	})

	t.Run("rejects unknown format", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "run.xml")
		if err := WriteRunReport(testResult(), "xml", path); !errors.Is(err, shared.ErrInvalidFlag) {
			t.Errorf("expected ErrInvalidFlag, got %v", err)
		}
		tu.AssertNotExists(t, path)
	})
}
