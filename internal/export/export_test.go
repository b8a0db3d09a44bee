package export

import (
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/xuri/excelize/v2"

	"github.com/timvw/persona-survey/internal/model"
	"github.com/timvw/persona-survey/internal/questions"
)

func testSet(t *testing.T) *questions.Set {
	t.Helper()
	set, err := questions.New("test", []model.Question{
		{ID: "Q1", Statement: "a", Min: 0, Max: 10, MinAnchor: "lo", MaxAnchor: "hi"},
		{ID: "Q2", Statement: "b", Min: 0, Max: 5, MinAnchor: "lo", MaxAnchor: "hi"},
	})
	if err != nil {
		t.Fatalf("questions.New: %v", err)
	}
	return set
}

func TestFlatten(t *testing.T) {
	subs := []model.Submission{
		{ID: 1, CurrentDate: "2026-03-01 09:15", Ratings: `{"Q1":7,"Q2":2}`, Assessment: "warm"},
		{ID: 2, CurrentDate: "2026-03-01 09:20", Ratings: `{"Q1":3}`, Assessment: "quiet"},
	}
	got := Flatten(subs, testSet(t))

	want := &Table{
		Columns: []string{"id", "current_date", "personality_assessment", "Q1", "Q2"},
		Rows: [][]string{
			{"1", "2026-03-01 09:15", "warm", "7", "2"},
			{"2", "2026-03-01 09:20", "quiet", "3", ""},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Flatten mismatch (-want +got):\n%s", diff)
	}
}

func TestFlatten_MalformedAndEmptyBlobs(t *testing.T) {
	subs := []model.Submission{
		{ID: 1, CurrentDate: "d1", Ratings: `{"Q1":7,"Q2":2}`, Assessment: "a"},
		{ID: 2, CurrentDate: "d2", Ratings: `{broken`, Assessment: "b"},
		{ID: 3, CurrentDate: "d3", Ratings: ``, Assessment: "c"},
	}
	got := Flatten(subs, testSet(t))

	if len(got.Rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(got.Rows))
	}
	if diff := cmp.Diff([]string{"2", "d2", "b", "", ""}, got.Rows[1]); diff != "" {
		t.Errorf("malformed row mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"3", "d3", "c", "", ""}, got.Rows[2]); diff != "" {
		t.Errorf("empty row mismatch (-want +got):\n%s", diff)
	}
	if len(got.Errors) != 1 || got.Errors[0].ID != 2 {
		t.Fatalf("Errors = %+v, want one error for row 2", got.Errors)
	}
	var rowErr RowError
	if !errors.As(error(got.Errors[0]), &rowErr) {
		t.Error("RowError should satisfy errors.As")
	}
}

func TestFlatten_ExtraKeysSorted(t *testing.T) {
	subs := []model.Submission{
		{ID: 1, Ratings: `{"Q1":1,"Z":4,"B":2}`},
	}
	got := Flatten(subs, testSet(t))

	wantCols := []string{"id", "current_date", "personality_assessment", "Q1", "Q2", "B", "Z"}
	if diff := cmp.Diff(wantCols, got.Columns); diff != "" {
		t.Errorf("columns mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"1", "", "", "1", "", "2", "4"}, got.Rows[0]); diff != "" {
		t.Errorf("row mismatch (-want +got):\n%s", diff)
	}
}

func TestFlatten_NoRows(t *testing.T) {
	got := Flatten(nil, testSet(t))
	if len(got.Rows) != 0 {
		t.Errorf("got %d rows, want 0", len(got.Rows))
	}
	if len(got.Columns) != 5 {
		t.Errorf("got %d columns, want header only", len(got.Columns))
	}
}

func TestWriteCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFileName)
	table := &Table{
		Columns: []string{"id", "current_date", "personality_assessment", "Q1"},
		Rows:    [][]string{{"1", "2026-03-01 09:15", "line one,\nline \"two\"", "7"}},
	}
	if err := WriteCSV(path, table); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	want := append([][]string{table.Columns}, table.Rows...)
	if diff := cmp.Diff(want, records); diff != "" {
		t.Errorf("csv mismatch (-want +got):\n%s", diff)
	}
}

func TestWrite_XLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.xlsx")
	table := &Table{
		Columns: []string{"id", "current_date", "personality_assessment", "Q1", "Q2"},
		Rows:    [][]string{{"1", "d", "n", "7", ""}},
	}
	if err := Write(path, table); err != nil {
		t.Fatalf("Write: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[1][3] != "7" {
		t.Errorf("Q1 cell = %q, want 7", rows[1][3])
	}
}
