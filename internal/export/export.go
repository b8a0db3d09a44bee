// Package export flattens stored submissions into one table, one column per
// question, and writes it out as CSV (or as an .xlsx workbook).
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/timvw/persona-survey/internal/model"
	"github.com/timvw/persona-survey/internal/questions"
)

// DefaultFileName is the export written to the working directory.
const DefaultFileName = "personality_assessment_data.csv"

// Fixed leading columns of every export.
var baseColumns = []string{"id", "current_date", "personality_assessment"}

// RowError reports a stored row whose ratings blob could not be decoded.
// The row is still exported with empty rating cells.
type RowError struct {
	ID  int64
	Err error
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.ID, e.Err)
}

func (e RowError) Unwrap() error { return e.Err }

// Table is a flattened export.
type Table struct {
	Columns []string
	Rows    [][]string
	Errors  []RowError
}

// Flatten expands each submission's ratings into one column per question.
// Question columns follow questionnaire order; keys found in stored blobs
// that the questionnaire does not define follow in sorted order.
func Flatten(subs []model.Submission, set *questions.Set) *Table {
	t := &Table{}

	decoded := make([]model.RatingSet, len(subs))
	known := make(map[string]bool)
	var ratingCols []string
	if set != nil {
		for _, id := range set.IDs() {
			known[id] = true
			ratingCols = append(ratingCols, id)
		}
	}

	extra := make(map[string]bool)
	for i, s := range subs {
		r, err := model.DecodeRatings(s.Ratings)
		if err != nil {
			t.Errors = append(t.Errors, RowError{ID: s.ID, Err: err})
			continue
		}
		decoded[i] = r
		for k := range r {
			if !known[k] {
				extra[k] = true
			}
		}
	}
	extraCols := make([]string, 0, len(extra))
	for k := range extra {
		extraCols = append(extraCols, k)
	}
	sort.Strings(extraCols)
	ratingCols = append(ratingCols, extraCols...)

	t.Columns = append(append([]string{}, baseColumns...), ratingCols...)
	for i, s := range subs {
		row := make([]string, 0, len(t.Columns))
		row = append(row, strconv.FormatInt(s.ID, 10), s.CurrentDate, s.Assessment)
		for _, col := range ratingCols {
			cell := ""
			if v, ok := decoded[i][col]; ok {
				cell = strconv.Itoa(v)
			}
			row = append(row, cell)
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// Write writes the table to path. Files ending in .xlsx become a workbook,
// everything else is CSV.
func Write(path string, t *Table) error {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return WriteXLSX(path, t)
	}
	return WriteCSV(path, t)
}

// WriteCSV writes the table with a header row, overwriting path.
func WriteCSV(path string, t *Table) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(t.Columns); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := w.WriteAll(t.Rows); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

// WriteXLSX writes the table to the first sheet of a new workbook.
func WriteXLSX(path string, t *Table) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	if err := f.SetSheetRow(sheet, "A1", &t.Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, row := range t.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		vals := make([]interface{}, len(row))
		for j, v := range row {
			vals[j] = v
			if j >= len(baseColumns) && v != "" {
				if n, err := strconv.Atoi(v); err == nil {
					vals[j] = n
				}
			}
		}
		if err := f.SetSheetRow(sheet, cell, &vals); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}
