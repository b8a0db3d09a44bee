// Package questions loads the questionnaire that drives the rating form.
//
// A questionnaire is a delimited text file (.csv, .tsv, .txt) or a
// spreadsheet (.xlsx) with one row per item and the columns listed in
// RequiredColumns. Header cells are whitespace-trimmed before matching.
// Loading either yields a complete, validated Set or an error; there is
// never a partial questionnaire.
package questions

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/timvw/persona-survey/internal/model"
)

// Column names of the questionnaire file.
const (
	ColumnItem      = "Item#"
	ColumnStatement = "QuestionStatement"
	ColumnMin       = "MinRating"
	ColumnMax       = "MaxRating"
	ColumnMinAnchor = "MinRatingAnchor"
	ColumnMaxAnchor = "MaxRatingAnchor"
)

// RequiredColumns lists every column a questionnaire must provide.
var RequiredColumns = []string{
	ColumnItem, ColumnStatement, ColumnMin, ColumnMax, ColumnMinAnchor, ColumnMaxAnchor,
}

var (
	// ErrNotFound is returned when the questionnaire file does not exist.
	ErrNotFound = errors.New("questionnaire file not found")
	// ErrMissingColumns is returned when required columns are absent.
	ErrMissingColumns = errors.New("questionnaire is missing required columns")
	// ErrParse is returned for unreadable files and invalid rows.
	ErrParse = errors.New("questionnaire could not be parsed")
)

// Set is an immutable, validated questionnaire in file order.
type Set struct {
	source string
	items  []model.Question
	byID   map[string]int
}

// Source returns the path the set was loaded from.
func (s *Set) Source() string { return s.source }

// Len returns the number of questions.
func (s *Set) Len() int { return len(s.items) }

// Items returns a copy of the questions in file order.
func (s *Set) Items() []model.Question {
	out := make([]model.Question, len(s.items))
	copy(out, s.items)
	return out
}

// IDs returns the question IDs in file order.
func (s *Set) IDs() []string {
	ids := make([]string, len(s.items))
	for i, q := range s.items {
		ids[i] = q.ID
	}
	return ids
}

// Get returns the question with the given ID.
func (s *Set) Get(id string) (model.Question, bool) {
	i, ok := s.byID[id]
	if !ok {
		return model.Question{}, false
	}
	return s.items[i], true
}

// Defaults returns the midpoint rating of every question.
func (s *Set) Defaults() model.RatingSet {
	r := make(model.RatingSet, len(s.items))
	for _, q := range s.items {
		r[q.ID] = q.Midpoint()
	}
	return r
}

// Validate checks that every rating refers to a known question and lies
// within that question's bounds.
func (s *Set) Validate(r model.RatingSet) error {
	for _, id := range r.Keys() {
		q, ok := s.Get(id)
		if !ok {
			return fmt.Errorf("unknown question %q", id)
		}
		if !q.Contains(r[id]) {
			return fmt.Errorf("rating %d for %q outside [%d,%d]", r[id], id, q.Min, q.Max)
		}
	}
	return nil
}

// New builds a Set from already-parsed questions, enforcing unique IDs and
// sane bounds.
func New(source string, items []model.Question) (*Set, error) {
	s := &Set{
		source: source,
		items:  make([]model.Question, 0, len(items)),
		byID:   make(map[string]int, len(items)),
	}
	for i, q := range items {
		if q.ID == "" {
			return nil, fmt.Errorf("%w: item %d has an empty %s", ErrParse, i+1, ColumnItem)
		}
		if _, dup := s.byID[q.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate %s %q", ErrParse, ColumnItem, q.ID)
		}
		if q.Min > q.Max {
			return nil, fmt.Errorf("%w: %q has %s %d greater than %s %d",
				ErrParse, q.ID, ColumnMin, q.Min, ColumnMax, q.Max)
		}
		s.byID[q.ID] = len(s.items)
		s.items = append(s.items, q)
	}
	return s, nil
}

// fromRows converts a header row plus data rows into a Set.
func fromRows(source string, rows [][]string) (*Set, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrMissingColumns, source)
	}

	index := indexColumns(rows[0])
	var missing []string
	for _, col := range RequiredColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s (file must contain: %s)",
			ErrMissingColumns, strings.Join(missing, ", "), strings.Join(RequiredColumns, ", "))
	}

	var items []model.Question
	for i, row := range rows[1:] {
		if isBlank(row) {
			continue
		}
		line := i + 2 // 1-based, after the header
		minRating, err := parseRating(cell(row, index[ColumnMin]))
		if err != nil {
			return nil, fmt.Errorf("%w: row %d %s: %v", ErrParse, line, ColumnMin, err)
		}
		maxRating, err := parseRating(cell(row, index[ColumnMax]))
		if err != nil {
			return nil, fmt.Errorf("%w: row %d %s: %v", ErrParse, line, ColumnMax, err)
		}
		items = append(items, model.Question{
			ID:        cell(row, index[ColumnItem]),
			Statement: cell(row, index[ColumnStatement]),
			Min:       minRating,
			Max:       maxRating,
			MinAnchor: cell(row, index[ColumnMinAnchor]),
			MaxAnchor: cell(row, index[ColumnMaxAnchor]),
		})
	}
	return New(source, items)
}

func indexColumns(header []string) map[string]int {
	index := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, seen := index[h]; !seen {
			index[h] = i
		}
	}
	return index
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// parseRating accepts integers and integral floats ("10", "10.0").
// Spreadsheets commonly store whole numbers as floats.
func parseRating(s string) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("empty value")
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int(f)) {
		return 0, fmt.Errorf("%q is not an integer", s)
	}
	return int(f), nil
}
