package recipe

import (
	"strings"

	"github.com/doughlab/DoughPilot/internal/timeparse"
)

// ParseStep parses one sheet row's timing and builds the resulting step.
// It returns the step together with the new cumulative recipe time, which
// the caller threads into the next ParseStep call so that absolute timing
// cells resolve against recipe-elapsed time rather than wall-clock now.
func ParseStep(raw, title, description string, previousCumulativeMillis int64) (Step, int64) {
	duration := timeparse.ParseDuration(raw, previousCumulativeMillis)
	step := Step{
		StartTime:      raw,
		Title:          title,
		Description:    description,
		DurationMillis: duration,
	}
	return step, previousCumulativeMillis + duration
}

// Compile folds ordered sheet rows into a Recipe.
//
// Row layout: cell 0 is the timing cell, cell 1 the title, cell 2 the
// description. A two-column sheet is tolerated: the title falls back to the
// first cell. Rows whose title and description are both blank are separator
// rows and produce no step. Row order is step order.
func Compile(rows [][]string, name string) Recipe {
	if len(rows) == 0 {
		return Recipe{ID: name, Name: name}
	}

	dataRows := rows
	if len(rows) > 1 && looksLikeHeader(rows[0]) {
		dataRows = rows[1:]
	}

	var steps []Step
	var cumulative int64
	for _, row := range dataRows {
		startTime := strings.TrimSpace(cell(row, 0))
		// Tolerate a two-column sheet: only a missing title cell falls back
		// to the timing cell, a present-but-blank one does not.
		title := startTime
		if len(row) > 1 {
			title = strings.TrimSpace(row[1])
		}
		description := strings.TrimSpace(cell(row, 2))
		if title == "" && description == "" {
			continue
		}
		step, next := ParseStep(startTime, title, description, cumulative)
		steps = append(steps, step)
		cumulative = next
	}

	return Recipe{ID: name, Name: name, Steps: steps}
}

// looksLikeHeader reports whether a row is the sheet's header row.
func looksLikeHeader(row []string) bool {
	first := strings.ToLower(strings.TrimSpace(cell(row, 0)))
	second := strings.ToLower(strings.TrimSpace(cell(row, 1)))
	return strings.Contains(first, "start") || strings.Contains(second, "title")
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}
