// Package recipe defines the immutable recipe model shared across modules.
package recipe

// Step is a single instruction unit in a recipe.
//
// DurationMillis is the time to wait after the previous step before this
// step begins; it is never negative. StartTime keeps the raw timing cell
// for display and debugging.
type Step struct {
	StartTime      string `json:"startTime"`
	Title          string `json:"title"`
	Description    string `json:"description"`
	DurationMillis int64  `json:"durationMillis"`
}

// Recipe is an ordered list of steps. It is constructed once by the row
// compiler and never mutated afterwards; copying it is always safe.
type Recipe struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Steps []Step `json:"steps"`
}

// IsEmpty reports whether the recipe has no steps. Empty recipes are
// filtered out by callers before they reach a session.
func (r Recipe) IsEmpty() bool {
	return len(r.Steps) == 0
}
