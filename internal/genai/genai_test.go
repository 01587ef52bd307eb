package genai

import (
	"context"
	"testing"

	"github.com/doughlab/DoughPilot/internal/recipe"
)

func TestComposeAlarmTitle(t *testing.T) {
	step := recipe.Step{Title: "Fold", Description: "First folds"}
	if got := ComposeAlarmTitle(step); got != "Time for: Fold" {
		t.Errorf("ComposeAlarmTitle = %q", got)
	}
}

func TestComposeAlarmBodyWithoutAPIKey(t *testing.T) {
	c := NewComposer()
	step := recipe.Step{Title: "Fold", Description: "First folds"}
	if got := c.ComposeAlarmBody(context.Background(), "Sourdough", step); got != "First folds" {
		t.Errorf("ComposeAlarmBody = %q, want the step description", got)
	}
}

func TestComposeAlarmBodyEmptyDescription(t *testing.T) {
	c := NewComposer()
	step := recipe.Step{Title: "Fold"}
	if got := c.ComposeAlarmBody(context.Background(), "Sourdough", step); got != "" {
		t.Errorf("ComposeAlarmBody = %q, want empty", got)
	}
}
