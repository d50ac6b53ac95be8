package runner

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/odvcencio/wordbench/pkg/env"
	"github.com/odvcencio/wordbench/pkg/puzzle"
)

var actionsByType = map[puzzle.Type]map[env.ActionKind]bool{
	puzzle.TypeConnections: {
		env.ActionSubmitGroup: true,
		env.ActionGiveUp:      true,
	},
	puzzle.TypeCrossword: {
		env.ActionFillEntry:    true,
		env.ActionClearEntry:   true,
		env.ActionCheckEntry:   true,
		env.ActionSubmitPuzzle: true,
		env.ActionGiveUp:       true,
	},
}

// ParseAction decodes one agent response into an Action for the given puzzle
// type. Structured output mostly guarantees clean JSON, but models still wrap
// responses in code fences often enough that we strip them first.
func ParseAction(content string, puzzleType puzzle.Type) (*env.Action, error) {
	raw := stripCodeFences(content)
	if raw == "" {
		return nil, fmt.Errorf("empty response")
	}

	var action env.Action
	decoder := json.NewDecoder(strings.NewReader(raw))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&action); err != nil {
		return nil, fmt.Errorf("response is not a valid action: %w", err)
	}

	allowed, ok := actionsByType[puzzleType]
	if !ok {
		return nil, fmt.Errorf("unknown puzzle type %q", puzzleType)
	}
	if !allowed[action.Kind] {
		return nil, fmt.Errorf("action %q is not valid for %s puzzles", action.Kind, puzzleType)
	}
	return &action, nil
}

// stripCodeFences removes a surrounding markdown code fence, if present.
func stripCodeFences(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.Index(trimmed, "\n"); idx >= 0 {
		// Drop a language tag like ```json.
		first := strings.TrimSpace(trimmed[:idx])
		if len(first) <= 10 && !strings.Contains(first, "{") {
			trimmed = trimmed[idx+1:]
		}
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
