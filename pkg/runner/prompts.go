package runner

import (
	"encoding/json"
	"fmt"

	"github.com/odvcencio/wordbench/pkg/config"
	"github.com/odvcencio/wordbench/pkg/env"
	"github.com/odvcencio/wordbench/pkg/model"
	"github.com/odvcencio/wordbench/pkg/puzzle"
)

const connectionsPreamble = `You are playing a word grouping puzzle. 16 words form 4 hidden groups of 4 words each, one group per category. Each turn, either submit a group of exactly 4 words you believe belong together, or give up.

Rules:
- Submit exactly 4 distinct words, all from the remaining words.
- A correct submission locks in that group. Find all 4 groups to win.
- An incorrect submission costs one mistake. You lose after 4 mistakes.
- "One away" means exactly 3 of your 4 words belong to a single hidden group.
- "history" lists your previous submissions and their outcomes; never repeat one that failed.

Respond with a single JSON object matching the provided schema. Either:
  {"action": "submit_group", "words": ["w1", "w2", "w3", "w4"]}
or:
  {"action": "give_up"}`

const crosswordPreambleBase = `You are solving a crossword puzzle. The grid uses "#" for blocks and "." for empty cells; clue fill state shows "_" for empty letters. Each turn, take exactly one action.

Actions:
- {"action": "fill_entry", "direction": "across"|"down", "number": N, "answer": "WORD"} writes an answer (length must match the clue).
- {"action": "clear_entry", "direction": "across"|"down", "number": N} blanks an entry.%s
- {"action": "submit_puzzle"} submits the whole grid for final judging. Every fillable cell must be correct to win; submitting ends the run either way.
- {"action": "give_up"} ends the run.

Respond with a single JSON object matching the provided schema.`

const crosswordCheckRule = `
- {"action": "check_entry", "direction": "across"|"down", "number": N} reports which letters of a fully-filled entry are wrong (it never reveals correct letters).`

// Structured-output schemas, kept in lock-step with env.Action.
var connectionsActionSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "action": {"type": "string", "enum": ["submit_group", "give_up"]},
    "words": {"type": "array", "items": {"type": "string"}, "minItems": 4, "maxItems": 4}
  },
  "required": ["action"],
  "additionalProperties": false
}`)

var crosswordActionSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "action": {"type": "string", "enum": ["fill_entry", "clear_entry", "check_entry", "submit_puzzle", "give_up"]},
    "direction": {"type": "string", "enum": ["across", "down"]},
    "number": {"type": "integer", "minimum": 1},
    "answer": {"type": "string"}
  },
  "required": ["action"],
  "additionalProperties": false
}`)

// preambleFor returns the fixed rules text for a puzzle type. The crossword
// preamble only advertises check_entry when checks are enabled.
func preambleFor(puzzleType puzzle.Type, rules env.CrosswordRules) string {
	switch puzzleType {
	case puzzle.TypeConnections:
		return connectionsPreamble
	case puzzle.TypeCrossword:
		checkRule := ""
		if rules.AllowChecks {
			checkRule = crosswordCheckRule
		}
		return fmt.Sprintf(crosswordPreambleBase, checkRule)
	default:
		return ""
	}
}

// schemaFor returns the structured-output schema for a puzzle type.
func schemaFor(puzzleType puzzle.Type) json.RawMessage {
	if puzzleType == puzzle.TypeConnections {
		return connectionsActionSchema
	}
	return crosswordActionSchema
}

// buildRequest assembles the agent request for the current observation.
func buildRequest(cfg *config.Config, modelID string, preamble string, obs env.Observation) model.ChatRequest {
	observed, err := json.MarshalIndent(obs, "", "  ")
	if err != nil {
		observed = []byte(fmt.Sprintf("%+v", obs))
	}

	return model.ChatRequest{
		Model: modelID,
		Messages: []model.Message{
			{Role: "system", Content: preamble},
			{Role: "user", Content: "Current state:\n" + string(observed) + "\n\nChoose your next action."},
		},
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		ResponseFormat: &model.ResponseFormat{
			Type: "json_schema",
			JSONSchema: &model.JSONSchema{
				Name:   "puzzle_action",
				Strict: true,
				Schema: schemaFor(obs.PuzzleType),
			},
		},
	}
}
