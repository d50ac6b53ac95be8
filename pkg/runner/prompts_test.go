package runner

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/wordbench/pkg/config"
	"github.com/odvcencio/wordbench/pkg/env"
	"github.com/odvcencio/wordbench/pkg/puzzle"
)

func TestPreambleForCrosswordCheckRule(t *testing.T) {
	with := preambleFor(puzzle.TypeCrossword, env.CrosswordRules{AllowChecks: true})
	assert.Contains(t, with, "check_entry")

	without := preambleFor(puzzle.TypeCrossword, env.CrosswordRules{AllowChecks: false})
	assert.NotContains(t, without, "check_entry")
}

func TestBuildRequest(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Temperature = 0.3
	cfg.MaxTokens = 512

	obs := env.Observation{
		PuzzleType: puzzle.TypeConnections,
		Connections: &env.ConnectionsObservation{
			Remaining:    []string{"HAIL", "RAIN"},
			MistakesLeft: 4,
		},
	}

	req := buildRequest(cfg, "openai/gpt-4o", connectionsPreamble, obs)
	assert.Equal(t, "openai/gpt-4o", req.Model)
	assert.Equal(t, 0.3, req.Temperature)
	assert.Equal(t, 512, req.MaxTokens)

	require.Len(t, req.Messages, 2)
	assert.Equal(t, "system", req.Messages[0].Role)
	assert.Contains(t, req.Messages[0].Content, "word grouping puzzle")
	assert.Equal(t, "user", req.Messages[1].Role)
	assert.True(t, strings.HasPrefix(req.Messages[1].Content, "Current state:\n"))
	assert.Contains(t, req.Messages[1].Content, "HAIL")

	require.NotNil(t, req.ResponseFormat)
	assert.Equal(t, "json_schema", req.ResponseFormat.Type)
	require.NotNil(t, req.ResponseFormat.JSONSchema)
	assert.Equal(t, "puzzle_action", req.ResponseFormat.JSONSchema.Name)
	assert.True(t, req.ResponseFormat.JSONSchema.Strict)
}

func TestActionSchemasAreValidJSON(t *testing.T) {
	for _, schema := range []json.RawMessage{connectionsActionSchema, crosswordActionSchema} {
		var parsed map[string]any
		require.NoError(t, json.Unmarshal(schema, &parsed))
		assert.Equal(t, "object", parsed["type"])
		assert.Equal(t, false, parsed["additionalProperties"])
	}
}

func TestSchemaFor(t *testing.T) {
	assert.Contains(t, string(schemaFor(puzzle.TypeConnections)), "submit_group")
	assert.Contains(t, string(schemaFor(puzzle.TypeCrossword)), "fill_entry")
}
