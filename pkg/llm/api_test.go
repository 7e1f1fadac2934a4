package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCompletionRequestDefaults(t *testing.T) {
	req := NewCompletionRequest([]CompletionMessage{NewSystemMessage("sys"), NewUserMessage("hi")})
	assert.Equal(t, DefaultMaxTokens, req.MaxTokens)
	assert.InDelta(t, TemperatureDefault, req.Temperature, 1e-6)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, RoleSystem, req.Messages[0].Role)
	assert.Equal(t, RoleUser, req.Messages[1].Role)
}

func TestParseRole(t *testing.T) {
	role, err := ParseRole("assistant")
	require.NoError(t, err)
	assert.Equal(t, RoleAssistant, role)

	_, err = ParseRole("tool")
	assert.Error(t, err)
}

func TestSchemaMap(t *testing.T) {
	def := ToolDefinition{
		Name: "mark_item_complete",
		InputSchema: InputSchema{
			Type: "object",
			Properties: map[string]Property{
				"item_id": {Type: "string", Description: "id"},
				"tags": {
					Type:  "array",
					Items: &Property{Type: "string", Enum: []string{"a", "b"}},
				},
			},
			Required: []string{"item_id"},
		},
	}

	schema := def.SchemaMap()
	assert.Equal(t, "object", schema["type"])
	assert.Equal(t, []string{"item_id"}, schema["required"])

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	itemID, ok := props["item_id"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "string", itemID["type"])
	assert.Equal(t, "id", itemID["description"])

	tags, ok := props["tags"].(map[string]any)
	require.True(t, ok)
	items, ok := tags["items"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, items["enum"])

	// Must serialise cleanly for SDKs that take raw JSON.
	_, err := json.Marshal(schema)
	assert.NoError(t, err)
}

func TestSchemaMapEmptyRequired(t *testing.T) {
	def := ToolDefinition{Name: "noop", InputSchema: InputSchema{Type: "object"}}
	assert.Equal(t, []string{}, def.SchemaMap()["required"])
}
