package categorization

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rmassis/fiflow/internal/domain/taxonomy"
)

func TestNewGeminiClassifier(t *testing.T) {
	// The supplied key must reach the client; construction with an explicit
	// key succeeds regardless of what the environment holds.
	g, err := NewGeminiClassifier(context.Background(), taxonomy.Default(), "", "test-key")
	require.NoError(t, err)
	assert.Equal(t, DefaultModelName, g.model)
	assert.NotNil(t, g.client)
}

func TestCleanModelJSON(t *testing.T) {
	want := `{"category":"Food","subcategory":"Groceries","confidence":0.9}`

	tests := []struct {
		name string
		raw  string
	}{
		{"already clean", want},
		{"json fence", "```json\n" + want + "\n```"},
		{"bare fence", "```\n" + want + "\n```"},
		{"chatty preamble", "Sure, here is the classification:\n" + want + "\nHope that helps!"},
		{"surrounding whitespace", "  \n" + want + "\n  "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, want, cleanModelJSON(tt.raw))
		})
	}
}

func TestBuildPrompt(t *testing.T) {
	prompt := buildPrompt(taxonomy.Default())

	assert.Contains(t, prompt, "STRICT JSON")
	assert.Contains(t, prompt, "- Transport: Rideshare, Fuel, Public Transit, Parking, Other")
	assert.Contains(t, prompt, "- Other: Uncategorized")
	// Every category shows up in the prompt.
	for _, cat := range taxonomy.Default().Categories() {
		assert.True(t, strings.Contains(prompt, "- "+cat+": "), cat)
	}
}
