package agent

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContainsMarker(t *testing.T) {
	assert.True(t, ContainsMarker("The task is complete: here it is"))
	assert.True(t, ContainsMarker("After review, The task is complete: yes"))
	assert.False(t, ContainsMarker("the task is complete: lowercase"))
	assert.False(t, ContainsMarker("Next, draft the intro"))
}

func TestMarkerParser(t *testing.T) {
	d, err := MarkerParser{}.Parse("Draft the intro")
	require.NoError(t, err)
	assert.False(t, d.Complete)
	assert.Equal(t, "Draft the intro", d.NextTask)

	d, err = MarkerParser{}.Parse("The task is complete: all done")
	require.NoError(t, err)
	assert.True(t, d.Complete)
	assert.Empty(t, d.NextTask)
	for _, blank := range []string{"", "  \n\t"} {
		_, err = MarkerParser{}.Parse(blank)
		assert.ErrorIs(t, err, ErrEmptyDecision)
	}
	assert.Nil(t, MarkerParser{}.ResponseSchema())
	assert.Contains(t, MarkerParser{}.CompletionClause(), "'The task is complete:'")
}

func TestStructuredParser(t *testing.T) {
	p := NewStructuredParser()

	schema := p.ResponseSchema()
	require.NotNil(t, schema)
	raw, err := json.Marshal(schema.Schema)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"next_task"`)
	assert.Contains(t, string(raw), `"additionalProperties":false`)

	d, err := p.Parse(`{"complete":false,"next_task":"Research","summary":""}`)
	require.NoError(t, err)
	assert.Equal(t, "Research", d.NextTask)

	d, err = p.Parse(`{"complete":true,"next_task":"","summary":"Done"}`)
	require.NoError(t, err)
	assert.True(t, d.Complete)
	assert.Equal(t, "Done", d.Summary)

	_, err = p.Parse(`{"complete":false,"next_task":" ","summary":""}`)
	assert.ErrorIs(t, err, ErrNoNextTask)

	_, err = p.Parse("plain text")
	assert.Error(t, err)
}

func TestParserFor(t *testing.T) {
	p, err := ParserFor("")
	require.NoError(t, err)
	assert.IsType(t, MarkerParser{}, p)

	p, err = ParserFor(CompletionModeStructured)
	require.NoError(t, err)
	assert.IsType(t, &StructuredParser{}, p)

	_, err = ParserFor("telepathy")
	assert.Error(t, err)
}
