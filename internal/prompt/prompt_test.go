package prompt

import (
	"context"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseChoice(t *testing.T) {
	assert.Equal(t, Choice{Prompt: "a cat"}, ParseChoice("a cat"))
	assert.Equal(t, Choice{Provider: "dalle", Prompt: "a cat"}, ParseChoice("dalle|a cat"))
	assert.Equal(t, Choice{Provider: "dezgo", Model: "epic", Prompt: "a | cat"}, ParseChoice("dezgo|epic|a | cat"))
}

func TestRandomize(t *testing.T) {
	r := New([]string{"midjourney|a cat"}, rand.NewSource(1))
	c, err := r.Randomize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Choice{Provider: "midjourney", Prompt: "a cat"}, c)

	_, err = New(nil, rand.NewSource(1)).Randomize(context.Background())
	assert.ErrorIs(t, err, ErrNoPrompts)
}

func TestLoadSet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"id": 1, "prompt": "A red apple on a table"},
		{"id": "b-2", "prompt": "A pear"}
	]`), 0o600))

	set, err := LoadSet(path)
	require.NoError(t, err)
	require.Len(t, set, 2)

	e, ok := set.Find("1")
	require.True(t, ok)
	assert.Equal(t, "A red apple on a table", e.Prompt)
	e, ok = set.Find("b-2")
	require.True(t, ok)
	assert.Equal(t, "A pear", e.Prompt)
	_, ok = set.Find("3")
	assert.False(t, ok)

	require.NoError(t, os.WriteFile(path, []byte(`[{"id": true, "prompt": "x"}]`), 0o600))
	_, err = LoadSet(path)
	assert.Error(t, err)
}
