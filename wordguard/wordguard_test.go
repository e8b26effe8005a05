package wordguard

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScan(t *testing.T) {
	assert := assert.New(t)

	words := []string{"buy now", "casino", ""}

	w, ok := Scan("totally normal message", words)
	assert.False(ok)
	assert.Empty(w)

	w, ok = Scan("visit our casino tonight", words)
	assert.True(ok)
	assert.Equal("casino", w)

	// first word in list order wins
	w, ok = Scan("casino, buy now!", words)
	assert.True(ok)
	assert.Equal("buy now", w)

	_, ok = Scan("anything", nil)
	assert.False(ok)
}

func TestLoadLexicon(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	p := filepath.Join(t.TempDir(), "lexicon.json")
	require.NoError(os.WriteFile(p, []byte(`{"words": ["one", "two"]}`), 0644))

	lex, err := LoadLexicon(p)
	require.NoError(err)
	assert.Equal([]string{"one", "two"}, lex.Words)

	_, err = LoadLexicon(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(err)
}
