package content

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tweet-quiz-service/internal/domain"
)

func TestDefaultItemsAreValid(t *testing.T) {
	items := Default()
	require.Len(t, items, 20)

	target, other := 0, 0
	for _, item := range items {
		require.NoError(t, item.Validate())
		if item.AttributedToTarget {
			target++
		} else {
			other++
		}
	}
	assert.Equal(t, 10, target)
	assert.Equal(t, 10, other)
}

func TestParseRejectsItemWithoutAuthor(t *testing.T) {
	_, err := Parse([]byte(`- text: "Eggs are just boneless chickens"
  attributed_to_target: false
  date: "Aug 30, 2018"
`))
	assert.ErrorIs(t, err, domain.ErrInvalidItem)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "items.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`- text: "I'm nice at ping pong"
  attributed_to_target: true
  date: "Nov 21, 2010"
`), 0o600))

	items, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.True(t, items[0].AttributedToTarget)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestStaticLoaderReturnsCopy(t *testing.T) {
	loader := NewStaticLoader([]domain.QuizItem{{Text: "a", AttributedToTarget: true}})
	items, err := loader.LoadItems(context.Background())
	require.NoError(t, err)
	items[0].Text = "changed"

	again, _ := loader.LoadItems(context.Background())
	assert.Equal(t, "a", again[0].Text)
}
