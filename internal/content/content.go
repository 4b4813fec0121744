// Package content holds the read-only quiz item sets.
package content

import (
	"context"
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"tweet-quiz-service/internal/domain"
)

//go:embed items.yaml
var defaultItems []byte

// Default returns the built-in item set.
func Default() []domain.QuizItem {
	items, err := Parse(defaultItems)
	if err != nil {
		panic(fmt.Sprintf("content: embedded items: %v", err))
	}
	return items
}

// Parse decodes a YAML list of items and validates each one.
func Parse(data []byte) ([]domain.QuizItem, error) {
	var items []domain.QuizItem
	if err := yaml.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("content: decode items: %w", err)
	}
	for i, item := range items {
		if err := item.Validate(); err != nil {
			return nil, fmt.Errorf("content: item %d: %w", i, err)
		}
	}
	return items, nil
}

// LoadFile reads an item set from a YAML file.
func LoadFile(path string) ([]domain.QuizItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("content: %w", err)
	}
	return Parse(data)
}

// StaticLoader serves a fixed item set (embedded, file-based, or test data).
type StaticLoader struct {
	items []domain.QuizItem
}

func NewStaticLoader(items []domain.QuizItem) *StaticLoader {
	return &StaticLoader{items: items}
}

func (l *StaticLoader) LoadItems(_ context.Context) ([]domain.QuizItem, error) {
	out := make([]domain.QuizItem, len(l.items))
	copy(out, l.items)
	return out, nil
}
