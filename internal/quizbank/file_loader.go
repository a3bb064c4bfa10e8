package quizbank

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"couple-quiz-service/internal/domain"
)

// Loader fetches the bank document from a backing store.
type Loader interface {
	LoadBank(ctx context.Context) (domain.Bank, error)
}

// FileLoader reads the bank JSON from disk on every load, so edits to
// the bank file show up without a restart (caching is the repository
// layer's job).
type FileLoader struct {
	path string
}

func NewFileLoader(path string) *FileLoader {
	return &FileLoader{path: path}
}

func (l *FileLoader) LoadBank(_ context.Context) (domain.Bank, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return domain.Bank{}, fmt.Errorf("read quiz bank: %w", err)
	}
	var bank domain.Bank
	if err := json.Unmarshal(data, &bank); err != nil {
		return domain.Bank{}, fmt.Errorf("decode quiz bank: %w", err)
	}
	return bank, nil
}
