package worklist

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
)

// FileSource reads tickers from a local CSV file.
type FileSource struct {
	path   string
	column string
	logger *zap.Logger
}

// NewFileSource builds a source for the CSV at path.
func NewFileSource(path, column string, logger *zap.Logger) *FileSource {
	return &FileSource{path: path, column: column, logger: logger}
}

// Read parses the file and returns its tickers in order.
func (s *FileSource) Read(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open worklist %s: %w", s.path, err)
	}
	defer f.Close() //nolint:errcheck // read-only handle

	tickers, err := ParseTickers(f, s.column)
	if err != nil {
		return nil, fmt.Errorf("parse worklist %s: %w", s.path, err)
	}
	s.logger.Info("worklist loaded",
		zap.String("source", s.path),
		zap.Int("tickers", len(tickers)),
	)
	return tickers, nil
}
