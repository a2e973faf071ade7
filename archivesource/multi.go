package archivesource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// MultiSource aggregates several archive sources for redundancy. Fetch
// returns the payload from the first source that has it; later sources are
// only consulted when earlier ones fail.
type MultiSource struct {
	sources []Source
	log     *slog.Logger
}

// NewMultiSource creates a redundant source over the given list, consulted
// in order.
func NewMultiSource(sources []Source, log *slog.Logger) *MultiSource {
	return &MultiSource{sources: sources, log: log}
}

// Fetch tries each source in order and returns the first payload found.
// Returns ErrArchiveNotFound when no source has the payload.
func (m *MultiSource) Fetch(ctx context.Context) ([]byte, error) {
	var errs []error
	for _, source := range m.sources {
		data, err := source.Fetch(ctx)
		if err == nil {
			return data, nil
		}

		m.log.Debug("Archive source failed, trying next",
			slog.String("source", source.Name()),
			"err", err)
		if !errors.Is(err, ErrArchiveNotFound) {
			errs = append(errs, fmt.Errorf("%s: %w", source.Name(), err))
		}
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrArchiveNotFound, errors.Join(errs...))
	}
	return nil, ErrArchiveNotFound
}

// Available reports true if any underlying source is available.
func (m *MultiSource) Available(ctx context.Context) bool {
	for _, source := range m.sources {
		if source.Available(ctx) {
			return true
		}
	}
	return false
}

// Name returns a composite identifier listing the underlying sources.
func (m *MultiSource) Name() string {
	names := make([]string, 0, len(m.sources))
	for _, source := range m.sources {
		names = append(names, source.Name())
	}
	return "multi[" + strings.Join(names, ",") + "]"
}
