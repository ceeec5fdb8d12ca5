package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/jask/pyramidview/internal/database/repository"
)

// ErrUnknownSource is matched by UnknownSourceError.
var ErrUnknownSource = errors.New("unknown source")

// UnknownSourceError names a source missing from the catalog and the closest
// known name, if any.
type UnknownSourceError struct {
	Name       string
	Suggestion string
}

func (e *UnknownSourceError) Error() string {
	if e.Suggestion == "" {
		return fmt.Sprintf("unknown source %q", e.Name)
	}
	return fmt.Sprintf("unknown source %q (did you mean %q?)", e.Name, e.Suggestion)
}

func (e *UnknownSourceError) Is(target error) bool { return target == ErrUnknownSource }

// Catalog resolves source names against the sources table.
type Catalog struct {
	Sources *repository.SourceRepo
}

// Lookup returns the named source.
func (c *Catalog) Lookup(ctx context.Context, name string) (repository.Source, error) {
	s, err := c.Sources.Get(ctx, name)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return repository.Source{}, fmt.Errorf("lookup %q: %w", name, err)
	}
	names, listErr := c.Names(ctx)
	if listErr != nil {
		return repository.Source{}, fmt.Errorf("lookup %q: %w", name, listErr)
	}
	return repository.Source{}, &UnknownSourceError{Name: name, Suggestion: closest(name, names)}
}

// Names lists every catalog source name in order.
func (c *Catalog) Names(ctx context.Context) ([]string, error) {
	all, err := c.Sources.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(all))
	for i, s := range all {
		out[i] = s.Name
	}
	return out, nil
}

// closest returns the candidate nearest to name, or "" when nothing is
// within half of the longer string.
func closest(name string, candidates []string) string {
	best, bestScore := "", 1.0
	for _, c := range candidates {
		dist := levenshtein.ComputeDistance(strings.ToLower(name), strings.ToLower(c))
		score := float64(dist) / float64(max(len(name), len(c), 1))
		if score < bestScore {
			best, bestScore = c, score
		}
	}
	if bestScore > 0.5 {
		return ""
	}
	return best
}
