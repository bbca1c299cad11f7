package migrate

import (
	"context"
	"errors"
	"fmt"

	"github.com/baderkha/table-transfer/pkg/migrate/config"
)

// ErrInvalidMapping : the table mapping cannot be run at all
var ErrInvalidMapping = errors.New("invalid table mapping")

// Runner : runs migration between a source and a target
type Runner interface {
	Run(ctx context.Context, mapping TableMapping) (*Report, error) // fresh run
	Recover(ctx context.Context, runID string) (*Report, error)    // re-runs the pairs a previous run did not complete
}

// Pair : one source -> destination entry
type Pair = config.TablePair

// TableMapping : pairs in the order they are migrated
type TableMapping []Pair

// Validate : every pair needs both names
func (tm TableMapping) Validate() error {
	if len(tm) == 0 {
		return fmt.Errorf("%w : no table pairs", ErrInvalidMapping)
	}
	for i, p := range tm {
		if p.Source == "" || p.Destination == "" {
			return fmt.Errorf("%w : pair %d (%q -> %q) needs both tables", ErrInvalidMapping, i, p.Source, p.Destination)
		}
	}
	return nil
}

// DuplicateDestinations : destinations targeted by more than one pair
func (tm TableMapping) DuplicateDestinations() []string {
	var (
		seen = make(map[string]int, len(tm))
		dups []string
	)
	for _, p := range tm {
		seen[p.Destination]++
		if seen[p.Destination] == 2 {
			dups = append(dups, p.Destination)
		}
	}
	return dups
}
