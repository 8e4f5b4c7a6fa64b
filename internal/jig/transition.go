package jig

import (
	"errors"
	"fmt"

	"github.com/matthewbaird/jigtrack/internal/schema"
)

// ErrStateConflict is returned when an operation does not apply to the
// fixture's current use status. Nothing is written.
var ErrStateConflict = errors.New("state conflict")

// statusTransitions lists the use statuses reachable from each status.
// ERROR and TO_BE_SCRAPPED are only left through an edit.
var statusTransitions = map[string][]string{
	schema.StatusUnused:       {schema.StatusInUse},
	schema.StatusInUse:        {schema.StatusUnused},
	schema.StatusError:        {},
	schema.StatusToBeScrapped: {},
}

// ValidateTransition checks whether transitioning from current to target is
// allowed according to the given transition map. It returns nil if the
// transition is valid, or an error wrapping ErrStateConflict otherwise.
func ValidateTransition(transitions map[string][]string, current, target string) error {
	allowed, ok := transitions[current]
	if !ok {
		return fmt.Errorf("%w: unknown current state %q", ErrStateConflict, current)
	}
	for _, s := range allowed {
		if s == target {
			return nil
		}
	}
	return fmt.Errorf("%w: transition from %q to %q is not allowed", ErrStateConflict, current, target)
}
