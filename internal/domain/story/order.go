package story

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrReorderDuplicate = errors.New("ordered ids contain a duplicate")
	ErrReorderForeign   = errors.New("ordered ids contain a block outside the project")
	ErrReorderMissing   = errors.New("ordered ids omit a block of the project")
)

// NextBlockOrder is the order an appended block receives: one past the current
// maximum, or 0 for an empty project.
func NextBlockOrder(existing []int) int {
	if len(existing) == 0 {
		return 0
	}
	max := existing[0]
	for _, o := range existing[1:] {
		if o > max {
			max = o
		}
	}
	return max + 1
}

// ValidateReorder checks that ordered is a permutation of existing.
func ValidateReorder(existing, ordered []uuid.UUID) error {
	known := make(map[uuid.UUID]struct{}, len(existing))
	for _, id := range existing {
		known[id] = struct{}{}
	}
	seen := make(map[uuid.UUID]struct{}, len(ordered))
	for _, id := range ordered {
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: %s", ErrReorderDuplicate, id)
		}
		seen[id] = struct{}{}
		if _, ok := known[id]; !ok {
			return fmt.Errorf("%w: %s", ErrReorderForeign, id)
		}
	}
	for _, id := range existing {
		if _, ok := seen[id]; !ok {
			return fmt.Errorf("%w: %s", ErrReorderMissing, id)
		}
	}
	return nil
}

// IsReorderError reports whether err came from ValidateReorder.
func IsReorderError(err error) bool {
	return errors.Is(err, ErrReorderDuplicate) ||
		errors.Is(err, ErrReorderForeign) ||
		errors.Is(err, ErrReorderMissing)
}
