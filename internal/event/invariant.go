// ABOUTME: Assertion helpers for producer-side invariants the decoder does not enforce
// ABOUTME: Budget accounting identity, truncation bookkeeping, and todo dependency ordering

package event

import (
	"errors"
	"fmt"
)

var (
	// ErrTruncationWithoutSegments flags truncation reported with nothing removed.
	ErrTruncationWithoutSegments = errors.New("truncation occurred but no segments removed")
	// ErrBudgetAccounting flags a total that is not the sum of its parts.
	ErrBudgetAccounting = errors.New("total tokens do not match system + summary + window")
	// ErrUnmetDependency flags an in-progress item whose dependencies are not completed.
	ErrUnmetDependency = errors.New("item in progress with unmet dependencies")
)

// CheckBudget returns every invariant violated by u, or nil.
// Values are reported as received; nothing is corrected.
func CheckBudget(u BudgetUsage) error {
	var errs []error
	if u.TruncationOccurred && u.SegmentsRemoved <= 0 {
		errs = append(errs, fmt.Errorf("%w (segments_removed=%d)", ErrTruncationWithoutSegments, u.SegmentsRemoved))
	}
	if sum := u.SystemTokens + u.SummaryTokens + u.WindowTokens; sum != u.TotalTokens {
		errs = append(errs, fmt.Errorf("%w (total=%d, sum=%d)", ErrBudgetAccounting, u.TotalTokens, sum))
	}
	return errors.Join(errs...)
}

// CheckTodoDependencies reports in-progress items whose dependsOn entries are
// not all completed. Producers should never emit such a list; the client only
// surfaces it.
func CheckTodoDependencies(list TodoList) error {
	status := make(map[string]TodoStatus, len(list.Items))
	for _, it := range list.Items {
		status[it.ID] = it.Status
	}

	var errs []error
	for _, it := range list.Items {
		if it.Status != TodoInProgress {
			continue
		}
		for _, dep := range it.DependsOn {
			if status[dep] != TodoCompleted {
				errs = append(errs, fmt.Errorf("%w: %s waits on %s", ErrUnmetDependency, it.ID, dep))
			}
		}
	}
	return errors.Join(errs...)
}
