package attempt

import (
	"sort"

	"github.com/sells-group/prospector/internal/model"
)

// DeriveStatus folds a target's attempt history into its current retry
// state. Pure: every store implementation shares it so that status means
// the same thing regardless of backend.
//
//   - SuccessfulPasses is the union of successes across all attempts.
//     Success is monotonic: once a pass has succeeded it stays succeeded.
//   - FailedPasses are the most recent attempt's failures not superseded
//     by any accumulated success.
//   - NextRetryPasses = FailedPasses plus every known pass id that no
//     historical attempt has ever touched.
//
// Returns nil for an empty history.
func DeriveStatus(history []model.ProcessingAttempt, knownPassIDs []int) *model.AttemptStatus {
	if len(history) == 0 {
		return nil
	}

	succeeded := make(map[int]struct{})
	attempted := make(map[int]struct{})
	latest := history[0]
	for _, a := range history {
		if a.AttemptedAt.After(latest.AttemptedAt) {
			latest = a
		}
		for _, id := range a.SuccessfulPasses {
			succeeded[id] = struct{}{}
		}
		for _, pr := range a.PassResults {
			// Skipped (early-stop) passes still count as seen: they are
			// re-run by a forced full run, not charged to the retry set.
			attempted[pr.PassID] = struct{}{}
		}
	}

	var failed []int
	for _, id := range latest.FailedPasses {
		if _, ok := succeeded[id]; !ok {
			failed = append(failed, id)
		}
	}

	retrySet := make(map[int]struct{}, len(failed))
	for _, id := range failed {
		retrySet[id] = struct{}{}
	}
	for _, id := range knownPassIDs {
		if _, ok := succeeded[id]; ok {
			continue
		}
		if _, ok := attempted[id]; ok {
			continue
		}
		retrySet[id] = struct{}{}
	}

	return &model.AttemptStatus{
		TargetKey:        latest.TargetKey,
		TotalAttempts:    len(history),
		LastAttemptAt:    latest.AttemptedAt,
		SuccessfulPasses: sortedKeys(succeeded),
		FailedPasses:     sortedInts(failed),
		NextRetryPasses:  sortedKeys(retrySet),
	}
}

func sortedKeys(set map[int]struct{}) []int {
	out := make([]int, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

func sortedInts(ids []int) []int {
	out := make([]int, len(ids))
	copy(out, ids)
	sort.Ints(out)
	return out
}
