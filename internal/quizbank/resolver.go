// Package quizbank resolves a requested calendar day against the
// sparse bank of published quiz days and normalizes question lists.
package quizbank

import (
	"fmt"
	"sort"

	"couple-quiz-service/internal/domain"
)

// PickEffectiveDay selects the bank day to display for requestedKey.
// Exact match wins; outside the published range the request clamps to
// the nearest edge; inside a gap the most recent prior day is used so
// repeated calls on the same date stay stable. Returns false only when
// the bank holds no day entries at all.
func PickEffectiveDay(bank domain.Bank, requestedKey string) (string, bool) {
	if len(bank.Days) == 0 {
		return "", false
	}

	keys := make([]string, 0, len(bank.Days))
	for key, questions := range bank.Days {
		if questions == nil {
			continue
		}
		keys = append(keys, key)
	}
	if len(keys) == 0 {
		return "", false
	}

	if _, ok := bank.Days[requestedKey]; ok && bank.Days[requestedKey] != nil {
		return requestedKey, true
	}

	// YYYY-MM-DD sorts lexicographically in date order.
	sort.Strings(keys)
	minKey := keys[0]
	maxKey := keys[len(keys)-1]

	if requestedKey < minKey {
		return minKey, true
	}
	if requestedKey > maxKey {
		return maxKey, true
	}

	for i := len(keys) - 1; i >= 0; i-- {
		if keys[i] < requestedKey {
			return keys[i], true
		}
	}
	return minKey, true
}

// NormalizeDay returns dayKey's questions with malformed entries
// dropped: empty text or an answer outside the couple's two roles
// never reaches the progress engine. Questions without an id get a
// synthesized dayKey:index id; original order is preserved.
func NormalizeDay(bank domain.Bank, dayKey string, pair domain.RolePair) []domain.Question {
	raw := bank.Days[dayKey]
	out := make([]domain.Question, 0, len(raw))
	for idx, q := range raw {
		if q.Text == "" {
			continue
		}
		if !pair.Contains(q.Answer) {
			continue
		}
		if q.ID == "" {
			q.ID = fmt.Sprintf("%s:%d", dayKey, idx)
		}
		out = append(out, q)
	}
	return out
}
