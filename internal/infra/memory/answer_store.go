package memory

import (
	"context"
	"sort"
	"sync"

	"couple-quiz-service/internal/domain"
)

// AnswerStore is an in-memory implementation of app.AnswerStore,
// useful for tests and demo runs. Upserts are keyed exactly like the
// durable backends: (couple, day, question, user).
type AnswerStore struct {
	mu      sync.RWMutex
	records map[string]domain.AnswerRecord
	subs    map[string]map[chan domain.ChangeEvent]struct{}
}

func NewAnswerStore() *AnswerStore {
	return &AnswerStore{
		records: make(map[string]domain.AnswerRecord),
		subs:    make(map[string]map[chan domain.ChangeEvent]struct{}),
	}
}

func recordKey(coupleID, dayKey, questionID, userID string) string {
	return coupleID + "|" + dayKey + "|" + questionID + "|" + userID
}

func (s *AnswerStore) UpsertAnswer(_ context.Context, record domain.AnswerRecord) error {
	key := recordKey(record.CoupleID, record.DayKey, record.QuestionID, record.UserID)

	s.mu.Lock()
	s.records[key] = record
	subs := s.subs[record.CoupleID]
	ev := domain.ChangeEvent{DayKey: record.DayKey, UserID: record.UserID}
	for ch := range subs {
		select {
		case ch <- ev:
		default:
			// Drop the oldest pending event so a slow consumer never
			// blocks writers; consumers re-fetch anyway.
			select {
			case <-ch:
			default:
			}
			ch <- ev
		}
	}
	s.mu.Unlock()
	return nil
}

func (s *AnswerStore) FetchAnswers(_ context.Context, coupleID, dayKey, userID string) (map[string]domain.Answer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]domain.Answer)
	for _, rec := range s.records {
		if rec.CoupleID == coupleID && rec.DayKey == dayKey && rec.UserID == userID {
			out[rec.QuestionID] = domain.Answer{Guess: rec.Guess, Correct: rec.Correct, At: rec.AnsweredAt}
		}
	}
	return out, nil
}

func (s *AnswerStore) FetchAllAnswers(_ context.Context, coupleID string) ([]domain.AnswerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.AnswerRecord, 0, len(s.records))
	for _, rec := range s.records {
		if rec.CoupleID == coupleID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DayKey != out[j].DayKey {
			return out[i].DayKey < out[j].DayKey
		}
		return out[i].QuestionID < out[j].QuestionID
	})
	return out, nil
}

func (s *AnswerStore) Subscribe(_ context.Context, coupleID string) (<-chan domain.ChangeEvent, func(), error) {
	ch := make(chan domain.ChangeEvent, 8)

	s.mu.Lock()
	if s.subs[coupleID] == nil {
		s.subs[coupleID] = make(map[chan domain.ChangeEvent]struct{})
	}
	s.subs[coupleID][ch] = struct{}{}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if subs, ok := s.subs[coupleID]; ok {
			if _, ok := subs[ch]; ok {
				delete(subs, ch)
				close(ch)
			}
		}
		s.mu.Unlock()
	}
	return ch, cancel, nil
}
