package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"couple-quiz-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// AnswerStore keeps answer rows in Redis:
//
//	HSET answers:{couple}:{day}:{user} {questionID} {json}
//	SADD answers:{couple}:index        {day}|{user}
//
// and publishes change events on answers:{couple}:events so every
// connected device can re-fetch. The hash field acts as the
// (couple, day, question, user) primary key, which makes concurrent
// writes from the two partners disjoint and resubmissions last-write-wins.
type AnswerStore struct {
	client *redis.Client
}

func NewAnswerStore(client *redis.Client) *AnswerStore {
	return &AnswerStore{client: client}
}

type storedAnswer struct {
	Guess   domain.Role `json:"guess"`
	Correct bool        `json:"correct"`
	At      time.Time   `json:"at"`
}

func (s *AnswerStore) UpsertAnswer(ctx context.Context, record domain.AnswerRecord) error {
	payload, err := json.Marshal(storedAnswer{Guess: record.Guess, Correct: record.Correct, At: record.AnsweredAt})
	if err != nil {
		return fmt.Errorf("encode answer: %w", err)
	}
	event, err := json.Marshal(domain.ChangeEvent{DayKey: record.DayKey, UserID: record.UserID})
	if err != nil {
		return fmt.Errorf("encode change event: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.HSet(ctx, s.answersKey(record.CoupleID, record.DayKey, record.UserID), record.QuestionID, payload)
	pipe.SAdd(ctx, s.indexKey(record.CoupleID), record.DayKey+"|"+record.UserID)
	pipe.Publish(ctx, s.eventsKey(record.CoupleID), event)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("upsert answer: %w", err)
	}
	return nil
}

func (s *AnswerStore) FetchAnswers(ctx context.Context, coupleID, dayKey, userID string) (map[string]domain.Answer, error) {
	fields, err := s.client.HGetAll(ctx, s.answersKey(coupleID, dayKey, userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("fetch answers: %w", err)
	}
	out := make(map[string]domain.Answer, len(fields))
	for questionID, raw := range fields {
		var stored storedAnswer
		if err := json.Unmarshal([]byte(raw), &stored); err != nil {
			continue
		}
		out[questionID] = domain.Answer{Guess: stored.Guess, Correct: stored.Correct, At: stored.At}
	}
	return out, nil
}

func (s *AnswerStore) FetchAllAnswers(ctx context.Context, coupleID string) ([]domain.AnswerRecord, error) {
	members, err := s.client.SMembers(ctx, s.indexKey(coupleID)).Result()
	if err != nil {
		return nil, fmt.Errorf("fetch answer index: %w", err)
	}

	var out []domain.AnswerRecord
	for _, member := range members {
		dayKey, userID, ok := strings.Cut(member, "|")
		if !ok {
			continue
		}
		answers, err := s.FetchAnswers(ctx, coupleID, dayKey, userID)
		if err != nil {
			return nil, err
		}
		for questionID, a := range answers {
			out = append(out, domain.AnswerRecord{
				CoupleID:   coupleID,
				DayKey:     dayKey,
				QuestionID: questionID,
				UserID:     userID,
				Guess:      a.Guess,
				Correct:    a.Correct,
				AnsweredAt: a.At,
			})
		}
	}
	return out, nil
}

func (s *AnswerStore) Subscribe(ctx context.Context, coupleID string) (<-chan domain.ChangeEvent, func(), error) {
	pubsub := s.client.Subscribe(ctx, s.eventsKey(coupleID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, fmt.Errorf("subscribe changes: %w", err)
	}

	out := make(chan domain.ChangeEvent, 8)
	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			var ev domain.ChangeEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				continue
			}
			out <- ev
		}
	}()

	cancel := func() {
		_ = pubsub.Close()
	}
	return out, cancel, nil
}

func (s *AnswerStore) answersKey(coupleID, dayKey, userID string) string {
	return "answers:" + coupleID + ":" + dayKey + ":" + userID
}

func (s *AnswerStore) indexKey(coupleID string) string {
	return "answers:" + coupleID + ":index"
}

func (s *AnswerStore) eventsKey(coupleID string) string {
	return "answers:" + coupleID + ":events"
}
