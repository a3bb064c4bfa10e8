package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"couple-quiz-service/internal/domain"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
)

// notifyChannel matches the trigger installed by the migrations.
const notifyChannel = "quiz_answers_changed"

// AnswerStore persists answer rows in Postgres. The table's composite
// primary key (couple_id, day_key, question_id, user_id) carries the
// upsert semantics; a trigger NOTIFYs on every insert/update so other
// devices can re-fetch.
type AnswerStore struct {
	db *bun.DB
}

func NewAnswerStore(db *bun.DB) *AnswerStore {
	return &AnswerStore{db: db}
}

type answerRow struct {
	bun.BaseModel `bun:"table:quiz_answers"`

	CoupleID   string    `bun:"couple_id,pk"`
	DayKey     string    `bun:"day_key,pk"`
	QuestionID string    `bun:"question_id,pk"`
	UserID     string    `bun:"user_id,pk"`
	Guess      string    `bun:"guess"`
	Correct    bool      `bun:"correct"`
	AnsweredAt time.Time `bun:"answered_at"`
}

func (s *AnswerStore) UpsertAnswer(ctx context.Context, record domain.AnswerRecord) error {
	row := answerRow{
		CoupleID:   record.CoupleID,
		DayKey:     record.DayKey,
		QuestionID: record.QuestionID,
		UserID:     record.UserID,
		Guess:      string(record.Guess),
		Correct:    record.Correct,
		AnsweredAt: record.AnsweredAt,
	}
	_, err := s.db.NewInsert().
		Model(&row).
		On("CONFLICT (couple_id, day_key, question_id, user_id) DO UPDATE").
		Set("guess = EXCLUDED.guess").
		Set("correct = EXCLUDED.correct").
		Set("answered_at = EXCLUDED.answered_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert answer: %w", err)
	}
	return nil
}

func (s *AnswerStore) FetchAnswers(ctx context.Context, coupleID, dayKey, userID string) (map[string]domain.Answer, error) {
	var rows []answerRow
	err := s.db.NewSelect().
		Model(&rows).
		Where("couple_id = ?", coupleID).
		Where("day_key = ?", dayKey).
		Where("user_id = ?", userID).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch answers: %w", err)
	}

	out := make(map[string]domain.Answer, len(rows))
	for _, row := range rows {
		out[row.QuestionID] = domain.Answer{
			Guess:   domain.Role(row.Guess),
			Correct: row.Correct,
			At:      row.AnsweredAt,
		}
	}
	return out, nil
}

func (s *AnswerStore) FetchAllAnswers(ctx context.Context, coupleID string) ([]domain.AnswerRecord, error) {
	var rows []answerRow
	err := s.db.NewSelect().
		Model(&rows).
		Where("couple_id = ?", coupleID).
		Order("day_key", "question_id", "user_id").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch all answers: %w", err)
	}

	out := make([]domain.AnswerRecord, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.AnswerRecord{
			CoupleID:   row.CoupleID,
			DayKey:     row.DayKey,
			QuestionID: row.QuestionID,
			UserID:     row.UserID,
			Guess:      domain.Role(row.Guess),
			Correct:    row.Correct,
			AnsweredAt: row.AnsweredAt,
		})
	}
	return out, nil
}

// notifyPayload is what the trigger serializes into pg_notify.
type notifyPayload struct {
	CoupleID string `json:"coupleId"`
	DayKey   string `json:"dayKey"`
	UserID   string `json:"userId"`
}

// Subscribe LISTENs on the shared notify channel and filters events
// down to the requested couple.
func (s *AnswerStore) Subscribe(ctx context.Context, coupleID string) (<-chan domain.ChangeEvent, func(), error) {
	ln := pgdriver.NewListener(s.db)
	if err := ln.Listen(ctx, notifyChannel); err != nil {
		return nil, nil, fmt.Errorf("listen %s: %w", notifyChannel, err)
	}

	out := make(chan domain.ChangeEvent, 8)
	go func() {
		defer close(out)
		for notif := range ln.Channel() {
			var payload notifyPayload
			if err := json.Unmarshal([]byte(notif.Payload), &payload); err != nil {
				log.Printf("bad notify payload %q: %v", notif.Payload, err)
				continue
			}
			if payload.CoupleID != coupleID {
				continue
			}
			out <- domain.ChangeEvent{DayKey: payload.DayKey, UserID: payload.UserID}
		}
	}()

	cancel := func() {
		_ = ln.Close()
	}
	return out, cancel, nil
}
