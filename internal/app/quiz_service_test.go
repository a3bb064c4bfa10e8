package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"couple-quiz-service/internal/app"
	"couple-quiz-service/internal/calendar"
	"couple-quiz-service/internal/domain"
	"couple-quiz-service/internal/infra/memory"
)

var (
	testCouple = app.CoupleConfig{
		CoupleID:       "c1",
		Pair:           domain.RolePair{A: "james", B: "jess"},
		Timezone:       "America/Los_Angeles",
		Start:          calendar.Date{Year: 2025, Month: 10, Day: 30},
		AnniversaryDay: 30,
		DailyQuestions: 3,
	}
	james = domain.Identity{UserID: "u-james", CoupleID: "c1", Role: "james", DisplayName: "James"}
	day   = calendar.Date{Year: 2025, Month: 1, Day: 5}
)

func testBank() domain.Bank {
	return domain.Bank{Days: map[string][]domain.Question{
		"2025-01-05": {
			{Text: "omg did you see that", Answer: "jess"},
			{Text: "lol no", Answer: "james"},
			{Text: "miss you", Answer: "jess"},
		},
	}}
}

func newTestService(store app.AnswerStore) *app.QuizService {
	banks := memory.NewBankCache(memory.NewStaticBankLoader(testBank()), time.Minute)
	return app.NewQuizService(store, banks, testCouple)
}

func waitForRecords(t *testing.T, store app.AnswerStore, coupleID string, want int) []domain.AnswerRecord {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		records, err := store.FetchAllAnswers(context.Background(), coupleID)
		if err != nil {
			t.Fatalf("fetch all: %v", err)
		}
		if len(records) == want {
			return records
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected %d records, got %d", want, len(records))
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestStartDayAndSubmit(t *testing.T) {
	ctx := context.Background()
	store := memory.NewAnswerStore()
	service := newTestService(store)

	session, err := service.StartDay(ctx, james, day)
	if err != nil {
		t.Fatalf("start day: %v", err)
	}
	if state, _ := session.State(); state != app.SessionReady {
		t.Fatalf("expected ready session, got %v", state)
	}
	if session.DayKey() != "2025-01-05" {
		t.Fatalf("expected exact day match, got %s", session.DayKey())
	}
	if len(session.Questions()) != 3 {
		t.Fatalf("expected 3 questions, got %d", len(session.Questions()))
	}
	if session.CurrentIndex() != 0 {
		t.Fatalf("expected index 0, got %d", session.CurrentIndex())
	}

	result, err := session.SubmitAnswer(ctx, "jess")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !result.Correct || result.Answer != "jess" {
		t.Fatalf("expected correct guess, got %+v", result)
	}

	records := waitForRecords(t, store, "c1", 1)
	if records[0].QuestionID != "2025-01-05:0" || records[0].UserID != "u-james" || !records[0].Correct {
		t.Fatalf("unexpected persisted record %+v", records[0])
	}
}

func TestSubmitIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := memory.NewAnswerStore()
	service := newTestService(store)

	session, err := service.StartDay(ctx, james, day)
	if err != nil {
		t.Fatalf("start day: %v", err)
	}

	first, err := session.SubmitAnswer(ctx, "james") // wrong: answer is jess
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if first.Correct {
		t.Fatalf("expected wrong guess")
	}

	// Second submit for the same question must be a no-op, even with a
	// different (would-be correct) guess.
	second, err := session.SubmitAnswer(ctx, "jess")
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if second.Correct {
		t.Fatalf("expected resubmission to keep first outcome")
	}

	records := waitForRecords(t, store, "c1", 1)
	if records[0].Guess != "james" || records[0].Correct {
		t.Fatalf("expected stored record to keep first guess, got %+v", records[0])
	}
}

func TestAdvanceSkipsAnswered(t *testing.T) {
	ctx := context.Background()
	service := newTestService(memory.NewAnswerStore())

	session, err := service.StartDay(ctx, james, day)
	if err != nil {
		t.Fatalf("start day: %v", err)
	}

	if _, err := session.SubmitAnswer(ctx, "jess"); err != nil {
		t.Fatalf("submit q0: %v", err)
	}
	if idx := session.Advance(); idx != 1 {
		t.Fatalf("expected advance to 1, got %d", idx)
	}
	if _, err := session.SubmitAnswer(ctx, "james"); err != nil {
		t.Fatalf("submit q1: %v", err)
	}
	// Next unanswered is q2; q0 and q1 are skipped.
	if idx := session.Advance(); idx != 2 {
		t.Fatalf("expected advance to 2, got %d", idx)
	}
	if _, err := session.SubmitAnswer(ctx, "jess"); err != nil {
		t.Fatalf("submit q2: %v", err)
	}
	// Fully answered: advance still wraps one step.
	if idx := session.Advance(); idx != 0 {
		t.Fatalf("expected wrap to 0, got %d", idx)
	}
}

func TestStartDayResumesAtFirstUnanswered(t *testing.T) {
	ctx := context.Background()
	store := memory.NewAnswerStore()
	service := newTestService(store)

	_ = store.UpsertAnswer(ctx, domain.AnswerRecord{
		CoupleID: "c1", DayKey: "2025-01-05", QuestionID: "2025-01-05:0",
		UserID: "u-james", Guess: "jess", Correct: true, AnsweredAt: time.Now(),
	})

	session, err := service.StartDay(ctx, james, day)
	if err != nil {
		t.Fatalf("start day: %v", err)
	}
	if session.CurrentIndex() != 1 {
		t.Fatalf("expected resume at first unanswered (1), got %d", session.CurrentIndex())
	}
	if len(session.Progress()) != 1 {
		t.Fatalf("expected one loaded answer, got %d", len(session.Progress()))
	}
}

func TestStartDayRejectsUnknownRole(t *testing.T) {
	service := newTestService(memory.NewAnswerStore())
	stranger := domain.Identity{UserID: "u3", CoupleID: "c1", Role: "dana"}
	if _, err := service.StartDay(context.Background(), stranger, day); !errors.Is(err, domain.ErrUnknownRole) {
		t.Fatalf("expected ErrUnknownRole, got %v", err)
	}
}

func TestBankFailureDegradesToErrorState(t *testing.T) {
	store := memory.NewAnswerStore()
	banks := memory.NewBankCache(memory.NewStaticBankLoader(domain.Bank{}), time.Minute)
	service := app.NewQuizService(store, banks, testCouple)

	session, err := service.StartDay(context.Background(), james, day)
	if err != nil {
		t.Fatalf("start day should not fail outright: %v", err)
	}
	state, reason := session.State()
	if state != app.SessionError || reason == "" {
		t.Fatalf("expected error state with reason, got %v %q", state, reason)
	}
	if _, err := session.SubmitAnswer(context.Background(), "jess"); !errors.Is(err, domain.ErrNoQuestion) {
		t.Fatalf("expected ErrNoQuestion on degraded session, got %v", err)
	}
}

func TestEmptyDayDistinctFromFetchError(t *testing.T) {
	store := memory.NewAnswerStore()
	// Bank loads fine but has no usable day entries.
	empty := domain.Bank{Days: map[string][]domain.Question{
		"2025-01-05": {{Text: "who?", Answer: "dana"}},
	}}
	banks := memory.NewBankCache(memory.NewStaticBankLoader(empty), time.Minute)
	service := app.NewQuizService(store, banks, testCouple)

	session, err := service.StartDay(context.Background(), james, day)
	if err != nil {
		t.Fatalf("start day: %v", err)
	}
	if state, _ := session.State(); state != app.SessionEmpty {
		t.Fatalf("expected empty state, got %v", state)
	}
}

func TestPersistFailureKeepsLocalState(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{AnswerStore: memory.NewAnswerStore()}
	service := newTestService(store)

	session, err := service.StartDay(ctx, james, day)
	if err != nil {
		t.Fatalf("start day: %v", err)
	}
	result, err := session.SubmitAnswer(ctx, "jess")
	if err != nil {
		t.Fatalf("submit should not surface persistence failure: %v", err)
	}
	if !result.Correct {
		t.Fatalf("expected correct result")
	}
	// Local progress retained as provisional truth.
	if len(session.Progress()) != 1 {
		t.Fatalf("expected local answer retained")
	}
}

func TestReconcileRemoteWins(t *testing.T) {
	ctx := context.Background()
	store := memory.NewAnswerStore()
	service := newTestService(store)

	session, err := service.StartDay(ctx, james, day)
	if err != nil {
		t.Fatalf("start day: %v", err)
	}
	if _, err := session.SubmitAnswer(ctx, "james"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	waitForRecords(t, store, "c1", 1)

	// A durable write from another device flips the stored row.
	_ = store.UpsertAnswer(ctx, domain.AnswerRecord{
		CoupleID: "c1", DayKey: "2025-01-05", QuestionID: "2025-01-05:0",
		UserID: "u-james", Guess: "jess", Correct: true, AnsweredAt: time.Now(),
	})

	ev := domain.ChangeEvent{DayKey: "2025-01-05", UserID: "u-james"}
	if !session.Relevant(ev) {
		t.Fatalf("expected event to be relevant")
	}
	if session.Relevant(domain.ChangeEvent{DayKey: "2025-01-05", UserID: "someone-else"}) {
		t.Fatalf("partner rows must not trigger own-day reconcile")
	}

	if err := session.Reconcile(ctx); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	got := session.Progress()["2025-01-05:0"]
	if got.Guess != "jess" || !got.Correct {
		t.Fatalf("expected remote to win, got %+v", got)
	}
}

type failingStore struct {
	*memory.AnswerStore
}

func (s *failingStore) UpsertAnswer(context.Context, domain.AnswerRecord) error {
	return errors.New("store offline")
}
