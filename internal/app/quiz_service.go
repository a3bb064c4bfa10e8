package app

import (
	"context"
	"log"
	"sync"
	"time"

	"couple-quiz-service/internal/calendar"
	"couple-quiz-service/internal/domain"
	"couple-quiz-service/internal/quizbank"
)

// AnswerStore abstracts answer persistence (in-memory, Redis, Postgres).
type AnswerStore interface {
	FetchAnswers(ctx context.Context, coupleID, dayKey, userID string) (map[string]domain.Answer, error)
	UpsertAnswer(ctx context.Context, record domain.AnswerRecord) error
	FetchAllAnswers(ctx context.Context, coupleID string) ([]domain.AnswerRecord, error)
	// Subscribe delivers coarse change notifications for the couple's
	// answer rows. The caller must invoke the cancel function.
	Subscribe(ctx context.Context, coupleID string) (<-chan domain.ChangeEvent, func(), error)
}

// BankRepository loads the quiz bank (from cache/backing store).
type BankRepository interface {
	GetBank(ctx context.Context) (domain.Bank, error)
}

// CoupleConfig is the static shape of one couple: identity scope,
// the two roles, and the date constants the quiz runs on.
type CoupleConfig struct {
	CoupleID       string
	Pair           domain.RolePair
	DisplayNames   map[domain.Role]string
	Timezone       string
	Start          calendar.Date
	AnniversaryDay int
	DailyQuestions int
}

// QuizService contains the quiz use cases for one couple.
type QuizService struct {
	store  AnswerStore
	banks  BankRepository
	couple CoupleConfig
	clock  func() time.Time
}

func NewQuizService(store AnswerStore, banks BankRepository, couple CoupleConfig) *QuizService {
	return NewQuizServiceWithClock(store, banks, couple, time.Now)
}

// NewQuizServiceWithClock is test-only for deterministic timestamps.
func NewQuizServiceWithClock(store AnswerStore, banks BankRepository, couple CoupleConfig, now func() time.Time) *QuizService {
	if couple.DailyQuestions <= 0 {
		couple.DailyQuestions = 3
	}
	return &QuizService{store: store, banks: banks, couple: couple, clock: now}
}

// Couple exposes the static couple shape to transports.
func (s *QuizService) Couple() CoupleConfig {
	return s.couple
}

// Today resolves the current quiz day in the couple's timezone.
func (s *QuizService) Today() (calendar.Date, error) {
	loc, err := time.LoadLocation(s.couple.Timezone)
	if err != nil {
		return calendar.Date{}, err
	}
	return calendar.DateOf(s.clock(), loc), nil
}

// Stats builds the relationship header for a given day.
func (s *QuizService) Stats(today calendar.Date) domain.DailyStats {
	return BuildDailyStats(s.couple, today)
}

// Scoreboard re-derives the full scoreboard from the latest record
// set. Always a stateless recomputation; no aggregation state is kept
// between calls.
func (s *QuizService) Scoreboard(ctx context.Context, viewer domain.Identity, dayKey string, questions []domain.Question) (domain.Scoreboard, error) {
	records, err := s.store.FetchAllAnswers(ctx, s.couple.CoupleID)
	if err != nil {
		return domain.Scoreboard{}, err
	}
	return BuildScoreboard(records, viewer, s.couple.Pair, dayKey, questions, s.couple.DailyQuestions)
}

// SubscribeChanges relays the store's change feed.
func (s *QuizService) SubscribeChanges(ctx context.Context) (<-chan domain.ChangeEvent, func(), error) {
	return s.store.Subscribe(ctx, s.couple.CoupleID)
}

// SessionState distinguishes a working day session from its two
// degraded shapes: bank fetch failure and an empty bank.
type SessionState string

const (
	SessionReady SessionState = "ready"
	SessionError SessionState = "error"
	SessionEmpty SessionState = "empty"
)

// DaySession tracks one user's progress through one quiz day. All
// mutation goes through the session's lock; per-question answers are
// terminal once set (no take-backs).
type DaySession struct {
	service   *QuizService
	identity  domain.Identity
	requested string
	dayKey    string
	state     SessionState
	reason    string
	questions []domain.Question

	mu       sync.Mutex
	progress map[string]domain.Answer
	current  int
}

// StartDay builds the session for the requested calendar date: picks
// the effective bank day, normalizes its questions, and loads the
// viewer's existing answers. Bank failures degrade to an explicit
// error state rather than failing the call; only an identity outside
// the couple is fatal.
func (s *QuizService) StartDay(ctx context.Context, identity domain.Identity, requested calendar.Date) (*DaySession, error) {
	if !s.couple.Pair.Contains(identity.Role) {
		return nil, domain.ErrUnknownRole
	}

	session := &DaySession{
		service:   s,
		identity:  identity,
		requested: requested.Key(),
		dayKey:    requested.Key(),
		state:     SessionReady,
		progress:  make(map[string]domain.Answer),
	}

	bank, err := s.banks.GetBank(ctx)
	if err != nil {
		log.Printf("quiz bank load failed: %v", err)
		session.state = SessionError
		session.reason = err.Error()
		return session, nil
	}

	dayKey, ok := quizbank.PickEffectiveDay(bank, session.requested)
	if !ok {
		session.state = SessionEmpty
		session.reason = domain.ErrNoEffectiveDay.Error()
		return session, nil
	}
	session.dayKey = dayKey
	session.questions = quizbank.NormalizeDay(bank, dayKey, s.couple.Pair)
	if len(session.questions) == 0 {
		session.state = SessionEmpty
		session.reason = domain.ErrNoEffectiveDay.Error()
		return session, nil
	}

	answers, err := s.store.FetchAnswers(ctx, s.couple.CoupleID, dayKey, identity.UserID)
	if err != nil {
		// Not fatal: start from a blank day; the change feed reconciles later.
		log.Printf("fetch answers for %s/%s failed: %v", dayKey, identity.UserID, err)
		answers = map[string]domain.Answer{}
	}
	session.progress = answers
	session.current = session.firstUnansweredLocked()
	return session, nil
}

// State reports the session's shape and, when degraded, the reason.
func (d *DaySession) State() (SessionState, string) {
	return d.state, d.reason
}

// DayKey is the effective quiz day; RequestedKey what the caller asked for.
func (d *DaySession) DayKey() string       { return d.dayKey }
func (d *DaySession) RequestedKey() string { return d.requested }

// Questions returns the normalized question list for the day.
func (d *DaySession) Questions() []domain.Question {
	return d.questions
}

// Progress snapshots the viewer's own answers for the day.
func (d *DaySession) Progress() map[string]domain.Answer {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string]domain.Answer, len(d.progress))
	for id, a := range d.progress {
		out[id] = a
	}
	return out
}

// CurrentIndex is the pointer into the question list.
func (d *DaySession) CurrentIndex() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current
}

// SetCurrentIndex jumps directly to a question (board tap).
func (d *DaySession) SetCurrentIndex(idx int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if idx >= 0 && idx < len(d.questions) {
		d.current = idx
	}
}

// SubmitAnswer grades the guess against the current question and
// persists it. Resubmitting an already-answered question is a silent
// no-op returning the originally recorded outcome, so a stray double
// click can never overwrite a guess.
func (d *DaySession) SubmitAnswer(ctx context.Context, guess domain.Role) (domain.AnswerResult, error) {
	if d.state != SessionReady {
		return domain.AnswerResult{}, domain.ErrNoQuestion
	}
	if !d.service.couple.Pair.Contains(guess) {
		return domain.AnswerResult{}, domain.ErrUnknownRole
	}

	d.mu.Lock()
	if d.current < 0 || d.current >= len(d.questions) {
		d.mu.Unlock()
		return domain.AnswerResult{}, domain.ErrNoQuestion
	}
	question := d.questions[d.current]

	if prior, ok := d.progress[question.ID]; ok {
		d.mu.Unlock()
		return domain.AnswerResult{QuestionID: question.ID, Correct: prior.Correct, Answer: question.Answer}, nil
	}

	now := d.service.clock()
	correct := guess == question.Answer
	d.progress[question.ID] = domain.Answer{Guess: guess, Correct: correct, At: now}
	d.mu.Unlock()

	record := domain.AnswerRecord{
		CoupleID:   d.service.couple.CoupleID,
		DayKey:     d.dayKey,
		QuestionID: question.ID,
		UserID:     d.identity.UserID,
		Guess:      guess,
		Correct:    correct,
		AnsweredAt: now,
	}
	// Persist off the hot path. The local answer stays the session's
	// truth even if the write fails; a later re-fetch reconciles.
	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := d.service.store.UpsertAnswer(ctx, record); err != nil {
			log.Printf("persist answer %s/%s failed: %v", record.DayKey, record.QuestionID, err)
		}
	}()

	return domain.AnswerResult{QuestionID: question.ID, Correct: correct, Answer: question.Answer}, nil
}

// Advance moves to the next unanswered question, cyclically. When the
// whole day is answered it still steps forward one slot so the player
// can review answers in order.
func (d *DaySession) Advance() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.questions) == 0 {
		return 0
	}
	for step := 1; step <= len(d.questions); step++ {
		idx := (d.current + step) % len(d.questions)
		if _, answered := d.progress[d.questions[idx].ID]; !answered {
			d.current = idx
			return idx
		}
	}
	d.current = (d.current + 1) % len(d.questions)
	return d.current
}

// Reconcile re-fetches the viewer's answers for the day and merges
// them over local state. Remote entries win on conflict (the durable
// record is authoritative); local-only answers survive, since they may
// be writes still in flight.
func (d *DaySession) Reconcile(ctx context.Context) error {
	if d.state != SessionReady {
		return nil
	}
	remote, err := d.service.store.FetchAnswers(ctx, d.service.couple.CoupleID, d.dayKey, d.identity.UserID)
	if err != nil {
		return err
	}
	d.mu.Lock()
	for id, a := range remote {
		d.progress[id] = a
	}
	d.mu.Unlock()
	return nil
}

// Relevant reports whether a change event touches this session's own
// rows (same day, same user).
func (d *DaySession) Relevant(ev domain.ChangeEvent) bool {
	return ev.DayKey == d.dayKey && ev.UserID == d.identity.UserID
}

func (d *DaySession) firstUnansweredLocked() int {
	for i, q := range d.questions {
		if _, answered := d.progress[q.ID]; !answered {
			return i
		}
	}
	return 0
}
