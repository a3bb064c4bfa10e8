package domain

import "time"

// Role is one of the two fixed participant identities in a couple.
type Role string

// RolePair is the closed set of roles for a couple. Exactly two roles
// exist per couple; the scoreboard's bucketing leans on that.
type RolePair struct {
	A Role
	B Role
}

// Contains reports whether r is one of the pair's roles.
func (p RolePair) Contains(r Role) bool {
	return r == p.A || r == p.B
}

// Other returns the partner role for r. Callers must check Contains first.
func (p RolePair) Other(r Role) Role {
	if r == p.A {
		return p.B
	}
	return p.A
}

// Identity is the resolved output of the auth boundary: who is looking
// at the quiz and under which couple.
type Identity struct {
	UserID      string `json:"userId"`
	CoupleID    string `json:"coupleId"`
	Role        Role   `json:"role"`
	DisplayName string `json:"displayName"`
}

// Question is a single "who said this" quiz entry.
type Question struct {
	ID        string `json:"id,omitempty"`
	Text      string `json:"text"`
	Answer    Role   `json:"answer"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Bank maps day keys (YYYY-MM-DD) to that day's question list. Sparse:
// most calendar days have no entry. Immutable once loaded for a session.
type Bank struct {
	Days map[string][]Question `json:"days"`
}

// Answer is one user's recorded guess for a question.
type Answer struct {
	Guess   Role      `json:"guess"`
	Correct bool      `json:"correct"`
	At      time.Time `json:"at"`
}

// AnswerRecord is the persisted row, uniquely keyed by
// (CoupleID, DayKey, QuestionID, UserID). A later write for the same
// key overwrites the earlier one.
type AnswerRecord struct {
	CoupleID   string    `json:"coupleId"`
	DayKey     string    `json:"dayKey"`
	QuestionID string    `json:"questionId"`
	UserID     string    `json:"userId"`
	Guess      Role      `json:"guess"`
	Correct    bool      `json:"correct"`
	AnsweredAt time.Time `json:"answeredAt"`
}

// ChangeEvent is a coarse notification that answer rows changed for a
// couple. Payload fields are hints; consumers re-fetch rather than
// trusting them.
type ChangeEvent struct {
	DayKey string `json:"dayKey"`
	UserID string `json:"userId"`
}

// CellState is one cell of the per-day scoreboard grid.
type CellState string

const (
	CellUnanswered CellState = "unanswered"
	CellCorrect    CellState = "correct"
	CellWrong      CellState = "wrong"
)

// RoleStats is overall accuracy for one role.
type RoleStats struct {
	Correct int `json:"correct"`
	Total   int `json:"total"`
}

// GridCell holds both partners' cell states for one question of one day.
type GridCell struct {
	QuestionID string    `json:"questionId"`
	Mine       CellState `json:"mine"`
	Partner    CellState `json:"partner"`
}

// DayTally buckets completed days by score. A day is complete for a
// role once exactly the configured number of answers exist; days with
// some but not all answers count as incomplete, empty days not at all.
type DayTally struct {
	One        int `json:"one"`
	Two        int `json:"two"`
	Three      int `json:"three"`
	Incomplete int `json:"incomplete"`
}

// Scoreboard is the derived snapshot recomputed in full from the
// record set; never stored.
type Scoreboard struct {
	Accuracy map[Role]RoleStats `json:"accuracy"`
	Grid     []GridCell         `json:"grid"`
	Mine     DayTally           `json:"mine"`
	Partner  DayTally           `json:"partner"`
}

// AnswerResult is what a submission reports back to the client.
type AnswerResult struct {
	QuestionID string `json:"questionId"`
	Correct    bool   `json:"correct"`
	Answer     Role   `json:"answer"`
}

// DailyStats is the relationship header shown alongside the quiz.
type DailyStats struct {
	DaysTogether     int    `json:"daysTogether"`
	PuzzleNumber     int    `json:"puzzleNumber"`
	NextAnniversary  string `json:"nextAnniversary"`
	DaysUntil        int    `json:"daysUntil"`
	MonthsToday      int    `json:"monthsToday,omitempty"`
	AnniversaryToday bool   `json:"anniversaryToday"`
}
