package app

import (
	"couple-quiz-service/internal/domain"
)

// BuildScoreboard derives the full scoreboard from the couple's answer
// records. Pure: same records in, same snapshot out.
//
// Rows are bucketed by elimination: the viewer's userID maps to their
// role, any other userID to the partner role. That is only sound with
// exactly two participants per couple, so a viewer outside the pair is
// rejected outright instead of silently misattributed.
func BuildScoreboard(records []domain.AnswerRecord, viewer domain.Identity, pair domain.RolePair, dayKey string, questions []domain.Question, dailyCount int) (domain.Scoreboard, error) {
	if !pair.Contains(viewer.Role) {
		return domain.Scoreboard{}, domain.ErrUnknownRole
	}
	other := pair.Other(viewer.Role)

	board := domain.Scoreboard{
		Accuracy: map[domain.Role]domain.RoleStats{
			viewer.Role: {},
			other:       {},
		},
	}

	for _, rec := range records {
		role := other
		if rec.UserID == viewer.UserID {
			role = viewer.Role
		}
		stats := board.Accuracy[role]
		stats.Total++
		if rec.Correct {
			stats.Correct++
		}
		board.Accuracy[role] = stats
	}

	board.Grid = buildGrid(records, viewer.UserID, dayKey, questions)
	board.Mine, board.Partner = buildTallies(records, viewer.UserID, dailyCount)
	return board, nil
}

// buildGrid derives both partners' per-question cell states for one
// day. Absence of a record means unanswered.
func buildGrid(records []domain.AnswerRecord, viewerID, dayKey string, questions []domain.Question) []domain.GridCell {
	if dayKey == "" || len(questions) == 0 {
		return nil
	}

	type cellPair struct{ mine, partner domain.CellState }
	byQuestion := make(map[string]*cellPair, len(questions))
	for _, q := range questions {
		byQuestion[q.ID] = &cellPair{mine: domain.CellUnanswered, partner: domain.CellUnanswered}
	}

	for _, rec := range records {
		if rec.DayKey != dayKey {
			continue
		}
		cell, ok := byQuestion[rec.QuestionID]
		if !ok {
			continue
		}
		state := domain.CellWrong
		if rec.Correct {
			state = domain.CellCorrect
		}
		if rec.UserID == viewerID {
			cell.mine = state
		} else {
			cell.partner = state
		}
	}

	grid := make([]domain.GridCell, 0, len(questions))
	for _, q := range questions {
		cell := byQuestion[q.ID]
		grid = append(grid, domain.GridCell{QuestionID: q.ID, Mine: cell.mine, Partner: cell.partner})
	}
	return grid
}

// buildTallies groups records by (day, side) and buckets fully
// answered days by score. A day with some but not all of dailyCount
// answers counts as incomplete; a day with none is ignored.
func buildTallies(records []domain.AnswerRecord, viewerID string, dailyCount int) (mine, partner domain.DayTally) {
	type dayCount struct{ correct, total int }
	type sides struct{ mine, partner dayCount }

	perDay := make(map[string]*sides)
	for _, rec := range records {
		if rec.DayKey == "" {
			continue
		}
		day, ok := perDay[rec.DayKey]
		if !ok {
			day = &sides{}
			perDay[rec.DayKey] = day
		}
		side := &day.partner
		if rec.UserID == viewerID {
			side = &day.mine
		}
		side.total++
		if rec.Correct {
			side.correct++
		}
	}

	bucket := func(t *domain.DayTally, c dayCount) {
		if c.total != dailyCount {
			if c.total > 0 {
				t.Incomplete++
			}
			return
		}
		switch c.correct {
		case 1:
			t.One++
		case 2:
			t.Two++
		case 3:
			t.Three++
		}
	}

	for _, day := range perDay {
		bucket(&mine, day.mine)
		bucket(&partner, day.partner)
	}
	return mine, partner
}
