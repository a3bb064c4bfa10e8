package app

import (
	"couple-quiz-service/internal/calendar"
	"couple-quiz-service/internal/domain"
)

// BuildDailyStats computes the relationship header for a day: days
// together (which doubles as the puzzle number), the next monthly
// anniversary with its countdown, and whether today is an anniversary.
func BuildDailyStats(couple CoupleConfig, today calendar.Date) domain.DailyStats {
	stats := domain.DailyStats{}

	days := calendar.DaysBetween(couple.Start, today)
	if days < 0 {
		days = 0
	}
	stats.DaysTogether = days
	stats.PuzzleNumber = days

	next := calendar.MonthlyOccurrences(couple.Start, today, couple.AnniversaryDay, 1)
	if len(next) == 1 {
		stats.NextAnniversary = next[0].Key()
		until := calendar.DaysBetween(today, next[0])
		if until < 0 {
			until = 0
		}
		stats.DaysUntil = until
	}

	// "Happy N Months" only on the anniversary day itself.
	thisMonth := calendar.OccurrenceInMonth(today.Year, today.Month, couple.AnniversaryDay)
	months := calendar.MonthsBetween(couple.Start, today)
	if today.Compare(thisMonth) == 0 && months >= 1 {
		stats.AnniversaryToday = true
		stats.MonthsToday = months
	}
	return stats
}
