package cli

import (
	"fmt"
	"strconv"

	"couple-quiz-service/internal/calendar"
	"couple-quiz-service/internal/config"
	"github.com/spf13/cobra"
)

// NewOccasionsCmd prints the next monthly anniversary dates for the
// configured couple.
func NewOccasionsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "occasions [count]",
		Short: "List upcoming monthly anniversaries",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			count := 12
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil || n < 1 {
					return fmt.Errorf("count must be a positive integer")
				}
				count = n
			}

			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			start, err := calendar.ParseKey(cfg.Couple.StartDate)
			if err != nil {
				return fmt.Errorf("couple.startDate: %w", err)
			}
			today, err := calendar.TodayIn(cfg.Couple.Timezone)
			if err != nil {
				return err
			}

			occurrences := calendar.MonthlyOccurrences(start, today, cfg.Couple.AnniversaryDay, count)
			for _, occ := range occurrences {
				months := calendar.MonthsBetween(start, occ)
				days := calendar.DaysBetween(today, occ)
				switch {
				case days == 0:
					fmt.Printf("%s  %d months  (today!)\n", occ.Key(), months)
				case days == 1:
					fmt.Printf("%s  %d months  (tomorrow)\n", occ.Key(), months)
				default:
					fmt.Printf("%s  %d months  (in %d days)\n", occ.Key(), months, days)
				}
			}
			return nil
		},
	}
}
