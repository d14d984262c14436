package commands

import (
	"chuniscrape/lib/scrapers/chunithm"
	"chuniscrape/lib/scrapers/chunithm/core"
	"chuniscrape/lib/telemetry"
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
)

var watchInterval time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Polls the play log and prints new plays as they show up.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		telemetry.InstrumentPerfStats(ctx, time.Minute)

		var seen *playKey
		poll := func() error {
			return withClient(ctx, func(ctx context.Context, client *chunithm.Client) error {
				scores, err := client.GetRecentScores(ctx)
				if err != nil {
					return err
				}
				fresh := newerThan(scores, seen)
				if len(fresh) > 0 {
					key := keyOf(fresh[0])
					seen = &key
					printRecentScores(fresh, true)
				}
				return nil
			})
		}

		err := poll()
		if err != nil {
			return err
		}
		ticker := time.NewTicker(watchInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				err := poll()
				if err != nil {
					if ctx.Err() != nil {
						return nil
					}
					// the session is gone, polling again cannot succeed
					if errors.Is(err, core.ErrInvalidCredential) {
						return err
					}
					slog.WarnContext(ctx, "failed to poll play log", "err", err)
				}
			}
		}
	},
}

// playKey identifies a play in the log. times only have minute
// precision, so plays of one credit can share a time.
type playKey struct {
	TimeAchieved time.Time
	Title        string
	Difficulty   chunithm.Difficulty
	Track        int
}

func keyOf(s chunithm.RecentScore) playKey {
	return playKey{TimeAchieved: s.TimeAchieved, Title: s.Title, Difficulty: s.Difficulty, Track: s.Track}
}

func (k playKey) matches(s chunithm.RecentScore) bool {
	return k.TimeAchieved.Equal(s.TimeAchieved) && k.Title == s.Title &&
		k.Difficulty == s.Difficulty && k.Track == s.Track
}

// newerThan returns the leading plays of the log that came after last,
// the play log is ordered newest first. a nil last returns every play.
// when last has dropped off the log, plays from its minute onwards are
// returned.
func newerThan(scores []chunithm.RecentScore, last *playKey) []chunithm.RecentScore {
	if last == nil {
		return scores
	}
	for i, s := range scores {
		if last.matches(s) {
			return scores[:i]
		}
	}
	for i, s := range scores {
		if s.TimeAchieved.Before(last.TimeAchieved) {
			return scores[:i]
		}
	}
	return scores
}

func init() {
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 5*time.Minute, "How often to poll the play log.")
	rootCmd.AddCommand(watchCmd)
}
