package commands

import (
	"chuniscrape/lib/scrapers/chunithm"
	"chuniscrape/lib/timezone"
	"context"
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	recentDetails bool
	recentCredits bool
	recentTitle   string
)

var recentCmd = &cobra.Command{
	Use:   "recent",
	Short: "Lists the most recent plays.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd.Context(), func(ctx context.Context, client *chunithm.Client) error {
			scores, err := client.GetRecentScores(ctx)
			if err != nil {
				return err
			}
			scores = filterByTitle(scores, recentTitle, func(s chunithm.RecentScore) string {
				return s.Title
			})
			if recentDetails {
				for i, s := range scores {
					detailed, err := client.GetRecentScoreDetails(ctx, s)
					if err != nil {
						return err
					}
					scores[i] = detailed
				}
			}
			printRecentScores(scores, recentCredits)
			return nil
		})
	},
}

func recentRow(s chunithm.RecentScore) table.Row {
	newRecord := ""
	if s.IsNewRecord {
		newRecord = "NEW"
	}
	row := table.Row{
		s.Track,
		s.Title,
		s.Difficulty.DisplayName(),
		formatScore(s.Score),
		s.Rank.DisplayName(),
		formatLamps(s.Lamps),
		newRecord,
		s.TimeAchieved.In(timezone.Location).Format("01/02 15:04"),
	}
	if s.Details != nil {
		j := s.Details.Judgements
		row = append(row,
			s.Details.MaxCombo,
			fmt.Sprintf("%d/%d/%d/%d", j.Critical, j.Justice, j.Attack, j.Miss),
		)
	}
	return row
}

func printRecentScores(scores []chunithm.RecentScore, byCredit bool) {
	t := NewTable()
	header := table.Row{"Track", "Title", "Difficulty", "Score", "Rank", "Lamps", "", "Played"}
	if len(scores) > 0 && scores[0].Details != nil {
		header = append(header, "Max Combo", "C/J/A/M")
	}
	t.AppendHeader(header)

	if !byCredit {
		for _, s := range scores {
			t.AppendRow(recentRow(s))
		}
		t.Render()
		return
	}
	for i, credit := range chunithm.GroupByCredit(scores) {
		if i > 0 {
			t.AppendSeparator()
		}
		for _, s := range credit {
			t.AppendRow(recentRow(s))
		}
	}
	t.Render()
}

var bestWorldsEnd bool

var bestCmd = &cobra.Command{
	Use:   "best <song-id>",
	Short: "Shows the personal best of a song on every difficulty.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		songId, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("song id must be a number: %w", err)
		}
		isWorldsEnd := bestWorldsEnd || chunithm.IsWorldsEndSong(songId)

		return withClient(cmd.Context(), func(ctx context.Context, client *chunithm.Client) error {
			bests, err := client.GetPersonalBest(ctx, songId, isWorldsEnd)
			if err != nil {
				return err
			}
			t := NewTable()
			t.AppendHeader(table.Row{"Difficulty", "Title", "Score", "Rank", "Lamps", "Plays"})
			for _, b := range bests {
				t.AppendRow(table.Row{
					b.Difficulty.DisplayName(),
					b.Title,
					formatScore(b.Score),
					b.Rank.DisplayName(),
					formatLamps(b.Lamps),
					b.PlayCount,
				})
			}
			t.Render()
			return nil
		})
	},
}

var ratingTypes = map[string]chunithm.RatingType{
	"best":      chunithm.RatingBest,
	"recent":    chunithm.RatingRecent,
	"selection": chunithm.RatingSelection,
}

var ratingCmd = &cobra.Command{
	Use:       "rating best|recent|selection",
	Short:     "Lists the plays that make up the player rating.",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"best", "recent", "selection"},
	RunE: func(cmd *cobra.Command, args []string) error {
		ratingType := ratingTypes[args[0]]
		return withClient(cmd.Context(), func(ctx context.Context, client *chunithm.Client) error {
			entries, err := client.GetRatingEntries(ctx, ratingType)
			if err != nil {
				return err
			}
			t := NewTable()
			t.SetTitle(ratingType.String())
			t.AppendHeader(table.Row{"#", "Song", "Title", "Difficulty", "Score"})
			for i, e := range entries {
				t.AppendRow(table.Row{i + 1, e.Identifier, e.Title, e.Difficulty.DisplayName(), formatScore(e.Score)})
			}
			t.Render()
			return nil
		})
	},
}

var levelCmd = &cobra.Command{
	Use:   "level <level>",
	Short: "Lists the scores on every played chart of a level, like 13 or 13+.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd.Context(), func(ctx context.Context, client *chunithm.Client) error {
			records, err := client.GetRecordsByLevel(ctx, args[0])
			if err != nil {
				return err
			}
			t := NewTable()
			t.SetTitle("LEVEL " + args[0])
			t.AppendHeader(table.Row{"Song", "Title", "Difficulty", "Score", "Rank"})
			for _, r := range records {
				t.AppendRow(table.Row{
					r.Identifier,
					r.Title,
					r.Difficulty.DisplayName(),
					formatScore(r.Score),
					chunithm.RankFromScore(r.Score).DisplayName(),
				})
			}
			t.Render()
			return nil
		})
	},
}

func init() {
	recentCmd.Flags().BoolVar(&recentDetails, "details", false, "Also fetch the judgement breakdown of every play.")
	recentCmd.Flags().BoolVar(&recentCredits, "credits", false, "Separate the plays by credit.")
	recentCmd.Flags().StringVar(&recentTitle, "title", "", "Only show songs whose title is close to this.")
	bestCmd.Flags().BoolVar(&bestWorldsEnd, "worlds-end", false, "Read the WORLD'S END record page, implied for song ids 8000 and up.")
	rootCmd.AddCommand(recentCmd, bestCmd, ratingCmd, levelCmd)
}
