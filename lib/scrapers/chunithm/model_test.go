package chunithm

import (
	"chuniscrape/lib/scrapers/chunithm/core"
	"errors"
	"math/rand"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestDifficultyFromSlug(t *testing.T) {
	testCases := []struct {
		slug     string
		expected Difficulty
	}{
		{slug: "basic", expected: Basic},
		{slug: "advanced", expected: Advanced},
		{slug: "expert", expected: Expert},
		{slug: "master", expected: Master},
		{slug: "ultima", expected: Ultima},
		{slug: "ultimate", expected: Ultima},
		{slug: "worldsend", expected: WorldsEnd},
		{slug: "worlds_end", expected: WorldsEnd},
		{slug: "WORLDS_END", expected: WorldsEnd},
	}

	for _, test := range testCases {
		t.Run(test.slug, func(t *testing.T) {
			difficulty, err := DifficultyFromSlug(test.slug)
			if err != nil {
				t.Fatal(err)
			}
			require.Equal(t, test.expected, difficulty)
		})
	}

	_, err := DifficultyFromSlug("not_a_slug")
	var unknown *core.UnknownDifficultyError
	require.True(t, errors.As(err, &unknown))
	require.Equal(t, "not_a_slug", unknown.Slug)
}

func TestDifficultyNames(t *testing.T) {
	require.Equal(t, "WORLDS_END", WorldsEnd.String())
	require.Equal(t, "WORLD'S END", WorldsEnd.DisplayName())
	require.Equal(t, "MASTER", Master.DisplayName())
}

func TestRankFromScore(t *testing.T) {
	testCases := []struct {
		score    int
		expected Rank
	}{
		{score: 0, expected: RankD},
		{score: 499_999, expected: RankD},
		{score: 500_000, expected: RankC},
		{score: 899_999, expected: RankBBB},
		{score: 900_000, expected: RankA},
		{score: 975_000, expected: RankS},
		{score: 988_818, expected: RankS},
		{score: 996_396, expected: RankSPlus},
		{score: 1_005_037, expected: RankSSPlus},
		{score: 1_007_499, expected: RankSSPlus},
		{score: 1_007_500, expected: RankSSS},
		{score: 1_009_000, expected: RankSSSPlus},
		{score: MaxScore, expected: RankSSSPlus},
	}

	for _, test := range testCases {
		require.Equal(t, test.expected, RankFromScore(test.score), "score %d", test.score)
	}

	for rank := RankD; rank <= RankSSSPlus; rank++ {
		require.Equal(t, rank, RankFromScore(rank.Border()))
	}
}

func TestRankFromScoreMonotonic(t *testing.T) {
	scores := make([]int, 1000)
	for i := range scores {
		scores[i] = rand.Intn(MaxScore + 1)
	}
	sort.Ints(scores)

	for i := 1; i < len(scores); i++ {
		require.LessOrEqual(t, RankFromScore(scores[i-1]), RankFromScore(scores[i]))
	}
}

func TestRankFromIndex(t *testing.T) {
	rank, err := RankFromIndex(9)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, RankSPlus, rank)
	require.Equal(t, "S_PLUS", rank.String())
	require.Equal(t, "S+", rank.DisplayName())

	_, err = RankFromIndex(14)
	require.Error(t, err)
	_, err = RankFromIndex(-1)
	require.Error(t, err)
}

func TestLampNames(t *testing.T) {
	require.Equal(t, "ABSOLUTE+", ClearAbsolutePlus.DisplayName())
	require.Equal(t, "AJC", ComboAllJusticeCritical.DisplayName())
	require.Equal(t, "", ComboNone.DisplayName())
	require.Less(t, ClearFailed, ClearCatastrophy)
	require.Less(t, ComboFullCombo, ComboAllJustice)
}

func TestCosmeticIds(t *testing.T) {
	possession, err := PossessionFromId("platina")
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, PossessionPlatinum, possession)

	rarity, err := NameplateRarityFromId("ongeki")
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, RarityOngeki, rarity)

	_, err = PossessionFromId("diamond")
	require.Error(t, err)
	_, err = NameplateRarityFromId("diamond")
	require.Error(t, err)
}

func TestIsWorldsEndSong(t *testing.T) {
	require.False(t, IsWorldsEndSong(428))
	require.False(t, IsWorldsEndSong(7999))
	require.True(t, IsWorldsEndSong(8000))
	require.True(t, IsWorldsEndSong(8142))
}

func TestLevelValue(t *testing.T) {
	testCases := []struct {
		level    string
		expected int
	}{
		{level: "1", expected: 0},
		{level: "6", expected: 5},
		{level: "7", expected: 6},
		{level: "7+", expected: 7},
		{level: "8", expected: 8},
		{level: "13", expected: 18},
		{level: "13+", expected: 19},
		{level: " 14 ", expected: 20},
		{level: "15+", expected: 23},
	}
	for _, test := range testCases {
		value, err := LevelValue(test.level)
		if err != nil {
			t.Fatal(err)
		}
		require.Equal(t, test.expected, value, "level %q", test.level)
	}

	for _, level := range []string{"", "+", "0", "6+", "16", "013", "-1", "13.5"} {
		_, err := LevelValue(level)
		var validation *core.ValidationError
		require.True(t, errors.As(err, &validation), "level %q", level)
	}
}

func TestInvalidNameRune(t *testing.T) {
	require.Equal(t, rune(-1), invalidNameRune("ＮＡＤＩＮＥ☆"))
	require.Equal(t, rune(-1), invalidNameRune("abc 123"))
	require.Equal(t, '~', invalidNameRune("bad~name"))
	require.Equal(t, '<', invalidNameRune("ab<c"))
}

func tracks(credits [][]RecentScore) [][]int {
	out := make([][]int, len(credits))
	for i, credit := range credits {
		for _, score := range credit {
			out[i] = append(out[i], score.Track)
		}
	}
	return out
}

func TestGroupByCredit(t *testing.T) {
	testCases := []struct {
		name     string
		tracks   []int
		expected [][]int
	}{
		{
			name:     "full credits",
			tracks:   []int{4, 3, 2, 1, 4, 3, 2, 1},
			expected: [][]int{{4, 3, 2, 1}, {4, 3, 2, 1}},
		},
		{
			name:     "short credit",
			tracks:   []int{4, 3, 2, 1, 2, 1},
			expected: [][]int{{4, 3, 2, 1}, {2, 1}},
		},
		{
			name:     "cut off by playlog limit",
			tracks:   []int{3, 2, 1, 4, 3},
			expected: [][]int{{3, 2, 1}, {4, 3}},
		},
		{
			name:     "no track 1",
			tracks:   []int{4, 3, 2},
			expected: [][]int{{4, 3, 2}},
		},
		{
			name:     "empty",
			tracks:   nil,
			expected: [][]int{},
		},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			var scores []RecentScore
			for _, track := range test.tracks {
				scores = append(scores, RecentScore{Track: track})
			}
			diff := cmp.Diff(test.expected, tracks(GroupByCredit(scores)))
			if diff != "" {
				t.Fatal(diff)
			}
		})
	}
}
