package chunithm

import (
	"chuniscrape/lib/scrapers/chunithm/core"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func readFixture(t testing.TB, name string) string {
	content, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatal(err)
	}
	return string(content)
}

func fixtureDocument(t testing.TB, name string) *goquery.Document {
	return htmlDocument(t, readFixture(t, name))
}

func htmlDocument(t testing.TB, html string) *goquery.Document {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatal(err)
	}
	return doc
}

func mustParseUrl(t testing.TB, raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	return u
}

func TestParseRecentScores(t *testing.T) {
	base := mustParseUrl(t, "https://chunithm-net-eng.com/mobile/record/playlog")
	scores, err := parseRecentScores(fixtureDocument(t, "playlog.html"), base)
	if err != nil {
		t.Fatal(err)
	}
	require.Len(t, scores, 5)

	expected := RecentScore{
		Record: Record{
			Title:      "GEOMETRIC DANCE",
			Difficulty: Master,
			Score:      996_396,
		},
		JacketUrl:    "https://chunithm-net-eng.com/mobile/img/87b65507b23fb234.jpg",
		Rank:         RankSPlus,
		Lamps:        Lamps{Clear: ClearClear, Combo: ComboNone},
		Track:        4,
		TimeAchieved: time.UnixMilli(1706506500000),
		IsNewRecord:  true,
		DetailToken: url.Values{
			"idx":   {"12"},
			"token": {"d5602ef5bb09ac92b9b30dec51016cc5"},
		},
	}
	diff := cmp.Diff(expected, scores[0])
	if diff != "" {
		t.Fatal(diff)
	}

	testCases := []struct {
		title      string
		difficulty Difficulty
		rank       Rank
		lamps      Lamps
		newRecord  bool
	}{
		// no rank icon, derived from the score
		{"Aleph-0", Expert, RankSSS, Lamps{ClearClear, ComboAllJustice}, false},
		{"Trrricksters!!", Ultima, RankSSSPlus, Lamps{ClearHard, ComboFullCombo}, false},
		{"G e n g a o z o", WorldsEnd, RankSSSPlus, Lamps{ClearAbsolutePlus, ComboAllJusticeCritical}, true},
		{"Tutorial", Basic, RankD, Lamps{ClearFailed, ComboNone}, false},
	}
	for i, test := range testCases {
		score := scores[i+1]
		require.Equal(t, test.title, score.Title)
		require.Equal(t, test.difficulty, score.Difficulty)
		require.Equal(t, test.rank, score.Rank)
		require.Equal(t, test.lamps, score.Lamps)
		require.Equal(t, test.newRecord, score.IsNewRecord)
	}

	// relative jacket urls resolve against the page
	require.Equal(t, "https://chunithm-net-eng.com/mobile/img/4f2e1a4c1e3b4a46.jpg", scores[2].JacketUrl)

	credits := GroupByCredit(scores)
	require.Len(t, credits, 2)
	require.Len(t, credits[0], 4)
	require.Len(t, credits[1], 1)
}

func TestParseScoreDetails(t *testing.T) {
	identifier, details, err := parseScoreDetails(fixtureDocument(t, "playlog_detail.html"))
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, "2480", identifier)

	diff := cmp.Diff(ScoreDetails{
		MaxCombo:      453,
		Judgements:    Judgements{Critical: 1821, Justice: 165, Attack: 23, Miss: 14},
		HitPercentage: HitPercentage{Tap: 9866, Hold: 10098, Slide: 10099, Air: 10099, Flick: 9884},
	}, details)
	if diff != "" {
		t.Fatal(diff)
	}
}

func TestParsePersonalBests(t *testing.T) {
	base := mustParseUrl(t, "https://chunithm-net-eng.com/mobile/record/musicDetail/")
	bests, err := parsePersonalBests(fixtureDocument(t, "music_record.html"), base)
	if err != nil {
		t.Fatal(err)
	}

	cover := "https://chunithm-net-eng.com/mobile/img/986a1c6047f3033e.jpg"
	expected := []PersonalBest{
		{
			Record:    Record{Identifier: "428", Title: "Aleph-0", Difficulty: Expert, Score: 1_005_037},
			CoverUrl:  cover,
			Rank:      RankSSPlus,
			Lamps:     Lamps{Clear: ClearClear},
			PlayCount: 2,
		},
		{
			Record:    Record{Identifier: "428", Title: "Aleph-0", Difficulty: Master, Score: 988_818},
			CoverUrl:  cover,
			Rank:      RankS,
			Lamps:     Lamps{Clear: ClearClear},
			PlayCount: 2,
		},
	}
	diff := cmp.Diff(expected, bests)
	if diff != "" {
		t.Fatal(diff)
	}
}

func TestParseRatingEntries(t *testing.T) {
	entries, err := parseRatingEntries(fixtureDocument(t, "best30.html"))
	if err != nil {
		t.Fatal(err)
	}
	require.Len(t, entries, 30)
	require.Equal(t, RatingEntry{
		Record: Record{Identifier: "428", Title: "Aleph-0", Difficulty: Expert, Score: 1_005_037},
	}, entries[0])

	for _, entry := range entries {
		require.NotEmpty(t, entry.Identifier)
		require.LessOrEqual(t, entry.Score, MaxScore)
	}
}

func TestParseLevelRecords(t *testing.T) {
	doc := fixtureDocument(t, "music_level.html")

	records, err := parseLevelRecords(doc)
	if err != nil {
		t.Fatal(err)
	}
	require.Len(t, records, 2)
	require.Equal(t, "500", records[0].Identifier)
	require.Equal(t, "521", records[1].Identifier)

	// rating pages only list played charts
	_, err = parseRatingEntries(doc)
	var parseErr *core.ParseError
	require.True(t, errors.As(err, &parseErr))
}

func TestParseProfile(t *testing.T) {
	base := mustParseUrl(t, "https://chunithm-net-eng.com/mobile/home/playerData")
	doc := fixtureDocument(t, "player_data.html")

	profile, err := parseProfile(doc, base)
	if err != nil {
		t.Fatal(err)
	}

	require.Equal(t, PossessionGold, profile.Possession)
	require.Equal(t, Nameplate{Text: "Rising to the Top", Rarity: RarityPlatinum}, profile.Nameplate)
	require.Equal(t, "https://chunithm-net-eng.com/mobile/img/c0f8e32a1c8b4d6f.png", profile.AvatarUrl)
	require.Equal(t, 2, profile.RebornLevel)
	require.Equal(t, 37, profile.Level)
	require.Equal(t, "ＮＡＤＩＮＥ", profile.Name)
	require.InDelta(t, 16.23, profile.Rating, 1e-9)
	require.InDelta(t, 16.31, profile.MaxRating, 1e-9)
	require.InDelta(t, 31034.95, profile.OverPower, 1e-9)
	require.InDelta(t, 65.70, profile.OverPowerPercentage, 1e-9)
	require.True(t, profile.LastPlayed.Equal(time.UnixMilli(1706506500000)))
	require.Nil(t, profile.Extras)

	require.Equal(t, avatarBaseUrl, profile.Avatar.Base)
	require.Equal(t, "https://chunithm-net-eng.com/mobile/img/avatar/skin_0001.png", profile.Avatar.Skin)
	require.Equal(t, "https://chunithm-net-eng.com/mobile/img/avatar/item_0007.png", profile.Avatar.ItemL)
	for part, u := range profile.Avatar.Parts() {
		require.NotEmpty(t, u, "avatar part %s", part)
	}

	extras, err := parseProfileExtras(doc)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, &ProfileExtras{
		FriendCode:     "9012345678901",
		OwnedCurrency:  12_345,
		EarnedCurrency: 987_654,
		PlayCount:      1_234,
	}, extras)
}

func TestParseProfileWithoutReborn(t *testing.T) {
	base := mustParseUrl(t, "https://chunithm-net-eng.com/mobile/home/")
	html := strings.Replace(readFixture(t, "player_data.html"), `<div class="player_reborn">2</div>`, "", 1)

	profile, err := parseProfile(htmlDocument(t, html), base)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, 0, profile.RebornLevel)
}

func TestParseFailures(t *testing.T) {
	base := mustParseUrl(t, "https://chunithm-net-eng.com/mobile/")

	testCases := []struct {
		name    string
		fixture string
		replace [2]string
		parse   func(doc *goquery.Document) error
		check   func(t *testing.T, err error)
	}{
		{
			name:    "missing score",
			fixture: "playlog.html",
			replace: [2]string{"play_musicdata_score_text", "play_musicdata_score_gone"},
			parse: func(doc *goquery.Document) error {
				_, err := parseRecentScores(doc, base)
				return err
			},
			check: func(t *testing.T, err error) {
				var parseErr *core.ParseError
				require.True(t, errors.As(err, &parseErr))
				require.Equal(t, ".play_musicdata_score_text", parseErr.Field)
			},
		},
		{
			name:    "unknown difficulty",
			fixture: "playlog.html",
			replace: [2]string{"musiclevel_master", "musiclevel_expart"},
			parse: func(doc *goquery.Document) error {
				_, err := parseRecentScores(doc, base)
				return err
			},
			check: func(t *testing.T, err error) {
				var unknown *core.UnknownDifficultyError
				require.True(t, errors.As(err, &unknown))
				require.Equal(t, "expart", unknown.Slug)
			},
		},
		{
			name:    "bad rank icon",
			fixture: "music_record.html",
			replace: [2]string{"icon_rank_11", "icon_rank_99"},
			parse: func(doc *goquery.Document) error {
				_, err := parsePersonalBests(doc, base)
				return err
			},
			check: func(t *testing.T, err error) {
				var parseErr *core.ParseError
				require.True(t, errors.As(err, &parseErr))
			},
		},
		{
			name:    "bad rating digit",
			fixture: "player_data.html",
			replace: [2]string{"rating_rainbow_comma", "rating_rainbow_dot"},
			parse: func(doc *goquery.Document) error {
				_, err := parseProfile(doc, base)
				return err
			},
			check: func(t *testing.T, err error) {
				var parseErr *core.ParseError
				require.True(t, errors.As(err, &parseErr))
				require.Equal(t, "rating", parseErr.Field)
			},
		},
		{
			name:    "unknown possession",
			fixture: "player_data.html",
			replace: [2]string{"profile_gold", "profile_diamond"},
			parse: func(doc *goquery.Document) error {
				_, err := parseProfile(doc, base)
				return err
			},
			check: func(t *testing.T, err error) {
				var parseErr *core.ParseError
				require.True(t, errors.As(err, &parseErr))
				require.Equal(t, "possession", parseErr.Field)
			},
		},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			html := strings.Replace(readFixture(t, test.fixture), test.replace[0], test.replace[1], 1)
			err := test.parse(htmlDocument(t, html))
			require.Error(t, err)
			test.check(t, err)
		})
	}
}
