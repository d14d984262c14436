package chunithm

import (
	"chuniscrape/lib/htmlutil"
	"chuniscrape/lib/scrapers/chunithm/core"
	"chuniscrape/lib/timezone"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const avatarBaseUrl = "https://new.chunithm-net.com/chuni-mobile/html/mobile/images/avatar_base.png"

const maxRecentScores = 50

// page resolves required elements on one document and turns missing
// ones into ParseErrors.
type page struct {
	name string
	base *url.URL
}

func (p page) fail(field string, err error) error {
	return &core.ParseError{Page: p.name, Field: field, Err: err}
}

func (p page) first(root *goquery.Selection, selector string) (*goquery.Selection, error) {
	sel := root.Find(selector).First()
	if sel.Length() == 0 {
		return nil, p.fail(selector, nil)
	}
	return sel, nil
}

func (p page) text(root *goquery.Selection, selector string) (string, error) {
	sel, err := p.first(root, selector)
	if err != nil {
		return "", err
	}
	return htmlutil.Text(sel), nil
}

func (p page) int(root *goquery.Selection, selector string) (int, error) {
	text, err := p.text(root, selector)
	if err != nil {
		return 0, err
	}
	value, err := htmlutil.ParseInt(text)
	if err != nil {
		return 0, p.fail(selector, err)
	}
	return value, nil
}

func (p page) float(root *goquery.Selection, selector string) (float64, error) {
	text, err := p.text(root, selector)
	if err != nil {
		return 0, err
	}
	value, err := htmlutil.ParseFloat(text)
	if err != nil {
		return 0, p.fail(selector, err)
	}
	return value, nil
}

func (p page) percentage(root *goquery.Selection, selector string) (int, error) {
	text, err := p.text(root, selector)
	if err != nil {
		return 0, err
	}
	value, err := htmlutil.ParsePercentage(text)
	if err != nil {
		return 0, p.fail(selector, err)
	}
	return value, nil
}

func (p page) attr(root *goquery.Selection, selector, attr string) (string, error) {
	sel, err := p.first(root, selector)
	if err != nil {
		return "", err
	}
	value, ok := sel.Attr(attr)
	if !ok {
		return "", p.fail(selector+"@"+attr, nil)
	}
	return value, nil
}

func (p page) absUrl(root *goquery.Selection, selector, attr string) (string, error) {
	sel, err := p.first(root, selector)
	if err != nil {
		return "", err
	}
	value := htmlutil.AbsURL(p.base, sel, attr)
	if value == "" {
		return "", p.fail(selector+"@"+attr, nil)
	}
	return value, nil
}

// between reads an attribute and returns the part between start and end.
func (p page) between(root *goquery.Selection, selector, attr, start, end string) (string, error) {
	value, err := p.attr(root, selector, attr)
	if err != nil {
		return "", err
	}
	part, ok := htmlutil.Between(value, start, end)
	if !ok {
		return "", p.fail(selector+"@"+attr, fmt.Errorf("%q has no %q", value, start))
	}
	return part, nil
}

func (p page) difficultyClass(el *goquery.Selection) (Difficulty, error) {
	slug, ok := htmlutil.ClassWithPrefix(el, "bg_")
	if !ok {
		return 0, p.fail("difficulty class", nil)
	}
	return DifficultyFromSlug(slug)
}

func (p page) rating(doc *goquery.Selection) (float64, error) {
	digits := doc.Find(".player_rating_num_block img")
	if digits.Length() == 0 {
		return 0, p.fail(".player_rating_num_block img", nil)
	}

	var text strings.Builder
	var err error
	digits.EachWithBreak(func(_ int, img *goquery.Selection) bool {
		src := img.AttrOr("src", "")
		key := src[strings.LastIndex(src, "_")+1:]
		key, _, _ = strings.Cut(key, ".png")
		switch {
		case key == "comma":
			text.WriteString(".")
		case strings.HasPrefix(key, "0"):
			text.WriteString(strings.TrimPrefix(key, "0"))
		default:
			err = p.fail("rating", fmt.Errorf("unknown rating digit %q", src))
			return false
		}
		return true
	})
	if err != nil {
		return 0, err
	}

	rating, err := strconv.ParseFloat(text.String(), 64)
	if err != nil {
		return 0, p.fail("rating", err)
	}
	return rating, nil
}

func (p page) overPower(doc *goquery.Selection) (float64, float64, error) {
	text, err := p.text(doc, ".player_overpower_text")
	if err != nil {
		return 0, 0, err
	}
	value, rest, _ := strings.Cut(text, " ")
	overPower, err := htmlutil.ParseFloat(value)
	if err != nil {
		return 0, 0, p.fail(".player_overpower_text", err)
	}
	percentText, ok := htmlutil.Between(rest, "(", "%)")
	if !ok {
		return 0, 0, p.fail(".player_overpower_text", fmt.Errorf("no percentage in %q", text))
	}
	percentage, err := htmlutil.ParseFloat(percentText)
	if err != nil {
		return 0, 0, p.fail(".player_overpower_text", err)
	}
	return overPower, percentage, nil
}

func (p page) avatar(doc *goquery.Selection) (PlayerAvatar, error) {
	avatar := PlayerAvatar{Base: avatarBaseUrl}
	fields := []struct {
		selector string
		target   *string
	}{
		{".avatar_back img", &avatar.Back},
		{".avatar_skinfoot_r img", &avatar.SkinFootR},
		{".avatar_skinfoot_l img", &avatar.SkinFootL},
		{".avatar_skin img", &avatar.Skin},
		{".avatar_wear img", &avatar.Wear},
		{".avatar_face img", &avatar.Face},
		{".avatar_faceCover img", &avatar.FaceCover},
		{".avatar_head img", &avatar.Head},
		{".avatar_hand_r img", &avatar.HandR},
		{".avatar_hand_l img", &avatar.HandL},
		{".avatar_item_r img", &avatar.ItemR},
		{".avatar_item_l img", &avatar.ItemL},
	}
	for _, field := range fields {
		value, err := p.absUrl(doc, field.selector, "src")
		if err != nil {
			return PlayerAvatar{}, err
		}
		*field.target = value
	}
	return avatar, nil
}

func parseProfile(doc *goquery.Document, base *url.URL) (PlayerProfile, error) {
	p := page{name: "profile", base: base}
	root := doc.Selection
	var profile PlayerProfile
	var err error

	possessionId, err := p.between(root, ".box_playerprofile", "style", "profile_", ".png")
	if err != nil {
		return PlayerProfile{}, err
	}
	profile.Possession, err = PossessionFromId(possessionId)
	if err != nil {
		return PlayerProfile{}, p.fail("possession", err)
	}

	profile.Nameplate.Text, err = p.text(root, ".player_honor_text")
	if err != nil {
		return PlayerProfile{}, err
	}
	rarityId, err := p.between(root, ".player_honor_short", "style", "honor_bg_", ".png")
	if err != nil {
		return PlayerProfile{}, err
	}
	profile.Nameplate.Rarity, err = NameplateRarityFromId(rarityId)
	if err != nil {
		return PlayerProfile{}, p.fail("nameplate rarity", err)
	}

	profile.AvatarUrl, err = p.absUrl(root, ".player_chara img", "src")
	if err != nil {
		return PlayerProfile{}, err
	}

	if reborn := root.Find(".player_reborn").First(); reborn.Length() > 0 {
		if text := htmlutil.Text(reborn); text != "" {
			profile.RebornLevel, err = htmlutil.ParseInt(text)
			if err != nil {
				return PlayerProfile{}, p.fail(".player_reborn", err)
			}
		}
	}

	profile.Level, err = p.int(root, ".player_lv")
	if err != nil {
		return PlayerProfile{}, err
	}
	profile.Name, err = p.text(root, ".player_name_in")
	if err != nil {
		return PlayerProfile{}, err
	}
	profile.Rating, err = p.rating(root)
	if err != nil {
		return PlayerProfile{}, err
	}
	profile.MaxRating, err = p.float(root, ".player_rating_max")
	if err != nil {
		return PlayerProfile{}, err
	}
	profile.OverPower, profile.OverPowerPercentage, err = p.overPower(root)
	if err != nil {
		return PlayerProfile{}, err
	}

	lastPlayed, err := p.text(root, ".player_lastplaydate_text")
	if err != nil {
		return PlayerProfile{}, err
	}
	profile.LastPlayed, err = timezone.Parse(lastPlayed)
	if err != nil {
		return PlayerProfile{}, p.fail(".player_lastplaydate_text", err)
	}

	profile.Avatar, err = p.avatar(root)
	if err != nil {
		return PlayerProfile{}, err
	}
	return profile, nil
}

func parseProfileExtras(doc *goquery.Document) (*ProfileExtras, error) {
	p := page{name: "player data"}
	root := doc.Selection
	extras := &ProfileExtras{}
	var err error

	extras.FriendCode, err = p.text(root, ".user_data_friend_code span:not(.font_90)")
	if err != nil {
		return nil, err
	}
	extras.OwnedCurrency, err = p.int(root, ".user_data_point div")
	if err != nil {
		return nil, err
	}
	extras.EarnedCurrency, err = p.int(root, ".user_data_total_point div")
	if err != nil {
		return nil, err
	}
	extras.PlayCount, err = p.int(root, ".user_data_play_count div")
	if err != nil {
		return nil, err
	}
	return extras, nil
}

// rankAndLamps reads the icon row shared by the playlog and the
// record pages. an explicit rank icon wins over the score thresholds.
func (p page) rankAndLamps(el *goquery.Selection, score int) (Rank, Lamps, error) {
	icons, err := p.first(el, ".play_musicdata_icon")
	if err != nil {
		return 0, Lamps{}, err
	}

	rank := RankFromScore(score)
	if src, ok := icons.Find("img[src*=icon_rank_]").First().Attr("src"); ok {
		indexText, _ := htmlutil.Between(src, "icon_rank_", ".")
		index, err := strconv.Atoi(indexText)
		if err != nil {
			return 0, Lamps{}, p.fail("rank icon", err)
		}
		rank, err = RankFromIndex(index)
		if err != nil {
			return 0, Lamps{}, p.fail("rank icon", err)
		}
	}
	return rank, parseLamps(icons), nil
}

func hasIcon(icons *goquery.Selection, marker string) bool {
	return icons.Find(fmt.Sprintf("img[src*=%q]", marker)).Length() > 0
}

// several markers can appear at once, the first match in this order wins.
var clearMarkers = []struct {
	marker string
	lamp   ClearLamp
}{
	{"_clear", ClearClear},
	{"_hard", ClearHard},
	{"_absolutep", ClearAbsolutePlus},
	{"_absolute", ClearAbsolute},
	{"_catastrophy", ClearCatastrophy},
}

var comboMarkers = []struct {
	marker string
	lamp   ComboLamp
}{
	{"_fullcombo", ComboFullCombo},
	{"_alljusticecritical", ComboAllJusticeCritical},
	{"_alljustice", ComboAllJustice},
}

func parseLamps(icons *goquery.Selection) Lamps {
	lamps := Lamps{Clear: ClearFailed, Combo: ComboNone}
	for _, m := range clearMarkers {
		if hasIcon(icons, m.marker) {
			lamps.Clear = m.lamp
			break
		}
	}
	for _, m := range comboMarkers {
		if hasIcon(icons, m.marker) {
			lamps.Combo = m.lamp
			break
		}
	}
	return lamps
}

func parseRecentScores(doc *goquery.Document, base *url.URL) ([]RecentScore, error) {
	p := page{name: "playlog", base: base}

	var scores []RecentScore
	var err error
	doc.Find(".frame02.w400").EachWithBreak(func(_ int, el *goquery.Selection) bool {
		if len(scores) >= maxRecentScores {
			return false
		}
		var score RecentScore
		score, err = p.recentScore(el)
		if err != nil {
			return false
		}
		scores = append(scores, score)
		return true
	})
	if err != nil {
		return nil, err
	}
	return scores, nil
}

func (p page) recentScore(el *goquery.Selection) (RecentScore, error) {
	var score RecentScore
	var err error

	date, err := p.text(el, ".play_datalist_date")
	if err != nil {
		return RecentScore{}, err
	}
	score.TimeAchieved, err = timezone.Parse(date)
	if err != nil {
		return RecentScore{}, p.fail(".play_datalist_date", err)
	}

	track, err := p.text(el, ".play_track_text")
	if err != nil {
		return RecentScore{}, err
	}
	score.Track, err = strconv.Atoi(strings.TrimPrefix(track, "TRACK "))
	if err != nil {
		return RecentScore{}, p.fail(".play_track_text", err)
	}

	score.Title, err = p.text(el, ".play_musicdata_title")
	if err != nil {
		return RecentScore{}, err
	}
	slug, err := p.between(el, ".play_track_result img", "src", "musiclevel_", ".")
	if err != nil {
		return RecentScore{}, err
	}
	score.Difficulty, err = DifficultyFromSlug(slug)
	if err != nil {
		return RecentScore{}, err
	}
	score.Score, err = p.int(el, ".play_musicdata_score_text")
	if err != nil {
		return RecentScore{}, err
	}
	score.Rank, score.Lamps, err = p.rankAndLamps(el, score.Score)
	if err != nil {
		return RecentScore{}, err
	}
	score.JacketUrl, err = p.absUrl(el, ".play_jacket_img img", "data-original")
	if err != nil {
		return RecentScore{}, err
	}
	score.IsNewRecord = el.Find(".play_musicdata_score_img").Length() > 0

	score.DetailToken = url.Values{}
	el.Find("form:has(.btn_see_detail) input").Each(func(_ int, input *goquery.Selection) {
		name, ok := input.Attr("name")
		if !ok {
			return
		}
		score.DetailToken.Add(name, input.AttrOr("value", ""))
	})
	return score, nil
}

// parseScoreDetails returns the song id shown on the detail page along
// with the details.
func parseScoreDetails(doc *goquery.Document) (string, ScoreDetails, error) {
	p := page{name: "playlog detail"}
	root := doc.Selection
	var details ScoreDetails

	identifier, err := p.attr(root, "input[name=idx]", "value")
	if err != nil {
		return "", ScoreDetails{}, err
	}
	details.MaxCombo, err = p.int(root, ".play_data_detail_maxcombo_block")
	if err != nil {
		return "", ScoreDetails{}, err
	}

	counts := []struct {
		selector string
		target   *int
	}{
		{".text_critical", &details.Judgements.Critical},
		{".text_justice", &details.Judgements.Justice},
		{".text_attack", &details.Judgements.Attack},
		{".text_miss", &details.Judgements.Miss},
	}
	for _, c := range counts {
		*c.target, err = p.int(root, c.selector)
		if err != nil {
			return "", ScoreDetails{}, err
		}
	}

	percentages := []struct {
		selector string
		target   *int
	}{
		{".text_tap_red", &details.HitPercentage.Tap},
		{".text_hold_yellow", &details.HitPercentage.Hold},
		{".text_slide_blue", &details.HitPercentage.Slide},
		{".text_air_green", &details.HitPercentage.Air},
		{".text_flick_skyblue", &details.HitPercentage.Flick},
	}
	for _, c := range percentages {
		*c.target, err = p.percentage(root, c.selector)
		if err != nil {
			return "", ScoreDetails{}, err
		}
	}
	return identifier, details, nil
}

func parsePersonalBests(doc *goquery.Document, base *url.URL) ([]PersonalBest, error) {
	p := page{name: "music record", base: base}
	root := doc.Selection

	title, err := p.text(root, ".play_musicdata_title")
	if err != nil {
		return nil, err
	}
	coverUrl, err := p.absUrl(root, ".play_jacket_img img", "src")
	if err != nil {
		return nil, err
	}
	identifier, err := p.attr(root, "input[name=idx]", "value")
	if err != nil {
		return nil, err
	}

	var bests []PersonalBest
	doc.Find(".music_box").EachWithBreak(func(_ int, el *goquery.Selection) bool {
		best := PersonalBest{
			Record:   Record{Identifier: identifier, Title: title},
			CoverUrl: coverUrl,
		}
		best.Score, err = p.int(el, `.musicdata_score_title:contains("HIGH SCORE") + .musicdata_score_num span`)
		if err != nil {
			return false
		}
		var playCount string
		playCount, err = p.text(el, `.musicdata_score_title:contains("Play Count") + .musicdata_score_num span`)
		if err != nil {
			return false
		}
		playCount, _, _ = strings.Cut(playCount, "times")
		best.PlayCount, err = htmlutil.ParseInt(playCount)
		if err != nil {
			err = p.fail("play count", err)
			return false
		}
		best.Difficulty, err = p.difficultyClass(el)
		if err != nil {
			return false
		}
		best.Rank, best.Lamps, err = p.rankAndLamps(el, best.Score)
		if err != nil {
			return false
		}
		bests = append(bests, best)
		return true
	})
	if err != nil {
		return nil, err
	}
	return bests, nil
}

func parseRatingEntries(doc *goquery.Document) ([]RatingEntry, error) {
	return parseMusicList(doc, page{name: "rating"}, false)
}

// parseLevelRecords reads the level search results, charts without a
// high score have not been played and are left out.
func parseLevelRecords(doc *goquery.Document) ([]RatingEntry, error) {
	return parseMusicList(doc, page{name: "level search"}, true)
}

func parseMusicList(doc *goquery.Document, p page, skipUnplayed bool) ([]RatingEntry, error) {
	var entries []RatingEntry
	var err error
	doc.Find(".musiclist_box").EachWithBreak(func(_ int, el *goquery.Selection) bool {
		if skipUnplayed && el.Find(".play_musicdata_highscore span").Length() == 0 {
			return true
		}
		var entry RatingEntry
		entry.Identifier, err = p.attr(el, "input[name=idx]", "value")
		if err != nil {
			return false
		}
		entry.Title, err = p.text(el, ".music_title")
		if err != nil {
			return false
		}
		entry.Difficulty, err = p.difficultyClass(el)
		if err != nil {
			return false
		}
		entry.Score, err = p.int(el, ".play_musicdata_highscore span")
		if err != nil {
			return false
		}
		entries = append(entries, entry)
		return true
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}
