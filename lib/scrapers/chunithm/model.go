package chunithm

import (
	"chuniscrape/lib/scrapers/chunithm/avatar"
	"chuniscrape/lib/scrapers/chunithm/core"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

type Difficulty int

const (
	Basic Difficulty = iota
	Advanced
	Expert
	Master
	Ultima
	WorldsEnd
)

var difficultyNames = [...]string{"BASIC", "ADVANCED", "EXPERT", "MASTER", "ULTIMA", "WORLDS_END"}

func (d Difficulty) String() string {
	if d < 0 || int(d) >= len(difficultyNames) {
		return fmt.Sprintf("Difficulty(%d)", int(d))
	}
	return difficultyNames[d]
}

func (d Difficulty) DisplayName() string {
	if d == WorldsEnd {
		return "WORLD'S END"
	}
	return d.String()
}

func normalizeSlug(s string) string {
	return strings.ToLower(strings.NewReplacer("_", "", "-", "", " ", "").Replace(s))
}

// DifficultyFromSlug maps the portal's difficulty markers ("master",
// "worldsend", "ultimate", ...) to a Difficulty.
func DifficultyFromSlug(slug string) (Difficulty, error) {
	normalized := normalizeSlug(slug)
	// the portal calls ULTIMA "ultimate"
	if normalized == "ultimate" {
		return Ultima, nil
	}
	for i, name := range difficultyNames {
		if normalizeSlug(name) == normalized {
			return Difficulty(i), nil
		}
	}
	return 0, &core.UnknownDifficultyError{Slug: slug}
}

const MaxScore = 1_010_000

type Rank int

const (
	RankD Rank = iota
	RankC
	RankB
	RankBB
	RankBBB
	RankA
	RankAA
	RankAAA
	RankS
	RankSPlus
	RankSS
	RankSSPlus
	RankSSS
	RankSSSPlus
)

var rankNames = [...]string{
	"D", "C", "B", "BB", "BBB", "A", "AA", "AAA",
	"S", "S_PLUS", "SS", "SS_PLUS", "SSS", "SSS_PLUS",
}

// minimum score of every rank, indexed by Rank
var rankBorders = [...]int{
	0, 500_000, 600_000, 700_000, 800_000, 900_000, 925_000, 950_000,
	975_000, 990_000, 1_000_000, 1_005_000, 1_007_500, 1_009_000,
}

func (r Rank) String() string {
	if r < 0 || int(r) >= len(rankNames) {
		return fmt.Sprintf("Rank(%d)", int(r))
	}
	return rankNames[r]
}

func (r Rank) DisplayName() string {
	return strings.ReplaceAll(r.String(), "_PLUS", "+")
}

// Border is the minimum score needed for r.
func (r Rank) Border() int {
	return rankBorders[r]
}

// RankFromScore returns the highest rank whose border is at most score.
func RankFromScore(score int) Rank {
	rank := RankD
	for i, border := range rankBorders {
		if score >= border {
			rank = Rank(i)
		}
	}
	return rank
}

// RankFromIndex maps the number in the portal's rank icon to a Rank.
func RankFromIndex(index int) (Rank, error) {
	if index < 0 || index >= len(rankNames) {
		return 0, fmt.Errorf("rank index %d out of range", index)
	}
	return Rank(index), nil
}

type ClearLamp int

const (
	ClearFailed ClearLamp = iota
	ClearClear
	ClearHard
	ClearAbsolute
	ClearAbsolutePlus
	ClearCatastrophy
)

var clearLampNames = [...]string{"FAILED", "CLEAR", "HARD", "ABSOLUTE", "ABSOLUTE_PLUS", "CATASTROPHY"}

func (l ClearLamp) String() string {
	if l < 0 || int(l) >= len(clearLampNames) {
		return fmt.Sprintf("ClearLamp(%d)", int(l))
	}
	return clearLampNames[l]
}

func (l ClearLamp) DisplayName() string {
	return strings.ReplaceAll(strings.ReplaceAll(l.String(), "_PLUS", "+"), "_", " ")
}

type ComboLamp int

const (
	ComboNone ComboLamp = iota
	ComboFullCombo
	ComboAllJustice
	ComboAllJusticeCritical
)

var comboLampNames = [...]string{"NONE", "FULL_COMBO", "ALL_JUSTICE", "ALL_JUSTICE_CRITICAL"}

func (l ComboLamp) String() string {
	if l < 0 || int(l) >= len(comboLampNames) {
		return fmt.Sprintf("ComboLamp(%d)", int(l))
	}
	return comboLampNames[l]
}

func (l ComboLamp) DisplayName() string {
	switch l {
	case ComboFullCombo:
		return "FULL COMBO"
	case ComboAllJustice:
		return "AJ"
	case ComboAllJusticeCritical:
		return "AJC"
	}
	return ""
}

type Lamps struct {
	Clear ClearLamp
	Combo ComboLamp
}

type Possession int

const (
	PossessionNone Possession = iota
	PossessionSilver
	PossessionGold
	PossessionPlatinum
	PossessionRainbow
)

var possessionIds = map[string]Possession{
	"normal":  PossessionNone,
	"silver":  PossessionSilver,
	"gold":    PossessionGold,
	"platina": PossessionPlatinum,
	"rainbow": PossessionRainbow,
}

var possessionNames = [...]string{"NONE", "SILVER", "GOLD", "PLATINUM", "RAINBOW"}

func (p Possession) String() string {
	if p < 0 || int(p) >= len(possessionNames) {
		return fmt.Sprintf("Possession(%d)", int(p))
	}
	return possessionNames[p]
}

func PossessionFromId(id string) (Possession, error) {
	p, ok := possessionIds[id]
	if !ok {
		return 0, fmt.Errorf("unknown possession %q", id)
	}
	return p, nil
}

type NameplateRarity int

const (
	RarityNormal NameplateRarity = iota
	RarityBronze
	RaritySilver
	RarityGold
	RarityPlatinum
	RarityRainbow
	RarityStaff
	RarityOngeki
)

var rarityIds = map[string]NameplateRarity{
	"normal":  RarityNormal,
	"bronze":  RarityBronze,
	"silver":  RaritySilver,
	"gold":    RarityGold,
	"platina": RarityPlatinum,
	"rainbow": RarityRainbow,
	"staff":   RarityStaff,
	"ongeki":  RarityOngeki,
}

var rarityNames = [...]string{"NORMAL", "BRONZE", "SILVER", "GOLD", "PLATINUM", "RAINBOW", "STAFF", "ONGEKI"}

func (r NameplateRarity) String() string {
	if r < 0 || int(r) >= len(rarityNames) {
		return fmt.Sprintf("NameplateRarity(%d)", int(r))
	}
	return rarityNames[r]
}

func NameplateRarityFromId(id string) (NameplateRarity, error) {
	r, ok := rarityIds[id]
	if !ok {
		return 0, fmt.Errorf("unknown nameplate rarity %q", id)
	}
	return r, nil
}

type Nameplate struct {
	Text   string
	Rarity NameplateRarity
}

// PlayerAvatar holds the image urls of every avatar layer.
type PlayerAvatar struct {
	Base      string
	Back      string
	SkinFootR string
	SkinFootL string
	Skin      string
	Wear      string
	Face      string
	FaceCover string
	Head      string
	HandR     string
	HandL     string
	ItemR     string
	ItemL     string
}

func (a PlayerAvatar) Parts() avatar.Parts {
	return avatar.Parts{
		avatar.Base:      a.Base,
		avatar.Back:      a.Back,
		avatar.SkinFootR: a.SkinFootR,
		avatar.SkinFootL: a.SkinFootL,
		avatar.Skin:      a.Skin,
		avatar.Wear:      a.Wear,
		avatar.Face:      a.Face,
		avatar.FaceCover: a.FaceCover,
		avatar.Head:      a.Head,
		avatar.HandR:     a.HandR,
		avatar.HandL:     a.HandL,
		avatar.ItemR:     a.ItemR,
		avatar.ItemL:     a.ItemL,
	}
}

// ProfileExtras are only shown on the player data page.
type ProfileExtras struct {
	FriendCode     string
	OwnedCurrency  int
	EarnedCurrency int
	PlayCount      int
}

type PlayerProfile struct {
	Possession          Possession
	Nameplate           Nameplate
	AvatarUrl           string
	RebornLevel         int
	Level               int
	Name                string
	Rating              float64
	MaxRating           float64
	OverPower           float64
	OverPowerPercentage float64
	LastPlayed          time.Time
	Avatar              PlayerAvatar
	// nil for the basic profile
	Extras *ProfileExtras
}

// Record is the part shared by every kind of score.
type Record struct {
	Identifier string
	Title      string
	Difficulty Difficulty
	Score      int
}

type Judgements struct {
	Critical int
	Justice  int
	Attack   int
	Miss     int
}

// HitPercentage values are percentages multiplied by 100, 98.66% is 9866.
type HitPercentage struct {
	Tap   int
	Hold  int
	Slide int
	Air   int
	Flick int
}

type ScoreDetails struct {
	MaxCombo      int
	Judgements    Judgements
	HitPercentage HitPercentage
}

type RecentScore struct {
	Record
	JacketUrl string
	Rank      Rank
	Lamps     Lamps
	// 1-based position in the credit
	Track        int
	TimeAchieved time.Time
	IsNewRecord  bool
	// nil until GetRecentScoreDetails is called
	Details *ScoreDetails
	// form fields the detail page expects, only valid for the session
	// that listed the score
	DetailToken url.Values
}

type PersonalBest struct {
	Record
	CoverUrl  string
	Rank      Rank
	Lamps     Lamps
	PlayCount int
}

type RatingEntry struct {
	Record
}

type RatingType int

const (
	// the best plays counted towards rating
	RatingBest RatingType = iota
	// the best plays among the 30 most recent
	RatingRecent
	// the next best plays not counted in RatingBest
	RatingSelection
)

func (t RatingType) String() string {
	switch t {
	case RatingBest:
		return "BEST"
	case RatingRecent:
		return "RECENT"
	case RatingSelection:
		return "SELECTION"
	}
	return fmt.Sprintf("RatingType(%d)", int(t))
}

func (t RatingType) path() string {
	switch t {
	case RatingRecent:
		return "/mobile/home/playerData/ratingDetailRecent/"
	case RatingSelection:
		return "/mobile/home/playerData/ratingDetailNext/"
	}
	return "/mobile/home/playerData/ratingDetailBest/"
}

const (
	MinLevel = 1
	MaxLevel = 15
	// the first level with a plus variant
	MinPlusLevel = 7
)

// LevelValue converts a chart level such as "13" or "13+" to the value
// the level search form expects. levels below MinPlusLevel have no plus
// variant, so from there on every level takes two values.
func LevelValue(level string) (int, error) {
	digits, plus := strings.CutSuffix(strings.TrimSpace(level), "+")
	n, err := strconv.Atoi(digits)
	if err != nil || digits != strconv.Itoa(n) || n < MinLevel || n > MaxLevel || (plus && n < MinPlusLevel) {
		return 0, &core.ValidationError{Message: fmt.Sprintf("invalid level %q", level)}
	}
	value := n - 1 + max(0, n-MinPlusLevel)
	if plus {
		value++
	}
	return value, nil
}

// IsWorldsEndSong reports whether songId belongs to the WORLD'S END
// category, those ids start at 8000.
func IsWorldsEndSong(songId int) bool {
	return songId >= 8000
}
