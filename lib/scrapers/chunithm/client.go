package chunithm

import (
	"chuniscrape/lib/cookiejar"
	"chuniscrape/lib/htmlutil"
	"chuniscrape/lib/scrapers/chunithm/avatar"
	"chuniscrape/lib/scrapers/chunithm/core"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("scrapers/chunithm")

const (
	MinPlayerNameLength = 1
	MaxPlayerNameLength = 8
)

// PlayerNameSymbols are the characters other than letters, digits and
// spaces the name form accepts.
const PlayerNameSymbols = "．・：；？！～／＋－×÷＝♂♀∀＃＆＊＠☆○◎◇□△▽♪†‡ΣαβγθφψωДё＄（）＿"

// invalidNameRune returns the first character of name the portal would
// refuse, or -1.
func invalidNameRune(name string) rune {
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsSpace(r) {
			continue
		}
		if strings.ContainsRune(PlayerNameSymbols, r) {
			continue
		}
		return r
	}
	return -1
}

type Client struct {
	Core *core.Client
}

func NewClient(opts core.ClientOptions) (*Client, error) {
	coreClient, err := core.NewClient(opts)
	if err != nil {
		return nil, err
	}
	return &Client{Core: coreClient}, nil
}

func recordError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// document fetches a page and parses it. the returned response carries
// the final url after redirects.
func (c *Client) document(ctx context.Context, req *core.Request) (*core.Response, *goquery.Document, error) {
	res, err := c.Core.Do(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	doc, err := res.Document()
	if err != nil {
		return nil, nil, err
	}
	return res, doc, nil
}

// sessionToken returns the form token of the current session, logging in
// first when there is no session yet.
func (c *Client) sessionToken(ctx context.Context) (string, error) {
	token, err := c.Core.SessionToken()
	if err == nil {
		return token, nil
	}
	_, err = c.Core.Get(ctx, "/mobile/home/")
	if err != nil {
		return "", err
	}
	return c.Core.SessionToken()
}

func warnParse(ctx context.Context, res *core.Response, err error) {
	var parseErr *core.ParseError
	if errors.As(err, &parseErr) {
		slog.WarnContext(ctx, "failed to parse page", "url", res.URL.String(), "err", err)
	}
}

// GetBasicPlayerProfile reads the profile shown on the home page, it has
// no ProfileExtras.
func (c *Client) GetBasicPlayerProfile(ctx context.Context) (PlayerProfile, error) {
	ctx, span := tracer.Start(ctx, "client:GetBasicPlayerProfile")
	defer span.End()

	res, doc, err := c.document(ctx, core.NewGet("/mobile/home/"))
	if err != nil {
		return PlayerProfile{}, recordError(span, err)
	}
	profile, err := parseProfile(doc, res.URL)
	if err != nil {
		warnParse(ctx, res, err)
		return PlayerProfile{}, recordError(span, err)
	}
	return profile, nil
}

func (c *Client) GetPlayerProfile(ctx context.Context) (PlayerProfile, error) {
	ctx, span := tracer.Start(ctx, "client:GetPlayerProfile")
	defer span.End()

	res, doc, err := c.document(ctx, core.NewGet("/mobile/home/playerData"))
	if err != nil {
		return PlayerProfile{}, recordError(span, err)
	}
	profile, err := parseProfile(doc, res.URL)
	if err != nil {
		warnParse(ctx, res, err)
		return PlayerProfile{}, recordError(span, err)
	}
	profile.Extras, err = parseProfileExtras(doc)
	if err != nil {
		warnParse(ctx, res, err)
		return PlayerProfile{}, recordError(span, err)
	}
	return profile, nil
}

// GetRecentScores returns up to the last 50 scores, newest first.
func (c *Client) GetRecentScores(ctx context.Context) ([]RecentScore, error) {
	ctx, span := tracer.Start(ctx, "client:GetRecentScores")
	defer span.End()

	res, doc, err := c.document(ctx, core.NewGet("/mobile/record/playlog"))
	if err != nil {
		return nil, recordError(span, err)
	}
	scores, err := parseRecentScores(doc, res.URL)
	if err != nil {
		warnParse(ctx, res, err)
		return nil, recordError(span, err)
	}
	span.SetAttributes(attribute.Int("scores", len(scores)))
	return scores, nil
}

// GetRecentScoreDetails returns a copy of score with its details and song
// identifier filled in. score must come from GetRecentScores on the same
// session.
func (c *Client) GetRecentScoreDetails(ctx context.Context, score RecentScore) (RecentScore, error) {
	ctx, span := tracer.Start(ctx, "client:GetRecentScoreDetails")
	defer span.End()

	if len(score.DetailToken) == 0 {
		return RecentScore{}, recordError(span, &core.ValidationError{
			Message: "score has no detail token, it must come from GetRecentScores",
		})
	}

	res, doc, err := c.document(ctx, core.NewTokenPostForm("/mobile/record/playlog/sendPlaylogDetail/", score.DetailToken, "token"))
	if err != nil {
		return RecentScore{}, recordError(span, err)
	}
	identifier, details, err := parseScoreDetails(doc)
	if err != nil {
		warnParse(ctx, res, err)
		return RecentScore{}, recordError(span, err)
	}

	score.Identifier = identifier
	score.Details = &details
	return score, nil
}

// GetPersonalBest returns one entry per difficulty the player has played
// on the song. isWorldsEnd selects the WORLD'S END record pages, see
// IsWorldsEndSong.
func (c *Client) GetPersonalBest(ctx context.Context, songId int, isWorldsEnd bool) ([]PersonalBest, error) {
	ctx, span := tracer.Start(ctx, "client:GetPersonalBest")
	defer span.End()
	span.SetAttributes(attribute.Int("song_id", songId), attribute.Bool("worlds_end", isWorldsEnd))

	token, err := c.sessionToken(ctx)
	if err != nil {
		return nil, recordError(span, err)
	}
	path := "/mobile/record/musicGenre/sendMusicDetail/"
	if isWorldsEnd {
		path = "/mobile/record/worldsEndList/sendWorldsEndDetail/"
	}
	form := url.Values{
		"idx":   {strconv.Itoa(songId)},
		"token": {token},
	}

	res, doc, err := c.document(ctx, core.NewTokenPostForm(path, form, "token"))
	if err != nil {
		return nil, recordError(span, err)
	}
	bests, err := parsePersonalBests(doc, res.URL)
	if err != nil {
		warnParse(ctx, res, err)
		return nil, recordError(span, err)
	}
	return bests, nil
}

func (c *Client) GetRatingEntries(ctx context.Context, ratingType RatingType) ([]RatingEntry, error) {
	ctx, span := tracer.Start(ctx, "client:GetRatingEntries")
	defer span.End()
	span.SetAttributes(attribute.String("type", ratingType.String()))

	res, doc, err := c.document(ctx, core.NewGet(ratingType.path()))
	if err != nil {
		return nil, recordError(span, err)
	}
	entries, err := parseRatingEntries(doc)
	if err != nil {
		warnParse(ctx, res, err)
		return nil, recordError(span, err)
	}
	return entries, nil
}

// GetRecordsByLevel returns the player's scores on every chart of level,
// written like "13" or "13+". charts that were never played are left out.
func (c *Client) GetRecordsByLevel(ctx context.Context, level string) ([]RatingEntry, error) {
	ctx, span := tracer.Start(ctx, "client:GetRecordsByLevel")
	defer span.End()
	span.SetAttributes(attribute.String("level", level))

	value, err := LevelValue(level)
	if err != nil {
		return nil, recordError(span, err)
	}
	token, err := c.sessionToken(ctx)
	if err != nil {
		return nil, recordError(span, err)
	}
	form := url.Values{
		"level": {strconv.Itoa(value)},
		"token": {token},
	}

	res, doc, err := c.document(ctx, core.NewTokenPostForm("/mobile/record/musicLevel/sendSearch/", form, "token"))
	if err != nil {
		return nil, recordError(span, err)
	}
	records, err := parseLevelRecords(doc)
	if err != nil {
		warnParse(ctx, res, err)
		return nil, recordError(span, err)
	}
	span.SetAttributes(attribute.Int("records", len(records)))
	return records, nil
}

// ChangePlayerName renames the player. names outside 1 to 8 characters
// or with characters outside letters, digits, spaces and
// PlayerNameSymbols are rejected without a request. a name the portal refuses comes back
// as a ValidationError with the portal's message, except for forbidden
// words which surface as a ServiceError (see ServiceError.ForbiddenWord).
func (c *Client) ChangePlayerName(ctx context.Context, name string) error {
	ctx, span := tracer.Start(ctx, "client:ChangePlayerName")
	defer span.End()

	length := utf8.RuneCountInString(name)
	if length < MinPlayerNameLength || length > MaxPlayerNameLength {
		return recordError(span, &core.ValidationError{
			Message: fmt.Sprintf(
				"player name must be between %d and %d characters",
				MinPlayerNameLength, MaxPlayerNameLength,
			),
		})
	}
	if r := invalidNameRune(name); r >= 0 {
		return recordError(span, &core.ValidationError{
			Message: fmt.Sprintf("player name cannot contain %q", r),
		})
	}

	token, err := c.sessionToken(ctx)
	if err != nil {
		return recordError(span, err)
	}
	req := core.NewTokenPostForm("/mobile/home/userOption/updateUserName/update/", url.Values{
		"userName": {name},
		"token":    {token},
	}, "token")
	req.Header.Set("Referer", c.Core.BaseUrl.JoinPath("/mobile/home/userOption/updateUserName").String())

	res, doc, err := c.document(ctx, req)
	if err != nil {
		return recordError(span, err)
	}
	if res.URL.Path == "/mobile/home/userOption/" {
		return nil
	}

	message := doc.Find(".text_red").First()
	if message.Length() == 0 {
		err := &core.ParseError{Page: "update user name", Field: ".text_red"}
		warnParse(ctx, res, err)
		return recordError(span, err)
	}
	return recordError(span, &core.ValidationError{Message: htmlutil.Text(message)})
}

// Logout ends the portal session. the login cookie stays valid.
func (c *Client) Logout(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "client:Logout")
	defer span.End()

	_, err := c.Core.Get(ctx, "/mobile/home/userOption/logout/")
	if err != nil {
		return recordError(span, err)
	}
	return nil
}

// RenderAvatar downloads every avatar layer and returns the composited
// avatar as PNG.
func (c *Client) RenderAvatar(ctx context.Context, playerAvatar PlayerAvatar) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "client:RenderAvatar")
	defer span.End()

	image, err := avatar.Render(ctx, c.Core, playerAvatar.Parts())
	if err != nil {
		return nil, recordError(span, err)
	}
	return image, nil
}

// NewLoginJar returns a cookie jar holding the clal login cookie for the
// authentication gateway at authUrl ("" means the default gateway).
func NewLoginJar(authUrl, clal string, opts ...cookiejar.Option) (*cookiejar.Jar, error) {
	if authUrl == "" {
		authUrl = core.DefaultAuthUrl
	}
	parsed, err := url.Parse(authUrl)
	if err != nil {
		return nil, fmt.Errorf("parse auth url: %w", err)
	}
	jar := cookiejar.New(opts...)
	jar.SaveFromResponse([]cookiejar.Cookie{{
		Name:     "clal",
		Value:    clal,
		Domain:   parsed.Hostname(),
		Path:     "/common_auth",
		HostOnly: true,
	}})
	return jar, nil
}

// ValidateLoginCookie logs in with clal and loads the basic profile. the
// returned jar holds the login cookie and the new portal session, it can
// be passed to NewClient through ClientOptions.Jar. an unusable cookie
// returns core.ErrInvalidCredential.
func ValidateLoginCookie(ctx context.Context, opts core.ClientOptions, clal string) (*cookiejar.Jar, PlayerProfile, error) {
	ctx, span := tracer.Start(ctx, "client:ValidateLoginCookie")
	defer span.End()

	if clal == "" {
		return nil, PlayerProfile{}, recordError(span, &core.ValidationError{Message: "login cookie is empty"})
	}
	jar, err := NewLoginJar(opts.AuthUrl, clal)
	if err != nil {
		return nil, PlayerProfile{}, recordError(span, err)
	}
	opts.Jar = jar

	client, err := NewClient(opts)
	if err != nil {
		return nil, PlayerProfile{}, recordError(span, err)
	}
	profile, err := client.GetBasicPlayerProfile(ctx)
	if err != nil {
		return nil, PlayerProfile{}, recordError(span, err)
	}
	return jar, profile, nil
}
