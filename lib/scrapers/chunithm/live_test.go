package chunithm

import (
	devenv "chuniscrape/dev/env"
	"chuniscrape/lib/scrapers/chunithm/core"
	"chuniscrape/lib/telemetry"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestLive talks to the real portal with the login cookie from
// dev/.state/chunithm.json5.
func TestLive(t *testing.T) {
	if testing.Short() {
		t.Skip("live test")
	}
	config, err := devenv.GetStateConfig[devenv.LiveTestConfig]("chunithm.json5")
	if err != nil {
		t.Skip("no live test config:", err)
	}

	cleanup := telemetry.SetupForTesting("test:scrapers/chunithm/live")
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	jar, profile, err := ValidateLoginCookie(ctx, core.ClientOptions{}, config.Clal)
	if err != nil {
		t.Fatal(err)
	}
	require.NotEmpty(t, profile.Name)

	client, err := NewClient(core.ClientOptions{Jar: jar})
	if err != nil {
		t.Fatal(err)
	}

	scores, err := client.GetRecentScores(ctx)
	if err != nil {
		t.Fatal(err)
	}
	require.LessOrEqual(t, len(scores), maxRecentScores)
	if len(scores) > 0 {
		detailed, err := client.GetRecentScoreDetails(ctx, scores[0])
		if err != nil {
			t.Fatal(err)
		}
		require.NotNil(t, detailed.Details)
	}

	if config.SongID != 0 {
		bests, err := client.GetPersonalBest(ctx, config.SongID, IsWorldsEndSong(config.SongID))
		if err != nil {
			t.Fatal(err)
		}
		require.NotEmpty(t, bests)
	}

	for _, ratingType := range []RatingType{RatingBest, RatingRecent, RatingSelection} {
		_, err := client.GetRatingEntries(ctx, ratingType)
		if err != nil {
			t.Fatal(err)
		}
	}

	_, err = client.RenderAvatar(ctx, profile.Avatar)
	if err != nil {
		t.Fatal(err)
	}
}
