package cookiejar

import (
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, time.January, 29, 5, 35, 0, 0, time.UTC)

func mustParse(t testing.TB, raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	return u
}

func names(cookies []Cookie) []string {
	out := make([]string, len(cookies))
	for i, c := range cookies {
		out[i] = c.Name
	}
	return out
}

func TestIdentityUpsert(t *testing.T) {
	jar := New(WithClock(func() time.Time { return fixedNow }))

	jar.SaveFromResponse([]Cookie{
		{Name: "_t", Value: "one", Domain: "chunithm-net-eng.com", Path: "/", HostOnly: true},
		{Name: "userId", Value: "1", Domain: "chunithm-net-eng.com", Path: "/", HostOnly: true},
	})
	jar.SaveFromResponse([]Cookie{
		{Name: "_t", Value: "two", Domain: "chunithm-net-eng.com", Path: "/", HostOnly: true},
		// different identity: not host-only
		{Name: "_t", Value: "three", Domain: "chunithm-net-eng.com", Path: "/", HostOnly: false},
	})

	all := jar.All()
	require.Len(t, all, 3)
	require.Equal(t, "two", all[0].Value)
	require.Equal(t, "three", all[2].Value)
}

func TestLoadForRequest(t *testing.T) {
	now := fixedNow
	jar := New(WithClock(func() time.Time { return now }))

	jar.SaveFromResponse([]Cookie{
		{Name: "host", Value: "1", Domain: "chunithm-net-eng.com", Path: "/", HostOnly: true},
		{Name: "domain", Value: "1", Domain: "chunithm-net-eng.com", Path: "/"},
		{Name: "deep", Value: "1", Domain: "chunithm-net-eng.com", Path: "/mobile", HostOnly: true},
		{Name: "secure", Value: "1", Domain: "chunithm-net-eng.com", Path: "/", HostOnly: true, Secure: true},
		{Name: "other", Value: "1", Domain: "am-all.net", Path: "/"},
		{
			Name: "shortlived", Value: "1", Domain: "chunithm-net-eng.com", Path: "/", HostOnly: true,
			Persistent: true, Expires: now.Add(time.Minute),
		},
	})

	testCases := []struct {
		url    string
		expect []string
	}{
		{"https://chunithm-net-eng.com/mobile/home/", []string{"deep", "host", "domain", "secure", "shortlived"}},
		{"http://chunithm-net-eng.com/mobile/home/", []string{"deep", "host", "domain", "shortlived"}},
		{"https://chunithm-net-eng.com/mobilex", []string{"host", "domain", "secure", "shortlived"}},
		{"https://www.chunithm-net-eng.com/", []string{"domain"}},
		{"https://lng-tgk-aime-gw.am-all.net/common_auth", []string{"other"}},
		{"https://example.com/", nil},
	}
	for _, tc := range testCases {
		got := names(jar.LoadForRequest(mustParse(t, tc.url)))
		if diff := cmp.Diff(tc.expect, got); diff != "" {
			t.Fatalf("%s: %s", tc.url, diff)
		}
	}

	now = now.Add(2 * time.Minute)
	got := names(jar.LoadForRequest(mustParse(t, "http://chunithm-net-eng.com/")))
	require.Equal(t, []string{"host", "domain"}, got)
	require.Len(t, jar.All(), 5)
}

func TestChangeHook(t *testing.T) {
	now := fixedNow
	calls := 0
	jar := New(
		WithClock(func() time.Time { return now }),
		WithChangeHook(func(*Jar) { calls++ }),
	)

	c := Cookie{Name: "_t", Value: "a", Domain: "chunithm-net-eng.com", Path: "/", HostOnly: true}
	jar.SaveFromResponse([]Cookie{c})
	require.Equal(t, 1, calls)

	// identical save is not a change
	jar.SaveFromResponse([]Cookie{c})
	require.Equal(t, 1, calls)

	jar.SaveFromResponse(nil)
	require.Equal(t, 1, calls)

	expiring := Cookie{
		Name: "exp", Value: "1", Domain: "chunithm-net-eng.com", Path: "/",
		Persistent: true, Expires: now.Add(time.Second),
	}
	jar.SaveFromResponse([]Cookie{expiring})
	require.Equal(t, 2, calls)

	jar.LoadForRequest(mustParse(t, "https://chunithm-net-eng.com/"))
	require.Equal(t, 2, calls)

	now = now.Add(time.Minute)
	jar.LoadForRequest(mustParse(t, "https://chunithm-net-eng.com/"))
	require.Equal(t, 3, calls)
}

func TestSetCookies(t *testing.T) {
	jar := New(WithClock(func() time.Time { return fixedNow }))
	u := mustParse(t, "https://chunithm-net-eng.com/mobile/home/index")

	jar.SetCookies(u, []*http.Cookie{
		{Name: "_t", Value: "token"},
		{Name: "userId", Value: "1234", Domain: ".chunithm-net-eng.com", Path: "/", MaxAge: 3600, Secure: true, HttpOnly: true},
		{Name: "foreign", Value: "x", Domain: "example.com"},
		{Name: "expires", Value: "x", Expires: fixedNow.Add(time.Hour)},
	})

	expect := []Cookie{
		{Name: "_t", Value: "token", Domain: "chunithm-net-eng.com", Path: "/mobile/home", HostOnly: true},
		{
			Name: "userId", Value: "1234", Domain: "chunithm-net-eng.com", Path: "/",
			Secure: true, HttpOnly: true, Persistent: true, Expires: fixedNow.Add(time.Hour),
		},
		{
			Name: "expires", Value: "x", Domain: "chunithm-net-eng.com", Path: "/mobile/home", HostOnly: true,
			Persistent: true, Expires: fixedNow.Add(time.Hour),
		},
	}
	if diff := cmp.Diff(expect, jar.All()); diff != "" {
		t.Fatal(diff)
	}

	// max-age < 0 deletes
	jar.SetCookies(u, []*http.Cookie{
		{Name: "userId", Domain: ".chunithm-net-eng.com", Path: "/", MaxAge: -1, Secure: true},
	})
	require.Equal(t, []string{"_t", "expires"}, names(jar.All()))

	sent := jar.Cookies(mustParse(t, "https://chunithm-net-eng.com/mobile/home/playerData"))
	require.Len(t, sent, 2)
	require.Equal(t, "_t", sent[0].Name)
}

func TestHttpClientIntegration(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/set", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "_t", Value: "abc", Path: "/"})
		http.Redirect(w, r, "/echo", http.StatusFound)
	})
	mux.HandleFunc("/echo", func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie("_t")
		if err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, c.Value)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	jar := New()
	client := &http.Client{Jar: jar}
	res, err := client.Get(server.URL + "/set")
	if err != nil {
		t.Fatal(err)
	}
	res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	value, ok := jar.Value(mustParse(t, server.URL), "_t")
	require.True(t, ok)
	require.Equal(t, "abc", value)
}

func randomCookies(r *rand.Rand) []Cookie {
	domains := []string{"chunithm-net-eng.com", "lng-tgk-aime-gw.am-all.net", "am-all.net"}
	paths := []string{"/", "/mobile", "/common_auth"}
	count := r.Intn(8)
	out := make([]Cookie, 0, count)
	for i := 0; i < count; i++ {
		c := Cookie{
			Name:     fmt.Sprintf("c%d", r.Intn(4)),
			Value:    fmt.Sprintf("%x", r.Int63()),
			Domain:   domains[r.Intn(len(domains))],
			Path:     paths[r.Intn(len(paths))],
			HostOnly: r.Intn(2) == 0,
			Secure:   r.Intn(2) == 0,
			HttpOnly: r.Intn(2) == 0,
		}
		if r.Intn(2) == 0 {
			c.Persistent = true
			c.Expires = fixedNow.Add(time.Duration(r.Intn(86400)+1) * time.Second)
		}
		out = append(out, c)
	}
	return out
}

func TestSerializeRoundTrip(t *testing.T) {
	clock := WithClock(func() time.Time { return fixedNow })
	r := rand.New(rand.NewSource(1))

	for i := 0; i < 200; i++ {
		jar := New(clock)
		jar.SaveFromResponse(randomCookies(r))

		text := jar.Serialize()
		restored, err := Deserialize(text, clock)
		if err != nil {
			t.Fatalf("iteration %d: %v\n%s", i, err, text)
		}
		if diff := cmp.Diff(jar.All(), restored.All()); diff != "" {
			t.Fatalf("iteration %d: %s\n%s", i, diff, text)
		}
	}
}

func TestSerializeFormat(t *testing.T) {
	jar := New(WithClock(func() time.Time { return fixedNow }))
	jar.SaveFromResponse([]Cookie{
		{Name: "_t", Value: "token", Domain: "chunithm-net-eng.com", Path: "/", HostOnly: true},
		{
			Name: "clal", Value: "secret", Domain: "am-all.net", Path: "/common_auth",
			Secure: true, HttpOnly: true, Persistent: true, Expires: time.Unix(1735689600, 0),
		},
	})

	expect := "# Netscape HTTP Cookie File\n" +
		"# https://curl.haxx.se/rfc/cookie_spec.html\n" +
		"# This is a generated file! Edit at your own risk.\n" +
		"\n" +
		"chunithm-net-eng.com\tFALSE\t/\tFALSE\t0\t_t\ttoken\n" +
		"#HttpOnly_.am-all.net\tTRUE\t/common_auth\tTRUE\t1735689600\tclal\tsecret\n"
	require.Equal(t, expect, jar.Serialize())
}

func TestDeserialize(t *testing.T) {
	clock := WithClock(func() time.Time { return fixedNow })

	jar, err := Deserialize(
		"# HTTP Cookie File\n"+
			"# a comment\n"+
			"\n"+
			"#HttpOnly_.example.com\tTRUE\t/\tFALSE\t0\tsid\tabc\r\n"+
			"example.com\tfalse\t/x\ttrue\t1706510100\tid\t42\n"+
			"example.com\tFALSE\t/x\tTRUE\t1706510100\tid\t43\n",
		clock,
	)
	if err != nil {
		t.Fatal(err)
	}
	expect := []Cookie{
		{Name: "sid", Value: "abc", Domain: "example.com", Path: "/", HttpOnly: true},
		{
			Name: "id", Value: "43", Domain: "example.com", Path: "/x", HostOnly: true, Secure: true,
			Persistent: true, Expires: time.Unix(1706510100, 0),
		},
	}
	if diff := cmp.Diff(expect, jar.All()); diff != "" {
		t.Fatal(diff)
	}

	testCases := []struct {
		name string
		text string
		line int
	}{
		{"empty", "", 0},
		{"no header", "example.com\tFALSE\t/\tFALSE\t0\ta\tb\n", 0},
		{"few fields", "# Netscape HTTP Cookie File\n\nexample.com\tFALSE\t/\n", 3},
		{"bad bool", "# Netscape HTTP Cookie File\nexample.com\tYES\t/\tFALSE\t0\ta\tb\n", 2},
		{"bad expiry", "# Netscape HTTP Cookie File\nexample.com\tFALSE\t/\tFALSE\tsoon\ta\tb\n", 2},
	}
	for _, tc := range testCases {
		_, err := Deserialize(tc.text)
		var formatErr *FormatError
		require.ErrorAs(t, err, &formatErr, tc.name)
		require.Equal(t, tc.line, formatErr.Line, tc.name)
	}
}

func TestDeserializeExpired(t *testing.T) {
	now := fixedNow
	jar, err := Deserialize(
		"# Netscape HTTP Cookie File\n"+
			"example.com\tFALSE\t/\tFALSE\t1\told\tx\n"+
			"example.com\tFALSE\t/\tFALSE\t0\tsession\tx\n",
		WithClock(func() time.Time { return now }),
	)
	if err != nil {
		t.Fatal(err)
	}
	got := names(jar.LoadForRequest(mustParse(t, "http://example.com/")))
	require.Equal(t, []string{"session"}, got)
}
