package configutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	BaseUrl  string            `json:"base_url"`
	Rate     float64           `json:"rate"`
	Bypass   bool              `json:"bypass"`
	Headers  map[string]string `json:"headers"`
	Database struct {
		File string `json:"file"`
	} `json:"database"`
}

func writeFile(t testing.TB, path, contents string) {
	err := os.WriteFile(path, []byte(contents), 0600)
	if err != nil {
		t.Fatal(err)
	}
}

func TestReadConfig(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "chuni.json5")

	_, err := ReadConfig[testConfig](name)
	require.True(t, os.IsNotExist(err))

	writeFile(t, name, `{
		// comments are allowed
		base_url: "https://chunithm-net-eng.com",
		rate: 2,
		database: { file: "sessions.db" },
	}`)
	writeFile(t, filepath.Join(dir, "chuni.local.json5"), `{
		rate: 0.5,
		headers: { "x-test": "1" },
	}`)

	config, err := ReadConfig[testConfig](name)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, "https://chunithm-net-eng.com", config.BaseUrl)
	require.Equal(t, 0.5, config.Rate)
	require.Equal(t, "sessions.db", config.Database.File)
	require.Equal(t, map[string]string{"x-test": "1"}, config.Headers)
}

func TestReadWithDefaults(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "chuni.json5")

	defaults := testConfig{BaseUrl: "https://default", Rate: 2}

	config, err := ReadWithDefaults(name, defaults)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, defaults, config)

	writeFile(t, name, `{ base_url: "https://override" }`)
	config, err = ReadWithDefaults(name, defaults)
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, "https://override", config.BaseUrl)
	require.Equal(t, 2.0, config.Rate)

	writeFile(t, name, `{ base_url: `)
	_, err = ReadWithDefaults(name, defaults)
	require.Error(t, err)
}

func TestLocalName(t *testing.T) {
	require.Equal(t, filepath.Join("a", "b.local.json5"), localName(filepath.Join("a", "b.json5")))
	require.Equal(t, filepath.Join("a", "b.local"), localName(filepath.Join("a", "b")))
}
