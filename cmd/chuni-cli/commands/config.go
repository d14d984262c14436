package commands

import (
	"chuniscrape/lib/configutil"
	configlibsql "chuniscrape/lib/configutil/libsql"
	"chuniscrape/lib/restyutil"
	"chuniscrape/lib/scrapers/chunithm/core"
	"time"
)

type Config struct {
	Database configlibsql.Struct `json:"database"`
	// user the commands act on when --user is not given
	DefaultUser string `json:"default_user"`

	BaseUrl           string  `json:"base_url"`
	AuthUrl           string  `json:"auth_url"`
	UserAgent         string  `json:"user_agent"`
	CloudflareBypass  bool    `json:"cloudflare_bypass"`
	RequestsPerSecond float64 `json:"requests_per_second"`
	// raw http exchanges are written here when --verbose is set, the
	// directory is emptied on every run
	DumpDir string `json:"debug_dump_dir"`

	// how long a restored client stays cached, in seconds
	CacheTTL int `json:"cache_ttl"`
}

var defaultConfig = Config{
	Database:    configlibsql.Struct{File: "chuni-sessions.db"},
	DefaultUser: "default",
	CacheTTL:    15 * 60,
}

func loadConfig(path string) (Config, error) {
	return configutil.ReadWithDefaults(path, defaultConfig)
}

func (c Config) clientOptions(verbose bool) (core.ClientOptions, error) {
	opts := core.ClientOptions{
		BaseUrl:           c.BaseUrl,
		AuthUrl:           c.AuthUrl,
		UserAgent:         c.UserAgent,
		CloudflareBypass:  c.CloudflareBypass,
		RequestsPerSecond: c.RequestsPerSecond,
	}
	if verbose && c.DumpDir != "" {
		output, err := restyutil.NewFilesystemOutput(c.DumpDir)
		if err != nil {
			return core.ClientOptions{}, err
		}
		opts.DebugOutput = output
	}
	return opts, nil
}

func (c Config) cacheTTL() time.Duration {
	return time.Duration(c.CacheTTL) * time.Second
}
