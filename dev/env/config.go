package devenv

// LiveTestConfig is read from dev/.state/chunithm.json5, tests that talk
// to the real portal are skipped when it is missing.
type LiveTestConfig struct {
	// value of the "clal" cookie issued by the aime gateway
	Clal string `json:"clal"`
	// a song id the account has played at least once
	SongID int `json:"song_id"`
}
