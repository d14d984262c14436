package main

import (
	devenv "chuniscrape/dev/env"
	sessiondb "chuniscrape/lib/sessionstore/db"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

func createDb(filename, schema string) error {
	dbPath, err := devenv.ResolvePath(filepath.Join("<dev_state>", filename))
	if err != nil {
		return err
	}

	_, err = os.Stat(dbPath)
	if err == nil {
		fmt.Println("database already created at", dbPath)
		return nil
	}

	fmt.Println("creating database at", dbPath)
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return err
	}
	defer db.Close()
	_, err = db.Exec(schema)
	return err
}

func CreateSessionDB() error {
	return createDb("sessions.db", sessiondb.Schema)
}

const liveTestTemplate = `{
  // the "clal" cookie from https://lng-tgk-aime-gw.am-all.net after
  // logging in, tests against the real portal are skipped without it
  clal: "",
  // any song the account has played
  song_id: 428,
}
`

const cliTemplate = `{
  database: {
    file: "<dev_state>/sessions.db",
  },
  default_user: "dev",
  requests_per_second: 2,
  debug_dump_dir: "<dev_state>/http",
}
`

func writeTemplate(filename, contents string) error {
	path, err := devenv.GetStateFilePath(filename)
	if err != nil {
		return err
	}
	_, err = os.Stat(path)
	if err == nil {
		fmt.Println("config already exists at", path)
		return nil
	}
	fmt.Println("writing config template to", path)
	return os.WriteFile(path, []byte(contents), 0600)
}

func CreateConfigTemplates() error {
	err := writeTemplate("chunithm.json5", liveTestTemplate)
	if err != nil {
		return err
	}
	return writeTemplate("chuni.json5", cliTemplate)
}

func PrintConfigLocations() {
	slog.Info("fill in dev/.state/chunithm.json5 to run the live tests, `go run ./cmd/chuni-cli --config dev/.state/chuni.json5` uses the dev session database.")
}
