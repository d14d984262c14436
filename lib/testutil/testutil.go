package testutil

import (
	devenv "chuniscrape/dev/env"
	"chuniscrape/lib/telemetry"
	"database/sql"
	"fmt"
	"strings"
	"testing"

	_ "modernc.org/sqlite"
)

type ServiceParams struct {
	Name string
	// if unspecified, the database is left empty
	DbSchema string
	// if unspecified, it will use `:memory:`
	DbPath string
}

type ServiceResult struct {
	DB *sql.DB
}

func SetupService(t testing.TB, params ServiceParams) (ServiceResult, func()) {
	telemetryCleanup := telemetry.SetupForTesting(fmt.Sprintf("test:%s", params.Name))

	dbpath := ":memory:"
	if params.DbPath != "" && params.DbPath != ":memory:" {
		var err error
		dbpath, err = devenv.ResolvePath(params.DbPath)
		if err != nil {
			t.Fatal(err)
		}
	}
	sqlite, err := sql.Open("sqlite", dbpath)
	if err != nil {
		t.Fatal(err)
	}
	// every new connection to :memory: opens a different database
	sqlite.SetMaxOpenConns(1)

	if params.DbSchema != "" {
		_, err = sqlite.Exec(params.DbSchema)
		if err != nil && !strings.Contains(err.Error(), "already exists") {
			t.Fatal(err)
		}
	}

	return ServiceResult{DB: sqlite}, func() {
		sqlite.Close()
		telemetryCleanup()
	}
}
