package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
)

type step struct {
	name string
	run  func() error
}

var steps = []step{
	{name: "session database", run: CreateSessionDB},
	{name: "config templates", run: CreateConfigTemplates},
}

func prepareState(recreate bool) error {
	if _, err := os.Stat("go.mod"); os.IsNotExist(err) {
		return fmt.Errorf("run this from the repository root, next to go.mod")
	}
	if recreate {
		if err := os.RemoveAll("dev/.state"); err != nil {
			return err
		}
	}
	return os.MkdirAll("dev/.state", 0777)
}

func main() {
	recreate := flag.Bool("recreate", false, "wipe dev/.state before creating it again")
	flag.Parse()

	err := prepareState(*recreate)
	if err != nil {
		slog.Error("failed to prepare dev/.state", "err", err)
		os.Exit(1)
	}
	for _, s := range steps {
		err := s.run()
		if err != nil {
			slog.Error("dev setup step failed", "step", s.name, "err", err)
			os.Exit(1)
		}
	}
	PrintConfigLocations()
}
