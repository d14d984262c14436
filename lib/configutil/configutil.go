package configutil

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"github.com/titanous/json5"
)

func splitExt(f string) (string, string) {
	for i := len(f) - 1; i >= 0; i-- {
		if f[i] == '.' {
			return f[0:i], f[i+1:]
		}
	}
	return f, ""
}

func localName(name string) string {
	dirname := filepath.Dir(name)
	prefixname, ext := splitExt(filepath.Base(name))
	if ext == "" {
		return filepath.Join(dirname, fmt.Sprintf("%s.local", prefixname))
	}
	return filepath.Join(dirname, fmt.Sprintf("%s.local.%s", prefixname, ext))
}

func readInto[T any](path string, out *T) (bool, error) {
	contents, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if len(contents) == 0 {
		return false, nil
	}

	var parsed T
	err = json5.Unmarshal(contents, &parsed)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", path, err)
	}
	err = mergo.Merge(out, parsed, mergo.WithOverride)
	if err != nil {
		return false, err
	}
	return true, nil
}

// reads a configuration file, `name` should come with a file extension,
// it will automatically be lopped off to produce the other extensions.
// this function will merge the following files, where higher number is more prioritized.
// 1. <name>.<ext>
// 2. <name>.local.<ext>
func ReadConfig[T any](name string) (T, error) {
	var out T
	return out, readLayers(name, &out)
}

// ReadWithDefaults is ReadConfig layered on top of `defaults`, fields
// left empty by the files keep their default value. a missing file
// is not an error here.
func ReadWithDefaults[T any](name string, defaults T) (T, error) {
	out := defaults
	err := readLayers(name, &out)
	if os.IsNotExist(err) {
		return defaults, nil
	}
	return out, err
}

func readLayers[T any](name string, out *T) error {
	found, err := readInto(name, out)
	if err != nil {
		return err
	}

	local := localName(name)
	foundLocal, err := readInto(local, out)
	if err != nil {
		return err
	}
	if foundLocal {
		slog.Debug("merging config with local overrides", "local", local)
	}

	if !found && !foundLocal {
		return os.ErrNotExist
	}
	return nil
}

// ReadConfig but it recursively goes up the filesystem until the root
// to find a configuration file matching the name.
func ReadRecursively[T any](name string) (T, error) {
	var defaultOut T

	root, err := filepath.Abs("/")
	if err != nil {
		return defaultOut, err
	}
	current, err := os.Getwd()
	if err != nil {
		return defaultOut, err
	}

	for current != root {
		config, err := ReadConfig[T](filepath.Join(current, name))
		if os.IsNotExist(err) {
			current = filepath.Join(current, "..")
			continue
		}
		if err != nil {
			return defaultOut, err
		}

		return config, nil
	}

	return defaultOut, os.ErrNotExist
}
