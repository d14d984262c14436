package restyutil

import (
	devenv "chuniscrape/dev/env"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// FilesystemOutput writes every dumped exchange into its own file named
// after the message id.
type FilesystemOutput struct {
	directory string
}

// NewFilesystemOutput clears and recreates dir, "<dev_state>" paths are
// resolved against the workspace.
func NewFilesystemOutput(dir string) (FilesystemOutput, error) {
	dir, err := devenv.ResolvePath(dir)
	if err != nil {
		return FilesystemOutput{}, err
	}
	err = os.RemoveAll(dir)
	if err != nil {
		return FilesystemOutput{}, err
	}
	err = os.MkdirAll(dir, 0777)
	if err != nil {
		return FilesystemOutput{}, err
	}
	return FilesystemOutput{directory: dir}, nil
}

func (o FilesystemOutput) Write(id string, contents string) {
	name := filepath.Join(o.directory, fmt.Sprintf("%s.http", id))
	err := os.WriteFile(name, []byte(contents), 0600)
	if err != nil {
		slog.Warn("failed to write message info file", "id", id, "err", err)
	}
}
