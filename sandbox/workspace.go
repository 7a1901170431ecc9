package sandbox

import (
	"fmt"
	"path/filepath"

	"go.uber.org/zap"
)

// workspace is the scoped temporary directory backing one interpreter
// invocation. It is created once per run and removed on every exit path
// through Close, which callers defer immediately after acquisition.
type workspace struct {
	dir    string
	fs     FileSystem
	logger *zap.Logger
}

func newWorkspace(fs FileSystem, root string, logger *zap.Logger) (*workspace, error) {
	dir, err := fs.MkdirTemp(root, "runbox-exec-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}
	return &workspace{dir: dir, fs: fs, logger: logger}, nil
}

// Dir returns the workspace directory path.
func (w *workspace) Dir() string {
	return w.dir
}

// Path resolves name inside the workspace.
func (w *workspace) Path(name string) string {
	return filepath.Join(w.dir, name)
}

// Close removes the workspace. Removal failure is logged and never
// surfaced to the caller.
func (w *workspace) Close() {
	if err := w.fs.RemoveAll(w.dir); err != nil {
		w.logger.Error("failed to remove workspace", zap.String("path", w.dir), zap.Error(err))
	}
}
