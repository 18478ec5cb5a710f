package render

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"montage/internal/logging"
	"montage/internal/services"
)

// Workspace is a scratch directory owned by a single render pass.
type Workspace struct {
	Dir    string
	logger *slog.Logger
}

// NewWorkspace creates a unique directory under root.
func NewWorkspace(root, pass string, logger *slog.Logger) (*Workspace, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "render", "workspace", "create work directory", err)
	}
	dir, err := os.MkdirTemp(root, "montage-"+pass+"-")
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "render", "workspace", "create pass directory", err)
	}
	return &Workspace{Dir: dir, logger: logger}, nil
}

// Path joins name onto the workspace directory.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.Dir, name)
}

// Close removes the workspace. Failures are logged and returned tagged with
// services.ErrResourceCleanup; callers treat them as non-fatal.
func (w *Workspace) Close() error {
	if w == nil || w.Dir == "" {
		return nil
	}
	if err := removeAll(w.Dir); err != nil {
		wrapped := services.Wrap(services.ErrResourceCleanup, "render", "workspace cleanup", w.Dir, err)
		logging.WarnWithContext(w.logger, "workspace cleanup failed", "resource_cleanup",
			logging.String("workspace", w.Dir),
			logging.Error(wrapped),
			logging.String(logging.FieldErrorHint, fmt.Sprintf("remove %s manually", w.Dir)),
			logging.String(logging.FieldImpact, "temporary files remain on disk"),
		)
		return wrapped
	}
	return nil
}

// removeAll is replaced in tests to simulate cleanup failures.
var removeAll = os.RemoveAll
