// Package workdir implements the Work-Dir Scope: scoped acquisition of
// a per-task working directory, mode-hardened and cleaned up on every
// exit path.
package workdir

import (
	"context"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/genuine-oj/judger/internal/archive"
	pkgerrors "github.com/genuine-oj/judger/pkg/errors"
	"github.com/genuine-oj/judger/pkg/logger"
)

const mode = 0o711

// With creates BASE_DIR/taskID, yields its path to fn, and guarantees
// cleanup afterward — including when fn panics, in which case the panic
// is recovered just long enough to run cleanup and then re-raised, so a
// caller-side exception never leaks the directory.
//
// When retain is true the directory survives for debugging: it is
// packed into a {dir}.tar.zst archive and the loose tree is still
// removed, so BASE_DIR never accumulates raw per-task scratch.
func With(ctx context.Context, baseDir, taskID string, retain bool, fn func(dir string) error) (err error) {
	dir := filepath.Join(baseDir, taskID)
	if mkErr := os.Mkdir(dir, mode); mkErr != nil {
		return pkgerrors.Wrap(mkErr, pkgerrors.JudgeSystemError).WithMessage("failed to init runtime dir")
	}
	if chErr := os.Chmod(dir, mode); chErr != nil {
		_ = os.RemoveAll(dir)
		return pkgerrors.Wrap(chErr, pkgerrors.JudgeSystemError).WithMessage("failed to init runtime dir")
	}

	var panicked interface{}
	defer func() {
		if retain {
			if _, archiveErr := archive.Pack(dir); archiveErr != nil {
				logger.Warn(ctx, "failed to archive retained workdir", zap.Error(archiveErr))
			}
		}
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			cleanupErr := pkgerrors.Wrap(rmErr, pkgerrors.JudgeSystemError).WithMessage("Failed to clean runtime dir")
			if err == nil && panicked == nil {
				err = cleanupErr
			} else {
				logger.Warn(ctx, "failed to clean runtime dir after another error", zap.Error(rmErr))
			}
		}
		if panicked != nil {
			panic(panicked)
		}
	}()

	func() {
		defer func() {
			if r := recover(); r != nil {
				panicked = r
			}
		}()
		err = fn(dir)
	}()
	return err
}
