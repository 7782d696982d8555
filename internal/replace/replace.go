// Package replace swaps a verified temporary file into the place of its
// original. It is the only code that renames or deletes an original.
package replace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"m4bsweep/internal/fileutil"
	"m4bsweep/internal/logging"
	"m4bsweep/internal/pathclass"
	"m4bsweep/internal/services"
)

const stage = "replace"

// ErrBackupExists reports that the backup path is already occupied.
var ErrBackupExists = errors.New("backup already exists")

// RecoveryError reports a failure after the original was moved to its backup
// path and could not be moved back.
type RecoveryError struct {
	Original string
	Backup   string
	Err      error
}

func (e *RecoveryError) Error() string {
	return fmt.Sprintf("original preserved at %s but %s is missing: %v", e.Backup, e.Original, e.Err)
}

func (e *RecoveryError) Unwrap() error { return e.Err }

// Hint is the manual recovery instruction for the operator.
func (e *RecoveryError) Hint() string {
	return fmt.Sprintf("restore with: mv %q %q", e.Backup, e.Original)
}

// Result describes a completed replacement.
type Result struct {
	// Backup is the preserved original, empty when backups are disabled.
	Backup string
}

// Replacer performs the rename sequence for one file at a time.
type Replacer struct {
	logger *slog.Logger
}

// New builds a Replacer.
func New(logger *slog.Logger) *Replacer {
	return &Replacer{logger: logging.NewComponentLogger(logger, stage)}
}

// CheckBackupFree fails when the backup path for original is occupied.
func CheckBackupFree(original string) error {
	backup := pathclass.BackupPath(original)
	exists, err := fileutil.Exists(backup)
	if err != nil {
		return services.Wrap(services.ErrTransient, stage, "check backup", backup, err)
	}
	if exists {
		return services.Wrap(services.ErrValidation, stage, "check backup", backup, ErrBackupExists)
	}
	return nil
}

// Replace moves temp into original's path.
//
// The original is first renamed to its backup path, then temp is renamed into
// place. Without keepBackup the backup is deleted only after the new file is
// in place, so a crash never leaves the original path empty with no copy of
// the original. Any failure before the second rename leaves the original where
// it was; temp is removed on every failure.
func (r *Replacer) Replace(ctx context.Context, original, temp string, keepBackup bool) (Result, error) {
	logger := logging.WithContext(ctx, r.logger)
	backup := pathclass.BackupPath(original)

	if marker := services.ContextMarker(ctx); marker != nil {
		r.discard(logger, temp)
		return Result{}, services.Wrap(marker, stage, "start", "replacement aborted before touching the original", ctx.Err())
	}
	if err := CheckBackupFree(original); err != nil {
		r.discard(logger, temp)
		return Result{}, err
	}

	if err := fileutil.Rename(original, backup); err != nil {
		r.discard(logger, temp)
		return Result{}, services.Wrap(classify(err), stage, "backup original", "original left in place", err)
	}

	if err := fileutil.Rename(temp, original); err != nil {
		r.discard(logger, temp)
		if restoreErr := fileutil.Rename(backup, original); restoreErr != nil {
			recovery := &RecoveryError{Original: original, Backup: backup, Err: err}
			logging.ErrorWithContext(logger, "replacement failed after backup; manual recovery required", "replace_recovery_required",
				logging.String("backup_path", backup),
				logging.Error(err),
				logging.String("restore_error", restoreErr.Error()),
				logging.String(logging.FieldErrorHint, recovery.Hint()),
			)
			return Result{}, services.Wrap(classify(err), stage, "install converted file", "manual recovery required", recovery)
		}
		return Result{}, services.Wrap(classify(err), stage, "install converted file", "original restored from backup", err)
	}

	if err := fileutil.SyncDir(filepath.Dir(original)); err != nil {
		logger.Debug("directory sync failed", logging.Error(err))
	}

	if keepBackup {
		return Result{Backup: backup}, nil
	}
	if err := fileutil.RemoveIfExists(backup); err != nil {
		logging.WarnWithContext(logger, "converted file installed but backup could not be removed", "backup_remove_failed",
			logging.String("backup_path", backup),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "delete the .orig file by hand"),
			logging.String(logging.FieldImpact, "original kept as backup"),
		)
		return Result{Backup: backup}, nil
	}
	return Result{}, nil
}

func (r *Replacer) discard(logger *slog.Logger, temp string) {
	if err := fileutil.RemoveIfExists(temp); err != nil {
		logger.Warn("failed to remove temporary file",
			logging.String("temp_path", temp),
			logging.Error(err),
			logging.String(logging.FieldEventType, "temp_cleanup_failed"),
			logging.String(logging.FieldErrorHint, "rerun with --clean-temp"),
			logging.String(logging.FieldImpact, "hidden temporary file left on disk"),
		)
	}
}

func classify(err error) error {
	if fileutil.IsCrossDevice(err) {
		return services.ErrConfiguration
	}
	return services.ErrTransient
}
