// Package scan walks a sweep root and sorts what it finds into conversion
// candidates and artifacts left by earlier runs.
package scan

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"m4bsweep/internal/fileutil"
	"m4bsweep/internal/logging"
	"m4bsweep/internal/pathclass"
	"m4bsweep/internal/replace"
)

// Candidate is an eligible file discovered under the root.
type Candidate struct {
	Path string
	Size int64
}

// Artifact is a temporary or backup file from a previous run.
type Artifact struct {
	Path     string
	Class    pathclass.Class
	Original string
	Size     int64
	// Orphaned marks a backup whose original is gone, as after a crash
	// between the two renames of a replacement.
	Orphaned bool
}

// Result lists everything a scan found, each slice sorted by path.
type Result struct {
	Root       string
	Candidates []Candidate
	Temps      []Artifact
	Backups    []Artifact
	// Unreadable counts directories or entries that could not be read.
	Unreadable int
}

// Scan walks root recursively. Only regular files are considered; symlinks are
// not followed. Unreadable subdirectories are logged and skipped.
func Scan(ctx context.Context, root string, logger *slog.Logger) (Result, error) {
	logger = logging.NewComponentLogger(logger, "scan")
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return Result{}, err
	}
	result := Result{Root: absRoot}

	walkErr := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == absRoot {
				return err
			}
			result.Unreadable++
			logging.WarnWithContext(logger, "cannot read path during scan", "scan_unreadable",
				logging.String(logging.FieldPath, path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check permissions on the directory"),
				logging.String(logging.FieldImpact, "files below this path are not converted"),
			)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		class := pathclass.Classify(path)
		if class == pathclass.Ineligible {
			return nil
		}
		var size int64
		if info, infoErr := d.Info(); infoErr == nil {
			size = info.Size()
		}

		switch class {
		case pathclass.Eligible:
			result.Candidates = append(result.Candidates, Candidate{Path: path, Size: size})
		case pathclass.TransientArtifact:
			original, _ := pathclass.OriginalForTemp(path)
			result.Temps = append(result.Temps, Artifact{Path: path, Class: class, Original: original, Size: size})
		case pathclass.BackupArtifact:
			original, _ := pathclass.OriginalForBackup(path)
			_, statErr := os.Lstat(original)
			result.Backups = append(result.Backups, Artifact{
				Path:     path,
				Class:    class,
				Original: original,
				Size:     size,
				Orphaned: errors.Is(statErr, fs.ErrNotExist),
			})
		}
		return nil
	})
	if walkErr != nil {
		return Result{}, walkErr
	}

	sort.Slice(result.Candidates, func(i, j int) bool { return result.Candidates[i].Path < result.Candidates[j].Path })
	sortArtifacts(result.Temps)
	sortArtifacts(result.Backups)

	for _, temp := range result.Temps {
		logging.WarnWithContext(logger, "stale temporary file from an interrupted run", "stale_temp",
			logging.String(logging.FieldPath, temp.Path),
			logging.String("original", temp.Original),
			logging.String(logging.FieldErrorHint, "rerun with --clean-temp to remove it"),
			logging.String(logging.FieldImpact, "disk space held by partial output"),
		)
	}
	for _, backup := range result.Backups {
		if backup.Orphaned {
			recovery := replace.RecoveryError{Original: backup.Original, Backup: backup.Path}
			logging.WarnWithContext(logger, "backup has no original beside it", "orphaned_backup",
				logging.String(logging.FieldPath, backup.Path),
				logging.String("original", backup.Original),
				logging.String(logging.FieldErrorHint, recovery.Hint()),
				logging.String(logging.FieldImpact, "audiobook is only reachable through its backup"),
			)
			continue
		}
		logger.Debug("backup artifact present",
			logging.String(logging.FieldPath, backup.Path),
			logging.String("original", backup.Original),
		)
	}
	logger.Info("scan complete",
		logging.String("root", absRoot),
		logging.Int("candidates", len(result.Candidates)),
		logging.Int("stale_temps", len(result.Temps)),
		logging.Int("backups", len(result.Backups)),
	)
	return result, nil
}

// CleanTemps removes stale temporary artifacts. Only paths that still classify
// as temporary artifacts are touched.
func CleanTemps(ctx context.Context, temps []Artifact, logger *slog.Logger) (int, error) {
	logger = logging.NewComponentLogger(logger, "scan")
	removed := 0
	var errs []error
	for _, temp := range temps {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if pathclass.Classify(temp.Path) != pathclass.TransientArtifact {
			continue
		}
		if err := fileutil.RemoveIfExists(temp.Path); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
		logger.Info("removed stale temporary file", logging.String(logging.FieldPath, temp.Path))
	}
	return removed, errors.Join(errs...)
}

func sortArtifacts(items []Artifact) {
	sort.Slice(items, func(i, j int) bool { return items[i].Path < items[j].Path })
}
