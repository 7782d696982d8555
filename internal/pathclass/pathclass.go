// Package pathclass decides what a path means to a sweep: a file to consider,
// a byproduct of an earlier run, or something to ignore.
package pathclass

import (
	"path/filepath"
	"strings"
)

// Class is the classification of a single path.
type Class int

const (
	Ineligible Class = iota
	Eligible
	TransientArtifact
	BackupArtifact
)

const (
	// Extension is the container extension the sweep operates on.
	Extension = ".m4b"

	tempMarker   = ".tmp"
	backupMarker = ".orig"
	hiddenPrefix = "."
	appleDouble  = "._"
)

func (c Class) String() string {
	switch c {
	case Eligible:
		return "eligible"
	case TransientArtifact:
		return "temporary"
	case BackupArtifact:
		return "backup"
	default:
		return "ineligible"
	}
}

// Classify inspects only the base name of path.
func Classify(path string) Class {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	if !strings.EqualFold(ext, Extension) {
		return Ineligible
	}
	if strings.HasPrefix(base, appleDouble) {
		return Ineligible
	}
	stem := strings.TrimSuffix(base, ext)
	lowerStem := strings.ToLower(stem)
	if strings.HasPrefix(stem, hiddenPrefix) && strings.HasSuffix(lowerStem, tempMarker) && len(stem) > len(hiddenPrefix)+len(tempMarker) {
		return TransientArtifact
	}
	if strings.HasSuffix(lowerStem, backupMarker) && len(stem) > len(backupMarker) {
		return BackupArtifact
	}
	if stem == "" || stem == hiddenPrefix {
		return Ineligible
	}
	return Eligible
}

// TempPath returns the hidden sibling that receives encoder output for path.
// The result always classifies as TransientArtifact.
func TempPath(path string) string {
	dir, stem, ext := split(path)
	return filepath.Join(dir, hiddenPrefix+stem+tempMarker+ext)
}

// BackupPath returns the sibling that holds the original once it is replaced.
// The result always classifies as BackupArtifact.
func BackupPath(path string) string {
	dir, stem, ext := split(path)
	return filepath.Join(dir, stem+backupMarker+ext)
}

// OriginalForBackup maps a backup artifact back to the path it preserves.
func OriginalForBackup(path string) (string, bool) {
	if Classify(path) != BackupArtifact {
		return "", false
	}
	dir, stem, ext := split(path)
	return filepath.Join(dir, stem[:len(stem)-len(backupMarker)]+ext), true
}

// OriginalForTemp maps a temporary artifact back to the path it was converting.
func OriginalForTemp(path string) (string, bool) {
	if Classify(path) != TransientArtifact {
		return "", false
	}
	dir, stem, ext := split(path)
	return filepath.Join(dir, stem[len(hiddenPrefix):len(stem)-len(tempMarker)]+ext), true
}

func split(path string) (dir, stem, ext string) {
	dir = filepath.Dir(path)
	base := filepath.Base(path)
	ext = filepath.Ext(base)
	stem = strings.TrimSuffix(base, ext)
	return dir, stem, ext
}
