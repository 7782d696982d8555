package preflight

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"m4bsweep/internal/config"
	"m4bsweep/internal/deps"
)

var statfs = unix.Statfs

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckFreeSpace verifies the filesystem holding path has at least minBytes
// available to unprivileged users. A zero floor always passes.
func CheckFreeSpace(name, path string, minBytes uint64) Result {
	var st unix.Statfs_t
	if err := statfs(path, &st); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	free := uint64(st.Bavail) * uint64(st.Bsize) //nolint:gosec
	detail := fmt.Sprintf("%s available", formatGiB(free))
	if free < minBytes {
		return Result{Name: name, Detail: fmt.Sprintf("%s, need %s", detail, formatGiB(minBytes))}
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckSystemDeps evaluates the ffmpeg and ffprobe binaries named in the config.
// Both the run and check commands use this to avoid duplicating the
// requirements list.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	requirements := []deps.Requirement{
		{
			Name:        "FFmpeg",
			Command:     cfg.Encode.FFmpegBinary,
			Description: "Required for encoding",
		},
		{
			Name:        "FFprobe",
			Command:     cfg.Encode.FFprobeBinary,
			Description: "Required for codec inspection",
		},
	}
	return deps.CheckBinaries(requirements)
}

// CheckEncoder confirms ffmpeg was built with the configured target encoder.
func CheckEncoder(ctx context.Context, cfg *config.Config) deps.Status {
	return deps.CheckEncoder(ctx, cfg.Encode.FFmpegBinary, cfg.Encode.Codec)
}

func formatGiB(n uint64) string {
	return fmt.Sprintf("%.1f GiB", float64(n)/float64(1<<30))
}
