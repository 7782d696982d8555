package deps

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"
)

var commandContext = exec.CommandContext

// CheckEncoder reports whether the ffmpeg binary was built with the named
// audio encoder, by scanning `ffmpeg -encoders`.
func CheckEncoder(ctx context.Context, ffmpegBinary, encoder string) Status {
	binary := strings.TrimSpace(ffmpegBinary)
	if binary == "" {
		binary = "ffmpeg"
	}
	result := Status{
		Name:        "FFmpeg " + encoder + " encoder",
		Command:     binary,
		Description: "Required to re-encode audio",
	}

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	output, err := commandContext(checkCtx, binary, "-hide_banner", "-encoders").Output() //nolint:gosec
	if err != nil {
		result.Detail = fmt.Sprintf("list encoders: %v", err)
		return result
	}
	if hasEncoder(string(output), encoder) {
		result.Available = true
		return result
	}
	result.Detail = fmt.Sprintf("encoder %q not listed by %s -encoders", encoder, binary)
	return result
}

var audioEncoderFlags = regexp.MustCompile(`^A[.A-Z]{5}$`)

// hasEncoder matches lines like " A....D aac    AAC (Advanced Audio Coding)".
// The flag legend above the " ------" separator is skipped.
func hasEncoder(listing, encoder string) bool {
	scanner := bufio.NewScanner(strings.NewReader(listing))
	pastLegend := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !pastLegend {
			pastLegend = strings.HasPrefix(line, "------")
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 || !audioEncoderFlags.MatchString(fields[0]) {
			continue
		}
		if fields[1] == encoder {
			return true
		}
	}
	return false
}
