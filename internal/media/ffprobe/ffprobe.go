package ffprobe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// Result represents the parsed output from an ffprobe inspection.
type Result struct {
	Streams  []Stream  `json:"streams"`
	Chapters []Chapter `json:"chapters"`
	Format   Format    `json:"format"`
}

// Stream describes a single stream in the media container.
type Stream struct {
	Index       int               `json:"index"`
	CodecName   string            `json:"codec_name"`
	CodecType   string            `json:"codec_type"`
	CodecTag    string            `json:"codec_tag_string"`
	Duration    string            `json:"duration"`
	BitRate     string            `json:"bit_rate"`
	Width       int               `json:"width"`
	Height      int               `json:"height"`
	SampleRate  string            `json:"sample_rate"`
	Channels    int               `json:"channels"`
	Disposition map[string]int    `json:"disposition"`
	Tags        map[string]string `json:"tags"`
}

// Chapter is a single chapter marker.
type Chapter struct {
	ID        int64             `json:"id"`
	StartTime string            `json:"start_time"`
	EndTime   string            `json:"end_time"`
	Tags      map[string]string `json:"tags"`
}

// Format captures container-level metadata extracted by ffprobe.
type Format struct {
	Filename   string            `json:"filename"`
	NBStreams  int               `json:"nb_streams"`
	Duration   string            `json:"duration"`
	Size       string            `json:"size"`
	BitRate    string            `json:"bit_rate"`
	FormatName string            `json:"format_name"`
	Tags       map[string]string `json:"tags"`
}

// Inspect executes ffprobe against the provided path and decodes the JSON response.
func Inspect(ctx context.Context, binary string, path string) (Result, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return Result{}, errors.New("ffprobe inspect: empty path")
	}

	cmd := exec.CommandContext(ctx, binary, "-v", "error", "-hide_banner", "-show_format", "-show_streams", "-show_chapters", "-of", "json", "--", path)
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return Result{}, fmt.Errorf("ffprobe inspect: %w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return Result{}, fmt.Errorf("ffprobe inspect: %w", err)
	}

	return Parse(output)
}

// Parse decodes an ffprobe JSON document.
func Parse(payload []byte) (Result, error) {
	var result Result
	if err := json.Unmarshal(payload, &result); err != nil {
		return Result{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	return result, nil
}

// FirstAudioStream returns the first stream whose type is audio.
func (r Result) FirstAudioStream() (Stream, bool) {
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, "audio") {
			return stream, true
		}
	}
	return Stream{}, false
}

// VideoStreamCount returns the number of video streams discovered.
// Embedded cover art is reported as a video stream.
func (r Result) VideoStreamCount() int {
	return r.countType("video")
}

// AudioStreamCount returns the number of audio streams discovered.
func (r Result) AudioStreamCount() int {
	return r.countType("audio")
}

// SubtitleStreamCount returns the number of subtitle streams discovered.
func (r Result) SubtitleStreamCount() int {
	return r.countType("subtitle")
}

// DataStreamCount returns the number of generic data streams discovered.
func (r Result) DataStreamCount() int {
	return r.countType("data") + r.countType("attachment")
}

// IsChapterTrack reports whether s is the QuickTime text track the MP4 muxer
// writes alongside chapter markers. ffprobe shows it as data/bin_data with
// the "text" tag.
func (s Stream) IsChapterTrack() bool {
	if !strings.EqualFold(s.CodecType, "data") || !strings.EqualFold(s.CodecTag, "text") {
		return false
	}
	return s.CodecName == "" || strings.EqualFold(s.CodecName, "bin_data")
}

// StrayStreamCount returns the subtitle, data and attachment streams, not
// counting chapter text tracks when the file has chapters.
func (r Result) StrayStreamCount() int {
	count := r.SubtitleStreamCount() + r.DataStreamCount()
	if len(r.Chapters) == 0 {
		return count
	}
	for _, stream := range r.Streams {
		if stream.IsChapterTrack() {
			count--
		}
	}
	return count
}

// RetainedStreams returns the non-audio streams that survive a re-encode, in
// container order.
func (r Result) RetainedStreams() []Stream {
	var out []Stream
	for _, stream := range r.Streams {
		switch strings.ToLower(stream.CodecType) {
		case "audio", "subtitle", "data", "attachment":
			continue
		}
		out = append(out, stream)
	}
	return out
}

// ChapterTitles returns chapter titles in order. Untitled chapters yield "".
func (r Result) ChapterTitles() []string {
	titles := make([]string, len(r.Chapters))
	for i, chapter := range r.Chapters {
		titles[i] = chapter.Title()
	}
	return titles
}

// Title returns the chapter title tag.
func (c Chapter) Title() string {
	for key, value := range c.Tags {
		if strings.EqualFold(key, "title") {
			return value
		}
	}
	return ""
}

// SampleRateHz returns the stream sample rate, or 0 when unavailable.
func (s Stream) SampleRateHz() int {
	rate, err := strconv.Atoi(strings.TrimSpace(s.SampleRate))
	if err != nil || rate < 0 {
		return 0
	}
	return rate
}

// BitRateBps returns the stream bitrate in bits per second, or 0 when unavailable.
func (s Stream) BitRateBps() int64 {
	rate := parseFloat(s.BitRate)
	if math.IsNaN(rate) || rate < 0 {
		return 0
	}
	return int64(rate)
}

// DurationSeconds returns the container duration in seconds, or 0 when unavailable.
func (r Result) DurationSeconds() float64 {
	return parseFloat(r.Format.Duration)
}

// SizeBytes returns the reported container size in bytes, or 0 when unavailable.
func (r Result) SizeBytes() int64 {
	size := parseFloat(r.Format.Size)
	if math.IsNaN(size) || size < 0 {
		return 0
	}
	return int64(size)
}

// BitRate returns the container bitrate in bits per second, or 0 when unavailable.
func (r Result) BitRate() int64 {
	rate := parseFloat(r.Format.BitRate)
	if math.IsNaN(rate) || rate < 0 {
		return 0
	}
	return int64(rate)
}

func (r Result) countType(kind string) int {
	count := 0
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, kind) {
			count++
		}
	}
	return count
}

func parseFloat(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return 0
	}
	if parsed, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return parsed
	}
	return math.NaN()
}
