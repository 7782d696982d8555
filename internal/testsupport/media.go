package testsupport

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"m4bsweep/internal/encode"
	"m4bsweep/internal/media/ffprobe"
)

// Fake audiobooks are small text files whose first line is "codec=<name>".
// FakeInspector and FakeTranscoder understand this format, so the real
// Encoder and Replacer can run against them without ffmpeg.

// WriteBook writes a fake audiobook with the given codec. An empty codec
// writes bytes no inspector can classify.
func WriteBook(t testing.TB, path, codec string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	content := "garbage\n"
	if codec != "" {
		content = "codec=" + codec + "\nchapters=Intro|Part One|Part Two\n" + strings.Repeat("x", 256) + "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// BookCodec reads the codec marker back from a fake audiobook.
func BookCodec(t testing.TB, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	b, err := parseBook(data)
	if err != nil {
		return ""
	}
	return b.codec
}

type book struct {
	codec    string
	bitrate  string
	chapters []string
}

func parseBook(data []byte) (book, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	var b book
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "codec="):
			b.codec = strings.TrimPrefix(line, "codec=")
		case strings.HasPrefix(line, "bitrate="):
			b.bitrate = strings.TrimPrefix(line, "bitrate=")
		case strings.HasPrefix(line, "chapters="):
			b.chapters = strings.Split(strings.TrimPrefix(line, "chapters="), "|")
		}
	}
	if b.codec == "" {
		return book{}, errors.New("invalid data found when processing input")
	}
	return b, nil
}

// FakeInspector answers Inspect from fake audiobook contents.
type FakeInspector struct {
	Calls atomic.Int64
}

// Inspect implements probe.Inspector.
func (f *FakeInspector) Inspect(ctx context.Context, path string) (ffprobe.Result, error) {
	f.Calls.Add(1)
	if err := ctx.Err(); err != nil {
		return ffprobe.Result{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ffprobe.Result{}, err
	}
	b, err := parseBook(data)
	if err != nil {
		return ffprobe.Result{}, err
	}
	audio := ffprobe.Stream{Index: 0, CodecType: "audio", CodecName: b.codec, SampleRate: "22050", Channels: 1}
	if b.codec == "aac" {
		audio.SampleRate = "44100"
		audio.Channels = 2
	}
	if bps, err := encode.ParseBitrate(b.bitrate); err == nil {
		audio.BitRate = fmt.Sprint(bps - 2)
	}
	result := ffprobe.Result{
		Streams: []ffprobe.Stream{
			audio,
			{Index: 1, CodecType: "video", CodecName: "mjpeg", Disposition: map[string]int{"attached_pic": 1}},
		},
		Format: ffprobe.Format{Size: fmt.Sprint(len(data)), Tags: map[string]string{"title": "Book"}},
	}
	for i, title := range b.chapters {
		result.Chapters = append(result.Chapters, ffprobe.Chapter{ID: int64(i), Tags: map[string]string{"title": title}})
	}
	if len(result.Chapters) > 0 {
		// The MP4 muxer mirrors chapters into a QuickTime text track.
		result.Streams = append(result.Streams, ffprobe.Stream{Index: 2, CodecType: "data", CodecName: "bin_data", CodecTag: "text"})
	}
	return result, nil
}

// FakeTranscoder converts fake audiobooks by rewriting the codec marker.
type FakeTranscoder struct {
	// Delay holds each transcode open so concurrency can be observed.
	Delay time.Duration
	// FailPaths makes Transcode fail for inputs whose base name is listed,
	// after writing partial output.
	FailPaths map[string]bool
	// PanicPaths makes Transcode panic for inputs whose base name is listed.
	PanicPaths map[string]bool
	// Block makes Transcode wait for ctx to end.
	Block bool
	// Started is signalled, when non-nil, as each transcode begins.
	Started chan string

	active    atomic.Int64
	maxActive atomic.Int64
	calls     atomic.Int64
	mu        sync.Mutex
	inputs    []string
}

// Transcode implements encode.Transcoder.
func (f *FakeTranscoder) Transcode(ctx context.Context, input, output string, params encode.Params) error {
	f.calls.Add(1)
	now := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		prev := f.maxActive.Load()
		if now <= prev || f.maxActive.CompareAndSwap(prev, now) {
			break
		}
	}
	f.mu.Lock()
	f.inputs = append(f.inputs, input)
	f.mu.Unlock()
	if f.Started != nil {
		f.Started <- input
	}

	base := filepath.Base(input)
	if f.PanicPaths[base] {
		panic("transcoder exploded on " + base)
	}

	data, err := os.ReadFile(input)
	if err != nil {
		return err
	}
	if f.FailPaths[base] {
		_ = os.WriteFile(output, []byte("partial"), 0o644)
		return errors.New("exit status 1: Conversion failed!")
	}
	if f.Block {
		_ = os.WriteFile(output, []byte("partial"), 0o644)
		<-ctx.Done()
		return ctx.Err()
	}
	if f.Delay > 0 {
		select {
		case <-time.After(f.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	source, _ := parseBook(data)
	content := "codec=" + params.Codec + "\nbitrate=" + params.Bitrate + "\nchapters=" + strings.Join(source.chapters, "|") + "\n"
	return os.WriteFile(output, []byte(content), 0o644)
}

// MaxActive is the highest number of simultaneous Transcode calls observed.
func (f *FakeTranscoder) MaxActive() int64 {
	return f.maxActive.Load()
}

// Calls is the number of Transcode invocations.
func (f *FakeTranscoder) Calls() int64 {
	return f.calls.Load()
}

// Inputs returns the input paths seen so far.
func (f *FakeTranscoder) Inputs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.inputs...)
}

// StubMovieDuration replaces the MP4 header check for fake outputs.
func StubMovieDuration(t testing.TB) {
	t.Helper()
	restore := encode.SetMovieDurationForTests(func(string) (time.Duration, error) {
		return time.Second, nil
	})
	t.Cleanup(restore)
}
