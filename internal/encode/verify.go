package encode

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/alfg/mp4"

	"m4bsweep/internal/media/ffprobe"
	"m4bsweep/internal/services"
)

var movieDuration = mp4MovieDuration

const (
	durationSlack      = 2 * time.Second
	durationSlackRatio = 0.01
	bitrateSlackRatio  = 0.25
)

// mp4MuxerTags are the container tags ffmpeg's MP4 muxer maps to iTunes
// atoms. Freeform keys such as iTunSMPB are not written back and are not
// compared.
var mp4MuxerTags = map[string]bool{
	"title": true, "artist": true, "album_artist": true,
	"album": true, "composer": true, "comment": true, "genre": true,
	"copyright": true, "grouping": true, "lyrics": true, "description": true,
	"synopsis": true, "show": true, "episode_id": true, "network": true,
	"keywords": true, "date": true, "track": true, "disc": true,
	"compilation": true, "media_type": true, "category": true, "podcast": true,
	"sort_name": true, "sort_artist": true, "sort_album_artist": true,
	"sort_album": true, "sort_composer": true, "sort_show": true,
}

func muxerWritesTag(key string) bool {
	return mp4MuxerTags[strings.ToLower(key)]
}

// verify re-inspects the temporary output and compares it with the source.
func (e *Encoder) verify(ctx context.Context, job Job) (Artifact, error) {
	size, err := statSize(job.Temp)
	if err != nil {
		return Artifact{}, services.Wrap(services.ErrExternalTool, stage, "verify", "transcoder produced no output", err)
	}
	if size == 0 {
		return Artifact{}, services.Wrap(services.ErrValidation, stage, "verify", "output is empty", nil)
	}

	result, err := e.inspector.Inspect(ctx, job.Temp)
	if err != nil {
		return Artifact{}, services.Wrap(services.ErrValidation, stage, "verify", "output cannot be inspected", err)
	}
	if err := CompareOutput(job.SourceProbe, result, e.params); err != nil {
		return Artifact{}, services.Wrap(services.ErrValidation, stage, "verify", "output does not match source", err)
	}

	duration, err := movieDuration(job.Temp)
	if err != nil {
		return Artifact{}, services.Wrap(services.ErrValidation, stage, "verify", "output container is unreadable", err)
	}
	if err := compareDuration(job.SourceProbe.DurationSeconds(), duration); err != nil {
		return Artifact{}, services.Wrap(services.ErrValidation, stage, "verify", "output duration differs", err)
	}

	return Artifact{Path: job.Temp, Size: size, Duration: duration, Probe: result}, nil
}

// CompareOutput checks that a converted file carries the target audio format
// and the source's chapters, retained streams, and container metadata.
func CompareOutput(source, output ffprobe.Result, params Params) error {
	audio, ok := output.FirstAudioStream()
	if !ok {
		return errors.New("no audio stream")
	}
	if !strings.EqualFold(audio.CodecName, params.Codec) {
		return fmt.Errorf("audio codec %q, want %q", audio.CodecName, params.Codec)
	}
	if audio.Channels != params.Channels {
		return fmt.Errorf("audio channels %d, want %d", audio.Channels, params.Channels)
	}
	if rate := audio.SampleRateHz(); rate != params.SampleRate {
		return fmt.Errorf("sample rate %d, want %d", rate, params.SampleRate)
	}
	if err := compareBitrate(audio.BitRateBps(), params.Bitrate); err != nil {
		return err
	}
	if n := output.StrayStreamCount(); n != 0 {
		return fmt.Errorf("%d subtitle or data streams remain", n)
	}

	want, got := source.RetainedStreams(), output.RetainedStreams()
	if len(want) != len(got) {
		return fmt.Errorf("%d non-audio streams, want %d", len(got), len(want))
	}
	for i := range want {
		if !strings.EqualFold(want[i].CodecName, got[i].CodecName) || !strings.EqualFold(want[i].CodecType, got[i].CodecType) {
			return fmt.Errorf("non-audio stream %d is %s/%s, want %s/%s", i, got[i].CodecType, got[i].CodecName, want[i].CodecType, want[i].CodecName)
		}
	}

	wantTitles, gotTitles := source.ChapterTitles(), output.ChapterTitles()
	if len(wantTitles) != len(gotTitles) {
		return fmt.Errorf("%d chapters, want %d", len(gotTitles), len(wantTitles))
	}
	for i := range wantTitles {
		if wantTitles[i] != gotTitles[i] {
			return fmt.Errorf("chapter %d titled %q, want %q", i+1, gotTitles[i], wantTitles[i])
		}
	}

	for key := range source.Format.Tags {
		if !muxerWritesTag(key) {
			continue
		}
		if !hasKeyFold(output.Format.Tags, key) {
			return fmt.Errorf("container metadata %q missing", key)
		}
	}
	return nil
}

func hasKeyFold(tags map[string]string, key string) bool {
	for k := range tags {
		if strings.EqualFold(k, key) {
			return true
		}
	}
	return false
}

// compareBitrate skips the check when ffprobe reports no stream bitrate.
func compareBitrate(measured int64, target string) error {
	if measured <= 0 {
		return nil
	}
	want, err := ParseBitrate(target)
	if err != nil {
		return err
	}
	slack := int64(float64(want) * bitrateSlackRatio)
	if measured < want-slack || measured > want+slack {
		return fmt.Errorf("audio bitrate %d b/s, want about %d", measured, want)
	}
	return nil
}

// compareDuration skips the check when the source duration is unknown.
func compareDuration(sourceSeconds float64, output time.Duration) error {
	if math.IsNaN(sourceSeconds) || sourceSeconds <= 0 {
		return nil
	}
	source := time.Duration(sourceSeconds * float64(time.Second))
	slack := time.Duration(float64(source) * durationSlackRatio)
	if slack < durationSlack {
		slack = durationSlack
	}
	diff := output - source
	if diff < 0 {
		diff = -diff
	}
	if diff > slack {
		return fmt.Errorf("output runs %s, source %s", output.Round(time.Millisecond), source.Round(time.Millisecond))
	}
	return nil
}

// mp4MovieDuration reads moov/mvhd from an MP4 file.
func mp4MovieDuration(path string) (time.Duration, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	file, err := mp4.OpenFromReader(f, info.Size())
	if err != nil {
		return 0, err
	}
	if file == nil || file.Moov == nil || file.Moov.Mvhd == nil {
		return 0, fmt.Errorf("%s does not contain a moov/mvhd box", path)
	}
	mvhd := file.Moov.Mvhd
	if mvhd.Timescale == 0 || mvhd.Duration == 0 {
		return 0, fmt.Errorf("%s has an empty movie header", path)
	}
	seconds := float64(mvhd.Duration) / float64(mvhd.Timescale)
	return time.Duration(seconds * float64(time.Second)), nil
}
