package encode

import (
	"fmt"
	"strconv"
	"strings"

	"m4bsweep/internal/config"
)

// Params describes the target audio format.
type Params struct {
	Codec      string
	Bitrate    string
	SampleRate int
	Channels   int
}

// ParamsFromConfig extracts the target format from a resolved config.
func ParamsFromConfig(cfg *config.Config) Params {
	return Params{
		Codec:      cfg.Encode.Codec,
		Bitrate:    cfg.Encode.Bitrate,
		SampleRate: cfg.Encode.SampleRate,
		Channels:   cfg.Encode.Channels,
	}
}

func (p Params) sampleRateArg() string {
	return strconv.Itoa(p.SampleRate)
}

func (p Params) channelsArg() string {
	return strconv.Itoa(p.Channels)
}

// ParseBitrate converts "96k" or "96000" to bits per second.
func ParseBitrate(value string) (int64, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	multiplier := int64(1)
	if trimmed, ok := strings.CutSuffix(value, "k"); ok {
		value, multiplier = trimmed, 1000
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid bitrate %q", value)
	}
	return n * multiplier, nil
}
