package config

const (
	defaultKeepBackup        = true
	defaultMaxConcurrency    = 14
	defaultJobTimeoutSeconds = 4 * 60 * 60
	defaultMinFreeGiB        = 1
	defaultCodec             = "aac"
	defaultBitrate           = "96k"
	defaultSampleRate        = 44100
	defaultChannels          = 2
	defaultFFmpegBinary      = "ffmpeg"
	defaultFFprobeBinary     = "ffprobe"
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	defaultHistoryEnabled    = true
	defaultHistoryPath       = "~/.local/share/m4bsweep/history.db"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Sweep: Sweep{
			KeepBackup:        defaultKeepBackup,
			MaxConcurrency:    defaultMaxConcurrency,
			JobTimeoutSeconds: defaultJobTimeoutSeconds,
			MinFreeGiB:        defaultMinFreeGiB,
		},
		Encode: Encode{
			Codec:         defaultCodec,
			Bitrate:       defaultBitrate,
			SampleRate:    defaultSampleRate,
			Channels:      defaultChannels,
			FFmpegBinary:  defaultFFmpegBinary,
			FFprobeBinary: defaultFFprobeBinary,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		History: History{
			Enabled: defaultHistoryEnabled,
			Path:    defaultHistoryPath,
		},
	}
}
