package config

const (
	defaultWorkDir             = "~/.local/share/montage/work"
	defaultOutputDir           = "~/.local/share/montage/output"
	defaultLogDir              = "~/.local/share/montage/logs"
	defaultEnvFile             = ".env"
	defaultFFmpegBinary        = "ffmpeg"
	defaultFFprobeBinary       = "ffprobe"
	defaultVideoCodec          = "libx264"
	defaultAudioCodec          = "aac"
	defaultPreset              = "medium"
	defaultCRF                 = 20
	defaultPixelFormat         = "yuv420p"
	defaultDiagnosticTailBytes = 2000
	defaultBoxWidth            = 665
	defaultBoxHeight           = 435
	defaultYFraction           = 0.6
	defaultTimelinePrefixChars = 50
	defaultMaxCharsPerLine     = 42
	defaultLineOverflow        = 1.25
	defaultMinCueDuration      = 0.8
	defaultCuePrefixChars      = 30
	defaultFontSize            = 12
	defaultPrimaryColour       = "&H00C2CC"
	defaultBackColour          = "&H80000000"
	defaultShadow              = 1
	defaultAssetConcurrency    = 4
	defaultAssetTimeoutSeconds = 120
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir:   defaultWorkDir,
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
			EnvFile:   defaultEnvFile,
		},
		FFmpeg: FFmpeg{
			Binary:              defaultFFmpegBinary,
			FFprobeBinary:       defaultFFprobeBinary,
			VideoCodec:          defaultVideoCodec,
			AudioCodec:          defaultAudioCodec,
			Preset:              defaultPreset,
			CRF:                 defaultCRF,
			PixelFormat:         defaultPixelFormat,
			DiagnosticTailBytes: defaultDiagnosticTailBytes,
		},
		Composition: Composition{
			BoxWidth:         defaultBoxWidth,
			BoxHeight:        defaultBoxHeight,
			YFraction:        defaultYFraction,
			MatchPrefixChars: defaultTimelinePrefixChars,
		},
		Subtitles: Subtitles{
			BurnIn:           true,
			MaxCharsPerLine:  defaultMaxCharsPerLine,
			LineOverflow:     defaultLineOverflow,
			MinCueDuration:   defaultMinCueDuration,
			MatchPrefixChars: defaultCuePrefixChars,
			FontSize:         defaultFontSize,
			PrimaryColour:    defaultPrimaryColour,
			BackColour:       defaultBackColour,
			Outline:          0,
			Shadow:           defaultShadow,
		},
		Assets: Assets{
			Concurrency:    defaultAssetConcurrency,
			TimeoutSeconds: defaultAssetTimeoutSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		History: History{
			Enabled: true,
		},
	}
}
