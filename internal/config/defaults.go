package config

import "emblem/internal/badges"

const (
	defaultDataDir            = "~/.local/share/emblem"
	defaultLogDir             = "~/.local/share/emblem/logs"
	defaultAPIBind            = "127.0.0.1:7519"
	defaultRequestTimeout     = 30
	defaultTickInterval       = 60
	defaultJobConcurrency     = 2
	defaultItemConcurrency    = 4
	defaultItemTimeout        = 300
	defaultErrorRetryInterval = 10
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultReviewSource       = "imdb"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Jellyfin: Jellyfin{
			RequestTimeout: defaultRequestTimeout,
		},
		Render: Render{
			RequestTimeout: defaultRequestTimeout,
		},
		Badges: badges.Options{
			Audio:      badges.Audio{Enabled: true, ShowCodec: true},
			Resolution: badges.Resolution{Enabled: true},
			Review:     badges.Review{Source: defaultReviewSource},
		},
		Scheduler: Scheduler{
			TickInterval:       defaultTickInterval,
			JobConcurrency:     defaultJobConcurrency,
			ItemConcurrency:    defaultItemConcurrency,
			ItemTimeout:        defaultItemTimeout,
			ErrorRetryInterval: defaultErrorRetryInterval,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
