package config

const (
	defaultDataDir            = "~/.local/share/bookarr"
	defaultDownloadDir        = "~/downloads/audiobooks"
	defaultLibraryDir         = "~/audiobooks"
	defaultLogDir             = "~/.local/share/bookarr/logs"
	defaultAPIBind            = "127.0.0.1:8277"
	defaultABSLibrary         = "audiobooks"
	defaultOpenLibraryBaseURL = "https://openlibrary.org"
	defaultOpenLibraryCovers  = "https://covers.openlibrary.org"
	defaultITunesBaseURL      = "https://itunes.apple.com"
	defaultDelugeHost         = "127.0.0.1"
	defaultDelugePort         = 8112
	defaultDelugePassword     = "deluge"
	defaultDelugeLabel        = "bookarr"
	defaultAutosyncInterval   = 6
	defaultImportPollInterval = 30
	defaultRequestTimeout     = 15
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultNotifyTimeout      = 10
)

// AutosyncIntervals lists the accepted autosync interval values in hours.
var AutosyncIntervals = []int{1, 2, 3, 6, 12, 24}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:     defaultDataDir,
			DownloadDir: defaultDownloadDir,
			LibraryDir:  defaultLibraryDir,
			LogDir:      defaultLogDir,
			APIBind:     defaultAPIBind,
		},
		Audiobookshelf: Audiobookshelf{
			Library: defaultABSLibrary,
		},
		OpenLibrary: OpenLibrary{
			BaseURL:   defaultOpenLibraryBaseURL,
			CoversURL: defaultOpenLibraryCovers,
		},
		ITunes: ITunes{
			Enabled: true,
			BaseURL: defaultITunesBaseURL,
		},
		Deluge: Deluge{
			Host:     defaultDelugeHost,
			Port:     defaultDelugePort,
			Password: defaultDelugePassword,
			Label:    defaultDelugeLabel,
		},
		Selection: Selection{
			PreferExactMatch: true,
		},
		Autosync: Autosync{
			IntervalHours: defaultAutosyncInterval,
		},
		Workflow: Workflow{
			ImportPollInterval:    defaultImportPollInterval,
			RequestTimeoutSeconds: defaultRequestTimeout,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
