package app

const (
	Name           = "simlink"
	SourceURL      = "https://git.skobk.in/skobkin/simlink"
	ConfigFilename = "config.json"
	EnvFilename    = ".env"
	DBFilename     = "simlink.db"
	LogFilename    = "simlink.log"

	// KeepSessions bounds the replay session catalog pruned on startup.
	KeepSessions = 200
)
