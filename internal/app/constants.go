package app

const (
	Name        = "jenkinstray"
	DBFilename  = "history.db"
	LogFilename = "app.log"
)

var (
	// Version is filled by ldflags in release builds.
	Version = "dev"
	// BuildDate is filled by ldflags in release builds.
	BuildDate = ""
)
