package logging

import (
	"os"
)

const (
	DefaultDataDir = "data"
	LogsDir        = "logs"
	LogFileFormat  = "2006-01-02.log"
	TimeFormat     = "2006-01-02 15:04:05"

	// DataDirEnv overrides the base directory the log tree is written under.
	DataDirEnv = "JOBQUEUE_DATA_DIR"
)

const (
	colorReset   = "\033[0m"
	colorRed     = "\033[31m"
	colorGreen   = "\033[32m"
	colorYellow  = "\033[33m"
	colorBlue    = "\033[34m"
	colorMagenta = "\033[35m"
	colorWhite   = "\033[37m"
)

// ProcessName names the service a logger belongs to. It is also the log sub-directory.
type ProcessName string

const (
	JobQueueProcess ProcessName = "jobqueue"
	WorkerProcess   ProcessName = "jobqueue-worker"
	CtlProcess      ProcessName = "jobqueuectl"
	TestProcess     ProcessName = "test"
)

type LoggerConfig struct {
	ProcessName   ProcessName
	IsDevelopment bool
	// LogDir overrides the computed <data>/logs/<process> directory when set.
	LogDir string
	// DisableFile keeps the logger on stdout only (used by the CLI).
	DisableFile bool
}

func NewDefaultConfig(processName ProcessName) LoggerConfig {
	return LoggerConfig{
		ProcessName:   processName,
		IsDevelopment: true,
	}
}

// getBaseDataDir resolves the data directory, preferring JOBQUEUE_DATA_DIR.
func getBaseDataDir() string {
	if dir := os.Getenv(DataDirEnv); dir != "" {
		return dir
	}
	return DefaultDataDir
}
