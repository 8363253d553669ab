// cmd/aletheia/main.go
package main

import (
	"errors"
	"log"
	"os"

	"github.com/mwiater/aletheia/internal/appconfig"
	cmd "github.com/mwiater/aletheia/internal/cli"
	"github.com/mwiater/aletheia/internal/logging"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	loadConfig     = appconfig.Load
	initLogging    = func(path string) error { return logging.Init(path, true) }
	closeLogging   = logging.Close
	setVersionInfo = cmd.SetVersionInfo
	executeCmd     = cmd.Execute
)

// main loads the configuration far enough to route logging, then delegates
// to the cobra root command. Missing configuration is not fatal; the root
// command falls back to defaults.
func main() {
	cfg, err := loadConfig("")
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Printf("config: %v", err)
		}
		cfg = appconfig.Defaults()
	}
	if err := initLogging(cfg.LogFilePath()); err != nil {
		log.Printf("logging: %v", err)
	}
	defer closeLogging()

	setVersionInfo(version, commit, date)
	executeCmd()
}
