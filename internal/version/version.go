// Package version provides build version information and runtime metadata.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
	"time"
)

var (
	// These are set via ldflags at build time
	Version = ""
	Commit  = ""
	Date    = ""

	once sync.Once
)

// Build is the structured form served by the version endpoint.
type Build struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
	Go      string `json:"go"`
}

// ensureInitialized fills unset fields from the binary's embedded build
// info, so a plain `go install` still reports something useful.
func ensureInitialized() {
	once.Do(func() {
		if Date == "" {
			Date = time.Now().Format("2006-01-02")
		}
		info, ok := debug.ReadBuildInfo()
		if Version == "" {
			Version = "dev"
			if ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
				Version = info.Main.Version
			}
		}
		if Commit == "" {
			Commit = "unknown"
			if ok {
				for _, s := range info.Settings {
					if s.Key == "vcs.revision" && len(s.Value) >= 7 {
						Commit = s.Value[:7]
					}
				}
			}
		}
	})
}

// Current returns the structured build description.
func Current() Build {
	ensureInitialized()
	return Build{
		Name:    "claude-token-share",
		Version: Version,
		Commit:  Commit,
		Date:    Date,
		Go:      runtime.Version(),
	}
}

// Info returns a one-line human-readable build description.
func Info() string {
	b := Current()
	return fmt.Sprintf("%s %s (commit: %s, built: %s, %s/%s)",
		b.Name, b.Version, b.Commit, b.Date, runtime.GOOS, runtime.GOARCH)
}
