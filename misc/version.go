// Package misc holds build related program information.
package misc

import (
	"runtime/debug"
	"sync"
)

const appName = "gcss"

type buildInfo struct {
	version string
	hash    string
}

var readBuildInfo = sync.OnceValue(func() buildInfo {
	bi := buildInfo{version: "(devel)", hash: "unknown"}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return bi
	}
	if v := info.Main.Version; len(v) > 0 {
		bi.version = v
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && len(s.Value) > 0 {
			bi.hash = s.Value
		}
	}
	return bi
})

// GetAppName returns program name used for logger, temporary and report
// file names.
func GetAppName() string {
	return appName
}

// GetVersion returns module version the program was built from.
func GetVersion() string {
	return readBuildInfo().version
}

// GetGitHash returns VCS revision the program was built from.
func GetGitHash() string {
	return readBuildInfo().hash
}

