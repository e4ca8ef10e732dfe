// Package build reports what binary is running. The version can be stamped
// at link time; otherwise it is read from the module build information.
package build

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
)

// Version and Injected are set with -ldflags, for example
//
//	go build -ldflags "-X github.com/amp-labs/amp-timebox/build.Version=v1.4.0"
//
// Injected holds a JSON encoded Info and wins over everything else.
var (
	Version  string //nolint:gochecknoglobals
	Injected string //nolint:gochecknoglobals
)

const devel = "devel"

// Info contains build metadata.
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"` //nolint:tagliatelle
	GitDate   string `json:"git_date"`   //nolint:tagliatelle
	Modified  bool   `json:"modified"`
	GoVersion string `json:"go_version"` //nolint:tagliatelle
}

// Read returns the build information of the running binary.
func Read() Info {
	if info, ok := Parse(Injected); ok {
		return *info
	}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return Info{Version: orDevel(Version)}
	}

	return fromBuildInfo(bi, Version)
}

// Parse deserializes a JSON string into build Info.
// Returns (nil, false) if the input is empty, "{}", or fails to parse.
func Parse(js string) (*Info, bool) {
	if len(js) == 0 || js == "{}" {
		return nil, false
	}

	var info Info

	if err := json.Unmarshal([]byte(js), &info); err != nil {
		slog.Warn("Failed to parse build info from JSON",
			"data", js,
			"error", err)

		return nil, false
	}

	info.Version = orDevel(info.Version)

	return &info, true
}

func fromBuildInfo(bi *debug.BuildInfo, version string) Info {
	if version == "" && bi.Main.Version != "(devel)" {
		version = bi.Main.Version
	}

	info := Info{
		Version:   orDevel(version),
		GoVersion: bi.GoVersion,
	}

	for _, setting := range bi.Settings {
		switch setting.Key {
		case "vcs.revision":
			info.GitCommit = setting.Value
		case "vcs.time":
			info.GitDate = setting.Value
		case "vcs.modified":
			info.Modified = setting.Value == "true"
		}
	}

	return info
}

func orDevel(version string) string {
	if version == "" {
		return devel
	}

	return version
}

// ShortCommit returns the first 12 characters of the commit hash.
func (i Info) ShortCommit() string {
	const short = 12

	if len(i.GitCommit) > short {
		return i.GitCommit[:short]
	}

	return i.GitCommit
}

// String formats the info as "v1.4.0 (0123456789ab, 2025-10-05T12:00:00Z, modified) go1.25.0".
func (i Info) String() string {
	var details []string

	if c := i.ShortCommit(); c != "" {
		details = append(details, c)
	}

	if i.GitDate != "" {
		details = append(details, i.GitDate)
	}

	if i.Modified {
		details = append(details, "modified")
	}

	out := i.Version

	if len(details) > 0 {
		out += fmt.Sprintf(" (%s)", strings.Join(details, ", "))
	}

	if i.GoVersion != "" {
		out += " " + i.GoVersion
	}

	return out
}
