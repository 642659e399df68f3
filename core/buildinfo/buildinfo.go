// Package buildinfo reports what binary is running.
package buildinfo

import "runtime/debug"

// Set with -ldflags "-X github.com/m3rciful/menubot/core/buildinfo.Version=v0.3.0" and
// likewise Commit and Date (RFC3339). Unset values fall back to the VCS stamp
// the go tool embeds.
var (
	Version = ""
	Commit  = ""
	Date    = ""
)

// Info is the resolved build identity.
type Info struct {
	Version string
	Commit  string
	Date    string
	// Modified is true for builds from a dirty work tree.
	Modified bool
}

// Read resolves the build identity.
func Read() Info {
	info, _ := debug.ReadBuildInfo()
	return resolve(Info{Version: Version, Commit: Commit, Date: Date}, info)
}

func resolve(in Info, bi *debug.BuildInfo) Info {
	if bi != nil {
		if in.Version == "" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
			in.Version = bi.Main.Version
		}
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				if in.Commit == "" {
					in.Commit = shortRev(s.Value)
				}
			case "vcs.time":
				if in.Date == "" {
					in.Date = s.Value
				}
			case "vcs.modified":
				in.Modified = s.Value == "true"
			}
		}
	}
	if in.Version == "" {
		in.Version = "dev"
	}
	if in.Commit == "" {
		in.Commit = "local"
	}
	return in
}

func shortRev(rev string) string {
	if len(rev) > 12 {
		return rev[:12]
	}
	return rev
}

// String renders "version (commit)", marking dirty builds.
func (i Info) String() string {
	s := i.Version + " (" + i.Commit
	if i.Modified {
		s += "+dirty"
	}
	return s + ")"
}
