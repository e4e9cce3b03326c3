// Package buildinfo holds the name and version of the tag authenticator.
// The version fields are stamped by the release build:
//
//	go build -ldflags "\
//	  -X github.com/nedpals/davi-tagauth/buildinfo.Version=1.0.0 \
//	  -X github.com/nedpals/davi-tagauth/buildinfo.Commit=$(git rev-parse --short HEAD) \
//	  -X github.com/nedpals/davi-tagauth/buildinfo.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
package buildinfo

import (
	"fmt"
	"runtime"
	"strings"
)

var (
	// Name is used in the Server header and the config directory.
	Name = "davi-tagauth"

	// DirName is the directory under the user config dir holding config.yaml.
	DirName = Name

	// DisplayName shows up in the tray tooltip and the mDNS instance name.
	DisplayName = "Davi Tag Authenticator"

	Description = "NFC tag anti-cloning authenticator with counter-bound MACs"

	Version   = "dev"
	Commit    = ""
	BuildTime = ""
)

// FullVersion returns Version, followed by the commit when one was stamped.
func FullVersion() string {
	if Commit != "" {
		return fmt.Sprintf("%s (%s)", Version, Commit)
	}
	return Version
}

// UserAgent returns "<name>/<version>", sent as the HTTP Server header.
func UserAgent() string {
	return Name + "/" + Version
}

// Banner returns the startup lines printed by the command.
func Banner() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", Name, FullVersion())
	fmt.Fprintf(&b, "  %s\n", Description)
	fmt.Fprintf(&b, "  Go: %s, OS/Arch: %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	if BuildTime != "" {
		fmt.Fprintf(&b, "\n  Built: %s", BuildTime)
	}
	if Version == "dev" {
		b.WriteString("\n  Development build")
	}
	return b.String()
}
