// Package version reports the build version of the binary.
package version

import "runtime/debug"

// Version is set at build time with
// -ldflags "-X github.com/JustinTDCT/AnimeVault/internal/version.Version=1.2.3".
var Version = ""

func String() string {
	if Version != "" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "0.0.0-dev"
}
