package common

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Build metadata injected via ldflags; a .version file next to the binary
// supplies fallbacks for values still at their defaults.
var (
	Version   = "dev"
	Build     = "unknown"
	GitCommit = "unknown"
)

// GetVersion returns the semantic version string.
func GetVersion() string { return Version }

// GetBuild returns the build timestamp.
func GetBuild() string { return Build }

// GetGitCommit returns the short git commit hash.
func GetGitCommit() string { return GitCommit }

// GetFullVersion returns the version with all build info.
func GetFullVersion() string {
	return fmt.Sprintf("%s (build: %s, commit: %s)", Version, Build, GitCommit)
}

// LoadVersionFromFile reads a .version file from the binary's directory.
// Lines are "key: value"; blanks and #-comments are ignored. File values
// never override ldflags.
func LoadVersionFromFile() {
	exe, err := os.Executable()
	if err != nil {
		return
	}

	f, err := os.Open(filepath.Join(filepath.Dir(exe), ".version"))
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		switch strings.TrimSpace(key) {
		case "version":
			if Version == "dev" {
				Version = strings.TrimSpace(val)
			}
		case "build":
			if Build == "unknown" {
				Build = strings.TrimSpace(val)
			}
		case "commit":
			if GitCommit == "unknown" {
				GitCommit = strings.TrimSpace(val)
			}
		}
	}
}
