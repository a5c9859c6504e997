package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ternarybob/banner"
)

// Build metadata, overridable at link time via -ldflags "-X ...".
var (
	Version   = "dev"
	Build     = "unknown"
	GitCommit = "unknown"
)

// GetVersion returns the effective version string
func GetVersion() string { return Version }

// GetFullVersion returns the version with build metadata attached
func GetFullVersion() string {
	return fmt.Sprintf("%s (build: %s, commit: %s)", Version, Build, GitCommit)
}

// LoadVersionFromFile overrides Version from a .version file sitting beside
// the executable or in the working directory. Deployments drop the file next
// to the binary so a restart picks up the released version without a rebuild.
func LoadVersionFromFile() string {
	for _, dir := range versionFileDirs() {
		data, err := os.ReadFile(filepath.Join(dir, ".version"))
		if err != nil {
			continue
		}
		if v := strings.TrimSpace(string(data)); v != "" {
			Version = v
			break
		}
	}
	return Version
}

func versionFileDirs() []string {
	var dirs []string
	if execPath, err := os.Executable(); err == nil {
		dirs = append(dirs, filepath.Dir(execPath))
	}
	if cwd, err := os.Getwd(); err == nil {
		dirs = append(dirs, cwd)
	}
	return dirs
}

// PrintBanner displays the startup banner
func PrintBanner(version string) {
	banner.Print("Scriptor", version)
}
