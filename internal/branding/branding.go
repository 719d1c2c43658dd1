// Package branding provides compile-time identity values for the CLI.
//
// Forkers edit branding.yaml in this directory before building; Go's
// //go:embed bakes it into the binary. Besides naming, it carries the default
// manifest and download endpoints so a fork can ship pointed at its own CDN.
package branding

import (
	_ "embed"
	"strings"
	"sync"

	"go.yaml.in/yaml/v3"
)

//go:embed branding.yaml
var rawBranding []byte

var (
	once     sync.Once
	defaults brand
)

type brand struct {
	CLIName          string `yaml:"cli_name"`
	DisplayName      string `yaml:"display_name"`
	Description      string `yaml:"description"`
	HomeDir          string `yaml:"home_dir"`
	EnvPrefix        string `yaml:"env_prefix"`
	UserAgent        string `yaml:"user_agent"`
	ManifestEndpoint string `yaml:"manifest_endpoint"`
	DownloadEndpoint string `yaml:"download_endpoint"`
}

func load() {
	once.Do(func() {
		// Hard defaults in case the embedded file is missing or empty.
		defaults = brand{
			CLIName:     "assetsync",
			DisplayName: "AssetSync",
			Description: "Keep a local asset tree in sync with a remote hash manifest",
			HomeDir:     ".assetsync",
			EnvPrefix:   "ASSETSYNC",
			UserAgent:   "assetsync",
		}
		_ = yaml.Unmarshal(rawBranding, &defaults)
	})
}

// CLIName returns the root command name (e.g., "assetsync").
func CLIName() string { load(); return defaults.CLIName }

// DisplayName returns the human-readable product name.
func DisplayName() string { load(); return defaults.DisplayName }

// Description returns the short product description.
func Description() string { load(); return defaults.Description }

// HomeDir returns the dot-directory name under $HOME (e.g., ".assetsync").
func HomeDir() string { load(); return defaults.HomeDir }

// EnvPrefix returns the environment variable prefix (e.g., "ASSETSYNC").
func EnvPrefix() string { load(); return defaults.EnvPrefix }

// UserAgent returns the User-Agent sent with manifest and asset requests.
func UserAgent() string { load(); return defaults.UserAgent }

// ManifestEndpoint returns the default base URL that channel manifests
// ("<endpoint><Channel>.json") are fetched from.
func ManifestEndpoint() string { load(); return defaults.ManifestEndpoint }

// DownloadEndpoint returns the default base URL that channel assets
// ("<endpoint><Channel><relativePath>") are downloaded from.
func DownloadEndpoint() string { load(); return defaults.DownloadEndpoint }

// EnvVar returns a fully qualified env var name, e.g., EnvVar("PROXY") → "ASSETSYNC_PROXY".
func EnvVar(suffix string) string {
	load()
	return defaults.EnvPrefix + "_" + strings.ToUpper(suffix)
}
