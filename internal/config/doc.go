// Package config manages user-level settings stored at ~/.assetsync/config.yaml.
// Values can be overridden with ASSETSYNC_* environment variables. Besides
// plain get and set it resolves the release channel into the manifest and
// download URLs a sync session needs.
package config
