package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/assetsync/assetsync/internal/branding"
)

// Setting keys.
const (
	KeyLocalPath        = "local_path"
	KeyManifestEndpoint = "manifest_endpoint"
	KeyDownloadEndpoint = "download_endpoint"
	KeyChannel          = "channel"
	KeyChannels         = "channels"
	KeyProxy            = "proxy"
	KeyConcurrency      = "concurrency"
	KeyTimeout          = "timeout"
	KeyRateLimit        = "rate_limit"
	KeyTextExtensions   = "text_extensions"
	KeyHashWorkers      = "hash_workers"
	KeyKeepFailed       = "keep_failed"
)

var defaults = map[string]any{
	KeyLocalPath:        "",
	KeyManifestEndpoint: branding.ManifestEndpoint(),
	KeyDownloadEndpoint: branding.DownloadEndpoint(),
	KeyChannel:          "nightly",
	KeyChannels:         "nightly,stable",
	KeyProxy:            "",
	KeyConcurrency:      5,
	KeyTimeout:          "5m",
	KeyRateLimit:        0,
	KeyTextExtensions:   ".json,.meta,.browser",
	KeyHashWorkers:      1,
	KeyKeepFailed:       false,
}

func setDefaults() {
	for k, v := range defaults {
		viper.SetDefault(k, v)
	}
}

// Keys returns every setting key.
func Keys() []string {
	keys := make([]string, 0, len(defaults))
	for k := range defaults {
		keys = append(keys, k)
	}
	return keys
}

// IsKnownKey reports whether key is a setting.
func IsKnownKey(key string) bool {
	_, ok := defaults[key]
	return ok
}

func validate(key, value string) error {
	switch key {
	case KeyConcurrency, KeyHashWorkers:
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return fmt.Errorf("%s must be a positive integer, got %q", key, value)
		}
	case KeyRateLimit:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil || n < 0 {
			return fmt.Errorf("%s must be a non-negative number of bytes per second, got %q", key, value)
		}
	case KeyTimeout:
		d, err := time.ParseDuration(value)
		if err != nil || d <= 0 {
			return fmt.Errorf("%s must be a positive duration such as 30s or 5m, got %q", key, value)
		}
	case KeyKeepFailed:
		if _, err := strconv.ParseBool(value); err != nil {
			return fmt.Errorf("%s must be true or false, got %q", key, value)
		}
	case KeyManifestEndpoint, KeyDownloadEndpoint:
		u, err := url.Parse(value)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s must be an absolute URL, got %q", key, value)
		}
	case KeyChannel:
		if _, err := resolveChannel(value, splitList(viper.GetStringSlice(KeyChannels))); err != nil {
			return err
		}
	}
	return nil
}

func display(key string) string {
	switch key {
	case KeyChannels, KeyTextExtensions:
		return strings.Join(splitList(viper.GetStringSlice(key)), ",")
	default:
		return viper.GetString(key)
	}
}

// splitList flattens list values that may arrive as a YAML sequence or a
// comma separated string.
func splitList(items []string) []string {
	var out []string
	for _, item := range items {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Settings is the typed view of the configuration.
type Settings struct {
	LocalPath        string
	ManifestEndpoint string
	DownloadEndpoint string
	Channel          string
	Channels         []string
	Proxy            string
	Concurrency      int
	Timeout          time.Duration
	RateLimit        int64
	TextExtensions   []string
	HashWorkers      int
	KeepFailed       bool
}

// Current returns the effective settings. An unset local_path resolves to
// the working directory.
func Current() (Settings, error) {
	s := Settings{
		LocalPath:        viper.GetString(KeyLocalPath),
		ManifestEndpoint: viper.GetString(KeyManifestEndpoint),
		DownloadEndpoint: viper.GetString(KeyDownloadEndpoint),
		Channel:          viper.GetString(KeyChannel),
		Channels:         splitList(viper.GetStringSlice(KeyChannels)),
		Proxy:            viper.GetString(KeyProxy),
		Concurrency:      viper.GetInt(KeyConcurrency),
		Timeout:          viper.GetDuration(KeyTimeout),
		RateLimit:        viper.GetInt64(KeyRateLimit),
		TextExtensions:   splitList(viper.GetStringSlice(KeyTextExtensions)),
		HashWorkers:      viper.GetInt(KeyHashWorkers),
		KeepFailed:       viper.GetBool(KeyKeepFailed),
	}
	if s.LocalPath == "" {
		wd, err := os.Getwd()
		if err != nil {
			return s, fmt.Errorf("resolving working directory: %w", err)
		}
		s.LocalPath = wd
	}
	if s.Concurrency < 1 {
		return s, fmt.Errorf("%s must be at least 1, got %d", KeyConcurrency, s.Concurrency)
	}
	if s.Timeout <= 0 {
		return s, fmt.Errorf("%s must be a positive duration", KeyTimeout)
	}
	return s, nil
}
