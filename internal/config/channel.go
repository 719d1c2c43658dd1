package config

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Channel is a resolved release channel.
type Channel struct {
	// Name is the channel as published, e.g. "Nightly".
	Name string
	// ManifestURL locates the channel's manifest document.
	ManifestURL string
	// DownloadURL is the base every asset path is appended to.
	DownloadURL string
}

// ResolveChannel maps name (or the configured channel when empty) to its
// endpoints. Names are matched case-insensitively against s.Channels.
func (s Settings) ResolveChannel(name string) (Channel, error) {
	if name == "" {
		name = s.Channel
	}
	title, err := resolveChannel(name, s.Channels)
	if err != nil {
		return Channel{}, err
	}
	return Channel{
		Name:        title,
		ManifestURL: s.ManifestEndpoint + title + ".json",
		DownloadURL: s.DownloadEndpoint + title,
	}, nil
}

func resolveChannel(name string, known []string) (string, error) {
	name = strings.TrimSpace(name)
	for _, k := range known {
		if strings.EqualFold(k, name) {
			return cases.Title(language.English).String(strings.ToLower(k)), nil
		}
	}
	return "", fmt.Errorf("unknown channel %q (available: %s)", name, strings.Join(known, ", "))
}
