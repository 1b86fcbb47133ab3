// Package config loads the feed configuration document.
//
// Values are layered in order of priority:
//  1. Defaults: built-in values from Default()
//  2. Document: the JSON or YAML configuration file
//  3. Environment: FEEDLAB_* overrides for the feed_settings counts and debug
//
// The layers are merged with koanf and decoded into Config, then checked with
// go-playground/validator.
package config

import (
	"fmt"
	"path"
	"strings"

	"github.com/gauthierbraillon/feedlab/internal/aggregator"
	"github.com/gauthierbraillon/feedlab/internal/enrich"
	"github.com/gauthierbraillon/feedlab/internal/identity"
	"github.com/gauthierbraillon/feedlab/internal/personalize"
	"github.com/gauthierbraillon/feedlab/internal/randpool"
)

const (
	DefaultStimuliSource = "stimuli.json"
	DefaultFillersSource = "fillers.json"
)

// Config is the full feed configuration.
type Config struct {
	FeedSettings    aggregator.Settings     `json:"feed_settings"`
	Personalization personalize.Settings    `json:"personalization"`
	Defaults        enrich.Defaults         `json:"defaults"`
	Locale          identity.Locale         `json:"locale"`
	AvatarSettings  identity.AvatarSettings `json:"avatar_settings"`
	StimuliSource   string                  `json:"stimuli_source"`
	FillersSource   string                  `json:"fillers_source"`
	Debug           bool                    `json:"debug"`
}

// Default returns the values used for anything the document omits.
func Default() Config {
	return Config{
		FeedSettings: aggregator.Settings{
			TotalPosts:    40,
			FillerRatio:   4,
			FirstNFillers: 2,
		},
		Personalization: personalize.Settings{
			Enabled:       true,
			TailoredCount: 1,
			RandomCount:   3,
		},
		Defaults: enrich.DefaultRanges(),
		AvatarSettings: identity.AvatarSettings{
			AgeRanges: map[string]randpool.Range{
				"18-29": {Min: 1, Max: 30},
				"30-44": {Min: 15, Max: 50},
				"45-59": {Min: 35, Max: 70},
				"60+":   {Min: 50, Max: 99},
			},
			URLTemplate:       identity.DefaultURLTemplate,
			DefaultGenderPath: identity.DefaultGenderPath,
		},
		StimuliSource: DefaultStimuliSource,
		FillersSource: DefaultFillersSource,
	}
}

// Warnings lists settings that are accepted but probably not what the author
// meant.
func (c *Config) Warnings() []string {
	var out []string
	p := c.Personalization
	if p.Enabled && p.Total() > c.FeedSettings.TotalPosts {
		out = append(out, fmt.Sprintf(
			"personalization selects %d stimuli but feed_settings.total_posts is %d; the feed will be truncated",
			p.Total(), c.FeedSettings.TotalPosts))
	}
	for i, r := range p.Matching {
		if r.Transform == "" {
			continue
		}
		if _, ok := p.Transforms[r.Transform]; !ok {
			out = append(out, fmt.Sprintf(
				"personalization.matching[%d] uses undefined transform %q; the rule will not filter",
				i, r.Transform))
		}
	}
	return out
}

// Format is the encoding of a configuration document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatOf picks the format from a location's extension. Anything that is
// not .yaml or .yml is read as JSON.
func FormatOf(location string) Format {
	if i := strings.IndexAny(location, "?#"); i >= 0 {
		location = location[:i]
	}
	switch strings.ToLower(path.Ext(location)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}
