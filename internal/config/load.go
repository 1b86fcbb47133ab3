package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of environment overrides.
const EnvPrefix = "FEEDLAB_"

// ErrMalformed reports a document that is not valid JSON or YAML.
var ErrMalformed = errors.New("malformed configuration document")

// requiredSections must be present in the document itself. Defaults do not
// satisfy them.
var requiredSections = []string{
	"locale.first_names",
	"locale.last_names",
	"feed_settings",
}

// envKeys maps environment variables to koanf paths.
var envKeys = map[string]string{
	"FEEDLAB_TOTAL_POSTS":     "feed_settings.total_posts",
	"FEEDLAB_FILLER_RATIO":    "feed_settings.filler_ratio",
	"FEEDLAB_FIRST_N_FILLERS": "feed_settings.first_n_fillers",
	"FEEDLAB_STIMULI_COUNT":   "feed_settings.stimuli_count",
	"FEEDLAB_DEBUG":           "debug",
}

// Parse decodes, layers and validates a configuration document.
//
// A document that cannot be decoded yields an error wrapping ErrMalformed.
// Missing required sections and invalid values yield a *ConfigurationError.
func Parse(data []byte, format Format) (*Config, error) {
	parser := parserFor(format)

	doc := koanf.New(".")
	if err := doc.Load(bytesProvider(data), parser); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if missing := missingSections(doc.Raw()); len(missing) > 0 {
		return nil, &ConfigurationError{Missing: missing}
	}

	k := koanf.New(".")
	if err := k.Load(structs.Provider(Default(), "json"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}
	if err := k.Merge(doc); err != nil {
		return nil, fmt.Errorf("merge document: %w", err)
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, &ConfigurationError{Invalid: []string{err.Error()}}
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envTransform maps a FEEDLAB_* variable to its koanf path. Unknown
// variables are dropped.
func envTransform(key string) string {
	return envKeys[strings.ToUpper(key)]
}

// missingSections walks the decoded document. A section explicitly set to
// null counts as missing.
func missingSections(raw map[string]interface{}) []string {
	var missing []string
	for _, section := range requiredSections {
		if !present(raw, strings.Split(section, ".")) {
			missing = append(missing, section)
		}
	}
	return missing
}

func present(m map[string]interface{}, keys []string) bool {
	v, ok := m[keys[0]]
	if !ok || v == nil {
		return false
	}
	if len(keys) == 1 {
		return true
	}
	child, ok := v.(map[string]interface{})
	if !ok {
		return false
	}
	return present(child, keys[1:])
}

func parserFor(format Format) koanf.Parser {
	if format == FormatYAML {
		return yaml.Parser()
	}
	return jsonParser{}
}

// jsonParser is a koanf.Parser backed by goccy/go-json.
type jsonParser struct{}

func (jsonParser) Unmarshal(b []byte) (map[string]interface{}, error) {
	var out map[string]interface{}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = map[string]interface{}{}
	}
	return out, nil
}

func (jsonParser) Marshal(m map[string]interface{}) ([]byte, error) {
	return json.Marshal(m)
}

// bytesProvider hands an in-memory document to koanf.
type bytesProvider []byte

func (b bytesProvider) ReadBytes() ([]byte, error) { return b, nil }

func (b bytesProvider) Read() (map[string]interface{}, error) {
	return nil, errors.New("bytes provider does not support Read")
}
