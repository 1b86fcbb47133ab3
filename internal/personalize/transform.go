package personalize

import (
	"strconv"
	"strings"
)

// Transform kinds.
const (
	TransformRange = "range"
	TransformMap   = "map"
)

// PoliticalToIdeology is the transform consulted when a participant supplies
// a political score but no ideology label.
const PoliticalToIdeology = "political_to_ideology"

// Bucket maps an inclusive numeric interval to a value.
type Bucket struct {
	Min   int    `json:"min" validate:"ltefield=Max"`
	Max   int    `json:"max"`
	Value string `json:"value"`
}

// Transform converts a raw participant value into the value compared against
// posts. A range transform buckets integers; a map transform looks values up.
type Transform struct {
	Type   string            `json:"type,omitempty" validate:"omitempty,oneof=range map"`
	Ranges []Bucket          `json:"ranges,omitempty" validate:"dive"`
	Values map[string]string `json:"values,omitempty"`
}

// Kind returns the transform type, inferred from its contents when Type is
// empty.
func (t Transform) Kind() string {
	if t.Type != "" {
		return t.Type
	}
	if len(t.Ranges) > 0 {
		return TransformRange
	}
	return TransformMap
}

// Apply converts raw. ok is false when the value cannot be resolved: a
// non-integer input to a range transform, no containing bucket, or no map
// entry.
func (t Transform) Apply(raw string) (string, bool) {
	switch t.Kind() {
	case TransformRange:
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return "", false
		}
		for _, b := range t.Ranges {
			if n >= b.Min && n <= b.Max {
				return b.Value, true
			}
		}
		return "", false
	default:
		v, ok := t.Values[raw]
		return v, ok
	}
}

// IdeologyFromScore maps a 1-10 political self-placement to an ideology
// label. It is used when configuration defines no political_to_ideology
// transform.
func IdeologyFromScore(raw string) (string, bool) {
	score, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return "", false
	}
	switch {
	case score <= 4:
		return "left", true
	case score >= 6:
		return "right", true
	default:
		return "neutral", true
	}
}

// DeriveIdeology returns params with an ideology label filled in from the
// political score when the participant supplied a score but no label. The
// configured political_to_ideology transform is preferred over
// IdeologyFromScore. params itself is not modified.
func (s Settings) DeriveIdeology(params Params) Params {
	if !params.Has(ParamPolitics) || params.Has(ParamIdeology) {
		return params
	}

	var (
		label string
		ok    bool
	)
	if t, configured := s.Transforms[PoliticalToIdeology]; configured {
		label, ok = t.Apply(params[ParamPolitics])
	} else {
		label, ok = IdeologyFromScore(params[ParamPolitics])
	}
	if !ok {
		return params
	}

	out := params.Clone()
	out[ParamIdeology] = label
	return out
}
