// Package personalize selects the stimuli shown to a participant.
//
// Matching rules compare participant parameters (optionally transformed)
// against fields of each stimulus. Stimuli that satisfy every rule are
// "tailored"; the rest of the selection is drawn from other conditions.
package personalize

import (
	"github.com/gauthierbraillon/feedlab/internal/post"
	"github.com/gauthierbraillon/feedlab/internal/randpool"
)

// Well-known participant parameter names.
const (
	ParamGender   = "gender"
	ParamAge      = "age"
	ParamPolitics = "politics"
	ParamIdeology = "ideology"
	ParamIssue    = "issue"
)

// Params are the participant's parameters keyed by URL parameter name.
type Params map[string]string

// Has reports whether key is present with a non-empty value.
func (p Params) Has(key string) bool {
	return p[key] != ""
}

// Clone returns an independent copy.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Rule compares one participant parameter with one post field.
type Rule struct {
	URLParam  string `json:"url_param" validate:"required"`
	PostPath  string `json:"post_path" validate:"required,postpath"`
	Transform string `json:"transform,omitempty"`
}

// Settings is the personalization section of the feed configuration.
type Settings struct {
	Enabled       bool                 `json:"enabled"`
	Mode          string               `json:"mode,omitempty"` // informational; selection ignores it
	TailoredCount int                  `json:"tailored_count" validate:"gte=0"`
	RandomCount   int                  `json:"random_count" validate:"gte=0"`
	Matching      []Rule               `json:"matching,omitempty" validate:"dive"`
	Transforms    map[string]Transform `json:"transforms,omitempty" validate:"dive"`
}

// Total is the number of stimuli a personalized selection aims for.
func (s Settings) Total() int {
	return s.TailoredCount + s.RandomCount
}

// Selection is the outcome of Select.
type Selection struct {
	// Posts holds tailored stimuli first, then the random complement.
	Posts []post.Post
	// Tailored counts the posts marked IsTailored.
	Tailored int
	// Personalized is false when selection fell back to pure random.
	Personalized bool
}

// Matcher selects stimuli for a participant.
type Matcher struct {
	Settings Settings
	Pool     *randpool.Pool
}

// NewMatcher creates a matcher.
func NewMatcher(settings Settings, pool *randpool.Pool) *Matcher {
	if pool == nil {
		pool = randpool.NewRandom()
	}
	return &Matcher{Settings: settings, Pool: pool}
}

type compiledRule struct {
	get   post.Accessor
	value string
}

// Select returns up to TailoredCount matching stimuli followed by up to
// RandomCount stimuli from conditions none of the tailored posts belong to.
// Without usable rules or parameters it returns a random selection of the
// same total size, all untailored.
func (m *Matcher) Select(stimuli []post.Post, params Params) Selection {
	if !m.anyRuleParam(params) {
		return Selection{Posts: m.randomSelection(stimuli)}
	}

	rules := m.compile(params)

	var matches []post.Post
	for i := range stimuli {
		if matchesAll(&stimuli[i], rules) {
			matches = append(matches, stimuli[i])
		}
	}

	tailored := take(randpool.Shuffle(m.Pool, matches), m.Settings.TailoredCount)
	used := make(map[string]struct{}, len(tailored))
	for i := range tailored {
		tailored[i].IsTailored = true
		used[tailored[i].ConditionID] = struct{}{}
	}

	var others []post.Post
	for _, s := range stimuli {
		if _, ok := used[s.ConditionID]; !ok {
			others = append(others, s)
		}
	}
	random := take(randpool.Shuffle(m.Pool, others), m.Settings.RandomCount)
	for i := range random {
		random[i].IsTailored = false
	}

	out := make([]post.Post, 0, len(tailored)+len(random))
	out = append(out, tailored...)
	out = append(out, random...)
	return Selection{Posts: out, Tailored: len(tailored), Personalized: true}
}

func (m *Matcher) anyRuleParam(params Params) bool {
	for _, r := range m.Settings.Matching {
		if params.Has(r.URLParam) {
			return true
		}
	}
	return false
}

// compile resolves each rule's comparison value. Rules whose value cannot be
// resolved are dropped, which makes them non-filtering.
func (m *Matcher) compile(params Params) []compiledRule {
	out := make([]compiledRule, 0, len(m.Settings.Matching))
	for _, r := range m.Settings.Matching {
		value, ok := m.ComparisonValue(r, params)
		if !ok {
			continue
		}
		get, known := post.Lookup(r.PostPath)
		if !known {
			get = func(*post.Post) (string, bool) { return "", false }
		}
		out = append(out, compiledRule{get: get, value: value})
	}
	return out
}

// ComparisonValue returns the value a stimulus must hold at r.PostPath.
// ok is false when the participant value is missing or the transform cannot
// resolve it.
func (m *Matcher) ComparisonValue(r Rule, params Params) (string, bool) {
	raw := params[r.URLParam]
	if raw == "" {
		return "", false
	}
	if r.Transform == "" {
		return raw, true
	}
	t, ok := m.Settings.Transforms[r.Transform]
	if !ok {
		return "", false
	}
	return t.Apply(raw)
}

func (m *Matcher) randomSelection(stimuli []post.Post) []post.Post {
	out := take(randpool.Shuffle(m.Pool, stimuli), m.Settings.Total())
	for i := range out {
		out[i].IsTailored = false
	}
	return out
}

func matchesAll(p *post.Post, rules []compiledRule) bool {
	for _, r := range rules {
		v, ok := r.get(p)
		if !ok || v != r.value {
			return false
		}
	}
	return true
}

func take(list []post.Post, n int) []post.Post {
	if n < 0 {
		n = 0
	}
	if len(list) > n {
		list = list[:n]
	}
	return list
}
