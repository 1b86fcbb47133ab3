// Package identity generates display names and avatar references for person
// posts that arrive without them.
//
// Uniqueness is tracked per Session. A session belongs to exactly one feed
// generation, so concurrent generations never see each other's names.
package identity

import (
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/gauthierbraillon/feedlab/internal/randpool"
)

const (
	// MaxAttempts bounds the redraws spent avoiding a duplicate. After that a
	// duplicate is accepted.
	MaxAttempts = 50

	DefaultGender   = "male"
	DefaultAgeGroup = "30-44"

	// LastResortName is used when no first-name pool can be found at all.
	LastResortName = "User"

	DefaultURLTemplate = "https://randomuser.me/api/portraits/{gender}/{id}.jpg"
	DefaultGenderPath  = "men"
)

// DefaultAvatarRange applies to age groups without a configured range.
var DefaultAvatarRange = randpool.Range{Min: 1, Max: 99}

// Locale holds the name pools of one language.
type Locale struct {
	Language        string                         `json:"language,omitempty"`
	FirstNames      map[string]map[string][]string `json:"first_names,omitempty"`
	LastNames       []string                       `json:"last_names,omitempty"`
	LoadingMessages []string                       `json:"loading_messages,omitempty"`
}

// AvatarSettings controls avatar selection and the renderer's fallback colors.
type AvatarSettings struct {
	AgeRanges         map[string]randpool.Range `json:"age_ranges,omitempty" validate:"dive"`
	URLTemplate       string                    `json:"api_url_template,omitempty"`
	FallbackColors    []string                  `json:"fallback_colors,omitempty"`
	GenderPaths       map[string]string         `json:"gender_paths,omitempty"`
	DefaultGenderPath string                    `json:"default_gender_path,omitempty"`
}

// Session records the names and avatar ids handed out during one feed
// generation. It is not safe for concurrent use.
type Session struct {
	names   map[string]struct{}
	avatars map[int]struct{}
}

// NewSession returns an empty session.
func NewSession() *Session {
	return &Session{
		names:   make(map[string]struct{}),
		avatars: make(map[int]struct{}),
	}
}

// HasName reports whether name was already handed out.
func (s *Session) HasName(name string) bool {
	_, ok := s.names[name]
	return ok
}

// HasAvatar reports whether the avatar id was already handed out.
func (s *Session) HasAvatar(id int) bool {
	_, ok := s.avatars[id]
	return ok
}

// NameCount returns the number of distinct names recorded.
func (s *Session) NameCount() int { return len(s.names) }

// AvatarCount returns the number of distinct avatar ids recorded.
func (s *Session) AvatarCount() int { return len(s.avatars) }

// Generator draws names and avatars from configured pools.
type Generator struct {
	Locale  Locale
	Avatars AvatarSettings
	Pool    *randpool.Pool
}

// New creates a generator.
func New(locale Locale, avatars AvatarSettings, pool *randpool.Pool) *Generator {
	if pool == nil {
		pool = randpool.NewRandom()
	}
	return &Generator{Locale: locale, Avatars: avatars, Pool: pool}
}

// GenerateName returns "First Last" for the given gender and age group and
// records it in s. It redraws up to MaxAttempts times to avoid a name that s
// already holds.
func (g *Generator) GenerateName(s *Session, gender, ageGroup string) string {
	firstNames := g.firstNamePool(gender, ageGroup)

	var name string
	for attempt := 0; attempt < MaxAttempts; attempt++ {
		first, _ := randpool.Choice(g.Pool, firstNames)
		name = first
		if last, ok := randpool.Choice(g.Pool, g.Locale.LastNames); ok && last != "" {
			name = first + " " + last
		}
		if !s.HasName(name) {
			break
		}
	}
	s.names[name] = struct{}{}
	return name
}

// firstNamePool walks the fallback chain: exact bracket, default bracket,
// any bracket of the gender, the default gender, then a literal.
func (g *Generator) firstNamePool(gender, ageGroup string) []string {
	byAge := g.Locale.FirstNames[gender]
	if names := byAge[ageGroup]; len(names) > 0 {
		return names
	}
	if names := byAge[DefaultAgeGroup]; len(names) > 0 {
		return names
	}
	brackets := make([]string, 0, len(byAge))
	for k := range byAge {
		brackets = append(brackets, k)
	}
	sort.Strings(brackets)
	for _, k := range brackets {
		if len(byAge[k]) > 0 {
			return byAge[k]
		}
	}
	if gender != DefaultGender {
		if names := g.Locale.FirstNames[DefaultGender][ageGroup]; len(names) > 0 {
			return names
		}
	}
	return []string{LastResortName}
}

// AvatarID returns an avatar id from the age group's range and records it in
// s, with the same bounded retry as GenerateName.
func (g *Generator) AvatarID(s *Session, ageGroup string) int {
	r, ok := g.Avatars.AgeRanges[ageGroup]
	if !ok || r.Min > r.Max {
		r = DefaultAvatarRange
	}

	var id int
	for attempt := 0; attempt < MaxAttempts; attempt++ {
		id = g.Pool.MustInt(r.Min, r.Max)
		if !s.HasAvatar(id) {
			break
		}
	}
	s.avatars[id] = struct{}{}
	return id
}

// AvatarURL expands the configured URL template with a fresh avatar id and
// the gender's path segment.
func (g *Generator) AvatarURL(s *Session, gender, ageGroup string) string {
	id := g.AvatarID(s, ageGroup)

	tmpl := g.Avatars.URLTemplate
	if tmpl == "" {
		tmpl = DefaultURLTemplate
	}
	return strings.NewReplacer(
		"{gender}", g.genderPath(gender),
		"{id}", strconv.Itoa(id),
	).Replace(tmpl)
}

func (g *Generator) genderPath(gender string) string {
	if p, ok := g.Avatars.GenderPaths[gender]; ok && p != "" {
		return p
	}
	if gender == "female" && g.Avatars.GenderPaths == nil {
		return "women"
	}
	if g.Avatars.DefaultGenderPath != "" {
		return g.Avatars.DefaultGenderPath
	}
	return DefaultGenderPath
}

// Initials returns the upper-cased first letter of every word in name.
func Initials(name string) string {
	var b strings.Builder
	for _, word := range strings.Fields(name) {
		r, _ := utf8.DecodeRuneInString(word)
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}
