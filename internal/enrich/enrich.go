// Package enrich fills in the fields a raw post leaves empty: relative time,
// engagement counts, author name, avatar, initials and a fallback color.
package enrich

import (
	"strconv"

	"github.com/gauthierbraillon/feedlab/internal/identity"
	"github.com/gauthierbraillon/feedlab/internal/post"
	"github.com/gauthierbraillon/feedlab/internal/randpool"
)

// Defaults are the ranges used for generated values.
type Defaults struct {
	TimeRange     randpool.Range `json:"time_range"`
	LikesRange    randpool.Range `json:"likes_range"`
	CommentsRange randpool.Range `json:"comments_range"`
	SharesRange   randpool.Range `json:"shares_range"`
}

// DefaultRanges returns the ranges used when configuration omits them.
func DefaultRanges() Defaults {
	return Defaults{
		TimeRange:     randpool.Range{Min: 1, Max: 23, Unit: "h"},
		LikesRange:    randpool.Range{Min: 50, Max: 500},
		CommentsRange: randpool.Range{Min: 5, Max: 80},
		SharesRange:   randpool.Range{Min: 10, Max: 200},
	}
}

// DefaultColors is the fallback avatar palette.
var DefaultColors = []string{"#1877F2", "#42B72A", "#F5A623", "#FA383E", "#00A3A3", "#7B68EE", "#FF6B6B"}

// Enricher completes raw posts.
type Enricher struct {
	Defaults  Defaults
	Colors    []string
	Generator *identity.Generator
	Pool      *randpool.Pool
}

// New creates an enricher. An empty color list selects DefaultColors.
func New(defaults Defaults, colors []string, gen *identity.Generator, pool *randpool.Pool) *Enricher {
	if len(colors) == 0 {
		colors = DefaultColors
	}
	return &Enricher{Defaults: defaults, Colors: colors, Generator: gen, Pool: pool}
}

// Enrich returns a completed copy of p. Fields that are already set are kept
// as they are, except initials which always follow the final name. An
// author without a kind gets one resolved first. Generated names and avatar
// ids are recorded in s.
func (e *Enricher) Enrich(s *identity.Session, p post.Post) post.Post {
	out := p.Clone()
	out.ResolveKind()

	if out.Time == "" {
		out.Time = e.draw(e.Defaults.TimeRange) + e.Defaults.TimeRange.Unit
	}

	if out.Engagement == nil {
		out.Engagement = &post.Engagement{
			Likes:    e.drawInt(e.Defaults.LikesRange),
			Comments: e.drawInt(e.Defaults.CommentsRange),
			Shares:   e.drawInt(e.Defaults.SharesRange),
		}
	}

	if out.Author != nil && !out.IsOrganization() {
		e.completeAuthor(s, out.Author)
	}

	out.FallbackColor, _ = randpool.Choice(e.Pool, e.Colors)
	return out
}

// EnrichAll enriches every post of a pool in order.
func (e *Enricher) EnrichAll(s *identity.Session, posts []post.Post) []post.Post {
	out := make([]post.Post, 0, len(posts))
	for _, p := range posts {
		out = append(out, e.Enrich(s, p))
	}
	return out
}

func (e *Enricher) completeAuthor(s *identity.Session, a *post.Author) {
	gender := a.Gender
	if gender == "" {
		gender = identity.DefaultGender
	}
	ageGroup := a.AgeGroup
	if ageGroup == "" {
		ageGroup = identity.DefaultAgeGroup
	}

	if a.Name == "" {
		a.Name = e.Generator.GenerateName(s, gender, ageGroup)
	}
	if a.AvatarURL == "" {
		a.AvatarURL = e.Generator.AvatarURL(s, gender, ageGroup)
	}
	a.Initials = identity.Initials(a.Name)
}

func (e *Enricher) draw(r randpool.Range) string {
	return strconv.Itoa(e.drawInt(r))
}

// drawInt falls back to the lower bound for an inverted range; config
// validation rejects those before they reach here.
func (e *Enricher) drawInt(r randpool.Range) int {
	n, err := r.Draw(e.Pool)
	if err != nil {
		return r.Min
	}
	return n
}
