// Package post defines the feed post record shared by every stage of feed
// generation.
//
// Raw posts are loaded from content pools and treated as immutable source
// data. Later stages work on copies produced by Clone.
package post

import (
	"bytes"
	"strings"

	"github.com/goccy/go-json"
)

// Type distinguishes experimental stimuli from filler content.
type Type string

const (
	TypeStimulus Type = "stimulus"
	TypeFiller   Type = "filler"
)

// Subtype identifies the layout of a post.
type Subtype string

const (
	SubtypePerson       Subtype = "person"
	SubtypeOrganization Subtype = "organization"
	SubtypeArticle      Subtype = "article"
	SubtypeVideo        Subtype = "video"
)

// PersonKind says whether the author is an individual or an organization.
// Organizations never receive generated names or avatars.
type PersonKind string

const (
	KindIndividual   PersonKind = "individual"
	KindOrganization PersonKind = "organization"
)

// ID is a post identifier. Content pools use both strings and numbers.
type ID string

// UnmarshalJSON accepts a JSON string or number.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

// Author describes who published a post.
type Author struct {
	Name         string     `json:"name,omitempty"`
	Gender       string     `json:"gender,omitempty"`
	AgeGroup     string     `json:"age_group,omitempty"`
	AvatarURL    string     `json:"avatar_url,omitempty"`
	LogoURL      string     `json:"logo_url,omitempty"`
	FallbackIcon string     `json:"fallback_icon,omitempty"`
	Initials     string     `json:"initials,omitempty"`
	Kind         PersonKind `json:"kind,omitempty"`
}

// Engagement holds the displayed interaction counts of a post.
type Engagement struct {
	Likes    int `json:"likes"`
	Comments int `json:"comments"`
	Shares   int `json:"shares"`
}

// Image is an image attachment.
type Image struct {
	Src  string `json:"src"`
	Alt  string `json:"alt,omitempty"`
	Show *bool  `json:"show,omitempty"`
}

// Video is a video attachment.
type Video struct {
	Src      string `json:"src"`
	Poster   string `json:"poster,omitempty"`
	Duration string `json:"duration,omitempty"`
}

// Article is a link preview attachment.
type Article struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty"`
	Source      string `json:"source,omitempty"`
	Image       string `json:"image,omitempty"`
}

// Metadata carries the experimental labels of a stimulus.
type Metadata struct {
	Ideology    string `json:"ideology,omitempty"`
	PolicyIssue string `json:"policy_issue,omitempty"`
}

// Post is a single feed entry.
//
// Empty strings and nil pointers mean "not provided"; the enricher fills them.
// FallbackColor and IsTailored are set during feed generation.
type Post struct {
	ID          ID          `json:"id"`
	Type        Type        `json:"type"`
	Subtype     Subtype     `json:"subtype,omitempty"`
	ConditionID string      `json:"condition_id,omitempty"`
	Author      *Author     `json:"author,omitempty"`
	Text        string      `json:"text,omitempty"`
	Image       *Image      `json:"image,omitempty"`
	Video       *Video      `json:"video,omitempty"`
	Article     *Article    `json:"article,omitempty"`
	Time        string      `json:"time,omitempty"`
	Engagement  *Engagement `json:"engagement,omitempty"`
	Metadata    *Metadata   `json:"metadata,omitempty"`

	FallbackColor string `json:"_fallbackColor,omitempty"`
	IsTailored    bool   `json:"_isTailored"`
}

// Pool is the on-disk shape of a content pool file.
type Pool struct {
	Posts       []Post `json:"posts"`
	GeneratedAt string `json:"generated_at,omitempty"`
}

// IsStimulus reports whether the post is an experimental stimulus.
func (p *Post) IsStimulus() bool {
	return p.Type == TypeStimulus
}

// IsOrganization reports whether the author is an organization.
// It reads the explicit kind only; call ResolveKind when loading data.
func (p *Post) IsOrganization() bool {
	return p.Author != nil && p.Author.Kind == KindOrganization
}

// ResolveKind sets Author.Kind for records authored before the field
// existed: organization subtype, or a fallback icon without a gender, means
// organization. Records that already carry a kind are left alone.
func (p *Post) ResolveKind() {
	if p.Author == nil || p.Author.Kind != "" {
		return
	}
	switch {
	case p.Subtype == SubtypeOrganization:
		p.Author.Kind = KindOrganization
	case p.Author.FallbackIcon != "" && p.Author.Gender == "":
		p.Author.Kind = KindOrganization
	default:
		p.Author.Kind = KindIndividual
	}
}

// Clone returns a copy that shares no mutable state with p.
func (p Post) Clone() Post {
	out := p
	if p.Author != nil {
		a := *p.Author
		out.Author = &a
	}
	if p.Image != nil {
		img := *p.Image
		if p.Image.Show != nil {
			show := *p.Image.Show
			img.Show = &show
		}
		out.Image = &img
	}
	if p.Video != nil {
		v := *p.Video
		out.Video = &v
	}
	if p.Article != nil {
		a := *p.Article
		out.Article = &a
	}
	if p.Engagement != nil {
		e := *p.Engagement
		out.Engagement = &e
	}
	if p.Metadata != nil {
		m := *p.Metadata
		out.Metadata = &m
	}
	return out
}

// ImageFile returns the last path segment of the image source, or "".
func (p *Post) ImageFile() string {
	if p.Image == nil || p.Image.Src == "" {
		return ""
	}
	src := p.Image.Src
	if i := strings.LastIndex(src, "/"); i >= 0 {
		return src[i+1:]
	}
	return src
}
