// Package conditions summarizes a stimulus pool by experimental condition.
package conditions

import (
	"path"
	"slices"

	"github.com/gauthierbraillon/feedlab/internal/post"
)

// ImageRoot is where generated condition images live, relative to the page
// that shows them.
const ImageRoot = "../generated_images"

// Condition describes every stimulus sharing one condition id.
type Condition struct {
	ID          string   `json:"condition_id"`
	ImageDir    string   `json:"image_dir"`
	AgeGroup    string   `json:"age_group"`
	Gender      string   `json:"gender"`
	Ideology    string   `json:"ideology"`
	PolicyIssue string   `json:"policy_issue"`
	Images      []string `json:"images"`
	Texts       []string `json:"texts"`
	PostIDs     []string `json:"post_ids"`
}

// Filters are the distinct values seen across conditions, sorted.
type Filters struct {
	AgeGroups    []string `json:"age_groups"`
	Genders      []string `json:"genders"`
	Ideologies   []string `json:"ideologies"`
	PolicyIssues []string `json:"policy_issues"`
}

// Catalogue is the condition listing of one stimulus pool.
type Catalogue struct {
	Conditions  []Condition `json:"conditions"`
	Filters     Filters     `json:"filters"`
	Source      string      `json:"source,omitempty"`
	GeneratedAt string      `json:"generated_at,omitempty"`
}

// Build groups posts by condition id in first-seen order. Attributes come
// from the first post of each condition; images and texts are
// de-duplicated.
func Build(posts []post.Post) Catalogue {
	var (
		out   []Condition
		index = map[string]int{}
	)
	for i := range posts {
		p := &posts[i]
		idx, seen := index[p.ConditionID]
		if !seen {
			c := Condition{ID: p.ConditionID, ImageDir: p.ConditionID, Images: []string{}, Texts: []string{}}
			if p.Author != nil {
				c.AgeGroup = p.Author.AgeGroup
				c.Gender = p.Author.Gender
			}
			if p.Metadata != nil {
				c.Ideology = p.Metadata.Ideology
				c.PolicyIssue = p.Metadata.PolicyIssue
			}
			idx = len(out)
			index[p.ConditionID] = idx
			out = append(out, c)
		}

		c := &out[idx]
		if f := p.ImageFile(); f != "" && !slices.Contains(c.Images, f) {
			c.Images = append(c.Images, f)
		}
		if p.Text != "" && !slices.Contains(c.Texts, p.Text) {
			c.Texts = append(c.Texts, p.Text)
		}
		c.PostIDs = append(c.PostIDs, string(p.ID))
	}

	if out == nil {
		out = []Condition{}
	}
	return Catalogue{Conditions: out, Filters: filters(out)}
}

func filters(cs []Condition) Filters {
	return Filters{
		AgeGroups:    distinct(cs, func(c Condition) string { return c.AgeGroup }),
		Genders:      distinct(cs, func(c Condition) string { return c.Gender }),
		Ideologies:   distinct(cs, func(c Condition) string { return c.Ideology }),
		PolicyIssues: distinct(cs, func(c Condition) string { return c.PolicyIssue }),
	}
}

func distinct(cs []Condition, field func(Condition) string) []string {
	out := []string{}
	for _, c := range cs {
		if v := field(c); v != "" && !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	slices.Sort(out)
	return out
}

// ImagePath is the page-relative path of one condition image.
func ImagePath(conditionID, file string) string {
	return path.Join(ImageRoot, conditionID, file)
}
