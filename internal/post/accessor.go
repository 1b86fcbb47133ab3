package post

import "sort"

// Accessor reads one field of a post. ok is false when any part of the path
// is missing.
type Accessor func(p *Post) (value string, ok bool)

var accessors = map[string]Accessor{
	"id":           func(p *Post) (string, bool) { return string(p.ID), true },
	"type":         func(p *Post) (string, bool) { return string(p.Type), true },
	"subtype":      func(p *Post) (string, bool) { return string(p.Subtype), true },
	"condition_id": func(p *Post) (string, bool) { return p.ConditionID, true },
	"text":         func(p *Post) (string, bool) { return p.Text, true },
	"author.name": func(p *Post) (string, bool) {
		if p.Author == nil {
			return "", false
		}
		return p.Author.Name, true
	},
	"author.gender": func(p *Post) (string, bool) {
		if p.Author == nil {
			return "", false
		}
		return p.Author.Gender, true
	},
	"author.age_group": func(p *Post) (string, bool) {
		if p.Author == nil {
			return "", false
		}
		return p.Author.AgeGroup, true
	},
	"author.kind": func(p *Post) (string, bool) {
		if p.Author == nil {
			return "", false
		}
		return string(p.Author.Kind), true
	},
	"metadata.ideology": func(p *Post) (string, bool) {
		if p.Metadata == nil {
			return "", false
		}
		return p.Metadata.Ideology, true
	},
	"metadata.policy_issue": func(p *Post) (string, bool) {
		if p.Metadata == nil {
			return "", false
		}
		return p.Metadata.PolicyIssue, true
	},
}

// Lookup returns the accessor registered for a dot path such as
// "metadata.ideology".
func Lookup(path string) (Accessor, bool) {
	a, ok := accessors[path]
	return a, ok
}

// Paths lists every dot path that Lookup understands, sorted.
func Paths() []string {
	out := make([]string, 0, len(accessors))
	for k := range accessors {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
