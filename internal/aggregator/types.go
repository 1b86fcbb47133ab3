// Package aggregator combines stimuli and filler posts into one feed.
//
// This package enables feedlab to:
// - Open the feed with a run of filler posts
// - Interleave stimuli with a fixed number of fillers after each
// - Cap the feed at a configured number of posts
package aggregator

import "github.com/gauthierbraillon/feedlab/internal/post"

// Settings is the feed_settings section of the configuration.
type Settings struct {
	TotalPosts    int `json:"total_posts" validate:"gte=0"`
	StimuliCount  int `json:"stimuli_count,omitempty" validate:"gte=0"` // 0 selects every stimulus
	FillerRatio   int `json:"filler_ratio" validate:"gte=0"`
	FirstNFillers int `json:"first_n_fillers" validate:"gte=0"`

	// RandomizeOrder unset keeps stimuli in pool order and shuffles fillers;
	// true shuffles both; false shuffles neither.
	RandomizeOrder *bool `json:"randomize_order,omitempty"`

	// ShowAILabels is read by the page renderer; mixing ignores it.
	ShowAILabels bool `json:"show_ai_labels,omitempty"`
}

// shuffleStimuli reports whether non-personalized stimuli are shuffled.
func (s Settings) shuffleStimuli() bool {
	return s.RandomizeOrder != nil && *s.RandomizeOrder
}

// shuffleFillers reports whether fillers are shuffled.
func (s Settings) shuffleFillers() bool {
	return s.RandomizeOrder == nil || *s.RandomizeOrder
}

// Result is a mixed feed plus what went into it.
type Result struct {
	Posts []post.Post

	// SelectedStimuli is the number of stimuli chosen before mixing.
	SelectedStimuli int
	// TailoredStimuli is the number of selected stimuli marked tailored.
	TailoredStimuli int
	// PersonalizationApplied is true when matching rules were evaluated.
	PersonalizationApplied bool
}

// Underfilled reports whether the feed is shorter than the target length
// because both pools ran out.
func (r Result) Underfilled(total int) bool {
	return len(r.Posts) < total
}
