package aggregator

import (
	"github.com/gauthierbraillon/feedlab/internal/personalize"
	"github.com/gauthierbraillon/feedlab/internal/post"
	"github.com/gauthierbraillon/feedlab/internal/randpool"
)

// Aggregator mixes stimuli into a stream of fillers.
type Aggregator struct {
	Settings Settings
	Matcher  *personalize.Matcher
	Pool     *randpool.Pool
}

// New creates an Aggregator. matcher may be nil, which disables
// personalization.
func New(settings Settings, matcher *personalize.Matcher, pool *randpool.Pool) *Aggregator {
	if pool == nil {
		pool = randpool.NewRandom()
	}
	return &Aggregator{Settings: settings, Matcher: matcher, Pool: pool}
}

// Mix builds the feed. Empty params means the participant supplied no
// personalization parameters. The result never exceeds Settings.TotalPosts
// and may be shorter when both pools run out.
func (a *Aggregator) Mix(stimuli, fillers []post.Post, params personalize.Params) Result {
	res := Result{}
	ordered := a.selectStimuli(stimuli, params, &res)
	res.SelectedStimuli = len(ordered)

	if a.Settings.shuffleFillers() {
		fillers = randpool.Shuffle(a.Pool, fillers)
	}

	total := max(a.Settings.TotalPosts, 0)
	feed := make([]post.Post, 0, total)
	fi := 0

	for i := 0; i < a.Settings.FirstNFillers && fi < len(fillers) && len(feed) < total; i++ {
		feed = append(feed, fillers[fi])
		fi++
	}

	for si := 0; si < len(ordered) && len(feed) < total; si++ {
		feed = append(feed, ordered[si])
		for i := 0; i < a.Settings.FillerRatio && fi < len(fillers) && len(feed) < total; i++ {
			feed = append(feed, fillers[fi])
			fi++
		}
	}

	for len(feed) < total && fi < len(fillers) {
		feed = append(feed, fillers[fi])
		fi++
	}

	res.Posts = feed
	return res
}

func (a *Aggregator) selectStimuli(stimuli []post.Post, params personalize.Params, res *Result) []post.Post {
	if len(params) > 0 && a.Matcher != nil && a.Matcher.Settings.Enabled {
		sel := a.Matcher.Select(stimuli, params)
		res.TailoredStimuli = sel.Tailored
		res.PersonalizationApplied = sel.Personalized
		return sel.Posts
	}

	ordered := stimuli
	if a.Settings.shuffleStimuli() {
		ordered = randpool.Shuffle(a.Pool, stimuli)
	}
	n := a.Settings.StimuliCount
	if n == 0 || n > len(ordered) {
		n = len(ordered)
	}
	out := make([]post.Post, n)
	copy(out, ordered[:n])
	for i := range out {
		out[i].IsTailored = false
	}
	return out
}
