package feedloader

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts feed generations. Register it with WithMetrics.
type Metrics struct {
	FeedsGenerated  prometheus.Counter
	LoadErrors      *prometheus.CounterVec
	Personalization *prometheus.CounterVec
	Underfilled     prometheus.Counter
	FeedPosts       prometheus.Histogram
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		FeedsGenerated: f.NewCounter(prometheus.CounterOpts{
			Name: "feedlab_feeds_generated_total",
			Help: "Total number of feeds generated",
		}),
		LoadErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "feedlab_feed_load_errors_total",
			Help: "Feed generations that failed, by error kind",
		}, []string{"kind"}),
		Personalization: f.NewCounterVec(prometheus.CounterOpts{
			Name: "feedlab_personalization_total",
			Help: "Feeds generated, by whether matching rules were applied",
		}, []string{"applied"}),
		Underfilled: f.NewCounter(prometheus.CounterOpts{
			Name: "feedlab_feed_underfilled_total",
			Help: "Feeds shorter than total_posts because both pools ran out",
		}),
		FeedPosts: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "feedlab_feed_posts",
			Help:    "Number of posts per generated feed",
			Buckets: []float64{5, 10, 20, 40, 80, 160},
		}),
	}
}

func (m *Metrics) observe(feed *Feed, underfilled bool) {
	if m == nil {
		return
	}
	m.FeedsGenerated.Inc()
	m.Personalization.WithLabelValues(strconv.FormatBool(feed.PersonalizationApplied)).Inc()
	m.FeedPosts.Observe(float64(len(feed.Posts)))
	if underfilled {
		m.Underfilled.Inc()
	}
}

func (m *Metrics) failed(kind string) {
	if m == nil {
		return
	}
	m.LoadErrors.WithLabelValues(kind).Inc()
}
