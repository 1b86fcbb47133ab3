// Package feedloader turns a configuration location and a participant
// profile into a finished feed.
//
// One LoadFeed call fetches the configuration and both content pools,
// enriches every post, selects stimuli and mixes the feed. Each call owns a
// fresh identity.Session, so concurrent calls never share used names or
// avatars.
package feedloader

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/gauthierbraillon/feedlab/internal/aggregator"
	"github.com/gauthierbraillon/feedlab/internal/conditions"
	"github.com/gauthierbraillon/feedlab/internal/config"
	"github.com/gauthierbraillon/feedlab/internal/enrich"
	"github.com/gauthierbraillon/feedlab/internal/identity"
	"github.com/gauthierbraillon/feedlab/internal/logging"
	"github.com/gauthierbraillon/feedlab/internal/personalize"
	"github.com/gauthierbraillon/feedlab/internal/post"
	"github.com/gauthierbraillon/feedlab/internal/randpool"
	"github.com/gauthierbraillon/feedlab/internal/source"
)

// Options adjust one LoadFeed call.
type Options struct {
	// Personalization holds the participant's parameters. Empty disables
	// matching.
	Personalization personalize.Params
	// TotalPosts overrides feed_settings.total_posts when positive.
	TotalPosts int
	// Debug logs selection details regardless of the config's debug flag.
	Debug bool
}

// Feed is a generated feed and what went into it.
type Feed struct {
	ID                     string             `json:"id"`
	Config                 *config.Config     `json:"config"`
	Posts                  []post.Post        `json:"posts"`
	StimuliCount           int                `json:"stimuli_count"`
	FillersCount           int                `json:"fillers_count"`
	SelectedStimuliCount   int                `json:"selected_stimuli_count"`
	TailoredCount          int                `json:"tailored_count"`
	PersonalizationApplied bool               `json:"personalization_applied"`
	Personalization        personalize.Params `json:"personalization,omitempty"`
	Warnings               []string           `json:"warnings,omitempty"`
}

// Option configures a Loader.
type Option func(*Loader)

// WithSource sets the document client.
func WithSource(c *source.Client) Option {
	return func(l *Loader) { l.source = c }
}

// WithPool sets the random source. Pass a seeded pool for reproducible feeds.
func WithPool(p *randpool.Pool) Option {
	return func(l *Loader) { l.pool = p }
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(l *Loader) { l.logger = logger }
}

// WithMetrics records every generation in m.
func WithMetrics(m *Metrics) Option {
	return func(l *Loader) { l.metrics = m }
}

// Loader generates feeds. It is safe for concurrent use.
type Loader struct {
	source  *source.Client
	pool    *randpool.Pool
	logger  zerolog.Logger
	metrics *Metrics
}

// New creates a loader.
func New(opts ...Option) *Loader {
	l := &Loader{
		source: source.NewClient(),
		pool:   randpool.NewRandom(),
		logger: logging.Component("feedloader"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LoadConfig fetches and parses the configuration at location.
func (l *Loader) LoadConfig(ctx context.Context, location string) (*config.Config, error) {
	body, err := l.source.Fetch(ctx, location)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Parse(body, config.FormatOf(location))
	if errors.Is(err, config.ErrMalformed) {
		return nil, &source.ResourceLoadError{Location: location, Err: err}
	}
	return cfg, err
}

// LoadFeed generates one feed.
//
// Errors are *config.ConfigurationError for missing or invalid sections and
// *source.ResourceLoadError for documents that cannot be fetched or decoded.
// Running out of posts is not an error; the feed is simply shorter.
func (l *Loader) LoadFeed(ctx context.Context, configLocation string, opts Options) (*Feed, error) {
	feed, err := l.loadFeed(ctx, configLocation, opts)
	if err != nil {
		l.metrics.failed(errorKind(err))
		return nil, err
	}
	return feed, nil
}

func (l *Loader) loadFeed(ctx context.Context, configLocation string, opts Options) (*Feed, error) {
	session := identity.NewSession()
	id := uuid.NewString()
	logger := l.logger.With().Str("feed_id", id).Logger()

	cfg, err := l.LoadConfig(ctx, configLocation)
	if err != nil {
		return nil, err
	}
	settings := cfg.FeedSettings
	if opts.TotalPosts > 0 {
		settings.TotalPosts = opts.TotalPosts
	}
	effective := *cfg
	effective.FeedSettings = settings
	warnings := effective.Warnings()
	for _, w := range warnings {
		logger.Warn().Msg(w)
	}

	stimuliPool, fillersPool, err := l.loadPools(ctx, configLocation, cfg)
	if err != nil {
		return nil, err
	}

	gen := identity.New(cfg.Locale, cfg.AvatarSettings, l.pool)
	enr := enrich.New(cfg.Defaults, cfg.AvatarSettings.FallbackColors, gen, l.pool)
	stimuli := enr.EnrichAll(session, resolveKinds(stimuliPool.Posts))
	fillers := enr.EnrichAll(session, resolveKinds(fillersPool.Posts))

	var params personalize.Params
	if len(opts.Personalization) > 0 {
		params = cfg.Personalization.DeriveIdeology(opts.Personalization)
	}

	matcher := personalize.NewMatcher(cfg.Personalization, l.pool)
	res := aggregator.New(settings, matcher, l.pool).Mix(stimuli, fillers, params)

	feed := &Feed{
		ID:                     id,
		Config:                 cfg,
		Posts:                  res.Posts,
		StimuliCount:           len(stimuli),
		FillersCount:           len(fillers),
		SelectedStimuliCount:   res.SelectedStimuli,
		TailoredCount:          res.TailoredStimuli,
		PersonalizationApplied: res.PersonalizationApplied,
		Personalization:        params,
		Warnings:               warnings,
	}
	underfilled := res.Underfilled(settings.TotalPosts)
	l.metrics.observe(feed, underfilled)

	logger.Info().
		Int("posts", len(feed.Posts)).
		Int("stimuli", feed.StimuliCount).
		Int("fillers", feed.FillersCount).
		Int("selected", feed.SelectedStimuliCount).
		Int("tailored", feed.TailoredCount).
		Bool("personalized", feed.PersonalizationApplied).
		Msg("feed generated")
	if underfilled {
		logger.Warn().Int("total_posts", settings.TotalPosts).Int("posts", len(feed.Posts)).Msg("content pools exhausted before total_posts")
	}
	if cfg.Debug || opts.Debug {
		logSelection(logger, feed, session)
	}

	return feed, nil
}

func (l *Loader) loadPools(ctx context.Context, configLocation string, cfg *config.Config) (*post.Pool, *post.Pool, error) {
	var stimuli, fillers post.Pool
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return l.source.FetchJSON(gctx, source.Resolve(configLocation, cfg.StimuliSource), &stimuli)
	})
	g.Go(func() error {
		return l.source.FetchJSON(gctx, source.Resolve(configLocation, cfg.FillersSource), &fillers)
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return &stimuli, &fillers, nil
}

// LoadConditions builds the condition catalogue of the stimulus pool at
// location.
func (l *Loader) LoadConditions(ctx context.Context, location string) (*conditions.Catalogue, error) {
	var pool post.Pool
	if err := l.source.FetchJSON(ctx, location, &pool); err != nil {
		return nil, err
	}
	cat := conditions.Build(pool.Posts)
	cat.Source = location
	cat.GeneratedAt = pool.GeneratedAt
	return &cat, nil
}

// resolveKinds fills Author.Kind on freshly decoded posts.
func resolveKinds(posts []post.Post) []post.Post {
	for i := range posts {
		posts[i].ResolveKind()
	}
	return posts
}

func logSelection(logger zerolog.Logger, feed *Feed, s *identity.Session) {
	var tailored, selected []string
	for _, p := range feed.Posts {
		if !p.IsStimulus() {
			continue
		}
		selected = append(selected, string(p.ID))
		if p.IsTailored {
			tailored = append(tailored, string(p.ID))
		}
	}
	logger.Info().
		Strs("stimuli", selected).
		Strs("tailored", tailored).
		Interface("params", feed.Personalization).
		Int("names_used", s.NameCount()).
		Int("avatars_used", s.AvatarCount()).
		Msg("selection")
}

func errorKind(err error) string {
	var (
		cerr *config.ConfigurationError
		rerr *source.ResourceLoadError
	)
	switch {
	case errors.As(err, &cerr):
		return "configuration"
	case errors.As(err, &rerr):
		return "resource"
	default:
		return "other"
	}
}

// String summarizes the feed for logs and the CLI.
func (f *Feed) String() string {
	return fmt.Sprintf("feed %s: %d posts (%d/%d stimuli selected, %d tailored)",
		f.ID, len(f.Posts), f.SelectedStimuliCount, f.StimuliCount, f.TailoredCount)
}
