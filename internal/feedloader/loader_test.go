// Package feedloader tests document end-to-end feed generation.
//
// Test requirements (this file serves as documentation):
// - Stimuli are interleaved with fillers at the configured positions
// - A participant matching every rule gets a tailored stimulus
// - Missing configuration sections fail fast with every section listed
// - Unreadable or malformed documents fail with a ResourceLoadError
// - Generated names are unique within a feed and independent across feeds
package feedloader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gauthierbraillon/feedlab/internal/config"
	"github.com/gauthierbraillon/feedlab/internal/logging"
	"github.com/gauthierbraillon/feedlab/internal/personalize"
	"github.com/gauthierbraillon/feedlab/internal/post"
	"github.com/gauthierbraillon/feedlab/internal/randpool"
	"github.com/gauthierbraillon/feedlab/internal/source"
)

const scenarioConfig = `{
  "feed_settings": {"total_posts": 10, "stimuli_count": 2, "filler_ratio": 3, "first_n_fillers": 2, "randomize_order": false},
  "personalization": {
    "enabled": true,
    "tailored_count": 1,
    "random_count": 1,
    "matching": [
      {"url_param": "gender", "post_path": "author.gender"},
      {"url_param": "age", "post_path": "author.age_group"},
      {"url_param": "politics", "post_path": "metadata.ideology", "transform": "political_to_ideology"},
      {"url_param": "issue", "post_path": "metadata.policy_issue"}
    ],
    "transforms": {
      "political_to_ideology": {"type": "range", "ranges": [
        {"min": 0, "max": 4, "value": "left"},
        {"min": 5, "max": 10, "value": "right"}
      ]}
    }
  },
  "locale": {
    "first_names": {
      "female": {"30-44": ["Anna", "Sara", "Eva", "Lena", "Mia", "Nora", "Ida", "Ella", "Alma", "Ines"]},
      "male": {"30-44": ["Tom", "Jan", "Lars", "Erik", "Nils", "Ole", "Finn", "Jonas", "Emil", "Karl"]}
    },
    "last_names": ["Berg", "Lund", "Dahl", "Holm", "Strand", "Wik", "Moe", "Aas", "Vik", "Lie",
                   "Bakke", "Haug", "Foss", "Nes", "Ruud", "Hagen", "Sand", "Eide", "Aune", "Myhre"]
  }
}`

func person(id string, typ post.Type, cond, gender, ideology, issue string) post.Post {
	return post.Post{
		ID:          post.ID(id),
		Type:        typ,
		Subtype:     post.SubtypePerson,
		ConditionID: cond,
		Text:        "text " + id,
		Author:      &post.Author{Gender: gender, AgeGroup: "30-44"},
		Metadata:    &post.Metadata{Ideology: ideology, PolicyIssue: issue},
	}
}

func fillerPool(n int) []post.Post {
	out := make([]post.Post, n)
	for i := range out {
		out[i] = person(fmt.Sprintf("f%d", i+1), post.TypeFiller, "", "male", "", "")
	}
	return out
}

func writeJSON(t *testing.T, path string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))
}

// writeStudy lays out a config with sibling stimuli.json and fillers.json.
func writeStudy(t *testing.T, cfg string, stimuli, fillers []post.Post) string {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "feed-config.json")
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o600))
	writeJSON(t, filepath.Join(dir, "stimuli.json"), post.Pool{Posts: stimuli})
	writeJSON(t, filepath.Join(dir, "fillers.json"), post.Pool{Posts: fillers})
	return cfgPath
}

func newLoader(seed int64, opts ...Option) *Loader {
	base := []Option{WithPool(randpool.New(seed)), WithLogger(zerolog.Nop())}
	return New(append(base, opts...)...)
}

func TestAC1000_LoadFeed_InterleavesAtConfiguredPositions(t *testing.T) {
	stimuli := []post.Post{
		person("s1", post.TypeStimulus, "c1", "female", "left", "X"),
		person("s2", post.TypeStimulus, "c2", "male", "right", "Y"),
	}
	cfgPath := writeStudy(t, scenarioConfig, stimuli, fillerPool(20))

	feed, err := newLoader(1).LoadFeed(context.Background(), cfgPath, Options{})
	require.NoError(t, err)

	require.Len(t, feed.Posts, 10)
	for i, p := range feed.Posts {
		switch i {
		case 2:
			assert.Equal(t, post.ID("s1"), p.ID, "position 2 should be stimulus #1")
		case 6:
			assert.Equal(t, post.ID("s2"), p.ID, "position 6 should be stimulus #2")
		default:
			assert.Equal(t, post.TypeFiller, p.Type, "position %d should be a filler", i)
		}
	}
	assert.Equal(t, 2, feed.StimuliCount)
	assert.Equal(t, 20, feed.FillersCount)
	assert.Equal(t, 2, feed.SelectedStimuliCount)
	assert.False(t, feed.PersonalizationApplied)
	assert.NotEmpty(t, feed.ID)
}

func TestAC1001_LoadFeed_EnrichesEveryPost(t *testing.T) {
	cfgPath := writeStudy(t, scenarioConfig, nil, fillerPool(5))

	feed, err := newLoader(2).LoadFeed(context.Background(), cfgPath, Options{})
	require.NoError(t, err)

	for _, p := range feed.Posts {
		assert.NotEmpty(t, p.Time)
		require.NotNil(t, p.Engagement)
		assert.NotEmpty(t, p.Author.Name)
		assert.Contains(t, p.Author.AvatarURL, "/men/")
		assert.NotEmpty(t, p.FallbackColor)
		assert.Equal(t, post.KindIndividual, p.Author.Kind)
	}
}

func TestAC1002_LoadFeed_TailorsMatchingStimulus(t *testing.T) {
	stimuli := []post.Post{
		person("match", post.TypeStimulus, "30-44_female_X_right", "female", "right", "X"),
		person("left", post.TypeStimulus, "30-44_female_X_left", "female", "left", "X"),
		person("male", post.TypeStimulus, "30-44_male_X_right", "male", "right", "X"),
	}
	cfgPath := writeStudy(t, scenarioConfig, stimuli, fillerPool(20))

	params := personalize.Params{"gender": "female", "age": "30-44", "politics": "8", "issue": "X"}
	feed, err := newLoader(3).LoadFeed(context.Background(), cfgPath, Options{Personalization: params})
	require.NoError(t, err)

	assert.True(t, feed.PersonalizationApplied)
	assert.Equal(t, 1, feed.TailoredCount)
	assert.Equal(t, 2, feed.SelectedStimuliCount)
	assert.Equal(t, "right", feed.Personalization[personalize.ParamIdeology], "ideology is derived from the political score")

	var tailored []post.ID
	for _, p := range feed.Posts {
		if p.IsTailored {
			tailored = append(tailored, p.ID)
		}
	}
	assert.Equal(t, []post.ID{"match"}, tailored)
}

func TestAC1003_LoadFeed_ReportsMissingSections(t *testing.T) {
	cfg := `{"feed_settings": {"total_posts": 5}, "locale": {"first_names": {}}}`
	cfgPath := writeStudy(t, cfg, nil, nil)

	_, err := newLoader(1).LoadFeed(context.Background(), cfgPath, Options{})

	var cerr *config.ConfigurationError
	require.True(t, errors.As(err, &cerr), "expected ConfigurationError, got %v", err)
	assert.Contains(t, err.Error(), "locale.last_names")
}

func TestAC1004_LoadFeed_MissingPoolIsResourceLoadError(t *testing.T) {
	cfgPath := writeStudy(t, scenarioConfig, nil, nil)
	require.NoError(t, os.Remove(filepath.Join(filepath.Dir(cfgPath), "fillers.json")))

	_, err := newLoader(1).LoadFeed(context.Background(), cfgPath, Options{})

	var rerr *source.ResourceLoadError
	require.True(t, errors.As(err, &rerr), "expected ResourceLoadError, got %v", err)
	assert.Contains(t, rerr.Location, "fillers.json")
}

func TestAC1004_LoadFeed_MalformedPoolIsResourceLoadError(t *testing.T) {
	cfgPath := writeStudy(t, scenarioConfig, nil, nil)
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(cfgPath), "stimuli.json"), []byte(`{"posts": [}`), 0o600))

	_, err := newLoader(1).LoadFeed(context.Background(), cfgPath, Options{})

	var rerr *source.ResourceLoadError
	require.True(t, errors.As(err, &rerr))
	assert.ErrorIs(t, err, source.ErrMalformed)
}

func TestAC1004_LoadFeed_MalformedConfigIsResourceLoadError(t *testing.T) {
	cfgPath := writeStudy(t, `{"feed_settings":`, nil, nil)

	_, err := newLoader(1).LoadFeed(context.Background(), cfgPath, Options{})

	var rerr *source.ResourceLoadError
	require.True(t, errors.As(err, &rerr))
	assert.ErrorIs(t, err, config.ErrMalformed)
}

func TestAC1005_LoadFeed_GeneratedNamesAreUnique(t *testing.T) {
	cfg := `{
  "feed_settings": {"total_posts": 30, "filler_ratio": 0},
  "locale": {
    "first_names": {"male": {"30-44": ["Tom", "Jan", "Lars", "Erik", "Nils", "Ole", "Finn", "Jonas", "Emil", "Karl"]}},
    "last_names": ["Berg", "Lund", "Dahl", "Holm", "Strand", "Wik", "Moe", "Aas", "Vik", "Lie"]
  }
}`
	cfgPath := writeStudy(t, cfg, nil, fillerPool(30))

	feed, err := newLoader(5).LoadFeed(context.Background(), cfgPath, Options{})
	require.NoError(t, err)

	seen := map[string]bool{}
	for _, p := range feed.Posts {
		require.False(t, seen[p.Author.Name], "name %q generated twice", p.Author.Name)
		seen[p.Author.Name] = true
	}
	assert.Len(t, seen, 30)
}

func TestAC1006_LoadFeed_ConcurrentFeedsDoNotShareNames(t *testing.T) {
	cfg := `{
  "feed_settings": {"total_posts": 3},
  "locale": {"first_names": {"male": {"30-44": ["Tom", "Jan", "Lars"]}}, "last_names": []}
}`
	cfgPath := writeStudy(t, cfg, nil, fillerPool(3))
	loader := newLoader(6)

	var wg sync.WaitGroup
	results := make([][]string, 8)
	errs := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			feed, err := loader.LoadFeed(context.Background(), cfgPath, Options{})
			errs[i] = err
			if err != nil {
				return
			}
			for _, p := range feed.Posts {
				results[i] = append(results[i], p.Author.Name)
			}
		}(i)
	}
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		assert.ElementsMatch(t, []string{"Tom", "Jan", "Lars"}, results[i], "feed %d should use every name exactly once", i)
	}
}

func TestAC1007_LoadFeed_TotalPostsOverride(t *testing.T) {
	cfgPath := writeStudy(t, scenarioConfig, nil, fillerPool(20))

	feed, err := newLoader(7).LoadFeed(context.Background(), cfgPath, Options{TotalPosts: 4})
	require.NoError(t, err)

	assert.Len(t, feed.Posts, 4)
}

func TestAC1007_LoadFeed_WarningsFollowTotalPostsOverride(t *testing.T) {
	cfgPath := writeStudy(t, scenarioConfig, nil, fillerPool(20))

	feed, err := newLoader(7).LoadFeed(context.Background(), cfgPath, Options{})
	require.NoError(t, err)
	assert.Empty(t, feed.Warnings, "2 selected stimuli fit in 10 posts")

	feed, err = newLoader(7).LoadFeed(context.Background(), cfgPath, Options{TotalPosts: 1})
	require.NoError(t, err)
	require.Len(t, feed.Warnings, 1)
	assert.Contains(t, feed.Warnings[0], "total_posts is 1")
	assert.Equal(t, 10, feed.Config.FeedSettings.TotalPosts, "loaded configuration should keep its own total")
}

func TestAC1007_LoadFeed_LogsThroughGlobalLogger(t *testing.T) {
	prev := logging.Logger()
	t.Cleanup(func() { logging.SetLogger(prev) })
	var buf bytes.Buffer
	logging.SetLogger(zerolog.New(&buf))

	cfgPath := writeStudy(t, scenarioConfig, nil, fillerPool(20))
	feed, err := New(WithPool(randpool.New(7))).LoadFeed(context.Background(), cfgPath, Options{TotalPosts: 1})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"component":"feedloader"`)
	assert.Contains(t, out, `"feed_id":"`+feed.ID+`"`)
	assert.Contains(t, out, "total_posts is 1")
	assert.Contains(t, out, "feed generated")
}

func TestAC1008_LoadFeed_ResolvesPoolsNextToRemoteConfig(t *testing.T) {
	stimuli, _ := json.Marshal(post.Pool{Posts: []post.Post{person("s1", post.TypeStimulus, "c1", "female", "left", "X")}})
	fillers, _ := json.Marshal(post.Pool{Posts: fillerPool(10)})
	mux := http.NewServeMux()
	mux.HandleFunc("/study/feed-config.json", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(scenarioConfig)) })
	mux.HandleFunc("/study/stimuli.json", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write(stimuli) })
	mux.HandleFunc("/study/fillers.json", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write(fillers) })
	server := httptest.NewServer(mux)
	defer server.Close()

	loader := newLoader(8, WithSource(source.NewClient(source.WithHTTPClient(server.Client()))))
	feed, err := loader.LoadFeed(context.Background(), server.URL+"/study/feed-config.json", Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, feed.StimuliCount)
	assert.Equal(t, 10, feed.FillersCount)
}

func TestAC1009_LoadFeed_RecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	loader := newLoader(9, WithMetrics(metrics))

	cfgPath := writeStudy(t, scenarioConfig, nil, fillerPool(3))
	_, err := loader.LoadFeed(context.Background(), cfgPath, Options{})
	require.NoError(t, err)

	_, err = loader.LoadFeed(context.Background(), filepath.Join(t.TempDir(), "missing.json"), Options{})
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.FeedsGenerated))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Underfilled), "3 fillers cannot fill 10 slots")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Personalization.WithLabelValues("false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.LoadErrors.WithLabelValues("resource")))
}

func TestAC1010_LoadConditions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stimuli.json")
	writeJSON(t, path, post.Pool{
		GeneratedAt: "2025-01-01T00:00:00Z",
		Posts: []post.Post{
			person("1", post.TypeStimulus, "c1", "female", "left", "X"),
			person("2", post.TypeStimulus, "c1", "female", "left", "X"),
			person("3", post.TypeStimulus, "c2", "male", "right", "Y"),
		},
	})

	cat, err := newLoader(1).LoadConditions(context.Background(), path)
	require.NoError(t, err)

	assert.Len(t, cat.Conditions, 2)
	assert.Equal(t, path, cat.Source)
	assert.Equal(t, "2025-01-01T00:00:00Z", cat.GeneratedAt)
	assert.Equal(t, []string{"female", "male"}, cat.Filters.Genders)
}
