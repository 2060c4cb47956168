package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/movie-explorer/internal/config"
	"github.com/user/movie-explorer/internal/metrics"
	"github.com/user/movie-explorer/internal/utils"
)

func testTMDBConfig(baseURL string) config.TMDBConfig {
	return config.TMDBConfig{
		APIKey:          "test-key",
		BaseURL:         baseURL,
		ImageBaseURL:    "https://image.tmdb.org/t/p",
		Timeout:         2 * time.Second,
		MaxRetries:      2,
		RetryBackoff:    time.Millisecond,
		BreakerFailures: 5,
		BreakerTimeout:  time.Minute,
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestSearchMovie(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search/movie", r.URL.Path)
		assert.Equal(t, "Toy Story", r.URL.Query().Get("query"))
		assert.Equal(t, "1995", r.URL.Query().Get("year"))
		assert.Equal(t, "test-key", r.URL.Query().Get("api_key"))
		writeJSON(w, map[string]interface{}{
			"page": 1,
			"results": []map[string]interface{}{
				{"id": 862, "title": "Toy Story", "poster_path": "/toy.jpg", "overview": "Woody"},
				{"id": 863, "title": "Toy Story 2"},
			},
		})
	}))
	defer srv.Close()

	year := 1995
	c := NewTMDBClient(testTMDBConfig(srv.URL))
	match, err := c.SearchMovie(context.Background(), "Toy Story", &year)
	require.NoError(t, err)
	assert.Equal(t, 862, match.ID)
	assert.Equal(t, "Woody", match.Overview)
	assert.Equal(t, "https://image.tmdb.org/t/p/w500/toy.jpg", *c.PosterURL(match.PosterPath))
	assert.Nil(t, c.PosterURL(""))
}

func TestSearchMovieNoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{"page": 1, "results": []interface{}{}})
	}))
	defer srv.Close()

	_, err := NewTMDBClient(testTMDBConfig(srv.URL)).SearchMovie(context.Background(), "Nope", nil)
	assert.ErrorIs(t, err, ErrNoMatch)
}

func TestMovieDetailsNotFound(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := NewTMDBClient(testTMDBConfig(srv.URL)).MovieDetails(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNoMatch)
	assert.Equal(t, int32(1), hits.Load())
}

func TestRetryOnTooManyRequests(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		writeJSON(w, map[string]interface{}{"id": 5, "overview": "ok"})
	}))
	defer srv.Close()

	details, err := NewTMDBClient(testTMDBConfig(srv.URL)).MovieDetails(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, "ok", details.Overview)
	assert.Equal(t, int32(2), hits.Load())
}

func TestServerErrorExhaustsRetries(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewTMDBClient(testTMDBConfig(srv.URL)).MovieCredits(context.Background(), 5)
	var uerr *UpstreamError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, http.StatusBadGateway, uerr.StatusCode)
	assert.Equal(t, int32(3), hits.Load())
}

func TestClientErrorNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewTMDBClient(testTMDBConfig(srv.URL)).MovieDetails(context.Background(), 5)
	var uerr *UpstreamError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, http.StatusUnauthorized, uerr.StatusCode)
	assert.Equal(t, int32(1), hits.Load())
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := testTMDBConfig(srv.URL)
	cfg.MaxRetries = 0
	cfg.BreakerFailures = 2
	c := NewTMDBClient(cfg)

	for i := 0; i < 2; i++ {
		_, err := c.MovieDetails(context.Background(), i)
		require.Error(t, err)
	}
	_, err := c.MovieDetails(context.Background(), 99)
	var uerr *UpstreamError
	require.ErrorAs(t, err, &uerr)
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState))
	assert.Equal(t, int32(2), hits.Load())
}

func TestNoMatchDoesNotTripBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	cfg := testTMDBConfig(srv.URL)
	cfg.BreakerFailures = 1
	c := NewTMDBClient(cfg)
	for i := 0; i < 3; i++ {
		_, err := c.MovieDetails(context.Background(), i)
		assert.ErrorIs(t, err, ErrNoMatch)
	}
}

func TestPacingBetweenCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{"id": 1})
	}))
	defer srv.Close()

	cfg := testTMDBConfig(srv.URL)
	cfg.Delay = 50 * time.Millisecond
	c := NewTMDBClient(cfg)

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := c.MovieDetails(context.Background(), i)
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestResponseCache(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		writeJSON(w, map[string]interface{}{"id": 1, "overview": "cached"})
	}))
	defer srv.Close()

	cfg := testTMDBConfig(srv.URL)
	cfg.CacheTTL = time.Minute
	c := NewTMDBClient(cfg)

	for i := 0; i < 2; i++ {
		d, err := c.MovieDetails(context.Background(), 1)
		require.NoError(t, err)
		assert.Equal(t, "cached", d.Overview)
	}
	assert.Equal(t, int32(1), hits.Load())
}

func TestBearerToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer read-token", r.Header.Get("Authorization"))
		assert.Empty(t, r.URL.Query().Get("api_key"))
		writeJSON(w, map[string]interface{}{"id": 1})
	}))
	defer srv.Close()

	cfg := testTMDBConfig(srv.URL)
	cfg.APIKey = ""
	cfg.Token = "read-token"
	_, err := NewTMDBClient(cfg).MovieDetails(context.Background(), 1)
	require.NoError(t, err)
}

func TestCreditsHelpers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{
			"id": 1,
			"cast": []map[string]interface{}{
				{"id": 3, "name": "Third", "order": 2},
				{"id": 1, "name": "First", "order": 0, "profile_path": "/first.jpg"},
				{"id": 2, "name": "Second", "order": 1},
				{"id": 1, "name": "First", "order": 3},
			},
			"crew": []map[string]interface{}{
				{"id": 10, "name": "Writer", "job": "Screenplay"},
				{"id": 11, "name": "John Lasseter", "job": "Director"},
				{"id": 12, "name": "Co Director", "job": "Director"},
			},
		})
	}))
	defer srv.Close()

	c := NewTMDBClient(testTMDBConfig(srv.URL))
	credits, err := c.MovieCredits(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "First", credits.Cast[0].Name)

	d := Director(credits)
	require.NotNil(t, d)
	assert.Equal(t, "John Lasseter", d.Name)

	top := TopCast(credits, 8)
	require.Len(t, top, 3)
	assert.Equal(t, []string{"First", "Second", "Third"}, []string{top[0].Name, top[1].Name, top[2].Name})
	assert.Len(t, TopCast(credits, 2), 2)
	assert.Equal(t, "https://image.tmdb.org/t/p/w185/first.jpg", *c.ProfileURL(top[0].ProfilePath))

	assert.Nil(t, Director(&Credits{}))
}

func TestContextCanceledStopsPacing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{"id": 1})
	}))
	defer srv.Close()

	cfg := testTMDBConfig(srv.URL)
	cfg.Delay = time.Hour
	c := NewTMDBClient(cfg)
	_, err := c.MovieDetails(context.Background(), 1)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.MovieDetails(ctx, 2)
	assert.Error(t, err)
}

func tmdbCalls(endpoint, outcome string) float64 {
	return testutil.ToFloat64(metrics.TMDBRequestsTotal.WithLabelValues(endpoint, outcome))
}

func TestSearchNoResultsCountedOnce(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		writeJSON(w, map[string]interface{}{"page": 1, "results": []interface{}{}})
	}))
	defer srv.Close()

	cfg := testTMDBConfig(srv.URL)
	cfg.CacheTTL = time.Minute
	c := NewTMDBClient(cfg)

	ok, noMatch, cached := tmdbCalls("search", "ok"), tmdbCalls("search", "no_match"), tmdbCalls("search", "cached")

	_, err := c.SearchMovie(context.Background(), "Nothing Here", nil)
	assert.ErrorIs(t, err, ErrNoMatch)
	assert.Equal(t, ok, tmdbCalls("search", "ok"))
	assert.Equal(t, noMatch+1, tmdbCalls("search", "no_match"))

	// 空结果同样会缓存
	_, err = c.SearchMovie(context.Background(), "Nothing Here", nil)
	assert.ErrorIs(t, err, ErrNoMatch)
	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, cached+1, tmdbCalls("search", "cached"))
	assert.Equal(t, noMatch+1, tmdbCalls("search", "no_match"))
}

func TestSearchMatchCountedAsOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{"results": []map[string]interface{}{{"id": 1, "title": "Alpha"}}})
	}))
	defer srv.Close()

	ok, noMatch := tmdbCalls("search", "ok"), tmdbCalls("search", "no_match")
	_, err := NewTMDBClient(testTMDBConfig(srv.URL)).SearchMovie(context.Background(), "Alpha", nil)
	require.NoError(t, err)
	assert.Equal(t, ok+1, tmdbCalls("search", "ok"))
	assert.Equal(t, noMatch, tmdbCalls("search", "no_match"))
}

func TestMalformedJSONNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": 1, "overview": `))
	}))
	defer srv.Close()

	_, err := NewTMDBClient(testTMDBConfig(srv.URL)).MovieDetails(context.Background(), 1)
	require.Error(t, err)

	var decodeErr *utils.DecodeError
	assert.ErrorAs(t, err, &decodeErr)
	var upstream *UpstreamError
	assert.ErrorAs(t, err, &upstream)
	assert.Equal(t, int32(1), hits.Load())
}
