package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/user/movie-explorer/internal/config"
	"github.com/user/movie-explorer/internal/handler"
	"github.com/user/movie-explorer/internal/model"
	"github.com/user/movie-explorer/internal/router"
	"github.com/user/movie-explorer/internal/service"
	"github.com/user/movie-explorer/internal/utils"
)

// MockStore 存储层 mock，查询服务使用真实实现
type MockStore struct {
	mock.Mock
}

func (m *MockStore) ListMovies(ctx context.Context, f model.MovieFilter, p model.Page) ([]model.Movie, error) {
	args := m.Called(ctx, f, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Movie), args.Error(1)
}

func (m *MockStore) GetMovie(ctx context.Context, id uint) (*model.Movie, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Movie), args.Error(1)
}

func (m *MockStore) ListActors(ctx context.Context, f model.ActorFilter, p model.Page) ([]model.Actor, error) {
	args := m.Called(ctx, f, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Actor), args.Error(1)
}

func (m *MockStore) GetActor(ctx context.Context, id uint) (*model.Actor, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Actor), args.Error(1)
}

func (m *MockStore) ListMoviesByActor(ctx context.Context, actorID uint) ([]model.Movie, error) {
	args := m.Called(ctx, actorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Movie), args.Error(1)
}

func (m *MockStore) GetDirector(ctx context.Context, id uint) (*model.Director, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Director), args.Error(1)
}

func (m *MockStore) ListMoviesByDirector(ctx context.Context, directorID uint) ([]model.Movie, error) {
	args := m.Called(ctx, directorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Movie), args.Error(1)
}

func (m *MockStore) ListGenres(ctx context.Context) ([]model.Genre, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Genre), args.Error(1)
}

type pinger struct{ err error }

func (p pinger) Ping() error { return p.err }

func setupRouter(t *testing.T, store *MockStore, db handler.Pinger) *gin.Engine {
	t.Helper()
	return setupRouterWithConfig(t, store, db, config.Default())
}

func setupRouterWithConfig(t *testing.T, store *MockStore, db handler.Pinger, cfg *config.Config) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	h := handler.NewHandler(service.NewCatalogService(store, cfg), db, cfg)

	r := gin.New()
	render, err := router.LoadTemplates("../../web/templates")
	require.NoError(t, err)
	r.HTMLRender = render
	router.RegisterRoutes(r, h)
	return r
}

func get(r *gin.Engine, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) utils.Response {
	t.Helper()
	var resp utils.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func sampleMovie() *model.Movie {
	return &model.Movie{
		ID:          1,
		MLID:        1,
		Title:       "Alpha",
		ReleaseYear: intPtr(2001),
		Description: strPtr("A 2001 film"),
		Director:    &model.Director{ID: 7, Name: "Director_059"},
		Actors:      []model.Actor{{ID: 3, Name: "Actor_023"}, {ID: 4, Name: "Actor_036"}},
		Genres:      []model.Genre{{ID: 1, Name: "Action"}},
	}
}

func TestRootAndHealth(t *testing.T) {
	r := setupRouter(t, new(MockStore), pinger{})

	w := get(r, "/")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"Welcome to Movie Explorer API","docs":"/browse"}`, w.Body.String())

	w = get(r, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy","service":"Movie Explorer API"}`, w.Body.String())
}

func TestHealthReportsDatabaseFailure(t *testing.T) {
	r := setupRouter(t, new(MockStore), pinger{err: errors.New("connection refused")})

	w := get(r, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"unhealthy","service":"Movie Explorer API"}`, w.Body.String())
}

func TestListMoviesPassesFilters(t *testing.T) {
	store := new(MockStore)
	store.On("ListMovies", mock.Anything,
		mock.MatchedBy(func(f model.MovieFilter) bool {
			return f.Genre == "Action" && f.Search == "alp" && f.ReleaseYear != nil && *f.ReleaseYear == 2001
		}),
		model.Page{Skip: 0, Limit: 100},
	).Return([]model.Movie{*sampleMovie()}, nil)
	r := setupRouter(t, store, nil)

	w := get(r, "/movies?genre=Action&release_year=2001&search=%20alp%20")
	require.Equal(t, http.StatusOK, w.Code)

	var movies []model.Movie
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &movies))
	require.Len(t, movies, 1)
	assert.Equal(t, "Alpha", movies[0].Title)
	assert.Equal(t, "Director_059", movies[0].Director.Name)
	store.AssertExpectations(t)
}

func TestListMoviesEmptyIsArray(t *testing.T) {
	store := new(MockStore)
	store.On("ListMovies", mock.Anything, model.MovieFilter{}, model.Page{Skip: 10, Limit: 5}).Return(nil, nil)
	r := setupRouter(t, store, nil)

	w := get(r, "/movies?skip=10&limit=5")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", strings.TrimSpace(w.Body.String()))
}

func TestListMoviesClampsLimit(t *testing.T) {
	store := new(MockStore)
	store.On("ListMovies", mock.Anything, model.MovieFilter{}, model.Page{Skip: 0, Limit: 500}).Return([]model.Movie{}, nil)
	r := setupRouter(t, store, nil)

	w := get(r, "/movies?limit=1000")
	assert.Equal(t, http.StatusOK, w.Code)
	store.AssertExpectations(t)
}

func TestInvalidParametersReturn422(t *testing.T) {
	tests := []struct {
		name   string
		target string
		field  string
	}{
		{"negative skip", "/movies?skip=-1", "skip"},
		{"zero limit", "/movies?limit=0", "limit"},
		{"non numeric limit", "/movies?limit=abc", "limit"},
		{"non numeric year", "/movies?release_year=soon", "release_year"},
		{"actor movie_id", "/actors?movie_id=x", "movie_id"},
		{"actor negative skip", "/actors?skip=-5", "skip"},
		{"movie id", "/movies/abc", "id"},
		{"actor id", "/actors/abc", "id"},
		{"director id", "/directors/-1", "id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := new(MockStore)
			r := setupRouter(t, store, nil)

			w := get(r, tt.target)
			assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
			resp := decodeError(t, w)
			assert.False(t, resp.Success)
			assert.True(t, strings.HasPrefix(resp.Detail, tt.field+":"), "detail %q", resp.Detail)
			store.AssertNotCalled(t, "ListMovies", mock.Anything, mock.Anything, mock.Anything)
			store.AssertNotCalled(t, "ListActors", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestDetailNotFound(t *testing.T) {
	store := new(MockStore)
	missing := fmt.Errorf("电影 99: %w", model.ErrNotFound)
	store.On("GetMovie", mock.Anything, uint(99)).Return(nil, missing)
	store.On("GetActor", mock.Anything, uint(99)).Return(nil, missing)
	store.On("GetDirector", mock.Anything, uint(99)).Return(nil, missing)
	r := setupRouter(t, store, nil)

	for target, msg := range map[string]string{
		"/movies/99":    "Movie not found",
		"/actors/99":    "Actor not found",
		"/directors/99": "Director not found",
	} {
		w := get(r, target)
		assert.Equal(t, http.StatusNotFound, w.Code, target)
		assert.Equal(t, msg, decodeError(t, w).Message, target)
	}
}

func TestStorageFailureReturns500(t *testing.T) {
	store := new(MockStore)
	store.On("ListGenres", mock.Anything).Return(nil, errors.New("connection reset"))
	r := setupRouter(t, store, nil)

	w := get(r, "/genres")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "connection reset")
}

func TestGetActorIncludesMovies(t *testing.T) {
	store := new(MockStore)
	store.On("GetActor", mock.Anything, uint(3)).Return(&model.Actor{ID: 3, Name: "Actor_023"}, nil)
	store.On("ListMoviesByActor", mock.Anything, uint(3)).Return([]model.Movie{*sampleMovie()}, nil)
	r := setupRouter(t, store, nil)

	w := get(r, "/actors/3")
	require.Equal(t, http.StatusOK, w.Code)

	var detail struct {
		ID     uint          `json:"id"`
		Name   string        `json:"name"`
		Movies []model.Movie `json:"movies"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &detail))
	assert.Equal(t, "Actor_023", detail.Name)
	require.Len(t, detail.Movies, 1)
	assert.Equal(t, "Alpha", detail.Movies[0].Title)
}

func TestListActorsFilters(t *testing.T) {
	store := new(MockStore)
	store.On("ListActors", mock.Anything,
		mock.MatchedBy(func(f model.ActorFilter) bool {
			return f.MovieID != nil && *f.MovieID == 1 && f.Genre == "Drama"
		}),
		model.Page{Skip: 0, Limit: 100},
	).Return(nil, nil)
	r := setupRouter(t, store, nil)

	w := get(r, "/actors?movie_id=1&genre=Drama")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", strings.TrimSpace(w.Body.String()))
	store.AssertExpectations(t)
}

func TestUnknownRoute(t *testing.T) {
	r := setupRouter(t, new(MockStore), nil)

	w := get(r, "/nope")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Not Found", decodeError(t, w).Message)

	w = get(r, "/browse/nope")
	assert.Equal(t, http.StatusNotFound, w.Code)
	doc, err := goquery.NewDocumentFromReader(w.Body)
	require.NoError(t, err)
	assert.Equal(t, 1, doc.Find("section.not-found").Length())
}

func TestBrowsePage(t *testing.T) {
	store := new(MockStore)
	store.On("ListMovies", mock.Anything, model.MovieFilter{Genre: "Action"}, model.Page{Skip: 0, Limit: 24}).
		Return([]model.Movie{*sampleMovie()}, nil)
	store.On("ListGenres", mock.Anything).Return([]model.Genre{{ID: 1, Name: "Action"}, {ID: 2, Name: "Drama"}}, nil)
	r := setupRouter(t, store, nil)

	w := get(r, "/browse?genre=Action")
	require.Equal(t, http.StatusOK, w.Code)

	doc, err := goquery.NewDocumentFromReader(w.Body)
	require.NoError(t, err)
	cards := doc.Find("li.movie-card")
	require.Equal(t, 1, cards.Length())
	assert.Equal(t, "Alpha", cards.Find("a.movie-title").Text())
	href, _ := cards.Find("a.movie-title").Attr("href")
	assert.Equal(t, "/browse/movies/1", href)

	selected := doc.Find(`select[name="genre"] option[selected]`)
	assert.Equal(t, "Action", selected.Text())
	assert.Equal(t, 0, doc.Find(".pager a").Length())
}

func TestBrowsePaginationLinks(t *testing.T) {
	movies := make([]model.Movie, 24)
	for i := range movies {
		movies[i] = model.Movie{ID: uint(i + 25), Title: fmt.Sprintf("Movie %d", i+25)}
	}
	store := new(MockStore)
	store.On("ListMovies", mock.Anything, model.MovieFilter{}, model.Page{Skip: 24, Limit: 24}).Return(movies, nil)
	store.On("ListGenres", mock.Anything).Return([]model.Genre{}, nil)
	r := setupRouter(t, store, nil)

	w := get(r, "/browse?skip=24")
	require.Equal(t, http.StatusOK, w.Code)

	doc, err := goquery.NewDocumentFromReader(w.Body)
	require.NoError(t, err)
	prev, _ := doc.Find(".pager a.prev").Attr("href")
	next, _ := doc.Find(".pager a.next").Attr("href")
	assert.Equal(t, "/browse", prev)
	assert.Equal(t, "/browse?skip=48", next)
}

func TestBrowseEmptyResult(t *testing.T) {
	store := new(MockStore)
	store.On("ListMovies", mock.Anything, model.MovieFilter{Search: "zzz"}, model.Page{Skip: 0, Limit: 24}).Return(nil, nil)
	store.On("ListGenres", mock.Anything).Return([]model.Genre{}, nil)
	r := setupRouter(t, store, nil)

	w := get(r, "/browse?search=zzz")
	require.Equal(t, http.StatusOK, w.Code)
	doc, err := goquery.NewDocumentFromReader(w.Body)
	require.NoError(t, err)
	assert.Equal(t, 1, doc.Find("p.empty").Length())
}

func TestMoviePage(t *testing.T) {
	store := new(MockStore)
	store.On("GetMovie", mock.Anything, uint(1)).Return(sampleMovie(), nil)
	r := setupRouter(t, store, nil)

	w := get(r, "/browse/movies/1")
	require.Equal(t, http.StatusOK, w.Code)

	doc, err := goquery.NewDocumentFromReader(w.Body)
	require.NoError(t, err)
	assert.Equal(t, "Alpha (2001) - Movie Explorer", doc.Find("title").Text())
	assert.Equal(t, "A 2001 film", doc.Find("p.description").Text())
	assert.Equal(t, "Director_059", doc.Find("a.director").Text())
	assert.Equal(t, 2, doc.Find("ul.actors li a").Length())
	assert.Equal(t, "Action", doc.Find("ul.genres li").Text())
}

func TestMoviePageNotFound(t *testing.T) {
	store := new(MockStore)
	store.On("GetMovie", mock.Anything, uint(5)).Return(nil, model.ErrNotFound)
	r := setupRouter(t, store, nil)

	w := get(r, "/browse/movies/5")
	assert.Equal(t, http.StatusNotFound, w.Code)
	doc, err := goquery.NewDocumentFromReader(w.Body)
	require.NoError(t, err)
	assert.Equal(t, 1, doc.Find("section.not-found").Length())
}

func TestDirectorPage(t *testing.T) {
	store := new(MockStore)
	store.On("GetDirector", mock.Anything, uint(7)).
		Return(&model.Director{ID: 7, Name: "Director_059", Bio: strPtr("Placeholder director")}, nil)
	store.On("ListMoviesByDirector", mock.Anything, uint(7)).Return([]model.Movie{*sampleMovie()}, nil)
	r := setupRouter(t, store, nil)

	w := get(r, "/browse/directors/7")
	require.Equal(t, http.StatusOK, w.Code)

	doc, err := goquery.NewDocumentFromReader(w.Body)
	require.NoError(t, err)
	assert.Equal(t, "Director_059", doc.Find("h1").First().Text())
	assert.Equal(t, 1, doc.Find("li.movie-card").Length())
}

func TestBlankQueryValuesAreIgnored(t *testing.T) {
	store := new(MockStore)
	store.On("ListMovies", mock.Anything, model.MovieFilter{Search: "Alpha"}, model.Page{Skip: 0, Limit: 100}).
		Return([]model.Movie{*sampleMovie()}, nil)
	r := setupRouter(t, store, nil)

	w := get(r, "/movies?search=Alpha&genre=&release_year=&skip=&limit=")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var movies []model.Movie
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &movies))
	assert.Len(t, movies, 1)
	store.AssertExpectations(t)
}

func TestBlankActorFilterValues(t *testing.T) {
	store := new(MockStore)
	store.On("ListActors", mock.Anything, model.ActorFilter{}, model.Page{Skip: 0, Limit: 100}).Return(nil, nil)
	r := setupRouter(t, store, nil)

	w := get(r, "/actors?movie_id=&genre=")
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	store.AssertExpectations(t)
}

func TestBrowseFormWithBlankYear(t *testing.T) {
	store := new(MockStore)
	store.On("ListMovies", mock.Anything, model.MovieFilter{Search: "Alpha"}, model.Page{Skip: 0, Limit: 24}).
		Return([]model.Movie{*sampleMovie()}, nil)
	store.On("ListGenres", mock.Anything).Return([]model.Genre{{ID: 1, Name: "Action"}}, nil)
	r := setupRouter(t, store, nil)

	w := get(r, "/browse?search=Alpha&genre=&actor=&director=&release_year=")
	require.Equal(t, http.StatusOK, w.Code)

	doc, err := goquery.NewDocumentFromReader(w.Body)
	require.NoError(t, err)
	assert.Equal(t, 1, doc.Find("li.movie-card").Length())
	store.AssertExpectations(t)
}

func TestUnusualYearReturnsEmptyList(t *testing.T) {
	store := new(MockStore)
	store.On("ListMovies", mock.Anything,
		mock.MatchedBy(func(f model.MovieFilter) bool { return f.ReleaseYear != nil && *f.ReleaseYear == 1750 }),
		model.Page{Skip: 0, Limit: 100},
	).Return(nil, nil)
	r := setupRouter(t, store, nil)

	w := get(r, "/movies?release_year=1750")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", strings.TrimSpace(w.Body.String()))
}

func TestDefaultPageSizeFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.API.DefaultPageSize = 20
	store := new(MockStore)
	store.On("ListMovies", mock.Anything, model.MovieFilter{}, model.Page{Skip: 0, Limit: 20}).Return([]model.Movie{}, nil)
	store.On("ListActors", mock.Anything, model.ActorFilter{}, model.Page{Skip: 5, Limit: 20}).Return([]model.Actor{}, nil)
	r := setupRouterWithConfig(t, store, nil, cfg)

	assert.Equal(t, http.StatusOK, get(r, "/movies").Code)
	assert.Equal(t, http.StatusOK, get(r, "/actors?skip=5").Code)
	store.AssertExpectations(t)
}
