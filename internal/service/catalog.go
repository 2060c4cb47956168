package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/user/movie-explorer/internal/config"
	"github.com/user/movie-explorer/internal/model"
)

// CatalogStore 查询服务依赖的存储接口
type CatalogStore interface {
	ListMovies(ctx context.Context, f model.MovieFilter, p model.Page) ([]model.Movie, error)
	GetMovie(ctx context.Context, id uint) (*model.Movie, error)
	ListActors(ctx context.Context, f model.ActorFilter, p model.Page) ([]model.Actor, error)
	GetActor(ctx context.Context, id uint) (*model.Actor, error)
	ListMoviesByActor(ctx context.Context, actorID uint) ([]model.Movie, error)
	GetDirector(ctx context.Context, id uint) (*model.Director, error)
	ListMoviesByDirector(ctx context.Context, directorID uint) ([]model.Movie, error)
	ListGenres(ctx context.Context) ([]model.Genre, error)
}

// CatalogService 电影目录查询，无状态、不做缓存
type CatalogService struct {
	store       CatalogStore
	maxPageSize int
}

func NewCatalogService(store CatalogStore, cfg *config.Config) *CatalogService {
	maxPage := 500
	if cfg != nil && cfg.API.MaxPageSize > 0 {
		maxPage = cfg.API.MaxPageSize
	}
	return &CatalogService{store: store, maxPageSize: maxPage}
}

// page 校验分页参数，超过上限的 limit 截断为上限
func (s *CatalogService) page(p model.Page) (model.Page, error) {
	if err := p.Validate(); err != nil {
		return p, err
	}
	if p.Limit > s.maxPageSize {
		p.Limit = s.maxPageSize
	}
	return p, nil
}

// ListMovies 按条件分页查询电影，条件之间为 AND
func (s *CatalogService) ListMovies(ctx context.Context, f model.MovieFilter, p model.Page) ([]model.Movie, error) {
	p, err := s.page(p)
	if err != nil {
		return nil, err
	}
	f = f.Trim()
	if err := f.Validate(); err != nil {
		return nil, err
	}

	movies, err := s.store.ListMovies(ctx, f, p)
	if err != nil {
		return nil, fmt.Errorf("list movies: %w", err)
	}
	return normalizeMovies(movies), nil
}

// GetMovie 电影详情
func (s *CatalogService) GetMovie(ctx context.Context, id uint) (*model.Movie, error) {
	movie, err := s.store.GetMovie(ctx, id)
	if err != nil {
		return nil, wrapLookup(err, "movie", id)
	}
	movie.Normalize()
	return movie, nil
}

// ListActors 按条件分页查询演员
func (s *CatalogService) ListActors(ctx context.Context, f model.ActorFilter, p model.Page) ([]model.Actor, error) {
	p, err := s.page(p)
	if err != nil {
		return nil, err
	}
	f = f.Trim()
	if err := f.Validate(); err != nil {
		return nil, err
	}

	actors, err := s.store.ListActors(ctx, f, p)
	if err != nil {
		return nil, fmt.Errorf("list actors: %w", err)
	}
	if actors == nil {
		actors = []model.Actor{}
	}
	return actors, nil
}

// GetActorDetail 演员详情及其参演电影
func (s *CatalogService) GetActorDetail(ctx context.Context, id uint) (*model.ActorDetail, error) {
	actor, err := s.store.GetActor(ctx, id)
	if err != nil {
		return nil, wrapLookup(err, "actor", id)
	}
	movies, err := s.store.ListMoviesByActor(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list movies of actor %d: %w", id, err)
	}
	return &model.ActorDetail{Actor: *actor, Movies: normalizeMovies(movies)}, nil
}

// GetDirectorDetail 导演详情及其执导电影
func (s *CatalogService) GetDirectorDetail(ctx context.Context, id uint) (*model.DirectorDetail, error) {
	director, err := s.store.GetDirector(ctx, id)
	if err != nil {
		return nil, wrapLookup(err, "director", id)
	}
	movies, err := s.store.ListMoviesByDirector(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list movies of director %d: %w", id, err)
	}
	return &model.DirectorDetail{Director: *director, Movies: normalizeMovies(movies)}, nil
}

// ListGenres 全部类型，按名称排序
func (s *CatalogService) ListGenres(ctx context.Context) ([]model.Genre, error) {
	genres, err := s.store.ListGenres(ctx)
	if err != nil {
		return nil, fmt.Errorf("list genres: %w", err)
	}
	if genres == nil {
		genres = []model.Genre{}
	}
	return genres, nil
}

func wrapLookup(err error, what string, id uint) error {
	if errors.Is(err, model.ErrNotFound) {
		return fmt.Errorf("%s %d: %w", what, id, model.ErrNotFound)
	}
	return fmt.Errorf("get %s %d: %w", what, id, err)
}

func normalizeMovies(movies []model.Movie) []model.Movie {
	if movies == nil {
		return []model.Movie{}
	}
	for i := range movies {
		movies[i].Normalize()
	}
	return movies
}
