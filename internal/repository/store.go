package repository

import (
	"context"

	"github.com/user/movie-explorer/internal/model"
)

// 以下方法让 Repositories 同时满足查询服务与导入服务所需的存储接口

func (r *Repositories) ListMovies(ctx context.Context, f model.MovieFilter, p model.Page) ([]model.Movie, error) {
	return r.Movie.List(ctx, f, p)
}

func (r *Repositories) GetMovie(ctx context.Context, id uint) (*model.Movie, error) {
	return r.Movie.FindByID(ctx, id)
}

func (r *Repositories) ListActors(ctx context.Context, f model.ActorFilter, p model.Page) ([]model.Actor, error) {
	return r.Actor.List(ctx, f, p)
}

func (r *Repositories) GetActor(ctx context.Context, id uint) (*model.Actor, error) {
	return r.Actor.FindByID(ctx, id)
}

func (r *Repositories) ListMoviesByActor(ctx context.Context, actorID uint) ([]model.Movie, error) {
	return r.Movie.ListByActor(ctx, actorID)
}

func (r *Repositories) GetDirector(ctx context.Context, id uint) (*model.Director, error) {
	return r.Director.FindByID(ctx, id)
}

func (r *Repositories) ListMoviesByDirector(ctx context.Context, directorID uint) ([]model.Movie, error) {
	return r.Movie.ListByDirector(ctx, directorID)
}

func (r *Repositories) ListGenres(ctx context.Context) ([]model.Genre, error) {
	return r.Genre.ListAll(ctx)
}

func (r *Repositories) FindOrCreateGenre(ctx context.Context, name string) (*model.Genre, error) {
	return r.Genre.FindOrCreate(ctx, name)
}

func (r *Repositories) FindOrCreateActor(ctx context.Context, ref model.PersonRef) (*model.Actor, error) {
	return r.Actor.FindOrCreate(ctx, ref)
}

func (r *Repositories) FindOrCreateDirector(ctx context.Context, ref model.PersonRef) (*model.Director, error) {
	return r.Director.FindOrCreate(ctx, ref)
}

func (r *Repositories) UpsertMovie(ctx context.Context, movie *model.Movie, actorIDs, genreIDs []uint) (uint, error) {
	return r.Movie.UpsertByMLID(ctx, movie, actorIDs, genreIDs)
}
