package repository

import (
	"context"
	"fmt"

	"github.com/lib/pq"
	"github.com/user/movie-explorer/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// upsertColumns ON CONFLICT (ml_id) 时覆盖的列
var upsertColumns = []string{
	"tmdb_id", "title", "release_year", "description", "rating",
	"rating_count", "poster_url", "director_id", "updated_at",
}

type MovieRepository struct {
	db *gorm.DB
}

func NewMovieRepository(db *gorm.DB) *MovieRepository {
	return &MovieRepository{db: db}
}

// List 按条件筛选电影
// 多对多条件使用 EXISTS 半连接，同一部电影只会出现一次，分页在全部条件之后生效
func (r *MovieRepository) List(ctx context.Context, f model.MovieFilter, p model.Page) ([]model.Movie, error) {
	q := r.db.WithContext(ctx).Model(&model.Movie{})

	if f.Genre != "" {
		q = q.Where(`EXISTS (
			SELECT 1 FROM movie_genres mg JOIN genres g ON g.id = mg.genre_id
			WHERE mg.movie_id = movies.id AND g.name ILIKE ?)`, containsPattern(f.Genre))
	}
	if f.Actor != "" {
		q = q.Where(`EXISTS (
			SELECT 1 FROM movie_actors ma JOIN actors a ON a.id = ma.actor_id
			WHERE ma.movie_id = movies.id AND a.name ILIKE ?)`, containsPattern(f.Actor))
	}
	if f.Director != "" {
		q = q.Where(`EXISTS (
			SELECT 1 FROM directors d
			WHERE d.id = movies.director_id AND d.name ILIKE ?)`, containsPattern(f.Director))
	}
	if f.ReleaseYear != nil {
		q = q.Where("movies.release_year = ?", *f.ReleaseYear)
	}
	if f.Search != "" {
		q = q.Where("movies.title ILIKE ?", containsPattern(f.Search))
	}

	var movies []model.Movie
	err := withRelations(q).
		Order("movies.id ASC").
		Offset(p.Skip).
		Limit(p.Limit).
		Find(&movies).Error
	if err != nil {
		return nil, fmt.Errorf("查询电影列表失败: %w", err)
	}
	return movies, nil
}

// FindByID 根据 ID 查找电影
func (r *MovieRepository) FindByID(ctx context.Context, id uint) (*model.Movie, error) {
	var movie model.Movie
	if err := withRelations(r.db.WithContext(ctx)).First(&movie, id).Error; err != nil {
		return nil, notFound(err, "电影", id)
	}
	return &movie, nil
}

// FindByMLID 根据 MovieLens ID 查找电影
func (r *MovieRepository) FindByMLID(ctx context.Context, mlID int) (*model.Movie, error) {
	var movie model.Movie
	if err := withRelations(r.db.WithContext(ctx)).Where("ml_id = ?", mlID).First(&movie).Error; err != nil {
		return nil, notFound(err, "电影", uint(mlID))
	}
	return &movie, nil
}

// ListByActor 演员参演的全部电影
func (r *MovieRepository) ListByActor(ctx context.Context, actorID uint) ([]model.Movie, error) {
	var movies []model.Movie
	err := withRelations(r.db.WithContext(ctx)).
		Where("EXISTS (SELECT 1 FROM movie_actors ma WHERE ma.movie_id = movies.id AND ma.actor_id = ?)", actorID).
		Order("movies.id ASC").
		Find(&movies).Error
	if err != nil {
		return nil, fmt.Errorf("查询演员电影失败: %w", err)
	}
	return movies, nil
}

// ListByDirector 导演执导的全部电影
func (r *MovieRepository) ListByDirector(ctx context.Context, directorID uint) ([]model.Movie, error) {
	var movies []model.Movie
	err := withRelations(r.db.WithContext(ctx)).
		Where("movies.director_id = ?", directorID).
		Order("movies.id ASC").
		Find(&movies).Error
	if err != nil {
		return nil, fmt.Errorf("查询导演电影失败: %w", err)
	}
	return movies, nil
}

// UpsertByMLID 按 ml_id 创建或更新电影，并同步演员、类型关联
// 整条记录在一个事务内提交，返回库中电影 ID
func (r *MovieRepository) UpsertByMLID(ctx context.Context, movie *model.Movie, actorIDs, genreIDs []uint) (uint, error) {
	var id uint
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := *movie
		row.ID = 0
		row.Director = nil
		row.Actors = nil
		row.Genres = nil

		err := tx.Omit(clause.Associations).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "ml_id"}},
			DoUpdates: clause.AssignmentColumns(upsertColumns),
		}).Create(&row).Error
		if err != nil {
			return fmt.Errorf("upsert movie ml_id=%d: %w", movie.MLID, err)
		}

		// 冲突更新时以库中记录为准
		var stored model.Movie
		if err := tx.Select("id", "created_at", "updated_at").Where("ml_id = ?", movie.MLID).First(&stored).Error; err != nil {
			return fmt.Errorf("reload movie ml_id=%d: %w", movie.MLID, err)
		}
		id = stored.ID
		movie.CreatedAt = stored.CreatedAt
		movie.UpdatedAt = stored.UpdatedAt

		if err := syncActorLinks(tx, id, actorIDs); err != nil {
			return err
		}
		return syncGenreLinks(tx, id, genreIDs)
	})
	if err != nil {
		return 0, err
	}
	movie.ID = id
	return id, nil
}

// syncActorLinks 补齐缺失的关联并删除多余的关联，已存在的关联不重复写入
func syncActorLinks(tx *gorm.DB, movieID uint, actorIDs []uint) error {
	ids := uniqueIDs(actorIDs)
	if len(ids) > 0 {
		links := make([]model.MovieActor, 0, len(ids))
		for _, id := range ids {
			links = append(links, model.MovieActor{MovieID: movieID, ActorID: id})
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&links).Error; err != nil {
			return fmt.Errorf("link actors: %w", err)
		}
	}

	del := tx.Where("movie_id = ?", movieID)
	if len(ids) > 0 {
		del = del.Where("actor_id <> ALL(?)", pq.Array(toInt64s(ids)))
	}
	if err := del.Delete(&model.MovieActor{}).Error; err != nil {
		return fmt.Errorf("unlink actors: %w", err)
	}
	return nil
}

func syncGenreLinks(tx *gorm.DB, movieID uint, genreIDs []uint) error {
	ids := uniqueIDs(genreIDs)
	if len(ids) > 0 {
		links := make([]model.MovieGenre, 0, len(ids))
		for _, id := range ids {
			links = append(links, model.MovieGenre{MovieID: movieID, GenreID: id})
		}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&links).Error; err != nil {
			return fmt.Errorf("link genres: %w", err)
		}
	}

	del := tx.Where("movie_id = ?", movieID)
	if len(ids) > 0 {
		del = del.Where("genre_id <> ALL(?)", pq.Array(toInt64s(ids)))
	}
	if err := del.Delete(&model.MovieGenre{}).Error; err != nil {
		return fmt.Errorf("unlink genres: %w", err)
	}
	return nil
}

// Count 电影总数
func (r *MovieRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Movie{}).Count(&n).Error
	return n, err
}
