package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/user/movie-explorer/internal/model"
	"gorm.io/gorm"
)

type ActorRepository struct {
	db *gorm.DB
}

func NewActorRepository(db *gorm.DB) *ActorRepository {
	return &ActorRepository{db: db}
}

// List 按条件筛选演员，条件为 AND 关系
func (r *ActorRepository) List(ctx context.Context, f model.ActorFilter, p model.Page) ([]model.Actor, error) {
	q := r.db.WithContext(ctx).Model(&model.Actor{})

	if f.MovieID != nil {
		q = q.Where(`EXISTS (
			SELECT 1 FROM movie_actors ma
			WHERE ma.actor_id = actors.id AND ma.movie_id = ?)`, *f.MovieID)
	}
	if f.Genre != "" {
		q = q.Where(`EXISTS (
			SELECT 1 FROM movie_actors ma
			JOIN movie_genres mg ON mg.movie_id = ma.movie_id
			JOIN genres g ON g.id = mg.genre_id
			WHERE ma.actor_id = actors.id AND g.name ILIKE ?)`, containsPattern(f.Genre))
	}
	if f.Search != "" {
		q = q.Where("actors.name ILIKE ?", containsPattern(f.Search))
	}

	var actors []model.Actor
	err := q.Order("actors.id ASC").Offset(p.Skip).Limit(p.Limit).Find(&actors).Error
	if err != nil {
		return nil, fmt.Errorf("查询演员列表失败: %w", err)
	}
	return actors, nil
}

// FindByID 根据 ID 查找演员
func (r *ActorRepository) FindByID(ctx context.Context, id uint) (*model.Actor, error) {
	var actor model.Actor
	if err := r.db.WithContext(ctx).First(&actor, id).Error; err != nil {
		return nil, notFound(err, "演员", id)
	}
	return &actor, nil
}

// FindOrCreate 解析演员
// 有 TMDb 人物 ID 时按 ID 查找，找不到再认领同名且没有外部 ID 的记录；否则按姓名精确匹配
func (r *ActorRepository) FindOrCreate(ctx context.Context, ref model.PersonRef) (*model.Actor, error) {
	db := r.db.WithContext(ctx)
	var actor model.Actor

	if ref.TMDBPersonID != nil {
		found, err := first(db.Where("tmdb_person_id = ?", *ref.TMDBPersonID), &actor)
		if err != nil {
			return nil, err
		}
		if found {
			return &actor, nil
		}
		found, err = first(db.Where("name = ? AND tmdb_person_id IS NULL", ref.Name), &actor)
		if err != nil {
			return nil, err
		}
		if found {
			updates := map[string]interface{}{"tmdb_person_id": *ref.TMDBPersonID}
			if ref.ProfileImageURL != nil {
				updates["profile_image_url"] = *ref.ProfileImageURL
			}
			if err := db.Model(&actor).Updates(updates).Error; err != nil {
				return nil, fmt.Errorf("回填演员 TMDb ID 失败: %w", err)
			}
			actor.TMDBPersonID = ref.TMDBPersonID
			if ref.ProfileImageURL != nil {
				actor.ProfileImageURL = ref.ProfileImageURL
			}
			return &actor, nil
		}
	} else {
		found, err := first(db.Where("name = ?", ref.Name), &actor)
		if err != nil {
			return nil, err
		}
		if found {
			return &actor, nil
		}
	}

	actor = model.Actor{
		Name:            ref.Name,
		Bio:             ref.Bio,
		TMDBPersonID:    ref.TMDBPersonID,
		ProfileImageURL: ref.ProfileImageURL,
	}
	if err := db.Create(&actor).Error; err != nil {
		return nil, fmt.Errorf("创建演员 %q 失败: %w", ref.Name, err)
	}
	return &actor, nil
}

// Count 演员总数
func (r *ActorRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Actor{}).Count(&n).Error
	return n, err
}

// first 取按 id 排序的第一条记录，未找到时返回 false
func first(q *gorm.DB, dest interface{}) (bool, error) {
	err := q.Order("id ASC").First(dest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
