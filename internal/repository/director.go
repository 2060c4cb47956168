package repository

import (
	"context"
	"fmt"

	"github.com/user/movie-explorer/internal/model"
	"gorm.io/gorm"
)

type DirectorRepository struct {
	db *gorm.DB
}

func NewDirectorRepository(db *gorm.DB) *DirectorRepository {
	return &DirectorRepository{db: db}
}

// FindByID 根据 ID 查找导演
func (r *DirectorRepository) FindByID(ctx context.Context, id uint) (*model.Director, error) {
	var director model.Director
	if err := r.db.WithContext(ctx).First(&director, id).Error; err != nil {
		return nil, notFound(err, "导演", id)
	}
	return &director, nil
}

// FindOrCreate 解析导演，规则同演员
func (r *DirectorRepository) FindOrCreate(ctx context.Context, ref model.PersonRef) (*model.Director, error) {
	db := r.db.WithContext(ctx)
	var director model.Director

	if ref.TMDBPersonID != nil {
		found, err := first(db.Where("tmdb_person_id = ?", *ref.TMDBPersonID), &director)
		if err != nil {
			return nil, err
		}
		if found {
			return &director, nil
		}
		found, err = first(db.Where("name = ? AND tmdb_person_id IS NULL", ref.Name), &director)
		if err != nil {
			return nil, err
		}
		if found {
			if err := db.Model(&director).Update("tmdb_person_id", *ref.TMDBPersonID).Error; err != nil {
				return nil, fmt.Errorf("回填导演 TMDb ID 失败: %w", err)
			}
			director.TMDBPersonID = ref.TMDBPersonID
			return &director, nil
		}
	} else {
		found, err := first(db.Where("name = ?", ref.Name), &director)
		if err != nil {
			return nil, err
		}
		if found {
			return &director, nil
		}
	}

	director = model.Director{Name: ref.Name, Bio: ref.Bio, TMDBPersonID: ref.TMDBPersonID}
	if err := db.Create(&director).Error; err != nil {
		return nil, fmt.Errorf("创建导演 %q 失败: %w", ref.Name, err)
	}
	return &director, nil
}

// Count 导演总数
func (r *DirectorRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Director{}).Count(&n).Error
	return n, err
}
