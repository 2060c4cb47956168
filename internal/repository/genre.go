package repository

import (
	"context"
	"fmt"

	"github.com/user/movie-explorer/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GenreRepository struct {
	db *gorm.DB
}

func NewGenreRepository(db *gorm.DB) *GenreRepository {
	return &GenreRepository{db: db}
}

// ListAll 全部类型，按名称排序
func (r *GenreRepository) ListAll(ctx context.Context) ([]model.Genre, error) {
	var genres []model.Genre
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&genres).Error; err != nil {
		return nil, fmt.Errorf("查询类型失败: %w", err)
	}
	return genres, nil
}

// FindOrCreate 按名称精确匹配，不存在则创建
func (r *GenreRepository) FindOrCreate(ctx context.Context, name string) (*model.Genre, error) {
	db := r.db.WithContext(ctx)
	genre := model.Genre{Name: name}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(&genre).Error
	if err != nil {
		return nil, fmt.Errorf("创建类型 %q 失败: %w", name, err)
	}
	if genre.ID != 0 {
		return &genre, nil
	}
	// 已存在：冲突时不返回行
	if err := db.Where("name = ?", name).First(&genre).Error; err != nil {
		return nil, fmt.Errorf("查询类型 %q 失败: %w", name, err)
	}
	return &genre, nil
}

// Count 类型总数
func (r *GenreRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.Genre{}).Count(&n).Error
	return n, err
}
