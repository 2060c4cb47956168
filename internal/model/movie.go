package model

import (
	"time"
)

// Movie 电影（MovieLens 条目，可选 TMDb 补全）
type Movie struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	MLID        int       `json:"ml_id" gorm:"column:ml_id;uniqueIndex;not null"` // MovieLens movieId，自然键
	TMDBID      *int      `json:"tmdb_id" gorm:"column:tmdb_id"`
	Title       string    `json:"title" gorm:"index;not null"`
	ReleaseYear *int      `json:"release_year" gorm:"index"`
	Description *string   `json:"description"`
	Rating      *float64  `json:"rating"`
	RatingCount int       `json:"rating_count" gorm:"not null;default:0"`
	PosterURL   *string   `json:"poster_url"`
	DirectorID  *uint     `json:"-" gorm:"index"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Director    *Director `json:"director" gorm:"constraint:OnDelete:SET NULL;"`
	Actors      []Actor   `json:"actors" gorm:"many2many:movie_actors;"`
	Genres      []Genre   `json:"genres" gorm:"many2many:movie_genres;"`
}

// Actor 演员
type Actor struct {
	ID              uint    `json:"id" gorm:"primaryKey"`
	Name            string  `json:"name" gorm:"index;not null"`
	Bio             *string `json:"bio"`
	TMDBPersonID    *int    `json:"tmdb_person_id" gorm:"column:tmdb_person_id;index"`
	ProfileImageURL *string `json:"profile_image_url"`
}

// Director 导演
type Director struct {
	ID           uint    `json:"id" gorm:"primaryKey"`
	Name         string  `json:"name" gorm:"index;not null"`
	Bio          *string `json:"bio"`
	TMDBPersonID *int    `json:"-" gorm:"column:tmdb_person_id;index"`
}

// Genre 类型，名称全局唯一
type Genre struct {
	ID   uint   `json:"id" gorm:"primaryKey"`
	Name string `json:"name" gorm:"uniqueIndex;not null"`
}

// MovieActor 电影-演员关联
type MovieActor struct {
	MovieID uint `gorm:"primaryKey"`
	ActorID uint `gorm:"primaryKey;index"`
}

func (MovieActor) TableName() string { return "movie_actors" }

// MovieGenre 电影-类型关联
type MovieGenre struct {
	MovieID uint `gorm:"primaryKey"`
	GenreID uint `gorm:"primaryKey;index"`
}

func (MovieGenre) TableName() string { return "movie_genres" }

// ActorDetail 演员详情（含参演电影）
type ActorDetail struct {
	Actor
	Movies []Movie `json:"movies"`
}

// DirectorDetail 导演详情（含执导电影）
type DirectorDetail struct {
	Director
	Movies []Movie `json:"movies"`
}

// PersonRef 演职人员引用：有 TMDb ID 时按 ID 去重，否则按姓名
type PersonRef struct {
	Name            string
	TMDBPersonID    *int
	Bio             *string
	ProfileImageURL *string
}

// Normalize 保证嵌套集合序列化为 [] 而不是 null
func (m *Movie) Normalize() {
	if m.Actors == nil {
		m.Actors = []Actor{}
	}
	if m.Genres == nil {
		m.Genres = []Genre{}
	}
}
