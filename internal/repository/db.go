package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/user/movie-explorer/internal/config"
	"github.com/user/movie-explorer/internal/model"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	_ "github.com/lib/pq"
)

// InitDB 初始化数据库连接
// 连接由 lib/pq 建立，再交给 gorm 使用
func InitDB(cfg config.DatabaseConfig) (*gorm.DB, error) {
	sqlDB, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("无法连接数据库: %w", err)
	}

	// 设置连接池
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	// 测试连接
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("数据库 ping 失败: %w", err)
	}

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger:  NewGormLogger(cfg.SlowQueryThreshold),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("初始化 gorm 失败: %w", err)
	}
	return db, nil
}

// AutoMigrate 创建/更新表结构
func AutoMigrate(db *gorm.DB) error {
	if err := db.SetupJoinTable(&model.Movie{}, "Actors", &model.MovieActor{}); err != nil {
		return fmt.Errorf("setup movie_actors: %w", err)
	}
	if err := db.SetupJoinTable(&model.Movie{}, "Genres", &model.MovieGenre{}); err != nil {
		return fmt.Errorf("setup movie_genres: %w", err)
	}
	return db.AutoMigrate(
		&model.Genre{},
		&model.Director{},
		&model.Actor{},
		&model.Movie{},
		&model.MovieActor{},
		&model.MovieGenre{},
	)
}

// Repositories 仓库集合
type Repositories struct {
	DB       *gorm.DB
	Movie    *MovieRepository
	Actor    *ActorRepository
	Director *DirectorRepository
	Genre    *GenreRepository
}

// NewRepositories 创建仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		DB:       db,
		Movie:    NewMovieRepository(db),
		Actor:    NewActorRepository(db),
		Director: NewDirectorRepository(db),
		Genre:    NewGenreRepository(db),
	}
}

// Close 关闭底层连接
func (r *Repositories) Close() error {
	sqlDB, err := r.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping 检查数据库连通性
func (r *Repositories) Ping() error {
	sqlDB, err := r.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
