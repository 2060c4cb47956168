package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/user/movie-explorer/internal/config"
	"github.com/user/movie-explorer/internal/dataset"
	"github.com/user/movie-explorer/internal/logging"
	"github.com/user/movie-explorer/internal/metrics"
	"github.com/user/movie-explorer/internal/model"
	"github.com/user/movie-explorer/internal/utils"
	"golang.org/x/sync/errgroup"
)

// SeedStore 导入服务依赖的存储接口
type SeedStore interface {
	FindOrCreateGenre(ctx context.Context, name string) (*model.Genre, error)
	FindOrCreateActor(ctx context.Context, ref model.PersonRef) (*model.Actor, error)
	FindOrCreateDirector(ctx context.Context, ref model.PersonRef) (*model.Director, error)
	UpsertMovie(ctx context.Context, movie *model.Movie, actorIDs, genreIDs []uint) (uint, error)
}

// Enricher 外部元数据来源，TMDBClient 实现了该接口
type Enricher interface {
	SearchMovie(ctx context.Context, title string, year *int) (*MovieMatch, error)
	MovieDetails(ctx context.Context, tmdbID int) (*MovieDetails, error)
	MovieCredits(ctx context.Context, tmdbID int) (*Credits, error)
	PosterURL(path string) *string
	ProfileURL(path string) *string
}

// SeedReport 一次导入的统计
type SeedReport struct {
	RunID     string        `json:"run_id"`
	Total     int           `json:"total"`     // 数据集中的电影数
	Processed int           `json:"processed"` // 成功写入
	Enriched  int           `json:"enriched"`  // 其中 TMDb 匹配成功
	Fallback  int           `json:"fallback"`  // 其中使用了占位导演
	Failed    int           `json:"failed"`    // 存储失败被跳过
	Skipped   int           `json:"skipped"`   // 超出 limit 或被中断未处理
	Duration  time.Duration `json:"duration"`
}

// Seeder MovieLens 导入
// 逐条顺序处理：解析 -> 补全 -> 占位 -> 写入，每条记录单独提交
type Seeder struct {
	store    SeedStore
	enricher Enricher
	locker   Locker
	cfg      config.SeedConfig
	dataset  config.DatasetConfig

	genres *utils.LRUCache[string, uint]
	people *utils.LRUCache[string, uint]
}

// SeederOption 导入选项
type SeederOption func(*Seeder)

// WithLocker 设置单写锁
func WithLocker(l Locker) SeederOption {
	return func(s *Seeder) { s.locker = l }
}

// WithLimit 只处理前 n 条，0 表示全部
func WithLimit(n int) SeederOption {
	return func(s *Seeder) { s.cfg.Limit = n }
}

// NewSeeder enricher 为 nil 时不做 TMDb 补全
func NewSeeder(store SeedStore, enricher Enricher, cfg *config.Config, opts ...SeederOption) *Seeder {
	s := &Seeder{
		store:    store,
		enricher: enricher,
		locker:   NoopLock{},
		cfg:      cfg.Seed,
		dataset:  cfg.Dataset,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cfg.TopCast <= 0 {
		s.cfg.TopCast = 8
	}
	if s.cfg.PlaceholderActors <= 0 {
		s.cfg.PlaceholderActors = 5
	}
	if s.cfg.ProgressEvery <= 0 {
		s.cfg.ProgressEvery = 50
	}
	s.genres = utils.NewLRUCache[string, uint](s.cfg.CacheSize)
	s.people = utils.NewLRUCache[string, uint](s.cfg.CacheSize)
	return s
}

// Run 执行一次完整导入
// 数据集缺失或格式错误时直接返回错误；单条记录的存储错误只记录并跳过。
// ctx 取消或导入锁丢失后在两条记录之间停止，已提交的记录保留，
// 返回的错误为取消原因（context.Canceled 或 ErrLockLost）。
func (s *Seeder) Run(ctx context.Context) (*SeedReport, error) {
	start := time.Now()
	report := &SeedReport{RunID: uuid.NewString()}
	logger := logging.Ctx(ctx).With().Str("run_id", report.RunID).Logger()
	ctx = logging.WithContext(ctx, logger)

	ctx, release, err := s.locker.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	records, ratings, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	report.Total = len(records)

	if s.enricher != nil {
		logger.Info().Msg("[Seed] TMDb 补全已启用")
	} else {
		logger.Info().Msg("[Seed] TMDb 补全未启用，使用占位数据")
	}

	if s.cfg.Limit > 0 && s.cfg.Limit < len(records) {
		report.Skipped = len(records) - s.cfg.Limit
		records = records[:s.cfg.Limit]
	}

	var runErr error
	for i, rec := range records {
		if ctx.Err() != nil {
			report.Skipped += len(records) - i
			runErr = context.Cause(ctx)
			break
		}

		outcome, err := s.seedRecord(ctx, rec, ratings)
		switch {
		case errors.Is(err, errInterrupted):
			report.Skipped += len(records) - i
			runErr = context.Cause(ctx)
		case err != nil:
			report.Failed++
			metrics.RecordSeedRecord("failed")
			logger.Error().Err(err).Int("ml_id", rec.MLID).Str("title", rec.Title).Msg("[Seed] 写入失败，跳过")
		default:
			report.Processed++
			if outcome.enriched {
				report.Enriched++
			}
			if outcome.fallback {
				report.Fallback++
				metrics.RecordSeedRecord("fallback")
			} else {
				metrics.RecordSeedRecord("enriched")
			}
		}
		if runErr != nil {
			break
		}

		if done := i + 1; done%s.cfg.ProgressEvery == 0 {
			logger.Info().Int("done", done).Int("total", len(records)).Msg("[Seed] 导入进度")
		}
	}

	report.Duration = time.Since(start)
	metrics.RecordSeedRun(report.Duration)
	logger.Info().
		Int("processed", report.Processed).
		Int("enriched", report.Enriched).
		Int("fallback", report.Fallback).
		Int("failed", report.Failed).
		Int("skipped", report.Skipped).
		Dur("duration", report.Duration).
		Msg("[Seed] 导入结束")
	return report, runErr
}

// load 并发读取电影和评分文件
func (s *Seeder) load(ctx context.Context) ([]dataset.Record, map[int]dataset.Rating, error) {
	var (
		records []dataset.Record
		ratings map[int]dataset.Rating
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		records, err = dataset.LoadMovies(s.dataset.MoviesPath())
		return err
	})
	g.Go(func() error {
		var err error
		ratings, err = dataset.LoadRatings(s.dataset.RatingsPath())
		if errors.Is(err, dataset.ErrNoRatings) {
			logging.Ctx(gctx).Warn().Str("path", s.dataset.RatingsPath()).Msg("[Seed] 评分文件不存在，不导入评分")
			ratings = map[int]dataset.Rating{}
			return nil
		}
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("读取数据集失败: %w", err)
	}
	logging.Ctx(ctx).Info().Int("movies", len(records)).Int("rated", len(ratings)).Msg("[Seed] 数据集读取完成")
	return records, ratings, nil
}

var errInterrupted = errors.New("seed interrupted")

type recordOutcome struct {
	enriched bool
	fallback bool
}

// enrichment TMDb 补全结果
type enrichment struct {
	tmdbID      *int
	description string
	posterURL   *string
	director    *model.PersonRef
	actors      []model.PersonRef
}

// seedRecord 处理单条记录，写入部分不受 ctx 取消影响
func (s *Seeder) seedRecord(ctx context.Context, rec dataset.Record, ratings map[int]dataset.Rating) (recordOutcome, error) {
	var out recordOutcome

	var enr enrichment
	if s.enricher != nil {
		enr = s.enrich(ctx, rec)
		if ctx.Err() != nil {
			return out, errInterrupted
		}
		out.enriched = enr.tmdbID != nil
	}

	wctx := context.WithoutCancel(ctx)

	genreIDs := make([]uint, 0, len(rec.Genres))
	for _, name := range rec.Genres {
		id, err := s.genreID(wctx, name)
		if err != nil {
			return out, err
		}
		genreIDs = append(genreIDs, id)
	}

	directorRef := enr.director
	actorRefs := enr.actors
	if directorRef == nil {
		out.fallback = true
		ref := PlaceholderDirector(rec.MLID)
		directorRef = &ref
		if len(actorRefs) == 0 {
			actorRefs = PlaceholderActors(rec.MLID, s.cfg.PlaceholderActors)
		}
	}

	directorID, err := s.personID(wctx, "director", *directorRef)
	if err != nil {
		return out, err
	}
	actorIDs := make([]uint, 0, len(actorRefs))
	for _, ref := range actorRefs {
		id, err := s.personID(wctx, "actor", ref)
		if err != nil {
			return out, err
		}
		actorIDs = append(actorIDs, id)
	}

	description := Description(enr.description, rec.Year)
	movie := &model.Movie{
		MLID:        rec.MLID,
		TMDBID:      enr.tmdbID,
		Title:       rec.Title,
		ReleaseYear: rec.Year,
		Description: &description,
		PosterURL:   enr.posterURL,
		DirectorID:  &directorID,
	}
	if r, ok := ratings[rec.MLID]; ok && r.Count > 0 {
		avg := math.Min(math.Max(r.Average, 0), 5)
		movie.Rating = &avg
		movie.RatingCount = r.Count
	}

	if _, err := s.store.UpsertMovie(wctx, movie, actorIDs, genreIDs); err != nil {
		return out, fmt.Errorf("upsert ml_id=%d: %w", rec.MLID, err)
	}
	return out, nil
}

// enrich 搜索 -> 详情 -> 演职员表，任何一步失败都只影响这一步之后的数据
func (s *Seeder) enrich(ctx context.Context, rec dataset.Record) enrichment {
	var enr enrichment
	logger := logging.Ctx(ctx).With().Int("ml_id", rec.MLID).Str("title", rec.Title).Logger()

	match, err := s.enricher.SearchMovie(ctx, rec.Title, rec.Year)
	if err != nil {
		if !errors.Is(err, ErrNoMatch) {
			logger.Warn().Err(err).Msg("[Seed] TMDb 搜索失败，使用占位数据")
		}
		return enr
	}
	id := match.ID
	enr.tmdbID = &id
	enr.description = strings.TrimSpace(match.Overview)
	enr.posterURL = s.enricher.PosterURL(match.PosterPath)

	if details, err := s.enricher.MovieDetails(ctx, id); err != nil {
		logger.Warn().Err(err).Int("tmdb_id", id).Msg("[Seed] 获取 TMDb 详情失败")
	} else {
		if o := strings.TrimSpace(details.Overview); o != "" {
			enr.description = o
		}
		if p := s.enricher.PosterURL(details.PosterPath); p != nil {
			enr.posterURL = p
		}
	}
	if ctx.Err() != nil {
		return enr
	}

	credits, err := s.enricher.MovieCredits(ctx, id)
	if err != nil {
		logger.Warn().Err(err).Int("tmdb_id", id).Msg("[Seed] 获取 TMDb 演职员表失败")
		return enr
	}
	if d := Director(credits); d != nil {
		ref := s.personRef(d.Name, d.ID, d.ProfilePath)
		enr.director = &ref
	}
	for _, m := range TopCast(credits, s.cfg.TopCast) {
		enr.actors = append(enr.actors, s.personRef(m.Name, m.ID, m.ProfilePath))
	}
	return enr
}

func (s *Seeder) personRef(name string, tmdbID int, profilePath string) model.PersonRef {
	ref := model.PersonRef{Name: strings.TrimSpace(name)}
	if tmdbID > 0 {
		id := tmdbID
		ref.TMDBPersonID = &id
	}
	ref.ProfileImageURL = s.enricher.ProfileURL(profilePath)
	return ref
}

// genreID 按名称精确去重
func (s *Seeder) genreID(ctx context.Context, name string) (uint, error) {
	if id, ok := s.genres.Get(name); ok {
		return id, nil
	}
	g, err := s.store.FindOrCreateGenre(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("resolve genre %q: %w", name, err)
	}
	s.genres.Add(name, g.ID)
	return g.ID, nil
}

// personID 演员、导演按 TMDb 人物 ID 去重，没有 ID 时按姓名
func (s *Seeder) personID(ctx context.Context, kind string, ref model.PersonRef) (uint, error) {
	key := kind + ":name:" + ref.Name
	if ref.TMDBPersonID != nil {
		key = kind + ":tmdb:" + strconv.Itoa(*ref.TMDBPersonID)
	}
	if id, ok := s.people.Get(key); ok {
		return id, nil
	}

	var id uint
	switch kind {
	case "director":
		d, err := s.store.FindOrCreateDirector(ctx, ref)
		if err != nil {
			return 0, fmt.Errorf("resolve director %q: %w", ref.Name, err)
		}
		id = d.ID
	default:
		a, err := s.store.FindOrCreateActor(ctx, ref)
		if err != nil {
			return 0, fmt.Errorf("resolve actor %q: %w", ref.Name, err)
		}
		id = a.ID
	}
	s.people.Add(key, id)
	return id, nil
}
