package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/user/movie-explorer/internal/config"
	"github.com/user/movie-explorer/internal/logging"
	"github.com/user/movie-explorer/internal/repository"
	"github.com/user/movie-explorer/internal/service"
)

var (
	limit     int
	dataDir   string
	noTMDB    bool
	topCast   int
	migrateDB bool
)

var rootCmd = &cobra.Command{
	Use:   "seed",
	Short: "seed - 导入 MovieLens 数据集",
	Long: `seed 读取 MovieLens 的 movies.csv / ratings.csv 写入数据库。
配置了 TMDB_API_KEY 或 TMDB_TOKEN 时会从 TMDb 补全导演、演员、海报和简介，
补全失败的电影使用按 movieId 生成的占位导演和演员。重复执行结果一致。`,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().IntVar(&limit, "limit", 0, "只导入前 N 部电影，0 表示全部")
	rootCmd.Flags().StringVar(&dataDir, "data-dir", "", "数据集目录，默认读取 ML_DATA_DIR")
	rootCmd.Flags().BoolVar(&noTMDB, "no-tmdb", false, "不使用 TMDb 补全")
	rootCmd.Flags().IntVar(&topCast, "top-cast", 0, "每部电影导入的演员数，默认读取 SEED_TOP_CAST")
	rootCmd.Flags().BoolVar(&migrateDB, "migrate", true, "导入前创建/更新表结构")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if envErr != nil {
		logging.Debug().Msg("未找到 .env 文件，使用系统环境变量")
	}

	if cmd.Flags().Changed("limit") {
		cfg.Seed.Limit = limit
	}
	if dataDir != "" {
		cfg.Dataset.Dir = dataDir
	}
	if topCast > 0 {
		cfg.Seed.TopCast = topCast
	}

	db, err := repository.InitDB(cfg.Database)
	if err != nil {
		return fmt.Errorf("数据库连接失败: %w", err)
	}
	repos := repository.NewRepositories(db)
	defer repos.Close()

	if migrateDB {
		if err := repository.AutoMigrate(db); err != nil {
			return fmt.Errorf("数据库迁移失败: %w", err)
		}
	}

	var enricher service.Enricher
	if cfg.TMDB.Enabled() && !noTMDB {
		enricher = service.NewTMDBClient(cfg.TMDB)
	}

	opts := []service.SeederOption{}
	if cfg.Redis.URL != "" {
		lock, err := service.NewRedisLockFromURL(cfg.Redis.URL, cfg.Redis.LockKey, cfg.Seed.LockTTL)
		if err != nil {
			return err
		}
		defer lock.Close()
		opts = append(opts, service.WithLocker(lock))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	seeder := service.NewSeeder(repos, enricher, cfg, opts...)
	report, err := seeder.Run(ctx)
	if errors.Is(err, context.Canceled) && report != nil {
		logging.Warn().Int("processed", report.Processed).Msg("[Seed] 导入被中断，已提交的记录保留")
		return nil
	}
	if err != nil {
		return err
	}

	logging.Info().
		Str("run_id", report.RunID).
		Int("processed", report.Processed).
		Msg("MovieLens 导入完成")
	return nil
}
