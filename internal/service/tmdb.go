package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/user/movie-explorer/internal/config"
	"github.com/user/movie-explorer/internal/logging"
	"github.com/user/movie-explorer/internal/metrics"
	"github.com/user/movie-explorer/internal/utils"
	"golang.org/x/time/rate"
)

// ErrNoMatch TMDb 上找不到对应条目
var ErrNoMatch = errors.New("tmdb: no match")

// UpstreamError TMDb 调用失败（网络、限流、5xx、熔断）
type UpstreamError struct {
	Endpoint   string
	StatusCode int // 0 表示没有拿到响应
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("tmdb %s: status %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("tmdb %s: %v", e.Endpoint, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// MovieMatch 搜索结果
type MovieMatch struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	ReleaseDate string `json:"release_date"`
	Overview    string `json:"overview"`
	PosterPath  string `json:"poster_path"`
}

type tmdbSearchResponse struct {
	Page    int          `json:"page"`
	Results []MovieMatch `json:"results"`
}

func (r *tmdbSearchResponse) empty() bool { return len(r.Results) == 0 }

// emptyResult 响应解析成功但没有可用结果，按 ErrNoMatch 处理
type emptyResult interface {
	empty() bool
}

// MovieDetails 电影详情
type MovieDetails struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	Overview    string `json:"overview"`
	PosterPath  string `json:"poster_path"`
	ReleaseDate string `json:"release_date"`
}

// CastMember 演员表条目，Order 越小越靠前
type CastMember struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Character   string `json:"character"`
	Order       int    `json:"order"`
	ProfilePath string `json:"profile_path"`
}

// CrewMember 职员表条目
type CrewMember struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Job         string `json:"job"`
	Department  string `json:"department"`
	ProfilePath string `json:"profile_path"`
}

// Credits 演职员表
type Credits struct {
	ID   int          `json:"id"`
	Cast []CastMember `json:"cast"`
	Crew []CrewMember `json:"crew"`
}

// TMDBClient TMDb 接口客户端
// 所有请求共用一个限速器，保证两次调用之间至少间隔 cfg.Delay
type TMDBClient struct {
	cfg     config.TMDBConfig
	http    *utils.HTTPClient
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[json.RawMessage]
	cache   *utils.TTLCache
}

// NewTMDBClient cfg.CacheTTL <= 0 时不缓存响应
func NewTMDBClient(cfg config.TMDBConfig) *TMDBClient {
	c := &TMDBClient{
		cfg:   cfg,
		http:  utils.NewHTTPClient(cfg.Timeout, "MovieExplorer/1.0"),
		cache: utils.NewTTLCache(cfg.CacheTTL),
	}
	if cfg.Delay > 0 {
		c.limiter = rate.NewLimiter(rate.Every(cfg.Delay), 1)
	}

	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	c.breaker = gobreaker.NewCircuitBreaker[json.RawMessage](gobreaker.Settings{
		Name:        "tmdb-api",
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("from", from.String()).Str("to", to.String()).Msg("[TMDB] 熔断器状态变化")
		},
		// 找不到条目是正常结果，不计入失败
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNoMatch) || errors.Is(err, context.Canceled)
		},
	})
	return c
}

// SearchMovie 按片名和年份搜索，返回第一条结果
func (c *TMDBClient) SearchMovie(ctx context.Context, title string, year *int) (*MovieMatch, error) {
	params := url.Values{}
	params.Set("query", title)
	params.Set("include_adult", "false")
	if year != nil {
		params.Set("year", strconv.Itoa(*year))
	}

	var resp tmdbSearchResponse
	if err := c.get(ctx, "search", "/search/movie", params, &resp); err != nil {
		if errors.Is(err, ErrNoMatch) {
			return nil, fmt.Errorf("search %q: %w", title, err)
		}
		return nil, err
	}
	return &resp.Results[0], nil
}

// MovieDetails 获取电影详情
func (c *TMDBClient) MovieDetails(ctx context.Context, tmdbID int) (*MovieDetails, error) {
	var resp MovieDetails
	if err := c.get(ctx, "details", fmt.Sprintf("/movie/%d", tmdbID), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// MovieCredits 获取演职员表，演员按 order 排序返回
func (c *TMDBClient) MovieCredits(ctx context.Context, tmdbID int) (*Credits, error) {
	var resp Credits
	if err := c.get(ctx, "credits", fmt.Sprintf("/movie/%d/credits", tmdbID), nil, &resp); err != nil {
		return nil, err
	}
	sortCast(resp.Cast)
	return &resp, nil
}

// PosterURL 海报完整地址，path 为空时返回 nil
func (c *TMDBClient) PosterURL(path string) *string {
	return c.imageURL("w500", path)
}

// ProfileURL 人物头像完整地址
func (c *TMDBClient) ProfileURL(path string) *string {
	return c.imageURL("w185", path)
}

func (c *TMDBClient) imageURL(size, path string) *string {
	if path == "" {
		return nil
	}
	u := strings.TrimRight(c.cfg.ImageBaseURL, "/") + "/" + size + "/" + strings.TrimLeft(path, "/")
	return &u
}

// Director 职员表中第一位 job 为 Director 的人
func Director(credits *Credits) *CrewMember {
	if credits == nil {
		return nil
	}
	for i := range credits.Crew {
		if credits.Crew[i].Job == "Director" && strings.TrimSpace(credits.Crew[i].Name) != "" {
			return &credits.Crew[i]
		}
	}
	return nil
}

// TopCast 前 n 位演员，跳过无名条目和重复人物
func TopCast(credits *Credits, n int) []CastMember {
	if credits == nil || n <= 0 {
		return nil
	}
	out := make([]CastMember, 0, n)
	seen := make(map[int]struct{}, n)
	for _, m := range credits.Cast {
		if len(out) == n {
			break
		}
		if strings.TrimSpace(m.Name) == "" {
			continue
		}
		if _, ok := seen[m.ID]; ok && m.ID != 0 {
			continue
		}
		seen[m.ID] = struct{}{}
		out = append(out, m)
	}
	return out
}

func sortCast(cast []CastMember) {
	sort.SliceStable(cast, func(i, j int) bool { return cast[i].Order < cast[j].Order })
}

// get 发送请求：缓存 -> 熔断 -> 限速 + 重试
// 每次调用只记录一个结果指标
func (c *TMDBClient) get(ctx context.Context, endpoint, path string, params url.Values, target interface{}) error {
	if params == nil {
		params = url.Values{}
	}
	cacheKey := path + "?" + params.Encode()
	if c.cfg.APIKey != "" {
		params.Set("api_key", c.cfg.APIKey)
	}
	fullURL := strings.TrimRight(c.cfg.BaseURL, "/") + path + "?" + params.Encode()

	if v, ok := c.cache.Get(cacheKey); ok {
		metrics.RecordTMDBCall(endpoint, "cached", 0)
		if err := json.Unmarshal(v.(json.RawMessage), target); err != nil {
			return err
		}
		if isEmpty(target) {
			return ErrNoMatch
		}
		return nil
	}

	start := time.Now()
	raw, err := c.breaker.Execute(func() (json.RawMessage, error) {
		return c.fetch(ctx, endpoint, fullURL)
	})
	elapsed := time.Since(start)

	switch {
	case err == nil:
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.RecordTMDBCall(endpoint, "breaker_open", elapsed)
		return &UpstreamError{Endpoint: endpoint, Err: err}
	case errors.Is(err, ErrNoMatch):
		metrics.RecordTMDBCall(endpoint, "no_match", elapsed)
		return err
	default:
		metrics.RecordTMDBCall(endpoint, "error", elapsed)
		return err
	}

	if err := json.Unmarshal(raw, target); err != nil {
		metrics.RecordTMDBCall(endpoint, "error", elapsed)
		return &UpstreamError{Endpoint: endpoint, Err: fmt.Errorf("解析响应失败: %w", err)}
	}
	c.cache.Set(cacheKey, raw)
	if isEmpty(target) {
		metrics.RecordTMDBCall(endpoint, "no_match", elapsed)
		return ErrNoMatch
	}
	metrics.RecordTMDBCall(endpoint, "ok", elapsed)
	return nil
}

func isEmpty(target interface{}) bool {
	e, ok := target.(emptyResult)
	return ok && e.empty()
}

// fetch 带限速和重试的单次逻辑调用
func (c *TMDBClient) fetch(ctx context.Context, endpoint, fullURL string) (json.RawMessage, error) {
	header := http.Header{}
	if c.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	backoff := c.cfg.RetryBackoff
	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, ctxErr(ctx, err)
			}
		}

		var raw json.RawMessage
		err := c.http.GetJSON(ctx, fullURL, header, &raw)
		if err == nil {
			return raw, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		wait, retry := classify(err, backoff)
		var se *utils.StatusError
		if errors.As(err, &se) {
			if se.StatusCode == http.StatusNotFound {
				return nil, fmt.Errorf("%s: %w", endpoint, ErrNoMatch)
			}
			lastErr = &UpstreamError{Endpoint: endpoint, StatusCode: se.StatusCode, Err: err}
		} else {
			lastErr = &UpstreamError{Endpoint: endpoint, Err: err}
		}
		if !retry || attempt == c.cfg.MaxRetries {
			break
		}

		metrics.RecordTMDBRetry()
		logging.Ctx(ctx).Debug().Err(err).Int("attempt", attempt+1).Dur("wait", wait).Msg("[TMDB] 请求失败，准备重试")
		if err := sleepCtx(ctx, wait); err != nil {
			return nil, err
		}
		backoff *= 2
	}
	return nil, lastErr
}

// classify 判断是否可重试以及等待时间
func classify(err error, backoff time.Duration) (time.Duration, bool) {
	var se *utils.StatusError
	if errors.As(err, &se) {
		switch {
		case se.StatusCode == http.StatusTooManyRequests:
			if se.RetryAfter > 0 {
				return se.RetryAfter, true
			}
			return backoff, true
		case se.StatusCode >= 500:
			return backoff, true
		default:
			return 0, false
		}
	}
	// 响应体不是合法 JSON，重试也不会变
	var de *utils.DecodeError
	if errors.As(err, &de) {
		return 0, false
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return backoff, true
	}
	// 连接被重置、响应截断等
	return backoff, true
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ctxErr rate.Limiter 在等待超过截止时间时返回自己的错误，这里统一为 context 错误
func ctxErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
