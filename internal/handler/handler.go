package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/user/movie-explorer/internal/config"
	"github.com/user/movie-explorer/internal/logging"
	"github.com/user/movie-explorer/internal/model"
	"github.com/user/movie-explorer/internal/utils"
)

// Catalog 目录查询服务
type Catalog interface {
	ListMovies(ctx context.Context, f model.MovieFilter, p model.Page) ([]model.Movie, error)
	GetMovie(ctx context.Context, id uint) (*model.Movie, error)
	ListActors(ctx context.Context, f model.ActorFilter, p model.Page) ([]model.Actor, error)
	GetActorDetail(ctx context.Context, id uint) (*model.ActorDetail, error)
	GetDirectorDetail(ctx context.Context, id uint) (*model.DirectorDetail, error)
	ListGenres(ctx context.Context) ([]model.Genre, error)
}

// Pinger 健康检查依赖
type Pinger interface {
	Ping() error
}

// Handler HTTP 处理器
type Handler struct {
	Catalog Catalog
	Config  *config.Config
	DB      Pinger // 可为 nil
}

// NewHandler 创建处理器
func NewHandler(catalog Catalog, db Pinger, cfg *config.Config) *Handler {
	return &Handler{
		Catalog: catalog,
		Config:  cfg,
		DB:      db,
	}
}

// RenderData 统一封装公共渲染数据
func (h *Handler) RenderData(c *gin.Context, data gin.H) gin.H {
	res := gin.H{
		"SiteName":   h.Config.Server.SiteName,
		"Path":       c.Request.URL.Path,
		"ActiveMenu": h.getActiveMenu(c.Request.URL.Path),
	}
	for k, v := range data {
		res[k] = v
	}
	return res
}

// getActiveMenu 根据路径判断当前高亮菜单
func (h *Handler) getActiveMenu(path string) string {
	switch {
	case path == "/browse":
		return "movies"
	case strings.HasPrefix(path, "/browse/actors"):
		return "actors"
	case strings.HasPrefix(path, "/browse/directors"):
		return "directors"
	default:
		return ""
	}
}

// dropEmptyQuery 去掉空值参数，表单提交的空输入框等同于未填写
func dropEmptyQuery(c *gin.Context) {
	q := c.Request.URL.Query()
	changed := false
	for k, vs := range q {
		kept := vs[:0]
		for _, v := range vs {
			if strings.TrimSpace(v) != "" {
				kept = append(kept, v)
			}
		}
		if len(kept) != len(vs) {
			changed = true
		}
		if len(kept) == 0 {
			delete(q, k)
		} else {
			q[k] = kept
		}
	}
	if changed {
		c.Request.URL.RawQuery = q.Encode()
	}
}

// defaultPage 未指定 skip/limit 时的分页
func (h *Handler) defaultPage() model.Page {
	return model.Page{Limit: h.Config.API.DefaultPageSize}
}

// intParams 整数查询参数，绑定前先检查格式，错误信息里带参数名
func intParams(c *gin.Context, names ...string) error {
	for _, name := range names {
		v, ok := c.GetQuery(name)
		if !ok || v == "" {
			continue
		}
		if _, err := strconv.Atoi(strings.TrimSpace(v)); err != nil {
			return &model.ValidationError{Field: name, Message: "value is not a valid integer"}
		}
	}
	return nil
}

// bindQuery 绑定筛选条件和分页参数
func bindQuery(c *gin.Context, filter interface{}, page *model.Page, ints ...string) error {
	dropEmptyQuery(c)
	if err := intParams(c, append(ints, "skip", "limit")...); err != nil {
		return err
	}
	if err := c.ShouldBindQuery(filter); err != nil {
		return &model.ValidationError{Field: "query", Message: err.Error()}
	}
	if err := c.ShouldBindQuery(page); err != nil {
		return &model.ValidationError{Field: "query", Message: err.Error()}
	}
	return nil
}

// pathID 解析路径中的 ID
func pathID(c *gin.Context) (uint, error) {
	raw := c.Param("id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, &model.ValidationError{Field: "id", Message: "value is not a valid integer"}
	}
	return uint(id), nil
}

// fail 把服务层错误映射为 HTTP 状态码
func (h *Handler) fail(c *gin.Context, err error, notFoundMsg string) {
	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr):
		utils.UnprocessableEntity(c, verr.Error())
	case errors.Is(err, model.ErrNotFound):
		utils.NotFound(c, notFoundMsg)
	default:
		_ = c.Error(err)
		logging.Ctx(c.Request.Context()).Error().Err(err).Str("path", c.Request.URL.Path).Msg("[API] 请求处理失败")
		utils.InternalServerError(c, "")
	}
}

// statusOf 页面渲染时使用的状态码
func statusOf(err error) int {
	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
