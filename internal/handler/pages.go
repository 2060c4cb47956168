package handler

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/user/movie-explorer/internal/model"
)

// browsePageSize 页面每页条数
const browsePageSize = 24

func isPage(c *gin.Context) bool {
	return strings.HasPrefix(c.Request.URL.Path, "/browse")
}

// renderError 页面错误统一渲染 404 模板
func (h *Handler) renderError(c *gin.Context, err error, title string) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		h.fail(c, err, "")
		return
	}
	c.HTML(status, "404.html", h.RenderData(c, gin.H{
		"Title":   title + " - " + h.Config.Server.SiteName,
		"Message": err.Error(),
	}))
}

// Browse 电影列表页，筛选条件与 /movies 一致
func (h *Handler) Browse(c *gin.Context) {
	var (
		filter model.MovieFilter
		page   = model.Page{Limit: browsePageSize}
	)
	dropEmptyQuery(c)
	if err := intParams(c, "release_year", "skip"); err != nil {
		h.renderError(c, err, "参数错误")
		return
	}
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.renderError(c, &model.ValidationError{Field: "query", Message: err.Error()}, "参数错误")
		return
	}
	if v := c.Query("skip"); v != "" {
		page.Skip, _ = strconv.Atoi(v)
	}

	ctx := c.Request.Context()
	movies, err := h.Catalog.ListMovies(ctx, filter, page)
	if err != nil {
		h.renderError(c, err, "参数错误")
		return
	}
	genres, err := h.Catalog.ListGenres(ctx)
	if err != nil {
		h.fail(c, err, "")
		return
	}

	data := gin.H{
		"Title":  h.Config.Server.SiteName + " - 电影",
		"Movies": movies,
		"Genres": genres,
		"Filter": filter,
		"Skip":   page.Skip,
	}
	if page.Skip > 0 {
		data["PrevURL"] = pageURL(c, max(page.Skip-browsePageSize, 0))
	}
	if len(movies) == browsePageSize {
		data["NextURL"] = pageURL(c, page.Skip+browsePageSize)
	}
	c.HTML(http.StatusOK, "home.html", h.RenderData(c, data))
}

// pageURL 保留当前筛选条件，只替换 skip
func pageURL(c *gin.Context, skip int) string {
	q := url.Values{}
	for k, vs := range c.Request.URL.Query() {
		if k == "skip" {
			continue
		}
		q[k] = vs
	}
	if skip > 0 {
		q.Set("skip", strconv.Itoa(skip))
	}
	if len(q) == 0 {
		return c.Request.URL.Path
	}
	return c.Request.URL.Path + "?" + q.Encode()
}

// MoviePage 电影详情页
func (h *Handler) MoviePage(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.renderError(c, err, "电影未找到")
		return
	}
	movie, err := h.Catalog.GetMovie(c.Request.Context(), id)
	if err != nil {
		h.renderError(c, err, "电影未找到")
		return
	}

	title := movie.Title
	if movie.ReleaseYear != nil {
		title += " (" + strconv.Itoa(*movie.ReleaseYear) + ")"
	}
	c.HTML(http.StatusOK, "movie.html", h.RenderData(c, gin.H{
		"Title": title + " - " + h.Config.Server.SiteName,
		"Movie": movie,
	}))
}

// ActorPage 演员详情页
func (h *Handler) ActorPage(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.renderError(c, err, "演员未找到")
		return
	}
	detail, err := h.Catalog.GetActorDetail(c.Request.Context(), id)
	if err != nil {
		h.renderError(c, err, "演员未找到")
		return
	}
	c.HTML(http.StatusOK, "actor.html", h.RenderData(c, gin.H{
		"Title":  detail.Name + " - " + h.Config.Server.SiteName,
		"Person": detail.Actor,
		"Movies": detail.Movies,
	}))
}

// DirectorPage 导演详情页
func (h *Handler) DirectorPage(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.renderError(c, err, "导演未找到")
		return
	}
	detail, err := h.Catalog.GetDirectorDetail(c.Request.Context(), id)
	if err != nil {
		h.renderError(c, err, "导演未找到")
		return
	}
	c.HTML(http.StatusOK, "director.html", h.RenderData(c, gin.H{
		"Title":  detail.Name + " - " + h.Config.Server.SiteName,
		"Person": detail.Director,
		"Movies": detail.Movies,
	}))
}
