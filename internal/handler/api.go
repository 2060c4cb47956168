package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/user/movie-explorer/internal/logging"
	"github.com/user/movie-explorer/internal/model"
)

// Root 欢迎信息
func (h *Handler) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "Welcome to " + h.Config.Server.SiteName + " API",
		"docs":    "/browse",
	})
}

// Health 健康检查
func (h *Handler) Health(c *gin.Context) {
	service := h.Config.Server.SiteName + " API"
	if h.DB != nil {
		if err := h.DB.Ping(); err != nil {
			logging.Ctx(c.Request.Context()).Error().Err(err).Msg("[API] 数据库不可用")
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "service": service})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": service})
}

// ListMovies GET /movies
func (h *Handler) ListMovies(c *gin.Context) {
	var filter model.MovieFilter
	page := h.defaultPage()
	if err := bindQuery(c, &filter, &page, "release_year"); err != nil {
		h.fail(c, err, "")
		return
	}

	movies, err := h.Catalog.ListMovies(c.Request.Context(), filter, page)
	if err != nil {
		h.fail(c, err, "")
		return
	}
	c.JSON(http.StatusOK, movies)
}

// GetMovie GET /movies/:id
func (h *Handler) GetMovie(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.fail(c, err, "")
		return
	}
	movie, err := h.Catalog.GetMovie(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, "Movie not found")
		return
	}
	c.JSON(http.StatusOK, movie)
}

// ListActors GET /actors
func (h *Handler) ListActors(c *gin.Context) {
	var filter model.ActorFilter
	page := h.defaultPage()
	if err := bindQuery(c, &filter, &page, "movie_id"); err != nil {
		h.fail(c, err, "")
		return
	}

	actors, err := h.Catalog.ListActors(c.Request.Context(), filter, page)
	if err != nil {
		h.fail(c, err, "")
		return
	}
	c.JSON(http.StatusOK, actors)
}

// GetActor GET /actors/:id
func (h *Handler) GetActor(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.fail(c, err, "")
		return
	}
	detail, err := h.Catalog.GetActorDetail(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, "Actor not found")
		return
	}
	c.JSON(http.StatusOK, detail)
}

// GetDirector GET /directors/:id
func (h *Handler) GetDirector(c *gin.Context) {
	id, err := pathID(c)
	if err != nil {
		h.fail(c, err, "")
		return
	}
	detail, err := h.Catalog.GetDirectorDetail(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, "Director not found")
		return
	}
	c.JSON(http.StatusOK, detail)
}

// ListGenres GET /genres
func (h *Handler) ListGenres(c *gin.Context) {
	genres, err := h.Catalog.ListGenres(c.Request.Context())
	if err != nil {
		h.fail(c, err, "")
		return
	}
	c.JSON(http.StatusOK, genres)
}

// NotFound 未匹配的路由，页面路径渲染 404 页面
func (h *Handler) NotFound(c *gin.Context) {
	if isPage(c) {
		c.HTML(http.StatusNotFound, "404.html", h.RenderData(c, gin.H{
			"Title": "页面不存在 - " + h.Config.Server.SiteName,
		}))
		return
	}
	c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": "Not Found", "success": false})
}
