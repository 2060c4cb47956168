package router

import (
	"fmt"
	"html/template"
	"path/filepath"

	"github.com/gin-contrib/multitemplate"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/user/movie-explorer/internal/handler"
)

// RegisterRoutes 注册所有路由
func RegisterRoutes(r *gin.Engine, h *handler.Handler) {
	r.GET("/", h.Root)
	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// ==================== JSON API ====================
	r.GET("/movies", h.ListMovies)
	r.GET("/movies/:id", h.GetMovie)
	r.GET("/actors", h.ListActors)
	r.GET("/actors/:id", h.GetActor)
	r.GET("/directors/:id", h.GetDirector)
	r.GET("/genres", h.ListGenres)

	// ==================== 浏览页面 ====================
	browse := r.Group("/browse")
	{
		browse.GET("", h.Browse)
		browse.GET("/movies/:id", h.MoviePage)
		browse.GET("/actors/:id", h.ActorPage)
		browse.GET("/directors/:id", h.DirectorPage)
	}

	r.NoRoute(h.NotFound)
}

// LoadTemplates 使用 multitemplate 加载模板，解决模板继承问题
func LoadTemplates(templatesDir string) (multitemplate.Renderer, error) {
	r := multitemplate.NewRenderer()

	// 获取布局和局部模板
	layouts, err := filepath.Glob(filepath.Join(templatesDir, "layouts", "*.html"))
	if err != nil {
		return nil, err
	}
	if len(layouts) == 0 {
		return nil, fmt.Errorf("%s 下没有布局模板", templatesDir)
	}
	partials, err := filepath.Glob(filepath.Join(templatesDir, "partials", "*.html"))
	if err != nil {
		return nil, err
	}

	// 组装模板文件列表
	assemble := func(view string) []string {
		files := make([]string, 0, len(layouts)+len(partials)+1)
		files = append(files, layouts...)
		files = append(files, partials...)
		files = append(files, view)
		return files
	}

	// 注册所有页面模板
	pages := []string{"home", "movie", "actor", "director", "404"}
	for _, page := range pages {
		viewPath := filepath.Join(templatesDir, "pages", page+".html")
		r.AddFromFilesFuncs(page+".html", FuncMap(), assemble(viewPath)...)
	}
	return r, nil
}

// FuncMap 模板函数
func FuncMap() template.FuncMap {
	return template.FuncMap{
		"default": func(defaultValue, value interface{}) interface{} {
			switch v := value.(type) {
			case string:
				if v == "" {
					return defaultValue
				}
			case *string:
				if v == nil || *v == "" {
					return defaultValue
				}
				return *v
			case *int:
				if v == nil {
					return defaultValue
				}
				return *v
			case int:
				if v == 0 {
					return defaultValue
				}
			case nil:
				return defaultValue
			}
			return value
		},
		"rating": func(v *float64) string {
			if v == nil {
				return "-"
			}
			return fmt.Sprintf("%.2f", *v)
		},
	}
}
