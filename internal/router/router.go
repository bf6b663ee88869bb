package router

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"

	"github.com/structgen/backend/config"
	"github.com/structgen/backend/internal/handler"
	"github.com/structgen/backend/internal/pkg/metrics"
)

// Setup historyHandler 与 collector 可以为 nil（未启用历史记录或指标）
func Setup(
	cfg *config.Config,
	generateHandler *handler.GenerateHandler,
	historyHandler *handler.HistoryHandler,
	collector *metrics.Collector,
) *gin.Engine {
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
	}))
	// promhttp 自行处理压缩
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if collector != nil {
		r.GET("/metrics", gin.WrapH(collector.Handler()))
	}

	api := r.Group("/api")
	{
		api.POST("/generate", generateHandler.Generate)

		if historyHandler != nil {
			generations := api.Group("/generations")
			{
				generations.GET("", historyHandler.List)
				generations.GET("/:id", historyHandler.Get)
			}
		}
	}

	return r
}
