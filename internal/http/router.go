package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/insightflow-backend/internal/http/handlers"
	httpMW "github.com/yungbote/insightflow-backend/internal/http/middleware"
	"github.com/yungbote/insightflow-backend/internal/observability"
	"github.com/yungbote/insightflow-backend/internal/pkg/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	ServiceName    string
	AllowedOrigins []string
	Metrics        *observability.Metrics
	Timeout        httpMW.TimeoutConfig

	AuthMiddleware *httpMW.AuthMiddleware

	ProjectHandler    *httpH.ProjectHandler
	StoryBlockHandler *httpH.StoryBlockHandler
	DatasetHandler    *httpH.DatasetHandler
	ImageHandler      *httpH.ImageHandler

	HealthHandler *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.AllowedOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	rpc := r.Group(httpH.RPCPrefix)
	rpc.Use(httpMW.Timeout(cfg.Timeout.Duration))

	var procedures []httpH.Procedure
	if cfg.ProjectHandler != nil {
		procedures = append(procedures, cfg.ProjectHandler.Procedures()...)
	}
	if cfg.StoryBlockHandler != nil {
		procedures = append(procedures, cfg.StoryBlockHandler.Procedures()...)
	}
	if cfg.DatasetHandler != nil {
		procedures = append(procedures, cfg.DatasetHandler.Procedures()...)
	}
	if cfg.ImageHandler != nil {
		procedures = append(procedures, cfg.ImageHandler.Procedures()...)
	}

	for _, p := range procedures {
		chain := []gin.HandlerFunc{}
		if !p.Public && cfg.AuthMiddleware != nil {
			chain = append(chain, cfg.AuthMiddleware.RequireAuth())
		}
		chain = append(chain, p.Handle)
		rpc.Handle(p.Kind.Method(), p.Name, chain...)
	}

	return r
}
