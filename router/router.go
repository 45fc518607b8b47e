package router

import (
	"articlehub/config"
	handler "articlehub/internal/article"
	"articlehub/internal/article/repository"
	"articlehub/internal/article/service"
	"articlehub/internal/hitcounter"
	usermodel "articlehub/internal/user/model"
	userrepository "articlehub/internal/user/repository"
	"articlehub/middleware"
	"articlehub/socket"
	"database/sql"
	"net/http"
)

// Setup wires repositories, the article service and its routes.
func Setup(cfg *config.Config, db *sql.DB, hub *socket.Hub, hits *hitcounter.Counter, agreeLimiter *middleware.RateLimiter) http.Handler {
	mux := http.NewServeMux()
	auth := middleware.NewAuthenticator(cfg.JWTSecret)

	// WebSocket
	wsHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		socket.ServeWs(hub, w, r, middleware.UserFrom(r.Context()))
	})
	mux.Handle("/ws", auth.Authenticate(wsHandler))

	// REST API
	articleService := service.NewArticleService(service.Deps{
		Articles:  repository.NewArticleRepository(db),
		Histories: repository.NewHistoryRepository(db),
		Reports:   repository.NewReportRepository(db),
		Users:     userrepository.NewUserRepository(db),
		Tx:        repository.NewTransactor(db),
		Events:    hub,
		Hits:      hits,
	})
	articleHandler := handler.NewArticleHandler(articleService)

	route := func(pattern string, feature usermodel.Feature, h http.HandlerFunc, extra ...func(http.Handler) http.Handler) {
		var next http.Handler = h
		for i := len(extra) - 1; i >= 0; i-- {
			next = extra[i](next)
		}
		mux.Handle(pattern, auth.Authenticate(middleware.RequireFeature(feature)(next)))
	}
	public, mine, manage := usermodel.FeaturePublic, usermodel.FeatureUserMine, usermodel.FeatureUserManage

	route("/api/article/create", mine, articleHandler.Create)
	route("/api/article/del", mine, articleHandler.Delete)
	route("/api/article/edit", mine, articleHandler.Edit)
	route("/api/article/detail", public, articleHandler.Detail)
	route("/api/article/sort", manage, articleHandler.Sort)
	route("/api/article/page", mine, articleHandler.Page)
	route("/api/article/agree", public, articleHandler.Agree, agreeLimiter.Limit)
	route("/api/article/cancel/agree", public, articleHandler.CancelAgree, agreeLimiter.Limit)
	route("/api/article/top", manage, articleHandler.Top)
	route("/api/article/cancel/top", manage, articleHandler.CancelTop)
	route("/api/article/document/assign", mine, articleHandler.DocumentAssign)
	route("/api/article/document/index/del", mine, articleHandler.DocumentIndexDel)
	route("/api/article/document/article/save", mine, articleHandler.DocumentArticleSave)
	route("/api/article/document/placeholder/create", mine, articleHandler.DocumentPlaceholderCreate)
	route("/api/article/document/index", public, articleHandler.DocumentIndex)

	return middleware.CORS(cfg.AllowedOrigins)(middleware.RealIP(cfg.TrustedProxies)(mux))
}
