package router

import (
	"net/http"
	"wallstreetvotes/internal/config"
	"wallstreetvotes/internal/handlers"
	"wallstreetvotes/internal/middleware"
	"wallstreetvotes/internal/services"
	"wallstreetvotes/internal/utils"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const sessionName = "wallstreet_session"

// New wires services, middleware and routes into a gin engine.
func New(cfg *config.Config, conn *gorm.DB, cache utils.Cache) (*gin.Engine, error) {
	identity, err := services.NewIdentityStore(conn, cfg.SigningKey())
	if err != nil {
		return nil, err
	}
	tally := services.NewTallyProjection(conn, services.NewStockLedger(conn), cache, cfg.CacheTTL)
	leadership := services.NewLeadership(conn, services.NewLeaderLedger(conn))

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger())

	// Setup Sessions
	store := cookie.NewStore([]byte(cfg.SessionKey))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7,
		HttpOnly: true,
		Secure:   cfg.IsProd,
	})
	r.Use(sessions.Sessions(sessionName, store))

	r.HTMLRender = loadTemplates(cfg.TemplatesDir)

	RegisterRoutes(r, cfg, identity, tally, leadership)
	return r, nil
}

func RegisterRoutes(r *gin.Engine, cfg *config.Config, identity *services.IdentityStore, tally *services.TallyProjection, leadership *services.Leadership) {
	// Handlers
	authHandler := handlers.NewAuthHandler(identity)
	stockHandler := handlers.NewStockHandler(tally, leadership)
	leaderHandler := handlers.NewLeaderHandler(leadership)
	apiHandler := handlers.NewAPIHandler(identity, tally, leadership, cfg.JWTSecret, cfg.JWTTTL)

	// JSON API 使用 bearer token, 不走 session
	api := r.Group("/api/v1")
	{
		api.POST("/token", apiHandler.Token) // 换取 token

		secured := api.Group("")
		secured.Use(middleware.JWTAuth(identity, cfg.JWTSecret))
		{
			secured.GET("/stocks", apiHandler.ListStocks)            // 股票列表
			secured.GET("/leaders", apiHandler.ListLeaders)          // 候选人列表
			secured.POST("/stocks/vote", apiHandler.VoteStock)       // 股票投票
			secured.POST("/leaders/:id/vote", apiHandler.VoteLeader) // leader 投票
		}
	}

	web := r.Group("/")
	web.Use(middleware.LoadUser(identity))

	// 公共路由 (Public Routes)
	web.GET("/", func(c *gin.Context) { c.Redirect(http.StatusFound, "/index") })
	web.GET("/register", authHandler.ShowRegister) // 注册页面
	web.POST("/register", authHandler.Register)    // 提交注册
	web.GET("/login", authHandler.ShowLogin)       // 登录页面
	web.POST("/login", authHandler.Login)          // 提交登录
	web.GET("/logout", authHandler.Logout)         // 退出登录

	// 受保护路由 (Protected Routes)
	authorized := web.Group("/")
	authorized.Use(middleware.AuthRequired())
	{
		authorized.GET("/index", stockHandler.Index)             // 股票与候选人列表
		authorized.GET("/vote_stock", stockHandler.VoteStock)    // 股票投票
		authorized.POST("/stocks", stockHandler.AddStock)        // leader 添加股票
		authorized.GET("/vote_leader", leaderHandler.VoteLeader) // leader 投票
	}

	// 管理路由 (Admin Routes)
	admin := authorized.Group("/leaders")
	admin.Use(middleware.AdminRequired(cfg.IsAdmin))
	{
		admin.POST("/:id/toggle", leaderHandler.ToggleLeader) // 提升/撤销 leader
	}
}
