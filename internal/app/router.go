package app

import (
	"comic_english_backend/docs"
	"comic_english_backend/internal/config"
	"comic_english_backend/internal/middleware"
	"comic_english_backend/internal/model"
	"comic_english_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	a.registerPublicRoutes(router, c)

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg), middleware.ActivityMiddleware(a.services.auth))
	{
		// 学生/通用 授权接口
		a.registerStudentRoutes(authGroup, c)

		// 教师相关接口
		teacher := authGroup.Group("")
		teacher.Use(middleware.RoleMiddleware(model.Teacher))
		a.registerTeacherRoutes(teacher, c)
	}
}

func (a *App) registerPublicRoutes(router *gin.Engine, c *controllers) {
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/auth/register", c.auth.Register)
		public.POST("/auth/login", c.auth.Login)
		public.GET("/topics", c.generation.Topics)
	}
}

func (a *App) registerStudentRoutes(rg *gin.RouterGroup, c *controllers) {
	rg.GET("/auth/me", c.auth.Me)
	rg.GET("/auth/activity", c.auth.Activity)

	// 学习模块
	rg.GET("/modules", c.content.ListModules)
	rg.GET("/modules/:id", c.content.GetModule)
	rg.GET("/modules/:id/panels/:panel/audio", c.content.GetPanelAudio)

	// 作答与学习记录
	rg.POST("/progress/submit", c.progress.SubmitAttempt)
	rg.GET("/progress/me", c.progress.MyProgress)
	rg.GET("/progress/:moduleId", c.progress.ModuleProgress)
	rg.POST("/progress/:moduleId/answer", c.progress.AnswerQuestion)
	rg.POST("/progress/:moduleId/complete", c.progress.Complete)

	// 排行榜
	rg.GET("/leaderboard", c.progress.Leaderboard)
	rg.GET("/leaderboard/students/:id/rank", c.progress.StudentRank)
}

func (a *App) registerTeacherRoutes(rg *gin.RouterGroup, c *controllers) {
	// 内容管理
	rg.POST("/modules", c.content.SaveModule)
	rg.DELETE("/modules/:id", c.content.DeleteModule)
	rg.GET("/modules/:id/exercises", c.content.ModuleExercises)
	rg.POST("/modules/:id/exercises", c.content.AddExercise)
	rg.PUT("/modules/:id/panels/:panel/audio", c.content.SavePanelAudio)
	rg.PUT("/exercises/:id", c.content.UpdateExercise)
	rg.DELETE("/exercises/:id", c.content.DeleteExercise)

	// 内容生成
	generate := rg.Group("/generate")
	{
		generate.POST("/modernize", c.generation.Modernize)
		generate.POST("/script", c.generation.ComicScript)
		generate.POST("/characters", c.generation.Characters)
		generate.POST("/image", c.generation.PanelImage)
		generate.POST("/audio", c.generation.PanelAudio)
		generate.POST("/exercises", c.generation.Exercises)
		generate.POST("/module", c.generation.CreateModule)
	}
	rg.GET("/ws/generation", c.generation.Connect)

	// 学生学习情况
	rg.GET("/progress/top-performers", c.progress.TopPerformers)
	rg.GET("/progress/students", c.progress.StudentsOverview)
	rg.GET("/progress/students/:id", c.progress.StudentDetails)

	// 用户管理
	users := rg.Group("/users")
	{
		users.GET("", c.user.ListUsers)
		users.GET("/statistics", c.user.Statistics)
		users.GET("/:id", c.user.GetUser)
		users.GET("/:id/progress", c.user.GetUserProgress)
		users.PUT("/:id", c.user.UpdateUser)
		users.PATCH("/:id/toggle-status", c.user.ToggleStatus)
		users.DELETE("/:id", c.user.DeleteUser)
		users.POST("/:id/reset-progress", c.user.ResetProgress)
	}

	// 报表
	rg.GET("/reports/types", c.report.ListTypes)
	rg.GET("/reports/:type", c.report.GenerateReport)
}
