package router

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"Idea_Portal/internal/handler"
	"Idea_Portal/internal/middleware"
	"Idea_Portal/internal/service"
)

// Deps 路由需要的全部服务，由 cmd 层组装
type Deps struct {
	Ideas        *service.IdeaService
	Votes        *service.VoteService
	Moderation   *service.ModerationService
	Comments     *service.CommentService
	Verification *service.VerificationService
	Users        *service.UserService
	Auth         *middleware.Auth
	// Health 检查数据库和 redis
	Health func(ctx context.Context) error
}

func InitRouter(d Deps) *gin.Engine {
	r := gin.Default()
	r.Use(middleware.Metrics(), middleware.Tracing("ideas"))

	verification := handler.NewVerificationHandler(d.Verification)
	user := handler.NewUserHandler(d.Users)
	idea := handler.NewIdeaHandler(d.Ideas, d.Votes)
	vote := handler.NewVoteHandler(d.Votes)
	comment := handler.NewCommentHandler(d.Comments)
	admin := handler.NewAdminHandler(d.Moderation, d.Users, d.Auth.Forget)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", func(c *gin.Context) {
		if d.Health != nil {
			if err := d.Health(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "msg": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// 邮箱验证相关接口
	verificationGroup := r.Group("/api/verification")
	{
		verificationGroup.POST("/send", verification.Send)
		verificationGroup.POST("/verify", verification.Verify)
		verificationGroup.PUT("/verify", verification.Consume)
	}

	// 用户相关接口
	userGroup := r.Group("/api/user")
	{
		userGroup.POST("/register", user.Register)
		userGroup.POST("/login", user.Login)
	}

	// token相关接口
	tokenGroup := r.Group("/api/token")
	{
		tokenGroup.POST("/refresh", user.TokenRefresh)
	}

	// 登录态接口
	authGroup := r.Group("/api/auth")
	authGroup.Use(d.Auth.Middleware())
	{
		authGroup.POST("/logout", user.Logout)
		authGroup.GET("/me", user.Me)
		authGroup.POST("/change-password", user.ChangePassword)
	}

	// 想法、投票、评论接口
	ideaGroup := r.Group("/api/ideas")
	ideaGroup.Use(d.Auth.Middleware())
	{
		ideaGroup.GET("", idea.List)
		ideaGroup.POST("", idea.Create)
		ideaGroup.GET("/my-votes", idea.MyVotes)
		ideaGroup.GET("/:id", idea.Get)
		ideaGroup.PATCH("/:id", idea.Update)
		ideaGroup.DELETE("/:id", idea.Delete)

		ideaGroup.GET("/:id/vote", vote.Status)
		ideaGroup.POST("/:id/vote", vote.Vote)
		ideaGroup.DELETE("/:id/vote", vote.Unvote)

		ideaGroup.GET("/:id/comments", comment.List)
		ideaGroup.POST("/:id/comments", comment.Create)
		ideaGroup.PATCH("/:id/comments/:cid", comment.Update)
		ideaGroup.DELETE("/:id/comments/:cid", comment.Delete)
	}

	// 管理员接口
	adminGroup := r.Group("/api/admin")
	adminGroup.Use(d.Auth.Middleware(), middleware.RequireAdmin())
	{
		adminGroup.POST("/ideas/bulk/approve", admin.BulkApprove)
		adminGroup.POST("/ideas/bulk/reject", admin.BulkReject)
		adminGroup.POST("/ideas/:id/approve", admin.Approve)
		adminGroup.POST("/ideas/:id/reject", admin.Reject)
		adminGroup.POST("/ideas/:id/status", admin.SetStatus)
		adminGroup.POST("/ideas/:id/pin", admin.Pin)
		adminGroup.POST("/ideas/:id/unpin", admin.Unpin)

		adminGroup.GET("/reviews", admin.Reviews)
		adminGroup.GET("/stats", admin.Stats)
		adminGroup.GET("/users", admin.Users)
		adminGroup.PUT("/users/:id/role", admin.SetRole)
		adminGroup.DELETE("/users/:id", admin.DeleteUser)
	}

	return r
}
