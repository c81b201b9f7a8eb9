package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"Idea_Portal/internal/service"
)

type VerificationHandler struct {
	svc *service.VerificationService
}

type SendVerificationReq struct {
	Email     string `json:"email" binding:"required"`
	FirstName string `json:"firstName" binding:"required"`
	LastName  string `json:"lastName" binding:"required"`
}

type TokenReq struct {
	Token string `json:"token" binding:"required"`
}

func NewVerificationHandler(svc *service.VerificationService) *VerificationHandler {
	return &VerificationHandler{svc: svc}
}

// Send 发送验证邮件；邮件投递失败也返回成功
func (h *VerificationHandler) Send(c *gin.Context) {
	var req SendVerificationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid params")
		return
	}
	err := h.svc.Issue(c.Request.Context(), service.IssueInput{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "verification email sent"})
}

// Verify 只读校验令牌，返回注册信息
func (h *VerificationHandler) Verify(c *gin.Context) {
	var req TokenReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid params")
		return
	}
	ident, err := h.svc.Redeem(c.Request.Context(), req.Token)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ident)
}

// Consume 标记令牌已使用
func (h *VerificationHandler) Consume(c *gin.Context) {
	var req TokenReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid params")
		return
	}
	if err := h.svc.Consume(c.Request.Context(), req.Token); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "ok"})
}
