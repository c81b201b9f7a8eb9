package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"Idea_Portal/internal/service"
)

type AdminHandler struct {
	mod   *service.ModerationService
	users *service.UserService
	// userChanged 角色变更或删除用户后通知鉴权层清缓存
	userChanged func(userID string)
}

type SetStatusReq struct {
	Status string `json:"status" binding:"required"`
}

type BulkReq struct {
	IDs []string `json:"ids" binding:"required"`
}

type SetRoleReq struct {
	Role string `json:"role" binding:"required"`
}

type pageQuery struct {
	Limit  int `form:"limit"`
	Offset int `form:"offset"`
}

func NewAdminHandler(mod *service.ModerationService, users *service.UserService, userChanged func(string)) *AdminHandler {
	if userChanged == nil {
		userChanged = func(string) {}
	}
	return &AdminHandler{mod: mod, users: users, userChanged: userChanged}
}

func (h *AdminHandler) Approve(c *gin.Context) {
	idea, err := h.mod.Approve(c.Request.Context(), viewer(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, idea)
}

func (h *AdminHandler) Reject(c *gin.Context) {
	idea, err := h.mod.Reject(c.Request.Context(), viewer(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, idea)
}

func (h *AdminHandler) SetStatus(c *gin.Context) {
	var req SetStatusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid params")
		return
	}
	idea, err := h.mod.SetStatus(c.Request.Context(), viewer(c), c.Param("id"), req.Status)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, idea)
}

func (h *AdminHandler) Pin(c *gin.Context) {
	idea, err := h.mod.Pin(c.Request.Context(), viewer(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, idea)
}

func (h *AdminHandler) Unpin(c *gin.Context) {
	idea, err := h.mod.Unpin(c.Request.Context(), viewer(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, idea)
}

// BulkApprove 部分成功也返回 200，失败项在 failed 中
func (h *AdminHandler) BulkApprove(c *gin.Context) {
	var req BulkReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid params")
		return
	}
	res, err := h.mod.BulkApprove(c.Request.Context(), viewer(c), req.IDs)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *AdminHandler) BulkReject(c *gin.Context) {
	var req BulkReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid params")
		return
	}
	res, err := h.mod.BulkReject(c.Request.Context(), viewer(c), req.IDs)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *AdminHandler) Reviews(c *gin.Context) {
	var q pageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, "invalid query")
		return
	}
	ideas, err := h.mod.PendingReviews(c.Request.Context(), viewer(c), q.Limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": ideas})
}

func (h *AdminHandler) Stats(c *gin.Context) {
	st, err := h.mod.Stats(c.Request.Context(), viewer(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *AdminHandler) Users(c *gin.Context) {
	var q pageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, "invalid query")
		return
	}
	page, err := h.users.ListUsers(c.Request.Context(), viewer(c), q.Limit, q.Offset)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *AdminHandler) SetRole(c *gin.Context) {
	var req SetRoleReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid params")
		return
	}
	id := c.Param("id")
	if err := h.users.SetRole(c.Request.Context(), viewer(c), id, req.Role); err != nil {
		writeError(c, err)
		return
	}
	h.userChanged(id)
	c.JSON(http.StatusOK, gin.H{"msg": "ok"})
}

// DeleteUser 危险操作
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	id := c.Param("id")
	if err := h.users.DeleteUser(c.Request.Context(), viewer(c), id); err != nil {
		writeError(c, err)
		return
	}
	h.userChanged(id)
	c.JSON(http.StatusOK, gin.H{"msg": "deleted"})
}
