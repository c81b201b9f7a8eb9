package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"Idea_Portal/internal/service"
)

type CommentHandler struct {
	svc *service.CommentService
}

type CreateCommentReq struct {
	Content  string  `json:"content"`
	ParentID *string `json:"parentId"`
}

type UpdateCommentReq struct {
	Content string `json:"content"`
}

func NewCommentHandler(svc *service.CommentService) *CommentHandler {
	return &CommentHandler{svc: svc}
}

func (h *CommentHandler) List(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context(), viewer(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": list})
}

func (h *CommentHandler) Create(c *gin.Context) {
	var req CreateCommentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid params")
		return
	}
	view, err := h.svc.Create(c.Request.Context(), viewer(c), c.Param("id"), req.Content, req.ParentID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (h *CommentHandler) Update(c *gin.Context) {
	var req UpdateCommentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid params")
		return
	}
	view, err := h.svc.Update(c.Request.Context(), viewer(c), c.Param("id"), c.Param("cid"), req.Content)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *CommentHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), viewer(c), c.Param("id"), c.Param("cid")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "deleted"})
}
