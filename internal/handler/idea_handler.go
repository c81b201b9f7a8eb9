package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"Idea_Portal/internal/service"
)

type IdeaHandler struct {
	ideas *service.IdeaService
	votes *service.VoteService
}

type CreateIdeaReq struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// UpdateIdeaReq 未出现的字段保持不变
type UpdateIdeaReq struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	IsPublic    *bool   `json:"isPublic"`
	IsPinned    *bool   `json:"isPinned"`
}

type ListIdeasQuery struct {
	Status string `form:"status"`
	Sort   string `form:"sort"`
	Pinned bool   `form:"pinned"`
	Mine   bool   `form:"mine"`
	Query  string `form:"q"`
	Limit  int    `form:"limit"`
	Offset int    `form:"offset"`
}

func NewIdeaHandler(ideas *service.IdeaService, votes *service.VoteService) *IdeaHandler {
	return &IdeaHandler{ideas: ideas, votes: votes}
}

// Create 提交想法，初始为 private 待审核
func (h *IdeaHandler) Create(c *gin.Context) {
	var req CreateIdeaReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid params")
		return
	}
	idea, err := h.ideas.Create(c.Request.Context(), viewer(c), service.CreateIdeaInput{
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, idea)
}

// List 列表接口，过滤、排序、分页都在 query 中
func (h *IdeaHandler) List(c *gin.Context) {
	var q ListIdeasQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, "invalid query")
		return
	}
	page, err := h.ideas.List(c.Request.Context(), viewer(c), service.ListParams{
		Status: q.Status,
		Sort:   q.Sort,
		Pinned: q.Pinned,
		Mine:   q.Mine,
		Query:  q.Query,
		Limit:  q.Limit,
		Offset: q.Offset,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *IdeaHandler) Get(c *gin.Context) {
	detail, err := h.ideas.Get(c.Request.Context(), viewer(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *IdeaHandler) Update(c *gin.Context) {
	var req UpdateIdeaReq
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid params")
		return
	}
	idea, err := h.ideas.Update(c.Request.Context(), viewer(c), c.Param("id"), service.UpdateIdeaInput{
		Title:       req.Title,
		Description: req.Description,
		IsPublic:    req.IsPublic,
		IsPinned:    req.IsPinned,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, idea)
}

func (h *IdeaHandler) Delete(c *gin.Context) {
	if err := h.ideas.Delete(c.Request.Context(), viewer(c), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "deleted"})
}

// MyVotes 当前用户投过票的想法
func (h *IdeaHandler) MyVotes(c *gin.Context) {
	ideas, err := h.votes.VotedIdeas(c.Request.Context(), viewer(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": ideas})
}
