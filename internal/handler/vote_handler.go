package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"Idea_Portal/internal/service"
)

type VoteHandler struct {
	svc *service.VoteService
}

func NewVoteHandler(svc *service.VoteService) *VoteHandler {
	return &VoteHandler{svc: svc}
}

func (h *VoteHandler) Vote(c *gin.Context) {
	idea, err := h.svc.Vote(c.Request.Context(), viewer(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"voted": true, "voteCount": idea.VoteCount})
}

func (h *VoteHandler) Unvote(c *gin.Context) {
	idea, err := h.svc.Unvote(c.Request.Context(), viewer(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"voted": false, "voteCount": idea.VoteCount})
}

func (h *VoteHandler) Status(c *gin.Context) {
	voted, err := h.svc.HasVoted(c.Request.Context(), viewer(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"voted": voted})
}
