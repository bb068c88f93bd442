package handlers

import (
	"net/http"
	"wallstreetvotes/internal/middleware"
	"wallstreetvotes/internal/services"
	"wallstreetvotes/internal/utils"

	"github.com/gin-gonic/gin"
)

type LeaderHandler struct {
	leadership *services.Leadership
}

func NewLeaderHandler(leadership *services.Leadership) *LeaderHandler {
	return &LeaderHandler{leadership: leadership}
}

// VoteLeader handles GET /vote_leader?candidate=&up=
func (h *LeaderHandler) VoteLeader(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	ctx := c.Request.Context()

	candidateID, ok := utils.ParseID(c.Query("candidate"))
	if !ok {
		RenderError(c, http.StatusBadRequest, "Unknown candidate.", "/index")
		return
	}
	dir, err := services.ParseVoteDirection(c.Query("up"))
	if err != nil {
		RenderServiceError(c, err, "/index")
		return
	}

	if _, voted, err := h.leadership.Ledger().HasVoted(ctx, candidateID, user.ID); err != nil {
		RenderServiceError(c, err, "/index")
		return
	} else if voted {
		RenderServiceError(c, services.ErrAlreadyVoted, "/index")
		return
	}

	if err := h.leadership.VoteLeader(ctx, candidateID, user.ID, dir); err != nil {
		RenderServiceError(c, err, "/index")
		return
	}
	c.Redirect(http.StatusFound, "/index?ok=voted")
}

// ToggleLeader 提升/撤销 leader (admin only)
func (h *LeaderHandler) ToggleLeader(c *gin.Context) {
	userID, ok := utils.ParseID(c.Param("id"))
	if !ok {
		RenderError(c, http.StatusBadRequest, "Unknown user.", "/index")
		return
	}

	transition, err := h.leadership.Toggle(c.Request.Context(), userID)
	if err != nil {
		RenderServiceError(c, err, "/index")
		return
	}
	c.Redirect(http.StatusFound, "/index?ok="+string(transition))
}
