package handlers

import (
	"net/http"
	"time"
	"wallstreetvotes/internal/middleware"
	"wallstreetvotes/internal/services"
	"wallstreetvotes/internal/subjectkey"
	"wallstreetvotes/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// APIHandler serves the JSON API under /api/v1.
type APIHandler struct {
	identity   *services.IdentityStore
	tally      *services.TallyProjection
	leadership *services.Leadership
	jwtSecret  string
	jwtTTL     time.Duration
}

func NewAPIHandler(identity *services.IdentityStore, tally *services.TallyProjection, leadership *services.Leadership, jwtSecret string, jwtTTL time.Duration) *APIHandler {
	return &APIHandler{
		identity:   identity,
		tally:      tally,
		leadership: leadership,
		jwtSecret:  jwtSecret,
		jwtTTL:     jwtTTL,
	}
}

type tokenRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type stockVoteRequest struct {
	Ticker    string `json:"ticker" binding:"required"`
	Direction string `json:"direction" binding:"required"`
	Up        *bool  `json:"up"`
}

type leaderVoteRequest struct {
	Up *bool `json:"up"`
}

// Token POST /api/v1/token
func (h *APIHandler) Token(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	user, ok := h.identity.Login(c.Request.Context(), req.Username, req.Password)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid username or password"})
		return
	}

	token, err := utils.GenerateJWT(user.ID, user.Username, h.jwtSecret, h.jwtTTL)
	if err != nil {
		logrus.WithError(err).Error("Failed to sign API token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not issue token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_in": int(h.jwtTTL.Seconds()),
	})
}

// ListStocks GET /api/v1/stocks
func (h *APIHandler) ListStocks(c *gin.Context) {
	stocks, err := h.tally.ListSubjects(c.Request.Context())
	if err != nil {
		JSONError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stocks": stocks})
}

// ListLeaders GET /api/v1/leaders
func (h *APIHandler) ListLeaders(c *gin.Context) {
	candidates, err := h.leadership.ListCandidates(c.Request.Context())
	if err != nil {
		JSONError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"candidates": candidates})
}

// VoteStock POST /api/v1/stocks/vote
func (h *APIHandler) VoteStock(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	var req stockVoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ticker and direction are required"})
		return
	}
	dir, err := subjectkey.ParseDirection(req.Direction)
	if err != nil {
		JSONError(c, err)
		return
	}
	key, err := subjectkey.Encode(req.Ticker, dir)
	if err != nil {
		JSONError(c, err)
		return
	}

	vote := services.Up
	if req.Up != nil && !*req.Up {
		vote = services.Down
	}
	if err := h.tally.Vote(c.Request.Context(), key, user.ID, vote); err != nil {
		JSONError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key, "vote": vote.String()})
}

// VoteLeader POST /api/v1/leaders/:id/vote
func (h *APIHandler) VoteLeader(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	candidateID, ok := utils.ParseID(c.Param("id"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid candidate id"})
		return
	}
	var req leaderVoteRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}

	vote := services.Up
	if req.Up != nil && !*req.Up {
		vote = services.Down
	}
	if err := h.leadership.VoteLeader(c.Request.Context(), candidateID, user.ID, vote); err != nil {
		JSONError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"candidate": candidateID, "vote": vote.String()})
}
