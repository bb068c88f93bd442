package handlers

import (
	"errors"
	"net/http"
	"strings"
	"wallstreetvotes/internal/middleware"
	"wallstreetvotes/internal/services"
	"wallstreetvotes/internal/subjectkey"

	"github.com/gin-gonic/gin"
)

const maxDescriptionLen = 2000

type StockHandler struct {
	tally      *services.TallyProjection
	leadership *services.Leadership
}

func NewStockHandler(tally *services.TallyProjection, leadership *services.Leadership) *StockHandler {
	return &StockHandler{tally: tally, leadership: leadership}
}

// Index lists stocks and leader candidates.
func (h *StockHandler) Index(c *gin.Context) {
	ctx := c.Request.Context()

	stocks, err := h.tally.ListSubjects(ctx)
	if err != nil {
		RenderServiceError(c, err, "/index")
		return
	}
	candidates, err := h.leadership.ListCandidates(ctx)
	if err != nil {
		RenderServiceError(c, err, "/index")
		return
	}

	Render(c, http.StatusOK, "index.html", gin.H{
		"Title":      "Wall Street Votes",
		"Stocks":     stocks,
		"Candidates": candidates,
		"Success":    c.Query("ok"),
	})
}

// AddStock lets a leader post a new ticker+direction; posting counts as their upvote.
func (h *StockHandler) AddStock(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	if !user.IsLeader {
		RenderError(c, http.StatusForbidden, "Only leaders can add stocks.", "/index")
		return
	}

	dir, err := subjectkey.ParseDirection(c.PostForm("direction"))
	if err != nil {
		RenderServiceError(c, err, "/index")
		return
	}
	key, err := subjectkey.Encode(c.PostForm("ticker"), dir)
	if err != nil {
		RenderServiceError(c, err, "/index")
		return
	}
	description := strings.TrimSpace(c.PostForm("description"))
	if len(description) > maxDescriptionLen {
		RenderError(c, http.StatusBadRequest, "Description is too long.", "/index")
		return
	}

	if err := h.tally.CreateSubject(c.Request.Context(), key, description, user.ID); err != nil {
		RenderServiceError(c, err, "/index")
		return
	}
	c.Redirect(http.StatusFound, "/index?ok=added")
}

// VoteStock handles GET /vote_stock?ticker=&direction=&up=
func (h *StockHandler) VoteStock(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	ctx := c.Request.Context()

	dir, err := subjectkey.ParseDirection(c.Query("direction"))
	if err != nil {
		RenderServiceError(c, err, "/index")
		return
	}
	key, err := subjectkey.Encode(c.Query("ticker"), dir)
	if err != nil {
		RenderServiceError(c, err, "/index")
		return
	}
	vote, err := services.ParseVoteDirection(c.Query("up"))
	if err != nil {
		RenderServiceError(c, err, "/index")
		return
	}

	// 先查账本给出友好提示; 真正的唯一性由唯一索引保证
	if prev, voted, err := h.tally.Ledger().HasVoted(ctx, key.String(), user.ID); err != nil {
		RenderServiceError(c, err, "/index")
		return
	} else if voted {
		RenderError(c, http.StatusConflict, "You already voted "+prev.String()+" on this stock.", "/index")
		return
	}

	if err := h.tally.Vote(ctx, key, user.ID, vote); err != nil {
		if errors.Is(err, services.ErrNotFound) {
			RenderError(c, http.StatusNotFound, "Stock "+key.String()+" has not been added yet.", "/index")
			return
		}
		RenderServiceError(c, err, "/index")
		return
	}
	c.Redirect(http.StatusFound, "/index?ok=voted")
}
