package adminhttp

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"cloneexec/internal/config"
	"cloneexec/internal/dedup"
	"cloneexec/internal/logger"
	"cloneexec/internal/ordermsg"

	"github.com/gin-gonic/gin"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

type handlers struct {
	cfg ServerConfig
}

func (h *handlers) Register(group *gin.RouterGroup) {
	group.GET("/status", h.handleStatus)
	group.GET("/autopilot", h.handleGetAutopilot)
	group.PUT("/autopilot", h.handlePutAutopilot)
	group.GET("/cursor", h.handleGetCursor)
	group.PUT("/cursor", h.handlePutCursor)
	group.GET("/audit", h.handleAudit)
}

type autopilotView struct {
	Mode      string `json:"mode"`
	Autopilot *bool  `json:"autopilot"`
}

type autopilotRequest struct {
	Mode string `json:"mode" binding:"required"`
}

type cursorView struct {
	LastSequence   int64     `json:"last_sequence"`
	LastStopLoss   float64   `json:"last_stop_loss"`
	LastTakeProfit float64   `json:"last_take_profit"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type statsView struct {
	LastTick    *time.Time `json:"last_tick,omitempty"`
	LastOutcome string     `json:"last_outcome,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
	Ticks       int        `json:"ticks"`
	Retries     int        `json:"retries"`
	Dropped     int        `json:"dropped"`
	Skipped     int        `json:"skipped"`
	Breaker     string     `json:"breaker,omitempty"`
}

func (h *handlers) handleStatus(c *gin.Context) {
	resp := gin.H{"clone_id": h.cfg.CloneID}
	if h.cfg.Autopilot != nil {
		resp["autopilot"] = h.autopilot()
	}
	if h.cfg.Cursor != nil {
		resp["cursor"] = toCursorView(h.cfg.Cursor.Cursor())
	}
	if h.cfg.Stats != nil {
		st := h.cfg.Stats.Stats()
		view := statsView{
			LastOutcome: st.LastOutcome,
			LastError:   st.LastError,
			Ticks:       st.Ticks,
			Retries:     st.Retries,
			Dropped:     st.Dropped,
			Skipped:     st.Skipped,
			Breaker:     st.Breaker,
		}
		if !st.LastTick.IsZero() {
			last := st.LastTick.UTC()
			view.LastTick = &last
		}
		resp["runner"] = view
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handlers) handleGetAutopilot(c *gin.Context) {
	if h.cfg.Autopilot == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "autopilot control unavailable"})
		return
	}
	c.JSON(http.StatusOK, h.autopilot())
}

func (h *handlers) handlePutAutopilot(c *gin.Context) {
	if h.cfg.Autopilot == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "autopilot control unavailable"})
		return
	}
	var req autopilotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	mode := strings.ToLower(strings.TrimSpace(req.Mode))
	if mode == "auto" || mode == "" {
		h.cfg.Autopilot.SetOverride(nil)
	} else {
		v, ok := config.ParseAutopilot(mode)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "mode must be on, off or auto"})
			return
		}
		h.cfg.Autopilot.SetOverride(&v)
	}
	view := h.autopilot()
	logger.Infof("Admin: autopilot override set to %s", view.Mode)
	c.JSON(http.StatusOK, view)
}

func (h *handlers) handleGetCursor(c *gin.Context) {
	if h.cfg.Cursor == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "cursor unavailable"})
		return
	}
	c.JSON(http.StatusOK, toCursorView(h.cfg.Cursor.Cursor()))
}

func (h *handlers) handlePutCursor(c *gin.Context) {
	if h.cfg.Cursor == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "cursor unavailable"})
		return
	}
	var req cursorView
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.LastSequence < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "last_sequence cannot be negative"})
		return
	}
	cur := dedup.Cursor{
		LastSequence:   req.LastSequence,
		LastStopLoss:   req.LastStopLoss,
		LastTakeProfit: req.LastTakeProfit,
	}
	if err := h.cfg.Cursor.Restore(c.Request.Context(), cur); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	logger.Infof("Admin: dedup cursor restored to seq=%d", req.LastSequence)
	c.JSON(http.StatusOK, toCursorView(h.cfg.Cursor.Cursor()))
}

func (h *handlers) handleAudit(c *gin.Context) {
	if h.cfg.Audit == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "audit reader unavailable"})
		return
	}
	limit := defaultAuditLimit
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	if limit > maxAuditLimit {
		limit = maxAuditLimit
	}
	msgs, err := h.cfg.Audit.Recent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if msgs == nil {
		msgs = []ordermsg.Message{}
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs, "count": len(msgs)})
}

func (h *handlers) autopilot() autopilotView {
	v, set := h.cfg.Autopilot.Override()
	if !set {
		return autopilotView{Mode: "auto"}
	}
	mode := "off"
	if v {
		mode = "on"
	}
	return autopilotView{Mode: mode, Autopilot: &v}
}

func toCursorView(c dedup.Cursor) cursorView {
	return cursorView{
		LastSequence:   c.LastSequence,
		LastStopLoss:   c.LastStopLoss,
		LastTakeProfit: c.LastTakeProfit,
		UpdatedAt:      c.UpdatedAt,
	}
}
