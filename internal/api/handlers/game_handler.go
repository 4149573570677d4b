package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yoockh/yootherapy/internal/games"
	"github.com/yoockh/yootherapy/internal/services"
	"github.com/yoockh/yootherapy/internal/utils"
)

type GameHandler struct {
	registry *games.Registry
	engine   services.EngineService
}

func NewGameHandler(registry *games.Registry, engine services.EngineService) *GameHandler {
	return &GameHandler{registry: registry, engine: engine}
}

type GameInfo struct {
	Code      string `json:"code"`
	Name      string `json:"name"`
	TrialType string `json:"trial_type"`
}

func (h *GameHandler) List(c *gin.Context) {
	if _, ok := requireCaller(c); !ok {
		return
	}
	out := make([]GameInfo, 0)
	for _, p := range h.registry.List() {
		out = append(out, GameInfo{Code: p.Code(), Name: p.Name(), TrialType: p.TrialType()})
	}
	c.JSON(http.StatusOK, gin.H{"games": out})
}

func (h *GameHandler) StartSession(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	var req services.StartSessionInput
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "GameHandler.StartSession", "invalid request body", err))
		return
	}

	res, err := h.engine.StartSession(c.Request.Context(), c.Param("code"), caller, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *GameHandler) NextTrial(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	res, err := h.engine.NextTrial(c.Request.Context(), c.Param("code"), caller, c.Param("session_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if res.Trial == nil {
		c.JSON(http.StatusOK, gin.H{"detail": res.Detail})
		return
	}
	c.JSON(http.StatusOK, res.Trial)
}

func (h *GameHandler) SubmitTrial(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	var sub games.Submission
	if err := c.ShouldBindJSON(&sub); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "GameHandler.SubmitTrial", "invalid request body", err))
		return
	}

	res, err := h.engine.SubmitTrial(c.Request.Context(), c.Param("code"), caller, c.Param("trial_id"), sub)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *GameHandler) Summary(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	res, err := h.engine.Summary(c.Request.Context(), c.Param("code"), caller, c.Param("session_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
