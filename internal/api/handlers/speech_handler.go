package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yoockh/yootherapy/internal/models"
	"github.com/yoockh/yootherapy/internal/services"
	"github.com/yoockh/yootherapy/internal/utils"
)

const maxAudioBytes = 25 << 20

type SpeechHandler struct {
	svc services.SpeechService
}

func NewSpeechHandler(svc services.SpeechService) *SpeechHandler {
	return &SpeechHandler{svc: svc}
}

func (h *SpeechHandler) StartSession(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	var req services.SpeechStartInput
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "SpeechHandler.StartSession", "invalid request body", err))
		return
	}

	res, err := h.svc.StartSession(c.Request.Context(), caller, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *SpeechHandler) SessionSummary(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	res, err := h.svc.SessionSummary(c.Request.Context(), caller, c.Param("session_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// UploadAudio takes multipart field "file" and an optional "duration_ms".
func (h *SpeechHandler) UploadAudio(c *gin.Context) {
	const op = "SpeechHandler.UploadAudio"

	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "file is required", err))
		return
	}
	if fh.Size > maxAudioBytes {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "file is too large", nil))
		return
	}

	var duration *int
	if v := c.PostForm("duration_ms"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(c, utils.E(utils.CodeInvalidArgument, op, "duration_ms must be a non-negative integer", err))
			return
		}
		duration = &n
	}

	f, err := fh.Open()
	if err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "unreadable upload", err))
		return
	}
	defer f.Close()

	res, err := h.svc.UploadAudio(c.Request.Context(), caller, c.Param("trial_id"), services.AudioUpload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Body:        f,
		DurationMS:  duration,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, res)
}

func (h *SpeechHandler) LatestAnalysis(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	res, err := h.svc.LatestAnalysis(c.Request.Context(), caller, c.Param("trial_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *SpeechHandler) GetAnalysis(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	res, err := h.svc.GetAnalysis(c.Request.Context(), caller, c.Param("analysis_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// RerunAnalysis runs a queued analysis inline. Admin only; used when a job
// was enqueued while no worker was consuming.
func (h *SpeechHandler) RerunAnalysis(c *gin.Context) {
	if _, ok := requireCaller(c); !ok {
		return
	}

	id := c.Param("analysis_id")
	if err := h.svc.RunAnalysis(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"analysis_id": id, "status": "processed"})
}

func (h *SpeechHandler) ScoreTrial(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	var req services.ScoreInput
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "SpeechHandler.ScoreTrial", "invalid request body", err))
		return
	}

	res, err := h.svc.ScoreTrial(c.Request.Context(), caller, c.Param("trial_id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *SpeechHandler) UpsertMeta(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	var req services.MetaInput
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "SpeechHandler.UpsertMeta", "invalid request body", err))
		return
	}

	res, err := h.svc.UpsertMeta(c.Request.Context(), caller, c.Param("trial_id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *SpeechHandler) ChildProgress(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	res, err := h.svc.ChildProgress(c.Request.Context(), caller, c.Param("child_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ListActivities serves the active catalog, filtered by the optional
// category, language and difficulty_level query parameters.
func (h *SpeechHandler) ListActivities(c *gin.Context) {
	if _, ok := requireCaller(c); !ok {
		return
	}

	f := models.ActivityFilter{
		Category: c.Query("category"),
		Language: c.Query("language"),
	}
	if v := c.Query("difficulty_level"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(c, utils.E(utils.CodeInvalidArgument, "SpeechHandler.ListActivities", "difficulty_level must be an integer", err))
			return
		}
		f.DifficultyLevel = n
	}

	res, err := h.svc.ListActivities(c.Request.Context(), f)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *SpeechHandler) CreateActivity(c *gin.Context) {
	caller, ok := requireCaller(c)
	if !ok {
		return
	}

	var req services.ActivityInput
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "SpeechHandler.CreateActivity", "invalid request body", err))
		return
	}

	res, err := h.svc.CreateActivity(c.Request.Context(), caller, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *SpeechHandler) GetActivity(c *gin.Context) {
	if _, ok := requireCaller(c); !ok {
		return
	}

	res, err := h.svc.GetActivity(c.Request.Context(), c.Param("activity_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *SpeechHandler) UpdateActivity(c *gin.Context) {
	if _, ok := requireCaller(c); !ok {
		return
	}

	var req services.ActivityInput
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "SpeechHandler.UpdateActivity", "invalid request body", err))
		return
	}

	res, err := h.svc.UpdateActivity(c.Request.Context(), c.Param("activity_id"), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// DeactivateActivity is a soft delete.
func (h *SpeechHandler) DeactivateActivity(c *gin.Context) {
	if _, ok := requireCaller(c); !ok {
		return
	}

	if err := h.svc.DeactivateActivity(c.Request.Context(), c.Param("activity_id")); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"detail": "Activity deactivated"})
}
