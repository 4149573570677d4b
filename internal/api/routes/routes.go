package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yoockh/yootherapy/internal/api/handlers"
	"github.com/yoockh/yootherapy/internal/api/middleware"
)

type Deps struct {
	Auth   middleware.JWTConfig
	Games  *handlers.GameHandler
	Speech *handlers.SpeechHandler
	WS     *handlers.WSHandler
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	auth := r.Group("/")
	auth.Use(middleware.JWTAuth(d.Auth))

	auth.GET("/games", d.Games.List)
	auth.POST("/games/:code/sessions", d.Games.StartSession)
	auth.POST("/games/:code/sessions/:session_id/next", d.Games.NextTrial)
	auth.GET("/games/:code/sessions/:session_id/summary", d.Games.Summary)
	auth.POST("/games/:code/trials/:trial_id/submit", d.Games.SubmitTrial)

	auth.GET("/speech/activities", d.Speech.ListActivities)
	auth.POST("/speech/activities", d.Speech.CreateActivity)
	auth.GET("/speech/activities/:activity_id", d.Speech.GetActivity)
	auth.PATCH("/speech/activities/:activity_id", d.Speech.UpdateActivity)
	auth.DELETE("/speech/activities/:activity_id", d.Speech.DeactivateActivity)
	auth.GET("/speech/children/:child_id/progress", d.Speech.ChildProgress)

	auth.POST("/speech/sessions", d.Speech.StartSession)
	auth.GET("/speech/sessions/:session_id/summary", d.Speech.SessionSummary)
	auth.POST("/speech/trials/:trial_id/audio", d.Speech.UploadAudio)
	auth.GET("/speech/trials/:trial_id/analysis", d.Speech.LatestAnalysis)
	auth.POST("/speech/trials/:trial_id/meta", d.Speech.UpsertMeta)
	auth.POST("/speech/trials/:trial_id/score", d.Speech.ScoreTrial)
	auth.GET("/speech/analyses/:analysis_id", d.Speech.GetAnalysis)

	admin := auth.Group("/admin", middleware.RequireAdmin())
	admin.POST("/speech/analyses/:analysis_id/run", d.Speech.RerunAnalysis)

	auth.GET("/ws/speech/analysis/:analysis_id", d.WS.AnalysisWS)
}
