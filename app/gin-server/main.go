package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/yootherapy/config"
	"github.com/yoockh/yootherapy/internal/api/handlers"
	"github.com/yoockh/yootherapy/internal/api/middleware"
	"github.com/yoockh/yootherapy/internal/api/routes"
	"github.com/yoockh/yootherapy/internal/cache"
	"github.com/yoockh/yootherapy/internal/games"
	"github.com/yoockh/yootherapy/internal/logger"
	"github.com/yoockh/yootherapy/internal/providers/llm"
	"github.com/yoockh/yootherapy/internal/providers/stt"
	"github.com/yoockh/yootherapy/internal/providers/vad"
	mongorepo "github.com/yoockh/yootherapy/internal/repositories/mongo"
	"github.com/yoockh/yootherapy/internal/repositories/postgres"
	"github.com/yoockh/yootherapy/internal/services"
	"github.com/yoockh/yootherapy/internal/speech"
	"github.com/yoockh/yootherapy/internal/storage"
	"github.com/yoockh/yootherapy/internal/workers"
)

func main() {
	_ = godotenv.Load()

	settings, err := config.Load()
	if err != nil {
		logger.New("info").WithError(err).Fatal("config error")
	}
	log := logger.New(settings.LogLevel)

	conns, err := config.LoadConnections()
	if err != nil {
		log.WithError(err).Fatal("connection config error")
	}

	if err := config.InitPostgres(conns, log); err != nil {
		log.WithError(err).Fatal("PostgreSQL init error")
	}
	if err := postgres.AutoMigrate(config.PostgresDB); err != nil {
		log.WithError(err).Fatal("PostgreSQL migration error")
	}
	log.Info("PostgreSQL connected")

	if err := config.InitMongo(conns); err != nil {
		log.WithError(err).Fatal("MongoDB init error")
	}
	mdb, err := config.MongoDatabase(settings.MongoDB)
	if err != nil {
		log.WithError(err).Fatal("MongoDB database error")
	}
	if err := config.EnsureMongoIndexes(settings.MongoDB); err != nil {
		log.WithError(err).Warn("MongoDB index setup failed")
	}
	log.Info("MongoDB connected")

	var rdb *redis.Client
	if err := config.InitRedis(conns); err != nil {
		log.WithError(err).Warn("Redis unavailable: analyses run in-process, policy cache is local")
	} else {
		rdb = config.RedisClient
		log.Info("Redis connected")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := openStore(ctx, settings, log)
	asr := openASR(ctx, settings, log)
	defer asr.Close()
	model := openLLM(ctx, settings, log)
	defer model.Close()

	pipelineOpts := []speech.PipelineOption{
		speech.WithNormalizer(speech.NewNormalizer(settings.FFmpegPath)),
		speech.WithDefaultLanguage(settings.ASRLanguage),
	}
	if settings.VADHTTPURL != "" {
		pipelineOpts = append(pipelineOpts, speech.WithVAD(vad.NewHTTPVAD(settings.VADHTTPURL, settings.ASRTimeout)))
	}
	pipeline := speech.NewPipeline(asr, log, pipelineOpts...)

	children := postgres.NewChildRepo(config.PostgresDB)
	sessions := postgres.NewSessionRepo(config.PostgresDB)
	trials := postgres.NewTrialRepo(config.PostgresDB)
	speechRepo := postgres.NewSpeechRepo(config.PostgresDB)
	scenarios := postgres.NewScenarioRepo(config.PostgresDB)
	observations := mongorepo.NewObservationRepo(mdb)

	var policyCache cache.Cache = cache.NewMemoryCache()
	if rdb != nil {
		policyCache = cache.NewRedisCache(rdb, "yootherapy:")
	}

	registry := games.NewRegistry()
	if err := games.RegisterDefaults(registry, games.Deps{
		History:        observations,
		Stats:          trials,
		Scenes:         scenarios,
		Images:         store,
		LLM:            model,
		PolicyWindow:   settings.PolicyWindow,
		PolicyCache:    policyCache,
		PolicyCacheTTL: settings.PolicyCacheTTL,
		Log:            log,
	}); err != nil {
		log.WithError(err).Fatal("game registry error")
	}
	log.WithField("games", registry.Codes()).Info("games registered")

	gate := services.NewAccessGate(children, settings.ConsentEnforced, settings.RequiredConsents)
	engine := services.NewEngineService(registry, gate, sessions, trials, observations, log)

	speechDeps := services.SpeechDeps{
		Gate:     gate,
		Sessions: sessions,
		Trials:   trials,
		Speech:   speechRepo,
		Store:    store,
		Analyzer: pipeline,
		Log:      log,
	}
	if rdb != nil {
		speechDeps.Dispatcher = workers.NewRedisDispatcher(rdb, settings.AnalysisStream)
		speechDeps.Notifier = workers.NewRedisStatusNotifier(rdb, log)
	}
	speechSvc := services.NewSpeechService(speechDeps)

	var pool *workers.AnalysisWorkerPool
	if rdb != nil {
		pool = &workers.AnalysisWorkerPool{
			Redis:      rdb,
			Runner:     speechSvc,
			NumWorkers: settings.AnalysisWorkers,
			Logger:     log,
			Stream:     settings.AnalysisStream,
			Group:      settings.AnalysisGroup,
		}
		if err := pool.Start(ctx); err != nil {
			log.WithError(err).Fatal("analysis worker error")
		}
	}

	if logger.ParseLevel(settings.LogLevel) < logrus.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(log))
	routes.RegisterRoutes(r, routes.Deps{
		Auth: middleware.JWTConfig{
			Secret:   settings.JWTSecret,
			Issuer:   settings.JWTIssuer,
			Audience: settings.JWTAudience,
		},
		Games:  handlers.NewGameHandler(registry, engine),
		Speech: handlers.NewSpeechHandler(speechSvc),
		WS:     handlers.NewWSHandler(speechSvc, rdb),
	})

	srv := &http.Server{Addr: ":" + settings.Port, Handler: r}
	go func() {
		log.WithField("port", settings.Port).Info("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("http server error")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
	if pool != nil {
		pool.Wait()
	}
}

func openStore(ctx context.Context, s config.Settings, log *logrus.Logger) storage.Store {
	switch s.StorageBackend {
	case "gcs":
		gcs, err := storage.NewGCSStore(ctx, s.GCSBucket)
		if err != nil {
			log.WithError(err).Warn("GCS unavailable: uploads and scene images disabled")
			return storage.Unavailable{}
		}
		return gcs
	default:
		local, err := storage.NewLocalStore(s.MediaDir)
		if err != nil {
			log.WithError(err).Warn("media dir unavailable: uploads and scene images disabled")
			return storage.Unavailable{}
		}
		return local
	}
}

func openASR(ctx context.Context, s config.Settings, log *logrus.Logger) stt.Provider {
	switch s.ASRBackend {
	case "google":
		g, err := stt.NewGoogleSpeech(ctx)
		if err != nil {
			log.WithError(err).Warn("Google Speech unavailable: transcripts disabled")
			return stt.Unavailable{}
		}
		return g
	case "http":
		return stt.NewHTTPASR(s.ASRHTTPURL, s.ASRTimeout)
	default:
		log.Warn("ASR_BACKEND=none: transcripts disabled")
		return stt.Unavailable{}
	}
}

func openLLM(ctx context.Context, s config.Settings, log *logrus.Logger) llm.Provider {
	if s.VertexProject == "" {
		log.Warn("VERTEX_PROJECT_ID not set: scene description scoring disabled")
		return llm.Unavailable{}
	}
	m, err := llm.NewVertexGemini(ctx, s.VertexProject, s.VertexLocation, s.VertexModel)
	if err != nil {
		log.WithError(err).Warn("Vertex AI unavailable: scene description scoring disabled")
		return llm.Unavailable{}
	}
	return m
}
