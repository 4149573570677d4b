package workers

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/yootherapy/internal/utils"
)

// AnalysisRunner executes one queued speech analysis.
type AnalysisRunner interface {
	RunAnalysis(ctx context.Context, analysisID string) error
}

// AnalysisWorkerPool consumes analysis jobs from a Redis stream consumer
// group. Messages are acked after the runner returns, success or not; the
// analysis row carries the outcome.
type AnalysisWorkerPool struct {
	Redis      *redis.Client
	Runner     AnalysisRunner
	NumWorkers int

	Logger *logrus.Logger

	Stream         string
	Group          string
	ConsumerPrefix string
	JobTimeout     time.Duration

	wg sync.WaitGroup
}

func (p *AnalysisWorkerPool) Start(ctx context.Context) error {
	if p.Redis == nil || p.Runner == nil {
		return errors.New("AnalysisWorkerPool missing dependency: Redis/Runner must be set")
	}
	p.defaults()

	_ = p.Redis.XGroupCreateMkStream(ctx, p.Stream, p.Group, "0").Err() // ignore BUSYGROUP

	for i := 0; i < p.NumWorkers; i++ {
		consumer := p.ConsumerPrefix + "-" + strconv.Itoa(i+1)
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.runConsumer(ctx, consumer)
		}()
	}
	p.Logger.WithFields(logrus.Fields{
		"stream":  p.Stream,
		"group":   p.Group,
		"workers": p.NumWorkers,
	}).Info("analysis workers started")
	return nil
}

// Wait blocks until every consumer has returned after ctx was cancelled.
func (p *AnalysisWorkerPool) Wait() { p.wg.Wait() }

func (p *AnalysisWorkerPool) defaults() {
	if p.Stream == "" {
		p.Stream = DefaultStream
	}
	if p.Group == "" {
		p.Group = DefaultGroup
	}
	if p.ConsumerPrefix == "" {
		p.ConsumerPrefix = "c"
	}
	if p.NumWorkers <= 0 {
		p.NumWorkers = 2
	}
	if p.JobTimeout <= 0 {
		p.JobTimeout = 5 * time.Minute
	}
	if p.Logger == nil {
		p.Logger = logrus.New()
	}
}

func (p *AnalysisWorkerPool) runConsumer(ctx context.Context, consumer string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		res, err := p.Redis.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    p.Group,
			Consumer: consumer,
			Streams:  []string{p.Stream, ">"},
			Count:    1,
			Block:    5 * time.Second,
		}).Result()

		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			p.Logger.WithError(err).WithField("consumer", consumer).Warn("xreadgroup failed")
			time.Sleep(500 * time.Millisecond)
			continue
		}

		for _, stream := range res {
			for _, msg := range stream.Messages {
				p.handleMsg(ctx, msg)
				_ = p.Redis.XAck(ctx, p.Stream, p.Group, msg.ID).Err()
			}
		}
	}
}

func (p *AnalysisWorkerPool) handleMsg(ctx context.Context, msg redis.XMessage) {
	analysisID, _ := msg.Values[FieldAnalysisID].(string)
	log := p.Logger.WithFields(logrus.Fields{
		"redis_id":    msg.ID,
		"analysis_id": analysisID,
	})
	if analysisID == "" {
		log.Warn("analysis job without analysis_id, dropping")
		return
	}

	jobCtx, cancel := context.WithTimeout(ctx, p.JobTimeout)
	defer cancel()

	start := time.Now()
	err := p.Runner.RunAnalysis(jobCtx, analysisID)
	switch {
	case err == nil:
		log.WithField("elapsed_ms", time.Since(start).Milliseconds()).Debug("analysis job done")
	case utils.IsCode(err, utils.CodeConflict):
		// another consumer or the detached fallback got there first
		log.Debug("analysis already taken")
	default:
		log.WithError(err).Error("analysis job failed")
	}
}
