package games

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/yootherapy/internal/cache"
	"github.com/yoockh/yootherapy/internal/providers/llm"
)

// Deps are the collaborators the built-in plugins read from.
type Deps struct {
	History History
	Stats   TrialStats
	Scenes  SceneStore
	Images  ImageSource
	LLM     llm.Provider

	PolicyWindow   int
	PolicyCache    cache.Cache
	PolicyCacheTTL time.Duration

	Log *logrus.Logger
}

// RegisterDefaults registers the six built-in games.
func RegisterDefaults(reg *Registry, d Deps) error {
	opts := []PolicyOption{WithPolicyLogger(d.Log)}
	if d.PolicyCache != nil {
		opts = append(opts, WithPolicyCache(d.PolicyCache, d.PolicyCacheTTL))
	}
	policy := NewPolicy(d.History, d.PolicyWindow, opts...)

	plugins := []Plugin{
		NewJointAttention(policy, d.History),
		NewMatching(d.Stats),
		NewMemoryMatch(d.Stats),
		NewObjectDiscovery(d.Stats),
		NewProblemSolving(d.Stats),
	}
	if d.Scenes != nil {
		plugins = append(plugins, NewSceneDescription(d.Scenes, d.Stats, d.Images, d.LLM, d.Log))
	}
	for _, p := range plugins {
		if err := reg.Register(p); err != nil {
			return err
		}
	}
	return nil
}
