package games

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/yoockh/yootherapy/internal/utils"
)

type Registry struct {
	mu      sync.RWMutex
	plugins map[string]Plugin
}

func NewRegistry() *Registry {
	return &Registry{plugins: make(map[string]Plugin)}
}

func (r *Registry) Register(p Plugin) error {
	const op = "Registry.Register"
	code := strings.TrimSpace(p.Code())
	if code == "" {
		return utils.E(utils.CodeInvalidArgument, op, "plugin code must not be empty", nil)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.plugins[code]; dup {
		return utils.E(utils.CodeConflict, op, fmt.Sprintf("plugin %q already registered", code), nil)
	}
	r.plugins[code] = p
	return nil
}

func (r *Registry) Get(code string) (Plugin, error) {
	const op = "Registry.Get"
	r.mu.RLock()
	p, ok := r.plugins[code]
	r.mu.RUnlock()
	if !ok {
		msg := fmt.Sprintf("unknown game code: %s. Registered: [%s]", code, strings.Join(r.Codes(), ", "))
		return nil, utils.E(utils.CodeNotFound, op, msg, utils.ErrNotFound)
	}
	return p, nil
}

// Codes returns registered codes sorted.
func (r *Registry) Codes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	codes := make([]string, 0, len(r.plugins))
	for c := range r.plugins {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}

// List returns plugins ordered by code.
func (r *Registry) List() []Plugin {
	codes := r.Codes()
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Plugin, 0, len(codes))
	for _, c := range codes {
		out = append(out, r.plugins[c])
	}
	return out
}
