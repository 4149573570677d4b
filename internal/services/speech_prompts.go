package services

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/yoockh/yootherapy/internal/models"
)

// promptPicker draws prompts from an activity's payload pools without
// repeating until a pool is exhausted.
type promptPicker struct {
	payload  map[string]any
	template string
	expected string
	used     map[string]bool
	intn     func(int) int
}

func newPromptPicker(a *models.SpeechActivity, intn func(int) int) *promptPicker {
	payload := map[string]any{}
	if len(a.PromptPayload) > 0 {
		_ = json.Unmarshal(a.PromptPayload, &payload)
	}
	template := a.Name
	if t, ok := payload["text"].(string); ok && t != "" {
		template = t
	}
	if intn == nil {
		intn = rand.IntN
	}
	return &promptPicker{
		payload:  payload,
		template: template,
		expected: a.ExpectedText,
		used:     map[string]bool{},
		intn:     intn,
	}
}

// next returns (prompt, target) for one trial.
func (p *promptPicker) next() (string, string) {
	if pool := p.pool("questions_pool"); len(pool) > 0 {
		item := p.pickUnique(pool, func(v any) string {
			if m, ok := v.(map[string]any); ok {
				return str(m["question"])
			}
			return str(v)
		})
		m, ok := item.(map[string]any)
		if !ok {
			return str(item), ""
		}
		target := m["answer"]
		if target == nil {
			target = m["expected_keywords"]
		}
		if list, ok := target.([]any); ok {
			parts := make([]string, 0, len(list))
			for _, v := range list {
				parts = append(parts, str(v))
			}
			return str(m["question"]), strings.Join(parts, ", ")
		}
		return str(m["question"]), str(target)
	}

	for _, slot := range []struct{ key, placeholder string }{
		{"sentences_pool", "{sentence}"},
		{"phrases_pool", "{phrase}"},
		{"words_pool", "{word}"},
	} {
		if pool := p.pool(slot.key); len(pool) > 0 {
			v := str(p.pickUnique(pool, str))
			return strings.ReplaceAll(p.template, slot.placeholder, v), v
		}
	}

	if pool := p.pool("items_pool"); len(pool) > 0 {
		word := func(v any) string {
			if m, ok := v.(map[string]any); ok {
				return str(m["word"])
			}
			return str(v)
		}
		w := word(p.pickUnique(pool, word))
		return strings.ReplaceAll(p.template, "{item}", w), w
	}

	return p.template, p.expected
}

func (p *promptPicker) pool(key string) []any {
	v, _ := p.payload[key].([]any)
	return v
}

func (p *promptPicker) pickUnique(pool []any, key func(any) string) any {
	var available []any
	for _, v := range pool {
		if !p.used[key(v)] {
			available = append(available, v)
		}
	}
	if len(available) == 0 {
		clear(p.used)
		available = pool
	}
	choice := available[p.intn(len(available))]
	p.used[key(choice)] = true
	return choice
}

func str(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}
