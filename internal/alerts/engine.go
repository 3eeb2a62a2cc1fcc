package alerts

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nyameri/octreport/internal/analysis"
	"github.com/nyameri/octreport/internal/config"
)

const (
	defaultCooldown = 15 * time.Minute
	maxHistoryLen   = 200
	recentWindow    = time.Hour
)

// Alert states.
const (
	StateFiring   = "firing"
	StateResolved = "resolved"
)

// Alert represents a single alert event produced by the rule engine.
type Alert struct {
	ID         string     `json:"id"`
	RuleName   string     `json:"rule_name"`
	SourceID   string     `json:"source_id"`
	Layer      string     `json:"layer,omitempty"`
	Severity   string     `json:"severity"`
	Message    string     `json:"message"`
	Value      float64    `json:"value"`
	FiredAt    time.Time  `json:"fired_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	State      string     `json:"state"`
}

// Engine evaluates alert rules against analyses and delivers webhook
// notifications when rules fire or resolve.
//
// Engine is safe for concurrent use.
type Engine struct {
	rules    []config.AlertRule
	webhooks []config.WebhookConfig
	client   *http.Client
	now      func() time.Time

	mu       sync.Mutex
	active   map[string]*Alert    // key: "rule:source:layer"
	lastFire map[string]time.Time // per key, for cooldown
	history  []*Alert             // resolved alerts, oldest first
	wg       sync.WaitGroup
}

// New creates an Engine from the alert configuration.
// An Engine with no rules is valid; Evaluate is then a no-op. Alerts are keyed
// by rule name, so a rule repeating an earlier name is skipped.
func New(cfg config.AlertsConfig) *Engine {
	rules := make([]config.AlertRule, 0, len(cfg.Rules))
	seen := make(map[string]bool, len(cfg.Rules))
	for _, r := range cfg.Rules {
		if seen[r.Name] {
			slog.Warn("alerts: skipping rule with duplicate name", "rule", r.Name, "condition", r.Condition)
			continue
		}
		seen[r.Name] = true
		rules = append(rules, r)
	}
	return &Engine{
		rules:    rules,
		webhooks: cfg.Webhooks,
		client:   &http.Client{Timeout: 10 * time.Second},
		now:      time.Now,
		active:   make(map[string]*Alert),
		lastFire: make(map[string]time.Time),
	}
}

func alertKey(rule, source, layer string) string {
	return rule + ":" + source + ":" + layer
}

// Evaluate tests every rule against a. Newly firing alerts and alerts whose
// condition cleared are delivered to the webhooks asynchronously.
func (e *Engine) Evaluate(a *analysis.Analysis) {
	if len(e.rules) == 0 {
		return
	}

	now := e.now()
	var notify []Alert

	e.mu.Lock()
	for _, rule := range e.rules {
		matched := make(map[string]bool)
		for _, h := range evalCondition(rule.Condition, a) {
			key := alertKey(rule.Name, a.SourceID, h.layer)
			matched[key] = true

			if cur, ok := e.active[key]; ok {
				cur.Value = h.value
				continue
			}
			cooldown := rule.Cooldown
			if cooldown <= 0 {
				cooldown = defaultCooldown
			}
			if last, ok := e.lastFire[key]; ok && now.Sub(last) < cooldown {
				continue
			}

			al := newAlert(rule, a.SourceID, h, now)
			e.active[key] = al
			e.lastFire[key] = now
			notify = append(notify, *al)
			slog.Warn("alerts: fired",
				"rule", rule.Name,
				"source", a.SourceID,
				"layer", h.layer,
				"value", h.value,
				"severity", al.Severity,
			)
		}

		for key, al := range e.active {
			if al.RuleName != rule.Name || al.SourceID != a.SourceID || matched[key] {
				continue
			}
			resolved := now
			al.State = StateResolved
			al.ResolvedAt = &resolved
			delete(e.active, key)

			e.history = append(e.history, al)
			if len(e.history) > maxHistoryLen {
				e.history = e.history[len(e.history)-maxHistoryLen:]
			}
			notify = append(notify, *al)
			slog.Info("alerts: resolved", "rule", rule.Name, "source", a.SourceID, "layer", al.Layer)
		}
	}
	e.mu.Unlock()

	for i := range notify {
		al := notify[i]
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.deliver(&al)
		}()
	}
}

func newAlert(rule config.AlertRule, sourceID string, h hit, now time.Time) *Alert {
	sev := rule.Severity
	if sev == "" {
		sev = "warning"
	}
	subject := sourceID
	if h.layer != "" {
		subject = fmt.Sprintf("%s / %s", sourceID, h.layer)
	}
	return &Alert{
		ID:       uuid.New().String(),
		RuleName: rule.Name,
		SourceID: sourceID,
		Layer:    h.layer,
		Severity: sev,
		Value:    h.value,
		Message:  fmt.Sprintf("[%s] %s fired on %s: %s (value %.2f)", sev, rule.Name, subject, rule.Condition, h.value),
		FiredAt:  now,
		State:    StateFiring,
	}
}

// Active returns copies of all firing alerts plus alerts resolved within the
// past hour, newest first.
func (e *Engine) Active() []*Alert {
	e.mu.Lock()
	defer e.mu.Unlock()

	cutoff := e.now().Add(-recentWindow)
	out := make([]*Alert, 0, len(e.active))
	for _, a := range e.active {
		cp := *a
		out = append(out, &cp)
	}
	for _, a := range e.history {
		if a.ResolvedAt != nil && a.ResolvedAt.After(cutoff) {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].FiredAt.Equal(out[j].FiredAt) {
			return out[i].FiredAt.After(out[j].FiredAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// FiringCount returns the number of currently firing alerts.
func (e *Engine) FiringCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.active)
}

// Wait blocks until in-flight webhook deliveries finish.
func (e *Engine) Wait() { e.wg.Wait() }
