package alerts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

// payloadFuncs builds the JSON body for each webhook type.
var payloadFuncs = map[string]func(*Alert) any{
	"slack": slackPayload,
	"teams": teamsPayload,
	"http":  httpPayload,
}

// deliver posts a to every configured webhook whose URL resolves. Failures
// are logged only.
func (e *Engine) deliver(a *Alert) {
	for _, wh := range e.webhooks {
		url := wh.URL()
		if url == "" {
			continue
		}
		build, ok := payloadFuncs[wh.Type]
		if !ok {
			slog.Warn("alerts: unknown webhook type, skipping", "type", wh.Type)
			continue
		}

		if err := e.post(url, build(a)); err != nil {
			slog.Error("alerts: webhook delivery failed", "type", wh.Type, "rule", a.RuleName, "source", a.SourceID, "err", err)
			continue
		}
		slog.Debug("alerts: webhook delivered", "type", wh.Type, "rule", a.RuleName, "state", a.State)
	}
}

// facts are the key/value details shown by chat webhooks.
func facts(a *Alert) [][2]string {
	out := [][2]string{{"Source", a.SourceID}}
	if a.Layer != "" {
		out = append(out, [2]string{"Layer", a.Layer})
	}
	return append(out,
		[2]string{"Value", fmt.Sprintf("%.2f", a.Value)},
		[2]string{"Fired", a.FiredAt.UTC().Format("2006-01-02 15:04 UTC")},
	)
}

func slackPayload(a *Alert) any {
	fields := make([]map[string]any, 0, 4)
	for _, f := range facts(a) {
		fields = append(fields, map[string]any{"title": f[0], "value": f[1], "short": true})
	}
	return map[string]any{
		"text": fmt.Sprintf("*%s* %s", stateLabel(a), a.Message),
		"attachments": []map[string]any{{
			"color":  "#" + severityColor(a),
			"fields": fields,
		}},
	}
}

func teamsPayload(a *Alert) any {
	list := make([]map[string]string, 0, 4)
	for _, f := range facts(a) {
		list = append(list, map[string]string{"name": f[0], "value": f[1]})
	}
	return map[string]any{
		"@type":      "MessageCard",
		"@context":   "http://schema.org/extensions",
		"themeColor": severityColor(a),
		"summary":    a.RuleName,
		"title":      fmt.Sprintf("%s octreport: %s", stateLabel(a), a.RuleName),
		"sections":   []map[string]any{{"text": a.Message, "facts": list}},
	}
}

func httpPayload(a *Alert) any {
	return map[string]any{"event": "alert." + a.State, "alert": a}
}

func (e *Engine) post(url string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}

func stateLabel(a *Alert) string {
	if a.State == StateResolved {
		return "[RESOLVED]"
	}
	switch a.Severity {
	case "critical":
		return "[CRITICAL]"
	case "warning":
		return "[WARNING]"
	default:
		return "[INFO]"
	}
}

// severityColor is the hex colour of a chat card; resolved alerts are green.
func severityColor(a *Alert) string {
	if a.State == StateResolved {
		return "2EB67D"
	}
	switch a.Severity {
	case "critical":
		return "E01E5A"
	case "warning":
		return "ECB22E"
	default:
		return "36C5F0"
	}
}
