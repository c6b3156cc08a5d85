package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	sessionmodel "github.com/articulotor/backend/internal/model/session"
)

type turnPayload struct {
	Response string                 `json:"response"`
	Analysis *sessionmodel.Analysis `json:"analysis"`
}

// parseTurnPayload extracts the in-character reply and optional hidden
// analysis from the model's JSON output. A missing analysis is fine; a
// missing reply is not.
func parseTurnPayload(content string) (string, *sessionmodel.Analysis, error) {
	var payload turnPayload
	if err := json.Unmarshal([]byte(stripJSONFence(content)), &payload); err != nil {
		return "", nil, fmt.Errorf("invalid turn payload: %w", err)
	}

	if payload.Response == "" {
		return "", nil, fmt.Errorf("turn payload has no response field")
	}

	if payload.Analysis != nil {
		payload.Analysis.Normalize()
	}
	return payload.Response, payload.Analysis, nil
}

// stripJSONFence unwraps a markdown code fence some models insist on
// emitting around JSON output.
func stripJSONFence(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
