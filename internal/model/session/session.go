package session

import (
	"fmt"
	"time"
)

// Mode selects how the user converses during a practice session.
type Mode string

const (
	ModeChat   Mode = "chat"
	ModeVoice  Mode = "voice"
	ModeCamera Mode = "camera"
)

// ParseMode validates a mode supplied by the request layer.
func ParseMode(raw string) (Mode, error) {
	switch Mode(raw) {
	case ModeChat, ModeVoice, ModeCamera:
		return Mode(raw), nil
	case "":
		return ModeChat, nil
	}
	return "", fmt.Errorf("invalid session mode %q", raw)
}

// Status tracks the session lifecycle. Transitions are monotonic:
// active -> ended, never back.
type Status string

const (
	StatusActive Status = "active"
	StatusEnded  Status = "ended"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single conversation turn entry, persisted append-only.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Analysis is the hidden per-turn scoring attached to a user message.
// TurnNumber is assigned by the store at commit time, never by callers.
type Analysis struct {
	TurnNumber          int      `json:"turn_number"`
	ClarityScore        int      `json:"clarity_score"`
	StructureScore      int      `json:"structure_score"`
	PersuasivenessScore int      `json:"persuasiveness_score"`
	VocabularyScore     int      `json:"vocabulary_score"`
	FillerWords         []string `json:"filler_words"`
	Strengths           []string `json:"strengths"`
	AreasToImprove      []string `json:"areas_to_improve"`
	ToneAnalysis        string   `json:"tone_analysis"`
	Sentiment           string   `json:"sentiment"`
}

// Normalize clamps scores into [0,100] and replaces nil slices so the
// record marshals to the persisted shape regardless of what the model
// returned.
func (a *Analysis) Normalize() {
	a.ClarityScore = clampScore(a.ClarityScore)
	a.StructureScore = clampScore(a.StructureScore)
	a.PersuasivenessScore = clampScore(a.PersuasivenessScore)
	a.VocabularyScore = clampScore(a.VocabularyScore)
	if a.FillerWords == nil {
		a.FillerWords = []string{}
	}
	if a.Strengths == nil {
		a.Strengths = []string{}
	}
	if a.AreasToImprove == nil {
		a.AreasToImprove = []string{}
	}
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// Session is one practice conversation with its full history and scoring.
type Session struct {
	ID         string     `json:"id"`
	ScenarioID string     `json:"scenario_id"`
	Mode       Mode       `json:"mode"`
	Persona    string     `json:"persona,omitempty"`
	Status     Status     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
	Messages   []Message  `json:"messages"`
	Analyses   []Analysis `json:"analyses"`
}

// Active reports whether the session still accepts turns.
func (s *Session) Active() bool {
	return s.Status == StatusActive
}
