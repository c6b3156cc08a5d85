package ai

import (
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	personamodel "github.com/articulotor/backend/internal/model/persona"
	scenariomodel "github.com/articulotor/backend/internal/model/scenario"
	sessionmodel "github.com/articulotor/backend/internal/model/session"
)

const scenarioSystemPrompt = `You are a professional communication practice partner. Your role is to engage in realistic conversations based on the given scenario.

IMPORTANT: You must stay IN CHARACTER at all times. If the scenario says you're an angry client, be an angry client. If you're a skeptical investor, be skeptical. Push back, ask follow-up questions, and make it realistic.

While conversing, you must ALSO secretly analyze the user's communication and return your analysis hidden from them.`

const responseFormatPrompt = `Your response should be natural and stay in character. Also provide hidden analysis of the user's message.

Return a single JSON object with exactly two fields and no surrounding text:
1. "response" - your in-character response
2. "analysis" - your hidden analysis, an object with integer scores
   "clarity_score", "structure_score", "persuasiveness_score",
   "vocabulary_score" (each 0-100), string arrays "filler_words",
   "strengths", "areas_to_improve", and strings "tone_analysis",
   "sentiment".`

// defaultScenario stands in when a session references a scenario that
// can no longer be resolved.
func defaultScenario() scenariomodel.Scenario {
	return scenariomodel.Scenario{
		Category:   "General",
		Role:       "Interviewer",
		Difficulty: "Medium",
		Context:    "General conversation",
		Opening:    "Let's talk.",
	}
}

func buildSystemPrompt(scn *scenariomodel.Scenario, p *personamodel.Persona) string {
	scenario := defaultScenario()
	if scn != nil {
		scenario = *scn
	}

	var b strings.Builder
	b.WriteString(scenarioSystemPrompt)
	b.WriteString(personaContext(p))
	fmt.Fprintf(&b, `

SCENARIO:
- Category: %s
- Role: %s
- Difficulty: %s
- Context: %s
- Opening: %s

`, scenario.Category, scenario.Role, scenario.Difficulty, scenario.Context, scenario.Opening)
	b.WriteString(responseFormatPrompt)
	return b.String()
}

func personaContext(p *personamodel.Persona) string {
	if p == nil {
		return ""
	}
	return fmt.Sprintf(`

PERSONA OVERLAY: %s
- Communication Style: %s
- Characteristic Vocabulary: %s
- Guidance: %s
`, p.Name, p.Style, strings.Join(p.Vocabulary, ", "), p.SystemPrompt)
}

// historyMessages maps stored turns onto chat-model messages, keeping
// only the most recent limit entries.
func historyMessages(messages []sessionmodel.Message, limit int) []*schema.Message {
	if len(messages) == 0 {
		return nil
	}

	start := 0
	if limit > 0 && len(messages) > limit {
		start = len(messages) - limit
	}

	history := make([]*schema.Message, 0, len(messages)-start)
	for _, msg := range messages[start:] {
		switch msg.Role {
		case sessionmodel.RoleUser:
			history = append(history, schema.UserMessage(msg.Content))
		case sessionmodel.RoleAssistant:
			history = append(history, schema.AssistantMessage(msg.Content, nil))
		}
	}
	return history
}
