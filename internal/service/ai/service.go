package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/articulotor/backend/internal/config"
	personamodel "github.com/articulotor/backend/internal/model/persona"
	scenariomodel "github.com/articulotor/backend/internal/model/scenario"
	sessionmodel "github.com/articulotor/backend/internal/model/session"
)

// Retry settings for chat-model calls. Independent of the store's own
// busy-retry policy.
const (
	maxModelAttempts  = 3
	initialRetryDelay = 2 * time.Second
	maxRetryDelay     = 10 * time.Second
)

// Result is the outcome of one responder call. On Failed the session
// must still record the user's turn, but no reply is committed.
type Result struct {
	Reply     string
	Analysis  *sessionmodel.Analysis
	Failed    bool
	ErrorType string
}

// Service wraps the chat model behind the conversation, analysis and
// scenario-generation prompts.
type Service struct {
	chatModel model.ChatModel
	cfg       config.AIConfig
	chain     compose.Runnable[map[string]any, *schema.Message]
}

// NewService creates the responder with a compiled prompt chain.
func NewService(ctx context.Context, cfg config.AIConfig) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Service{
		chatModel: chatModel,
		cfg:       cfg,
		chain:     runnable,
	}, nil
}

// Generate produces an in-character reply plus hidden analysis for the
// user's message. It never touches session state; callers commit the
// result through the store afterwards.
func (s *Service) Generate(ctx context.Context, scn *scenariomodel.Scenario, history []sessionmodel.Message, userText string, p *personamodel.Persona) Result {
	input := map[string]any{
		"system":  buildSystemPrompt(scn, p),
		"history": historyMessages(history, s.cfg.HistoryMessages),
		"query":   SanitizeUserInput(userText),
	}

	response, err := s.invokeWithRetry(ctx, input)
	if err != nil {
		errorType, message := classifyModelError(err)
		log.Printf("[ai] chat model error (%s): %v", errorType, err)
		return Result{Reply: message, Failed: true, ErrorType: errorType}
	}

	reply, analysis, err := parseTurnPayload(response.Content)
	if err != nil {
		log.Printf("[ai] unparseable model output: %v", err)
		return Result{
			Reply:     "Sorry, I lost my train of thought. Could you say that again?",
			Failed:    true,
			ErrorType: "unparseable_output",
		}
	}

	log.Printf("[ai] generated response, length=%d, analysis=%t", len(reply), analysis != nil)
	return Result{Reply: reply, Analysis: analysis}
}

// ClosingMessage writes the motivational closing narrative for a
// feedback report. Errors are surfaced so the caller can substitute a
// generic message.
func (s *Service) ClosingMessage(ctx context.Context, subScores map[string]int, fillerWords, strengths, improvements []string) (string, error) {
	prompt := fmt.Sprintf(`Generate a comprehensive feedback report based on the following session data:

Overall Scores:
- Clarity: %d/100
- Structure: %d/100
- Persuasiveness: %d/100
- Vocabulary: %d/100

Filler words used: %s
Strengths identified: %s
Areas to improve: %s

Provide a motivational closing message and specific actionable advice based on the data.`,
		subScores["clarity"], subScores["structure"], subScores["persuasiveness"], subScores["vocabulary"],
		strings.Join(fillerWords, ", "), strings.Join(strengths, "; "), strings.Join(improvements, "; "))

	response, err := s.generateWithRetry(ctx, []*schema.Message{schema.UserMessage(prompt)})
	if err != nil {
		return "", fmt.Errorf("failed to generate closing message: %w", err)
	}
	return strings.TrimSpace(response.Content), nil
}

// GenerateScenario builds a custom practice scenario from a free-text
// description. Fields the model leaves out are filled with defaults so
// the result is always usable.
func (s *Service) GenerateScenario(ctx context.Context, userPrompt string) (scenariomodel.Scenario, error) {
	sanitized := SanitizeUserInput(userPrompt)
	id := "custom-" + randomScenarioSuffix()

	prompt := fmt.Sprintf(`Generate a detailed communication practice scenario based on this description:

%s

Return a single JSON object with string fields:
"id" (use %q), "title", "description",
"category" (one of Interview/Client Management/Pitch/Debate/Quick Drills),
"role" (the character they'll interact with),
"difficulty" (Easy/Medium/Hard),
"context" (detailed scenario context),
"opening" (the opening line from the AI),
"evaluation_focus" (what aspects of communication to evaluate).`, sanitized, id)

	response, err := s.generateWithRetry(ctx, []*schema.Message{schema.UserMessage(prompt)})
	if err != nil {
		return scenariomodel.Scenario{}, fmt.Errorf("failed to generate custom scenario: %w", err)
	}

	var generated scenariomodel.Scenario
	if err := json.Unmarshal([]byte(stripJSONFence(response.Content)), &generated); err != nil {
		return scenariomodel.Scenario{}, fmt.Errorf("failed to parse custom scenario output: %w", err)
	}

	applyScenarioDefaults(&generated, id, sanitized)
	return generated, nil
}

func applyScenarioDefaults(scn *scenariomodel.Scenario, id, context string) {
	if scn.ID == "" {
		scn.ID = id
	}
	if scn.Title == "" {
		scn.Title = "Custom Scenario"
	}
	if scn.Description == "" {
		scn.Description = "User-generated scenario"
	}
	if scn.Category == "" {
		scn.Category = "Custom"
	}
	if scn.Role == "" {
		scn.Role = "Interviewer"
	}
	if scn.Difficulty == "" {
		scn.Difficulty = "Medium"
	}
	if scn.Context == "" {
		scn.Context = context
	}
	if scn.Opening == "" {
		scn.Opening = "Let's discuss your experience."
	}
	if scn.EvaluationFocus == "" {
		scn.EvaluationFocus = "General communication skills"
	}
}

func (s *Service) invokeWithRetry(ctx context.Context, input map[string]any) (*schema.Message, error) {
	var lastErr error
	delay := initialRetryDelay
	for attempt := 1; attempt <= maxModelAttempts; attempt++ {
		response, err := s.chain.Invoke(ctx, input)
		if err == nil {
			return response, nil
		}
		lastErr = err

		if attempt == maxModelAttempts {
			break
		}
		log.Printf("[ai] model call failed (attempt %d/%d): %v", attempt, maxModelAttempts, err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		if delay *= 2; delay > maxRetryDelay {
			delay = maxRetryDelay
		}
	}
	return nil, lastErr
}

func (s *Service) generateWithRetry(ctx context.Context, messages []*schema.Message) (*schema.Message, error) {
	var lastErr error
	delay := initialRetryDelay
	for attempt := 1; attempt <= maxModelAttempts; attempt++ {
		response, err := s.chatModel.Generate(ctx, messages)
		if err == nil {
			return response, nil
		}
		lastErr = err

		if attempt == maxModelAttempts {
			break
		}
		log.Printf("[ai] model call failed (attempt %d/%d): %v", attempt, maxModelAttempts, err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		if delay *= 2; delay > maxRetryDelay {
			delay = maxRetryDelay
		}
	}
	return nil, lastErr
}

// classifyModelError maps an upstream failure onto a stable error type
// and a user-facing message.
func classifyModelError(err error) (string, string) {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "rate limit"):
		return "rate_limit", "API rate limit exceeded. Please wait a moment."
	case strings.Contains(msg, "503") || strings.Contains(msg, "unavailable"):
		return "service_unavailable", "Service temporarily unavailable. Retrying..."
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded"):
		return "timeout", "Request timed out. Please try again."
	case strings.Contains(msg, "quota"):
		return "quota_exceeded", "API quota exceeded."
	default:
		return "unknown", err.Error()
	}
}

const scenarioIDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

func randomScenarioSuffix() string {
	b := make([]byte, 8)
	for i := range b {
		b[i] = scenarioIDAlphabet[rand.Intn(len(scenarioIDAlphabet))]
	}
	return string(b)
}
