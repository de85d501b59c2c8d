package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/gin-gonic/gin"

	"ginko-backend/types"
)

const (
	// sonnet for decomposition: haiku-grade models drop constraints on
	// longer epics.
	decomposeModel      = "claude-sonnet-4-20250514"
	decomposeMaxTokens  = 2048
	decomposeAPITimeout = 45 * time.Second
	maxSuggestedTasks   = 20
	defaultTaskCount    = 8
)

// Completer is the LLM call behind epic decomposition. main wires the
// Anthropic client when an API key is configured; nil answers 503.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// AI is the injected completion client.
var AI Completer

type anthropicCompleter struct {
	client anthropic.Client
}

// NewAnthropicCompleter builds the production Completer from an API key.
func NewAnthropicCompleter(apiKey string) Completer {
	return &anthropicCompleter{client: anthropic.NewClient(option.WithAPIKey(apiKey))}
}

func (a *anthropicCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	message, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(decomposeModel),
		MaxTokens: decomposeMaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("API call failed: %w", err)
	}
	for _, block := range message.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("no text content in response")
}

// TaskSuggestion is one proposed task in a decomposition.
type TaskSuggestion struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Estimate    string `json:"estimate,omitempty"`
}

// DecomposeEpic handles POST /api/v1/epic/decompose
// Asks the model for a task breakdown of an epic. The epic can be given
// inline (title/content) or by id; the handler only validates and passes
// suggestions through, it never creates tasks.
func DecomposeEpic(c *gin.Context) {
	principal, ok := mustPrincipal(c)
	if !ok {
		return
	}

	var req struct {
		GraphID  string `json:"graphId" binding:"required"`
		EpicID   string `json:"epicId"`
		Title    string `json:"title"`
		Content  string `json:"content"`
		MaxTasks int    `json:"maxTasks"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, types.CodeMissingField, "graphId is required")
		return
	}
	if AI == nil {
		Error(c, http.StatusServiceUnavailable, types.CodeAIServiceNotConfigured, "no AI provider configured")
		return
	}
	if _, ok := checkAccess(c, principal, req.GraphID, types.CapabilityRead); !ok {
		return
	}

	ctx := c.Request.Context()
	if req.EpicID != "" {
		epicID, err := types.NormalizeEpicID(req.EpicID)
		if err != nil {
			Error(c, http.StatusBadRequest, types.CodeMissingField, err.Error())
			return
		}
		epic, err := Epics.EpicByID(ctx, req.GraphID, epicID)
		if err != nil {
			graphError(c, err)
			return
		}
		if req.Title == "" {
			req.Title = epic.Title
		}
		if req.Content == "" {
			req.Content = epic.Content
		}
	}
	if strings.TrimSpace(req.Title) == "" {
		Error(c, http.StatusBadRequest, types.CodeMissingField, "title is required when no epicId is given")
		return
	}
	maxTasks := req.MaxTasks
	if maxTasks < 1 || maxTasks > maxSuggestedTasks {
		maxTasks = defaultTaskCount
	}

	callCtx, cancel := context.WithTimeout(ctx, decomposeAPITimeout)
	defer cancel()
	raw, err := AI.Complete(callCtx, buildDecomposePrompt(req.Title, req.Content, maxTasks))
	if err != nil {
		log.Printf("Decompose: completion for graph %s failed: %v", req.GraphID, err)
		Error(c, http.StatusServiceUnavailable, types.CodeAIServiceError, "task decomposition failed")
		return
	}

	suggestions, err := parseTaskSuggestions(raw)
	if err != nil {
		log.Printf("Decompose: unparseable suggestions for graph %s: %v", req.GraphID, err)
		Error(c, http.StatusServiceUnavailable, types.CodeAIServiceError, "model returned malformed suggestions")
		return
	}
	if len(suggestions) > maxTasks {
		suggestions = suggestions[:maxTasks]
	}

	c.JSON(http.StatusOK, gin.H{
		"suggestions": suggestions,
		"count":       len(suggestions),
		"model":       decomposeModel,
	})
}

func buildDecomposePrompt(title, content string, maxTasks int) string {
	body := ""
	if strings.TrimSpace(content) != "" {
		body = fmt.Sprintf("\nEpic description:\n%s\n", content)
	}
	return fmt.Sprintf(`Break this software epic into at most %d concrete, independently completable tasks.
Epic title: %q%s
Respond with ONLY a JSON array, no prose, no code fences. Each element:
{"title": "<imperative, under 80 chars>", "description": "<one or two sentences>", "estimate": "<one of: hours, day, days>"}
Order tasks by suggested execution order.`, maxTasks, title, body)
}

// parseTaskSuggestions validates the model output: it must contain a
// JSON array of objects with non-empty titles. Code fences and
// surrounding prose are tolerated, anything else is rejected.
func parseTaskSuggestions(raw string) ([]TaskSuggestion, error) {
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start == -1 || end <= start {
		return nil, fmt.Errorf("no JSON array in response")
	}

	var parsed []TaskSuggestion
	if err := json.Unmarshal([]byte(raw[start:end+1]), &parsed); err != nil {
		return nil, fmt.Errorf("decode suggestions: %w", err)
	}

	suggestions := make([]TaskSuggestion, 0, len(parsed))
	for _, s := range parsed {
		s.Title = strings.TrimSpace(s.Title)
		if s.Title == "" {
			continue
		}
		suggestions = append(suggestions, s)
	}
	if len(suggestions) == 0 {
		return nil, fmt.Errorf("no usable tasks in response")
	}
	return suggestions, nil
}
