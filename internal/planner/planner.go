// Package planner turns a user instruction plus the perceived screen state
// into a typed action plan by prompting a large language model. The model is
// the planning intelligence; this package owns only the transport, prompt
// shape, and defensive parsing of the reply.
package planner

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sightline-ai/sightline/api/schemas"
)

const systemPrompt = `You are a GUI automation planner. You receive a user
instruction and a JSON description of every interactive element currently
visible on screen. Respond with a single JSON object of the shape:
{"plan_id": string, "confidence": number between 0 and 1, "steps": [
  {"step": 1-based integer, "op": "click"|"type"|"key"|"wait",
   "target": element id or literal payload, "value": optional payload,
   "explain": short rationale}]}
Only reference element ids that appear in the provided screen state. Return
an empty steps array when the instruction needs no action.`

// LLMPlanner implements schemas.Planner on top of an LLM client.
type LLMPlanner struct {
	client  schemas.LLMClient
	limiter *rate.Limiter
	logger  *zap.Logger
}

// New creates a planner. requestsPerSecond throttles calls to the model API;
// zero or negative disables throttling.
func New(client schemas.LLMClient, requestsPerSecond float64, logger *zap.Logger) *LLMPlanner {
	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}
	return &LLMPlanner{
		client:  client,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger.Named("planner"),
	}
}

// GeneratePlan prompts the model and parses its reply into a Plan. Any
// transport or parse failure is a planning failure: fatal for the run, there
// is nothing to execute.
func (p *LLMPlanner) GeneratePlan(ctx context.Context, instruction string, state schemas.ScreenState, memory map[string]string) (schemas.Plan, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return schemas.Plan{}, fmt.Errorf("planner rate limiter: %w", err)
	}

	userPrompt, err := buildUserPrompt(instruction, state, memory)
	if err != nil {
		return schemas.Plan{}, fmt.Errorf("failed to build planner prompt: %w", err)
	}

	raw, err := p.client.Generate(ctx, schemas.GenerationRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
		Tier:         schemas.TierPowerful,
		Options: schemas.GenerationOptions{
			Temperature:     0.2,
			ForceJSONFormat: true,
		},
	})
	if err != nil {
		return schemas.Plan{}, fmt.Errorf("plan generation failed: %w", err)
	}

	plan, err := ParsePlanResponse(raw)
	if err != nil {
		return schemas.Plan{}, fmt.Errorf("failed to parse plan response: %w", err)
	}

	p.logger.Info("Plan generated",
		zap.String("plan_id", plan.ID),
		zap.Float64("confidence", plan.Confidence),
		zap.Int("steps", len(plan.Steps)),
	)
	return plan, nil
}

func buildUserPrompt(instruction string, state schemas.ScreenState, memory map[string]string) (string, error) {
	stateJSON, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Instruction: %s\n\nCurrent screen state:\n%s\n", instruction, stateJSON)
	if len(memory) > 0 {
		memJSON, err := json.Marshal(memory)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&sb, "\nMemory from previous actions:\n%s\n", memJSON)
	}
	sb.WriteString("\nDetermine the step sequence. Respond with a single JSON object.")
	return sb.String(), nil
}

// jsonBlockRegex extracts a JSON object from a markdown code block.
var jsonBlockRegex = regexp.MustCompile(fmt.Sprintf("(?s)%s(?:json)?\\s*(.*?)\\s*%s", "```", "```"))

// ParsePlanResponse robustly extracts and validates the plan JSON from the
// model's reply, handling markdown fences and surrounding prose.
func ParsePlanResponse(response string) (schemas.Plan, error) {
	response = strings.TrimSpace(response)

	var jsonString string
	if matches := jsonBlockRegex.FindStringSubmatch(response); len(matches) > 1 {
		jsonString = strings.TrimSpace(matches[1])
	} else {
		first := strings.Index(response, "{")
		last := strings.LastIndex(response, "}")
		if first != -1 && last > first {
			jsonString = response[first : last+1]
		} else {
			jsonString = response
		}
	}
	if jsonString == "" {
		return schemas.Plan{}, fmt.Errorf("could not find any JSON in the planner response")
	}

	var plan schemas.Plan
	if err := json.Unmarshal([]byte(jsonString), &plan); err != nil {
		return schemas.Plan{}, fmt.Errorf("failed to unmarshal extracted JSON: %w", err)
	}

	return normalizePlan(plan)
}

// normalizePlan enforces the plan contract: confidence clamped to [0,1],
// a stable plan id, and strictly increasing 1-based step indexes. An empty
// step list is a valid no-op plan.
func normalizePlan(plan schemas.Plan) (schemas.Plan, error) {
	if plan.ID == "" {
		plan.ID = uuid.NewString()
	}
	if plan.Confidence < 0 {
		plan.Confidence = 0
	}
	if plan.Confidence > 1 {
		plan.Confidence = 1
	}
	for i := range plan.Steps {
		if plan.Steps[i].Operation == "" {
			return schemas.Plan{}, fmt.Errorf("step %d is missing an operation", i+1)
		}
		plan.Steps[i].Index = i + 1
	}
	return plan, nil
}
