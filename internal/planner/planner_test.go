package planner

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/sightline-ai/sightline/api/schemas"
)

// -- Test Setup Helpers --

type stubLLM struct {
	response string
	err      error
	lastReq  schemas.GenerationRequest
}

func (s *stubLLM) Generate(_ context.Context, req schemas.GenerationRequest) (string, error) {
	s.lastReq = req
	return s.response, s.err
}

func (s *stubLLM) Close() error { return nil }

func setupPlanner(t *testing.T, client schemas.LLMClient) *LLMPlanner {
	t.Helper()
	return New(client, 0, zaptest.NewLogger(t))
}

const validPlanJSON = `{"plan_id": "p1", "confidence": 0.85, "steps": [
  {"step": 1, "op": "click", "target": "rect_0", "explain": "open the menu"},
  {"step": 2, "op": "type", "target": "text_1", "value": "hello"}
]}`

// -- Test Cases: ParsePlanResponse --

func TestParsePlanResponse_BareJSON(t *testing.T) {
	plan, err := ParsePlanResponse(validPlanJSON)

	require.NoError(t, err)
	assert.Equal(t, "p1", plan.ID)
	assert.Equal(t, 0.85, plan.Confidence)
	require.Len(t, plan.Steps, 2)
	assert.Equal(t, schemas.OpClick, plan.Steps[0].Operation)
	assert.Equal(t, "hello", plan.Steps[1].Value)
}

func TestParsePlanResponse_MarkdownFence(t *testing.T) {
	response := "Here is the plan:\n```json\n" + validPlanJSON + "\n```\nLet me know."

	plan, err := ParsePlanResponse(response)

	require.NoError(t, err)
	assert.Len(t, plan.Steps, 2)
}

func TestParsePlanResponse_SurroundingProse(t *testing.T) {
	response := "Sure! " + validPlanJSON + " Hope this helps."

	plan, err := ParsePlanResponse(response)

	require.NoError(t, err)
	assert.Equal(t, "p1", plan.ID)
}

func TestParsePlanResponse_NoJSON(t *testing.T) {
	_, err := ParsePlanResponse("I cannot produce a plan for that.")

	require.Error(t, err)
}

func TestParsePlanResponse_InvalidJSON(t *testing.T) {
	_, err := ParsePlanResponse(`{"plan_id": "p1", "steps": [}`)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to unmarshal")
}

func TestParsePlanResponse_ConfidenceClamped(t *testing.T) {
	plan, err := ParsePlanResponse(`{"plan_id": "p1", "confidence": 1.7, "steps": []}`)
	require.NoError(t, err)
	assert.Equal(t, 1.0, plan.Confidence)

	plan, err = ParsePlanResponse(`{"plan_id": "p1", "confidence": -0.2, "steps": []}`)
	require.NoError(t, err)
	assert.Equal(t, 0.0, plan.Confidence)
}

func TestParsePlanResponse_AssignsMissingPlanID(t *testing.T) {
	plan, err := ParsePlanResponse(`{"confidence": 0.5, "steps": []}`)

	require.NoError(t, err)
	assert.NotEmpty(t, plan.ID)
}

func TestParsePlanResponse_NormalizesStepIndexes(t *testing.T) {
	plan, err := ParsePlanResponse(`{"plan_id": "p1", "confidence": 0.9, "steps": [
	  {"step": 7, "op": "click", "target": "rect_0"},
	  {"step": 7, "op": "key", "target": "enter"}
	]}`)

	require.NoError(t, err)
	assert.Equal(t, 1, plan.Steps[0].Index)
	assert.Equal(t, 2, plan.Steps[1].Index)
}

func TestParsePlanResponse_MissingOperation(t *testing.T) {
	_, err := ParsePlanResponse(`{"plan_id": "p1", "confidence": 0.9, "steps": [
	  {"step": 1, "target": "rect_0"}
	]}`)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing an operation")
}

func TestParsePlanResponse_EmptyStepsIsValidNoOp(t *testing.T) {
	plan, err := ParsePlanResponse(`{"plan_id": "p1", "confidence": 0.4, "steps": []}`)

	require.NoError(t, err)
	assert.Empty(t, plan.Steps)
}

// -- Test Cases: GeneratePlan --

func TestGeneratePlan_Success(t *testing.T) {
	client := &stubLLM{response: validPlanJSON}
	p := setupPlanner(t, client)

	state := schemas.ScreenState{Elements: []schemas.Element{
		{ID: "rect_0", Class: schemas.ClassButton, Text: "Menu"},
	}}
	plan, err := p.GeneratePlan(context.Background(), "open the menu", state, nil)

	require.NoError(t, err)
	assert.Equal(t, "p1", plan.ID)

	// The prompt must carry both the instruction and the screen state, and
	// request a strict JSON reply from the powerful tier.
	assert.Contains(t, client.lastReq.UserPrompt, "open the menu")
	assert.Contains(t, client.lastReq.UserPrompt, "rect_0")
	assert.Equal(t, schemas.TierPowerful, client.lastReq.Tier)
	assert.True(t, client.lastReq.Options.ForceJSONFormat)
}

func TestGeneratePlan_MemoryIncludedInPrompt(t *testing.T) {
	client := &stubLLM{response: validPlanJSON}
	p := setupPlanner(t, client)

	_, err := p.GeneratePlan(context.Background(), "continue", schemas.ScreenState{},
		map[string]string{"last_result": "42"})

	require.NoError(t, err)
	assert.Contains(t, client.lastReq.UserPrompt, "last_result")
	assert.Contains(t, client.lastReq.UserPrompt, "42")
}

func TestGeneratePlan_TransportFailure(t *testing.T) {
	client := &stubLLM{err: errors.New("api quota exhausted")}
	p := setupPlanner(t, client)

	_, err := p.GeneratePlan(context.Background(), "do something", schemas.ScreenState{}, nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "plan generation failed")
}

func TestGeneratePlan_UnparseableReply(t *testing.T) {
	client := &stubLLM{response: "no json here"}
	p := setupPlanner(t, client)

	_, err := p.GeneratePlan(context.Background(), "do something", schemas.ScreenState{}, nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse plan response")
}
