package executor

import (
	"testing"
	"time"

	"github.com/convobot/convo/model"
	"github.com/stretchr/testify/require"
)

func testContext(vars map[string]any) *model.ExecutionContext {
	if vars == nil {
		vars = map[string]any{}
	}
	return &model.ExecutionContext{
		ConversationId: "conv1",
		Variables:      vars,
		StartedAt:      time.Now(),
		LastActivityAt: time.Now(),
	}
}

func TestMessageExecutor(t *testing.T) {
	e := &messageExecutor{}
	node := model.Node{Id: "m1", Type: model.NODE_TYPE_MESSAGE,
		Config: map[string]any{"text": "hello {name}"}}

	result, err := e.Execute(node, testContext(map[string]any{"name": "Ada"}), "")
	require.NoError(t, err)
	require.Len(t, result.Messages, 1)
	require.Equal(t, "hello Ada", result.Messages[0].Content)
	require.False(t, result.WaitingForInput)
	require.False(t, result.Completed)
}

func TestQuestionExecutor(t *testing.T) {
	e := &questionExecutor{}
	node := model.Node{Id: "q1", Type: model.NODE_TYPE_QUESTION, Config: map[string]any{
		"prompt":   "Which service? A/B",
		"variable": "service",
		"options": []any{
			map[string]any{"label": "Option A", "value": "A", "next": "svc-a"},
			map[string]any{"label": "Option B", "value": "B", "next": "svc-b"},
		},
	}}

	// first pass emits the prompt and waits
	result, err := e.Execute(node, testContext(nil), "")
	require.NoError(t, err)
	require.True(t, result.WaitingForInput)
	require.Equal(t, "Which service? A/B", result.Messages[0].Content)

	// the reply resolves the matching option's branch
	result, err = e.Execute(node, testContext(nil), "a")
	require.NoError(t, err)
	require.False(t, result.WaitingForInput)
	require.Equal(t, "svc-a", result.NextNodeId)
	require.Equal(t, "a", result.Variables["service"])

	// an unmatched reply carries the raw text as its branch label so the
	// step executor routes it to the default edge
	result, err = e.Execute(node, testContext(nil), "whatever")
	require.NoError(t, err)
	require.Empty(t, result.NextNodeId)
	require.Equal(t, "whatever", result.BranchLabel)
	require.Equal(t, "whatever", result.Variables["service"])
}

func TestConditionExecutor(t *testing.T) {
	e := &conditionExecutor{}
	node := model.Node{Id: "c1", Type: model.NODE_TYPE_CONDITION, Config: map[string]any{
		"rules": []any{
			map[string]any{"variable": "plan", "operator": "eq", "value": "pro", "next": "pro-branch"},
			map[string]any{"variable": "visits", "operator": "gt", "value": 10, "next": "loyal-branch"},
		},
		"default": "default-branch",
	}}

	result, err := e.Execute(node, testContext(map[string]any{"plan": "pro"}), "")
	require.NoError(t, err)
	require.Equal(t, "pro-branch", result.NextNodeId)
	require.Empty(t, result.Messages)

	result, err = e.Execute(node, testContext(map[string]any{"plan": "free", "visits": 12}), "")
	require.NoError(t, err)
	require.Equal(t, "loyal-branch", result.NextNodeId)

	result, err = e.Execute(node, testContext(map[string]any{"plan": "free"}), "")
	require.NoError(t, err)
	require.Equal(t, "default-branch", result.NextNodeId)
}

func TestConditionExpressionMode(t *testing.T) {
	e := &conditionExecutor{}
	node := model.Node{Id: "c1", Type: model.NODE_TYPE_CONDITION, Config: map[string]any{
		"rules": []any{
			map[string]any{"expression": `plan == "pro" && visits > 3`, "next": "vip"},
		},
	}}

	result, err := e.Execute(node, testContext(map[string]any{"plan": "pro", "visits": 5}), "")
	require.NoError(t, err)
	require.Equal(t, "vip", result.NextNodeId)

	result, err = e.Execute(node, testContext(map[string]any{"plan": "free", "visits": 5}), "")
	require.NoError(t, err)
	require.Empty(t, result.NextNodeId)
}

func TestActionExecutorAssignments(t *testing.T) {
	e := &actionExecutor{}
	node := model.Node{Id: "a1", Type: model.NODE_TYPE_ACTION, Config: map[string]any{
		"assignments": []any{
			map[string]any{"variable": "greeting", "value": "hi {name}"},
			map[string]any{"variable": "score", "value": 10},
		},
	}}

	result, err := e.Execute(node, testContext(map[string]any{"name": "Ada"}), "")
	require.NoError(t, err)
	require.Equal(t, "hi Ada", result.Variables["greeting"])
	require.Equal(t, 10, result.Variables["score"])
}

func TestActionExecutorScript(t *testing.T) {
	e := &actionExecutor{}
	node := model.Node{Id: "a1", Type: model.NODE_TYPE_ACTION, Config: map[string]any{
		"script": `$.total = $.price * $.qty;`,
	}}

	result, err := e.Execute(node, testContext(map[string]any{"price": 4, "qty": 3}), "")
	require.NoError(t, err)
	require.Equal(t, float64(12), result.Variables["total"])
}

func TestDelayExecutor(t *testing.T) {
	e := &delayExecutor{}
	node := model.Node{Id: "d1", Type: model.NODE_TYPE_DELAY, Config: map[string]any{"seconds": float64(3)}}

	result, err := e.Execute(node, testContext(nil), "")
	require.NoError(t, err)
	require.Equal(t, 3, result.DelaySeconds)
	require.False(t, result.WaitingForInput)
	require.False(t, result.Completed)
}

func TestHandoffAndEndExecutors(t *testing.T) {
	handoff := &handoffExecutor{}
	result, err := handoff.Execute(model.Node{Id: "h1", Type: model.NODE_TYPE_HANDOFF,
		Config: map[string]any{"text": "Connecting you to an agent."}}, testContext(nil), "")
	require.NoError(t, err)
	require.True(t, result.Completed)
	require.True(t, result.Handoff)
	require.Equal(t, "Connecting you to an agent.", result.Messages[0].Content)

	end := &endExecutor{}
	result, err = end.Execute(model.Node{Id: "e1", Type: model.NODE_TYPE_END}, testContext(nil), "")
	require.NoError(t, err)
	require.True(t, result.Completed)
	require.False(t, result.Handoff)
}

func TestRegistryUnknownType(t *testing.T) {
	registry := NewRegistry(nil)
	_, err := registry.Execute(model.Node{Id: "x", Type: model.NodeType("webhook")}, testContext(nil), "")
	require.ErrorContains(t, err, "no executor registered")
}

func TestRegistryValidateVersion(t *testing.T) {
	registry := NewRegistry(nil)
	err := registry.ValidateVersion(&model.FlowVersion{Nodes: []model.Node{
		{Id: "m1", Type: model.NODE_TYPE_MESSAGE, Config: map[string]any{}},
	}})
	require.ErrorContains(t, err, "needs a text")

	err = registry.ValidateVersion(&model.FlowVersion{Nodes: []model.Node{
		{Id: "m1", Type: model.NODE_TYPE_MESSAGE, Config: map[string]any{"text": "hi"}},
		{Id: "q1", Type: model.NODE_TYPE_QUESTION, Config: map[string]any{"prompt": "?"}},
	}})
	require.NoError(t, err)
}
