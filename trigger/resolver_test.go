package trigger

import (
	"testing"

	"github.com/convobot/convo/model"
	"github.com/convobot/convo/persistence/inmem"
	"github.com/stretchr/testify/require"
)

func TestResolver(t *testing.T) {
	for scenario, fn := range map[string]func(
		t *testing.T, storage *inmem.Storage, resolver *Resolver,
	){
		"keyword beats fallback":           testKeywordBeatsFallback,
		"highest priority wins":            testHighestPriorityWins,
		"fallback only when nothing else":  testFallbackOnlyWhenNothingElse,
		"unpublished flows are skipped":    testUnpublishedSkipped,
		"no flow configured returns nil":   testNoFlowReturnsNil,
		"broken url pattern degrades":      testBrokenPatternDegrades,
		"equal priority breaks on flow id": testEqualPriorityTieBreak,
	} {
		t.Run(scenario, func(t *testing.T) {
			storage := inmem.NewStorage()
			fn(t, storage, NewResolver(storage))
		})
	}
}

func publishedFlow(id string, triggers ...model.Trigger) model.Flow {
	return model.Flow{
		Id:          id,
		WorkspaceId: "ws1",
		BotId:       "bot1",
		Name:        id,
		Triggers:    triggers,
		Status:      model.FLOW_STATUS_ACTIVE,
		Published:   true,
	}
}

func keywordTrigger(priority int, keywords ...string) model.Trigger {
	list := make([]any, 0, len(keywords))
	for _, k := range keywords {
		list = append(list, k)
	}
	return model.Trigger{
		Type:       model.TRIGGER_TYPE_KEYWORD,
		Conditions: map[string]any{"keywords": list},
		Priority:   priority,
	}
}

func fallbackTrigger(priority int) model.Trigger {
	return model.Trigger{Type: model.TRIGGER_TYPE_FALLBACK, Priority: priority}
}

func testKeywordBeatsFallback(t *testing.T, storage *inmem.Storage, resolver *Resolver) {
	require.NoError(t, storage.SaveFlow(publishedFlow("f1", keywordTrigger(5, "pricing"))))
	require.NoError(t, storage.SaveFlow(publishedFlow("f2", fallbackTrigger(0))))

	flow, err := resolver.FindFlowByTrigger("ws1", "bot1",
		model.TriggerEvent{Type: model.TRIGGER_TYPE_KEYWORD, Value: "what's your pricing?"})
	require.NoError(t, err)
	require.NotNil(t, flow)
	require.Equal(t, "f1", flow.Id)
}

func testHighestPriorityWins(t *testing.T, storage *inmem.Storage, resolver *Resolver) {
	require.NoError(t, storage.SaveFlow(publishedFlow("f1", keywordTrigger(10, "help"))))
	require.NoError(t, storage.SaveFlow(publishedFlow("f2", keywordTrigger(100, "help"))))

	flow, err := resolver.FindFlowByTrigger("ws1", "bot1",
		model.TriggerEvent{Type: model.TRIGGER_TYPE_KEYWORD, Value: "HELP me please"})
	require.NoError(t, err)
	require.Equal(t, "f2", flow.Id)
}

func testFallbackOnlyWhenNothingElse(t *testing.T, storage *inmem.Storage, resolver *Resolver) {
	require.NoError(t, storage.SaveFlow(publishedFlow("f1", keywordTrigger(5, "pricing"))))
	require.NoError(t, storage.SaveFlow(publishedFlow("f2", fallbackTrigger(0))))

	flow, err := resolver.FindFlowByTrigger("ws1", "bot1",
		model.TriggerEvent{Type: model.TRIGGER_TYPE_KEYWORD, Value: "tell me a joke"})
	require.NoError(t, err)
	require.NotNil(t, flow)
	require.Equal(t, "f2", flow.Id)
}

func testUnpublishedSkipped(t *testing.T, storage *inmem.Storage, resolver *Resolver) {
	draft := publishedFlow("f1", keywordTrigger(5, "pricing"))
	draft.Published = false
	require.NoError(t, storage.SaveFlow(draft))

	flow, err := resolver.FindFlowByTrigger("ws1", "bot1",
		model.TriggerEvent{Type: model.TRIGGER_TYPE_KEYWORD, Value: "pricing"})
	require.NoError(t, err)
	require.Nil(t, flow)
}

func testNoFlowReturnsNil(t *testing.T, storage *inmem.Storage, resolver *Resolver) {
	flow, err := resolver.FindFlowByTrigger("ws1", "bot1",
		model.TriggerEvent{Type: model.TRIGGER_TYPE_KEYWORD, Value: "anything"})
	require.NoError(t, err)
	require.Nil(t, flow)
}

func testBrokenPatternDegrades(t *testing.T, storage *inmem.Storage, resolver *Resolver) {
	flow := publishedFlow("f1", model.Trigger{
		Type:       model.TRIGGER_TYPE_PAGE_URL,
		Conditions: map[string]any{"pattern": "[pricing"},
	})
	require.NoError(t, storage.SaveFlow(flow))

	resolved, err := resolver.FindFlowByTrigger("ws1", "bot1",
		model.TriggerEvent{Type: model.TRIGGER_TYPE_PAGE_URL, Value: "https://acme.test/[pricing/plans"})
	require.NoError(t, err)
	require.NotNil(t, resolved)
	require.Equal(t, "f1", resolved.Id)
}

func testEqualPriorityTieBreak(t *testing.T, storage *inmem.Storage, resolver *Resolver) {
	require.NoError(t, storage.SaveFlow(publishedFlow("f2", keywordTrigger(5, "hello"))))
	require.NoError(t, storage.SaveFlow(publishedFlow("f1", keywordTrigger(5, "hello"))))

	flow, err := resolver.FindFlowByTrigger("ws1", "bot1",
		model.TriggerEvent{Type: model.TRIGGER_TYPE_KEYWORD, Value: "hello there"})
	require.NoError(t, err)
	require.Equal(t, "f1", flow.Id)
}
