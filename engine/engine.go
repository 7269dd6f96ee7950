package engine

import (
	"errors"
	"time"

	"github.com/convobot/convo/analytics"
	"github.com/convobot/convo/definition"
	"github.com/convobot/convo/logger"
	"github.com/convobot/convo/model"
	"github.com/convobot/convo/persistence"
	"github.com/convobot/convo/trigger"
	"go.uber.org/zap"
)

const noFlowMessage = "Sorry, I don't have an answer for that right now. Please try again later."

// Engine composes the trigger resolver, definition loader, session store
// and step executor into the per-message pipeline.
type Engine struct {
	definitions *definition.Loader
	triggers    *trigger.Resolver
	sessions    persistence.SessionStorage
	flows       persistence.FlowStorage
	steps       *StepExecutor
	collector   *analytics.FlowRunCollector
}

func New(definitions *definition.Loader, triggers *trigger.Resolver,
	sessions persistence.SessionStorage, flows persistence.FlowStorage,
	steps *StepExecutor, collector *analytics.FlowRunCollector) *Engine {
	return &Engine{
		definitions: definitions,
		triggers:    triggers,
		sessions:    sessions,
		flows:       flows,
		steps:       steps,
		collector:   collector,
	}
}

// ProcessUserMessage handles one inbound message end to end: resume or
// create a context, run the step executor, persist or clear the context,
// and update run statistics. It never lets a failure escape; the caller
// always receives a well formed result.
func (e *Engine) ProcessUserMessage(workspaceId string, botId string, conversationId string, message string, contact *model.Contact) (result model.ProcessResult) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("unexpected failure processing message",
				zap.String("conversationId", conversationId), zap.Any("panic", r))
			// fail closed: a broken session must not trap the user
			if err := e.sessions.Clear(conversationId); err != nil {
				logger.Warn("best-effort session clear failed",
					zap.String("conversationId", conversationId), zap.Error(err))
			}
			result = model.ProcessResult{
				Messages:  []model.Message{{Role: "assistant", Content: apologyMessage, Timestamp: time.Now()}},
				Completed: true,
			}
		}
	}()

	sctx, def := e.resumeSession(conversationId)
	if sctx == nil {
		return e.startSession(workspaceId, botId, conversationId, message, contact)
	}
	return e.continueSession(def, sctx, message)
}

// resumeSession loads the persisted context and its bound definition. A
// context whose flow, version or current node no longer exists is
// discarded, not repaired; the conversation starts over.
func (e *Engine) resumeSession(conversationId string) (*model.ExecutionContext, *definition.Definition) {
	sctx, err := e.sessions.Load(conversationId)
	if err != nil || sctx == nil {
		return nil, nil
	}
	def, err := e.definitions.Load(sctx.FlowId, sctx.VersionId)
	if err != nil {
		logger.Info("discarding session with missing flow binding",
			zap.String("conversationId", conversationId),
			zap.String("flowId", sctx.FlowId), zap.Error(err))
		e.clearSession(conversationId)
		return nil, nil
	}
	if sctx.CurrentNodeId != "" {
		if _, ok := def.Node(sctx.CurrentNodeId); !ok {
			logger.Info("discarding session pointing at a removed node",
				zap.String("conversationId", conversationId),
				zap.String("nodeId", sctx.CurrentNodeId))
			e.clearSession(conversationId)
			return nil, nil
		}
	}
	if sctx.Variables == nil {
		// stored as null when a flow has no variables
		sctx.Variables = make(map[string]any)
	}
	return sctx, def
}

func (e *Engine) startSession(workspaceId string, botId string, conversationId string, message string, contact *model.Contact) model.ProcessResult {
	event := model.TriggerEvent{Type: model.TRIGGER_TYPE_KEYWORD, Value: message}
	flow, err := e.triggers.FindFlowByTrigger(workspaceId, botId, event)
	if err != nil {
		logger.Error("trigger resolution failed", zap.String("botId", botId), zap.Error(err))
		return apologyResult()
	}
	if flow == nil {
		// never silently drop an inbound message
		return model.ProcessResult{
			Messages:  []model.Message{{Role: "assistant", Content: noFlowMessage, Timestamp: time.Now()}},
			Completed: true,
		}
	}
	def, err := e.definitions.Load(flow.Id, "")
	if err != nil {
		logger.Error("loading resolved flow failed", zap.String("flowId", flow.Id), zap.Error(err))
		return apologyResult()
	}

	now := time.Now()
	sctx := &model.ExecutionContext{
		ConversationId: conversationId,
		WorkspaceId:    workspaceId,
		BotId:          botId,
		FlowId:         def.Flow.Id,
		VersionId:      def.Version.Id,
		Contact:        contact,
		Variables:      seedVariables(def.Version.Variables),
		Status:         model.SESSION_ACTIVE,
		StartedAt:      now,
		LastActivityAt: now,
	}
	sctx.History = append(sctx.History, model.Message{Role: "user", Content: message, Timestamp: now})

	// the triggering message only selects the flow; the first run drives
	// through the start node and any leading automatic nodes with no
	// user input
	outcome := e.steps.Run(def, sctx, "")
	return e.settle(def, sctx, outcome, false)
}

func (e *Engine) continueSession(def *definition.Definition, sctx *model.ExecutionContext, message string) model.ProcessResult {
	sctx.History = append(sctx.History, model.Message{Role: "user", Content: message, Timestamp: time.Now()})
	outcome := e.steps.Run(def, sctx, message)
	return e.settle(def, sctx, outcome, true)
}

// settle persists or clears the context according to the step outcome and
// updates run statistics on every terminal run.
func (e *Engine) settle(def *definition.Definition, sctx *model.ExecutionContext, outcome StepOutcome, persisted bool) model.ProcessResult {
	result := model.ProcessResult{
		Messages:        outcome.Messages,
		WaitingForInput: outcome.WaitingForInput,
		Completed:       outcome.Completed,
		Handoff:         outcome.Handoff,
	}
	terminal := outcome.Completed || outcome.Handoff || outcome.Err != nil
	if terminal {
		if persisted {
			e.clearSession(sctx.ConversationId)
		}
		success := outcome.Err == nil
		if err := e.flows.RecordRun(def.Flow.Id, success); err != nil {
			logger.Warn("recording flow run failed", zap.String("flowId", def.Flow.Id), zap.Error(err))
		}
		e.collector.RecordRun(sctx, def.Flow, success, outcome.Handoff)
		if outcome.Err != nil {
			result.Completed = true
		}
		return result
	}

	if err := e.sessions.Save(sctx); err != nil {
		var conflict persistence.SessionConflictError
		if errors.As(err, &conflict) {
			// a concurrent turn already advanced this conversation;
			// the first writer wins and this one's state is dropped
			logger.Warn("session save rejected by concurrent update",
				zap.String("conversationId", sctx.ConversationId))
			return result
		}
		logger.Error("saving session failed",
			zap.String("conversationId", sctx.ConversationId), zap.Error(err))
		e.clearSession(sctx.ConversationId)
		return apologyResult()
	}
	return result
}

func (e *Engine) clearSession(conversationId string) {
	if err := e.sessions.Clear(conversationId); err != nil {
		logger.Warn("clearing session failed",
			zap.String("conversationId", conversationId), zap.Error(err))
	}
}

func seedVariables(defs []model.VariableDef) map[string]any {
	vars := make(map[string]any, len(defs))
	for _, d := range defs {
		vars[d.Name] = d.Default
	}
	return vars
}

func apologyResult() model.ProcessResult {
	return model.ProcessResult{
		Messages:  []model.Message{{Role: "assistant", Content: apologyMessage, Timestamp: time.Now()}},
		Completed: true,
	}
}
