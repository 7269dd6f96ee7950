package engine

import (
	"fmt"
	"time"

	"github.com/convobot/convo/definition"
	"github.com/convobot/convo/executor"
	"github.com/convobot/convo/logger"
	"github.com/convobot/convo/model"
	"go.uber.org/zap"
)

// MaxHops bounds how many nodes one inbound message may traverse. A cycle
// of non-interactive nodes in an authored flow hits this bound and ends
// with an error outcome instead of looping forever.
const MaxHops = 25

const apologyMessage = "Sorry, something went wrong on our side. Please try again in a moment."

type StepOutcome struct {
	Messages        []model.Message
	WaitingForInput bool
	Completed       bool
	Handoff         bool
	Err             error
}

// StepExecutor drives one flow definition and context through successive
// node executions until input is required or the flow terminates.
type StepExecutor struct {
	registry *executor.Registry
}

func NewStepExecutor(registry *executor.Registry) *StepExecutor {
	return &StepExecutor{registry: registry}
}

// Run advances the context from its current node. userInput is consumed
// by the first executed node only; every following hop runs without
// input, so one message can traverse many automatic nodes in one turn.
func (s *StepExecutor) Run(def *definition.Definition, sctx *model.ExecutionContext, userInput string) StepOutcome {
	outcome := StepOutcome{}
	currentId := sctx.CurrentNodeId
	if currentId == "" {
		start, ok := def.StartNode()
		if !ok {
			outcome.Completed = true
			return outcome
		}
		currentId = start.Id
		sctx.CurrentNodeId = currentId
	}
	pendingDelay := 0
	input := userInput

	for hop := 0; ; hop++ {
		if hop >= MaxHops {
			logger.Error("flow exceeded max hops",
				zap.String("flowId", sctx.FlowId),
				zap.String("conversationId", sctx.ConversationId),
				zap.String("nodeId", currentId))
			return s.fail(sctx, &outcome, fmt.Errorf("flow exceeded %d hops without waiting for input", MaxHops))
		}
		node, ok := def.Node(currentId)
		if !ok {
			// an edge can point at a node removed by a later edit;
			// treat it like an authoring dead end
			outcome.Completed = true
			return outcome
		}

		result, err := s.executeNode(node, sctx, input)
		input = ""
		sctx.LastActivityAt = time.Now()
		if err == nil && result.Err != nil {
			err = result.Err
		}
		if err != nil {
			logger.Error("node execution failed",
				zap.String("flowId", sctx.FlowId),
				zap.String("nodeId", node.Id),
				zap.String("conversationId", sctx.ConversationId),
				zap.Error(err))
			return s.fail(sctx, &outcome, err)
		}

		for i := range result.Messages {
			msg := result.Messages[i]
			if pendingDelay > 0 && msg.DelaySeconds == 0 {
				msg.DelaySeconds = pendingDelay
				pendingDelay = 0
			}
			sctx.History = append(sctx.History, msg)
			outcome.Messages = append(outcome.Messages, msg)
		}
		if result.DelaySeconds > 0 {
			pendingDelay = result.DelaySeconds
		}
		for k, v := range result.Variables {
			sctx.Variables[k] = v
		}

		if result.WaitingForInput {
			sctx.CurrentNodeId = node.Id
			outcome.WaitingForInput = true
			return outcome
		}
		if result.Completed {
			outcome.Completed = true
			outcome.Handoff = result.Handoff
			return outcome
		}

		nextId := result.NextNodeId
		switch {
		case nextId != "":
		case result.BranchLabel != "":
			if edge, ok := def.EdgeByLabel(node.Id, result.BranchLabel); ok {
				nextId = edge.Target
			} else if edge, ok := def.DefaultEdgeFrom(node.Id); ok {
				// a label matching no edge falls through the unlabeled
				// default, never another branch's labeled edge
				nextId = edge.Target
			}
		default:
			if edge, ok := def.FirstEdgeFrom(node.Id); ok {
				nextId = edge.Target
			}
		}
		if nextId == "" {
			// authoring dead end, implicit completion
			outcome.Completed = true
			return outcome
		}
		sctx.CurrentNodeId = nextId
		currentId = nextId
	}
}

// executeNode dispatches to the registry behind a recover, so a panicking
// executor surfaces as an ordinary error at the step boundary.
func (s *StepExecutor) executeNode(node model.Node, sctx *model.ExecutionContext, input string) (result model.NodeExecutionResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("node executor panic: %v", r)
		}
	}()
	return s.registry.Execute(node, sctx, input)
}

func (s *StepExecutor) fail(sctx *model.ExecutionContext, outcome *StepOutcome, err error) StepOutcome {
	msg := model.Message{
		Role:      "assistant",
		Content:   apologyMessage,
		Timestamp: time.Now(),
	}
	sctx.History = append(sctx.History, msg)
	outcome.Messages = append(outcome.Messages, msg)
	outcome.Completed = false
	outcome.Err = err
	return *outcome
}
