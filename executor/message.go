package executor

import (
	"fmt"

	"github.com/convobot/convo/model"
	"github.com/convobot/convo/util"
)

type startExecutor struct{}

func (e *startExecutor) Type() model.NodeType { return model.NODE_TYPE_START }

func (e *startExecutor) Validate(node model.Node) error { return nil }

func (e *startExecutor) Execute(node model.Node, sctx *model.ExecutionContext, userInput string) (model.NodeExecutionResult, error) {
	return model.NodeExecutionResult{Success: true}, nil
}

// messageExecutor emits one interpolated text message and continues.
type messageExecutor struct{}

func (e *messageExecutor) Type() model.NodeType { return model.NODE_TYPE_MESSAGE }

func (e *messageExecutor) Validate(node model.Node) error {
	if configString(node, "text") == "" {
		return fmt.Errorf("nodeId=%s, message node needs a text", node.Id)
	}
	return nil
}

func (e *messageExecutor) Execute(node model.Node, sctx *model.ExecutionContext, userInput string) (model.NodeExecutionResult, error) {
	text := util.Interpolate(sctx.Variables, configString(node, "text"))
	return model.NodeExecutionResult{
		Success:  true,
		Messages: []model.Message{assistantMessage(node, text)},
	}, nil
}

type endExecutor struct{}

func (e *endExecutor) Type() model.NodeType { return model.NODE_TYPE_END }

func (e *endExecutor) Validate(node model.Node) error { return nil }

func (e *endExecutor) Execute(node model.Node, sctx *model.ExecutionContext, userInput string) (model.NodeExecutionResult, error) {
	result := model.NodeExecutionResult{Success: true, Completed: true}
	if text := configString(node, "text"); text != "" {
		result.Messages = []model.Message{assistantMessage(node, util.Interpolate(sctx.Variables, text))}
	}
	return result, nil
}

// handoffExecutor ends automated handling and signals a human takeover.
type handoffExecutor struct{}

func (e *handoffExecutor) Type() model.NodeType { return model.NODE_TYPE_HANDOFF }

func (e *handoffExecutor) Validate(node model.Node) error { return nil }

func (e *handoffExecutor) Execute(node model.Node, sctx *model.ExecutionContext, userInput string) (model.NodeExecutionResult, error) {
	result := model.NodeExecutionResult{Success: true, Completed: true, Handoff: true}
	if text := configString(node, "text"); text != "" {
		result.Messages = []model.Message{assistantMessage(node, util.Interpolate(sctx.Variables, text))}
	}
	return result, nil
}

// delayExecutor records a requested pause as a delivery hint, it never
// blocks the turn.
type delayExecutor struct{}

func (e *delayExecutor) Type() model.NodeType { return model.NODE_TYPE_DELAY }

func (e *delayExecutor) Validate(node model.Node) error {
	if configInt(node, "seconds") < 0 {
		return fmt.Errorf("nodeId=%s, delay seconds can not be negative", node.Id)
	}
	return nil
}

func (e *delayExecutor) Execute(node model.Node, sctx *model.ExecutionContext, userInput string) (model.NodeExecutionResult, error) {
	return model.NodeExecutionResult{
		Success:      true,
		DelaySeconds: configInt(node, "seconds"),
	}, nil
}
