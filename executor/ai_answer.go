package executor

import (
	"context"
	"fmt"

	"github.com/convobot/convo/ai"
	"github.com/convobot/convo/logger"
	"github.com/convobot/convo/model"
	"github.com/convobot/convo/util"
	"go.uber.org/zap"
)

const defaultAiFallback = "I'm not able to answer that right now."

// aiAnswerExecutor delegates to the text generator and degrades to the
// configured fallback message when the call fails.
type aiAnswerExecutor struct {
	generator ai.TextGenerator
}

func (e *aiAnswerExecutor) Type() model.NodeType { return model.NODE_TYPE_AI_ANSWER }

func (e *aiAnswerExecutor) Validate(node model.Node) error {
	if configString(node, "prompt") == "" {
		return fmt.Errorf("nodeId=%s, ai_answer node needs a prompt", node.Id)
	}
	return nil
}

func (e *aiAnswerExecutor) Execute(node model.Node, sctx *model.ExecutionContext, userInput string) (model.NodeExecutionResult, error) {
	prompt := util.Interpolate(sctx.Variables, configString(node, "prompt"))
	result := model.NodeExecutionResult{Success: true}
	var text string
	if e.generator == nil {
		text = ""
	} else {
		generated, err := e.generator.Generate(context.Background(), prompt)
		if err != nil {
			logger.Warn("ai_answer generation failed", zap.String("nodeId", node.Id), zap.Error(err))
		}
		text = generated
	}
	if text == "" {
		text = configString(node, "fallbackMessage")
		if text == "" {
			text = defaultAiFallback
		}
	}
	if variable := configString(node, "variable"); variable != "" {
		result.Variables = map[string]any{variable: text}
	}
	result.Messages = []model.Message{assistantMessage(node, text)}
	return result, nil
}
