package executor

import (
	"fmt"
	"strings"

	"github.com/convobot/convo/model"
	"github.com/convobot/convo/util"
)

// questionExecutor prompts and waits. On the turn the reply arrives it
// resolves the branch of the matching option; an unmatched reply falls
// through to the default edge so the author decides what "anything else"
// means.
type questionExecutor struct{}

func (e *questionExecutor) Type() model.NodeType { return model.NODE_TYPE_QUESTION }

func (e *questionExecutor) Validate(node model.Node) error {
	if configString(node, "prompt") == "" {
		return fmt.Errorf("nodeId=%s, question node needs a prompt", node.Id)
	}
	return nil
}

func (e *questionExecutor) Execute(node model.Node, sctx *model.ExecutionContext, userInput string) (model.NodeExecutionResult, error) {
	options := configList(node, "options")
	if userInput == "" {
		prompt := util.Interpolate(sctx.Variables, configString(node, "prompt"))
		return model.NodeExecutionResult{
			Success:         true,
			Messages:        []model.Message{assistantMessage(node, prompt)},
			WaitingForInput: true,
		}, nil
	}
	result := model.NodeExecutionResult{Success: true}
	if variable := configString(node, "variable"); variable != "" {
		result.Variables = map[string]any{variable: userInput}
	}
	for _, option := range options {
		if !optionMatches(option, userInput) {
			continue
		}
		if next, _ := option["next"].(string); next != "" {
			result.NextNodeId = next
		} else if value, _ := option["value"].(string); value != "" {
			// branch by the edge labelled with the option value;
			// resolved by the step executor through the label field
			result.NextNodeId = ""
			result.BranchLabel = value
		}
		return result, nil
	}
	// unmatched reply: the raw text becomes the branch label so the step
	// executor routes it to the default edge, never an option's branch
	result.BranchLabel = userInput
	return result, nil
}

func optionMatches(option map[string]any, input string) bool {
	input = strings.TrimSpace(strings.ToLower(input))
	if value, _ := option["value"].(string); value != "" && strings.ToLower(value) == input {
		return true
	}
	if label, _ := option["label"].(string); label != "" && strings.ToLower(label) == input {
		return true
	}
	return false
}
