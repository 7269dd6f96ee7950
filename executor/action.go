package executor

import (
	"encoding/json"
	"fmt"

	"github.com/convobot/convo/model"
	"github.com/convobot/convo/util"
	"github.com/dop251/goja"
)

// actionExecutor is a pure context mutation. Two modes: a list of
// interpolated assignments, or a javascript snippet run against a copy
// of the variable map bound to $, whose final value is merged back.
type actionExecutor struct{}

func (e *actionExecutor) Type() model.NodeType { return model.NODE_TYPE_ACTION }

func (e *actionExecutor) Validate(node model.Node) error {
	if len(configList(node, "assignments")) == 0 && configString(node, "script") == "" {
		return fmt.Errorf("nodeId=%s, action node needs assignments or a script", node.Id)
	}
	return nil
}

func (e *actionExecutor) Execute(node model.Node, sctx *model.ExecutionContext, userInput string) (model.NodeExecutionResult, error) {
	if script := configString(node, "script"); script != "" {
		updates, err := runScript(script, sctx.Variables)
		if err != nil {
			return model.NodeExecutionResult{}, err
		}
		return model.NodeExecutionResult{Success: true, Variables: updates}, nil
	}
	updates := make(map[string]any)
	for _, assignment := range configList(node, "assignments") {
		variable, _ := assignment["variable"].(string)
		if variable == "" {
			continue
		}
		if value, ok := assignment["value"].(string); ok {
			updates[variable] = util.Interpolate(sctx.Variables, value)
		} else {
			updates[variable] = assignment["value"]
		}
	}
	return model.NodeExecutionResult{Success: true, Variables: updates}, nil
}

func runScript(script string, vars map[string]any) (map[string]any, error) {
	data, _ := json.Marshal(vars)
	program := fmt.Sprintf("var $ = %s;\n%s", data, script)
	vm := goja.New()
	if _, err := vm.RunString(program); err != nil {
		return nil, fmt.Errorf("error executing script %w", err)
	}
	val, err := vm.RunString("$")
	if err != nil {
		return nil, fmt.Errorf("error executing script %w", err)
	}
	out, err := json.Marshal(val.Export())
	if err != nil {
		return nil, err
	}
	var updates map[string]any
	if err := json.Unmarshal(out, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}
