package executor

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/convobot/convo/model"
	"github.com/expr-lang/expr"
)

// conditionExecutor picks a branch from context variables. Each rule is
// either a {variable, operator, value} comparison or an expression
// evaluated against the variable map; the first matching rule wins. No
// message of its own.
type conditionExecutor struct{}

func (e *conditionExecutor) Type() model.NodeType { return model.NODE_TYPE_CONDITION }

func (e *conditionExecutor) Validate(node model.Node) error {
	rules := configList(node, "rules")
	if len(rules) == 0 {
		return fmt.Errorf("nodeId=%s, condition node needs at least one rule", node.Id)
	}
	for _, rule := range rules {
		expression, _ := rule["expression"].(string)
		variable, _ := rule["variable"].(string)
		if expression == "" && variable == "" {
			return fmt.Errorf("nodeId=%s, condition rule needs a variable or an expression", node.Id)
		}
		if expression != "" {
			if _, err := expr.Compile(expression, expr.AllowUndefinedVariables()); err != nil {
				return fmt.Errorf("nodeId=%s, invalid condition expression: %w", node.Id, err)
			}
		}
	}
	return nil
}

func (e *conditionExecutor) Execute(node model.Node, sctx *model.ExecutionContext, userInput string) (model.NodeExecutionResult, error) {
	for _, rule := range configList(node, "rules") {
		matched, err := e.evalRule(rule, sctx.Variables)
		if err != nil {
			return model.NodeExecutionResult{}, err
		}
		if matched {
			next, _ := rule["next"].(string)
			return model.NodeExecutionResult{Success: true, NextNodeId: next}, nil
		}
	}
	return model.NodeExecutionResult{
		Success:    true,
		NextNodeId: configString(node, "default"),
	}, nil
}

func (e *conditionExecutor) evalRule(rule map[string]any, vars map[string]any) (bool, error) {
	if expression, _ := rule["expression"].(string); expression != "" {
		out, err := expr.Eval(expression, vars)
		if err != nil {
			return false, fmt.Errorf("error evaluating condition expression: %w", err)
		}
		matched, _ := out.(bool)
		return matched, nil
	}
	variable, _ := rule["variable"].(string)
	operator, _ := rule["operator"].(string)
	expected := rule["value"]
	actual, exists := vars[variable]
	switch operator {
	case "exists":
		return exists, nil
	case "eq", "":
		return strings.EqualFold(stringify(actual), stringify(expected)), nil
	case "neq":
		return !strings.EqualFold(stringify(actual), stringify(expected)), nil
	case "contains":
		return strings.Contains(strings.ToLower(stringify(actual)), strings.ToLower(stringify(expected))), nil
	case "gt":
		return numeric(actual) > numeric(expected), nil
	case "lt":
		return numeric(actual) < numeric(expected), nil
	}
	return false, fmt.Errorf("unknown condition operator %s", operator)
}

func stringify(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}

func numeric(v any) float64 {
	switch tv := v.(type) {
	case int:
		return float64(tv)
	case int64:
		return float64(tv)
	case float64:
		return tv
	case string:
		f, _ := strconv.ParseFloat(tv, 64)
		return f
	}
	return 0
}
