package executor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/convobot/convo/logger"
	"github.com/convobot/convo/model"
	"github.com/convobot/convo/util"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const defaultApiCallTimeout = 15 * time.Second

// apiCallExecutor performs one outbound HTTP request and stores the
// outcome in a named variable. A failed call stores the error and emits
// the configured fallback message instead of aborting the step.
type apiCallExecutor struct {
	client *resty.Client
}

func newApiCallExecutor() *apiCallExecutor {
	return &apiCallExecutor{
		client: resty.New().SetTimeout(defaultApiCallTimeout),
	}
}

func (e *apiCallExecutor) Type() model.NodeType { return model.NODE_TYPE_API_CALL }

func (e *apiCallExecutor) Validate(node model.Node) error {
	if configString(node, "url") == "" {
		return fmt.Errorf("nodeId=%s, api_call node needs a url", node.Id)
	}
	switch strings.ToUpper(configString(node, "method")) {
	case "", "GET", "POST", "PUT", "PATCH", "DELETE":
		return nil
	}
	return fmt.Errorf("nodeId=%s, unsupported api_call method %s", node.Id, configString(node, "method"))
}

func (e *apiCallExecutor) Execute(node model.Node, sctx *model.ExecutionContext, userInput string) (model.NodeExecutionResult, error) {
	url := util.Interpolate(sctx.Variables, configString(node, "url"))
	method := strings.ToUpper(configString(node, "method"))
	if method == "" {
		method = "GET"
	}
	variable := configString(node, "variable")
	if variable == "" {
		variable = "apiResult"
	}

	req := e.client.R()
	for key, value := range configMap(node, "headers") {
		if s, ok := value.(string); ok {
			req.SetHeader(key, util.Interpolate(sctx.Variables, s))
		}
	}
	if body := configMap(node, "body"); len(body) > 0 {
		req.SetBody(util.ResolveParams(sctx.Variables, body))
	}
	if seconds := configInt(node, "timeoutSeconds"); seconds > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(seconds)*time.Second)
		defer cancel()
		req.SetContext(ctx)
	}

	var responseBody map[string]any
	req.SetResult(&responseBody).SetError(&responseBody)
	resp, err := req.Execute(method, url)
	if err != nil {
		logger.Warn("api_call request failed",
			zap.String("nodeId", node.Id), zap.String("url", url), zap.Error(err))
		result := model.NodeExecutionResult{
			Success:   true,
			Variables: map[string]any{variable: map[string]any{"error": err.Error()}},
		}
		if fallback := configString(node, "fallbackMessage"); fallback != "" {
			result.Messages = []model.Message{assistantMessage(node, util.Interpolate(sctx.Variables, fallback))}
		}
		return result, nil
	}
	return model.NodeExecutionResult{
		Success: true,
		Variables: map[string]any{variable: map[string]any{
			"status_code": resp.StatusCode(),
			"body":        responseBody,
		}},
	}, nil
}
