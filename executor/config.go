package executor

import (
	"time"

	"github.com/convobot/convo/model"
)

// Node configs arrive as decoded JSON, so numbers are float64 and lists
// are []any. These helpers keep the per-type executors free of type
// switch noise.

func configString(node model.Node, key string) string {
	s, _ := node.Config[key].(string)
	return s
}

func configInt(node model.Node, key string) int {
	switch v := node.Config[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func configList(node model.Node, key string) []map[string]any {
	raw, _ := node.Config[key].([]any)
	out := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func configMap(node model.Node, key string) map[string]any {
	m, _ := node.Config[key].(map[string]any)
	return m
}

func assistantMessage(node model.Node, content string) model.Message {
	return model.Message{
		Role:      "assistant",
		Content:   content,
		NodeId:    node.Id,
		Timestamp: time.Now(),
	}
}
