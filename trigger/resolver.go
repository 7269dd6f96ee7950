package trigger

import (
	"regexp"
	"strings"

	"github.com/convobot/convo/logger"
	"github.com/convobot/convo/model"
	"github.com/convobot/convo/persistence"
	"go.uber.org/zap"
)

type Resolver struct {
	storage persistence.FlowStorage
}

func NewResolver(storage persistence.FlowStorage) *Resolver {
	return &Resolver{storage: storage}
}

// FindFlowByTrigger scans the bot's active published flows and returns
// the one whose triggers best match the event. Highest trigger priority
// wins; ties break on the smaller flow id so resolution is deterministic.
// When nothing matches a non-fallback event, one retry is made with a
// synthetic fallback event. A nil flow with a nil error means no flow is
// configured for this bot, which callers must not treat as a failure.
func (r *Resolver) FindFlowByTrigger(workspaceId string, botId string, event model.TriggerEvent) (*model.Flow, error) {
	return r.resolve(workspaceId, botId, event, false)
}

func (r *Resolver) resolve(workspaceId string, botId string, event model.TriggerEvent, attemptedFallback bool) (*model.Flow, error) {
	flows, err := r.storage.ListFlowsByBot(workspaceId, botId)
	if err != nil {
		return nil, err
	}
	var best *model.Flow
	bestPriority := 0
	for i := range flows {
		flow := flows[i]
		if flow.Status != model.FLOW_STATUS_ACTIVE || !flow.Published {
			continue
		}
		matched := false
		priority := 0
		for _, trig := range flow.Triggers {
			if !matchTrigger(trig, event) {
				continue
			}
			if !matched || trig.Priority > priority {
				priority = trig.Priority
			}
			matched = true
		}
		if !matched {
			continue
		}
		if best == nil || priority > bestPriority ||
			(priority == bestPriority && flow.Id < best.Id) {
			best = &flows[i]
			bestPriority = priority
		}
	}
	if best != nil {
		logger.Debug("resolved flow for event",
			zap.String("flowId", best.Id),
			zap.String("triggerType", string(event.Type)),
			zap.Int("priority", bestPriority))
		return best, nil
	}
	if event.Type != model.TRIGGER_TYPE_FALLBACK && !attemptedFallback {
		fallback := model.TriggerEvent{Type: model.TRIGGER_TYPE_FALLBACK, Value: event.Value}
		return r.resolve(workspaceId, botId, fallback, true)
	}
	return nil, nil
}

func matchTrigger(trig model.Trigger, event model.TriggerEvent) bool {
	switch trig.Type {
	case model.TRIGGER_TYPE_KEYWORD:
		if event.Type != model.TRIGGER_TYPE_KEYWORD {
			return false
		}
		value := strings.ToLower(event.Value)
		for _, keyword := range stringList(trig.Conditions["keywords"]) {
			if keyword != "" && strings.Contains(value, strings.ToLower(keyword)) {
				return true
			}
		}
		return false
	case model.TRIGGER_TYPE_INTENT:
		if event.Type != model.TRIGGER_TYPE_INTENT {
			return false
		}
		return stringValue(trig.Conditions["value"]) == event.Value
	case model.TRIGGER_TYPE_PAGE_URL:
		if event.Type != model.TRIGGER_TYPE_PAGE_URL {
			return false
		}
		pattern := stringValue(trig.Conditions["pattern"])
		if pattern == "" {
			return false
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			// a broken pattern degrades to plain containment
			return strings.Contains(event.Value, pattern)
		}
		return re.MatchString(event.Value)
	case model.TRIGGER_TYPE_EVENT:
		if event.Type != model.TRIGGER_TYPE_EVENT {
			return false
		}
		return stringValue(trig.Conditions["event"]) == event.Value
	case model.TRIGGER_TYPE_FALLBACK:
		return event.Type == model.TRIGGER_TYPE_FALLBACK
	}
	return false
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}

func stringList(v any) []string {
	switch tv := v.(type) {
	case []string:
		return tv
	case []any:
		out := make([]string, 0, len(tv))
		for _, item := range tv {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
