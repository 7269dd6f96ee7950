package model

import "time"

type FlowStatus string

const FLOW_STATUS_DRAFT FlowStatus = "draft"
const FLOW_STATUS_ACTIVE FlowStatus = "active"

type TriggerType string

const TRIGGER_TYPE_KEYWORD TriggerType = "keyword"
const TRIGGER_TYPE_INTENT TriggerType = "intent"
const TRIGGER_TYPE_PAGE_URL TriggerType = "page_url"
const TRIGGER_TYPE_EVENT TriggerType = "event"
const TRIGGER_TYPE_FALLBACK TriggerType = "fallback"

type NodeType string

const NODE_TYPE_START NodeType = "start"
const NODE_TYPE_MESSAGE NodeType = "message"
const NODE_TYPE_QUESTION NodeType = "question"
const NODE_TYPE_CONDITION NodeType = "condition"
const NODE_TYPE_AI_ANSWER NodeType = "ai_answer"
const NODE_TYPE_ACTION NodeType = "action"
const NODE_TYPE_DELAY NodeType = "delay"
const NODE_TYPE_API_CALL NodeType = "api_call"
const NODE_TYPE_HANDOFF NodeType = "handoff"
const NODE_TYPE_END NodeType = "end"

type Trigger struct {
	Type       TriggerType    `json:"type"`
	Conditions map[string]any `json:"conditions"`
	Priority   int            `json:"priority"`
}

type Flow struct {
	Id               string     `json:"id"`
	WorkspaceId      string     `json:"workspaceId"`
	BotId            string     `json:"botId"`
	Name             string     `json:"name"`
	Triggers         []Trigger  `json:"triggers"`
	Status           FlowStatus `json:"status"`
	Published        bool       `json:"published"`
	CurrentVersionId string     `json:"currentVersionId"`
	Runs             int64      `json:"runs"`
	Successes        int64      `json:"successes"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

type VariableDef struct {
	Name    string `json:"name"`
	Default any    `json:"default"`
}

type Node struct {
	Id     string         `json:"id"`
	Type   NodeType       `json:"type"`
	Config map[string]any `json:"config"`
}

type Edge struct {
	Id     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
	Label  string `json:"label"`
}

// FlowVersion is immutable once written. An edit always creates a new
// version and repoints the owning flow's CurrentVersionId.
type FlowVersion struct {
	Id        string        `json:"id"`
	FlowId    string        `json:"flowId"`
	Version   int           `json:"version"`
	Nodes     []Node        `json:"nodes"`
	Edges     []Edge        `json:"edges"`
	Variables []VariableDef `json:"variables"`
	CreatedAt time.Time     `json:"createdAt"`
}
