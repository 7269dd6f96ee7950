package model

import "time"

type SessionStatus string

const SESSION_ACTIVE SessionStatus = "active"
const SESSION_COMPLETED SessionStatus = "completed"

type Contact struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

type Message struct {
	Role         string    `json:"role"`
	Content      string    `json:"content"`
	NodeId       string    `json:"nodeId,omitempty"`
	DelaySeconds int       `json:"delaySeconds,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// ExecutionContext is the persisted state of one conversation's walk
// through a flow version. At most one exists per conversation id.
type ExecutionContext struct {
	ConversationId string         `json:"conversationId"`
	WorkspaceId    string         `json:"workspaceId"`
	BotId          string         `json:"botId"`
	FlowId         string         `json:"flowId"`
	VersionId      string         `json:"versionId"`
	Contact        *Contact       `json:"contact,omitempty"`
	Variables      map[string]any `json:"variables"`
	History        []Message      `json:"history"`
	CurrentNodeId  string         `json:"currentNodeId"`
	Status         SessionStatus  `json:"status"`
	Sequence       int64          `json:"sequence"`
	StartedAt      time.Time      `json:"startedAt"`
	LastActivityAt time.Time      `json:"lastActivityAt"`
}
