package model

type TriggerEvent struct {
	Type  TriggerType `json:"type"`
	Value string      `json:"value"`
}

// NodeExecutionResult is the contract every node executor returns.
// Variables are merged into the context by the step executor, never
// written by the executor itself.
type NodeExecutionResult struct {
	Success    bool
	Messages   []Message
	Variables  map[string]any
	NextNodeId string
	// BranchLabel picks the outgoing edge carrying this label when no
	// explicit NextNodeId is returned.
	BranchLabel     string
	WaitingForInput bool
	Completed       bool
	Handoff         bool
	DelaySeconds    int
	Err             error
}

type ProcessRequest struct {
	WorkspaceId    string   `json:"workspaceId"`
	BotId          string   `json:"botId"`
	ConversationId string   `json:"conversationId"`
	Message        string   `json:"message"`
	Contact        *Contact `json:"contact,omitempty"`
}

type ProcessResult struct {
	Messages        []Message `json:"messages"`
	WaitingForInput bool      `json:"waitingForInput"`
	Completed       bool      `json:"completed"`
	Handoff         bool      `json:"handoff"`
}
