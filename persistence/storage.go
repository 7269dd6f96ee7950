package persistence

import (
	"fmt"

	"github.com/convobot/convo/model"
)

// FlowStorage owns the persisted flow and flow-version records. Flows are
// mutated by the authoring path; the interpreter only reads them and bumps
// run counters.
type FlowStorage interface {
	SaveFlow(flow model.Flow) error
	GetFlow(flowId string) (*model.Flow, error)
	ListFlowsByBot(workspaceId string, botId string) ([]model.Flow, error)
	SaveVersion(version model.FlowVersion) error
	GetVersion(flowId string, versionId string) (*model.FlowVersion, error)
	GetLatestVersion(flowId string) (*model.FlowVersion, error)
	RecordRun(flowId string, success bool) error
}

// SessionStorage persists one ExecutionContext per conversation id.
// Load returns (nil, nil) when no session exists or the stored payload is
// malformed; malformed payloads are logged and treated as absent. Save is
// a conditional upsert on the context's sequence number and resets the
// rolling expiry on every call. Clear tombstones the session as completed
// before deleting it.
type SessionStorage interface {
	Load(conversationId string) (*model.ExecutionContext, error)
	Save(sctx *model.ExecutionContext) error
	Clear(conversationId string) error
}

type StorageLayerError struct{}

func (e StorageLayerError) Error() string {
	return "error in underline storage layer"
}

type NotFoundError struct {
	Kind string
	Id   string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.Id)
}

// SessionConflictError is returned by SessionStorage.Save when the stored
// sequence no longer matches the caller's copy, i.e. another turn won the
// write race. The stale writer is rejected rather than overwriting.
type SessionConflictError struct {
	ConversationId string
}

func (e SessionConflictError) Error() string {
	return fmt.Sprintf("session %s was modified concurrently", e.ConversationId)
}
