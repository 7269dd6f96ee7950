package executor

import (
	"fmt"

	"github.com/convobot/convo/ai"
	"github.com/convobot/convo/model"
)

// NodeExecutor is the capability contract of one node type. Execute must
// not mutate the context directly; every side effect travels through the
// returned result so the step executor stays the single writer.
type NodeExecutor interface {
	Type() model.NodeType
	Validate(node model.Node) error
	Execute(node model.Node, sctx *model.ExecutionContext, userInput string) (model.NodeExecutionResult, error)
}

// Registry dispatches node execution by node type. Adding a node type
// means registering one executor, the step executor never changes.
type Registry struct {
	executors map[model.NodeType]NodeExecutor
}

func NewRegistry(generator ai.TextGenerator) *Registry {
	r := &Registry{executors: make(map[model.NodeType]NodeExecutor)}
	r.Register(&startExecutor{})
	r.Register(&messageExecutor{})
	r.Register(&questionExecutor{})
	r.Register(&conditionExecutor{})
	r.Register(&aiAnswerExecutor{generator: generator})
	r.Register(&actionExecutor{})
	r.Register(&delayExecutor{})
	r.Register(newApiCallExecutor())
	r.Register(&handoffExecutor{})
	r.Register(&endExecutor{})
	return r
}

func (r *Registry) Register(e NodeExecutor) {
	r.executors[e.Type()] = e
}

func (r *Registry) Execute(node model.Node, sctx *model.ExecutionContext, userInput string) (model.NodeExecutionResult, error) {
	e, ok := r.executors[node.Type]
	if !ok {
		return model.NodeExecutionResult{}, fmt.Errorf("no executor registered for node type %s", node.Type)
	}
	return e.Execute(node, sctx, userInput)
}

// ValidateVersion runs each executor's config checks over a version,
// used by the save path alongside the structural definition checks.
func (r *Registry) ValidateVersion(version *model.FlowVersion) error {
	for _, node := range version.Nodes {
		e, ok := r.executors[node.Type]
		if !ok {
			return fmt.Errorf("nodeId=%s, no executor registered for node type %s", node.Id, node.Type)
		}
		if err := e.Validate(node); err != nil {
			return err
		}
	}
	return nil
}
