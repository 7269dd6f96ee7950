package definition

import (
	"fmt"

	"github.com/convobot/convo/model"
)

var validNodeTypes = map[model.NodeType]bool{
	model.NODE_TYPE_START:     true,
	model.NODE_TYPE_MESSAGE:   true,
	model.NODE_TYPE_QUESTION:  true,
	model.NODE_TYPE_CONDITION: true,
	model.NODE_TYPE_AI_ANSWER: true,
	model.NODE_TYPE_ACTION:    true,
	model.NODE_TYPE_DELAY:     true,
	model.NODE_TYPE_API_CALL:  true,
	model.NODE_TYPE_HANDOFF:   true,
	model.NODE_TYPE_END:       true,
}

var validTriggerTypes = map[model.TriggerType]bool{
	model.TRIGGER_TYPE_KEYWORD:  true,
	model.TRIGGER_TYPE_INTENT:   true,
	model.TRIGGER_TYPE_PAGE_URL: true,
	model.TRIGGER_TYPE_EVENT:    true,
	model.TRIGGER_TYPE_FALLBACK: true,
}

// Validate performs the structural checks the save path runs before a
// flow version is accepted: a start node, unique node ids, known node and
// trigger types, and edges whose endpoints are defined nodes. Dead ends
// are allowed, the interpreter treats them as implicit completion.
func Validate(flow *model.Flow, version *model.FlowVersion) error {
	for _, trigger := range flow.Triggers {
		if !validTriggerTypes[trigger.Type] {
			return fmt.Errorf("invalid trigger type %s", trigger.Type)
		}
	}
	if len(version.Nodes) == 0 {
		return fmt.Errorf("flow version has no nodes")
	}
	nodeIds := make(map[string]bool, len(version.Nodes))
	hasStart := false
	for _, node := range version.Nodes {
		if node.Id == "" {
			return fmt.Errorf("node without id")
		}
		if nodeIds[node.Id] {
			return fmt.Errorf("node id %s is duplicate", node.Id)
		}
		nodeIds[node.Id] = true
		if !validNodeTypes[node.Type] {
			return fmt.Errorf("nodeId=%s, invalid node type %s", node.Id, node.Type)
		}
		if node.Type == model.NODE_TYPE_START {
			hasStart = true
		}
	}
	if !hasStart {
		return fmt.Errorf("flow version has no start node")
	}
	for _, edge := range version.Edges {
		if !nodeIds[edge.Source] {
			return fmt.Errorf("edge %s references undefined source node %s", edge.Id, edge.Source)
		}
		if !nodeIds[edge.Target] {
			return fmt.Errorf("edge %s references undefined target node %s", edge.Id, edge.Target)
		}
	}
	return nil
}
