package definition

import (
	"fmt"
	"strings"
	"time"

	"github.com/convobot/convo/logger"
	"github.com/convobot/convo/model"
	"github.com/convobot/convo/persistence"
	c "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// Definition is one flow bound to one resolved version, indexed for
// fast node and edge lookups during step execution.
type Definition struct {
	Flow          *model.Flow
	Version       *model.FlowVersion
	nodesById     map[string]model.Node
	edgesBySource map[string][]model.Edge
}

func newDefinition(flow *model.Flow, version *model.FlowVersion) *Definition {
	def := &Definition{
		Flow:          flow,
		Version:       version,
		nodesById:     make(map[string]model.Node, len(version.Nodes)),
		edgesBySource: make(map[string][]model.Edge),
	}
	for _, node := range version.Nodes {
		def.nodesById[node.Id] = node
	}
	for _, edge := range version.Edges {
		def.edgesBySource[edge.Source] = append(def.edgesBySource[edge.Source], edge)
	}
	return def
}

func (d *Definition) Node(id string) (model.Node, bool) {
	node, ok := d.nodesById[id]
	return node, ok
}

// FirstEdgeFrom returns the default transition out of a node, the first
// declared edge whose source is nodeId.
func (d *Definition) FirstEdgeFrom(nodeId string) (model.Edge, bool) {
	edges := d.edgesBySource[nodeId]
	if len(edges) == 0 {
		return model.Edge{}, false
	}
	return edges[0], true
}

// DefaultEdgeFrom returns the first unlabeled outgoing edge of nodeId.
// Labeled edges belong to named branches and are never a default.
func (d *Definition) DefaultEdgeFrom(nodeId string) (model.Edge, bool) {
	for _, edge := range d.edgesBySource[nodeId] {
		if edge.Label == "" {
			return edge, true
		}
	}
	return model.Edge{}, false
}

// EdgeByLabel finds an outgoing edge of nodeId with a matching label,
// compared case-insensitively.
func (d *Definition) EdgeByLabel(nodeId string, label string) (model.Edge, bool) {
	for _, edge := range d.edgesBySource[nodeId] {
		if strings.EqualFold(edge.Label, label) {
			return edge, true
		}
	}
	return model.Edge{}, false
}

// StartNode is the node of type start, or the first declared node when a
// flow was authored without an explicit start.
func (d *Definition) StartNode() (model.Node, bool) {
	for _, node := range d.Version.Nodes {
		if node.Type == model.NODE_TYPE_START {
			return node, true
		}
	}
	if len(d.Version.Nodes) > 0 {
		return d.Version.Nodes[0], true
	}
	return model.Node{}, false
}

// Loader is a read-through cache over FlowStorage. Entries never expire on
// their own; the authoring/publish path is the sole writer of definitions
// and owns invalidation through Invalidate and ClearCache.
type Loader struct {
	storage persistence.FlowStorage
	cache   *c.Cache
}

func NewLoader(storage persistence.FlowStorage) *Loader {
	return &Loader{
		storage: storage,
		cache:   c.New(c.NoExpiration, 10*time.Minute),
	}
}

// Load resolves a flow and one of its versions. Version resolution order:
// the explicit versionId argument, else the flow's current-version
// pointer, else the highest version number on record.
func (l *Loader) Load(flowId string, versionId string) (*Definition, error) {
	key := cacheKey(flowId, versionId)
	if cached, found := l.cache.Get(key); found {
		return cached.(*Definition), nil
	}
	flow, err := l.storage.GetFlow(flowId)
	if err != nil {
		return nil, err
	}
	var version *model.FlowVersion
	switch {
	case versionId != "":
		version, err = l.storage.GetVersion(flowId, versionId)
	case flow.CurrentVersionId != "":
		version, err = l.storage.GetVersion(flowId, flow.CurrentVersionId)
	default:
		version, err = l.storage.GetLatestVersion(flowId)
	}
	if err != nil {
		return nil, err
	}
	def := newDefinition(flow, version)
	l.cache.Set(key, def, c.NoExpiration)
	logger.Debug("loaded flow definition", zap.String("flowId", flowId), zap.Int("version", version.Version))
	return def, nil
}

// Invalidate drops every cached entry of one flow, whichever version key
// it was loaded under. Must be called by the publish path after any
// version change.
func (l *Loader) Invalidate(flowId string) {
	prefix := flowId + ":"
	for key := range l.cache.Items() {
		if strings.HasPrefix(key, prefix) {
			l.cache.Delete(key)
		}
	}
	logger.Info("invalidated flow definition cache", zap.String("flowId", flowId))
}

func (l *Loader) ClearCache() {
	l.cache.Flush()
	logger.Info("cleared flow definition cache")
}

func cacheKey(flowId string, versionId string) string {
	if versionId == "" {
		versionId = "current"
	}
	return fmt.Sprintf("%s:%s", flowId, versionId)
}
