package inmem

import (
	"sync"
	"time"

	"github.com/convobot/convo/model"
	"github.com/convobot/convo/persistence"
)

const sessionTTL = 24 * time.Hour

// Storage is an in-memory implementation of both storage interfaces. It
// backs the "memory" storage-impl and the test suite. Sessions are copied
// on save and load so callers never share the stored maps.
type Storage struct {
	mu       sync.RWMutex
	flows    map[string]model.Flow
	versions map[string]map[string]model.FlowVersion
	sessions map[string]sessionEntry
}

type sessionEntry struct {
	sctx      model.ExecutionContext
	expiresAt time.Time
}

var _ persistence.FlowStorage = new(Storage)
var _ persistence.SessionStorage = new(Storage)

func NewStorage() *Storage {
	return &Storage{
		flows:    make(map[string]model.Flow),
		versions: make(map[string]map[string]model.FlowVersion),
		sessions: make(map[string]sessionEntry),
	}
}

func (s *Storage) SaveFlow(flow model.Flow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.flows[flow.Id]
	if ok {
		// run counters are owned by RecordRun, keep them on overwrite
		flow.Runs = existing.Runs
		flow.Successes = existing.Successes
	}
	s.flows[flow.Id] = flow
	return nil
}

func (s *Storage) GetFlow(flowId string) (*model.Flow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	flow, ok := s.flows[flowId]
	if !ok {
		return nil, persistence.NotFoundError{Kind: "flow", Id: flowId}
	}
	return &flow, nil
}

func (s *Storage) ListFlowsByBot(workspaceId string, botId string) ([]model.Flow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var flows []model.Flow
	for _, flow := range s.flows {
		if flow.WorkspaceId == workspaceId && flow.BotId == botId {
			flows = append(flows, flow)
		}
	}
	return flows, nil
}

func (s *Storage) SaveVersion(version model.FlowVersion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byId, ok := s.versions[version.FlowId]
	if !ok {
		byId = make(map[string]model.FlowVersion)
		s.versions[version.FlowId] = byId
	}
	byId[version.Id] = version
	return nil
}

func (s *Storage) GetVersion(flowId string, versionId string) (*model.FlowVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	version, ok := s.versions[flowId][versionId]
	if !ok {
		return nil, persistence.NotFoundError{Kind: "version", Id: versionId}
	}
	return &version, nil
}

func (s *Storage) GetLatestVersion(flowId string) (*model.FlowVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *model.FlowVersion
	for _, version := range s.versions[flowId] {
		version := version
		if latest == nil || version.Version > latest.Version {
			latest = &version
		}
	}
	if latest == nil {
		return nil, persistence.NotFoundError{Kind: "version", Id: flowId}
	}
	return latest, nil
}

func (s *Storage) RecordRun(flowId string, success bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	flow, ok := s.flows[flowId]
	if !ok {
		return persistence.NotFoundError{Kind: "flow", Id: flowId}
	}
	flow.Runs++
	if success {
		flow.Successes++
	}
	s.flows[flowId] = flow
	return nil
}

func (s *Storage) Load(conversationId string) (*model.ExecutionContext, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.sessions[conversationId]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, nil
	}
	sctx := copyContext(entry.sctx)
	return &sctx, nil
}

func (s *Storage) Save(sctx *model.ExecutionContext) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.sessions[sctx.ConversationId]
	if ok && entry.sctx.Sequence != sctx.Sequence {
		return persistence.SessionConflictError{ConversationId: sctx.ConversationId}
	}
	sctx.Sequence++
	s.sessions[sctx.ConversationId] = sessionEntry{
		sctx:      copyContext(*sctx),
		expiresAt: time.Now().Add(sessionTTL),
	}
	return nil
}

func (s *Storage) Clear(conversationId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.sessions[conversationId]
	if ok {
		entry.sctx.Status = model.SESSION_COMPLETED
		s.sessions[conversationId] = entry
	}
	delete(s.sessions, conversationId)
	return nil
}

// copyContext mirrors a JSON round trip: maps and slices are detached,
// a nil variables map stays nil.
func copyContext(sctx model.ExecutionContext) model.ExecutionContext {
	out := sctx
	if sctx.Variables != nil {
		out.Variables = make(map[string]any, len(sctx.Variables))
		for k, v := range sctx.Variables {
			out.Variables[k] = v
		}
	}
	out.History = append([]model.Message(nil), sctx.History...)
	return out
}
