package rest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/convobot/convo/definition"
	"github.com/convobot/convo/engine"
	"github.com/convobot/convo/executor"
	"github.com/convobot/convo/model"
	"github.com/convobot/convo/persistence/inmem"
	"github.com/convobot/convo/trigger"
	"github.com/stretchr/testify/require"
)

type restFixture struct {
	server  *Server
	storage *inmem.Storage
	loader  *definition.Loader
}

func newRestFixture(t *testing.T) *restFixture {
	t.Helper()
	storage := inmem.NewStorage()
	registry := executor.NewRegistry(nil)
	loader := definition.NewLoader(storage)
	eng := engine.New(loader, trigger.NewResolver(storage), storage, storage,
		engine.NewStepExecutor(registry), nil)
	server, err := NewServer(0, eng, loader, registry, storage)
	require.NoError(t, err)
	return &restFixture{server: server, storage: storage, loader: loader}
}

func (f *restFixture) do(t *testing.T, method string, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}
	rec := httptest.NewRecorder()
	f.server.Handler.ServeHTTP(rec, httptest.NewRequest(method, path, reader))
	return rec
}

func (f *restFixture) saveFlow(t *testing.T, req saveFlowRequest) (flowId string, versionId string) {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/metadata/flow", req)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	flowId, _ = resp["flowId"].(string)
	versionId, _ = resp["versionId"].(string)
	require.NotEmpty(t, flowId)
	require.NotEmpty(t, versionId)
	return flowId, versionId
}

func greeterVersion(text string) model.FlowVersion {
	return model.FlowVersion{
		Nodes: []model.Node{
			{Id: "start", Type: model.NODE_TYPE_START},
			{Id: "m1", Type: model.NODE_TYPE_MESSAGE, Config: map[string]any{"text": text}},
		},
		Edges: []model.Edge{{Id: "e1", Source: "start", Target: "m1"}},
	}
}

func greeterFlow() model.Flow {
	return model.Flow{
		WorkspaceId: "ws1", BotId: "bot1", Name: "greeter",
		Triggers: []model.Trigger{{
			Type:       model.TRIGGER_TYPE_KEYWORD,
			Conditions: map[string]any{"keywords": []any{"hi"}},
			Priority:   5,
		}},
	}
}

func TestSaveFlowCreatesVersionAndRepoints(t *testing.T) {
	f := newRestFixture(t)

	flowId, v1 := f.saveFlow(t, saveFlowRequest{Flow: greeterFlow(), Version: greeterVersion("hello")})

	flow, err := f.storage.GetFlow(flowId)
	require.NoError(t, err)
	require.Equal(t, v1, flow.CurrentVersionId)
	require.Equal(t, model.FLOW_STATUS_DRAFT, flow.Status)

	// saving again never edits v1 in place, it appends a new version and
	// repoints the current pointer
	editedFlow := greeterFlow()
	editedFlow.Id = flowId
	_, v2 := f.saveFlow(t, saveFlowRequest{Flow: editedFlow, Version: greeterVersion("hello again")})
	require.NotEqual(t, v1, v2)

	flow, err = f.storage.GetFlow(flowId)
	require.NoError(t, err)
	require.Equal(t, v2, flow.CurrentVersionId)

	first, err := f.storage.GetVersion(flowId, v1)
	require.NoError(t, err)
	require.Equal(t, 1, first.Version)
	second, err := f.storage.GetVersion(flowId, v2)
	require.NoError(t, err)
	require.Equal(t, 2, second.Version)
}

func TestSaveFlowInvalidatesDefinitionCache(t *testing.T) {
	f := newRestFixture(t)

	flowId, _ := f.saveFlow(t, saveFlowRequest{Flow: greeterFlow(), Version: greeterVersion("hello")})

	def, err := f.loader.Load(flowId, "")
	require.NoError(t, err)
	require.Equal(t, 1, def.Version.Version)

	editedFlow := greeterFlow()
	editedFlow.Id = flowId
	f.saveFlow(t, saveFlowRequest{Flow: editedFlow, Version: greeterVersion("hello again")})

	// the warm cache entry must be gone, the interpreter sees v2
	def, err = f.loader.Load(flowId, "")
	require.NoError(t, err)
	require.Equal(t, 2, def.Version.Version)
}

func TestSaveFlowRejectsInvalidVersion(t *testing.T) {
	f := newRestFixture(t)
	for scenario, version := range map[string]model.FlowVersion{
		"no start node": {
			Nodes: []model.Node{{Id: "m1", Type: model.NODE_TYPE_MESSAGE, Config: map[string]any{"text": "hi"}}},
		},
		"edge to undefined node": {
			Nodes: []model.Node{{Id: "start", Type: model.NODE_TYPE_START}},
			Edges: []model.Edge{{Id: "e1", Source: "start", Target: "ghost"}},
		},
		"question without prompt": {
			Nodes: []model.Node{
				{Id: "start", Type: model.NODE_TYPE_START},
				{Id: "q1", Type: model.NODE_TYPE_QUESTION},
			},
		},
	} {
		t.Run(scenario, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/metadata/flow", saveFlowRequest{Flow: greeterFlow(), Version: version})
			require.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestPublishFlowInvalidatesCache(t *testing.T) {
	f := newRestFixture(t)

	flowId, _ := f.saveFlow(t, saveFlowRequest{Flow: greeterFlow(), Version: greeterVersion("hello")})

	def, err := f.loader.Load(flowId, "")
	require.NoError(t, err)
	require.False(t, def.Flow.Published)

	rec := f.do(t, http.MethodPost, fmt.Sprintf("/metadata/flow/%s/publish", flowId), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	flow, err := f.storage.GetFlow(flowId)
	require.NoError(t, err)
	require.True(t, flow.Published)
	require.Equal(t, model.FLOW_STATUS_ACTIVE, flow.Status)

	def, err = f.loader.Load(flowId, "")
	require.NoError(t, err)
	require.True(t, def.Flow.Published)
}

func TestCacheInvalidationEndpoints(t *testing.T) {
	for scenario, fn := range map[string]func(t *testing.T, f *restFixture, flowId string){
		"invalidate one flow": func(t *testing.T, f *restFixture, flowId string) {
			rec := f.do(t, http.MethodDelete, fmt.Sprintf("/cache/flow/%s", flowId), nil)
			require.Equal(t, http.StatusOK, rec.Code)
		},
		"clear everything": func(t *testing.T, f *restFixture, flowId string) {
			rec := f.do(t, http.MethodDelete, "/cache", nil)
			require.Equal(t, http.StatusOK, rec.Code)
		},
	} {
		t.Run(scenario, func(t *testing.T) {
			f := newRestFixture(t)
			flowId, _ := f.saveFlow(t, saveFlowRequest{Flow: greeterFlow(), Version: greeterVersion("hello")})
			def, err := f.loader.Load(flowId, "")
			require.NoError(t, err)
			require.Equal(t, "hello", def.Version.Nodes[1].Config["text"])

			// repoint behind the cache, only the endpoint makes it visible
			version2 := greeterVersion("changed")
			version2.Id = "v2"
			version2.FlowId = flowId
			version2.Version = 2
			require.NoError(t, f.storage.SaveVersion(version2))
			flow, err := f.storage.GetFlow(flowId)
			require.NoError(t, err)
			flow.CurrentVersionId = "v2"
			require.NoError(t, f.storage.SaveFlow(*flow))

			def, err = f.loader.Load(flowId, "")
			require.NoError(t, err)
			require.Equal(t, "hello", def.Version.Nodes[1].Config["text"])

			fn(t, f, flowId)

			def, err = f.loader.Load(flowId, "")
			require.NoError(t, err)
			require.Equal(t, "changed", def.Version.Nodes[1].Config["text"])
		})
	}
}

func TestProcessMessageEndpoint(t *testing.T) {
	f := newRestFixture(t)
	flowId, _ := f.saveFlow(t, saveFlowRequest{Flow: greeterFlow(), Version: greeterVersion("hello there")})
	rec := f.do(t, http.MethodPost, fmt.Sprintf("/metadata/flow/%s/publish", flowId), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/message", model.ProcessRequest{
		WorkspaceId: "ws1", BotId: "bot1", ConversationId: "conv1", Message: "hi",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var result model.ProcessResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.True(t, result.Completed)
	require.Len(t, result.Messages, 1)
	require.Equal(t, "hello there", result.Messages[0].Content)

	rec = f.do(t, http.MethodPost, "/message", model.ProcessRequest{WorkspaceId: "ws1"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
