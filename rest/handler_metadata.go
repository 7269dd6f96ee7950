package rest

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/convobot/convo/definition"
	"github.com/convobot/convo/logger"
	"github.com/convobot/convo/model"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type saveFlowRequest struct {
	Flow    model.Flow        `json:"flow"`
	Version model.FlowVersion `json:"version"`
}

// HandleSaveFlow is the authoring path: it stores the flow record, writes
// a new immutable version, repoints the current-version pointer and
// invalidates the definition cache. Versions are never edited in place.
func (s *Server) HandleSaveFlow(w http.ResponseWriter, r *http.Request) {
	var req saveFlowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	defer r.Body.Close()

	flow := req.Flow
	version := req.Version
	now := time.Now()
	if flow.Id == "" {
		flow.Id = uuid.New().String()
		flow.CreatedAt = now
	}
	if flow.Status == "" {
		flow.Status = model.FLOW_STATUS_DRAFT
	}
	version.Id = uuid.New().String()
	version.FlowId = flow.Id
	version.CreatedAt = now
	if latest, err := s.flows.GetLatestVersion(flow.Id); err == nil {
		version.Version = latest.Version + 1
	} else {
		version.Version = 1
	}

	if err := definition.Validate(&flow, &version); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.registry.ValidateVersion(&version); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	flow.CurrentVersionId = version.Id
	flow.UpdatedAt = now
	if err := s.flows.SaveVersion(version); err != nil {
		logger.Error("error saving flow version", zap.String("flowId", flow.Id), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "error saving flow")
		return
	}
	if err := s.flows.SaveFlow(flow); err != nil {
		logger.Error("error saving flow", zap.String("flowId", flow.Id), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "error saving flow")
		return
	}
	s.loader.Invalidate(flow.Id)
	respondOK(w, map[string]any{"flowId": flow.Id, "versionId": version.Id, "version": version.Version})
}

func (s *Server) HandleGetFlow(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	flowId, ok := vars["id"]
	if !ok {
		respondWithError(w, http.StatusBadRequest, "flow id is required")
		return
	}
	flow, err := s.flows.GetFlow(flowId)
	if err != nil {
		respondWithError(w, http.StatusNotFound, "flow not found")
		return
	}
	respondOK(w, flow)
}

func (s *Server) HandlePublishFlow(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	flowId, ok := vars["id"]
	if !ok {
		respondWithError(w, http.StatusBadRequest, "flow id is required")
		return
	}
	flow, err := s.flows.GetFlow(flowId)
	if err != nil {
		respondWithError(w, http.StatusNotFound, "flow not found")
		return
	}
	flow.Published = true
	flow.Status = model.FLOW_STATUS_ACTIVE
	flow.UpdatedAt = time.Now()
	if err := s.flows.SaveFlow(*flow); err != nil {
		logger.Error("error publishing flow", zap.String("flowId", flowId), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "error publishing flow")
		return
	}
	s.loader.Invalidate(flowId)
	respondOKWithoutBody(w)
}

func (s *Server) HandleInvalidateFlow(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	flowId, ok := vars["id"]
	if !ok {
		respondWithError(w, http.StatusBadRequest, "flow id is required")
		return
	}
	s.loader.Invalidate(flowId)
	respondOKWithoutBody(w)
}

func (s *Server) HandleClearCache(w http.ResponseWriter, r *http.Request) {
	s.loader.ClearCache()
	respondOKWithoutBody(w)
}
