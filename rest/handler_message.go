package rest

import (
	"encoding/json"
	"net/http"

	"github.com/convobot/convo/model"
)

// HandleProcessMessage is the channel adapter entry point: one inbound
// user message in, the interpreter's messages out. ProcessUserMessage
// never fails, so this handler only rejects malformed requests.
func (s *Server) HandleProcessMessage(w http.ResponseWriter, r *http.Request) {
	var req model.ProcessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	defer r.Body.Close()
	if req.WorkspaceId == "" || req.BotId == "" || req.ConversationId == "" {
		respondWithError(w, http.StatusBadRequest, "workspaceId, botId and conversationId are required")
		return
	}
	result := s.engine.ProcessUserMessage(req.WorkspaceId, req.BotId, req.ConversationId, req.Message, req.Contact)
	respondOK(w, result)
}
