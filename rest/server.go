package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/convobot/convo/definition"
	"github.com/convobot/convo/engine"
	"github.com/convobot/convo/executor"
	"github.com/convobot/convo/logger"
	"github.com/convobot/convo/persistence"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type Server struct {
	http.Server
	Port     int
	engine   *engine.Engine
	loader   *definition.Loader
	registry *executor.Registry
	flows    persistence.FlowStorage
}

func NewServer(httpPort int, eng *engine.Engine, loader *definition.Loader,
	registry *executor.Registry, flows persistence.FlowStorage) (*Server, error) {
	s := &Server{
		Server: http.Server{
			Addr:        fmt.Sprintf(":%d", httpPort),
			IdleTimeout: 2 * time.Second,
		},
		Port:     httpPort,
		engine:   eng,
		loader:   loader,
		registry: registry,
		flows:    flows,
	}

	router := mux.NewRouter()
	router.HandleFunc("/message", s.HandleProcessMessage).Methods(http.MethodPost)

	router.HandleFunc("/metadata/flow", s.HandleSaveFlow).Methods(http.MethodPost)
	router.HandleFunc("/metadata/flow/{id}", s.HandleGetFlow).Methods(http.MethodGet)
	router.HandleFunc("/metadata/flow/{id}/publish", s.HandlePublishFlow).Methods(http.MethodPost)

	router.HandleFunc("/cache/flow/{id}", s.HandleInvalidateFlow).Methods(http.MethodDelete)
	router.HandleFunc("/cache", s.HandleClearCache).Methods(http.MethodDelete)

	router.Use(loggingMiddleware)
	s.Handler = router
	return s, nil
}

func (s *Server) Start() error {
	logger.Info("starting http server on", zap.Int("port", s.Port))
	if err := s.ListenAndServe(); err != nil {
		return err
	}
	return nil
}

func (s *Server) Stop() error {
	logger.Info("stopping http server")
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		logger.Error("error shutting down http server")
	}
	return nil
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Info(r.RequestURI)
		next.ServeHTTP(w, r)
	})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondOK(w http.ResponseWriter, message any) {
	respondWithJSON(w, http.StatusOK, message)
}

func respondOKWithoutBody(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}
