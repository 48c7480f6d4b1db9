package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"sendlater/internal/constants"
	"sendlater/internal/models"
	"sendlater/pkg/onebot/types"
)

// Server exposes the health endpoint and, in webhook event mode, the
// OneBot HTTP post endpoint.
type Server struct {
	router     *mux.Router
	logger     *logrus.Logger
	cfg        models.ServerConfig
	dispatcher *Dispatcher
	server     *http.Server

	baseCtx context.Context
}

func NewServer(ctx context.Context, cfg models.ServerConfig, dispatcher *Dispatcher, logger *logrus.Logger) *Server {
	s := &Server{
		router:     mux.NewRouter(),
		logger:     logger,
		cfg:        cfg,
		dispatcher: dispatcher,
		baseCtx:    ctx,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)
	s.router.HandleFunc("/webhook/onebot", s.handleOneBotEvent()).Methods(http.MethodPost)
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.router,
		ReadTimeout:  constants.DefaultServerReadTimeoutSec * time.Second,
		WriteTimeout: constants.DefaultServerWriteTimeoutSec * time.Second,
		IdleTimeout:  constants.DefaultServerIdleTimeoutSec * time.Second,
	}

	s.logger.Infof("Starting server on port %d", s.cfg.Port)
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}
}

// handleOneBotEvent acknowledges the push immediately and dispatches
// the event in the background; the reply goes out through the API
// client, not the webhook response.
func (s *Server) handleOneBotEvent() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var event types.Event
		if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
			s.logger.WithError(err).Warn("Ignoring undecodable webhook event")
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		go func() {
			ctx, cancel := context.WithTimeout(s.baseCtx, time.Duration(constants.DefaultOneBotTimeoutSec)*time.Second)
			defer cancel()
			s.dispatcher.HandleEvent(ctx, &event)
		}()

		w.WriteHeader(http.StatusOK)
	}
}
