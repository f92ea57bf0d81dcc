package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mtzanidakis/kinema/internal/config"
	"github.com/mtzanidakis/kinema/internal/controller"
	"github.com/mtzanidakis/kinema/internal/knowledge"
	"github.com/mtzanidakis/kinema/internal/natsbus"
	"github.com/mtzanidakis/kinema/internal/registry"
	"github.com/mtzanidakis/kinema/internal/store"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// presenceTimeout marks a controller idle when it has been silent this long.
const presenceTimeout = 30 * time.Second

// Subscriber is the slice of the bus client the monitor listens on.
type Subscriber interface {
	Subscribe(topic string, handler func(msg *nats.Msg)) (*nats.Subscription, error)
}

type Server struct {
	kb        knowledge.Variables
	registry  *registry.Registry
	store     *store.Store
	hub       *Hub
	presence  *Presence
	cfg       config.WebConfig
	version   string
	startedAt time.Time
}

func NewServer(kb knowledge.Variables, reg *registry.Registry, s *store.Store, cfg config.WebConfig, version string) *Server {
	return &Server{
		kb:        kb,
		registry:  reg,
		store:     s,
		hub:       NewHub(),
		presence:  NewPresence(),
		cfg:       cfg,
		version:   version,
		startedAt: time.Now(),
	}
}

func (s *Server) Presence() *Presence { return s.presence }

// Subscribe forwards agent events from the bus to the presence tracker and
// every websocket client.
func (s *Server) Subscribe(sub Subscriber) error {
	_, err := sub.Subscribe(natsbus.TopicEventsAgents, func(msg *nats.Msg) {
		var event controller.Event
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			slog.Warn("invalid agent event payload", "subject", msg.Subject, "error", err)
			return
		}
		s.Observe(event)
	})
	if err != nil {
		return fmt.Errorf("subscribe agent events: %w", err)
	}
	return nil
}

func (s *Server) Observe(event controller.Event) {
	s.presence.Observe(event)
	s.hub.Broadcast(Message{Type: event.Type, Payload: event})
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerAPI(mux)
	mux.HandleFunc("/api/ws", s.handleWebSocket)
	return s.withMiddleware(mux)
}

func (s *Server) Start(ctx context.Context) error {
	go s.hub.Run(ctx)

	addr := fmt.Sprintf(":%d", s.cfg.Port)
	server := &http.Server{Addr: addr, Handler: otelhttp.NewHandler(s.Handler(), "kinema.web")}

	go func() {
		<-ctx.Done()
		server.Close()
	}()

	slog.Info("web server listening", "addr", addr)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		if strings.HasPrefix(r.URL.Path, "/api/") && s.cfg.Auth != "" && !s.checkAuth(r) {
			w.Header().Set("WWW-Authenticate", `Basic realm="kinema"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) checkAuth(r *http.Request) bool {
	_, pass, ok := r.BasicAuth()
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(pass), []byte(s.cfg.Auth)) == 1
}
