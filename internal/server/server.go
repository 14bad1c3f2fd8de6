// Package server exposes the application over HTTP: JSON handlers on a
// gorilla/mux router with CORS, mapping service errors onto status codes
// through apperr.
package server

import (
	"encoding/json"
	"net/http"

	"github.com/amorhq/amor-core/internal/app"
	"github.com/amorhq/amor-core/internal/service/chat"
	"github.com/amorhq/amor-core/internal/service/discover"
	"github.com/amorhq/amor-core/internal/service/economy"
	"github.com/amorhq/amor-core/internal/service/match"
	"github.com/amorhq/amor-core/internal/service/notify"
	"github.com/amorhq/amor-core/internal/service/presence"
	"github.com/amorhq/amor-core/internal/service/profile"
	"github.com/amorhq/amor-core/internal/service/room"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

// Server bundles the services behind the HTTP surface.
type Server struct {
	appCtx   *app.AppContext
	profiles *profile.Service
	discover *discover.Service
	matches  *match.Service
	chats    *chat.Service
	notify   *notify.Service
	economy  *economy.Service
	rooms    *room.Service
	presence *presence.Tracker
}

// New creates the server with every service it routes to.
func New(
	appCtx *app.AppContext,
	profiles *profile.Service,
	disc *discover.Service,
	matches *match.Service,
	chats *chat.Service,
	notifier *notify.Service,
	econ *economy.Service,
	rooms *room.Service,
	tracker *presence.Tracker,
) *Server {
	return &Server{
		appCtx:   appCtx,
		profiles: profiles,
		discover: disc,
		matches:  matches,
		chats:    chats,
		notify:   notifier,
		economy:  econ,
		rooms:    rooms,
		presence: tracker,
	}
}

// Handler builds the routed handler with CORS applied.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	}).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/onboarding", s.handleOnboarding).Methods("POST")
	api.HandleFunc("/profiles/me", s.handleGetProfile).Methods("GET")
	api.HandleFunc("/profiles/me/interests", s.handleUpdateInterests).Methods("PUT")
	api.HandleFunc("/profiles/me", s.handleDeleteAccount).Methods("DELETE")

	api.HandleFunc("/discover", s.handleDiscover).Methods("GET")
	api.HandleFunc("/swipes", s.handleSwipe).Methods("POST")

	api.HandleFunc("/matches", s.handleListMatches).Methods("GET")
	api.HandleFunc("/matches/{id}", s.handleUnmatch).Methods("DELETE")
	api.HandleFunc("/matches/{id}/messages", s.handleHistory).Methods("GET")
	api.HandleFunc("/matches/{id}/messages", s.handleSendMessage).Methods("POST")
	api.HandleFunc("/matches/{id}/read", s.handleMarkRead).Methods("POST")

	api.HandleFunc("/notifications", s.handleNotifications).Methods("GET")
	api.HandleFunc("/notifications/read", s.handleNotificationsRead).Methods("POST")

	api.HandleFunc("/chests/open", s.handleOpenChest).Methods("POST")
	api.HandleFunc("/chests/free", s.handleOpenFreeChest).Methods("POST")
	api.HandleFunc("/characters", s.handleCollection).Methods("GET")
	api.HandleFunc("/characters/{id}/equip", s.handleEquip).Methods("POST")

	api.HandleFunc("/rooms", s.handleListRooms).Methods("GET")
	api.HandleFunc("/rooms", s.handleCreateRoom).Methods("POST")
	api.HandleFunc("/rooms/{id}/join", s.handleJoinRoom).Methods("POST")
	api.HandleFunc("/rooms/{id}/leave", s.handleLeaveRoom).Methods("POST")
	api.HandleFunc("/rooms/{id}/messages", s.handleRoomMessages).Methods("GET")
	api.HandleFunc("/rooms/{id}/messages", s.handleSendRoomMessage).Methods("POST")

	api.HandleFunc("/presence/online", s.handleOnline).Methods("GET")

	return cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-User-ID"},
		AllowCredentials: true,
	}).Handler(r)
}
