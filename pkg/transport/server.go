package transport

import (
	"encoding/base64"
	"net/http"

	"github.com/cuemby/nodeflow/pkg/log"
	"github.com/cuemby/nodeflow/pkg/secrets"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// AcceptFunc handles one accepted manager connection on the worker side.
type AcceptFunc func(ch *Channel)

// Server listens for the manager's connection on a RemoteWorker's side of
// the wire protocol, upgrading exactly one path to a websocket channel
// once the dialer has proven knowledge of the shared secret.
type Server struct {
	router   *mux.Router
	upgrader websocket.Upgrader
	accept   AcceptFunc
	secret   *secrets.Manager
}

// NewServer builds a Server that authenticates incoming upgrade requests
// against secret (the same shared secret advertised via discovery) and
// dispatches each accepted connection to accept, which should loop on
// Channel.Receive until the connection ends.
func NewServer(accept AcceptFunc, secret []byte) (*Server, error) {
	mgr, err := secrets.NewManager(secret)
	if err != nil {
		return nil, err
	}
	s := &Server{
		router: mux.NewRouter(),
		upgrader: websocket.Upgrader{
			// The shared secret authenticates the session via the
			// X-Nodeflow-Auth header, not via browser-origin checks.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		accept: accept,
		secret: mgr,
	}
	s.router.HandleFunc("/worker", s.handle)
	return s, nil
}

// Handler returns the http.Handler to serve, e.g. via http.ListenAndServe.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponent("transport")

	if !s.authenticate(r) {
		logger.Error().Str("remote", r.RemoteAddr).Msg("rejected unauthenticated worker connection")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	s.accept(NewChannel(conn))
}

// authenticate decrypts the dialer's X-Nodeflow-Auth header with the
// server's own shared secret and checks it matches the fixed challenge
// plaintext, proving the dialer holds the same secret before a single
// protocol message is exchanged (spec §6).
func (s *Server) authenticate(r *http.Request) bool {
	raw := r.Header.Get(authHeader)
	if raw == "" {
		return false
	}
	token, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return false
	}
	plaintext, err := s.secret.Decrypt(token)
	if err != nil {
		return false
	}
	return string(plaintext) == authChallenge
}
