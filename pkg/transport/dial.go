package transport

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/cuemby/nodeflow/pkg/secrets"
	"github.com/gorilla/websocket"
)

// DialTimeout bounds how long the manager waits to establish a connection
// to a discovered worker before giving up and blacklisting it.
const DialTimeout = 10 * time.Second

// authChallenge is the fixed plaintext a dialer encrypts with the shared
// secret; the accepting Server decrypts it with its own derived key and
// rejects the upgrade if it doesn't match, authenticating the channel
// before a single HANDSHAKE message is exchanged (spec §6: "authenticated
// with a shared secret established out-of-band").
const authChallenge = "nodeflow-worker-auth"
const authHeader = "X-Nodeflow-Auth"

// Dial opens a Channel to a worker's listen address, as the manager does
// when claiming an auto-discovered worker (spec §6). secret is the
// discovery advertisement's shared secret, used to authenticate the
// upgrade request.
func Dial(host string, port int, secret []byte) (*Channel, error) {
	u := url.URL{Scheme: "ws", Host: fmt.Sprintf("%s:%d", host, port), Path: "/worker"}

	mgr, err := secrets.NewManager(secret)
	if err != nil {
		return nil, fmt.Errorf("transport: %w", err)
	}
	token, err := mgr.Encrypt([]byte(authChallenge))
	if err != nil {
		return nil, fmt.Errorf("transport: encrypt auth challenge: %w", err)
	}

	header := http.Header{}
	header.Set(authHeader, base64.StdEncoding.EncodeToString(token))

	dialer := websocket.Dialer{HandshakeTimeout: DialTimeout}
	conn, _, err := dialer.Dial(u.String(), header)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", u.String(), err)
	}
	return NewChannel(conn), nil
}
