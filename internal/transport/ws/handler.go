package ws

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/pjtunstall/by-a-thread/internal/telemetry"
)

// HandlerConfig configures the websocket upgrade endpoint.
type HandlerConfig struct {
	Logger telemetry.Logger
}

// Handler upgrades incoming HTTP requests to websocket connections and
// hands each resulting Conn to OnAccept. It does not itself interpret any
// frame; admission, session, and gameplay logic all live above it and
// consume frames only via Conn.Drain at the core loop's poll points, per
// the transport's opaque-threading requirement.
type Handler struct {
	logger   telemetry.Logger
	upgrader websocket.Upgrader

	// OnAccept is invoked once per successfully upgraded connection, on
	// the goroutine that serviced the HTTP request, with the original
	// upgrade request so callers can inspect query parameters (e.g. a
	// connect token) before admitting the connection. Implementations
	// typically register conn with a connection table and return quickly;
	// NewConn has already started the read/write pumps by the time
	// OnAccept runs.
	OnAccept func(remoteAddr string, r *http.Request, conn *Conn)
}

// NewHandler constructs a Handler. The upgrader accepts any origin, since
// this is a game server, not a browser-hosted API with CSRF exposure.
func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.LoggerFunc(func(format string, args ...any) {
			log.Printf(format, args...)
		})
	}
	return &Handler{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP implements http.Handler so this type can be registered
// directly with an http.ServeMux.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("websocket upgrade failed for %s: %v", r.RemoteAddr, err)
		return
	}

	wrapped := NewConn(conn, func(reason string) {
		h.logger.Printf("connection from %s closed: %s", conn.RemoteAddr(), reason)
	})

	if h.OnAccept != nil {
		h.OnAccept(conn.RemoteAddr().String(), r, wrapped)
	}
}
