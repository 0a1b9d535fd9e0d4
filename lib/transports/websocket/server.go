// Package websocket serves the relay over a fiber websocket endpoint.
package websocket

import (
	"bytes"
	"context"
	"fmt"
	"net"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/nbd-wtf/go-nostr"

	lib_nostr "github.com/HORNET-Storage/hornet-gatekeeper/lib/handlers/nostr"
	"github.com/HORNET-Storage/hornet-gatekeeper/lib/logging"
	"github.com/HORNET-Storage/hornet-gatekeeper/lib/metrics"
	"github.com/HORNET-Storage/hornet-gatekeeper/lib/policy"
	"github.com/HORNET-Storage/hornet-gatekeeper/lib/relay"
	"github.com/HORNET-Storage/hornet-gatekeeper/lib/types"
	"github.com/HORNET-Storage/hornet-gatekeeper/lib/validation"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Server struct {
	app      *fiber.App
	engine   *relay.Engine
	info     NIP11RelayInfo
	metrics  *metrics.Metrics
	log      *logging.Logger
	sessions *sessionRegistry
}

type Options struct {
	Engine  *relay.Engine
	Info    NIP11RelayInfo
	Metrics *metrics.Metrics
	// ExposeMetrics mounts the prometheus handler at /metrics.
	ExposeMetrics bool
	Logger        *logging.Logger
}

// BuildServer wires the relay info document, the optional metrics endpoint
// and the websocket endpoint into a fiber app.
func BuildServer(opts Options) *Server {
	s := &Server{
		app: fiber.New(fiber.Config{
			DisableStartupMessage: true,
			JSONEncoder:           json.Marshal,
			JSONDecoder:           json.Unmarshal,
		}),
		engine:   opts.Engine,
		info:     opts.Info,
		metrics:  opts.Metrics,
		log:      opts.Logger,
		sessions: newSessionRegistry(),
	}
	if s.log == nil {
		s.log = logging.GetLogger()
	}

	s.app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept",
		AllowMethods: "GET, OPTIONS",
	}))

	// Middleware for handling relay information requests
	s.app.Use(s.handleRelayInfoRequests)

	if opts.ExposeMetrics && s.metrics != nil {
		s.app.Get("/metrics", adaptor.HTTPHandler(s.metrics.Handler()))
	}

	s.app.Get("/", websocket.New(s.handleConnection))

	return s
}

func (s *Server) App() *fiber.App {
	return s.app
}

// Listen blocks serving on addr until Shutdown.
func (s *Server) Listen(addr string) error {
	s.log.Infof("Relay listening on %s", addr)
	return s.app.Listen(addr)
}

// Serve is Listen on an existing listener.
func (s *Server) Serve(ln net.Listener) error {
	s.log.Infof("Relay listening on %s", ln.Addr())
	return s.app.Listener(ln)
}

// Shutdown ends every open session, then stops the http server.
func (s *Server) Shutdown(ctx context.Context) error {
	closed := s.sessions.closeAll()
	s.log.Infof("Closed %d websocket sessions", closed)
	return s.app.ShutdownWithContext(ctx)
}

// Sessions is the number of open connections.
func (s *Server) Sessions() int {
	return s.sessions.size()
}

func (s *Server) handleRelayInfoRequests(c *fiber.Ctx) error {
	if c.Method() == fiber.MethodGet && c.Get(fiber.HeaderAccept) == "application/nostr+json" {
		c.Set(fiber.HeaderContentType, "application/nostr+json")
		body, err := json.Marshal(s.info)
		if err != nil {
			return err
		}
		return c.Send(body)
	}
	return c.Next()
}

// GetRelayInfo builds the NIP-11 document from the relay section of the
// config and the write policy.
func GetRelayInfo(cfg *types.Config, p policy.Config) NIP11RelayInfo {
	minPow := 0
	if p.ProofOfWorkEnabled {
		minPow = p.ProofOfWorkDifficulty
	}

	return NIP11RelayInfo{
		Name:          cfg.Relay.Name,
		Description:   cfg.Relay.Description,
		Pubkey:        p.RelayOwner,
		Contact:       cfg.Relay.Contact,
		Icon:          cfg.Relay.Icon,
		SupportedNIPs: cfg.Relay.SupportedNIPs,
		Software:      cfg.Relay.Software,
		Version:       cfg.Relay.Version,
		Limitation: &Limitation{
			MaxSubidLength:   validation.MaxSubscriptionIDSize,
			MaxLimit:         cfg.Store.MaxLimit,
			MinPowDifficulty: minPow,
			RestrictedWrites: p.FollowsPass && !p.ProofOfWorkEnabled,
		},
	}
}

func (s *Server) handleConnection(c *websocket.Conn) {
	id := uuid.NewString()
	sess := newSession(id, c, s.log.With(logging.Fields{"session": id, "ip": c.IP()}))

	s.sessions.add(sess)
	s.metrics.SessionOpened()
	sess.log.Debug("Session opened")

	defer func() {
		s.sessions.remove(sess)
		sess.cancel()
		s.metrics.SessionClosed()
		sess.log.Debug("Session closed")
	}()

	for {
		if err := s.processWebSocketMessage(sess); err != nil {
			if !isConnectionClosedError(err) {
				sess.log.Warnf("Ending session: %v", err)
			}
			return
		}
	}
}

// processWebSocketMessage reads and answers one frame. Frames of a session
// are handled strictly in order.
func (s *Server) processWebSocketMessage(sess *session) error {
	_, message, err := sess.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("read error: %w", err)
	}

	ctx := sess.ctx
	label := messageLabel(message)

	switch label {
	case "EVENT":
		env, ok := nostr.ParseMessage(message).(*nostr.EventEnvelope)
		if !ok {
			return lib_nostr.SendNotice(sess, "error: could not parse EVENT message")
		}
		return s.handleEventMessage(ctx, sess, env)

	case "REQ":
		env, ok := nostr.ParseMessage(message).(*nostr.ReqEnvelope)
		if !ok {
			return lib_nostr.SendNotice(sess, "error: could not parse REQ message")
		}
		return s.handleReqMessage(ctx, sess, env)

	case "CLOSE":
		env, ok := nostr.ParseMessage(message).(*nostr.CloseEnvelope)
		if !ok {
			return lib_nostr.SendNotice(sess, "error: could not parse CLOSE message")
		}
		return s.handleCloseMessage(sess, env)

	default:
		sess.log.Infof("Unknown message type: %q", label)
		if err := s.engine.OnUnknown(sess); err != nil {
			return err
		}
		return errSessionClosed
	}
}

// messageLabel returns the first element of a JSON array frame, or "" when
// the frame does not start with a string.
func messageLabel(message []byte) string {
	iter := json.BorrowIterator(bytes.TrimSpace(message))
	defer json.ReturnIterator(iter)

	if iter.WhatIsNext() != jsoniter.ArrayValue || !iter.ReadArray() {
		return ""
	}
	if iter.WhatIsNext() != jsoniter.StringValue {
		return ""
	}
	label := iter.ReadString()
	if iter.Error != nil {
		return ""
	}
	return label
}
