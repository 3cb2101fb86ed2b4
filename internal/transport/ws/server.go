// Package ws is the websocket front end of the ledger: a HELLO/WELCOME
// handshake, then REQ/RES frames mapped one-to-one onto registry
// operations.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"paulette.land/internal/auth"
	"paulette.land/internal/protocol"
	"paulette.land/internal/registry"
)

var (
	helloSchema = protocol.MustCompileSchema("hello.schema.json")
	reqSchema   = protocol.MustCompileSchema("req.schema.json")
)

type Server struct {
	reg *registry.Registry
	log *log.Logger

	upgrader websocket.Upgrader
}

func NewServer(reg *registry.Registry, logger *log.Logger) *Server {
	return &Server{
		reg: reg,
		log: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		invoker, ok := s.handshake(conn)
		if !ok {
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		out := make(chan []byte, 16)

		// Writer goroutine.
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case b, ok := <-out:
					if !ok {
						return
					}
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		// Reader loop.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				cancel()
				return
			}
			res := s.handle(invoker, msg)
			b, err := json.Marshal(res)
			if err != nil {
				continue
			}
			select {
			case out <- b:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (s *Server) handshake(conn *websocket.Conn) (auth.Identity, bool) {
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", false
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeHello {
		closePolicy(conn, "expected HELLO")
		return "", false
	}
	if !validates(helloSchema, msg) {
		closePolicy(conn, "malformed HELLO")
		return "", false
	}

	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil {
		return "", false
	}
	if hello.ProtocolVersion != protocol.Version {
		closePolicy(conn, "bad protocol_version")
		return "", false
	}

	// The identity claim is trusted at the transport edge, matching
	// the host environment's "invoker" notion: whoever holds the
	// connection speaks as this principal for unsigned ops.
	var invoker auth.Identity
	if hello.Identity != "" {
		invoker = auth.Identity("ed25519:" + hello.Identity)
	}

	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		Server:          "paulette",
		Identity:        string(invoker),
	}
	b, err := json.Marshal(welcome)
	if err != nil {
		return "", false
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		return "", false
	}
	return invoker, true
}

func closePolicy(conn *websocket.Conn, reason string) {
	_ = conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason),
		time.Now().Add(time.Second),
	)
}

func validates(s *jsonschema.Schema, raw []byte) bool {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	return s.Validate(v) == nil
}

// handle routes one REQ frame and always produces a RES.
func (s *Server) handle(invoker auth.Identity, msg []byte) protocol.ResMsg {
	fail := func(id, code, reason string) protocol.ResMsg {
		return protocol.ResMsg{
			Type:            protocol.TypeRes,
			ProtocolVersion: protocol.Version,
			ID:              id,
			OK:              false,
			Code:            code,
			Message:         reason,
		}
	}

	base, err := protocol.DecodeBase(msg)
	if err != nil || base.Type != protocol.TypeReq {
		return fail("", protocol.ErrProtoBadRequest, "expected REQ")
	}
	if base.ProtocolVersion != protocol.Version {
		return fail("", protocol.ErrProtoBadRequest, "bad protocol_version")
	}
	if !validates(reqSchema, msg) {
		return fail("", protocol.ErrProtoBadRequest, "malformed REQ")
	}

	var req protocol.ReqMsg
	if err := json.Unmarshal(msg, &req); err != nil {
		return fail("", protocol.ErrProtoBadRequest, err.Error())
	}

	result, err := s.dispatch(invoker, req)
	if err != nil {
		code := protocol.CodeFor(err)
		if errors.Is(err, errBadParams) {
			code = protocol.ErrProtoBadRequest
		}
		res := fail(req.ID, code, err.Error())
		if s.log != nil {
			s.log.Printf("op %s rejected: %s %v", req.Op, res.Code, err)
		}
		return res
	}

	res := protocol.ResMsg{
		Type:            protocol.TypeRes,
		ProtocolVersion: protocol.Version,
		ID:              req.ID,
		OK:              true,
	}
	if result != nil {
		b, err := json.Marshal(result)
		if err != nil {
			return fail(req.ID, protocol.ErrInternal, err.Error())
		}
		res.Result = b
	}
	return res
}
