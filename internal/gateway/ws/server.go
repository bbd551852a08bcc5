package ws

import (
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/zappabad/optionboard/internal/gateway"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Server accepts websocket clients and bridges each to its own backend
// transport. The codec is picked from the hello frame: text frames are
// JSON, binary frames msgpack.
type Server struct {
	upgrader websocket.Upgrader
	backend  func() gateway.Transport
	log      zerolog.Logger

	active atomic.Int64
	served atomic.Int64
}

// NewServer creates a Server. backend is called once per connection.
func NewServer(backend func() gateway.Transport, log zerolog.Logger) *Server {
	return &Server{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		backend: backend,
		log:     log.With().Str("component", "ws-server").Logger(),
	}
}

// Active returns the number of open connections.
func (s *Server) Active() int64 { return s.active.Load() }

// Served returns the number of connections accepted so far.
func (s *Server) Served() int64 { return s.served.Load() }

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("upgrade failed")
		return
	}
	s.served.Add(1)
	s.active.Add(1)
	defer s.active.Add(-1)
	defer conn.Close()

	conn.SetReadLimit(maxMessageSize)
	codec, hello, err := readHello(conn)
	if err != nil {
		s.log.Warn().Err(err).Msg("bad hello")
		return
	}
	log := s.log.With().Str("session", hello.Session).Str("codec", codec.Name()).Logger()
	log.Info().Str("client", hello.Client).Str("remote", r.RemoteAddr).Msg("client connected")

	backend := s.backend()
	replies := make(chan gateway.Event, 64)
	stop := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		s.writePump(conn, codec, backend.Events(), replies, stop, log)
	}()

	s.readPump(conn, codec, backend, replies, log)
	close(stop)
	<-done
	backend.Close()
	log.Info().Msg("client disconnected")
}

func readHello(conn *websocket.Conn) (gateway.Codec, Hello, error) {
	var hello Hello
	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	typ, data, err := conn.ReadMessage()
	if err != nil {
		return nil, hello, err
	}
	name := "json"
	if typ == websocket.BinaryMessage {
		name = "msgpack"
	}
	codec, err := gateway.NewCodec(name)
	if err != nil {
		return nil, hello, err
	}
	frame, err := codec.Unmarshal(data)
	if err != nil {
		return nil, hello, err
	}
	if frame.Type != helloType {
		return nil, hello, errors.New("first frame is not a hello")
	}
	if err := frame.Decode(&hello); err != nil {
		return nil, hello, err
	}
	return codec, hello, nil
}

func (s *Server) readPump(conn *websocket.Conn, codec gateway.Codec, backend gateway.Transport, replies chan<- gateway.Event, log zerolog.Logger) {
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	conn.SetPingHandler(func(data string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Msg("read")
			}
			return
		}
		out, err := gateway.DecodeCommand(codec, data)
		if err != nil {
			log.Warn().Err(err).Msg("dropping undecodable command")
			continue
		}
		if err := backend.Send(out); err != nil {
			select {
			case replies <- gateway.ErrorNotice{Header: gateway.Header{ReqID: out.ID}, Code: 100, Message: err.Error()}:
			default:
			}
		}
	}
}

func (s *Server) writePump(conn *websocket.Conn, codec gateway.Codec, events, replies <-chan gateway.Event, stop <-chan struct{}, log zerolog.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	typ := websocket.TextMessage
	if codec.Binary() {
		typ = websocket.BinaryMessage
	}
	write := func(ev gateway.Event) bool {
		data, err := gateway.EncodeEvent(codec, ev)
		if err != nil {
			log.Error().Err(err).Str("event", ev.Kind().String()).Msg("encode event")
			return true
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(typ, data); err != nil {
			log.Debug().Err(err).Msg("write")
			return false
		}
		return true
	}

	for {
		select {
		case <-stop:
			return
		case ev, ok := <-events:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
				return
			}
			if !write(ev) {
				conn.Close()
				return
			}
		case ev := <-replies:
			if !write(ev) {
				conn.Close()
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				conn.Close()
				return
			}
		}
	}
}
