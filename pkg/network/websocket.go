package network

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/log"
	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/messages"
	"nhooyr.io/websocket"
)

// WSServer accepts WebSocket upgrades and registers each connection as a peer.
type WSServer struct {
	peers  *PeerManager
	logger *log.Logger
}

// NewWSServer creates a new WebSocket server.
func NewWSServer(peers *PeerManager) *WSServer {
	return &WSServer{
		peers:  peers,
		logger: log.Named("ws"),
	}
}

// ServeHTTP upgrades the request and blocks reading frames until the
// connection closes.
func (s *WSServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		s.logger.Error("Failed to upgrade to WebSocket: %v", err)
		return
	}
	conn.SetReadLimit(messages.MessageBufferSize)
	s.logger.Debug("New WebSocket connection from %s", r.RemoteAddr)

	link := newWSLink(conn, s.peers.Framer(), r.RemoteAddr)
	peerID, err := s.peers.Connect(link)
	if err != nil {
		s.logger.Error("Failed to register WebSocket peer: %v", err)
		conn.Close(websocket.StatusTryAgainLater, "server full")
		return
	}

	s.peers.ReadLoop(r.Context(), peerID, link.readFrame)
}

// DialWS connects to a WebSocket server and attaches it as the server peer.
// Frames are read until ctx is done or the connection drops.
func DialWS(ctx context.Context, url string, peers *PeerManager) (Link, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to server: %w", err)
	}
	conn.SetReadLimit(messages.MessageBufferSize)

	link := newWSLink(conn, peers.Framer(), url)
	if err := peers.Attach(messages.ServerOrigin, link); err != nil {
		conn.Close(websocket.StatusInternalError, "")
		return nil, err
	}
	go peers.ReadLoop(ctx, messages.ServerOrigin, link.readFrame)

	return link, nil
}

type wsLink struct {
	conn   *websocket.Conn
	framer *Framer
	remote string

	lock   sync.Mutex
	closed bool
}

func newWSLink(conn *websocket.Conn, framer *Framer, remote string) *wsLink {
	return &wsLink{
		conn:   conn,
		framer: framer,
		remote: remote,
	}
}

func (l *wsLink) Send(ctx context.Context, b []byte) error {
	l.lock.Lock()
	defer l.lock.Unlock()
	if l.closed {
		return fmt.Errorf("%w: %w", ErrPeerUnreachable, ErrLinkClosed)
	}
	if err := l.conn.Write(ctx, websocket.MessageBinary, l.framer.Frame(b)); err != nil {
		return fmt.Errorf("%w: failed to write message to WebSocket connection: %v", ErrPeerUnreachable, err)
	}
	return nil
}

func (l *wsLink) Close() error {
	l.lock.Lock()
	if l.closed {
		l.lock.Unlock()
		return nil
	}
	l.closed = true
	l.lock.Unlock()
	return l.conn.Close(websocket.StatusNormalClosure, "")
}

func (l *wsLink) RemoteAddr() string {
	return l.remote
}

func (l *wsLink) readFrame(ctx context.Context) ([]byte, error) {
	_, b, err := l.conn.Read(ctx)
	if err != nil {
		status := websocket.CloseStatus(err)
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			return nil, ErrLinkClosed
		}
		l.lock.Lock()
		closed := l.closed
		l.lock.Unlock()
		if closed || errors.Is(err, context.Canceled) {
			return nil, ErrLinkClosed
		}
		return nil, err
	}
	return b, nil
}
