package network

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/log"
	"github.com/ThaumielSparrow/LodeRunner-sub004/pkg/messages"
)

// UDPServer represents a UDP server. Every new source address becomes a peer;
// liveness is left to the session timeout since datagrams carry no close.
type UDPServer struct {
	addr   string
	peers  *PeerManager
	logger *log.Logger

	lock   sync.Mutex
	conn   *net.UDPConn
	byAddr map[string]uint32
}

// NewUDPServer creates a new UDP server.
func NewUDPServer(addr string, peers *PeerManager) *UDPServer {
	return &UDPServer{
		addr:   addr,
		peers:  peers,
		logger: log.Named("udp"),
		byAddr: make(map[string]uint32),
	}
}

// Start listens and reads datagrams until ctx is done.
func (s *UDPServer) Start(ctx context.Context) error {
	udpAddr, err := net.ResolveUDPAddr("udp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address: %w", err)
	}

	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP address: %w", err)
	}
	s.lock.Lock()
	s.conn = conn
	s.lock.Unlock()

	s.logger.Info("UDP server listening on %s", conn.LocalAddr().String())

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	buf := make([]byte, messages.MessageBufferSize)
	for {
		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Error("Failed to read message from UDP connection: %v", err)
			continue
		}

		peerID, err := s.peerFor(conn, addr)
		if err != nil {
			s.logger.Error("Failed to register UDP peer %s: %v", addr, err)
			continue
		}

		frame := make([]byte, n)
		copy(frame, buf[:n])
		if err := s.peers.Deliver(peerID, frame); err != nil && !errors.Is(err, messages.ErrMalformedEnvelope) {
			s.logger.Error("Failed to deliver UDP frame from peer %d: %v", peerID, err)
		}
	}
}

func (s *UDPServer) peerFor(conn *net.UDPConn, addr *net.UDPAddr) (uint32, error) {
	key := addr.String()

	s.lock.Lock()
	defer s.lock.Unlock()

	if peerID, ok := s.byAddr[key]; ok {
		return peerID, nil
	}

	link := &udpLink{
		conn:   conn,
		addr:   addr,
		framer: s.peers.Framer(),
		onClose: func() {
			s.forget(key)
		},
	}
	peerID, err := s.peers.Connect(link)
	if err != nil {
		return 0, err
	}
	s.byAddr[key] = peerID
	return peerID, nil
}

func (s *UDPServer) forget(key string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	delete(s.byAddr, key)
}

// DialUDP connects to a UDP server and attaches it as the server peer.
func DialUDP(ctx context.Context, addr string, peers *PeerManager) (Link, error) {
	serverAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve UDP address: %w", err)
	}

	conn, err := net.DialUDP("udp", nil, serverAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial UDP address: %w", err)
	}

	link := &udpLink{
		conn:      conn,
		framer:    peers.Framer(),
		connected: true,
	}
	if err := peers.Attach(messages.ServerOrigin, link); err != nil {
		conn.Close()
		return nil, err
	}

	go func() {
		<-ctx.Done()
		link.Close()
	}()
	go peers.ReadLoop(ctx, messages.ServerOrigin, link.readFrame)

	return link, nil
}

type udpLink struct {
	conn *net.UDPConn
	// addr is nil for a connected client socket.
	addr      *net.UDPAddr
	connected bool
	framer    *Framer
	onClose   func()

	lock   sync.Mutex
	closed bool
}

func (l *udpLink) Send(_ context.Context, b []byte) error {
	l.lock.Lock()
	defer l.lock.Unlock()
	if l.closed {
		return fmt.Errorf("%w: %w", ErrPeerUnreachable, ErrLinkClosed)
	}

	frame := l.framer.Frame(b)
	if len(frame) > messages.MessageBufferSize {
		return fmt.Errorf("frame of %d bytes exceeds datagram limit %d", len(frame), messages.MessageBufferSize)
	}

	var err error
	if l.connected {
		_, err = l.conn.Write(frame)
	} else {
		_, err = l.conn.WriteToUDP(frame, l.addr)
	}
	if err != nil {
		return fmt.Errorf("%w: failed to write message to UDP connection: %v", ErrPeerUnreachable, err)
	}
	return nil
}

// Close forgets the peer. A server-side link shares the listening socket and
// leaves it open.
func (l *udpLink) Close() error {
	l.lock.Lock()
	if l.closed {
		l.lock.Unlock()
		return nil
	}
	l.closed = true
	l.lock.Unlock()

	if l.onClose != nil {
		l.onClose()
	}
	if l.connected {
		return l.conn.Close()
	}
	return nil
}

func (l *udpLink) RemoteAddr() string {
	if l.addr != nil {
		return l.addr.String()
	}
	return l.conn.RemoteAddr().String()
}

func (l *udpLink) readFrame(_ context.Context) ([]byte, error) {
	buf := make([]byte, messages.MessageBufferSize)
	n, err := l.conn.Read(buf)
	if err != nil {
		l.lock.Lock()
		closed := l.closed
		l.lock.Unlock()
		if closed || errors.Is(err, net.ErrClosed) {
			return nil, ErrLinkClosed
		}
		return nil, err
	}
	return buf[:n], nil
}
