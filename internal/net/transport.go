package net

import (
	"fmt"
	"net"
	"time"

	"github.com/gorilla/websocket"
)

// Transport moves whole packets. The TCP transport frames them with a
// 2-byte length header; the WebSocket transport sends one binary message
// per packet.
type Transport interface {
	ReadPacket() ([]byte, error)
	WritePacket(data []byte) error
	RemoteAddr() string
	Close() error
}

type tcpTransport struct {
	conn         net.Conn
	readTimeout  time.Duration
	writeTimeout time.Duration
}

// NewTCPTransport wraps conn. Zero timeouts disable the deadlines.
func NewTCPTransport(conn net.Conn, readTimeout, writeTimeout time.Duration) Transport {
	return &tcpTransport{conn: conn, readTimeout: readTimeout, writeTimeout: writeTimeout}
}

func (t *tcpTransport) ReadPacket() ([]byte, error) {
	if t.readTimeout > 0 {
		_ = t.conn.SetReadDeadline(time.Now().Add(t.readTimeout))
	}
	return ReadFrame(t.conn)
}

func (t *tcpTransport) WritePacket(data []byte) error {
	if t.writeTimeout > 0 {
		_ = t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout))
	}
	return WriteFrame(t.conn, data)
}

func (t *tcpTransport) RemoteAddr() string { return t.conn.RemoteAddr().String() }

func (t *tcpTransport) Close() error { return t.conn.Close() }

type wsTransport struct {
	conn         *websocket.Conn
	readTimeout  time.Duration
	writeTimeout time.Duration
}

// NewWSTransport wraps an upgraded WebSocket connection.
func NewWSTransport(conn *websocket.Conn, readTimeout, writeTimeout time.Duration) Transport {
	conn.SetReadLimit(maxPayload)
	return &wsTransport{conn: conn, readTimeout: readTimeout, writeTimeout: writeTimeout}
}

func (t *wsTransport) ReadPacket() ([]byte, error) {
	for {
		if t.readTimeout > 0 {
			_ = t.conn.SetReadDeadline(time.Now().Add(t.readTimeout))
		}
		kind, msg, err := t.conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("read ws message: %w", err)
		}
		if kind != websocket.BinaryMessage {
			continue
		}
		if len(msg) == 0 {
			return nil, fmt.Errorf("empty ws message")
		}
		return msg, nil
	}
}

func (t *wsTransport) WritePacket(data []byte) error {
	if t.writeTimeout > 0 {
		_ = t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout))
	}
	if err := t.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return fmt.Errorf("write ws message: %w", err)
	}
	return nil
}

func (t *wsTransport) RemoteAddr() string { return t.conn.RemoteAddr().String() }

func (t *wsTransport) Close() error {
	_ = t.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return t.conn.Close()
}
