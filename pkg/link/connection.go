// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/proparm/console/pkg/proplink"
	"go.bug.st/serial"
)

// Connection is the byte transport owned by the link worker.
//
// Read must not block for longer than a poll interval: when no data is
// available it returns 0, nil. A Read error wrapping
// proplink.ErrTransportClosed means the transport is gone for good.
type Connection interface {
	io.Reader
	io.Writer
	io.Closer
}

//////////////////////////////////////////////////////////////
// Serial
//////////////////////////////////////////////////////////////

// SerialConnection wraps a serial port
type SerialConnection struct {
	port serial.Port
	name string
}

// OpenSerial opens a serial port at 8N1 with a short read timeout so that
// reads poll instead of blocking
func OpenSerial(portName string, baudRate int, readTimeout time.Duration) (*SerialConnection, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("%w: serial port %s: %v", proplink.ErrTransportOpen, portName, err)
	}

	if err := port.SetReadTimeout(readTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("%w: serial port %s: set read timeout: %v", proplink.ErrTransportOpen, portName, err)
	}

	return &SerialConnection{port: port, name: portName}, nil
}

func (s *SerialConnection) Read(p []byte) (int, error) {
	n, err := s.port.Read(p)
	if err != nil {
		var portErr *serial.PortError
		if errors.As(err, &portErr) && portErr.Code() == serial.PortClosed {
			return n, fmt.Errorf("%w: %s: %v", proplink.ErrTransportClosed, s.name, err)
		}
	}
	return n, err
}

func (s *SerialConnection) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

func (s *SerialConnection) Close() error {
	return s.port.Close()
}

// ListPorts returns the serial ports present on this host
func ListPorts() ([]string, error) {
	return serial.GetPortsList()
}

//////////////////////////////////////////////////////////////
// WebSocket
//////////////////////////////////////////////////////////////

// WebSocketConnection carries the serial byte stream over a WebSocket
// bridge. A background pump receives messages so that Read never blocks.
type WebSocketConnection struct {
	conn     *websocket.Conn
	incoming chan []byte
	done     chan struct{} // Closed when the pump exits
	closed   chan struct{} // Closed by Close
	pumpErr  error         // Valid once done is closed
	buf      []byte
	once     sync.Once
}

// NewWebSocketConnection wraps an established WebSocket and starts its
// receive pump
func NewWebSocketConnection(conn *websocket.Conn) *WebSocketConnection {
	w := &WebSocketConnection{
		conn:     conn,
		incoming: make(chan []byte, 64),
		done:     make(chan struct{}),
		closed:   make(chan struct{}),
	}
	go w.pump()
	return w
}

func (w *WebSocketConnection) pump() {
	defer close(w.done)
	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			w.pumpErr = err
			return
		}

		// Bridges may send either frame type; both carry raw bytes
		if messageType != websocket.BinaryMessage && messageType != websocket.TextMessage {
			continue
		}

		select {
		case w.incoming <- data:
		case <-w.closed:
			return
		}
	}
}

func (w *WebSocketConnection) Read(p []byte) (int, error) {
	// Leftover from a message larger than p
	if len(w.buf) > 0 {
		n := copy(p, w.buf)
		w.buf = w.buf[n:]
		return n, nil
	}

	select {
	case data := <-w.incoming:
		n := copy(p, data)
		w.buf = data[n:]
		return n, nil
	default:
	}

	select {
	case <-w.done:
		// Hand out anything received before the socket went away
		select {
		case data := <-w.incoming:
			n := copy(p, data)
			w.buf = data[n:]
			return n, nil
		default:
		}
		return 0, fmt.Errorf("%w: websocket: %v", proplink.ErrTransportClosed, w.pumpErr)
	default:
		return 0, nil
	}
}

func (w *WebSocketConnection) Write(p []byte) (int, error) {
	err := w.conn.WriteMessage(websocket.BinaryMessage, p)
	if err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *WebSocketConnection) Close() error {
	var err error
	w.once.Do(func() {
		close(w.closed)
		err = w.conn.Close()
	})
	return err
}

// OpenWebSocket connects to a serial bridge with optional HTTP Basic auth
func OpenWebSocket(wsURL, username, password string, skipSSLVerify bool) (*WebSocketConnection, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid URL: %v", proplink.ErrTransportOpen, err)
	}

	switch u.Scheme {
	case "ws", "wss":
		// OK
	default:
		return nil, fmt.Errorf("%w: unsupported URL scheme: %s (use ws:// or wss://)", proplink.ErrTransportOpen, u.Scheme)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: skipSSLVerify,
		}
	}

	headers := http.Header{}
	if username != "" && password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w: websocket (HTTP %d): %v", proplink.ErrTransportOpen, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("%w: websocket: %v", proplink.ErrTransportOpen, err)
	}

	return NewWebSocketConnection(conn), nil
}
