// Copyright 2025 Framegate, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package connection

import (
	"context"
	"crypto/tls"
	"encoding/binary"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/framegate/framegate/pkg/logger"
	"github.com/framegate/framegate/pkg/media"
)

const (
	defaultPingInterval = 10 * time.Second
	defaultPingTimeout  = 2 * time.Second
)

var ErrNotConnected = errors.New("not connected")

type Params struct {
	Endpoint   string
	DeviceID   string
	Token      string
	HardwareID string
	// merged into every auth parameter set, reserved fields win
	Extra map[string]string

	PinnedCertificates []string
	PinVerifier        PinVerifier

	Development  bool
	PingInterval time.Duration
	PingTimeout  time.Duration

	Logger *zap.SugaredLogger
}

// session is the live transport of one successful Connect. done is closed
// exactly once, on whichever of read failure, ping failure or Disconnect
// happens first.
type session struct {
	conn      *websocket.Conn
	done      chan struct{}
	closeOnce sync.Once
}

func (s *session) close() {
	s.closeOnce.Do(func() {
		_ = s.conn.Close()
		close(s.done)
	})
}

// SecureConnection validates the endpoint security policy once at
// construction, then owns the connection state machine and the websocket
// transport session. Reconnection is caller-driven: when the session drops,
// Done() fires and the supervisor decides whether and when to redial.
type SecureConnection struct {
	params   Params
	endpoint *url.URL

	state atomic.Int32

	lock                  sync.Mutex
	token                 string
	sess                  *session
	lastConnectAttempt    time.Time
	lastSuccessfulConnect time.Time
	errMsg                string
	certificateValid      bool

	onFrame       func(*media.Frame)
	onRTT         func(time.Duration)
	onStateChange func(State)

	nowFn func() time.Time
}

func NewSecureConnection(params Params) (*SecureConnection, error) {
	u, err := ValidateEndpoint(params.Endpoint, params.Development)
	if err != nil {
		return nil, err
	}
	if params.Logger == nil {
		params.Logger = logger.GetLogger()
	}
	if params.PinVerifier == nil {
		params.PinVerifier = NewNoopPinVerifier(params.Logger)
	}
	if params.PingInterval <= 0 {
		params.PingInterval = defaultPingInterval
	}
	if params.PingTimeout <= 0 {
		params.PingTimeout = defaultPingTimeout
	}

	return &SecureConnection{
		params:   params,
		endpoint: u,
		token:    params.Token,
		nowFn:    time.Now,
	}, nil
}

// OnFrame registers the consumer of decoded frames, called from the read
// loop goroutine.
func (c *SecureConnection) OnFrame(fn func(*media.Frame)) {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.onFrame = fn
}

// OnRTT registers the consumer of ping round-trip samples.
func (c *SecureConnection) OnRTT(fn func(time.Duration)) {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.onRTT = fn
}

func (c *SecureConnection) OnStateChange(fn func(State)) {
	c.lock.Lock()
	defer c.lock.Unlock()

	c.onStateChange = fn
}

func (c *SecureConnection) State() State {
	return State(c.state.Load())
}

func (c *SecureConnection) HasPinnedCertificates() bool {
	return len(c.params.PinnedCertificates) > 0
}

func (c *SecureConnection) Status() Status {
	c.lock.Lock()
	defer c.lock.Unlock()

	return Status{
		State:                 c.State(),
		LastConnectAttempt:    c.lastConnectAttempt,
		LastSuccessfulConnect: c.lastSuccessfulConnect,
		Error:                 c.errMsg,
		CertificateValid:      c.certificateValid,
	}
}

// AuthParams builds the parameter set for a connection attempt using the
// current credential. Field names are the wire contract with the session
// endpoint.
func (c *SecureConnection) AuthParams() map[string]string {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.authParamsLocked()
}

func (c *SecureConnection) authParamsLocked() map[string]string {
	return buildAuthParams(c.params.DeviceID, c.token, c.params.HardwareID, c.nowFn(), c.params.Extra)
}

// Connect dials the endpoint with fresh auth parameters and, on success,
// starts the read and ping workers. Any prior session is torn down first.
func (c *SecureConnection) Connect(ctx context.Context) error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.sess != nil {
		c.sess.close()
		c.sess = nil
	}

	now := c.nowFn()
	c.lastConnectAttempt = now
	c.setStateLocked(StateConnecting)

	u := *c.endpoint
	q := u.Query()
	for k, v := range c.authParamsLocked() {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			err = errors.Wrapf(err, "status %s", resp.Status)
		}
		c.errMsg = err.Error()
		c.setStateLocked(StateError)
		return errors.Wrap(err, "could not establish connection")
	}

	if err = c.verifyPinsLocked(conn); err != nil {
		_ = conn.Close()
		c.errMsg = err.Error()
		c.setStateLocked(StateError)
		return err
	}

	sess := &session{
		conn: conn,
		done: make(chan struct{}),
	}
	c.sess = sess
	c.lastSuccessfulConnect = now
	c.errMsg = ""
	c.setStateLocked(StateConnected)

	conn.SetPongHandler(func(appData string) error {
		c.handlePong(appData)
		return nil
	})

	go c.readLoop(sess)
	go c.pingWorker(sess)
	return nil
}

func (c *SecureConnection) verifyPinsLocked(conn *websocket.Conn) error {
	c.certificateValid = false
	if !c.HasPinnedCertificates() {
		return nil
	}

	var state *tls.ConnectionState
	if tlsConn, ok := conn.UnderlyingConn().(*tls.Conn); ok {
		cs := tlsConn.ConnectionState()
		state = &cs
	}
	if err := c.params.PinVerifier.Verify(state, c.params.PinnedCertificates); err != nil {
		return errors.Wrap(err, "certificate pin verification failed")
	}

	c.certificateValid = true
	return nil
}

// Disconnect tears down the current session and forces the disconnected
// state regardless of what the state machine was doing. Idempotent.
func (c *SecureConnection) Disconnect() {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.sess != nil {
		c.sess.close()
		c.sess = nil
	}
	c.setStateLocked(StateDisconnected)
}

// UpdateToken swaps the credential. A live session is torn down so the next
// dial presents the new token; continuing on the old credential is never
// allowed.
func (c *SecureConnection) UpdateToken(newToken string) {
	c.lock.Lock()
	wasConnected := c.State() == StateConnected
	c.token = newToken
	c.lock.Unlock()

	if wasConnected {
		c.params.Logger.Infow("credential rotated, forcing reconnect")
		c.Disconnect()
	}
}

// Done returns a channel closed when the current session ends. With no
// session it returns a closed channel.
func (c *SecureConnection) Done() <-chan struct{} {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.sess != nil {
		return c.sess.done
	}
	closed := make(chan struct{})
	close(closed)
	return closed
}

func (c *SecureConnection) setStateLocked(s State) {
	old := State(c.state.Swap(int32(s)))
	if old == s {
		return
	}
	if c.onStateChange != nil {
		c.onStateChange(s)
	}
}

func (c *SecureConnection) readLoop(sess *session) {
	for {
		messageType, payload, err := sess.conn.ReadMessage()
		if err != nil {
			c.handleSessionEnd(sess, err)
			return
		}
		if messageType != websocket.BinaryMessage {
			c.params.Logger.Debugw("ignoring non-binary message", "messageType", messageType)
			continue
		}

		frame, err := DecodeFrameMessage(payload)
		if err != nil {
			c.params.Logger.Warnw("dropping undecodable frame message", "error", err)
			continue
		}

		c.lock.Lock()
		onFrame := c.onFrame
		c.lock.Unlock()
		if onFrame != nil {
			onFrame(frame)
		}
	}
}

func (c *SecureConnection) pingWorker(sess *session) {
	ticker := time.NewTicker(c.params.PingInterval)
	defer ticker.Stop()

	payload := make([]byte, 8)
	for {
		select {
		case <-sess.done:
			return
		case <-ticker.C:
			binary.BigEndian.PutUint64(payload, uint64(c.nowFn().UnixNano()))
			deadline := time.Now().Add(c.params.PingTimeout)
			if err := sess.conn.WriteControl(websocket.PingMessage, payload, deadline); err != nil {
				c.handleSessionEnd(sess, err)
				return
			}
		}
	}
}

func (c *SecureConnection) handlePong(appData string) {
	if len(appData) != 8 {
		return
	}
	sent := int64(binary.BigEndian.Uint64([]byte(appData)))
	rtt := c.nowFn().Sub(time.Unix(0, sent))

	c.lock.Lock()
	onRTT := c.onRTT
	c.lock.Unlock()
	if onRTT != nil && rtt >= 0 {
		onRTT(rtt)
	}
}

// handleSessionEnd transitions out of connected when the transport fails
// underneath us. A normal peer close lands in disconnected, anything else
// in error. No-op if the failing session was already replaced.
func (c *SecureConnection) handleSessionEnd(sess *session, err error) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.sess != sess {
		// session was already torn down by Disconnect or a reconnect
		sess.close()
		return
	}

	sess.close()
	c.sess = nil

	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		c.setStateLocked(StateDisconnected)
		return
	}
	c.errMsg = err.Error()
	c.setStateLocked(StateError)
	c.params.Logger.Warnw("transport session ended", "error", err)
}
