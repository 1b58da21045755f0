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
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/framegate/framegate/pkg/media"
)

// testServer is a minimal session endpoint: it records the auth query of
// every dial and keeps accepted sockets around for the test to drive.
type testServer struct {
	*httptest.Server

	lock    sync.Mutex
	queries []map[string]string
	conns   []*websocket.Conn
}

func newTestServer(t *testing.T) *testServer {
	upgrader := websocket.Upgrader{}
	ts := &testServer{}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := map[string]string{}
		for k, vs := range r.URL.Query() {
			query[k] = vs[0]
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)

		ts.lock.Lock()
		ts.queries = append(ts.queries, query)
		ts.conns = append(ts.conns, conn)
		ts.lock.Unlock()
	}))
	t.Cleanup(ts.Close)
	return ts
}

func (ts *testServer) endpoint() string {
	return "ws" + strings.TrimPrefix(ts.URL, "http")
}

func (ts *testServer) lastQuery() map[string]string {
	ts.lock.Lock()
	defer ts.lock.Unlock()
	if len(ts.queries) == 0 {
		return nil
	}
	return ts.queries[len(ts.queries)-1]
}

func (ts *testServer) lastConn() *websocket.Conn {
	ts.lock.Lock()
	defer ts.lock.Unlock()
	if len(ts.conns) == 0 {
		return nil
	}
	return ts.conns[len(ts.conns)-1]
}

// waitConn waits out the small window between the client seeing the 101
// response and the handler goroutine recording the socket.
func (ts *testServer) waitConn(t *testing.T) *websocket.Conn {
	var conn *websocket.Conn
	require.Eventually(t, func() bool {
		conn = ts.lastConn()
		return conn != nil
	}, 2*time.Second, 5*time.Millisecond)
	return conn
}

func newTestConnection(t *testing.T, ts *testServer) *SecureConnection {
	c, err := NewSecureConnection(Params{
		Endpoint:    ts.endpoint(),
		DeviceID:    "dev-1",
		Token:       "tok-1",
		HardwareID:  "hw-1",
		Development: true,
	})
	require.NoError(t, err)
	return c
}

func waitForState(t *testing.T, c *SecureConnection, want State) {
	require.Eventually(t, func() bool {
		return c.State() == want
	}, 2*time.Second, 10*time.Millisecond, "state never became %s", want)
}

func TestConstructionRejectsInsecureEndpoint(t *testing.T) {
	_, err := NewSecureConnection(Params{
		Endpoint: "ws://rc.example.com/stream",
		DeviceID: "dev-1",
	})
	require.ErrorIs(t, err, ErrInsecureEndpoint)
}

func TestConnectLifecycle(t *testing.T) {
	ts := newTestServer(t)
	c := newTestConnection(t, ts)

	var states []State
	var statesLock sync.Mutex
	c.OnStateChange(func(s State) {
		statesLock.Lock()
		states = append(states, s)
		statesLock.Unlock()
	})

	require.Equal(t, StateDisconnected, c.State())
	require.NoError(t, c.Connect(context.Background()))
	require.Equal(t, StateConnected, c.State())

	status := c.Status()
	require.False(t, status.LastConnectAttempt.IsZero())
	require.False(t, status.LastSuccessfulConnect.IsZero())
	require.Empty(t, status.Error)

	query := ts.lastQuery()
	require.Equal(t, "dev-1", query["deviceId"])
	require.Equal(t, "tok-1", query["token"])
	require.Equal(t, "hw-1", query["hardwareId"])
	require.NotEmpty(t, query["timestamp"])

	c.Disconnect()
	require.Equal(t, StateDisconnected, c.State())
	// idempotent
	c.Disconnect()
	require.Equal(t, StateDisconnected, c.State())

	statesLock.Lock()
	defer statesLock.Unlock()
	require.Equal(t, []State{StateConnecting, StateConnected, StateDisconnected}, states)
}

func TestConnectFailureEntersErrorState(t *testing.T) {
	c, err := NewSecureConnection(Params{
		// nothing listens here
		Endpoint:    "ws://127.0.0.1:1",
		DeviceID:    "dev-1",
		Development: true,
	})
	require.NoError(t, err)

	require.Error(t, c.Connect(context.Background()))
	require.Equal(t, StateError, c.State())
	require.NotEmpty(t, c.Status().Error)
}

func TestFramesDelivered(t *testing.T) {
	ts := newTestServer(t)
	c := newTestConnection(t, ts)

	frames := make(chan *media.Frame, 4)
	c.OnFrame(func(f *media.Frame) { frames <- f })

	require.NoError(t, c.Connect(context.Background()))

	sent := media.NewKeyFrame(time.UnixMilli(1700000000000), []byte{0xde, 0xad})
	require.NoError(t, ts.waitConn(t).WriteMessage(websocket.BinaryMessage, EncodeFrameMessage(sent)))

	select {
	case got := <-frames:
		require.Equal(t, media.FrameKindKey, got.Kind)
		require.Equal(t, []byte{0xde, 0xad}, got.Payload)
	case <-time.After(2 * time.Second):
		t.Fatal("frame never delivered")
	}

	c.Disconnect()
}

func TestServerCloseEndsSession(t *testing.T) {
	ts := newTestServer(t)
	c := newTestConnection(t, ts)

	require.NoError(t, c.Connect(context.Background()))
	done := c.Done()

	require.NoError(t, ts.waitConn(t).Close())

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("session never ended")
	}
	waitForState(t, c, StateError)
}

func TestUpdateTokenForcesReconnect(t *testing.T) {
	ts := newTestServer(t)
	c := newTestConnection(t, ts)

	// rotation while disconnected only swaps the credential
	c.UpdateToken("tok-2")
	require.Equal(t, StateDisconnected, c.State())
	require.Equal(t, "tok-2", c.AuthParams()[AuthFieldToken])

	require.NoError(t, c.Connect(context.Background()))
	done := c.Done()

	c.UpdateToken("tok-3")
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("rotation did not end the session")
	}
	require.Equal(t, StateDisconnected, c.State())

	// next dial presents the new credential
	require.NoError(t, c.Connect(context.Background()))
	require.Eventually(t, func() bool {
		return ts.lastQuery()["token"] == "tok-3"
	}, 2*time.Second, 5*time.Millisecond)
	c.Disconnect()
}

func TestPinnedCertificateBookkeeping(t *testing.T) {
	ts := newTestServer(t)

	c, err := NewSecureConnection(Params{
		Endpoint:           ts.endpoint(),
		DeviceID:           "dev-1",
		Development:        true,
		PinnedCertificates: []string{"sha256/abcdef"},
	})
	require.NoError(t, err)
	require.True(t, c.HasPinnedCertificates())

	// default verifier accepts and flags the session; real verification is
	// the platform layer's job
	require.NoError(t, c.Connect(context.Background()))
	require.True(t, c.Status().CertificateValid)
	c.Disconnect()
}

func TestRTTSamples(t *testing.T) {
	ts := newTestServer(t)

	c, err := NewSecureConnection(Params{
		Endpoint:     ts.endpoint(),
		DeviceID:     "dev-1",
		Development:  true,
		PingInterval: 20 * time.Millisecond,
	})
	require.NoError(t, err)

	rtts := make(chan time.Duration, 4)
	c.OnRTT(func(rtt time.Duration) { rtts <- rtt })

	require.NoError(t, c.Connect(context.Background()))

	// the server must read to service the ping/pong control handshake
	conn := ts.waitConn(t)
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	select {
	case rtt := <-rtts:
		require.GreaterOrEqual(t, rtt, time.Duration(0))
	case <-time.After(2 * time.Second):
		t.Fatal("no rtt sample")
	}
	c.Disconnect()
}
