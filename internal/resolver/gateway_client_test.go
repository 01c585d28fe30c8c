package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGateway is a scripted messaging-network gateway.
type fakeGateway struct {
	t *testing.T

	openStatus  int
	phones      map[string]resolveResponse
	deleteCalls int32
}

func (g *fakeGateway) handler() http.Handler {
	mux := http.NewServeMux()

	// Method-prefixed ServeMux patterns need Go 1.22+; enforce the method
	// inside the handler so this runs on Go 1.21.
	withMethod := func(method string, h http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if r.Method != method {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			h(w, r)
		}
	}

	mux.HandleFunc("/v1/sessions", withMethod(http.MethodPost, func(w http.ResponseWriter, r *http.Request) {
		var req openSessionRequest
		require.NoError(g.t, json.NewDecoder(r.Body).Decode(&req))

		if g.openStatus != 0 {
			w.WriteHeader(g.openStatus)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"error": map[string]string{"code": "AUTH_FAILED", "message": "invalid session string"},
			})
			return
		}

		json.NewEncoder(w).Encode(openSessionResponse{SessionID: "sess-1"})
	}))

	mux.HandleFunc("/v1/sessions/sess-1/resolve", withMethod(http.MethodPost, func(w http.ResponseWriter, r *http.Request) {
		var req resolveRequest
		require.NoError(g.t, json.NewDecoder(r.Body).Decode(&req))

		resp, ok := g.phones[req.Phone]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"error": map[string]string{"code": codePhoneNotRegistered, "message": "not registered"},
			})
			return
		}
		json.NewEncoder(w).Encode(resp)
	}))

	mux.HandleFunc("/v1/sessions/sess-1", withMethod(http.MethodDelete, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&g.deleteCalls, 1) > 1 {
			// The session is gone after the first delete.
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	return mux
}

func newTestClient(t *testing.T, gw *fakeGateway) *GatewayClient {
	t.Helper()

	srv := httptest.NewServer(gw.handler())
	t.Cleanup(srv.Close)

	return NewGatewayClient(&GatewayClientConfig{
		BaseURL:           srv.URL,
		RequestsPerSecond: 1000, // tests should not sit in the pacer
		RequestTimeout:    2 * time.Second,
	})
}

func TestOpenAndResolve(t *testing.T) {
	gw := &fakeGateway{t: t, phones: map[string]resolveResponse{
		"+15550001": {Found: true, Username: "alice", FirstName: "Alice", LastName: "A"},
	}}
	client := newTestClient(t, gw)

	sess, err := client.Open(context.Background(), Credential{SessionString: "s", APIID: 1, APIHash: "h"})
	require.NoError(t, err)
	defer sess.Close()

	res, err := sess.Resolve(context.Background(), "+15550001")
	require.NoError(t, err)
	assert.True(t, res.Found)
	assert.Equal(t, "alice", res.Username)
	assert.Equal(t, "Alice", res.FirstName)
	assert.Equal(t, "A", res.LastName)
}

func TestResolveNotRegistered(t *testing.T) {
	gw := &fakeGateway{t: t}
	client := newTestClient(t, gw)

	sess, err := client.Open(context.Background(), Credential{SessionString: "s"})
	require.NoError(t, err)
	defer sess.Close()

	_, err = sess.Resolve(context.Background(), "+15559999")
	assert.ErrorIs(t, err, ErrNotRegistered)
}

func TestOpenFailureIsConnectionError(t *testing.T) {
	gw := &fakeGateway{t: t, openStatus: http.StatusUnauthorized}
	client := newTestClient(t, gw)

	_, err := client.Open(context.Background(), Credential{SessionString: "bad"})
	require.Error(t, err)

	var connErr *ConnectionError
	assert.True(t, errors.As(err, &connErr))
}

func TestCloseIsIdempotent(t *testing.T) {
	gw := &fakeGateway{t: t}
	client := newTestClient(t, gw)

	sess, err := client.Open(context.Background(), Credential{SessionString: "s"})
	require.NoError(t, err)

	require.NoError(t, sess.Close())
	require.NoError(t, sess.Close())
	require.NoError(t, sess.Close())

	// Only the first close reaches the gateway.
	assert.Equal(t, int32(1), atomic.LoadInt32(&gw.deleteCalls))
}

func TestResolveAfterClose(t *testing.T) {
	gw := &fakeGateway{t: t}
	client := newTestClient(t, gw)

	sess, err := client.Open(context.Background(), Credential{SessionString: "s"})
	require.NoError(t, err)
	require.NoError(t, sess.Close())

	_, err = sess.Resolve(context.Background(), "+15550001")
	assert.Error(t, err)
}
