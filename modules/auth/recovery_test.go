package auth_test

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/guarzo/staybook/common"
	"github.com/guarzo/staybook/modules/auth"
	"github.com/guarzo/staybook/modules/notify"
)

func TestClient_ValidTokenNoRefresh(t *testing.T) {
	api := newFakeAPI(t, "good")
	h := newHarness(t, api, false)
	h.seed(t, "good", "r1")

	resp, err := h.get(t, context.Background())
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	readBody(t, resp)

	require.Equal(t, []string{"Bearer good"}, api.headers())
	require.EqualValues(t, 0, api.refreshCalls.Load())
	require.EqualValues(t, 0, h.client.Recovery().Refreshes())
}

func TestClient_401RefreshesOnceAndRetriesOnce(t *testing.T) {
	api := newFakeAPI(t, "stale-rejected")
	h := newHarness(t, api, false)
	h.seed(t, "old-access", "r1")

	before := time.Now()
	resp, err := h.get(t, context.Background())
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, readBody(t, resp), `"id":"r1"`)

	require.EqualValues(t, 1, api.refreshCalls.Load())
	require.EqualValues(t, 2, api.resourceCalls.Load())
	require.Equal(t, []string{"Bearer old-access", "Bearer new-access"}, api.headers())
	require.EqualValues(t, 1, h.client.Recovery().Retries())

	val, exp, found, err := h.store.GetWithExpiration(context.Background(), common.AccessTokenKey)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "new-access", val)
	require.WithinDuration(t, before.Add(30*time.Minute), exp, 5*time.Second)

	require.True(t, h.sess.IsAuthenticated())
	require.Empty(t, h.notifications())
	require.Empty(t, h.navigations())
}

func TestClient_RetryReplaysBody(t *testing.T) {
	api := newFakeAPI(t, "rotated")
	h := newHarness(t, api, false)
	h.seed(t, "old-access", "r1")

	resp, err := h.post(t, `{"roomId":"r1","guests":2}`)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	readBody(t, resp)

	require.Equal(t, []string{`{"roomId":"r1","guests":2}`, `{"roomId":"r1","guests":2}`}, api.requestBodies())
}

func TestClient_SecondUnauthorizedIsReturned(t *testing.T) {
	api := newFakeAPI(t, "never-valid")
	// The refresh succeeds but the server keeps rejecting the new token.
	api.refresh = func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"data":{"accessToken":"still-rejected"},"code":200}`)
	}
	h := newHarness(t, api, false)
	h.seed(t, "old-access", "r1")

	resp, err := h.get(t, context.Background())
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	readBody(t, resp)

	require.EqualValues(t, 1, api.refreshCalls.Load())
	require.EqualValues(t, 2, api.resourceCalls.Load())
}

func TestClient_CallerAuthorizationStillRefreshes(t *testing.T) {
	api := newFakeAPI(t, "rejected-by-all")
	h := newHarness(t, api, false)
	h.seed(t, "stored-access", "r1")

	req, err := http.NewRequest(http.MethodGet, api.roomsURL(), nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer caller-override")

	resp, err := h.client.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	readBody(t, resp)

	require.EqualValues(t, 1, api.refreshCalls.Load())
	require.Equal(t, []string{"Bearer caller-override", "Bearer new-access"}, api.headers())
}

func TestClient_AlreadyRetriedRequestDoesNotRefresh(t *testing.T) {
	api := newFakeAPI(t, "other")
	h := newHarness(t, api, false)
	h.seed(t, "old-access", "r1")

	resp, err := h.get(t, auth.WithRetried(context.Background()))
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Contains(t, readBody(t, resp), "unauthorized")

	require.EqualValues(t, 0, api.refreshCalls.Load())
	require.EqualValues(t, 1, api.resourceCalls.Load())
}

func TestClient_NoRefreshTokenPropagatesOriginal401(t *testing.T) {
	api := newFakeAPI(t, "other")
	h := newHarness(t, api, false)
	h.seed(t, "old-access", "")

	resp, err := h.get(t, context.Background())
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.JSONEq(t, `{"data":null,"code":401,"message":"unauthorized"}`, readBody(t, resp))

	require.EqualValues(t, 0, api.refreshCalls.Load())

	// no store mutation
	val, found, err := h.store.Get(context.Background(), common.AccessTokenKey)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "old-access", val)
	_, found, _ = h.store.Get(context.Background(), common.RefreshTokenKey)
	require.False(t, found)
	require.True(t, h.sess.IsAuthenticated())
	require.Empty(t, h.navigations())
}

func TestClient_RefreshWithoutAccessTokenFailsAndSignsOut(t *testing.T) {
	api := newFakeAPI(t, "other")
	api.refresh = func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"data":null,"code":401,"message":"refresh token expired"}`)
	}
	h := newHarness(t, api, false)
	h.seed(t, "old-access", "r1")

	resp, err := h.get(t, context.Background())
	require.Nil(t, resp)
	require.Error(t, err)
	require.True(t, errors.Is(err, auth.ErrRefreshFailed))

	var domainErr *auth.Error
	require.True(t, errors.As(err, &domainErr))
	require.Equal(t, "REFRESH_FAILED", domainErr.Code)

	require.False(t, h.sess.IsAuthenticated())
	_, found, _ := h.store.Get(context.Background(), common.AccessTokenKey)
	require.False(t, found)
	_, found, _ = h.store.Get(context.Background(), common.RefreshTokenKey)
	require.False(t, found)

	require.Equal(t, []string{notify.SessionExpiredMessage}, h.notifications())
	// Tokens and session were cleared before the redirect happened.
	require.Equal(t, []navSnapshot{{path: "/login"}}, h.navigations())
	require.EqualValues(t, 1, api.refreshCalls.Load())
	require.EqualValues(t, 1, api.resourceCalls.Load())
}

func TestClient_RefreshNetworkErrorPropagatesTransportError(t *testing.T) {
	api := newFakeAPI(t, "other")
	api.refresh = func(w http.ResponseWriter, r *http.Request) {
		hj, ok := w.(http.Hijacker)
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		conn, _, err := hj.Hijack()
		if err == nil {
			_ = conn.Close()
		}
	}
	h := newHarness(t, api, false)
	h.seed(t, "old-access", "r1")

	resp, err := h.get(t, context.Background())
	require.Nil(t, resp)
	require.Error(t, err)
	require.False(t, errors.Is(err, auth.ErrRefreshFailed))
	require.ErrorContains(t, err, "refresh request")

	require.False(t, h.sess.IsAuthenticated())
	_, found, _ := h.store.Get(context.Background(), common.RefreshTokenKey)
	require.False(t, found)
	require.Equal(t, []string{notify.SessionExpiredMessage}, h.notifications())
	require.Equal(t, []navSnapshot{{path: "/login"}}, h.navigations())
}

func TestClient_TransportErrorIsNotRecovered(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	api := newFakeAPI(t, "good")
	h := newHarness(t, api, false)
	h.seed(t, "good", "r1")

	req, err := http.NewRequest(http.MethodGet, "http://"+addr+"/api/rooms", nil)
	require.NoError(t, err)
	_, err = h.client.Do(req)
	require.Error(t, err)
	require.False(t, errors.Is(err, auth.ErrRefreshFailed))

	require.EqualValues(t, 0, api.refreshCalls.Load())
	require.True(t, h.sess.IsAuthenticated())
	require.Empty(t, h.notifications())
}

func TestClient_NonUnauthorizedErrorPassesThrough(t *testing.T) {
	api := newFakeAPI(t, "good")
	h := newHarness(t, api, false)
	h.seed(t, "good", "r1")

	req, err := http.NewRequest(http.MethodGet, api.srv.URL+"/api/missing", nil)
	require.NoError(t, err)
	resp, err := h.client.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	readBody(t, resp)
	require.EqualValues(t, 0, api.refreshCalls.Load())
}

// concurrentRefresh holds the refresh response until n requests have been rejected,
// so every request is in its 401 episode while the refresh is in flight.
func concurrentRefresh(t *testing.T, api *fakeAPI, n int32) http.HandlerFunc {
	issue := api.issue("new-access")
	return func(w http.ResponseWriter, r *http.Request) {
		deadline := time.Now().Add(5 * time.Second)
		for api.unauthorizedCalls.Load() < n && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}
		issue(w, r)
	}
}

func runConcurrent(t *testing.T, h *harness, n int) {
	t.Helper()
	var wg sync.WaitGroup
	statuses := make([]int, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req, err := http.NewRequest(http.MethodGet, h.api.roomsURL(), nil)
			if err != nil {
				errs[i] = err
				return
			}
			resp, err := h.client.Do(req)
			if err != nil {
				errs[i] = err
				return
			}
			statuses[i] = resp.StatusCode
			_ = resp.Body.Close()
		}(i)
	}
	wg.Wait()
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, http.StatusOK, statuses[i])
	}
}

func TestClient_ConcurrentUnauthorizedShareOneRefresh(t *testing.T) {
	const n = 5
	api := newFakeAPI(t, "other")
	api.refresh = concurrentRefresh(t, api, n)
	h := newHarness(t, api, false)
	h.seed(t, "old-access", "r1")

	runConcurrent(t, h, n)

	require.EqualValues(t, 1, api.refreshCalls.Load())
	require.EqualValues(t, 2*n, api.resourceCalls.Load())
}

func TestClient_WithoutSingleFlightEveryRequestRefreshes(t *testing.T) {
	const n = 4
	api := newFakeAPI(t, "other")
	api.refresh = concurrentRefresh(t, api, n)
	h := newHarness(t, api, true)
	h.seed(t, "old-access", "r1")

	runConcurrent(t, h, n)

	require.EqualValues(t, n, api.refreshCalls.Load())
}

func TestClient_LoginRestoreAndSignOut(t *testing.T) {
	api := newFakeAPI(t, "good")
	h := newHarness(t, api, false)
	ctx := context.Background()

	restored, err := h.client.Restore(ctx)
	require.NoError(t, err)
	require.False(t, restored)

	require.Error(t, h.client.Login(ctx, "", "r", nil))
	require.NoError(t, h.client.Login(ctx, "good", "r1", nil))
	require.True(t, h.sess.IsAuthenticated())

	h.sess.Logout()
	restored, err = h.client.Restore(ctx)
	require.NoError(t, err)
	require.True(t, restored)
	require.True(t, h.sess.IsAuthenticated())

	require.NoError(t, h.client.SignOut(ctx))
	require.False(t, h.sess.IsAuthenticated())
}

func TestNewClient_RequiresStore(t *testing.T) {
	_, err := auth.NewClient(auth.Options{BaseURL: "http://localhost"})
	require.ErrorContains(t, err, "token store is required")
}
