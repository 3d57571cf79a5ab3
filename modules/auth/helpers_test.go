package auth_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guarzo/staybook/common"
	"github.com/guarzo/staybook/modules/auth"
	"github.com/guarzo/staybook/modules/navigation"
	"github.com/guarzo/staybook/modules/notify"
	"github.com/guarzo/staybook/modules/session"
	"github.com/guarzo/staybook/modules/store"
)

// navSnapshot is the state observed at the moment of a forced redirect.
type navSnapshot struct {
	path          string
	authenticated bool
	hasAccess     bool
	hasRefresh    bool
}

// fakeAPI is a booking API that accepts exactly one access token at a time.
type fakeAPI struct {
	t   *testing.T
	srv *httptest.Server

	mu          sync.Mutex
	validToken  string
	authHeaders []string
	bodies      []string

	refreshCalls      atomic.Int32
	resourceCalls     atomic.Int32
	unauthorizedCalls atomic.Int32

	// refresh answers POST /api/auth/refresh; defaults to issuing "new-access".
	refresh http.HandlerFunc
}

func newFakeAPI(t *testing.T, validToken string) *fakeAPI {
	t.Helper()
	f := &fakeAPI{t: t, validToken: validToken}
	f.refresh = f.issue("new-access")

	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		f.refreshCalls.Add(1)
		f.refresh(w, r)
	})
	mux.HandleFunc("/api/rooms", func(w http.ResponseWriter, r *http.Request) {
		f.resourceCalls.Add(1)
		body, _ := io.ReadAll(r.Body)

		f.mu.Lock()
		f.authHeaders = append(f.authHeaders, r.Header.Get("Authorization"))
		f.bodies = append(f.bodies, string(body))
		ok := r.Header.Get("Authorization") == "Bearer "+f.validToken
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if !ok {
			f.unauthorizedCalls.Add(1)
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"data":null,"code":401,"message":"unauthorized"}`)
			return
		}
		fmt.Fprint(w, `{"data":[{"id":"r1"}],"code":200,"message":"ok","total":1}`)
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

// issue returns a refresh handler that rotates the valid token to token.
func (f *fakeAPI) issue(token string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Contains(f.t, string(body), `"refreshToken"`)

		f.mu.Lock()
		f.validToken = token
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"data":{"accessToken":%q},"code":200,"message":"ok"}`, token)
	}
}

func (f *fakeAPI) headers() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.authHeaders...)
}

func (f *fakeAPI) requestBodies() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.bodies...)
}

func (f *fakeAPI) roomsURL() string {
	return f.srv.URL + "/api/rooms"
}

type harness struct {
	api    *fakeAPI
	store  *store.MemoryStore
	sess   *session.Session
	client *auth.Client

	mu    sync.Mutex
	notes []string
	navs  []navSnapshot
}

func newHarness(t *testing.T, api *fakeAPI, disableSingleFlight bool) *harness {
	t.Helper()
	h := &harness{
		api:   api,
		store: store.NewMemoryStore(),
		sess:  session.New(),
	}

	client, err := auth.NewClient(auth.Options{
		BaseURL:             api.srv.URL + "/api",
		UserAgent:           "staybook-test",
		DisableSingleFlight: disableSingleFlight,
		Deps: auth.Deps{
			Store:   h.store,
			Session: h.sess,
			Notifier: notify.NotifierFunc(func(_ context.Context, _ notify.Level, message string) {
				h.mu.Lock()
				h.notes = append(h.notes, message)
				h.mu.Unlock()
			}),
			Navigator: navigation.NavigatorFunc(func(ctx context.Context, path string) {
				_, hasAccess, _ := h.store.Get(ctx, common.AccessTokenKey)
				_, hasRefresh, _ := h.store.Get(ctx, common.RefreshTokenKey)
				h.mu.Lock()
				h.navs = append(h.navs, navSnapshot{
					path:          path,
					authenticated: h.sess.IsAuthenticated(),
					hasAccess:     hasAccess,
					hasRefresh:    hasRefresh,
				})
				h.mu.Unlock()
			}),
		},
	})
	require.NoError(t, err)
	h.client = client
	return h
}

func (h *harness) seed(t *testing.T, access, refresh string) {
	t.Helper()
	ctx := context.Background()
	if access != "" {
		require.NoError(t, h.store.Set(ctx, common.AccessTokenKey, access, common.AccessTokenTTL))
	}
	if refresh != "" {
		require.NoError(t, h.store.Set(ctx, common.RefreshTokenKey, refresh, 0))
	}
	h.sess.Login(nil)
}

func (h *harness) get(t *testing.T, ctx context.Context) (*http.Response, error) {
	t.Helper()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.api.roomsURL(), nil)
	require.NoError(t, err)
	return h.client.Do(req)
}

func (h *harness) post(t *testing.T, body string) (*http.Response, error) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, h.api.roomsURL(), strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	return h.client.Do(req)
}

func (h *harness) notifications() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.notes...)
}

func (h *harness) navigations() []navSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]navSnapshot(nil), h.navs...)
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}
