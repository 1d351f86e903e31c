package creditdesk

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/creditdesk/creditdesk-go/token"
	"github.com/golang-jwt/jwt/v4"
	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/require"
)

const sessionCookie = "creditdesk_session"

// fakeAPI is a minimal creditdesk server. A request is authorized when
// it carries a bearer header matching validToken; a refresh succeeds
// when the session cookie is present and refreshTo is set, and rotates
// validToken to refreshTo.
type fakeAPI struct {
	srv *httptest.Server

	mu           sync.Mutex
	validToken   string
	refreshTo    string
	rejectAll    bool
	refreshCount int
	identityHits int
	dataHits     int
	purchaseHits int
}

func newFakeAPI(t *testing.T) *fakeAPI {
	f := &fakeAPI{}

	router := httprouter.New()
	router.POST("/api/refresh", f.handleRefresh)
	router.GET("/api/user", f.handleUser)
	router.GET("/api/data", f.handleData)
	router.POST("/api/purchase", f.handlePurchase)
	router.POST("/api/logout", f.handleLogout)
	router.GET("/api/boom", f.handleBoom)

	f.srv = httptest.NewServer(router)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeAPI) authorized(r *http.Request) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rejectAll || f.validToken == "" {
		return false
	}
	return r.Header.Get("Authorization") == "Bearer "+f.validToken
}

func (f *fakeAPI) handleRefresh(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshCount++

	if cookie, err := r.Cookie(sessionCookie); err != nil || cookie.Value != "evidence" {
		http.Error(w, "no session", http.StatusUnauthorized)
		return
	}
	if f.refreshTo == "" {
		http.Error(w, "session expired", http.StatusForbidden)
		return
	}

	f.validToken = f.refreshTo
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"accessToken":%q}`, f.refreshTo)
}

func (f *fakeAPI) handleUser(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	f.mu.Lock()
	f.identityHits++
	f.mu.Unlock()

	if !f.authorized(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"id":"u1","credits":5}`))
}

func (f *fakeAPI) handleData(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	f.mu.Lock()
	f.dataHits++
	f.mu.Unlock()

	if !f.authorized(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"items":[1,2,3]}`))
}

func (f *fakeAPI) handlePurchase(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	f.purchaseHits++
	f.mu.Unlock()

	if !f.authorized(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status":"ok","order":%s}`, body)
}

func (f *fakeAPI) handleLogout(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	f.mu.Lock()
	f.validToken = ""
	f.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (f *fakeAPI) handleBoom(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	http.Error(w, "document store unavailable", http.StatusInternalServerError)
}

func (f *fakeAPI) counts() (refresh, identity, data, purchase int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshCount, f.identityHits, f.dataHits, f.purchaseHits
}

func newTestClient(t *testing.T, f *fakeAPI) *Client {
	conf := &Config{
		API:    APIConfig{URL: f.srv.URL},
		Mirror: MirrorConfig{Backend: "file", Dir: t.TempDir()},
	}
	client, err := NewClient(conf)
	require.NoError(t, err)

	// Ambient session evidence, normally set by the login flow.
	client.rest.SetCookie(&http.Cookie{Name: sessionCookie, Value: "evidence"})
	return client
}

// mintToken signs a throwaway JWT so bearer strings look like the real
// thing on the wire. The client itself never parses them.
func mintToken(t *testing.T, subject string) token.Credential {
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-signing-key"))
	require.NoError(t, err)
	return token.Credential(signed)
}
