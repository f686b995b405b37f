// Package testutil provides shared fixtures for tests that talk to a chat
// backend.
package testutil

import (
	"net/http/httptest"
	"testing"

	"github.com/andertben/skillspot-chat/internal/mockapi"
)

// Fixture identities. Alice requests services, Bob provides them.
const (
	AliceToken   = "tok-alice"
	AliceSubject = "alice"
	BobToken     = "tok-bob"
	BobSubject   = "bob"
)

// ChatBackend is a mock backend served on loopback HTTP.
type ChatBackend struct {
	*mockapi.Server

	// URL is the base URL of the HTTP server.
	URL string
	// ThreadID is Alice's thread about the "Gartenpflege" service.
	ThreadID string
}

// NewChatBackend starts a backend with Alice, Bob, two of Bob's services and
// one empty thread. The server is closed when the test ends.
func NewChatBackend(t *testing.T) *ChatBackend {
	t.Helper()
	SkipIfNoNetwork(t)

	backend := mockapi.New()
	backend.AddUser(AliceToken, AliceSubject, "Alice")
	backend.AddUser(BobToken, BobSubject, "Bob")
	backend.AddService(mockapi.Service{ID: "svc-garden", Title: "Gartenpflege", ProviderSub: BobSubject, ProviderName: "Bob"})
	backend.AddService(mockapi.Service{ID: "svc-move", Title: "Umzugshilfe", ProviderSub: BobSubject, ProviderName: "Bob"})
	threadID, ok := backend.CreateThread("svc-garden", AliceSubject)
	if !ok {
		t.Fatal("create fixture thread")
	}

	return &ChatBackend{Server: backend, URL: Serve(t, backend), ThreadID: threadID}
}

// Serve exposes backend over HTTP until the test ends and returns its URL.
func Serve(t *testing.T, backend *mockapi.Server) string {
	t.Helper()
	SkipIfNoNetwork(t)
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)
	return srv.URL
}
