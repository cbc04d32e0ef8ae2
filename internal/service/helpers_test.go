package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"sketch_room/internal/models"
	"sketch_room/internal/repository"
)

// mockConn 記錄送出的訊息
type mockConn struct {
	mu      sync.Mutex
	sent    [][]byte
	closed  bool
	sendErr error
}

func (c *mockConn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrSessionClosed
	}
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, data)
	return nil
}

func (c *mockConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *mockConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *mockConn) messages(t *testing.T) []map[string]interface{} {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]map[string]interface{}, 0, len(c.sent))
	for _, raw := range c.sent {
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal(raw, &m))
		out = append(out, m)
	}
	return out
}

func (c *mockConn) ofType(t *testing.T, msgType string) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, m := range c.messages(t) {
		if m["type"] == msgType {
			out = append(out, m)
		}
	}
	return out
}

func (c *mockConn) types(t *testing.T) []string {
	t.Helper()
	var out []string
	for _, m := range c.messages(t) {
		out = append(out, m["type"].(string))
	}
	return out
}

func (c *mockConn) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = nil
}

// fakeVerifier 把 "token-<id>" 視為 <id> 的有效憑證
type fakeVerifier struct{}

func (fakeVerifier) Verify(credential string) (string, error) {
	id, ok := strings.CutPrefix(credential, "token-")
	if !ok || id == "" {
		return "", errors.New("bad token")
	}
	return id, nil
}

// sequentialGuests 依序產生 guest-1、guest-2...
func sequentialGuests() GuestGenerator {
	var mu sync.Mutex
	n := 0
	return GuestGeneratorFunc(func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s%d", GuestPrefix, n)
	})
}

// failingShapes 讓所有寫入失敗
type failingShapes struct {
	repository.ShapeRepository
	calls int
}

func (f *failingShapes) Create(context.Context, *models.Shape) error {
	f.calls++
	return errors.New("disk full")
}

type testEnv struct {
	handler  *Handler
	registry *Registry
	mod      *Moderation
	dir      *RoomDirectory
	store    *repository.MemoryStore
}

func newTestEnv(t *testing.T, rooms map[string]string) *testEnv {
	t.Helper()
	store := repository.NewMemoryStore()
	for id, owner := range rooms {
		require.NoError(t, store.Rooms().Create(context.Background(), &models.Room{ID: id, Slug: id, OwnerID: owner}))
	}
	return newTestEnvWithShapes(t, store, store)
}

func newTestEnvWithShapes(t *testing.T, store *repository.MemoryStore, shapes repository.ShapeRepository) *testEnv {
	t.Helper()
	registry := NewRegistry(nil)
	dir := NewRoomDirectory(store.Rooms(), nil)
	mod := NewModeration()
	h := NewHandler(registry, dir, mod, shapes, fakeVerifier{}, HandlerOptions{Guests: sequentialGuests()})
	return &testEnv{handler: h, registry: registry, mod: mod, dir: dir, store: store}
}

func (e *testEnv) connect(t *testing.T, credential string) (*Session, *mockConn) {
	t.Helper()
	conn := &mockConn{}
	s, err := e.handler.Connect(conn, credential)
	require.NoError(t, err)
	return s, conn
}

func (e *testEnv) send(s *Session, msg map[string]interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		panic(err)
	}
	e.handler.Handle(context.Background(), s, data)
}

func repositoryWithRoom(t *testing.T, roomID, owner string) *repository.MemoryStore {
	t.Helper()
	store := repository.NewMemoryStore()
	require.NoError(t, store.Rooms().Create(context.Background(), &models.Room{ID: roomID, Slug: roomID, OwnerID: owner}))
	return store
}
