package service

import (
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// ErrSessionClosed 表示 session 已經斷線
var ErrSessionClosed = errors.New("service: session closed")

// Conn 是 session 用來送出訊息的連線
//
// Send 不可阻塞；緩衝已滿或連線已關閉時回傳錯誤。
type Conn interface {
	Send(data []byte) error
	Close() error
}

// Session 代表一條已解析身分的連線
//
// 只有 Registry 會修改 rooms 與 closed，其他元件只讀取。
type Session struct {
	id       string
	identity string
	guest    bool
	conn     Conn
	limiter  *rate.Limiter

	mu     sync.Mutex
	rooms  map[string]struct{}
	closed bool

	disconnectOnce sync.Once
}

func newSession(identity string, guest bool, conn Conn, limiter *rate.Limiter) *Session {
	return &Session{
		id:       uuid.NewString(),
		identity: identity,
		guest:    guest,
		conn:     conn,
		limiter:  limiter,
		rooms:    make(map[string]struct{}),
	}
}

// ID 是連線本身的識別碼，同一身分的兩條連線 ID 不同
func (s *Session) ID() string { return s.id }

func (s *Session) Identity() string { return s.identity }

func (s *Session) Guest() bool { return s.guest }

// Rooms 回傳目前加入的房間（已排序）
func (s *Session) Rooms() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	rooms := make([]string, 0, len(s.rooms))
	for id := range s.rooms {
		rooms = append(rooms, id)
	}
	sort.Strings(rooms)
	return rooms
}

// InRoom 回傳 session 是否在房間內
func (s *Session) InRoom(roomID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.rooms[roomID]
	return ok
}

// Send 把訊息排入連線的發送佇列；佇列滿時關閉連線，讓讀取迴圈走斷線清理
func (s *Session) Send(data []byte) bool {
	if err := s.conn.Send(data); err != nil {
		if !errors.Is(err, ErrSessionClosed) {
			go s.conn.Close()
		}
		return false
	}
	return true
}

// allow 套用入站速率限制
func (s *Session) allow() bool {
	if s.limiter == nil {
		return true
	}
	return s.limiter.Allow()
}
