package service

import (
	"errors"
	"log/slog"
	"sort"
	"sync"
)

// roomMembers 是單一房間的成員索引
//
// 對成員的修改與據此建立的廣播名單都在 mu 內完成。
type roomMembers struct {
	mu       sync.Mutex
	sessions map[*Session]struct{}
	dead     bool // 已從 Registry 移除，不可再加入
}

// Registry 是行程內所有連線 session 與其房間成員關係的登記表
//
// 鎖的順序固定為 Registry.mu -> roomMembers.mu -> Session.mu，
// 持有 roomMembers.mu 時不會再取得 Registry.mu，因此不同房間互不阻塞。
type Registry struct {
	mu         sync.Mutex
	sessions   map[*Session]struct{}
	identities map[string]int
	rooms      map[string]*roomMembers
	logger     *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		sessions:   make(map[*Session]struct{}),
		identities: make(map[string]int),
		rooms:      make(map[string]*roomMembers),
		logger:     logger,
	}
}

// Register 登記新的 session
func (r *Registry) Register(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[s]; ok {
		return errors.New("service: session already registered")
	}
	r.sessions[s] = struct{}{}
	r.identities[s.identity]++
	return nil
}

// RegisterUnique 只在沒有其他 session 使用相同身分時登記，用於訪客
func (r *Registry) RegisterUnique(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[s]; ok || r.identities[s.identity] > 0 {
		return false
	}
	r.sessions[s] = struct{}{}
	r.identities[s.identity]++
	return true
}

// HasIdentity 回傳是否有連線中的 session 使用該身分
func (r *Registry) HasIdentity(identity string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.identities[identity] > 0
}

// room 取得房間索引，create 為 true 時不存在就建立
func (r *Registry) room(roomID string, create bool) *roomMembers {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[roomID]
	if !ok && create {
		rm = &roomMembers{sessions: make(map[*Session]struct{})}
		r.rooms[roomID] = rm
	}
	return rm
}

// prune 在房間沒有成員時移除索引
func (r *Registry) prune(roomID string, rm *roomMembers) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm.mu.Lock()
	defer rm.mu.Unlock()
	if len(rm.sessions) == 0 && r.rooms[roomID] == rm {
		rm.dead = true
		delete(r.rooms, roomID)
	}
}

// Join 把房間加入 session 的房間集合並廣播成員名單（包含加入者）
//
// 重複加入不改變狀態，但仍會廣播。session 已斷線時回傳 false。
func (r *Registry) Join(s *Session, roomID string) bool {
	for {
		rm := r.room(roomID, true)
		rm.mu.Lock()
		if rm.dead {
			rm.mu.Unlock()
			continue
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			rm.mu.Unlock()
			r.prune(roomID, rm)
			return false
		}
		s.rooms[roomID] = struct{}{}
		s.mu.Unlock()

		rm.sessions[s] = struct{}{}
		r.broadcastMembersLocked(roomID, rm)
		rm.mu.Unlock()
		return true
	}
}

// Leave 把房間從 session 移除，並廣播給剩下的成員
//
// session 不在房間內時不做任何事並回傳 false。
func (r *Registry) Leave(s *Session, roomID string) bool {
	rm := r.room(roomID, false)
	if rm == nil {
		return false
	}

	rm.mu.Lock()
	removed := r.removeLocked(rm, s, roomID)
	if removed {
		r.broadcastMembersLocked(roomID, rm)
	}
	empty := len(rm.sessions) == 0
	rm.mu.Unlock()

	if empty {
		r.prune(roomID, rm)
	}
	return removed
}

// Kick 對房間內所有屬於 identity 的 session 先送出 notice，再移出房間，
// 最後廣播一次成員名單。回傳被移出的 session 數。
func (r *Registry) Kick(roomID, identity string, notice []byte) int {
	rm := r.room(roomID, false)
	if rm == nil {
		return 0
	}

	rm.mu.Lock()
	kicked := 0
	for s := range rm.sessions {
		if s.identity != identity {
			continue
		}
		s.Send(notice)
		if r.removeLocked(rm, s, roomID) {
			kicked++
		}
	}
	if kicked > 0 {
		r.broadcastMembersLocked(roomID, rm)
	}
	empty := len(rm.sessions) == 0
	rm.mu.Unlock()

	if empty {
		r.prune(roomID, rm)
	}
	return kicked
}

// OnDisconnect 移除 session，並對它加入過的每個房間廣播新的成員名單
//
// 重複呼叫是安全的；第二次呼叫回傳 nil。
func (r *Registry) OnDisconnect(s *Session) []string {
	r.mu.Lock()
	if _, ok := r.sessions[s]; !ok {
		r.mu.Unlock()
		return nil
	}
	delete(r.sessions, s)
	if r.identities[s.identity]--; r.identities[s.identity] <= 0 {
		delete(r.identities, s.identity)
	}
	r.mu.Unlock()

	s.mu.Lock()
	s.closed = true
	rooms := make([]string, 0, len(s.rooms))
	for id := range s.rooms {
		rooms = append(rooms, id)
	}
	s.mu.Unlock()
	sort.Strings(rooms)

	left := make([]string, 0, len(rooms))
	for _, roomID := range rooms {
		if r.Leave(s, roomID) {
			left = append(left, roomID)
		}
	}
	return left
}

// MembersOf 回傳房間內成員身分的快照（去重、排序）
func (r *Registry) MembersOf(roomID string) []string {
	rm := r.room(roomID, false)
	if rm == nil {
		return []string{}
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return membersLocked(rm)
}

// Broadcast 送訊息給房間內除 except 以外的所有 session，回傳送出的數量
func (r *Registry) Broadcast(roomID string, data []byte, except *Session) int {
	rm := r.room(roomID, false)
	if rm == nil {
		return 0
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()
	sent := 0
	for s := range rm.sessions {
		if s == except {
			continue
		}
		if s.Send(data) {
			sent++
		}
	}
	return sent
}

// Stats 回傳連線數與有成員的房間數
func (r *Registry) Stats() (sessions, rooms int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions), len(r.rooms)
}

func (r *Registry) removeLocked(rm *roomMembers, s *Session, roomID string) bool {
	if _, ok := rm.sessions[s]; !ok {
		return false
	}
	delete(rm.sessions, s)
	s.mu.Lock()
	delete(s.rooms, roomID)
	s.mu.Unlock()
	return true
}

func (r *Registry) broadcastMembersLocked(roomID string, rm *roomMembers) {
	data := encode(MembersMessage{
		Type:    TypeMembers,
		RoomID:  roomID,
		Members: membersLocked(rm),
	})
	for s := range rm.sessions {
		if !s.Send(data) {
			r.logger.Debug("members broadcast not delivered", "room", roomID, "session", s.id)
		}
	}
}

func membersLocked(rm *roomMembers) []string {
	seen := make(map[string]struct{}, len(rm.sessions))
	members := make([]string, 0, len(rm.sessions))
	for s := range rm.sessions {
		if _, ok := seen[s.identity]; ok {
			continue
		}
		seen[s.identity] = struct{}{}
		members = append(members, s.identity)
	}
	sort.Strings(members)
	return members
}
