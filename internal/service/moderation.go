package service

import "sync"

// Moderation 保存每個房間的封鎖名單
//
// 權限檢查（發送者必須是房主）由 Handler 負責，這裡只保存狀態。
type Moderation struct {
	mu      sync.RWMutex
	blocked map[string]map[string]struct{}
}

func NewModeration() *Moderation {
	return &Moderation{blocked: make(map[string]map[string]struct{})}
}

// Block 回傳狀態是否改變
func (m *Moderation) Block(roomID, identity string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	set, ok := m.blocked[roomID]
	if !ok {
		set = make(map[string]struct{})
		m.blocked[roomID] = set
	}
	if _, ok := set[identity]; ok {
		return false
	}
	set[identity] = struct{}{}
	return true
}

// Unblock 回傳狀態是否改變
func (m *Moderation) Unblock(roomID, identity string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	set, ok := m.blocked[roomID]
	if !ok {
		return false
	}
	if _, ok := set[identity]; !ok {
		return false
	}
	delete(set, identity)
	if len(set) == 0 {
		delete(m.blocked, roomID)
	}
	return true
}

func (m *Moderation) IsBlocked(roomID, identity string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.blocked[roomID][identity]
	return ok
}
