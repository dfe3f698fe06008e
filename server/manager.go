package server

import (
	"path/filepath"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sasha-s/go-deadlock"
)

// DefaultServerID 宿主未指定服务器时使用
const DefaultServerID = "default"

// ValidServerID 服务器 ID 会成为目录名，只允许字母数字与 _ - .
func ValidServerID(id string) bool {
	if id == "" || len(id) > 64 || id == "." || id == ".." {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '_' || r == '-' || r == '.':
		default:
			return false
		}
	}
	return true
}

// SessionManager 管理多个宿主服务器会话的生命周期
type SessionManager struct {
	mu       deadlock.RWMutex
	sessions map[string]*Session

	dataDir string
	rules   Rules
	queue   int
	reg     prometheus.Registerer
}

// NewSessionManager 每个会话的存档根目录为 <dataDir>/<server id>；reg 可为 nil
func NewSessionManager(dataDir string, rules Rules, queue int, reg prometheus.Registerer) *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*Session),
		dataDir:  dataDir,
		rules:    rules,
		queue:    queue,
		reg:      reg,
	}
}

// GetOrCreate 获取或创建会话，并确保事件循环已启动
func (m *SessionManager) GetOrCreate(id string) *Session {
	if id == "" {
		id = DefaultServerID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		s = NewSession(id, filepath.Join(m.dataDir, id), m.rules, m.queue)
		m.sessions[id] = s
		if m.reg != nil {
			for _, c := range s.Metrics().Collectors(id, s.Index()) {
				if err := m.reg.Register(c); err != nil {
					Log.Warnf("register metrics for %s: %v", id, err)
				}
			}
		}
		s.Start()
		Log.Infof("session %s created (root=%s)", id, s.Store().Root())
	}
	return s
}

// Get 查找已有会话
func (m *SessionManager) Get(id string) (*Session, bool) {
	if id == "" {
		id = DefaultServerID
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// List 已有会话 ID（有序）
func (m *SessionManager) List() []string {
	m.mu.RLock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Close 停止所有会话并落盘
func (m *SessionManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		s.Stop()
		Log.Infof("session %s stopped", id)
	}
	m.sessions = make(map[string]*Session)
}
