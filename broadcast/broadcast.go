// broadcast/broadcast.go
package broadcast

import (
	"errors"
	"fmt"

	"github.com/SanderKaatee/yahtzee/session"
)

var (
	ErrSessionNotFound = errors.New("session not found")
)

// 广播接口
type Broadcaster interface {
	BroadcastToRoom(roomID string, msgID uint16, data []byte) error
	BroadcastToAll(msgID uint16, data []byte) error
	SendToSession(sessionID string, msgID uint16, data []byte) error
}

// SessionBroadcaster 基于会话绑定关系的广播器
type SessionBroadcaster struct {
	sessionManager *session.Manager
}

func NewSessionBroadcaster(sessionManager *session.Manager) *SessionBroadcaster {
	return &SessionBroadcaster{
		sessionManager: sessionManager,
	}
}

// BroadcastToRoom 发给房间内所有会话。单个会话失败不影响其余会话
func (b *SessionBroadcaster) BroadcastToRoom(roomID string, msgID uint16, data []byte) error {
	return b.sendAll(b.sessionManager.GetByRoom(roomID), msgID, data)
}

// BroadcastToAll 大厅广播，发给所有在线连接
func (b *SessionBroadcaster) BroadcastToAll(msgID uint16, data []byte) error {
	return b.sendAll(b.sessionManager.All(), msgID, data)
}

func (b *SessionBroadcaster) SendToSession(sessionID string, msgID uint16, data []byte) error {
	s, ok := b.sessionManager.Get(sessionID)
	if !ok {
		return ErrSessionNotFound
	}
	return s.Send(msgID, data)
}

// sendAll returns the joined send errors. 断开由读循环负责
func (b *SessionBroadcaster) sendAll(sessions []*session.Session, msgID uint16, data []byte) error {
	var errs []error
	for _, s := range sessions {
		if err := s.Send(msgID, data); err != nil {
			errs = append(errs, fmt.Errorf("session %s: %w", s.ID, err))
		}
	}
	return errors.Join(errs...)
}
