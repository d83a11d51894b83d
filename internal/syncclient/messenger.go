package syncclient

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/worksmarter/internal/models"
)

// ErrEmptyMessage rejects blank messages before any network call.
var ErrEmptyMessage = errors.New("message cannot be empty")

// Messenger posts to table threads with a pending local copy.
type Messenger struct {
	api      API
	store    *Store
	notifier Notifier
	logger   *zap.Logger
	emit     func()
	newKey   func() string
}

func newMessenger(api API, store *Store, notifier Notifier, logger *zap.Logger, emit func()) *Messenger {
	return &Messenger{api: api, store: store, notifier: notifier, logger: logger, emit: emit, newKey: uuid.NewString}
}

// SetDraft keeps the unsent text for the caller's table.
func (m *Messenger) SetDraft(text string) {
	m.store.SetMessageDraft(text)
}

// Send posts text to tableID. The message shows as pending until the
// server's copy, matched by client key, replaces it.
func (m *Messenger) Send(ctx context.Context, tableID, text string) (*models.Message, error) {
	content := strings.TrimSpace(text)
	if content == "" {
		return nil, ErrEmptyMessage
	}

	key := m.newKey()
	m.store.AddPending(tableID, PendingMessage{ClientKey: key, Content: content, CreatedAt: time.Now().UTC()})
	m.emit()

	msg, err := m.api.SendMessage(ctx, tableID, content, key)
	if err != nil {
		m.store.RemovePending(tableID, key)
		m.emit()
		m.logger.Info("message send failed", zap.String("table_id", tableID), zap.Error(err))
		m.notifier.Notify(LevelError, "Message not sent. "+userMessage(err))
		return nil, err
	}
	if msg.ClientKey == nil {
		msg.ClientKey = &key
	}
	m.store.ConfirmMessage(tableID, msg)
	if mine := m.store.MyTableID(); mine != nil && *mine == tableID {
		m.store.SetMessageDraft("")
	}
	m.emit()
	return msg, nil
}
