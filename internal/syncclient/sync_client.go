// Package syncclient keeps a local copy of a classroom's seating, table
// threads and discussion prompts fresh by polling, and applies the user's
// seat, message and prompt actions with optimistic local updates.
package syncclient

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/worksmarter/internal/client"
)

// Poll keys.
const (
	KeyTables   = "tables"
	KeyMessages = "messages"
	KeyPrompts  = "prompts"
)

// EventType identifies a state change worth re-rendering for.
type EventType string

const (
	// EventTableChanged fires when the caller's table moved. Table-scoped
	// drafts and markers have already been cleared.
	EventTableChanged EventType = "table_changed"
	// EventViewUpdated fires after any accepted state change.
	EventViewUpdated EventType = "view_updated"
)

// Event is delivered on SyncClient.Events.
type Event struct {
	Type EventType
	From *string
	To   *string
}

// Config configures a SyncClient.
type Config struct {
	ClassroomID string
	// AssignmentID enables the student prompts poll.
	AssignmentID string
	// UserID identifies the caller's own seat.
	UserID   string
	UserName string

	TablesInterval   time.Duration
	MessagesInterval time.Duration
	PromptsInterval  time.Duration
	RequestTimeout   time.Duration
	MaxBackoff       time.Duration

	Logger   *zap.Logger
	Notifier Notifier
}

// SyncClient owns the polling loop and the action controllers of one
// classroom session.
type SyncClient struct {
	api      API
	store    *Store
	poller   *Poller
	notifier Notifier
	logger   *zap.Logger
	cfg      Config
	events   chan Event

	Seats     *SeatController
	Messenger *Messenger
	Prompts   *PromptWorkflow
}

// New constructs a SyncClient. Nothing is fetched until Start or Refresh.
func New(api API, cfg Config) *SyncClient {
	if cfg.TablesInterval <= 0 {
		cfg.TablesInterval = 3 * time.Second
	}
	if cfg.MessagesInterval <= 0 {
		cfg.MessagesInterval = 5 * time.Second
	}
	if cfg.PromptsInterval <= 0 {
		cfg.PromptsInterval = 15 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Notifier == nil {
		cfg.Notifier = nopNotifier{}
	}

	sc := &SyncClient{
		api:      api,
		store:    NewStore(cfg.ClassroomID, cfg.UserID),
		notifier: cfg.Notifier,
		logger:   cfg.Logger.With(zap.String("classroom_id", cfg.ClassroomID)),
		cfg:      cfg,
		events:   make(chan Event, 32),
	}
	sc.poller = NewPoller(PollerConfig{Timeout: cfg.RequestTimeout, MaxBackoff: cfg.MaxBackoff, Logger: sc.logger})
	sc.Seats = &SeatController{api: api, store: sc.store, notifier: sc.notifier, logger: sc.logger, classroomID: cfg.ClassroomID, self: cfg.UserID, selfName: cfg.UserName, emit: sc.emitChange}
	sc.Messenger = newMessenger(api, sc.store, sc.notifier, sc.logger, sc.emitUpdate)
	sc.Prompts = &PromptWorkflow{api: api, store: sc.store, notifier: sc.notifier, logger: sc.logger, emit: sc.emitUpdate}
	return sc
}

// Store exposes the underlying state, mostly for rendering and tests.
func (sc *SyncClient) Store() *Store {
	return sc.store
}

// View returns a copy of the current state.
func (sc *SyncClient) View() View {
	return sc.store.View()
}

// Events delivers state changes. Events are dropped when the consumer
// falls behind; View is always current.
func (sc *SyncClient) Events() <-chan Event {
	return sc.events
}

// Refresh fetches the seating snapshot and adopts it unless a local seat
// change makes it stale.
func (sc *SyncClient) Refresh(ctx context.Context) error {
	startSeq := sc.store.BeginPoll()
	snapshot, err := sc.api.Tables(ctx, sc.cfg.ClassroomID)
	if err != nil {
		return err
	}
	applied, change := sc.store.ApplySnapshot(startSeq, snapshot)
	if !applied {
		sc.logger.Debug("stale snapshot discarded", zap.Int64("version", snapshot.Version), zap.Uint64("start_seq", startSeq))
		return nil
	}
	sc.emitChange(change)
	return nil
}

// RefreshMessages fetches new messages of the caller's table.
func (sc *SyncClient) RefreshMessages(ctx context.Context) error {
	tableID := sc.store.MyTableID()
	if tableID == nil {
		return nil
	}
	msgs, err := sc.api.Messages(ctx, *tableID, sc.store.LastMessageID(*tableID))
	if err != nil {
		return err
	}
	if sc.store.ApplyMessages(*tableID, msgs) > 0 {
		sc.emitUpdate()
	}
	return nil
}

// RefreshPrompts fetches the latest prompt run for the caller's table.
func (sc *SyncClient) RefreshPrompts(ctx context.Context) error {
	if sc.cfg.AssignmentID == "" || sc.store.MyTableID() == nil {
		return nil
	}
	err := sc.Prompts.FetchLatest(ctx, sc.cfg.AssignmentID)
	if client.HasCode(err, client.CodeNotSeated) {
		return nil
	}
	return err
}

// Start loads the initial snapshot and begins polling. A failed initial
// load is logged; polling retries it.
func (sc *SyncClient) Start(ctx context.Context) error {
	if err := sc.poller.Add(KeyTables, sc.cfg.TablesInterval, sc.Refresh); err != nil {
		return err
	}
	if err := sc.poller.Add(KeyMessages, sc.cfg.MessagesInterval, sc.RefreshMessages); err != nil {
		return err
	}
	if sc.cfg.AssignmentID != "" {
		if err := sc.poller.Add(KeyPrompts, sc.cfg.PromptsInterval, sc.RefreshPrompts); err != nil {
			return err
		}
	}
	if err := sc.poller.Trigger(ctx, KeyTables); err != nil {
		sc.logger.Warn("initial snapshot failed", zap.Error(err))
	}
	sc.poller.Start()
	return nil
}

// Stop cancels polling and waits for in-flight fetches.
func (sc *SyncClient) Stop() {
	sc.poller.Stop()
}

// Pause suspends polling while the view is hidden.
func (sc *SyncClient) Pause() {
	sc.poller.Pause()
}

// Resume restarts polling and refreshes immediately.
func (sc *SyncClient) Resume(ctx context.Context) {
	sc.poller.Resume()
	if err := sc.poller.Trigger(ctx, KeyTables); err != nil {
		sc.logger.Debug("refresh on resume failed", zap.Error(err))
	}
}

func (sc *SyncClient) emitChange(change *TableChange) {
	if change != nil {
		sc.logger.Info("table changed", zap.Stringp("from", change.From), zap.Stringp("to", change.To))
		sc.emit(Event{Type: EventTableChanged, From: change.From, To: change.To})
	}
	sc.emitUpdate()
}

func (sc *SyncClient) emitUpdate() {
	sc.emit(Event{Type: EventViewUpdated})
}

func (sc *SyncClient) emit(ev Event) {
	select {
	case sc.events <- ev:
	default:
		sc.logger.Debug("event dropped", zap.String("type", string(ev.Type)))
	}
}
