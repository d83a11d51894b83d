package syncclient

import (
	"errors"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/noah-isme/worksmarter/internal/dto"
	"github.com/noah-isme/worksmarter/internal/models"
)

// ErrGenerationInFlight rejects a second generate for a group that is
// still generating.
var ErrGenerationInFlight = errors.New("prompt generation already in progress for this group")

// GenerationState is the per-group prompt generation state machine.
type GenerationState string

const (
	GenerationIdle       GenerationState = "idle"
	GenerationGenerating GenerationState = "generating"
	GenerationSucceeded  GenerationState = "succeeded"
	GenerationFailed     GenerationState = "failed"
)

// PendingMessage is a sent message awaiting its authoritative copy.
type PendingMessage struct {
	ClientKey string
	Content   string
	CreatedAt time.Time
}

// TableState is one table as rendered: occupants in seat order and the
// thread in store order followed by pending sends.
type TableState struct {
	models.Table
	Students        []models.SeatedStudent
	Messages        []models.Message
	Pending         []PendingMessage
	Generation      GenerationState
	GenerationError string
}

// View is a copy of the client state safe to read without locking.
type View struct {
	ClassroomID    string
	Version        int64
	FetchedAt      time.Time
	Tables         []TableState
	MyTableID      *string
	MessageDraft   string
	Prompts        *dto.StudentPromptsView
	Discussed      map[string]bool
	ResponseDrafts map[string]string
}

// Table returns the table with id, or nil.
func (v View) Table(id string) *TableState {
	for i := range v.Tables {
		if v.Tables[i].ID == id {
			return &v.Tables[i]
		}
	}
	return nil
}

// TableChange reports that the caller's table moved.
type TableChange struct {
	From *string
	To   *string
}

// SeatPatch is an optimistic seat move awaiting confirmation.
type SeatPatch struct {
	seq       uint64
	studentID string
	from      *string
	to        *string
	seat      models.SeatedStudent
	wasSeated bool
	moved     bool
}

// Store holds all shared client state behind one mutex. Snapshots from
// polls are reconciled against local optimistic patches: every patch bumps
// a mutation sequence, each poll records the sequence it started at, and
// a snapshot is dropped when it cannot include the latest local change.
type Store struct {
	mu sync.Mutex

	classroomID string
	userID      string
	snapshot    *dto.TablesSnapshot
	myTable     *string

	mutationSeq      uint64
	inFlight         int
	coverVersion     int64
	committedVersion int64
	// seatPatches holds each student's unconfirmed patches in apply order.
	seatPatches map[string][]*SeatPatch
	// seatCommitted is the latest confirmed patch seq per student.
	seatCommitted map[string]uint64

	pending        map[string][]PendingMessage
	generation     map[string]GenerationState
	genErrors      map[string]string
	messageDraft   string
	discussed      map[string]bool
	responseDrafts map[string]string
	prompts        *dto.StudentPromptsView
}

// NewStore returns an empty store for one classroom and caller.
func NewStore(classroomID, userID string) *Store {
	return &Store{
		classroomID:    classroomID,
		userID:         userID,
		pending:        make(map[string][]PendingMessage),
		generation:     make(map[string]GenerationState),
		genErrors:      make(map[string]string),
		discussed:      make(map[string]bool),
		responseDrafts: make(map[string]string),
		seatPatches:    make(map[string][]*SeatPatch),
		seatCommitted:  make(map[string]uint64),
	}
}

// BeginPoll returns the mutation sequence a poll starts at.
func (s *Store) BeginPoll() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mutationSeq
}

// ApplySnapshot replaces the table cache with snap unless it is stale. It
// reports whether the snapshot was adopted and whether the caller's table
// changed as a result.
func (s *Store) ApplySnapshot(startSeq uint64, snap *dto.TablesSnapshot) (bool, *TableChange) {
	if snap == nil {
		return false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.acceptLocked(startSeq, snap.Version) {
		return false, nil
	}
	s.snapshot = cloneSnapshot(snap)
	if snap.Version > s.committedVersion {
		s.committedVersion = snap.Version
	}
	for tableID := range s.pending {
		if t := s.tableLocked(tableID); t != nil {
			s.dropConfirmedLocked(tableID, t.Messages)
		}
	}
	return true, s.resolveMyTableLocked()
}

func (s *Store) acceptLocked(startSeq uint64, version int64) bool {
	if version < s.committedVersion {
		return false
	}
	// An unconfirmed patch may or may not be in any snapshot.
	if s.inFlight > 0 {
		return false
	}
	if startSeq < s.mutationSeq && version < s.coverVersion {
		return false
	}
	return true
}

// ApplySeatPatch moves studentID to table to (nil vacates) locally before
// the server confirms.
func (s *Store) ApplySeatPatch(studentID, name string, to *string) (*SeatPatch, *TableChange) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.mutationSeq++
	s.inFlight++
	s.coverVersion = math.MaxInt64
	patch := &SeatPatch{seq: s.mutationSeq, studentID: studentID, to: copyID(to)}
	s.seatPatches[studentID] = append(s.seatPatches[studentID], patch)
	if sameID(s.snapshot.TableOf(studentID), to) {
		return patch, nil
	}
	patch.moved = true

	if seat, from, ok := s.removeStudentLocked(studentID); ok {
		patch.seat = seat
		patch.from = from
		patch.wasSeated = true
	}
	if to != nil {
		if t := s.tableLocked(*to); t != nil {
			seat := patch.seat
			if !patch.wasSeated {
				seat = models.SeatedStudent{StudentID: studentID, FullName: name}
			}
			seat.TableID = *to
			seat.SeatedAt = time.Now().UTC()
			t.Students = append(t.Students, seat)
		}
	}
	return patch, s.resolveMyTableLocked()
}

// CommitSeat records the server's seating version for a confirmed patch so
// older snapshots are discarded.
func (s *Store) CommitSeat(patch *SeatPatch, version int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight--
	s.dropPatchLocked(patch)
	if patch.seq > s.seatCommitted[patch.studentID] {
		s.seatCommitted[patch.studentID] = patch.seq
	}
	if patch.seq == s.mutationSeq {
		s.coverVersion = version
	}
	if version > s.committedVersion {
		s.committedVersion = version
	}
	if s.snapshot != nil && version > s.snapshot.Version {
		s.snapshot.Version = version
	}
}

// RollbackSeat undoes a rejected patch. When a newer patch for the same
// student is still unconfirmed, the local seat is left alone and the newer
// patch inherits the rejected one's origin, so its own rollback lands where
// the server has the student.
func (s *Store) RollbackSeat(patch *SeatPatch) *TableChange {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight--
	if patch.seq == s.mutationSeq {
		s.coverVersion = 0
	}
	next := s.dropPatchLocked(patch)
	if next != nil {
		if patch.moved {
			next.from = patch.from
			next.seat = patch.seat
			next.wasSeated = patch.wasSeated
			next.moved = true
		}
		return nil
	}
	if !patch.moved || s.newerCommittedLocked(patch) {
		return nil
	}

	s.removeStudentLocked(patch.studentID)
	if patch.wasSeated && patch.from != nil {
		if t := s.tableLocked(*patch.from); t != nil {
			t.Students = append(t.Students, patch.seat)
			sort.SliceStable(t.Students, func(i, j int) bool {
				return t.Students[i].SeatedAt.Before(t.Students[j].SeatedAt)
			})
		}
	}
	return s.resolveMyTableLocked()
}

// dropPatchLocked forgets patch and returns the student's next unconfirmed
// patch after it, if any.
func (s *Store) dropPatchLocked(patch *SeatPatch) *SeatPatch {
	patches := s.seatPatches[patch.studentID]
	for i, p := range patches {
		if p != patch {
			continue
		}
		var next *SeatPatch
		if i+1 < len(patches) {
			next = patches[i+1]
		}
		patches = append(patches[:i], patches[i+1:]...)
		if len(patches) == 0 {
			delete(s.seatPatches, patch.studentID)
		} else {
			s.seatPatches[patch.studentID] = patches
		}
		return next
	}
	return nil
}

// newerCommittedLocked reports whether a later patch for the same student
// has already been confirmed, which makes the student's local seat current.
func (s *Store) newerCommittedLocked(patch *SeatPatch) bool {
	return s.seatCommitted[patch.studentID] > patch.seq
}

// TableOf returns the table the student currently occupies locally.
func (s *Store) TableOf(studentID string) *string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot.TableOf(studentID)
}

// Occupants returns the students seated at tableID.
func (s *Store) Occupants(tableID string) []models.SeatedStudent {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.tableLocked(tableID)
	if t == nil {
		return nil
	}
	return append([]models.SeatedStudent(nil), t.Students...)
}

// MyTableID returns the caller's table.
func (s *Store) MyTableID() *string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyID(s.myTable)
}

// TableIDs lists every table in layout order.
func (s *Store) TableIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snapshot == nil {
		return nil
	}
	ids := make([]string, 0, len(s.snapshot.Tables))
	for _, t := range s.snapshot.Tables {
		ids = append(ids, t.ID)
	}
	return ids
}

// AddPending appends a pending message to tableID.
func (s *Store) AddPending(tableID string, msg PendingMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[tableID] = append(s.pending[tableID], msg)
}

// RemovePending drops the pending message with key.
func (s *Store) RemovePending(tableID, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removePendingLocked(tableID, key)
}

// ConfirmMessage replaces the pending copy with the stored message.
func (s *Store) ConfirmMessage(tableID string, msg *models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg.ClientKey != nil {
		s.removePendingLocked(tableID, *msg.ClientKey)
	}
	if t := s.tableLocked(tableID); t != nil && !hasMessage(t.Messages, msg.ID) {
		t.Messages = append(t.Messages, *msg)
	}
}

// ApplyMessages appends messages newer than the last known one.
func (s *Store) ApplyMessages(tableID string, msgs []models.Message) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.tableLocked(tableID)
	if t == nil {
		return 0
	}
	last := lastMessageID(t.Messages)
	added := 0
	for _, m := range msgs {
		if m.ID > last {
			t.Messages = append(t.Messages, m)
			last = m.ID
			added++
		}
	}
	s.dropConfirmedLocked(tableID, t.Messages)
	return added
}

// LastMessageID returns the newest stored message id of tableID.
func (s *Store) LastMessageID(tableID string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t := s.tableLocked(tableID); t != nil {
		return lastMessageID(t.Messages)
	}
	return 0
}

// SetMessageDraft keeps the unsent message for the caller's table.
func (s *Store) SetMessageDraft(text string) {
	s.mu.Lock()
	s.messageDraft = text
	s.mu.Unlock()
}

// SetPrompts adopts the latest prompt run if it belongs to the caller's
// current table.
func (s *Store) SetPrompts(view *dto.StudentPromptsView) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if view == nil || s.myTable == nil || view.TableID != *s.myTable {
		return false
	}
	cp := *view
	s.prompts = &cp
	return true
}

// MarkDiscussed records that the group has answered promptID.
func (s *Store) MarkDiscussed(promptID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discussed[promptID] = true
	delete(s.responseDrafts, promptID)
}

// SetResponseDraft keeps an unsaved response.
func (s *Store) SetResponseDraft(promptID, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if text == "" {
		delete(s.responseDrafts, promptID)
		return
	}
	s.responseDrafts[promptID] = text
}

// BeginGeneration moves tableID to Generating.
func (s *Store) BeginGeneration(tableID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation[tableID] == GenerationGenerating {
		return ErrGenerationInFlight
	}
	s.generation[tableID] = GenerationGenerating
	delete(s.genErrors, tableID)
	return nil
}

// FinishGeneration records the outcome for tableID. A failed group can be
// generated again.
func (s *Store) FinishGeneration(tableID string, failure string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if failure != "" {
		s.generation[tableID] = GenerationFailed
		s.genErrors[tableID] = failure
		return
	}
	s.generation[tableID] = GenerationSucceeded
	delete(s.genErrors, tableID)
}

// Generation returns the state of tableID.
func (s *Store) Generation(tableID string) GenerationState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.generation[tableID]; ok {
		return st
	}
	return GenerationIdle
}

// View returns a copy of the current state.
func (s *Store) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		ClassroomID:    s.classroomID,
		MyTableID:      copyID(s.myTable),
		MessageDraft:   s.messageDraft,
		Discussed:      make(map[string]bool, len(s.discussed)),
		ResponseDrafts: make(map[string]string, len(s.responseDrafts)),
	}
	for k, val := range s.discussed {
		v.Discussed[k] = val
	}
	for k, val := range s.responseDrafts {
		v.ResponseDrafts[k] = val
	}
	if s.prompts != nil {
		cp := *s.prompts
		v.Prompts = &cp
	}
	if s.snapshot == nil {
		return v
	}
	v.Version = s.snapshot.Version
	v.FetchedAt = s.snapshot.FetchedAt
	for _, t := range s.snapshot.Tables {
		state := s.generation[t.ID]
		if state == "" {
			state = GenerationIdle
		}
		v.Tables = append(v.Tables, TableState{
			Table:           t.Table,
			Students:        append([]models.SeatedStudent(nil), t.Students...),
			Messages:        append([]models.Message(nil), t.Messages...),
			Pending:         append([]PendingMessage(nil), s.pending[t.ID]...),
			Generation:      state,
			GenerationError: s.genErrors[t.ID],
		})
	}
	return v
}

func (s *Store) tableLocked(id string) *dto.TableView {
	return s.snapshot.Table(id)
}

func (s *Store) removeStudentLocked(studentID string) (models.SeatedStudent, *string, bool) {
	if s.snapshot == nil {
		return models.SeatedStudent{}, nil, false
	}
	for i := range s.snapshot.Tables {
		t := &s.snapshot.Tables[i]
		for j, st := range t.Students {
			if st.StudentID == studentID {
				t.Students = append(t.Students[:j:j], t.Students[j+1:]...)
				id := t.ID
				return st, &id, true
			}
		}
	}
	return models.SeatedStudent{}, nil, false
}

// resolveMyTableLocked re-derives the caller's table from the seats and
// clears table-scoped drafts when it moved.
func (s *Store) resolveMyTableLocked() *TableChange {
	var next *string
	if s.userID != "" {
		next = s.snapshot.TableOf(s.userID)
	} else if s.snapshot != nil {
		next = copyID(s.snapshot.MyTableID)
	}
	if sameID(s.myTable, next) {
		return nil
	}
	change := &TableChange{From: s.myTable, To: copyID(next)}
	s.myTable = next
	s.messageDraft = ""
	s.discussed = make(map[string]bool)
	s.responseDrafts = make(map[string]string)
	s.prompts = nil
	return change
}

func (s *Store) dropConfirmedLocked(tableID string, msgs []models.Message) {
	pending := s.pending[tableID]
	if len(pending) == 0 {
		return
	}
	stored := make(map[string]bool, len(msgs))
	for _, m := range msgs {
		if m.ClientKey != nil {
			stored[*m.ClientKey] = true
		}
	}
	kept := pending[:0]
	for _, p := range pending {
		if !stored[p.ClientKey] {
			kept = append(kept, p)
		}
	}
	s.setPendingLocked(tableID, kept)
}

func (s *Store) removePendingLocked(tableID, key string) {
	pending := s.pending[tableID]
	kept := pending[:0]
	for _, p := range pending {
		if p.ClientKey != key {
			kept = append(kept, p)
		}
	}
	s.setPendingLocked(tableID, kept)
}

func (s *Store) setPendingLocked(tableID string, pending []PendingMessage) {
	if len(pending) == 0 {
		delete(s.pending, tableID)
		return
	}
	s.pending[tableID] = pending
}

func cloneSnapshot(in *dto.TablesSnapshot) *dto.TablesSnapshot {
	out := *in
	out.MyTableID = copyID(in.MyTableID)
	out.Tables = make([]dto.TableView, len(in.Tables))
	for i, t := range in.Tables {
		out.Tables[i] = dto.TableView{
			Table:    t.Table,
			Students: append([]models.SeatedStudent(nil), t.Students...),
			Messages: append([]models.Message(nil), t.Messages...),
		}
	}
	return &out
}

func hasMessage(msgs []models.Message, id int64) bool {
	for _, m := range msgs {
		if m.ID == id {
			return true
		}
	}
	return false
}

func lastMessageID(msgs []models.Message) int64 {
	var last int64
	for _, m := range msgs {
		if m.ID > last {
			last = m.ID
		}
	}
	return last
}

func copyID(id *string) *string {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

func sameID(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
