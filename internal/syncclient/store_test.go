package syncclient

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/worksmarter/internal/dto"
	"github.com/noah-isme/worksmarter/internal/models"
)

var threeTables = []string{"t1", "t2", "t3"}

func TestStoreAssignThenReassignLeavesStudentAtSecondTable(t *testing.T) {
	s := NewStore("c1", "s1")
	applied, _ := s.ApplySnapshot(s.BeginPoll(), layout(1, threeTables, nil))
	require.True(t, applied)

	p1, _ := s.ApplySeatPatch("s1", "Ada", ptr("t1"))
	s.CommitSeat(p1, 2)
	p2, _ := s.ApplySeatPatch("s1", "Ada", ptr("t2"))
	s.CommitSeat(p2, 3)

	require.NotNil(t, s.TableOf("s1"))
	assert.Equal(t, "t2", *s.TableOf("s1"))
	assert.Empty(t, s.Occupants("t1"))
	require.Len(t, s.Occupants("t2"), 1)
	assert.Equal(t, "Ada", s.Occupants("t2")[0].FullName)
}

func TestStoreDiscardsStalePollAfterOptimisticPatch(t *testing.T) {
	s := NewStore("c1", "s1")
	s.ApplySnapshot(s.BeginPoll(), layout(1, threeTables, map[string][]string{"t1": {"s1"}}))

	startSeq := s.BeginPoll()
	stale := layout(1, threeTables, map[string][]string{"t1": {"s1"}})

	patch, _ := s.ApplySeatPatch("s1", "", ptr("t2"))
	applied, _ := s.ApplySnapshot(startSeq, stale)
	assert.False(t, applied, "snapshot must not land while the patch is unconfirmed")

	s.CommitSeat(patch, 2)
	applied, _ = s.ApplySnapshot(startSeq, stale)
	assert.False(t, applied, "snapshot started before the patch and predates its commit")
	assert.Equal(t, "t2", *s.TableOf("s1"))

	covering := layout(2, threeTables, map[string][]string{"t2": {"s1"}})
	applied, _ = s.ApplySnapshot(startSeq, covering)
	assert.True(t, applied, "snapshot at the committed version already includes the patch")
	assert.EqualValues(t, 2, s.View().Version)
}

func TestStoreDiscardsSnapshotOlderThanSeen(t *testing.T) {
	s := NewStore("c1", "")
	applied, _ := s.ApplySnapshot(s.BeginPoll(), layout(5, threeTables, nil))
	require.True(t, applied)

	applied, _ = s.ApplySnapshot(s.BeginPoll(), layout(4, threeTables, map[string][]string{"t1": {"s9"}}))
	assert.False(t, applied)
	assert.Empty(t, s.Occupants("t1"))
}

func TestStoreRollbackRestoresSeatOrder(t *testing.T) {
	s := NewStore("c1", "")
	snap := layout(1, threeTables, map[string][]string{"t1": {"s1", "s2", "s3"}})
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := range snap.Tables[0].Students {
		snap.Tables[0].Students[i].SeatedAt = base.Add(time.Duration(i) * time.Minute)
	}
	s.ApplySnapshot(s.BeginPoll(), snap)

	patch, _ := s.ApplySeatPatch("s2", "", ptr("t3"))
	assert.Len(t, s.Occupants("t3"), 1)

	s.RollbackSeat(patch)
	assert.Empty(t, s.Occupants("t3"))
	var order []string
	for _, st := range s.Occupants("t1") {
		order = append(order, st.StudentID)
	}
	assert.Equal(t, []string{"s1", "s2", "s3"}, order)

	applied, _ := s.ApplySnapshot(s.BeginPoll(), layout(1, threeTables, map[string][]string{"t1": {"s1", "s2", "s3"}}))
	assert.True(t, applied, "a rolled back patch no longer blocks polls")
}

func TestStoreOlderRollbackKeepsNewerCommittedSeat(t *testing.T) {
	s := NewStore("c1", "s1")
	s.ApplySnapshot(s.BeginPoll(), layout(1, threeTables, map[string][]string{"t1": {"s1"}}))

	p1, _ := s.ApplySeatPatch("s1", "", ptr("t2"))
	p2, _ := s.ApplySeatPatch("s1", "", ptr("t3"))
	s.CommitSeat(p2, 2)

	change := s.RollbackSeat(p1)
	assert.Nil(t, change)
	require.NotNil(t, s.TableOf("s1"))
	assert.Equal(t, "t3", *s.TableOf("s1"))
	assert.Empty(t, s.Occupants("t1"))
	assert.Empty(t, s.Occupants("t2"))
}

func TestStoreOlderRollbackHandsOriginToPendingPatch(t *testing.T) {
	s := NewStore("c1", "s1")
	s.ApplySnapshot(s.BeginPoll(), layout(1, threeTables, map[string][]string{"t1": {"s1"}}))

	p1, _ := s.ApplySeatPatch("s1", "", ptr("t2"))
	p2, _ := s.ApplySeatPatch("s1", "", ptr("t3"))

	assert.Nil(t, s.RollbackSeat(p1))
	assert.Equal(t, "t3", *s.TableOf("s1"), "the newer move is still pending")

	change := s.RollbackSeat(p2)
	require.NotNil(t, change)
	assert.Equal(t, "t1", *s.TableOf("s1"), "both moves rejected puts the student back where they started")
	assert.Equal(t, "t1", *change.To)
}

func TestStoreNewerRollbackReturnsToPendingOlderTarget(t *testing.T) {
	s := NewStore("c1", "s1")
	s.ApplySnapshot(s.BeginPoll(), layout(1, threeTables, map[string][]string{"t1": {"s1"}}))

	p1, _ := s.ApplySeatPatch("s1", "", ptr("t2"))
	p2, _ := s.ApplySeatPatch("s1", "", ptr("t3"))

	s.RollbackSeat(p2)
	assert.Equal(t, "t2", *s.TableOf("s1"))

	s.CommitSeat(p1, 2)
	assert.Equal(t, "t2", *s.TableOf("s1"))
}

func TestStoreSameTablePatchIsNoop(t *testing.T) {
	s := NewStore("c1", "")
	s.ApplySnapshot(s.BeginPoll(), layout(1, threeTables, map[string][]string{"t1": {"s1", "s2"}}))

	patch, change := s.ApplySeatPatch("s1", "", ptr("t1"))
	assert.Nil(t, change)
	s.RollbackSeat(patch)

	require.Len(t, s.Occupants("t1"), 2)
	assert.Equal(t, "s1", s.Occupants("t1")[0].StudentID)
}

func TestStoreTableChangeClearsDraftsAndMarkers(t *testing.T) {
	s := NewStore("c1", "s1")
	_, change := s.ApplySnapshot(s.BeginPoll(), layout(1, threeTables, map[string][]string{"t1": {"s1"}}))
	require.NotNil(t, change)
	assert.Nil(t, change.From)
	assert.Equal(t, "t1", *change.To)

	s.SetMessageDraft("half a thought")
	s.MarkDiscussed("p1")
	s.SetResponseDraft("p2", "we think")
	require.True(t, s.SetPrompts(&dto.StudentPromptsView{TableID: "t1"}))

	_, change = s.ApplySnapshot(s.BeginPoll(), layout(2, threeTables, map[string][]string{"t1": {"s1"}}))
	assert.Nil(t, change)
	assert.Equal(t, "half a thought", s.View().MessageDraft)

	_, change = s.ApplySnapshot(s.BeginPoll(), layout(3, threeTables, map[string][]string{"t2": {"s1"}}))
	require.NotNil(t, change)
	assert.Equal(t, "t1", *change.From)
	assert.Equal(t, "t2", *change.To)

	v := s.View()
	assert.Empty(t, v.MessageDraft)
	assert.Empty(t, v.Discussed)
	assert.Empty(t, v.ResponseDrafts)
	assert.Nil(t, v.Prompts)
	assert.Equal(t, "t2", *v.MyTableID)
}

func TestStoreIgnoresPromptsForAnotherTable(t *testing.T) {
	s := NewStore("c1", "s1")
	s.ApplySnapshot(s.BeginPoll(), layout(1, threeTables, map[string][]string{"t2": {"s1"}}))

	assert.False(t, s.SetPrompts(&dto.StudentPromptsView{TableID: "t1"}))
	assert.True(t, s.SetPrompts(&dto.StudentPromptsView{TableID: "t2"}))
}

func TestStorePendingReplacedByAuthoritativeCopy(t *testing.T) {
	s := NewStore("c1", "s1")
	s.ApplySnapshot(s.BeginPoll(), layout(1, threeTables, map[string][]string{"t1": {"s1"}}))

	s.AddPending("t1", PendingMessage{ClientKey: "k1", Content: "hello"})
	s.AddPending("t1", PendingMessage{ClientKey: "k2", Content: "again"})
	require.Len(t, s.View().Table("t1").Pending, 2)

	key := "k1"
	added := s.ApplyMessages("t1", []models.Message{{ID: 10, TableID: "t1", Content: "hello", ClientKey: &key}})
	assert.Equal(t, 1, added)

	table := s.View().Table("t1")
	require.Len(t, table.Pending, 1)
	assert.Equal(t, "k2", table.Pending[0].ClientKey)
	assert.EqualValues(t, 10, s.LastMessageID("t1"))

	assert.Zero(t, s.ApplyMessages("t1", []models.Message{{ID: 10, TableID: "t1"}}))
}

func TestStoreGenerationStateMachine(t *testing.T) {
	s := NewStore("c1", "teach")
	assert.Equal(t, GenerationIdle, s.Generation("t1"))

	require.NoError(t, s.BeginGeneration("t1"))
	assert.ErrorIs(t, s.BeginGeneration("t1"), ErrGenerationInFlight)

	s.FinishGeneration("t1", "AI down")
	assert.Equal(t, GenerationFailed, s.Generation("t1"))

	require.NoError(t, s.BeginGeneration("t1"))
	s.FinishGeneration("t1", "")
	assert.Equal(t, GenerationSucceeded, s.Generation("t1"))
}
