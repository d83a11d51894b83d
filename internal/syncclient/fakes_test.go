package syncclient

import (
	"context"
	"sync"

	"github.com/noah-isme/worksmarter/internal/dto"
	"github.com/noah-isme/worksmarter/internal/models"
)

type fakeAPI struct {
	mu sync.Mutex

	tablesFn   func(ctx context.Context) (*dto.TablesSnapshot, error)
	assignFn   func(studentID string, tableID *string) (*dto.AssignSeatResult, error)
	assigned   []*string
	messages   []models.Message
	sendErr    error
	sendCalls  int
	nextMsgID  int64
	generateFn func(ctx context.Context, tableID string) (*models.PromptRun, error)
	allResult  *dto.GenerateAllResult
	allErr     error
	prompts    *dto.StudentPromptsView
	promptsErr error
	saveErr    error
	saved      []string
}

func (f *fakeAPI) Tables(ctx context.Context, classroomID string) (*dto.TablesSnapshot, error) {
	return f.tablesFn(ctx)
}

func (f *fakeAPI) AssignSeat(ctx context.Context, classroomID, studentID string, tableID *string) (*dto.AssignSeatResult, error) {
	f.mu.Lock()
	f.assigned = append(f.assigned, copyID(tableID))
	fn := f.assignFn
	f.mu.Unlock()
	return fn(studentID, tableID)
}

func (f *fakeAPI) Messages(ctx context.Context, tableID string, afterID int64) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Message
	for _, m := range f.messages {
		if m.TableID == tableID && m.ID > afterID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeAPI) SendMessage(ctx context.Context, tableID, content, clientKey string) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendCalls++
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.nextMsgID++
	key := clientKey
	msg := models.Message{ID: f.nextMsgID, TableID: tableID, Content: content, ClientKey: &key}
	f.messages = append(f.messages, msg)
	return &msg, nil
}

func (f *fakeAPI) StudentPrompts(ctx context.Context, assignmentID string) (*dto.StudentPromptsView, error) {
	return f.prompts, f.promptsErr
}

func (f *fakeAPI) GeneratePrompts(ctx context.Context, tableID, assignmentID string, numQuestions int) (*models.PromptRun, error) {
	return f.generateFn(ctx, tableID)
}

func (f *fakeAPI) GenerateAll(ctx context.Context, assignmentID string, numQuestions int) (*dto.GenerateAllResult, error) {
	return f.allResult, f.allErr
}

func (f *fakeAPI) SaveResponse(ctx context.Context, promptID, text string) (*models.PromptResponse, error) {
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	f.saved = append(f.saved, promptID)
	return &models.PromptResponse{PromptID: promptID, Text: text}, nil
}

type recordedNotice struct {
	level   Level
	message string
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []recordedNotice
}

func (n *recordingNotifier) Notify(level Level, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, recordedNotice{level: level, message: message})
}

func (n *recordingNotifier) last() recordedNotice {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.notices) == 0 {
		return recordedNotice{}
	}
	return n.notices[len(n.notices)-1]
}

// layout builds a snapshot with the given tables in order; seats maps a
// table id to the students seated there.
func layout(version int64, ids []string, seats map[string][]string) *dto.TablesSnapshot {
	snap := &dto.TablesSnapshot{ClassroomID: "c1", Version: version}
	for i, id := range ids {
		tv := dto.TableView{Table: models.Table{ID: id, ClassroomID: "c1", Name: "Table " + id, SortOrder: i}}
		for _, student := range seats[id] {
			tv.Students = append(tv.Students, models.SeatedStudent{TableID: id, StudentID: student, FullName: "Student " + student})
		}
		snap.Tables = append(snap.Tables, tv)
	}
	return snap
}

func ptr(s string) *string {
	return &s
}

func staticTables(snap *dto.TablesSnapshot) func(context.Context) (*dto.TablesSnapshot, error) {
	return func(context.Context) (*dto.TablesSnapshot, error) {
		return snap, nil
	}
}

func newTestSync(api *fakeAPI, userID string, notifier Notifier) *SyncClient {
	return New(api, Config{ClassroomID: "c1", AssignmentID: "a1", UserID: userID, Notifier: notifier})
}
