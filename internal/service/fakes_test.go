package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/noah-isme/worksmarter/internal/dto"
	"github.com/noah-isme/worksmarter/internal/models"
	"github.com/noah-isme/worksmarter/internal/repository"
	"github.com/noah-isme/worksmarter/pkg/ai"
)

func teacherClaims(id string) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: models.RoleTeacher, FullName: "Teacher " + id}
}

func studentClaims(id string) *models.JWTClaims {
	return &models.JWTClaims{UserID: id, Role: models.RoleStudent, FullName: "Student " + id}
}

func strPtr(v string) *string { return &v }

type fakeClassrooms struct {
	items      map[string]*models.Classroom
	takenCodes map[string]bool
	createErr  []error
	created    []*models.Classroom
}

func newFakeClassrooms(items ...*models.Classroom) *fakeClassrooms {
	f := &fakeClassrooms{items: map[string]*models.Classroom{}, takenCodes: map[string]bool{}}
	for _, c := range items {
		f.items[c.ID] = c
	}
	return f
}

func (f *fakeClassrooms) FindByID(ctx context.Context, id string) (*models.Classroom, error) {
	if c, ok := f.items[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeClassrooms) Create(ctx context.Context, classroom *models.Classroom) error {
	if len(f.createErr) > 0 {
		err := f.createErr[0]
		f.createErr = f.createErr[1:]
		if err != nil {
			return err
		}
	}
	classroom.ID = fmt.Sprintf("class-%d", len(f.items)+1)
	f.items[classroom.ID] = classroom
	f.created = append(f.created, classroom)
	return nil
}

func (f *fakeClassrooms) FindActiveByJoinCode(ctx context.Context, code string) (*models.Classroom, error) {
	for _, c := range f.items {
		if c.JoinCode == code && c.Status == models.ClassroomStatusActive {
			cp := *c
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeClassrooms) JoinCodeTaken(ctx context.Context, code string) (bool, error) {
	return f.takenCodes[code], nil
}

func (f *fakeClassrooms) ListForTeacher(ctx context.Context, teacherID string) ([]dto.ClassroomSummary, error) {
	var out []dto.ClassroomSummary
	for _, c := range f.items {
		if c.TeacherID == teacherID {
			out = append(out, dto.ClassroomSummary{Classroom: *c})
		}
	}
	return out, nil
}

func (f *fakeClassrooms) ListForStudent(ctx context.Context, studentID string) ([]dto.ClassroomSummary, error) {
	return nil, nil
}

// fakeSeating keeps tables and enrollments for one or more classrooms and
// mirrors the repository's seat rules.
type fakeSeating struct {
	mu          sync.Mutex
	tables      []models.Table
	enrollments map[string]*models.Enrollment
	names       map[string]string
	versions    map[string]int64
	snapshots   int
	// afterRead runs once, after the next snapshot has been read.
	afterRead func()
}

func newFakeSeating() *fakeSeating {
	return &fakeSeating{
		enrollments: map[string]*models.Enrollment{},
		names:       map[string]string{},
		versions:    map[string]int64{},
	}
}

func (f *fakeSeating) addTable(classroomID, id, name string) {
	f.tables = append(f.tables, models.Table{ID: id, ClassroomID: classroomID, Name: name, SortOrder: len(f.tables)})
}

func (f *fakeSeating) enroll(classroomID, studentID, name string) {
	f.enrollments[classroomID+"|"+studentID] = &models.Enrollment{ID: "enr-" + studentID, ClassroomID: classroomID, StudentID: studentID}
	f.names[studentID] = name
}

func (f *fakeSeating) seat(classroomID, studentID, tableID string) {
	now := time.Now().UTC()
	e := f.enrollments[classroomID+"|"+studentID]
	e.TableID = strPtr(tableID)
	e.SeatedAt = &now
}

func (f *fakeSeating) Find(ctx context.Context, classroomID, studentID string) (*models.Enrollment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if e, ok := f.enrollments[classroomID+"|"+studentID]; ok {
		cp := *e
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeSeating) FindByTable(ctx context.Context, tableID, studentID string) (*models.Enrollment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.enrollments {
		if e.StudentID == studentID && e.TableID != nil && *e.TableID == tableID {
			cp := *e
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeSeating) Join(ctx context.Context, classroomID, studentID string) (*models.Enrollment, error) {
	key := classroomID + "|" + studentID
	if _, ok := f.enrollments[key]; !ok {
		f.enrollments[key] = &models.Enrollment{ID: "enr-" + studentID, ClassroomID: classroomID, StudentID: studentID, JoinedAt: time.Now().UTC()}
	}
	cp := *f.enrollments[key]
	return &cp, nil
}

func (f *fakeSeating) AssignSeat(ctx context.Context, params repository.SeatParams) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if params.TableID != nil {
		table := f.findTable(*params.TableID)
		if table == nil || table.ClassroomID != params.ClassroomID || table.Retired() {
			return 0, repository.ErrForeignTable
		}
		if params.Capacity > 0 {
			seated := 0
			for _, e := range f.enrollments {
				if e.StudentID != params.StudentID && e.TableID != nil && *e.TableID == *params.TableID {
					seated++
				}
			}
			if seated >= params.Capacity {
				return 0, repository.ErrTableFull
			}
		}
	}
	e, ok := f.enrollments[params.ClassroomID+"|"+params.StudentID]
	if !ok {
		return 0, repository.ErrNotEnrolled
	}
	e.TableID = params.TableID
	now := time.Now().UTC()
	e.SeatedAt = &now
	if params.TableID == nil {
		e.SeatedAt = nil
	}
	f.versions[params.ClassroomID]++
	return f.versions[params.ClassroomID], nil
}

func (f *fakeSeating) findTable(id string) *models.Table {
	for i := range f.tables {
		if f.tables[i].ID == id {
			return &f.tables[i]
		}
	}
	return nil
}

func (f *fakeSeating) FindByID(ctx context.Context, id string) (*models.Table, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t := f.findTable(id); t != nil {
		cp := *t
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeSeating) ListByClassroom(ctx context.Context, classroomID string) ([]models.Table, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Table
	for _, t := range f.tables {
		if t.ClassroomID == classroomID && !t.Retired() {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeSeating) Replace(ctx context.Context, classroomID string, tables []models.Table) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now().UTC()
	for i := range f.tables {
		if f.tables[i].ClassroomID == classroomID && !f.tables[i].Retired() {
			f.tables[i].RetiredAt = &now
		}
	}
	for i, t := range tables {
		t.ID = fmt.Sprintf("%s-v%d-t%d", classroomID, f.versions[classroomID]+1, i+1)
		t.ClassroomID = classroomID
		t.SortOrder = i
		f.tables = append(f.tables, t)
	}
	for _, e := range f.enrollments {
		if e.ClassroomID == classroomID {
			e.TableID = nil
			e.SeatedAt = nil
		}
	}
	f.versions[classroomID]++
	return f.versions[classroomID], nil
}

func (f *fakeSeating) Snapshot(ctx context.Context, classroomID string, messageLimit int) (*dto.TablesSnapshot, error) {
	snapshot, err := f.readSnapshot(classroomID)
	f.mu.Lock()
	hook := f.afterRead
	f.afterRead = nil
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	return snapshot, err
}

func (f *fakeSeating) readSnapshot(classroomID string) (*dto.TablesSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshots++
	snapshot := &dto.TablesSnapshot{ClassroomID: classroomID, Version: f.versions[classroomID], Tables: []dto.TableView{}}
	for _, t := range f.tables {
		if t.ClassroomID != classroomID || t.Retired() {
			continue
		}
		view := dto.TableView{Table: t, Students: []models.SeatedStudent{}, Messages: []models.Message{}}
		for _, e := range f.enrollments {
			if e.TableID != nil && *e.TableID == t.ID {
				view.Students = append(view.Students, models.SeatedStudent{TableID: t.ID, StudentID: e.StudentID, FullName: f.names[e.StudentID], SeatedAt: *e.SeatedAt})
			}
		}
		sort.Slice(view.Students, func(i, j int) bool { return view.Students[i].StudentID < view.Students[j].StudentID })
		snapshot.Tables = append(snapshot.Tables, view)
	}
	return snapshot, nil
}

type fakeCache struct {
	mu          sync.Mutex
	entries     map[string]interface{}
	generations map[string]int64
	invalidated []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string]interface{}{}, generations: map[string]int64{}}
}

func (c *fakeCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	if !ok {
		return false, nil
	}
	if snap, ok := v.(*dto.TablesSnapshot); ok {
		*(dest.(*dto.TablesSnapshot)) = *snap
	}
	return true, nil
}

func (c *fakeCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if snap, ok := value.(*dto.TablesSnapshot); ok {
		cp := *snap
		c.entries[key] = &cp
	}
	return nil
}

func (c *fakeCache) Generation(ctx context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[key], nil
}

func (c *fakeCache) Bump(ctx context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generations[key]++
	return c.generations[key], nil
}

func (c *fakeCache) Invalidate(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		delete(c.entries, key)
		c.invalidated = append(c.invalidated, key)
	}
	return nil
}

type fakeProvider struct {
	mu       sync.Mutex
	calls    []ai.PromptRequest
	failFor  map[string]bool
	grade    *ai.Grade
	gradeErr error
}

func (p *fakeProvider) GeneratePrompts(ctx context.Context, req ai.PromptRequest) (*ai.PromptResult, error) {
	p.mu.Lock()
	p.calls = append(p.calls, req)
	p.mu.Unlock()
	if p.failFor[req.GroupName] {
		return nil, ai.ErrUnavailable
	}
	result := &ai.PromptResult{Summary: "summary for " + req.GroupName}
	for i := 0; i < req.Count; i++ {
		result.Prompts = append(result.Prompts, ai.GeneratedPrompt{Type: ai.PromptTypes[i%len(ai.PromptTypes)], Text: fmt.Sprintf("question %d", i+1)})
	}
	return result, nil
}

func (p *fakeProvider) GradeAnswer(ctx context.Context, req ai.GradeRequest) (*ai.Grade, error) {
	if p.gradeErr != nil {
		return nil, p.gradeErr
	}
	return p.grade, nil
}

type fakeAssignments struct {
	mu          sync.Mutex
	items       map[string]*models.Assignment
	submissions []*models.Submission
	seating     *fakeSeating
	graded      map[string]int
}

func newFakeAssignments(seating *fakeSeating, items ...*models.Assignment) *fakeAssignments {
	f := &fakeAssignments{items: map[string]*models.Assignment{}, seating: seating, graded: map[string]int{}}
	for _, a := range items {
		f.items[a.ID] = a
	}
	return f
}

func (f *fakeAssignments) Create(ctx context.Context, assignment *models.Assignment) error {
	assignment.ID = fmt.Sprintf("asg-%d", len(f.items)+1)
	f.items[assignment.ID] = assignment
	return nil
}

func (f *fakeAssignments) FindByID(ctx context.Context, id string) (*models.Assignment, error) {
	if a, ok := f.items[id]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeAssignments) ListByClassroom(ctx context.Context, classroomID string) ([]models.Assignment, error) {
	var out []models.Assignment
	for _, a := range f.items {
		if a.ClassroomID == classroomID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeAssignments) UpsertSubmission(ctx context.Context, submission *models.Submission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.submissions {
		if existing.AssignmentID == submission.AssignmentID && existing.StudentID == submission.StudentID {
			existing.Answer = submission.Answer
			submission.ID = existing.ID
			return nil
		}
	}
	submission.ID = fmt.Sprintf("sub-%d", len(f.submissions)+1)
	cp := *submission
	f.submissions = append(f.submissions, &cp)
	return nil
}

func (f *fakeAssignments) FindSubmission(ctx context.Context, id string) (*models.Submission, error) {
	for _, s := range f.submissions {
		if s.ID == id {
			cp := *s
			return &cp, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeAssignments) SaveGrade(ctx context.Context, id string, score int, feedback string, gradedAt time.Time) error {
	f.graded[id] = score
	return nil
}

func (f *fakeAssignments) ListSubmissionsForTable(ctx context.Context, assignmentID, tableID string) ([]models.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Submission
	for _, s := range f.submissions {
		if s.AssignmentID != assignmentID {
			continue
		}
		if _, err := f.seating.FindByTable(ctx, tableID, s.StudentID); err == nil {
			out = append(out, *s)
		}
	}
	return out, nil
}

type fakePrompts struct {
	mu        sync.Mutex
	runs      []*models.PromptRun
	responses map[string]*models.PromptResponse
	targets   map[string]*repository.PromptTarget
}

func newFakePrompts() *fakePrompts {
	return &fakePrompts{responses: map[string]*models.PromptResponse{}, targets: map[string]*repository.PromptTarget{}}
}

func (f *fakePrompts) CreateRun(ctx context.Context, run *models.PromptRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	run.ID = fmt.Sprintf("run-%d", len(f.runs)+1)
	run.CreatedAt = time.Now().UTC()
	for i := range run.Prompts {
		run.Prompts[i].ID = fmt.Sprintf("%s-p%d", run.ID, i+1)
		run.Prompts[i].RunID = run.ID
		run.Prompts[i].OrderIndex = i
	}
	f.runs = append(f.runs, run)
	return nil
}

func (f *fakePrompts) LatestRun(ctx context.Context, tableID, assignmentID string) (*models.PromptRun, error) {
	for i := len(f.runs) - 1; i >= 0; i-- {
		if f.runs[i].TableID == tableID && f.runs[i].AssignmentID == assignmentID {
			return f.runs[i], nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakePrompts) ListRuns(ctx context.Context, tableID, assignmentID string) ([]models.PromptRun, error) {
	var out []models.PromptRun
	for i := len(f.runs) - 1; i >= 0; i-- {
		run := f.runs[i]
		if run.TableID == tableID && (assignmentID == "" || run.AssignmentID == assignmentID) {
			out = append(out, *run)
		}
	}
	return out, nil
}

func (f *fakePrompts) FindPromptTarget(ctx context.Context, promptID string) (*repository.PromptTarget, error) {
	if t, ok := f.targets[promptID]; ok {
		return t, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakePrompts) SaveResponse(ctx context.Context, response *models.PromptResponse) error {
	response.ID = "resp-" + response.PromptID
	response.SavedAt = time.Now().UTC()
	f.responses[response.TableID+"|"+response.PromptID] = response
	return nil
}

func (f *fakePrompts) ListResponses(ctx context.Context, tableID, runID string) ([]models.PromptResponse, error) {
	out := []models.PromptResponse{}
	for _, r := range f.responses {
		if r.TableID == tableID {
			out = append(out, *r)
		}
	}
	return out, nil
}
