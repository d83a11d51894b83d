package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/noah-isme/worksmarter/internal/dto"
	"github.com/noah-isme/worksmarter/internal/models"
)

// Login obtains a token pair and adopts it.
func (c *Client) Login(ctx context.Context, email, password string) (*models.UserInfo, error) {
	var pair models.TokenPair
	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/token/",
		body:   map[string]string{"email": email, "password": password},
		out:    &pair,
		public: true,
	})
	if err != nil {
		return nil, err
	}
	if err := c.session.Set(&pair); err != nil {
		return nil, err
	}
	if pair.User == nil {
		return c.Me(ctx)
	}
	return pair.User, nil
}

// Register creates an account. It does not sign in.
func (c *Client) Register(ctx context.Context, req models.RegisterRequest) (*models.UserInfo, error) {
	var user models.UserInfo
	err := c.do(ctx, call{method: http.MethodPost, path: "/token/register/", body: req, out: &user, public: true})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) exchangeRefresh(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	var pair models.TokenPair
	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/token/refresh/",
		body:   map[string]string{"refresh": refreshToken},
		out:    &pair,
		public: true,
	})
	if err != nil {
		return nil, err
	}
	return &pair, nil
}

// Me resolves the current user and records it on the session.
func (c *Client) Me(ctx context.Context) (*models.UserInfo, error) {
	var user models.UserInfo
	if err := c.do(ctx, call{method: http.MethodGet, path: "/auth/user/", out: &user}); err != nil {
		return nil, err
	}
	if err := c.session.SetUser(&user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Classrooms lists the caller's classrooms.
func (c *Client) Classrooms(ctx context.Context) ([]dto.ClassroomSummary, error) {
	var items []dto.ClassroomSummary
	if err := c.do(ctx, call{method: http.MethodGet, path: "/classrooms/", out: &items}); err != nil {
		return nil, err
	}
	return items, nil
}

// CreateClassroom creates a classroom owned by the calling teacher.
func (c *Client) CreateClassroom(ctx context.Context, name string) (*models.Classroom, error) {
	var classroom models.Classroom
	err := c.do(ctx, call{method: http.MethodPost, path: "/classrooms/", body: dto.CreateClassroomRequest{Name: name}, out: &classroom})
	if err != nil {
		return nil, err
	}
	return &classroom, nil
}

// JoinClassroom redeems a join code.
func (c *Client) JoinClassroom(ctx context.Context, code string) (*dto.ClassroomSummary, error) {
	var summary dto.ClassroomSummary
	err := c.do(ctx, call{method: http.MethodPost, path: "/classrooms/join/", body: dto.JoinClassroomRequest{JoinCode: code}, out: &summary})
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

// Tables fetches the seating snapshot of a classroom.
func (c *Client) Tables(ctx context.Context, classroomID string) (*dto.TablesSnapshot, error) {
	var snapshot dto.TablesSnapshot
	err := c.do(ctx, call{method: http.MethodGet, path: "/classrooms/" + url.PathEscape(classroomID) + "/tables/", out: &snapshot})
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// ReplaceTables sets the table layout. replace must be true when the
// classroom already has tables.
func (c *Client) ReplaceTables(ctx context.Context, classroomID string, req dto.ReplaceTablesRequest, replace bool) (*dto.TablesSnapshot, error) {
	var snapshot dto.TablesSnapshot
	rq := call{method: http.MethodPost, path: "/classrooms/" + url.PathEscape(classroomID) + "/tables/", body: req, out: &snapshot}
	if replace {
		rq.query = url.Values{"replace": {"true"}}
	}
	if err := c.do(ctx, rq); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// AssignSeat seats studentID at tableID, or vacates the seat when tableID
// is nil.
func (c *Client) AssignSeat(ctx context.Context, classroomID, studentID string, tableID *string) (*dto.AssignSeatResult, error) {
	var res dto.AssignSeatResult
	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/classrooms/" + url.PathEscape(classroomID) + "/tables/assign/",
		body:   dto.AssignSeatRequest{StudentID: studentID, TableID: tableID},
		out:    &res,
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// ExportSeating downloads the seating chart as csv or pdf.
func (c *Client) ExportSeating(ctx context.Context, classroomID, format string) ([]byte, error) {
	var raw []byte
	err := c.do(ctx, call{
		method: http.MethodGet,
		path:   "/classrooms/" + url.PathEscape(classroomID) + "/tables/export/",
		query:  url.Values{"format": {format}},
		raw:    &raw,
	})
	return raw, err
}

// Messages reads a table thread, optionally only messages after afterID.
func (c *Client) Messages(ctx context.Context, tableID string, afterID int64) ([]models.Message, error) {
	var items []models.Message
	rq := call{method: http.MethodGet, path: "/classrooms/tables/" + url.PathEscape(tableID) + "/messages/", out: &items}
	if afterID > 0 {
		rq.query = url.Values{"after_id": {strconv.FormatInt(afterID, 10)}}
	}
	if err := c.do(ctx, rq); err != nil {
		return nil, err
	}
	return items, nil
}

// SendMessage posts to a table thread. clientKey is echoed back.
func (c *Client) SendMessage(ctx context.Context, tableID, content, clientKey string) (*models.Message, error) {
	var msg models.Message
	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/classrooms/tables/" + url.PathEscape(tableID) + "/messages/",
		body:   dto.SendMessageRequest{Content: content, ClientKey: clientKey},
		out:    &msg,
	})
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// Assignments lists a classroom's assignments.
func (c *Client) Assignments(ctx context.Context, classroomID string) ([]models.Assignment, error) {
	var items []models.Assignment
	if err := c.do(ctx, call{method: http.MethodGet, path: "/classrooms/" + url.PathEscape(classroomID) + "/assignments/", out: &items}); err != nil {
		return nil, err
	}
	return items, nil
}

// Submit stores the caller's answer to an assignment.
func (c *Client) Submit(ctx context.Context, assignmentID, answer string) (*models.Submission, error) {
	var sub models.Submission
	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/assignments/" + url.PathEscape(assignmentID) + "/submissions/",
		body:   dto.SubmitAnswerRequest{Answer: answer},
		out:    &sub,
	})
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// StudentPrompts loads the latest prompt run for the caller's table.
func (c *Client) StudentPrompts(ctx context.Context, assignmentID string) (*dto.StudentPromptsView, error) {
	var view dto.StudentPromptsView
	if err := c.do(ctx, call{method: http.MethodGet, path: "/groups/" + url.PathEscape(assignmentID) + "/student-prompts/", out: &view}); err != nil {
		return nil, err
	}
	return &view, nil
}

// GeneratePrompts asks for a new prompt run for one table.
func (c *Client) GeneratePrompts(ctx context.Context, tableID, assignmentID string, numQuestions int) (*models.PromptRun, error) {
	var run models.PromptRun
	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/groups/" + url.PathEscape(tableID) + "/generate/",
		body:   dto.GeneratePromptsRequest{AssignmentID: assignmentID, NumQuestions: numQuestions},
		out:    &run,
	})
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// GenerateAll asks for a prompt run for every table.
func (c *Client) GenerateAll(ctx context.Context, assignmentID string, numQuestions int) (*dto.GenerateAllResult, error) {
	var res dto.GenerateAllResult
	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/assignments/" + url.PathEscape(assignmentID) + "/generate-all/",
		body:   dto.GenerateAllRequest{NumQuestions: numQuestions},
		out:    &res,
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// PromptRuns lists every run for a table, newest first.
func (c *Client) PromptRuns(ctx context.Context, tableID, assignmentID string) ([]models.PromptRun, error) {
	var runs []models.PromptRun
	rq := call{method: http.MethodGet, path: "/groups/" + url.PathEscape(tableID) + "/prompt-runs/", out: &runs}
	if assignmentID != "" {
		rq.query = url.Values{"assignment_id": {assignmentID}}
	}
	if err := c.do(ctx, rq); err != nil {
		return nil, err
	}
	return runs, nil
}

// SaveResponse stores the caller's table's answer to a prompt.
func (c *Client) SaveResponse(ctx context.Context, promptID, text string) (*models.PromptResponse, error) {
	var saved models.PromptResponse
	err := c.do(ctx, call{
		method: http.MethodPost,
		path:   "/prompts/" + url.PathEscape(promptID) + "/responses/",
		body:   dto.SaveResponseRequest{Text: text},
		out:    &saved,
	})
	if err != nil {
		return nil, err
	}
	return &saved, nil
}
