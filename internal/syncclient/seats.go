package syncclient

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/worksmarter/internal/client"
	"github.com/noah-isme/worksmarter/internal/models"
)

// SeatDecision is the result of RequestSeat. When NeedsConfirmation is set
// nothing was sent; call AssignSeat once the user confirms.
type SeatDecision struct {
	NeedsConfirmation bool
	From              *string
	To                string
	Occupants         []models.SeatedStudent
}

// SeatController applies seat changes optimistically.
type SeatController struct {
	api         API
	store       *Store
	notifier    Notifier
	logger      *zap.Logger
	classroomID string
	self        string
	selfName    string
	emit        func(*TableChange)
}

// RequestSeat asks to move studentID to target. A student already seated
// at another table must confirm joining an occupied one first.
func (c *SeatController) RequestSeat(ctx context.Context, studentID, target string) (*SeatDecision, error) {
	current := c.store.TableOf(studentID)
	occupants := c.store.Occupants(target)
	decision := &SeatDecision{From: current, To: target}
	if NeedsConfirmation(current, target, len(occupants)) {
		decision.NeedsConfirmation = true
		decision.Occupants = occupants
		return decision, nil
	}
	return decision, c.AssignSeat(ctx, studentID, &target)
}

// NeedsConfirmation reports whether moving from current to target must be
// confirmed: the student sits at a different, real table and target already
// has occupants.
func NeedsConfirmation(current *string, target string, occupants int) bool {
	return current != nil && *current != "" && *current != target && occupants > 0
}

// AssignSeat seats studentID at tableID, or vacates when tableID is nil.
// The local state changes first and is rolled back if the server refuses.
func (c *SeatController) AssignSeat(ctx context.Context, studentID string, tableID *string) error {
	name := ""
	if studentID == c.self {
		name = c.selfName
	}
	patch, change := c.store.ApplySeatPatch(studentID, name, tableID)
	c.emit(change)

	res, err := c.api.AssignSeat(ctx, c.classroomID, studentID, tableID)
	if err != nil {
		c.emit(c.store.RollbackSeat(patch))
		c.logger.Info("seat change rejected", zap.String("student_id", studentID), zap.Stringp("table_id", tableID), zap.Error(err))
		c.notifier.Notify(LevelError, seatFailureMessage(err))
		return err
	}
	c.store.CommitSeat(patch, res.Version)
	if tableID == nil {
		c.notifier.Notify(LevelSuccess, "Seat vacated.")
	} else {
		c.notifier.Notify(LevelSuccess, "Seat assigned.")
	}
	return nil
}

func seatFailureMessage(err error) string {
	if client.HasCode(err, client.CodeTableFull) {
		return "That table is full. Pick another table."
	}
	return fmt.Sprintf("Could not change seat. %s", userMessage(err))
}

// userMessage renders an action failure for people.
func userMessage(err error) string {
	switch client.KindOf(err) {
	case client.KindAuth:
		return "Your session expired. Sign in again."
	case client.KindTransient:
		return "The server could not be reached. Try again."
	case client.KindValidation, client.KindDomain:
		var apiErr *client.Error
		if errors.As(err, &apiErr) && apiErr.Message != "" {
			return apiErr.Message
		}
	}
	return err.Error()
}
