package dto

// SendMessageRequest posts a message to a table thread. ClientKey is echoed
// back so the sender can reconcile its pending copy.
type SendMessageRequest struct {
	Content   string `json:"content" validate:"required,max=2000"`
	ClientKey string `json:"client_key" validate:"omitempty,max=64"`
}

// MessageQuery filters a table thread.
type MessageQuery struct {
	AfterID int64 `form:"after_id"`
	Limit   int   `form:"limit"`
}
