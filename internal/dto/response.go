package dto

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// SubmitExportResponse represents an accepted export submission
type SubmitExportResponse struct {
	GroupID string `json:"group_id"`
	Status  string `json:"status"`
}
