package domain

// RecheckImage is the image a recheck workflow inspects.
type RecheckImage struct {
	TransferMethod string `json:"transfer_method"`
	URL            string `json:"url"`
	Type           string `json:"type"`
}

// RecheckInputs are the workflow variables of an alarm recheck.
type RecheckInputs struct {
	WarningType string        `json:"Warning_Type"`
	Image       *RecheckImage `json:"Image"`
}

// ImageURL returns the inspected image url, or "".
func (in *RecheckInputs) ImageURL() string {
	if in == nil || in.Image == nil {
		return ""
	}
	return in.Image.URL
}

// RecheckRequest asks the model to recheck an alarm image within a chat.
type RecheckRequest struct {
	ChatID         string         `json:"chatId,omitempty"`
	ChatType       ChatType       `json:"chatType,omitempty"`
	ConversationID string         `json:"conversationId,omitempty"`
	Inputs         *RecheckInputs `json:"inputs"`
}

// WorkflowRequest is a blocking workflow run.
type WorkflowRequest struct {
	Inputs           *RecheckInputs `json:"inputs"`
	ResponseMode     string         `json:"response_mode"`
	User             string         `json:"user"`
	ConversationID   string         `json:"conversation_id,omitempty"`
	AutoGenerateName bool           `json:"auto_generate_name"`
	TraceID          string         `json:"trace_id,omitempty"`
}

// WorkflowData is the result section of a workflow run.
type WorkflowData struct {
	ID          string                 `json:"id"`
	WorkflowID  string                 `json:"workflowId"`
	Status      string                 `json:"status"`
	Outputs     map[string]interface{} `json:"outputs"`
	Error       string                 `json:"error,omitempty"`
	ElapsedTime float64                `json:"elapsedTime"`
	TotalTokens int                    `json:"totalTokens"`
	TotalSteps  int                    `json:"totalSteps"`
	CreatedAt   int64                  `json:"createdAt"`
	FinishedAt  int64                  `json:"finishedAt"`
}

// WorkflowResponse is the outcome of a workflow run.
type WorkflowResponse struct {
	TaskID        string        `json:"taskId"`
	ChatID        string        `json:"chatId,omitempty"`
	Title         string        `json:"title,omitempty"`
	WorkflowRunID string        `json:"workflowRunId"`
	Data          *WorkflowData `json:"data"`
}
