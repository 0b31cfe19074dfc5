package orchestrator

// Payload shapes for every event the Orchestrator consumes or emits.
// These mirror the schemas under pkg/schemaregistry/schemas/payloads and
// exist so the Go code never hand-assembles maps for its own events.

type initialRequestReceived struct {
	ProjectID   string `json:"project_id"`
	RequestText string `json:"request_text"`
}

type userAnswerSubmitted struct {
	ProjectID  string `json:"project_id"`
	QuestionID string `json:"question_id"`
	Answer     string `json:"answer"`
}

type workItemDispatched struct {
	ProjectID     string         `json:"project_id"`
	BacklogItemID string         `json:"backlog_item_id"`
	ItemType      string         `json:"item_type"`
	AgentTarget   string         `json:"agent_target,omitempty"`
	WorkContext   map[string]any `json:"work_context,omitempty"`
}

type questionCreated struct {
	ProjectID          string `json:"project_id"`
	QuestionID         string `json:"question_id"`
	BacklogItemID      string `json:"backlog_item_id"`
	QuestionText       string `json:"question_text"`
	ExpectedAnswerType string `json:"expected_answer_type"`
}

type clarificationNeeded struct {
	ProjectID     string   `json:"project_id"`
	BacklogItemID string   `json:"backlog_item_id"`
	MissingFields []string `json:"missing_fields"`
}

type backlogItemUnblocked struct {
	ProjectID     string `json:"project_id"`
	BacklogItemID string `json:"backlog_item_id"`
}

type workItemCompleted struct {
	ProjectID     string         `json:"project_id"`
	BacklogItemID string         `json:"backlog_item_id"`
	Evidence      map[string]any `json:"evidence"`
}

type workItemFailed struct {
	ProjectID     string `json:"project_id"`
	BacklogItemID string `json:"backlog_item_id"`
	Reason        string `json:"reason"`
	Category      string `json:"category"`
}
