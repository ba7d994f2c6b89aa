package model

// TextRequest 外部传入的识别文本（语音转写结果）
type TextRequest struct {
	// Text 语音识别得到的文本
	Text string `json:"text" binding:"required"`
}

// TextResponse 文本处理结果
type TextResponse struct {
	SessionID string `json:"session_id"`
	// Handled 文本是用于回答活动请求(request)还是作为命令分发(command)
	Handled string `json:"handled"`
	// Command 命中的命令（分发时）
	Command *Command `json:"command,omitempty"`
	// Outcome 活动请求的处理结果（回答请求时）
	Outcome *TurnOutcome `json:"outcome,omitempty"`
	// Message 结果说明
	Message string `json:"message,omitempty"`
}

// TurnOutcome 一次语音请求回合的结果摘要
type TurnOutcome struct {
	RequestID string `json:"request_id"`
	Kind      string `json:"kind"`
	// State 回合结束后请求所处状态
	State string `json:"state"`
	// Terminal 是否结束会话；false 表示有追问请求或需重新回答
	Terminal bool `json:"terminal"`
	// FollowupID 追问请求 ID（如有）
	FollowupID string `json:"followup_id,omitempty"`
	// Reprompted 回答无法解读，已重新提示
	Reprompted bool `json:"reprompted,omitempty"`
	// Error 请求失败原因
	Error string `json:"error,omitempty"`
}

// SelectOptionSpec 选项定义（标签 + 别名）
type SelectOptionSpec struct {
	Label   string   `json:"label" binding:"required"`
	Aliases []string `json:"aliases,omitempty"`
}

// PresentRequest 通过 HTTP 呈现语音请求
type PresentRequest struct {
	// Kind confirmation | select | string | number | pattern
	Kind           string             `json:"kind" binding:"required"`
	Prompt         string             `json:"prompt" binding:"required"`
	FollowupPrompt string             `json:"followup_prompt,omitempty"`
	Options        []SelectOptionSpec `json:"options,omitempty"`
	Templates      []string           `json:"templates,omitempty"`
}

// SessionStatus 会话状态
type SessionStatus struct {
	SessionID     string   `json:"session_id"`
	RequestState  string   `json:"request_state"`
	ActiveRequest string   `json:"active_request,omitempty"`
	ActiveKind    string   `json:"active_kind,omitempty"`
	QueuedCount   int      `json:"queued_count"`
	Commands      []string `json:"commands"`
	// LastResult 最近一次语音请求的结果
	LastResult *RequestResult `json:"last_result,omitempty"`
}

// RequestResult 语音请求完成后记录的结果
type RequestResult struct {
	RequestID string         `json:"request_id"`
	Kind      string         `json:"kind"`
	Value     any            `json:"value,omitempty"`
	Entities  map[string]any `json:"entities,omitempty"`
	Error     string         `json:"error,omitempty"`
}

// ChooseRequest 按下标回答选择请求（0 起）
type ChooseRequest struct {
	Index *int `json:"index" binding:"required"`
}

// FailRequest 上报语音识别失败
type FailRequest struct {
	Reason string `json:"reason"`
}

// PresentResponse 请求已呈现
type PresentResponse struct {
	SessionID string `json:"session_id"`
	RequestID string `json:"request_id"`
}
