package model

import "errors"

var (
	// ErrNoMatch 没有识别器以足够置信度匹配输入文本（非致命，分发结果为空）
	ErrNoMatch = errors.New("no command matched")

	// ErrMissingParameter 识别器匹配但必填参数缺失或格式不对，该匹配被丢弃
	ErrMissingParameter = errors.New("missing command parameter")

	// ErrRequestAborted 进行中的语音请求被用户或系统取消
	ErrRequestAborted = errors.New("voice request aborted")

	// ErrInvalidState 状态不允许该操作（如已有活动请求时再次呈现）
	ErrInvalidState = errors.New("invalid state")

	// ErrRecognitionFailed 语音识别失败，或重复追问后仍无法得到结果
	ErrRecognitionFailed = errors.New("speech recognition failed")

	// ErrNoInterpretation 用户回答无法被当前请求解读，需要追问
	ErrNoInterpretation = errors.New("answer could not be interpreted")

	// ErrInvalidTemplate 模式模板语法错误
	ErrInvalidTemplate = errors.New("invalid pattern template")

	// ErrInvalidRequest 语音请求定义不完整（未知种类、选择请求没有选项等）
	ErrInvalidRequest = errors.New("invalid voice request")

	// ErrSessionNotFound 会话不存在或已过期
	ErrSessionNotFound = errors.New("conversation session not found")

	// ErrLLMUnavailable 意图服务不可用（出错或熔断打开）
	ErrLLMUnavailable = errors.New("llm service unavailable")
)
