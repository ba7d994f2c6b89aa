package request

import "context"

// Response 一个回合完成后的去向：结束（可带最终动作），或产生追问请求（可先播报反馈）。
// 零值为不带动作的结束响应
type Response struct {
	action   func(ctx context.Context)
	followup Request
	feedback string
}

// Terminal 结束会话，action 可为 nil
func Terminal(action func(ctx context.Context)) Response {
	return Response{action: action}
}

// Followup 以新的语音请求继续对话
func Followup(req Request) Response {
	return Response{followup: req}
}

// FollowupWithFeedback 先播报 feedback，再呈现追问请求
func FollowupWithFeedback(feedback string, req Request) Response {
	return Response{followup: req, feedback: feedback}
}

// IsTerminal 是否为结束响应
func (r Response) IsTerminal() bool { return r.followup == nil }

// Next 追问请求，结束响应返回 nil
func (r Response) Next() Request { return r.followup }

// Feedback 追问前播报的反馈语
func (r Response) Feedback() string { return r.feedback }

// Run 执行结束动作；追问响应不执行任何动作
func (r Response) Run(ctx context.Context) {
	if r.followup == nil && r.action != nil {
		r.action(ctx)
	}
}
