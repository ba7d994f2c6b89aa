package command

import (
	"context"

	"saykit-agent/internal/model"
	"saykit-agent/internal/service/request"
)

// Handler 命中即执行的动作
type Handler func(ctx context.Context, cmd model.Command)

// Responder 返回对话响应的动作，可以产生追问请求
type Responder func(ctx context.Context, cmd model.Command) request.Response

// Action 识别器绑定的动作，Handler 与 Responder 二选一
type Action struct {
	handler   Handler
	responder Responder
}

func HandlerAction(h Handler) Action     { return Action{handler: h} }
func ResponderAction(r Responder) Action { return Action{responder: r} }

// IsZero 未绑定任何动作
func (a Action) IsZero() bool { return a.handler == nil && a.responder == nil }

// Perform 执行动作。Handler 立即执行并视为结束响应
func (a Action) Perform(ctx context.Context, cmd model.Command) request.Response {
	switch {
	case a.responder != nil:
		return a.responder(ctx, cmd)
	case a.handler != nil:
		a.handler(ctx, cmd)
	}
	return request.Terminal(nil)
}

// Respond 与 Perform 相同，但 Handler 延后到结束响应运行时才执行
func (a Action) Respond(ctx context.Context, cmd model.Command) request.Response {
	switch {
	case a.responder != nil:
		return a.responder(ctx, cmd)
	case a.handler != nil:
		h := a.handler
		return request.Terminal(func(ctx context.Context) { h(ctx, cmd) })
	}
	return request.Terminal(nil)
}
