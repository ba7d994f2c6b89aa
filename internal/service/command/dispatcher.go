package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"saykit-agent/internal/model"
	"saykit-agent/internal/service/request"
)

// Resolver 本地识别器都未命中时的兜底意图识别
type Resolver interface {
	ResolveCommand(ctx context.Context, text string, catalog []Info) (model.Command, error)
}

// Observer 分发结果回调（命令类型, 结果, 耗时），用于指标
type Observer func(commandType, outcome string, elapsed time.Duration)

// 分发结果
const (
	OutcomeMatched  = "matched"
	OutcomeFallback = "fallback"
	OutcomeNoMatch  = "no_match"
)

// Result 一次分发的结果
type Result struct {
	Command    model.Command
	Recognizer *Recognizer
	// Discarded 因参数缺失或校验失败被丢弃的匹配
	Discarded []error
	// Fallback 命令来自兜底意图识别
	Fallback bool
	// Response 胜出动作返回的对话响应（仅 Dispatch）
	Response request.Response
}

// Dispatcher 将识别文本分发给最佳识别器
type Dispatcher struct {
	registry      Registry
	minConfidence model.Confidence
	fallback      Resolver
	observer      Observer
	log           *logrus.Entry
}

// DispatcherOption 分发器可选配置
type DispatcherOption func(*Dispatcher)

// WithMinConfidence 最低胜出置信度，默认 Likely（必须高于 Possible）
func WithMinConfidence(c model.Confidence) DispatcherOption {
	return func(d *Dispatcher) {
		if c > model.ConfidenceNone {
			d.minConfidence = c
		}
	}
}

func WithFallback(r Resolver) DispatcherOption {
	return func(d *Dispatcher) { d.fallback = r }
}

func WithObserver(o Observer) DispatcherOption {
	return func(d *Dispatcher) { d.observer = o }
}

func NewDispatcher(registry Registry, log *logrus.Entry, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		registry:      registry,
		minConfidence: model.ConfidenceLikely,
		log:           log.WithField("component", "dispatcher"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// MinConfidence 当前阈值
func (d *Dispatcher) MinConfidence() model.Confidence { return d.minConfidence }

// Dispatch 选出命令并执行胜出识别器的动作；没有命令时返回 ErrNoMatch
func (d *Dispatcher) Dispatch(ctx context.Context, text string) (Result, error) {
	start := time.Now()
	res, err := d.Resolve(ctx, text)
	if err != nil {
		d.observe("", OutcomeNoMatch, start)
		return res, err
	}
	outcome := OutcomeMatched
	if res.Fallback {
		outcome = OutcomeFallback
	}
	d.log.WithFields(logrus.Fields{
		"type":       res.Command.Type(),
		"confidence": res.Command.Confidence().String(),
		"fallback":   res.Fallback,
	}).Info("command dispatched")
	res.Response = res.Recognizer.Action().Perform(ctx, res.Command)
	d.observe(res.Command.Type(), outcome, start)
	return res, nil
}

// Respond 选出命令并取得对话响应，Handler 动作推迟到响应被执行时。
// 用于语音命令请求：回合状态先落定，再运行动作
func (d *Dispatcher) Respond(ctx context.Context, text string) (Result, error) {
	start := time.Now()
	res, err := d.Resolve(ctx, text)
	if err != nil {
		d.observe("", OutcomeNoMatch, start)
		return res, err
	}
	outcome := OutcomeMatched
	if res.Fallback {
		outcome = OutcomeFallback
	}
	res.Response = res.Recognizer.Action().Respond(ctx, res.Command)
	d.observe(res.Command.Type(), outcome, start)
	return res, nil
}

// Resolve 只选出命令，不执行动作。
// 按注册顺序评估，置信度最高者胜，同分先注册者胜
func (d *Dispatcher) Resolve(ctx context.Context, text string) (Result, error) {
	var res Result
	recognizers := d.registry.Recognizers()
	for _, r := range recognizers {
		cmd, err := r.Recognize(ctx, text)
		if err != nil {
			res.Discarded = append(res.Discarded, err)
			d.log.WithField("type", r.Type()).WithError(err).Debug("match discarded")
			continue
		}
		if cmd.IsZero() {
			continue
		}
		if res.Recognizer == nil || cmd.Confidence() > res.Command.Confidence() {
			res.Command, res.Recognizer = cmd, r
		}
	}
	if res.Recognizer != nil && res.Command.Confidence() >= d.minConfidence {
		return res, nil
	}
	res.Command, res.Recognizer = model.Command{}, nil

	if d.fallback != nil && len(recognizers) > 0 {
		if ok := d.resolveFallback(ctx, text, recognizers, &res); ok {
			return res, nil
		}
	}
	return res, fmt.Errorf("%w: %q", model.ErrNoMatch, text)
}

func (d *Dispatcher) resolveFallback(ctx context.Context, text string, recognizers []*Recognizer, res *Result) bool {
	infos := make([]Info, len(recognizers))
	for i, r := range recognizers {
		infos[i] = r.Info()
	}
	cmd, err := d.fallback.ResolveCommand(ctx, text, infos)
	if err != nil {
		if !errors.Is(err, model.ErrNoMatch) {
			d.log.WithError(err).Warn("fallback intent resolution failed")
		}
		return false
	}
	if cmd.IsZero() || cmd.Confidence() < d.minConfidence {
		return false
	}
	for _, r := range recognizers {
		if r.Type() != cmd.Type() {
			continue
		}
		if err := r.Validate(cmd); err != nil {
			res.Discarded = append(res.Discarded, err)
			d.log.WithField("type", r.Type()).WithError(err).Debug("fallback match discarded")
			return false
		}
		res.Command, res.Recognizer, res.Fallback = cmd, r, true
		return true
	}
	d.log.WithField("type", cmd.Type()).Debug("fallback returned unregistered command type")
	return false
}

func (d *Dispatcher) observe(commandType, outcome string, start time.Time) {
	if d.observer != nil {
		d.observer(commandType, outcome, time.Since(start))
	}
}
