package request

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"saykit-agent/internal/model"
)

// State 当前回合状态
type State int

const (
	StateIdle State = iota
	StatePresented
	StateAwaitingResult
	StateResolved
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePresented:
		return "presented"
	case StateAwaitingResult:
		return "awaiting_result"
	case StateResolved:
		return "resolved"
	case StateFailed:
		return "failed"
	default:
		return "idle"
	}
}

// Policy 已有活动请求时再次呈现的处理方式
type Policy int

const (
	// PolicyReject 返回 ErrInvalidState
	PolicyReject Policy = iota
	// PolicyReplace 当前请求以 ErrRequestAborted 失败，新请求立即呈现
	PolicyReplace
	// PolicyQueue 排队，当前请求结束后依次呈现
	PolicyQueue
)

func (p Policy) String() string {
	switch p {
	case PolicyReplace:
		return "replace"
	case PolicyQueue:
		return "queue"
	default:
		return "reject"
	}
}

// ParsePolicy 解析配置中的策略名，空串为 reject
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "reject":
		return PolicyReject, nil
	case "replace":
		return PolicyReplace, nil
	case "queue":
		return PolicyQueue, nil
	}
	return PolicyReject, fmt.Errorf("unknown present policy %q", s)
}

// Voice 语音请求所用音轨。Hold/Release 占用与释放音频焦点
type Voice interface {
	Post(ctx context.Context, seq model.AudioEventSequence)
	Hold()
	Release()
}

// Outcome 观察名称，用于指标
const (
	OutcomeTerminal = "terminal"
	OutcomeFollowup = "followup"
	OutcomeReprompt = "reprompt"
	OutcomeFailed   = "failed"
	OutcomeAborted  = "aborted"
)

// Settings 呈现器配置
type Settings struct {
	Policy Policy
	// MaxReprompts 回答无法解读时最多追问次数，0 表示直接失败
	MaxReprompts int
	// RepromptText 请求未设置追问提示语时使用
	RepromptText string
	MicStartTone string
	MicStopTone  string
	// OnOutcome 每个回合结束时回调（请求种类, Outcome*）
	OnOutcome func(kind Kind, outcome string)
}

// Outcome 一次回合的结果
type Outcome struct {
	RequestID  string
	Kind       Kind
	State      State
	Terminal   bool
	FollowupID string
	Reprompted bool
	// Err 请求失败原因（识别失败或解读出错）
	Err error
}

// Status 呈现器快照
type Status struct {
	State      State
	ActiveID   string
	ActiveKind Kind
	Queued     int
}

// Presenter 语音请求回合状态机，同一时刻最多一个活动请求。
// 结果动作与失败动作都在锁外执行，可以在动作内再次 Present
type Presenter struct {
	mu       sync.Mutex
	settings Settings
	voice    Voice
	log      *logrus.Entry

	active   Request
	state    State
	attempts int
	queue    []Request
}

func NewPresenter(settings Settings, voice Voice, log *logrus.Entry) *Presenter {
	if settings.RepromptText == "" {
		settings.RepromptText = "Sorry, I didn't catch that."
	}
	return &Presenter{settings: settings, voice: voice, log: log.WithField("component", "presenter")}
}

// Present 呈现请求；已有活动请求时按 Policy 处理
func (p *Presenter) Present(ctx context.Context, req Request) error {
	if req == nil {
		return fmt.Errorf("%w: nil voice request", model.ErrInvalidState)
	}
	p.mu.Lock()
	if p.active == nil {
		p.activateLocked(ctx, req, "")
		p.mu.Unlock()
		return nil
	}
	if p.active == req {
		p.mu.Unlock()
		return fmt.Errorf("%w: voice request %s is already active", model.ErrInvalidState, req.ID())
	}
	switch p.settings.Policy {
	case PolicyQueue:
		p.queue = append(p.queue, req)
		n := len(p.queue)
		p.mu.Unlock()
		p.log.WithFields(logrus.Fields{"request_id": req.ID(), "queued": n}).Debug("voice request queued")
		return nil
	case PolicyReplace:
		old := p.active
		p.activateLocked(ctx, req, "")
		p.mu.Unlock()
		p.log.WithFields(logrus.Fields{"request_id": old.ID(), "replaced_by": req.ID()}).Info("voice request replaced")
		p.observe(old.Kind(), OutcomeAborted)
		old.Fail(ctx, fmt.Errorf("%w: replaced by request %s", model.ErrRequestAborted, req.ID()))
		return nil
	default:
		id := p.active.ID()
		p.mu.Unlock()
		return fmt.Errorf("%w: voice request %s is already active", model.ErrInvalidState, id)
	}
}

// Listen 开麦，等待回答
func (p *Presenter) Listen(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active == nil {
		return fmt.Errorf("%w: no active voice request", model.ErrInvalidState)
	}
	if p.state == StatePresented {
		p.state = StateAwaitingResult
		p.postTone(ctx, p.settings.MicStartTone)
	}
	return nil
}

// Resolve 用识别文本回答当前请求
func (p *Presenter) Resolve(ctx context.Context, transcript string) (Outcome, error) {
	return p.ResolveWith(ctx, func(ctx context.Context, req Request) (Response, error) {
		return req.Interpret(ctx, transcript)
	})
}

// ResolveWith 以自定义方式得到当前请求的响应（如按下标直接选择）
func (p *Presenter) ResolveWith(ctx context.Context, interpret func(ctx context.Context, req Request) (Response, error)) (Outcome, error) {
	p.mu.Lock()
	req := p.active
	if req == nil {
		p.mu.Unlock()
		return Outcome{}, fmt.Errorf("%w: no active voice request", model.ErrInvalidState)
	}
	if p.state == StateAwaitingResult {
		p.postTone(ctx, p.settings.MicStopTone)
	}
	p.state = StateAwaitingResult
	p.mu.Unlock()

	resp, err := interpret(ctx, req)
	return p.complete(ctx, req, resp, err)
}

func (p *Presenter) complete(ctx context.Context, req Request, resp Response, err error) (Outcome, error) {
	out := Outcome{RequestID: req.ID(), Kind: req.Kind()}
	p.mu.Lock()
	if p.active != req {
		p.mu.Unlock()
		out.State = StateFailed
		return out, fmt.Errorf("%w: voice request %s is no longer active", model.ErrRequestAborted, req.ID())
	}

	if err != nil {
		if errors.Is(err, model.ErrNoInterpretation) && p.attempts < p.settings.MaxReprompts {
			p.attempts++
			p.state = StatePresented
			prompt := req.FollowupPrompt()
			if prompt == "" {
				prompt = p.settings.RepromptText
			}
			p.post(ctx, model.NewSequence(model.SpeechEvent(prompt)))
			attempts := p.attempts
			p.mu.Unlock()
			p.log.WithFields(logrus.Fields{"request_id": req.ID(), "attempt": attempts}).Debug("answer not understood, reprompting")
			p.observe(req.Kind(), OutcomeReprompt)
			out.State = StatePresented
			out.Reprompted = true
			return out, nil
		}
		if errors.Is(err, model.ErrNoInterpretation) {
			err = fmt.Errorf("%w: %w", model.ErrRecognitionFailed, err)
		}
		p.clearLocked()
		p.mu.Unlock()
		out.State = StateFailed
		out.Err = err
		p.fail(ctx, req, err, OutcomeFailed)
		p.advance(ctx)
		return out, nil
	}

	out.State = StateResolved
	if resp.IsTerminal() {
		p.clearLocked()
		p.mu.Unlock()
		out.Terminal = true
		p.observe(req.Kind(), OutcomeTerminal)
		resp.Run(ctx)
		p.advance(ctx)
		return out, nil
	}

	next := resp.Next()
	p.activateLocked(ctx, next, resp.Feedback())
	p.mu.Unlock()
	out.FollowupID = next.ID()
	p.log.WithFields(logrus.Fields{"request_id": req.ID(), "followup_id": next.ID()}).Debug("voice request followed up")
	p.observe(req.Kind(), OutcomeFollowup)
	return out, nil
}

// Fail 报告识别错误：活动请求失败，失败动作执行一次，队列中的下一个请求继续
func (p *Presenter) Fail(ctx context.Context, cause error) error {
	p.mu.Lock()
	req := p.active
	if req == nil {
		p.mu.Unlock()
		return fmt.Errorf("%w: no active voice request", model.ErrInvalidState)
	}
	p.clearLocked()
	p.mu.Unlock()
	err := model.ErrRecognitionFailed
	if cause != nil && !errors.Is(cause, model.ErrRecognitionFailed) {
		err = fmt.Errorf("%w: %w", model.ErrRecognitionFailed, cause)
	} else if cause != nil {
		err = cause
	}
	p.fail(ctx, req, err, OutcomeFailed)
	p.advance(ctx)
	return nil
}

// Cancel 用户放弃：活动请求直接失败，排队中的请求一并丢弃
func (p *Presenter) Cancel(ctx context.Context) error {
	p.mu.Lock()
	req := p.active
	if req == nil {
		p.mu.Unlock()
		return fmt.Errorf("%w: no active voice request", model.ErrInvalidState)
	}
	queued := p.queue
	p.queue = nil
	p.clearLocked()
	p.mu.Unlock()

	p.fail(ctx, req, fmt.Errorf("%w: cancelled", model.ErrRequestAborted), OutcomeAborted)
	for _, q := range queued {
		p.fail(ctx, q, fmt.Errorf("%w: discarded with cancelled request %s", model.ErrRequestAborted, req.ID()), OutcomeAborted)
	}
	return nil
}

// Status 当前状态快照
func (p *Presenter) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	st := Status{State: p.state, Queued: len(p.queue)}
	if p.active != nil {
		st.ActiveID = p.active.ID()
		st.ActiveKind = p.active.Kind()
	}
	return st
}

// Active 当前活动请求，没有时为 nil
func (p *Presenter) Active() Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// advance 当前无活动请求时呈现队首
func (p *Presenter) advance(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active != nil || len(p.queue) == 0 {
		return
	}
	next := p.queue[0]
	p.queue = p.queue[1:]
	p.activateLocked(ctx, next, "")
}

func (p *Presenter) activateLocked(ctx context.Context, req Request, feedback string) {
	if p.active == nil {
		p.voice.Hold()
	}
	p.active = req
	p.state = StatePresented
	p.attempts = 0
	seq := model.NewSequence()
	if feedback != "" {
		seq = seq.Append(model.SpeechEvent(feedback))
	}
	if req.Prompt() != "" {
		seq = seq.Append(model.SpeechEvent(req.Prompt()))
	}
	p.post(ctx, seq)
	p.log.WithFields(logrus.Fields{"request_id": req.ID(), "kind": req.Kind()}).Debug("voice request presented")
}

func (p *Presenter) clearLocked() {
	p.active = nil
	p.state = StateIdle
	p.attempts = 0
	p.voice.Release()
}

func (p *Presenter) fail(ctx context.Context, req Request, err error, outcome string) {
	p.log.WithFields(logrus.Fields{"request_id": req.ID(), "kind": req.Kind()}).WithError(err).Info("voice request failed")
	p.observe(req.Kind(), outcome)
	req.Fail(ctx, err)
}

func (p *Presenter) post(ctx context.Context, seq model.AudioEventSequence) {
	if !seq.IsEmpty() {
		p.voice.Post(ctx, seq)
	}
}

func (p *Presenter) postTone(ctx context.Context, url string) {
	if url != "" {
		p.voice.Post(ctx, model.NewSequence(model.ToneEvent(url)))
	}
}

func (p *Presenter) observe(kind Kind, outcome string) {
	if p.settings.OnOutcome != nil {
		p.settings.OnOutcome(kind, outcome)
	}
}
