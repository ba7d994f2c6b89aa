package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gammazero/workerpool"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"saykit-agent/internal/metrics"
	"saykit-agent/internal/model"
	"saykit-agent/internal/service/audio"
	"saykit-agent/internal/service/command"
	"saykit-agent/internal/service/request"
	"saykit-agent/internal/service/topic"
	"saykit-agent/internal/store"
)

// 文本的处理方式
const (
	HandledCommand = "command"
	HandledRequest = "request"
)

// Settings 会话配置
type Settings struct {
	MinConfidence model.Confidence
	Presenter     request.Settings
	// ListenPrompt 语音命令请求的提示语
	ListenPrompt string
	// NoMatchText 没有命令命中时在主音轨播报
	NoMatchText string
	// ResultHistory 保留最近多少条请求结果
	ResultHistory int
}

func (s Settings) withDefaults() Settings {
	if s.ListenPrompt == "" {
		s.ListenPrompt = "What would you like to do?"
	}
	if s.NoMatchText == "" {
		s.NoMatchText = "Sorry, I don't know how to do that."
	}
	if s.ResultHistory <= 0 {
		s.ResultHistory = 20
	}
	return s
}

// Option 会话可选依赖
type Option func(*Manager)

// WithOutputs 音频序列的额外出口（日志、NATS）
func WithOutputs(outputs ...audio.Output) Option {
	return func(m *Manager) { m.outputs = append(m.outputs, outputs...) }
}

// WithFallback 本地识别器未命中时的兜底意图识别
func WithFallback(r command.Resolver) Option {
	return func(m *Manager) { m.fallback = r }
}

// WithEventLog 记录已投递序列的事件日志，默认每个会话一个内存日志
func WithEventLog(l store.EventLog) Option {
	return func(m *Manager) { m.events = l }
}

type mainKey struct{}

// Manager 一个对话会话：单一分发器 + 最多一个活动语音请求。
// 所有动作、结果回调和音频投递都在单 worker 的主队列里串行执行，动作内的重入调用直接执行
type Manager struct {
	id        string
	settings  Settings
	root      *topic.Topic
	coord     *audio.Coordinator
	board     *audio.SoundBoard
	dispatch  *command.Dispatcher
	presenter *request.Presenter
	events    store.EventLog
	outputs   []audio.Output
	fallback  command.Resolver
	pool      *workerpool.WorkerPool
	log       *logrus.Entry

	life   sync.RWMutex
	closed bool

	mu         sync.Mutex
	lastActive time.Time
	results    []model.RequestResult
}

// New 创建会话，root 的事件写入 main 音轨
func New(id string, root *topic.Topic, settings Settings, log *logrus.Entry, opts ...Option) *Manager {
	settings = settings.withDefaults()
	m := &Manager{
		id:         id,
		settings:   settings,
		root:       root,
		pool:       workerpool.New(1),
		log:        log.WithField("session_id", id),
		lastActive: time.Now(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.events == nil {
		m.events = store.NewMemoryLog(0)
	}
	events := m.events
	outputs := append([]audio.Output{audio.OutputFunc(func(ctx context.Context, posted model.PostedSequence) error {
		return events.Append(ctx, posted)
	})}, m.outputs...)

	m.coord = audio.NewCoordinator(id, m.log, audio.WithOutputs(outputs...), audio.WithPostedHook(metrics.ObservePosted))
	m.board = audio.NewSoundBoard(m.coord.Main(), settings.Presenter.MicStartTone, settings.Presenter.MicStopTone)
	root.SetSink(m.coord.Main())

	dopts := []command.DispatcherOption{
		command.WithMinConfidence(settings.MinConfidence),
		command.WithObserver(metrics.ObserveDispatch),
	}
	if m.fallback != nil {
		dopts = append(dopts, command.WithFallback(m.fallback))
	}
	m.dispatch = command.NewDispatcher(root, m.log, dopts...)

	ps := settings.Presenter
	observe := ps.OnOutcome
	ps.OnOutcome = func(kind request.Kind, outcome string) {
		metrics.ObserveVoiceRequest(string(kind), outcome)
		if observe != nil {
			observe(kind, outcome)
		}
	}
	m.presenter = request.NewPresenter(ps, m.coord.VoiceRequest(), m.log)
	return m
}

func (m *Manager) ID() string { return m.id }

// Root 根话题
func (m *Manager) Root() *topic.Topic { return m.root }

// Dispatcher 会话的命令分发器
func (m *Manager) Dispatcher() *command.Dispatcher { return m.dispatch }

// Audio 会话的音轨协调器
func (m *Manager) Audio() *audio.Coordinator { return m.coord }

// LastActive 最近一次操作时间
func (m *Manager) LastActive() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastActive
}

// run 在主队列里执行 fn；已在主队列中时直接执行
func (m *Manager) run(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(mainKey{}) != nil {
		return fn(ctx)
	}
	m.life.RLock()
	defer m.life.RUnlock()
	if m.closed {
		return fmt.Errorf("%w: session %s is closed", model.ErrSessionNotFound, m.id)
	}
	m.mu.Lock()
	m.lastActive = time.Now()
	m.mu.Unlock()

	var err error
	m.pool.SubmitWait(func() {
		err = fn(context.WithValue(ctx, mainKey{}, true))
	})
	return err
}

// HandleText 处理一段识别文本：有活动请求时回答请求，否则作为命令分发
func (m *Manager) HandleText(ctx context.Context, text string) (model.TextResponse, error) {
	resp := model.TextResponse{SessionID: m.id}
	text = strings.TrimSpace(text)
	if text == "" {
		return resp, fmt.Errorf("%w: empty text", model.ErrNoMatch)
	}
	err := m.run(ctx, func(ctx context.Context) error {
		if m.presenter.Active() != nil {
			resp.Handled = HandledRequest
			out, err := m.presenter.Resolve(ctx, text)
			if err != nil {
				return err
			}
			resp.Outcome = turnOutcome(out)
			return nil
		}

		resp.Handled = HandledCommand
		res, err := m.dispatch.Dispatch(ctx, text)
		if err != nil {
			if errors.Is(err, model.ErrNoMatch) {
				m.board.Speak(ctx, m.settings.NoMatchText)
			}
			return err
		}
		cmd := res.Command
		resp.Command = &cmd
		if res.Response.IsTerminal() {
			res.Response.Run(ctx)
			return nil
		}
		return m.presentFollowup(ctx, res.Response)
	})
	if err != nil {
		resp.Message = err.Error()
	}
	return resp, err
}

// presentFollowup 动作返回了追问：先说反馈语，再呈现追问请求
func (m *Manager) presentFollowup(ctx context.Context, resp request.Response) error {
	if fb := resp.Feedback(); fb != "" {
		m.coord.VoiceRequest().Post(ctx, model.NewSequence(model.SpeechEvent(fb)))
	}
	next := resp.Next()
	if err := m.presenter.Present(ctx, next); err != nil {
		return err
	}
	return m.listenIfActive(ctx, next.ID())
}

// Listen 呈现语音命令请求并开麦，返回请求 ID
func (m *Manager) Listen(ctx context.Context) (string, error) {
	id := uuid.NewString()
	req := NewCommandRequest(m.settings.ListenPrompt, m.dispatch, func(res command.Result) {
		m.record(model.RequestResult{RequestID: id, Kind: string(request.KindCommand), Value: res.Command})
	}, request.WithID(id), request.WithFailure(m.recordFailure(id, request.KindCommand)))
	if err := m.Present(ctx, req); err != nil {
		return "", err
	}
	return id, nil
}

// PresentRequest 呈现一个语音请求（结果记录到会话历史），返回请求 ID
func (m *Manager) PresentRequest(ctx context.Context, spec model.PresentRequest) (string, error) {
	req, err := BuildRequest(spec, m.record, m.recordFailure)
	if err != nil {
		return "", err
	}
	if err := m.Present(ctx, req); err != nil {
		return "", err
	}
	return req.ID(), nil
}

// Present 呈现任意语音请求
func (m *Manager) Present(ctx context.Context, req request.Request) error {
	return m.run(ctx, func(ctx context.Context) error {
		if err := m.presenter.Present(ctx, req); err != nil {
			return err
		}
		return m.listenIfActive(ctx, req.ID())
	})
}

func (m *Manager) listenIfActive(ctx context.Context, id string) error {
	if active := m.presenter.Active(); active != nil && active.ID() == id {
		return m.presenter.Listen(ctx)
	}
	return nil
}

// Choose 直接按下标回答当前的选择请求（点按界面等非语音输入）
func (m *Manager) Choose(ctx context.Context, index int) (model.TurnOutcome, error) {
	var outcome model.TurnOutcome
	err := m.run(ctx, func(ctx context.Context) error {
		out, err := m.presenter.ResolveWith(ctx, func(ctx context.Context, req request.Request) (request.Response, error) {
			sel, ok := req.(*request.Select)
			if !ok {
				return request.Response{}, fmt.Errorf("%w: active request is %s, not select", model.ErrInvalidState, req.Kind())
			}
			return sel.Choose(ctx, index)
		})
		if err != nil {
			return err
		}
		outcome = *turnOutcome(out)
		return nil
	})
	return outcome, err
}

// Cancel 用户取消活动请求
func (m *Manager) Cancel(ctx context.Context) error {
	return m.run(ctx, func(ctx context.Context) error {
		return m.presenter.Cancel(ctx)
	})
}

// Fail 报告语音识别失败
func (m *Manager) Fail(ctx context.Context, reason string) error {
	var cause error
	if reason = strings.TrimSpace(reason); reason != "" {
		cause = errors.New(reason)
	}
	return m.run(ctx, func(ctx context.Context) error {
		return m.presenter.Fail(ctx, cause)
	})
}

// Status 会话状态快照
func (m *Manager) Status() model.SessionStatus {
	st := m.presenter.Status()
	out := model.SessionStatus{
		SessionID:     m.id,
		RequestState:  st.State.String(),
		ActiveRequest: st.ActiveID,
		ActiveKind:    string(st.ActiveKind),
		QueuedCount:   st.Queued,
		Commands:      command.AvailableCommands(m.root),
	}
	m.mu.Lock()
	if n := len(m.results); n > 0 {
		last := m.results[n-1]
		out.LastResult = &last
	}
	m.mu.Unlock()
	return out
}

// Results 最近的请求结果，旧的在前
func (m *Manager) Results() []model.RequestResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.RequestResult(nil), m.results...)
}

// Events 最近投递的音频序列
func (m *Manager) Events(ctx context.Context, limit int) ([]model.PostedSequence, error) {
	return m.events.Recent(ctx, m.id, limit)
}

// Close 取消活动请求并停止主队列，之后的操作返回 ErrSessionNotFound
func (m *Manager) Close(ctx context.Context) error {
	if m.presenter.Active() != nil {
		if err := m.Cancel(ctx); err != nil && !errors.Is(err, model.ErrInvalidState) {
			m.log.WithError(err).Warn("cancel active request on close failed")
		}
	}
	m.life.Lock()
	if m.closed {
		m.life.Unlock()
		return nil
	}
	m.closed = true
	m.life.Unlock()
	m.pool.StopWait()
	if err := m.events.Delete(ctx, m.id); err != nil {
		return fmt.Errorf("delete event log: %w", err)
	}
	m.log.Info("session closed")
	return nil
}

func (m *Manager) record(r model.RequestResult) {
	m.mu.Lock()
	m.results = append(m.results, r)
	if over := len(m.results) - m.settings.ResultHistory; over > 0 {
		m.results = append([]model.RequestResult(nil), m.results[over:]...)
	}
	m.mu.Unlock()
	m.log.WithFields(logrus.Fields{"request_id": r.RequestID, "kind": r.Kind, "error": r.Error}).Debug("voice request result recorded")
}

func (m *Manager) recordFailure(id string, kind request.Kind) request.FailureFunc {
	return func(_ context.Context, err error) {
		m.record(model.RequestResult{RequestID: id, Kind: string(kind), Error: err.Error()})
	}
}

func turnOutcome(out request.Outcome) *model.TurnOutcome {
	t := &model.TurnOutcome{
		RequestID:  out.RequestID,
		Kind:       string(out.Kind),
		State:      out.State.String(),
		Terminal:   out.Terminal,
		FollowupID: out.FollowupID,
		Reprompted: out.Reprompted,
	}
	if out.Err != nil {
		t.Error = out.Err.Error()
	}
	return t
}
