package app

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"saykit-agent/config"
	"saykit-agent/internal/client/llm"
	natsclient "saykit-agent/internal/client/nats"
	"saykit-agent/internal/service/audio"
	"saykit-agent/internal/service/conversation"
	"saykit-agent/internal/service/intent"
	"saykit-agent/internal/service/request"
	"saykit-agent/internal/service/scenario"
	"saykit-agent/internal/store"
)

// App 按配置装配好的会话中心及其外部连接
type App struct {
	Hub     *conversation.Hub
	closers []func() error
	log     *logrus.Entry
}

// Option 装配时的额外选项（如命令行追加的音频出口）
type Option func(*options)

type options struct {
	outputs    []audio.Output
	noLogAudio bool
}

// WithOutputs 追加音频序列出口
func WithOutputs(outputs ...audio.Output) Option {
	return func(o *options) { o.outputs = append(o.outputs, outputs...) }
}

// WithoutAudioLog 不把音频序列写进日志
func WithoutAudioLog() Option {
	return func(o *options) { o.noLogAudio = true }
}

// Settings 由引擎配置得到会话配置
func Settings(cfg config.EngineConfig) (conversation.Settings, error) {
	conf, err := cfg.Confidence()
	if err != nil {
		return conversation.Settings{}, err
	}
	policy, err := cfg.Policy()
	if err != nil {
		return conversation.Settings{}, err
	}
	return conversation.Settings{
		MinConfidence: conf,
		ListenPrompt:  cfg.ListenPrompt,
		NoMatchText:   cfg.NoMatchText,
		Presenter: request.Settings{
			Policy:       policy,
			MaxReprompts: cfg.MaxReprompts,
			RepromptText: cfg.RepromptText,
			MicStartTone: cfg.MicStartTone,
			MicStopTone:  cfg.MicStopTone,
		},
	}, nil
}

// New 连接 NATS / Redis / LLM（按启用情况），构建会话中心
func New(cfg *config.Config, log *logrus.Entry, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	a := &App{log: log}
	settings, err := Settings(cfg.Engine)
	if err != nil {
		return nil, err
	}

	outputs := o.outputs
	if !o.noLogAudio {
		outputs = append(outputs, audio.LogOutput(log.WithField("component", "speech")))
	}
	var publisher scenario.CommandPublisher
	if cfg.NATS.Enabled {
		pub, err := natsclient.Connect(natsclient.Config{URL: cfg.NATS.URL, SubjectPrefix: cfg.NATS.SubjectPrefix}, log)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pub.Close)
		outputs = append(outputs, pub)
		publisher = pub
	}

	var events store.EventLog = store.NewMemoryLog(cfg.Redis.EventLogSize)
	if cfg.Redis.Enabled {
		rl, err := store.NewRedisLog(cfg.Redis.URL, cfg.Redis.EventLogSize, cfg.Redis.TTL, log)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, rl.Close)
		events = rl
	}

	sessionOpts := []conversation.Option{conversation.WithOutputs(outputs...), conversation.WithEventLog(events)}
	if cfg.LLM.Enabled {
		client := llm.NewClient(llm.Config{
			APIKey:  cfg.LLM.APIKey,
			BaseURL: cfg.LLM.BaseURL,
			Model:   cfg.LLM.Model,
			Timeout: cfg.LLM.Timeout,
		})
		sessionOpts = append(sessionOpts, conversation.WithFallback(intent.NewService(client, intent.BreakerConfig{}, log)))
		log.WithField("model", cfg.LLM.Model).Info("llm intent fallback enabled")
	}

	builder := scenario.New(cfg.Topic, publisher, log)
	if _, err := builder.Build("validate"); err != nil {
		a.Close()
		return nil, fmt.Errorf("topic config: %w", err)
	}
	a.Hub = conversation.NewHub(builder.Build, settings, cfg.Engine.SessionTTL, log, sessionOpts...)
	return a, nil
}

// Close 关闭全部会话与外部连接
func (a *App) Close() {
	if a.Hub != nil {
		a.Hub.Close(context.Background())
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.WithError(err).Warn("close dependency failed")
		}
	}
}
