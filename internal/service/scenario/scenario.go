package scenario

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"saykit-agent/config"
	"saykit-agent/internal/model"
	"saykit-agent/internal/service/command"
	"saykit-agent/internal/service/topic"
)

// CommandPublisher 把命中的命令转发给下游应用，由 client/nats.Publisher 实现
type CommandPublisher interface {
	PublishCommand(ctx context.Context, sessionID string, cmd model.Command) error
}

// ParamCommands available_commands 回复模板中可用的命令列表占位符
const ParamCommands = "commands"

var placeholderRE = regexp.MustCompile(`\{\{(\w+)\}\}`)

// Builder 按配置为每个会话构建话题树
type Builder struct {
	cfg       config.TopicConfig
	publisher CommandPublisher
	log       *logrus.Entry
}

// New publisher 可为空，此时忽略 publish 标记
func New(cfg config.TopicConfig, publisher CommandPublisher, log *logrus.Entry) *Builder {
	return &Builder{cfg: cfg, publisher: publisher, log: log.WithField("component", "scenario")}
}

// Build 构建话题树，签名与 conversation.Builder 一致
func (b *Builder) Build(sessionID string) (*topic.Topic, error) {
	return b.build(sessionID, b.cfg)
}

func (b *Builder) build(sessionID string, tc config.TopicConfig) (*topic.Topic, error) {
	var opts []topic.Option
	if i := interceptor(tc); i != nil {
		opts = append(opts, topic.WithInterceptor(i))
	}
	t := topic.New(tc.Name, opts...)
	for _, cc := range tc.Commands {
		r, err := b.recognizer(sessionID, t, cc)
		if err != nil {
			return nil, fmt.Errorf("topic %s: %w", tc.Name, err)
		}
		t.AddRecognizer(r)
	}
	for _, sub := range tc.Subtopics {
		child, err := b.build(sessionID, sub)
		if err != nil {
			return nil, err
		}
		if err := t.AddSubtopic(child); err != nil {
			return nil, err
		}
	}
	return t, nil
}

func (b *Builder) recognizer(sessionID string, t *topic.Topic, cc config.CommandConfig) (*command.Recognizer, error) {
	exec := &executor{sessionID: sessionID, topic: t, cfg: cc, publisher: b.publisher, log: b.log}
	action := command.HandlerAction(exec.handle)
	var opts []command.Option
	if len(cc.Required) > 0 {
		opts = append(opts, command.WithRequired(cc.Required...))
	}
	if !cc.Standard {
		return command.NewComposite(cc.Type, cc.Patterns, action, opts...)
	}
	r, err := command.NewStandard(cc.Type, action, opts...)
	if err != nil {
		return nil, err
	}
	if err := r.AddPatterns(cc.Patterns...); err != nil {
		return nil, fmt.Errorf("recognizer %s: %w", cc.Type, err)
	}
	return r, nil
}

func interceptor(tc config.TopicConfig) topic.Interceptor {
	switch {
	case tc.Preface != "" && tc.Postscript != "":
		pre, post := topic.Preface(tc.Preface), topic.Postscript(tc.Postscript)
		return topic.InterceptorFunc(func(ctx context.Context, child *topic.Topic, seq model.AudioEventSequence) model.AudioEventSequence {
			return post.Intercept(ctx, child, pre.Intercept(ctx, child, seq))
		})
	case tc.Preface != "":
		return topic.Preface(tc.Preface)
	case tc.Postscript != "":
		return topic.Postscript(tc.Postscript)
	}
	return nil
}

// executor 命令动作：在所属话题播报回复，按需发布到消息总线
type executor struct {
	sessionID string
	topic     *topic.Topic
	cfg       config.CommandConfig
	publisher CommandPublisher
	log       *logrus.Entry
}

func (e *executor) handle(ctx context.Context, cmd model.Command) {
	params := cmd.ParamMap()
	if cmd.Type() == command.TypeAvailableCommands {
		params[ParamCommands] = strings.Join(command.AvailableCommands(root(e.topic)), ", ")
	}
	if reply := Render(e.cfg.Reply, params); reply != "" {
		e.topic.Speak(ctx, reply)
	}
	if e.cfg.Publish && e.publisher != nil {
		if err := e.publisher.PublishCommand(ctx, e.sessionID, cmd); err != nil {
			e.log.WithFields(logrus.Fields{"session_id": e.sessionID, "type": cmd.Type()}).WithError(err).Warn("publish command failed")
		}
	}
}

func root(t *topic.Topic) *topic.Topic {
	for t.Parent() != nil {
		t = t.Parent()
	}
	return t
}

// Render 将模板中的 {{key}} 替换为 params[key]，缺失的参数替换为空串
func Render(tpl string, params map[string]string) string {
	out := placeholderRE.ReplaceAllStringFunc(tpl, func(m string) string {
		return params[placeholderRE.FindStringSubmatch(m)[1]]
	})
	return strings.TrimSpace(out)
}
