package nats

import (
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"saykit-agent/internal/model"
)

// Config NATS 连接配置
type Config struct {
	URL           string
	SubjectPrefix string // 默认 saykit
}

// Conn 发布所需的最小连接接口，便于测试替换
type Conn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

// Publisher 把会话的音频序列与命令发布到消息总线，供播放端或下游应用订阅
type Publisher struct {
	conn   Conn
	prefix string
	log    *logrus.Entry
}

// Connect 连接 NATS
func Connect(cfg Config, log *logrus.Entry) (*Publisher, error) {
	nc, err := nats.Connect(cfg.URL, nats.Name("saykit-agent"))
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	log.WithField("url", cfg.URL).Info("connected to nats")
	return NewPublisher(nc, cfg.SubjectPrefix, log), nil
}

func NewPublisher(conn Conn, prefix string, log *logrus.Entry) *Publisher {
	prefix = strings.Trim(prefix, ".")
	if prefix == "" {
		prefix = "saykit"
	}
	return &Publisher{conn: conn, prefix: prefix, log: log.WithField("component", "nats")}
}

// SequenceSubject <prefix>.sessions.<session>.audio.<track>
func (p *Publisher) SequenceSubject(sessionID, track string) string {
	return fmt.Sprintf("%s.sessions.%s.audio.%s", p.prefix, sessionID, track)
}

// CommandSubject <prefix>.commands.<type>
func (p *Publisher) CommandSubject(commandType string) string {
	return fmt.Sprintf("%s.commands.%s", p.prefix, commandType)
}

// Deliver 发布音频序列，实现 audio.Output
func (p *Publisher) Deliver(_ context.Context, posted model.PostedSequence) error {
	data, err := json.Marshal(posted)
	if err != nil {
		return fmt.Errorf("marshal posted sequence: %w", err)
	}
	return p.conn.Publish(p.SequenceSubject(posted.SessionID, posted.Track), data)
}

// CommandMessage 命令消息体
type CommandMessage struct {
	SessionID string        `json:"session_id"`
	Command   model.Command `json:"command"`
}

// PublishCommand 发布识别出的命令
func (p *Publisher) PublishCommand(_ context.Context, sessionID string, cmd model.Command) error {
	data, err := json.Marshal(CommandMessage{SessionID: sessionID, Command: cmd})
	if err != nil {
		return fmt.Errorf("marshal command: %w", err)
	}
	subject := p.CommandSubject(cmd.Type())
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	p.log.WithField("subject", subject).Debug("command published")
	return nil
}

func (p *Publisher) Close() error {
	return p.conn.Drain()
}
