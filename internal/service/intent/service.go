package intent

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"saykit-agent/internal/metrics"
	"saykit-agent/internal/model"
	"saykit-agent/internal/service/command"
)

// 调用结果（指标标签）
const (
	ResultMatched     = "matched"
	ResultNoMatch     = "no_match"
	ResultError       = "error"
	ResultUnavailable = "unavailable"
)

// Chatter 大模型对话接口，由 client/llm.Client 实现
type Chatter interface {
	Chat(ctx context.Context, systemPrompt, userContent string) (string, error)
}

// BreakerConfig 熔断配置：窗口内请求数达到 MinRequests 且失败率不低于 FailureRatio 时熔断
type BreakerConfig struct {
	MinRequests  uint32
	FailureRatio float64
	Interval     time.Duration
	OpenTimeout  time.Duration
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	if c.MinRequests == 0 {
		c.MinRequests = 3
	}
	if c.FailureRatio <= 0 {
		c.FailureRatio = 0.6
	}
	if c.Interval <= 0 {
		c.Interval = time.Minute
	}
	if c.OpenTimeout <= 0 {
		c.OpenTimeout = 30 * time.Second
	}
	return c
}

// Service 用大模型把文本归类到已注册的命令目录，实现 command.Resolver
type Service struct {
	chat    Chatter
	breaker *gobreaker.CircuitBreaker
	log     *logrus.Entry
}

// NewService 创建意图识别服务
func NewService(chat Chatter, cfg BreakerConfig, log *logrus.Entry) *Service {
	cfg = cfg.withDefaults()
	s := &Service{chat: chat, log: log.WithField("component", "intent")}
	s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "llm-intent",
		MaxRequests: 1,
		Interval:    cfg.Interval,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= cfg.MinRequests && failureRatio >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			s.log.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("circuit breaker state changed")
		},
	})
	return s
}

// State 熔断器当前状态
func (s *Service) State() string { return s.breaker.State().String() }

const systemPrompt = `你是一个语音命令分类器。用户会给你一段语音转写文本，以及当前可用的命令目录。
你需要判断文本最可能对应目录中的哪一个命令，并抽取命令参数。
你必须以 JSON 格式回复，且只输出一个 JSON 对象，不要其他说明。格式如下：
{
  "type": "命令类型，必须来自目录；无法对应任何命令时为空字符串",
  "confidence": "possible | likely | certain",
  "parameters": { "参数名": "参数值" }
}

规则：
- 只能使用目录里出现的命令类型和参数名
- 参数值使用用户原话中的词语，数字用阿拉伯数字
- 不确定时降低 confidence，完全无关时 type 为空

示例 - 目录含 search(query)，用户说 "could you look up pancake recipes"：
{ "type": "search", "confidence": "likely", "parameters": { "query": "pancake recipes" } }
`

type llmOutput struct {
	Type       string         `json:"type"`
	Confidence string         `json:"confidence"`
	Parameters map[string]any `json:"parameters"`
}

// ResolveCommand 调用大模型识别意图。熔断或调用失败返回 ErrLLMUnavailable，
// 模型判定无对应命令返回 ErrNoMatch
func (s *Service) ResolveCommand(ctx context.Context, text string, catalog []command.Info) (model.Command, error) {
	user, err := buildUserContent(text, catalog)
	if err != nil {
		return model.Command{}, err
	}
	raw, err := s.breaker.Execute(func() (interface{}, error) {
		return s.chat.Chat(ctx, systemPrompt, user)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.ObserveIntent(ResultUnavailable)
		} else {
			metrics.ObserveIntent(ResultError)
		}
		return model.Command{}, fmt.Errorf("%w: %v", model.ErrLLMUnavailable, err)
	}

	var out llmOutput
	if err := json.Unmarshal([]byte(ExtractJSON(raw.(string))), &out); err != nil {
		metrics.ObserveIntent(ResultError)
		return model.Command{}, fmt.Errorf("parse llm output: %w", err)
	}
	cmd, ok := toCommand(out, catalog)
	if !ok {
		metrics.ObserveIntent(ResultNoMatch)
		return model.Command{}, fmt.Errorf("%w: %q", model.ErrNoMatch, text)
	}
	metrics.ObserveIntent(ResultMatched)
	s.log.WithFields(logrus.Fields{"type": cmd.Type(), "confidence": cmd.Confidence().String()}).Debug("intent resolved")
	return cmd, nil
}

func buildUserContent(text string, catalog []command.Info) (string, error) {
	data, err := json.Marshal(catalog)
	if err != nil {
		return "", fmt.Errorf("marshal catalog: %w", err)
	}
	var b strings.Builder
	b.WriteString("命令目录:\n")
	b.Write(data)
	b.WriteString("\n\n用户输入: ")
	b.WriteString(text)
	return b.String(), nil
}

// toCommand 校验类型来自目录，参数按目录声明顺序排列，未声明的参数丢弃
func toCommand(out llmOutput, catalog []command.Info) (model.Command, bool) {
	typ := strings.TrimSpace(out.Type)
	if typ == "" {
		return model.Command{}, false
	}
	var info *command.Info
	for i := range catalog {
		if catalog[i].Type == typ {
			info = &catalog[i]
			break
		}
	}
	if info == nil {
		return model.Command{}, false
	}
	conf, ok := model.ParseConfidence(out.Confidence)
	if !ok || conf == model.ConfidenceNone {
		conf = model.ConfidencePossible
	}

	// 只保留识别器声明过的参数，未声明参数的命令不带参数
	var params []model.Parameter
	for _, name := range info.Parameters {
		v, ok := out.Parameters[name]
		if !ok {
			continue
		}
		if s := paramString(v); s != "" {
			params = append(params, model.Parameter{Name: name, Value: s})
		}
	}
	return model.NewCommand(typ, params, conf), true
}

func paramString(v any) string {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case nil:
		return ""
	default:
		return fmt.Sprint(x)
	}
}

// ExtractJSON 从回复中提取 JSON（大模型可能带 markdown 代码块）
func ExtractJSON(s string) string {
	s = strings.TrimSpace(s)
	if start := strings.Index(s, "{"); start >= 0 {
		if end := strings.LastIndex(s, "}"); end > start {
			return s[start : end+1]
		}
	}
	return s
}
