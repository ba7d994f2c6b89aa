package model

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// Confidence 匹配置信度等级，用于在多个识别器之间排序
type Confidence int

const (
	ConfidenceNone Confidence = iota
	ConfidencePossible
	ConfidenceLikely
	ConfidenceCertain
)

func (c Confidence) String() string {
	switch c {
	case ConfidenceNone:
		return "none"
	case ConfidencePossible:
		return "possible"
	case ConfidenceLikely:
		return "likely"
	case ConfidenceCertain:
		return "certain"
	default:
		return "unknown"
	}
}

// ParseConfidence 解析配置或大模型返回的置信度名称
func ParseConfidence(s string) (Confidence, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "":
		return ConfidenceNone, true
	case "possible":
		return ConfidencePossible, true
	case "likely":
		return ConfidenceLikely, true
	case "certain":
		return ConfidenceCertain, true
	}
	return ConfidenceNone, false
}

func (c Confidence) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Confidence) UnmarshalText(b []byte) error {
	v, ok := ParseConfidence(string(b))
	if !ok {
		return fmt.Errorf("unknown confidence %q", string(b))
	}
	*c = v
	return nil
}

// Parameter 命令的单个具名参数
type Parameter struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Command 识别出的意图：类型 + 有序参数。产生后不可修改，按值传递
type Command struct {
	typ        string
	params     []Parameter
	confidence Confidence
}

// NewCommand 创建命令，参数列表会被复制
func NewCommand(typ string, params []Parameter, confidence Confidence) Command {
	cp := make([]Parameter, len(params))
	copy(cp, params)
	return Command{typ: typ, params: cp, confidence: confidence}
}

// Type 命令类型，命令用途的主要标识
func (c Command) Type() string { return c.typ }

// Confidence 产生该命令时的匹配置信度
func (c Command) Confidence() Confidence { return c.confidence }

// Param 按名称取参数值
func (c Command) Param(name string) (string, bool) {
	for _, p := range c.params {
		if p.Name == name {
			return p.Value, true
		}
	}
	return "", false
}

// NumberParam 取数值参数
func (c Command) NumberParam(name string) (float64, bool) {
	v, ok := c.Param(name)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Params 按产生顺序返回参数副本
func (c Command) Params() []Parameter {
	cp := make([]Parameter, len(c.params))
	copy(cp, c.params)
	return cp
}

// ParamMap 参数的 map 视图（丢失顺序），用于模板替换等
func (c Command) ParamMap() map[string]string {
	m := make(map[string]string, len(c.params))
	for _, p := range c.params {
		m[p.Name] = p.Value
	}
	return m
}

// IsZero 是否为空命令
func (c Command) IsZero() bool { return c.typ == "" }

func (c Command) String() string {
	var b strings.Builder
	b.WriteString(c.typ)
	if len(c.params) > 0 {
		b.WriteString("{")
		for i, p := range c.params {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(p.Name)
			b.WriteString(": ")
			b.WriteString(strconv.Quote(p.Value))
		}
		b.WriteString("}")
	}
	return b.String()
}

type commandJSON struct {
	Type       string      `json:"type"`
	Parameters []Parameter `json:"parameters"`
	Confidence Confidence  `json:"confidence"`
}

func (c Command) MarshalJSON() ([]byte, error) {
	params := c.params
	if params == nil {
		params = []Parameter{}
	}
	return json.Marshal(commandJSON{Type: c.typ, Parameters: params, Confidence: c.confidence})
}

func (c *Command) UnmarshalJSON(b []byte) error {
	var v commandJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*c = NewCommand(v.Type, v.Parameters, v.Confidence)
	return nil
}
