package match

import (
	"fmt"
	"strings"

	"saykit-agent/internal/model"
)

// SlotType 模板实体类型
type SlotType int

const (
	SlotString SlotType = iota
	SlotNumber
)

func (t SlotType) String() string {
	if t == SlotNumber {
		return "Number"
	}
	return "String"
}

// Slot 模板中的具名实体：@name 或 @name:Number / @name:String
type Slot struct {
	Name string
	Type SlotType
}

type token struct {
	literal string
	slot    *Slot
}

// Template 编译后的匹配模板，如 "search for @query"、"ask @friend for @count:Number cookies"
type Template struct {
	raw    string
	tokens []token
	slots  []Slot
}

// Compile 编译模板；实体名为空、类型未知、实体重名时报错
func Compile(raw string) (*Template, error) {
	t := &Template{raw: raw}
	seen := make(map[string]bool)
	for _, field := range strings.Fields(raw) {
		if strings.HasPrefix(field, "@") {
			spec := strings.TrimRight(field[1:], ".,!?;")
			name, typ, hasType := strings.Cut(spec, ":")
			if name == "" {
				return nil, fmt.Errorf("%w: empty entity name in %q", model.ErrInvalidTemplate, raw)
			}
			slot := Slot{Name: name, Type: SlotString}
			if hasType {
				switch strings.ToLower(typ) {
				case "string":
				case "number":
					slot.Type = SlotNumber
				default:
					return nil, fmt.Errorf("%w: unknown entity type %q in %q", model.ErrInvalidTemplate, typ, raw)
				}
			}
			if seen[name] {
				return nil, fmt.Errorf("%w: duplicate entity %q in %q", model.ErrInvalidTemplate, name, raw)
			}
			seen[name] = true
			t.slots = append(t.slots, slot)
			t.tokens = append(t.tokens, token{slot: &t.slots[len(t.slots)-1]})
			continue
		}
		for _, w := range Words(field) {
			t.tokens = append(t.tokens, token{literal: w})
		}
	}
	if len(t.tokens) == 0 {
		return nil, fmt.Errorf("%w: empty template", model.ErrInvalidTemplate)
	}
	// t.slots 扩容后指针会失效，重新绑定
	si := 0
	for i := range t.tokens {
		if t.tokens[i].slot != nil {
			t.tokens[i].slot = &t.slots[si]
			si++
		}
	}
	return t, nil
}

// MustCompile 编译失败时 panic，用于内置模板
func MustCompile(raw string) *Template {
	t, err := Compile(raw)
	if err != nil {
		panic(err)
	}
	return t
}

// Raw 原始模板文本
func (t *Template) Raw() string { return t.raw }

// Slots 模板声明的实体
func (t *Template) Slots() []Slot {
	cp := make([]Slot, len(t.slots))
	copy(cp, t.slots)
	return cp
}

// Result 单个模板的匹配结果
type Result struct {
	Confidence model.Confidence
	Params     []model.Parameter
	// Err 字面量匹配但实体缺失或格式不对时为 ErrMissingParameter
	Err error
}

// Matched 是否得到可用的匹配
func (r Result) Matched() bool {
	return r.Confidence > model.ConfidenceNone && r.Err == nil
}

// Match 匹配文本：
//   - 完整匹配整句 -> Certain
//   - 模板作为句子中连续片段出现 -> Likely
//   - 无实体模板的字面量按顺序散落在句子中 -> Possible
//
// 字面量吻合但实体为空或数字实体无法解析时，返回带 ErrMissingParameter 的结果
func (t *Template) Match(text string) Result {
	return t.MatchWords(Words(text))
}

// MatchWords 对已切分的单词匹配
func (t *Template) MatchWords(words []string) Result {
	if len(words) == 0 {
		return Result{}
	}
	if params, ok := t.matchAt(words, 0, true, true); ok {
		return Result{Confidence: model.ConfidenceCertain, Params: params}
	}
	for start := 0; start < len(words); start++ {
		if params, ok := t.matchAt(words, start, false, true); ok {
			return Result{Confidence: model.ConfidenceLikely, Params: params}
		}
	}
	if len(t.slots) > 0 {
		if _, ok := t.matchAt(words, 0, true, false); ok {
			return Result{Confidence: model.ConfidenceCertain, Err: t.missingErr()}
		}
		for start := 0; start < len(words); start++ {
			if _, ok := t.matchAt(words, start, false, false); ok {
				return Result{Confidence: model.ConfidenceLikely, Err: t.missingErr()}
			}
		}
		return Result{}
	}
	if t.literalSubsequence(words) {
		return Result{Confidence: model.ConfidencePossible}
	}
	return Result{}
}

func (t *Template) missingErr() error {
	names := make([]string, len(t.slots))
	for i, s := range t.slots {
		names[i] = "@" + s.Name
	}
	return fmt.Errorf("%w: %s in %q", model.ErrMissingParameter, strings.Join(names, ", "), t.raw)
}

// matchAt 从 words[start] 开始匹配；anchored 要求匹配到句尾；strict 要求实体非空且类型正确
func (t *Template) matchAt(words []string, start int, anchored, strict bool) ([]model.Parameter, bool) {
	captures := make([][]string, len(t.slots))
	if !t.matchRec(words, start, 0, 0, anchored, strict, captures) {
		return nil, false
	}
	if !strict {
		return nil, true
	}
	params := make([]model.Parameter, len(t.slots))
	for i, s := range t.slots {
		value := strings.Join(captures[i], " ")
		if s.Type == SlotNumber {
			n, _ := ParseNumber(captures[i])
			value = FormatNumber(n)
		}
		params[i] = model.Parameter{Name: s.Name, Value: value}
	}
	return params, true
}

func (t *Template) matchRec(words []string, wi, ti, si int, anchored, strict bool, captures [][]string) bool {
	if ti == len(t.tokens) {
		return !anchored || wi == len(words)
	}
	tok := t.tokens[ti]
	if tok.slot == nil {
		if wi < len(words) && words[wi] == tok.literal {
			return t.matchRec(words, wi+1, ti+1, si, anchored, strict, captures)
		}
		return false
	}
	minLen := 1
	if !strict {
		minLen = 0
	}
	// 贪婪：先尝试最长捕获
	for end := len(words); end >= wi+minLen; end-- {
		capture := words[wi:end]
		if strict && tok.slot.Type == SlotNumber {
			if _, ok := ParseNumber(capture); !ok {
				continue
			}
		}
		captures[si] = capture
		if t.matchRec(words, end, ti+1, si+1, anchored, strict, captures) {
			return true
		}
	}
	captures[si] = nil
	return false
}

func (t *Template) literalSubsequence(words []string) bool {
	wi := 0
	for _, tok := range t.tokens {
		found := false
		for wi < len(words) {
			if words[wi] == tok.literal {
				found = true
				wi++
				break
			}
			wi++
		}
		if !found {
			return false
		}
	}
	return true
}
