package command

import (
	"fmt"
	"sort"

	"saykit-agent/internal/model"
)

// 内置命令类型
const (
	TypeSearch            = "search"
	TypeSelect            = "select"
	TypePlay              = "play"
	TypeNext              = "next"
	TypePrevious          = "previous"
	TypeBack              = "back"
	TypeHelp              = "help"
	TypeAvailableCommands = "available_commands"
	TypeSetSpeechRate     = "set_speech_rate"
)

// 内置命令参数
const (
	ParamQuery      = "query"
	ParamItem       = "item"
	ParamItemNumber = "itemNumber"
	ParamSpeechRate = "speechRate"
)

type standardDef struct {
	patterns  []string
	required  []string
	validator Validator
}

// 模板顺序有意义：同分时先声明者胜
var standardDefs = map[string]standardDef{
	TypeSearch: {
		patterns: []string{"search for @query", "search @query", "find @query", "look for @query", "look up @query"},
		required: []string{ParamQuery},
	},
	TypeSelect: {
		patterns: []string{
			"select number @itemNumber:Number", "select item @itemNumber:Number",
			"select @item", "choose @item", "pick @item",
		},
		// 扩展模板（如 "i choose you @name"）可带自定义参数，至少要有一个
		validator: func(cmd model.Command) error {
			for _, p := range cmd.Params() {
				if p.Value != "" {
					return nil
				}
			}
			return fmt.Errorf("select needs %s, %s or a custom parameter", ParamItem, ParamItemNumber)
		},
	},
	TypePlay:              {patterns: []string{"play @item", "play", "start", "resume"}},
	TypeNext:              {patterns: []string{"next", "next one", "skip", "go forward"}},
	TypePrevious:          {patterns: []string{"previous", "previous one", "go to previous"}},
	TypeBack:              {patterns: []string{"back", "go back", "return"}},
	TypeHelp:              {patterns: []string{"help", "help me", "i need help"}},
	TypeAvailableCommands: {patterns: []string{"what can i say", "available commands", "list commands", "what are my options"}},
	TypeSetSpeechRate: {
		patterns: []string{"set speech rate to @speechRate:Number", "speak at @speechRate:Number", "speech rate @speechRate:Number"},
		required: []string{ParamSpeechRate},
	},
}

// StandardTypes 内置命令类型（按名称排序）
func StandardTypes() []string {
	out := make([]string, 0, len(standardDefs))
	for t := range standardDefs {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// NewStandard 按类型名创建内置识别器，可再用 AddPatterns 扩展
func NewStandard(commandType string, action Action, opts ...Option) (*Recognizer, error) {
	def, ok := standardDefs[commandType]
	if !ok {
		return nil, fmt.Errorf("unknown standard command %q", commandType)
	}
	all := []Option{WithRequired(def.required...)}
	if def.validator != nil {
		all = append(all, WithValidator(def.validator))
	}
	r := newRecognizer(KindStandard, commandType, action, append(all, opts...)...)
	r.AddTextMatcher(MustPatternMatcher(def.patterns...))
	return r, nil
}

func mustStandard(commandType string, action Action) *Recognizer {
	r, err := NewStandard(commandType, action)
	if err != nil {
		panic(err)
	}
	return r
}

// NewSearch 参数 query
func NewSearch(action Action) *Recognizer { return mustStandard(TypeSearch, action) }

// NewSelect 参数 item 或 itemNumber
func NewSelect(action Action) *Recognizer { return mustStandard(TypeSelect, action) }

func NewPlay(action Action) *Recognizer     { return mustStandard(TypePlay, action) }
func NewNext(action Action) *Recognizer     { return mustStandard(TypeNext, action) }
func NewPrevious(action Action) *Recognizer { return mustStandard(TypePrevious, action) }
func NewBack(action Action) *Recognizer     { return mustStandard(TypeBack, action) }
func NewHelp(action Action) *Recognizer     { return mustStandard(TypeHelp, action) }

// NewAvailableCommands "what can i say"
func NewAvailableCommands(action Action) *Recognizer {
	return mustStandard(TypeAvailableCommands, action)
}

// NewSetSpeechRate 参数 speechRate（数字）
func NewSetSpeechRate(action Action) *Recognizer { return mustStandard(TypeSetSpeechRate, action) }
