package command

import "sync"

// Registry 分发器所见的识别器集合，按注册顺序返回快照
type Registry interface {
	Recognizers() []*Recognizer
}

// Catalog 有序识别器目录
type Catalog struct {
	mu          sync.RWMutex
	recognizers []*Recognizer
}

func NewCatalog(recognizers ...*Recognizer) *Catalog {
	c := &Catalog{}
	for _, r := range recognizers {
		c.AddRecognizer(r)
	}
	return c
}

// AddRecognizer 注册识别器；重复注册同一个实例会被忽略
func (c *Catalog) AddRecognizer(r *Recognizer) {
	if r == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, existing := range c.recognizers {
		if existing == r {
			return
		}
	}
	c.recognizers = append(c.recognizers, r)
}

// RemoveRecognizer 移除识别器，返回是否存在
func (c *Catalog) RemoveRecognizer(r *Recognizer) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, existing := range c.recognizers {
		if existing == r {
			c.recognizers = append(c.recognizers[:i:i], c.recognizers[i+1:]...)
			return true
		}
	}
	return false
}

// RemoveAll 清空目录
func (c *Catalog) RemoveAll() {
	c.mu.Lock()
	c.recognizers = nil
	c.mu.Unlock()
}

func (c *Catalog) Recognizers() []*Recognizer {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]*Recognizer(nil), c.recognizers...)
}

func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.recognizers)
}

// AvailableCommands 任一注册表中的命令类型，去重并保持注册顺序
func AvailableCommands(reg Registry) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range reg.Recognizers() {
		if !seen[r.Type()] {
			seen[r.Type()] = true
			out = append(out, r.Type())
		}
	}
	return out
}

// Describe 注册表中所有识别器的描述
func Describe(reg Registry) []Info {
	recs := reg.Recognizers()
	out := make([]Info, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Info())
	}
	return out
}
