package model

import "time"

// AudioEventKind 音频事件种类
type AudioEventKind string

const (
	AudioEventSpeech  AudioEventKind = "speech"
	AudioEventTone    AudioEventKind = "tone"
	AudioEventSilence AudioEventKind = "silence"
)

// AudioEvent 一条要传达给用户的可听信息（只描述内容，不含音频数据）
type AudioEvent struct {
	Kind AudioEventKind `json:"kind"`
	// Utterance 要朗读的文本（speech）
	Utterance string `json:"utterance,omitempty"`
	// ToneURL 要播放的音效地址（tone）
	ToneURL string `json:"tone_url,omitempty"`
	// Duration 静音时长（silence）
	Duration time.Duration `json:"duration,omitempty"`
}

// SpeechEvent 朗读文本
func SpeechEvent(utterance string) AudioEvent {
	return AudioEvent{Kind: AudioEventSpeech, Utterance: utterance}
}

// ToneEvent 播放音效
func ToneEvent(url string) AudioEvent {
	return AudioEvent{Kind: AudioEventTone, ToneURL: url}
}

// SilenceEvent 停顿
func SilenceEvent(d time.Duration) AudioEvent {
	return AudioEvent{Kind: AudioEventSilence, Duration: d}
}

// AudioEventSequence 按顺序呈现的一组音频事件。所有操作返回新序列，不修改接收者
type AudioEventSequence struct {
	Events []AudioEvent `json:"events"`
}

// NewSequence 由事件创建序列
func NewSequence(events ...AudioEvent) AudioEventSequence {
	cp := make([]AudioEvent, len(events))
	copy(cp, events)
	return AudioEventSequence{Events: cp}
}

// Len 事件数量
func (s AudioEventSequence) Len() int { return len(s.Events) }

// IsEmpty 是否为空序列
func (s AudioEventSequence) IsEmpty() bool { return len(s.Events) == 0 }

// Append 在末尾追加事件
func (s AudioEventSequence) Append(events ...AudioEvent) AudioEventSequence {
	out := make([]AudioEvent, 0, len(s.Events)+len(events))
	out = append(out, s.Events...)
	out = append(out, events...)
	return AudioEventSequence{Events: out}
}

// Prepend 在开头插入事件
func (s AudioEventSequence) Prepend(events ...AudioEvent) AudioEventSequence {
	out := make([]AudioEvent, 0, len(s.Events)+len(events))
	out = append(out, events...)
	out = append(out, s.Events...)
	return AudioEventSequence{Events: out}
}

// AppendSequence 拼接另一个序列
func (s AudioEventSequence) AppendSequence(other AudioEventSequence) AudioEventSequence {
	return s.Append(other.Events...)
}

// Utterances 序列中所有朗读文本，便于日志与测试
func (s AudioEventSequence) Utterances() []string {
	var out []string
	for _, e := range s.Events {
		if e.Kind == AudioEventSpeech {
			out = append(out, e.Utterance)
		}
	}
	return out
}

// PostedSequence 已投递到某条音轨的序列记录（事件日志、消息总线的载荷）
type PostedSequence struct {
	SessionID string             `json:"session_id"`
	Track     string             `json:"track"`
	Sequence  AudioEventSequence `json:"sequence"`
	PostedAt  time.Time          `json:"posted_at"`
}
