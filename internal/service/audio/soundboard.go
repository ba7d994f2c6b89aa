package audio

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"saykit-agent/internal/model"
)

// SoundBoard 在一条音轨上播报文本与音效
type SoundBoard struct {
	track    *Track
	micStart string
	micStop  string
}

func NewSoundBoard(track *Track, micStartTone, micStopTone string) *SoundBoard {
	return &SoundBoard{track: track, micStart: micStartTone, micStop: micStopTone}
}

func (b *SoundBoard) Track() *Track { return b.track }

// Speak 朗读一段或多段文本，空文本忽略
func (b *SoundBoard) Speak(ctx context.Context, utterances ...string) {
	seq := model.NewSequence()
	for _, u := range utterances {
		if strings.TrimSpace(u) != "" {
			seq = seq.Append(model.SpeechEvent(u))
		}
	}
	b.track.Post(ctx, seq)
}

func (b *SoundBoard) PlayTone(ctx context.Context, url string) {
	if url != "" {
		b.track.Post(ctx, model.NewSequence(model.ToneEvent(url)))
	}
}

func (b *SoundBoard) Pause(ctx context.Context, d time.Duration) {
	b.track.Post(ctx, model.NewSequence(model.SilenceEvent(d)))
}

func (b *SoundBoard) MicStart(ctx context.Context) { b.PlayTone(ctx, b.micStart) }
func (b *SoundBoard) MicStop(ctx context.Context)  { b.PlayTone(ctx, b.micStop) }

// LogOutput 把投递的序列写进日志，作为没有播放端时的默认出口
func LogOutput(log *logrus.Entry) Output {
	return OutputFunc(func(_ context.Context, posted model.PostedSequence) error {
		log.WithFields(logrus.Fields{
			"session_id": posted.SessionID,
			"track":      posted.Track,
			"events":     posted.Sequence.Len(),
		}).Info(strings.Join(posted.Sequence.Utterances(), " "))
		return nil
	})
}
