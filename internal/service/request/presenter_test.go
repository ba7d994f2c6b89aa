package request

import (
	"context"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saykit-agent/internal/model"
)

type fakeVoice struct {
	spoken []string
	tones  []string
	held   int
}

func (v *fakeVoice) Post(_ context.Context, seq model.AudioEventSequence) {
	for _, e := range seq.Events {
		switch e.Kind {
		case model.AudioEventSpeech:
			v.spoken = append(v.spoken, e.Utterance)
		case model.AudioEventTone:
			v.tones = append(v.tones, e.ToneURL)
		}
	}
}
func (v *fakeVoice) Hold()    { v.held++ }
func (v *fakeVoice) Release() { v.held-- }

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func newTestPresenter(settings Settings) (*Presenter, *fakeVoice) {
	v := &fakeVoice{}
	return NewPresenter(settings, v, testLogger()), v
}

func TestPresenterTerminal(t *testing.T) {
	p, v := newTestPresenter(Settings{MicStartTone: "start.wav", MicStopTone: "stop.wav"})
	ctx := context.Background()
	ran := 0
	req := NewConfirmation("Proceed?", func(context.Context, bool) Response {
		return Terminal(func(context.Context) { ran++ })
	})

	require.NoError(t, p.Present(ctx, req))
	assert.Equal(t, StatePresented, p.Status().State)
	require.NoError(t, p.Listen(ctx))
	assert.Equal(t, StateAwaitingResult, p.Status().State)

	out, err := p.Resolve(ctx, "yes")
	require.NoError(t, err)
	assert.True(t, out.Terminal)
	assert.Empty(t, out.FollowupID)
	assert.Equal(t, StateResolved, out.State)
	assert.Equal(t, 1, ran)

	assert.Equal(t, StateIdle, p.Status().State)
	assert.Nil(t, p.Active())
	assert.Equal(t, []string{"Proceed?"}, v.spoken)
	assert.Equal(t, []string{"start.wav", "stop.wav"}, v.tones)
	assert.Equal(t, 0, v.held)

	_, err = p.Resolve(ctx, "yes")
	assert.ErrorIs(t, err, model.ErrInvalidState)
}

func TestPresenterFollowup(t *testing.T) {
	p, v := newTestPresenter(Settings{})
	ctx := context.Background()
	var picked SelectResult
	colors := NewSelect("Which color?", []string{"Blue", "Green", "Purple"}, func(_ context.Context, r SelectResult) Response {
		picked = r
		return Terminal(nil)
	})
	start := NewConfirmation("Pick a color?", func(_ context.Context, yes bool) Response {
		if !yes {
			return Terminal(nil)
		}
		return FollowupWithFeedback("Great.", colors)
	})

	require.NoError(t, p.Present(ctx, start))
	out, err := p.Resolve(ctx, "sure")
	require.NoError(t, err)
	assert.False(t, out.Terminal)
	assert.Equal(t, colors.ID(), out.FollowupID)
	assert.Equal(t, colors.ID(), p.Status().ActiveID)
	assert.Equal(t, StatePresented, p.Status().State)

	out, err = p.ResolveWith(ctx, func(ctx context.Context, req Request) (Response, error) {
		return req.(*Select).Choose(ctx, 1)
	})
	require.NoError(t, err)
	assert.True(t, out.Terminal)
	assert.Equal(t, "Green", picked.Option.Label)
	assert.Equal(t, 1, picked.Index)
	assert.Equal(t, []string{"Pick a color?", "Great.", "Which color?"}, v.spoken)
	assert.Equal(t, 0, v.held)
}

func TestPresenterReprompt(t *testing.T) {
	p, v := newTestPresenter(Settings{MaxReprompts: 1, RepromptText: "Say again?"})
	ctx := context.Background()
	var failure error
	failures := 0
	req := NewConfirmation("Proceed?", nil,
		WithFollowupPrompt("Please say yes or no."),
		WithFailure(func(_ context.Context, err error) {
			failures++
			failure = err
		}))

	require.NoError(t, p.Present(ctx, req))
	out, err := p.Resolve(ctx, "banana")
	require.NoError(t, err)
	assert.True(t, out.Reprompted)
	assert.Equal(t, StatePresented, out.State)

	out, err = p.Resolve(ctx, "mango")
	require.NoError(t, err)
	assert.Equal(t, StateFailed, out.State)
	assert.ErrorIs(t, out.Err, model.ErrRecognitionFailed)
	assert.ErrorIs(t, failure, model.ErrRecognitionFailed)
	assert.Equal(t, 1, failures)
	assert.Equal(t, []string{"Proceed?", "Please say yes or no."}, v.spoken)
	assert.Equal(t, StateIdle, p.Status().State)
}

func TestPresenterPolicies(t *testing.T) {
	ctx := context.Background()

	t.Run("reject", func(t *testing.T) {
		p, _ := newTestPresenter(Settings{Policy: PolicyReject})
		first := NewString("first", nil)
		require.NoError(t, p.Present(ctx, first))
		err := p.Present(ctx, NewString("second", nil))
		assert.ErrorIs(t, err, model.ErrInvalidState)
		assert.Equal(t, first.ID(), p.Status().ActiveID)
	})

	t.Run("replace", func(t *testing.T) {
		p, v := newTestPresenter(Settings{Policy: PolicyReplace})
		var failure error
		first := NewString("first", nil, WithFailure(func(_ context.Context, err error) { failure = err }))
		second := NewString("second", nil)
		require.NoError(t, p.Present(ctx, first))
		require.NoError(t, p.Present(ctx, second))
		assert.ErrorIs(t, failure, model.ErrRequestAborted)
		assert.Equal(t, second.ID(), p.Status().ActiveID)
		assert.Equal(t, 1, v.held)
	})

	t.Run("same request under every policy", func(t *testing.T) {
		for _, policy := range []Policy{PolicyReject, PolicyReplace, PolicyQueue} {
			p, _ := newTestPresenter(Settings{Policy: policy})
			failed := 0
			req := NewString("again", nil, WithFailure(func(context.Context, error) { failed++ }))
			require.NoError(t, p.Present(ctx, req))
			err := p.Present(ctx, req)
			assert.ErrorIs(t, err, model.ErrInvalidState, policy.String())
			assert.Zero(t, failed, policy.String())
			assert.Equal(t, req.ID(), p.Status().ActiveID)
			assert.Zero(t, p.Status().Queued)
		}
	})

	t.Run("queue", func(t *testing.T) {
		p, v := newTestPresenter(Settings{Policy: PolicyQueue})
		first := NewString("first", nil)
		second := NewString("second", nil)
		require.NoError(t, p.Present(ctx, first))
		require.NoError(t, p.Present(ctx, second))
		assert.Equal(t, 1, p.Status().Queued)

		_, err := p.Resolve(ctx, "done")
		require.NoError(t, err)
		assert.Equal(t, second.ID(), p.Status().ActiveID)
		assert.Equal(t, 0, p.Status().Queued)
		assert.Equal(t, []string{"first", "second"}, v.spoken)
	})
}

func TestPresenterCancel(t *testing.T) {
	p, v := newTestPresenter(Settings{Policy: PolicyQueue})
	ctx := context.Background()
	var errs []error
	onFail := WithFailure(func(_ context.Context, err error) { errs = append(errs, err) })
	require.NoError(t, p.Present(ctx, NewString("first", nil, onFail)))
	require.NoError(t, p.Present(ctx, NewString("second", nil, onFail)))

	require.NoError(t, p.Cancel(ctx))
	require.Len(t, errs, 2)
	for _, err := range errs {
		assert.ErrorIs(t, err, model.ErrRequestAborted)
	}
	assert.Equal(t, Status{State: StateIdle}, p.Status())
	assert.Equal(t, 0, v.held)

	assert.ErrorIs(t, p.Cancel(ctx), model.ErrInvalidState)
}

func TestPresenterFail(t *testing.T) {
	p, _ := newTestPresenter(Settings{})
	ctx := context.Background()
	calls := 0
	req := NewNumerical("How many?", nil, WithFailure(func(_ context.Context, err error) {
		calls++
		assert.ErrorIs(t, err, model.ErrRecognitionFailed)
	}))
	require.NoError(t, p.Present(ctx, req))
	require.NoError(t, p.Fail(ctx, nil))
	assert.ErrorIs(t, p.Fail(ctx, nil), model.ErrInvalidState)
	assert.Equal(t, 1, calls)
}

func TestPresenterActionMayPresent(t *testing.T) {
	p, _ := newTestPresenter(Settings{})
	ctx := context.Background()
	next := NewString("next", nil)
	req := NewConfirmation("Proceed?", func(context.Context, bool) Response {
		return Terminal(func(ctx context.Context) {
			require.NoError(t, p.Present(ctx, next))
		})
	})
	require.NoError(t, p.Present(ctx, req))
	_, err := p.Resolve(ctx, "yes")
	require.NoError(t, err)
	assert.Equal(t, next.ID(), p.Status().ActiveID)
}

func TestParsePolicy(t *testing.T) {
	for in, want := range map[string]Policy{"": PolicyReject, "Replace": PolicyReplace, "queue": PolicyQueue} {
		got, err := ParsePolicy(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParsePolicy("drop")
	assert.Error(t, err)
}
