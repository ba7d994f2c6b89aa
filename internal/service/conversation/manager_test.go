package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saykit-agent/internal/logging"
	"saykit-agent/internal/model"
	"saykit-agent/internal/service/command"
	"saykit-agent/internal/service/request"
	"saykit-agent/internal/service/topic"
)

func spoken(t *testing.T, m *Manager) []string {
	t.Helper()
	events, err := m.Events(context.Background(), 100)
	require.NoError(t, err)
	var out []string
	for _, e := range events {
		out = append(out, e.Sequence.Utterances()...)
	}
	return out
}

func newSession(t *testing.T, recs ...*command.Recognizer) *Manager {
	t.Helper()
	settings := Settings{Presenter: request.Settings{MaxReprompts: 2}}
	m := New("s1", topic.New("root", topic.WithRecognizers(recs...)), settings, logging.Discard())
	t.Cleanup(func() { _ = m.Close(context.Background()) })
	return m
}

func TestHandleTextDispatchesCommand(t *testing.T) {
	root := topic.New("root")
	search := topic.New("search", topic.WithInterceptor(topic.Preface("Here's what I found.")))
	require.NoError(t, root.AddSubtopic(search))
	leaf := topic.New("results")
	require.NoError(t, search.AddSubtopic(leaf))
	leaf.AddRecognizer(command.NewSearch(command.HandlerAction(func(ctx context.Context, cmd model.Command) {
		q, _ := cmd.Param(command.ParamQuery)
		leaf.Speak(ctx, "Three "+q+" recipes.")
	})))

	m := New("s1", root, Settings{}, logging.Discard())
	defer m.Close(context.Background())

	resp, err := m.HandleText(context.Background(), "search for pancake")
	require.NoError(t, err)
	assert.Equal(t, HandledCommand, resp.Handled)
	require.NotNil(t, resp.Command)
	assert.Equal(t, command.TypeSearch, resp.Command.Type())
	assert.Equal(t, []string{"Here's what I found.", "Three pancake recipes."}, spoken(t, m))
}

func TestHandleTextNoMatch(t *testing.T) {
	m := newSession(t, command.NewHelp(command.HandlerAction(func(context.Context, model.Command) {})))
	resp, err := m.HandleText(context.Background(), "launch the rocket")
	assert.ErrorIs(t, err, model.ErrNoMatch)
	assert.Equal(t, HandledCommand, resp.Handled)
	assert.NotEmpty(t, resp.Message)
	assert.Equal(t, []string{"Sorry, I don't know how to do that."}, spoken(t, m))

	_, err = m.HandleText(context.Background(), "  ")
	assert.ErrorIs(t, err, model.ErrNoMatch)
}

func TestResponderFollowup(t *testing.T) {
	var deleted []string
	del, err := command.NewComposite("delete", []string{"delete @item"}, command.ResponderAction(func(_ context.Context, cmd model.Command) request.Response {
		item, _ := cmd.Param("item")
		confirm := request.NewConfirmation("Delete "+item+"?", func(_ context.Context, ok bool) request.Response {
			return request.Terminal(func(context.Context) {
				if ok {
					deleted = append(deleted, item)
				}
			})
		})
		return request.FollowupWithFeedback("Okay.", confirm)
	}), command.WithRequired("item"))
	require.NoError(t, err)
	m := newSession(t, del)
	ctx := context.Background()

	resp, err := m.HandleText(ctx, "delete notes")
	require.NoError(t, err)
	assert.Equal(t, HandledCommand, resp.Handled)
	assert.Equal(t, request.StateAwaitingResult.String(), m.Status().RequestState)

	resp, err = m.HandleText(ctx, "yes please")
	require.NoError(t, err)
	assert.Equal(t, HandledRequest, resp.Handled)
	require.NotNil(t, resp.Outcome)
	assert.True(t, resp.Outcome.Terminal)
	assert.Equal(t, []string{"notes"}, deleted)
	assert.Equal(t, []string{"Okay.", "Delete notes?"}, spoken(t, m))
	assert.Equal(t, request.StateIdle.String(), m.Status().RequestState)
}

func TestActionPresentsRequestReentrantly(t *testing.T) {
	var m *Manager
	var presentErr error
	play := command.NewPlay(command.HandlerAction(func(ctx context.Context, _ model.Command) {
		_, presentErr = m.PresentRequest(ctx, model.PresentRequest{Kind: "confirmation", Prompt: "Play from the start?"})
	}))
	m = newSession(t, play)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = m.HandleText(context.Background(), "play")
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("re-entrant present deadlocked")
	}
	require.NoError(t, presentErr)
	assert.Equal(t, string(request.KindConfirmation), m.Status().ActiveKind)
}

func TestListenCommandRequest(t *testing.T) {
	var ran []string
	next := command.NewNext(command.HandlerAction(func(_ context.Context, cmd model.Command) { ran = append(ran, cmd.Type()) }))
	m := newSession(t, next)
	ctx := context.Background()

	id, err := m.Listen(ctx)
	require.NoError(t, err)
	st := m.Status()
	assert.Equal(t, id, st.ActiveRequest)
	assert.Equal(t, string(request.KindCommand), st.ActiveKind)

	resp, err := m.HandleText(ctx, "mumble")
	require.NoError(t, err)
	assert.True(t, resp.Outcome.Reprompted)
	assert.Empty(t, ran)

	resp, err = m.HandleText(ctx, "next")
	require.NoError(t, err)
	assert.True(t, resp.Outcome.Terminal)
	assert.Equal(t, []string{command.TypeNext}, ran)

	results := m.Results()
	require.Len(t, results, 1)
	assert.Equal(t, id, results[0].RequestID)
	assert.Equal(t, string(request.KindCommand), results[0].Kind)
}

func TestPresentSelectAndChoose(t *testing.T) {
	m := newSession(t)
	ctx := context.Background()
	spec := model.PresentRequest{
		Kind:   "select",
		Prompt: "Which color?",
		Options: []model.SelectOptionSpec{
			{Label: "Blue"}, {Label: "Green", Aliases: []string{"lime"}}, {Label: "Purple"},
		},
	}

	_, err := m.PresentRequest(ctx, spec)
	require.NoError(t, err)
	resp, err := m.HandleText(ctx, "lime")
	require.NoError(t, err)
	assert.True(t, resp.Outcome.Terminal)
	last := m.Status().LastResult
	require.NotNil(t, last)
	assert.Equal(t, request.SelectResult{Option: request.SelectOption{Label: "Green", Aliases: []string{"lime"}}, Index: 1}, last.Value)

	_, err = m.PresentRequest(ctx, spec)
	require.NoError(t, err)
	out, err := m.Choose(ctx, 2)
	require.NoError(t, err)
	assert.True(t, out.Terminal)
	assert.Equal(t, 2, m.Status().LastResult.Value.(request.SelectResult).Index)

	_, err = m.Choose(ctx, 0)
	assert.ErrorIs(t, err, model.ErrInvalidState)
}

func TestPresentRequestValidation(t *testing.T) {
	m := newSession(t)
	tests := []struct {
		name string
		spec model.PresentRequest
		want error
	}{
		{"unknown kind", model.PresentRequest{Kind: "colour", Prompt: "?"}, model.ErrInvalidRequest},
		{"no prompt", model.PresentRequest{Kind: "string"}, model.ErrInvalidRequest},
		{"select without options", model.PresentRequest{Kind: "select", Prompt: "?"}, model.ErrInvalidRequest},
		{"pattern without templates", model.PresentRequest{Kind: "pattern", Prompt: "?"}, model.ErrInvalidTemplate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.PresentRequest(context.Background(), tt.spec)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestPresentWhileActiveRejected(t *testing.T) {
	m := newSession(t)
	ctx := context.Background()
	_, err := m.PresentRequest(ctx, model.PresentRequest{Kind: "string", Prompt: "Name?"})
	require.NoError(t, err)
	_, err = m.PresentRequest(ctx, model.PresentRequest{Kind: "number", Prompt: "Age?"})
	assert.ErrorIs(t, err, model.ErrInvalidState)
}

func TestCancelAndFail(t *testing.T) {
	m := newSession(t)
	ctx := context.Background()

	id, err := m.PresentRequest(ctx, model.PresentRequest{Kind: "number", Prompt: "How many?"})
	require.NoError(t, err)
	require.NoError(t, m.Cancel(ctx))
	last := m.Status().LastResult
	require.NotNil(t, last)
	assert.Equal(t, id, last.RequestID)
	assert.Contains(t, last.Error, model.ErrRequestAborted.Error())
	assert.ErrorIs(t, m.Cancel(ctx), model.ErrInvalidState)

	_, err = m.PresentRequest(ctx, model.PresentRequest{Kind: "string", Prompt: "Say something"})
	require.NoError(t, err)
	require.NoError(t, m.Fail(ctx, "microphone unplugged"))
	assert.Contains(t, m.Status().LastResult.Error, "microphone unplugged")
	assert.Equal(t, request.StateIdle.String(), m.Status().RequestState)
}

func TestMainTrackWaitsForVoiceRequest(t *testing.T) {
	m := newSession(t)
	ctx := context.Background()
	_, err := m.PresentRequest(ctx, model.PresentRequest{Kind: "confirmation", Prompt: "Continue?"})
	require.NoError(t, err)

	m.Root().Speak(ctx, "background news")
	assert.Equal(t, []string{"Continue?"}, spoken(t, m))

	_, err = m.HandleText(ctx, "yes")
	require.NoError(t, err)
	assert.Equal(t, []string{"Continue?", "background news"}, spoken(t, m))
}

func TestClosedSession(t *testing.T) {
	m := New("s1", topic.New("root"), Settings{}, logging.Discard())
	ctx := context.Background()
	_, err := m.PresentRequest(ctx, model.PresentRequest{Kind: "string", Prompt: "Name?"})
	require.NoError(t, err)
	require.NoError(t, m.Close(ctx))
	require.NoError(t, m.Close(ctx))

	_, err = m.HandleText(ctx, "hello")
	assert.ErrorIs(t, err, model.ErrSessionNotFound)
	require.Len(t, m.Results(), 1)
	assert.Contains(t, m.Results()[0].Error, model.ErrRequestAborted.Error())
}
