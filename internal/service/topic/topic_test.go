package topic

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saykit-agent/internal/model"
	"saykit-agent/internal/service/command"
)

type recordSink struct {
	posted []model.AudioEventSequence
}

func (s *recordSink) Post(_ context.Context, seq model.AudioEventSequence) {
	s.posted = append(s.posted, seq)
}

func tag(label string) Interceptor {
	return InterceptorFunc(func(_ context.Context, _ *Topic, seq model.AudioEventSequence) model.AudioEventSequence {
		return seq.Append(model.SpeechEvent(label))
	})
}

func TestPropagationThroughAncestors(t *testing.T) {
	sink := &recordSink{}
	root := New("root", WithSink(sink), WithInterceptor(tag("root")))
	child := New("child", WithInterceptor(tag("child")))
	grandchild := New("grandchild")
	require.NoError(t, root.AddSubtopic(child))
	require.NoError(t, child.AddSubtopic(grandchild))

	grandchild.Speak(context.Background(), "result")

	require.Len(t, sink.posted, 1)
	assert.Equal(t, []string{"result", "child", "root"}, sink.posted[0].Utterances())
	assert.Equal(t, "root/child/grandchild", grandchild.Path())
}

func TestSiblingsDoNotObserve(t *testing.T) {
	sink := &recordSink{}
	root := New("root", WithSink(sink))
	var seenBySibling int
	left := New("left")
	right := New("right", WithInterceptor(InterceptorFunc(func(_ context.Context, _ *Topic, seq model.AudioEventSequence) model.AudioEventSequence {
		seenBySibling++
		return seq
	})))
	require.NoError(t, root.AddSubtopic(left))
	require.NoError(t, root.AddSubtopic(right))

	left.Speak(context.Background(), "hello")
	assert.Zero(t, seenBySibling)
	require.Len(t, sink.posted, 1)
	assert.Equal(t, []string{"hello"}, sink.posted[0].Utterances())
}

func TestPrefaceAndSwallow(t *testing.T) {
	sink := &recordSink{}
	root := New("root", WithSink(sink), WithInterceptor(Preface("Here's what I found.")))
	search := New("search")
	require.NoError(t, root.AddSubtopic(search))
	search.Speak(context.Background(), "Three pancake recipes.")
	require.Len(t, sink.posted, 1)
	assert.Equal(t, []string{"Here's what I found.", "Three pancake recipes."}, sink.posted[0].Utterances())

	root.SetInterceptor(InterceptorFunc(func(context.Context, *Topic, model.AudioEventSequence) model.AudioEventSequence {
		return model.NewSequence()
	}))
	search.Speak(context.Background(), "dropped")
	assert.Len(t, sink.posted, 1)
}

func TestAddSubtopicRejectsCyclesAndSecondParent(t *testing.T) {
	a, b, c := New("a"), New("b"), New("c")
	require.NoError(t, a.AddSubtopic(b))
	require.NoError(t, b.AddSubtopic(c))

	assert.ErrorIs(t, c.AddSubtopic(a), model.ErrInvalidState)
	assert.ErrorIs(t, a.AddSubtopic(a), model.ErrInvalidState)
	assert.ErrorIs(t, New("d").AddSubtopic(b), model.ErrInvalidState)
	assert.ErrorIs(t, a.AddSubtopic(nil), model.ErrInvalidState)
}

func TestRemoveSubtopic(t *testing.T) {
	sink := &recordSink{}
	root := New("root", WithSink(sink))
	child := New("child")
	other := New("other")
	require.NoError(t, root.AddSubtopic(child))
	require.NoError(t, root.AddSubtopic(other))

	assert.True(t, root.RemoveSubtopic(child))
	assert.False(t, root.RemoveSubtopic(child))
	assert.Nil(t, child.Parent())
	child.Speak(context.Background(), "orphan")
	assert.Empty(t, sink.posted)

	require.NoError(t, New("new-parent").AddSubtopic(child))

	root.RemoveAllSubtopics()
	assert.Empty(t, root.Subtopics())
	assert.Nil(t, other.Parent())
}

func TestRecognizersDepthFirst(t *testing.T) {
	help := command.NewHelp(command.Action{})
	search := command.NewSearch(command.Action{})
	sel := command.NewSelect(command.Action{})
	next := command.NewNext(command.Action{})

	root := New("root", WithRecognizers(help))
	a := New("a", WithRecognizers(search))
	a1 := New("a1", WithRecognizers(sel))
	b := New("b", WithRecognizers(next))
	require.NoError(t, root.AddSubtopic(a))
	require.NoError(t, a.AddSubtopic(a1))
	require.NoError(t, root.AddSubtopic(b))

	assert.Equal(t, []*command.Recognizer{help, search, sel, next}, root.Recognizers())
	assert.Equal(t, []string{command.TypeHelp, command.TypeSearch, command.TypeSelect, command.TypeNext}, command.AvailableCommands(root))

	assert.True(t, a.RemoveRecognizer(search))
	assert.Equal(t, []*command.Recognizer{help, sel, next}, root.Recognizers())
}
