package request

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saykit-agent/internal/model"
)

func TestSelectInterpret(t *testing.T) {
	options := []SelectOption{
		{Label: "Blue"},
		{Label: "Green", Aliases: []string{"lime"}},
		{Label: "Purple"},
	}
	tests := []struct {
		answer string
		index  int
		ok     bool
	}{
		{"green", 1, true},
		{"Green.", 1, true},
		{"lime", 1, true},
		{"I'd like purple please", 2, true},
		{"the first one", 0, true},
		{"number two", 1, true},
		{"last", 2, true},
		{"blue or green", 0, false},
		{"orange", 0, false},
		{"fifth", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.answer, func(t *testing.T) {
			var got SelectResult
			req := NewSelectOptions("Pick a color", options, func(_ context.Context, r SelectResult) Response {
				got = r
				return Terminal(nil)
			})
			_, err := req.Interpret(context.Background(), tt.answer)
			if !tt.ok {
				assert.ErrorIs(t, err, model.ErrNoInterpretation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.index, got.Index)
			assert.Equal(t, options[tt.index].Label, got.Option.Label)
		})
	}
}

func TestSelectPrefersLongestOption(t *testing.T) {
	var got SelectResult
	req := NewSelect("Which shade?", []string{"Blue", "Light Blue", "Dark Blue"}, func(_ context.Context, r SelectResult) Response {
		got = r
		return Terminal(nil)
	})
	_, err := req.Interpret(context.Background(), "the light blue one")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Index)

	_, err = req.Interpret(context.Background(), "blue")
	require.NoError(t, err)
	assert.Equal(t, 0, got.Index)

	_, err = req.Interpret(context.Background(), "light blue or dark blue")
	assert.ErrorIs(t, err, model.ErrNoInterpretation)
}

func TestSelectChooseIndex(t *testing.T) {
	var got SelectResult
	req := NewSelect("Pick a color", []string{"Blue", "Green", "Purple"}, func(_ context.Context, r SelectResult) Response {
		got = r
		return Terminal(nil)
	})
	_, err := req.Choose(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, SelectResult{Option: SelectOption{Label: "Green"}, Index: 1}, got)

	_, err = req.Choose(context.Background(), 3)
	assert.ErrorIs(t, err, model.ErrNoInterpretation)
}

func TestConfirmationInterpret(t *testing.T) {
	tests := []struct {
		answer string
		want   bool
		ok     bool
	}{
		{"yes", true, true},
		{"Yeah, do it!", true, true},
		{"sure", true, true},
		{"no thanks", false, true},
		{"nope", false, true},
		{"never mind", false, true},
		{"yes no", false, false},
		{"banana", false, false},
		{"I'm not sure", false, false},
		{"that's not right", false, false},
		{"that isn't correct", false, false},
		{"don't do it", false, true},
		{"no problem", true, true},
		{"no worries, go ahead", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.answer, func(t *testing.T) {
			var got *bool
			req := NewConfirmation("Are you sure?", func(_ context.Context, confirmed bool) Response {
				got = &confirmed
				return Terminal(nil)
			})
			_, err := req.Interpret(context.Background(), tt.answer)
			if !tt.ok {
				assert.ErrorIs(t, err, model.ErrNoInterpretation)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestNumericalInterpret(t *testing.T) {
	var got float64
	req := NewNumerical("How many?", func(_ context.Context, n float64) Response {
		got = n
		return Terminal(nil)
	})
	_, err := req.Interpret(context.Background(), "I want twenty one please")
	require.NoError(t, err)
	assert.Equal(t, 21.0, got)

	_, err = req.Interpret(context.Background(), "lots")
	assert.ErrorIs(t, err, model.ErrNoInterpretation)

	for _, text := range []string{"infinity", "nan", "I want inf"} {
		_, err = req.Interpret(context.Background(), text)
		assert.ErrorIs(t, err, model.ErrNoInterpretation, text)
	}
}

func TestPatternMatchInterpret(t *testing.T) {
	var got PatternResult
	req, err := NewPatternMatch("Who should I ask?", []string{
		"ask @friend for @count:Number cookies",
		"ask @friend",
	}, func(_ context.Context, r PatternResult) Response {
		got = r
		return Terminal(nil)
	})
	require.NoError(t, err)

	_, err = req.Interpret(context.Background(), "Ask Toby for 3 cookies")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"friend": "toby", "count": 3.0}, got.Entities)
	assert.Equal(t, "Ask Toby for 3 cookies", got.Transcription)

	_, err = req.Interpret(context.Background(), "hello there")
	assert.ErrorIs(t, err, model.ErrNoInterpretation)

	_, err = NewPatternMatch("x", []string{"@a:Date"}, nil)
	assert.ErrorIs(t, err, model.ErrInvalidTemplate)
}

func TestStringInterpret(t *testing.T) {
	var got string
	req := NewString("Say something", func(_ context.Context, text string) Response {
		got = text
		return Terminal(nil)
	})
	_, err := req.Interpret(context.Background(), "  hello world ")
	require.NoError(t, err)
	assert.Equal(t, "hello world", got)

	_, err = req.Interpret(context.Background(), "   ")
	assert.ErrorIs(t, err, model.ErrNoInterpretation)
}

func TestFailureRunsOnce(t *testing.T) {
	calls := 0
	b := NewBase(KindString, "p", WithFailure(func(context.Context, error) { calls++ }))
	b.Fail(context.Background(), model.ErrRequestAborted)
	b.Fail(context.Background(), model.ErrRecognitionFailed)
	assert.Equal(t, 1, calls)
}
