package main

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"saykit-agent/config"
	"saykit-agent/internal/app"
	"saykit-agent/internal/logging"
	"saykit-agent/internal/model"
	"saykit-agent/internal/service/audio"
	"saykit-agent/internal/service/conversation"
)

type rootOptions struct {
	configPath string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:          "console",
		Short:        "Talk to the saykit engine from a terminal",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file (default config/<APP_ENV>.yaml)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "print engine logs")
	cmd.AddCommand(newRunCmd(opts), newMatchCmd(opts))
	return cmd
}

func (o *rootOptions) load() (*config.Config, error) {
	if o.configPath != "" {
		return config.LoadFile(o.configPath)
	}
	return config.Load()
}

// openSession 按配置装配引擎并新建一个会话，音频事件打印到 out
func (o *rootOptions) openSession(ctx context.Context, out io.Writer) (*app.App, *conversation.Manager, error) {
	cfg, err := o.load()
	if err != nil {
		return nil, nil, err
	}
	log := logging.Discard()
	if o.verbose {
		log = logging.Component(logging.NewWithOutput(logging.Config{Level: "debug"}, out), "console")
	}
	a, err := app.New(cfg, log, app.WithoutAudioLog(), app.WithOutputs(printer(out)))
	if err != nil {
		return nil, nil, err
	}
	m, err := a.Hub.Create(ctx)
	if err != nil {
		a.Close()
		return nil, nil, err
	}
	return a, m, nil
}

// printer 把音频事件按音轨着色输出
func printer(out io.Writer) audio.Output {
	trackColor := map[string]*color.Color{
		audio.TrackMain:         color.New(color.FgCyan),
		audio.TrackVoiceRequest: color.New(color.FgGreen, color.Bold),
	}
	tone := color.New(color.FgYellow)
	return audio.OutputFunc(func(_ context.Context, posted model.PostedSequence) error {
		c, ok := trackColor[posted.Track]
		if !ok {
			c = color.New(color.FgWhite)
		}
		for _, e := range posted.Sequence.Events {
			switch e.Kind {
			case model.AudioEventSpeech:
				c.Fprintf(out, "%s\n", e.Utterance)
			case model.AudioEventTone:
				tone.Fprintf(out, "♪ %s\n", e.ToneURL)
			case model.AudioEventSilence:
				fmt.Fprintf(out, "… %s\n", e.Duration)
			}
		}
		return nil
	})
}
