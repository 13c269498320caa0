package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gitlab.com/gomidi/midi/v2"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"tileshow/lib/control"
	"tileshow/lib/logging"
	"tileshow/lib/monitor"
	"tileshow/lib/osc"
	"tileshow/lib/render"
	"tileshow/lib/scheduler"
	"tileshow/lib/show"
	"tileshow/lib/streamdeck"
	"tileshow/lib/web"
	"tileshow/lib/xtouch"
)

type playOptions struct {
	httpAddr   string
	oscAddr    string
	tui        bool
	xtouchPort string
	clockPort  string
	deck       bool
	deckModel  string
	interval   time.Duration
}

func newPlayCmd() *cobra.Command {
	opts := playOptions{
		httpAddr:   cfg.HTTPAddr,
		oscAddr:    cfg.OSCAddr,
		xtouchPort: cfg.XTouchPort,
		clockPort:  cfg.ClockPort,
		deck:       cfg.StreamDeck != "",
		deckModel:  cfg.StreamDeck,
		interval:   cfg.FrameInterval,
	}
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Drive every enabled output of the active patch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runPlay(ctx, cmd.OutOrStdout(), opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.httpAddr, "http", opts.httpAddr, "serve the JSON API on this address")
	f.StringVar(&opts.oscAddr, "osc", opts.oscAddr, fmt.Sprintf("listen for OSC on this address (e.g. :%d)", osc.DefaultPort))
	f.BoolVar(&opts.tui, "tui", false, "show the terminal monitor")
	f.StringVar(&opts.xtouchPort, "xtouch", opts.xtouchPort, "MIDI port name of an X-Touch")
	f.StringVar(&opts.clockPort, "clock", opts.clockPort, "MIDI port name to follow a timing clock from")
	f.BoolVar(&opts.deck, "streamdeck", opts.deck, "show tiles on a Stream Deck")
	f.StringVar(&opts.deckModel, "deck-model", opts.deckModel, "Stream Deck model name to pick (any when empty)")
	f.DurationVar(&opts.interval, "interval", opts.interval, "target frame interval")
	return cmd
}

func runPlay(ctx context.Context, w io.Writer, opts playOptions) error {
	s, err := openShow()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if opts.xtouchPort != "" || opts.clockPort != "" {
		defer midi.CloseDriver()
	}

	sched := scheduler.New(scheduler.Config{
		Renderer: render.NewMixer(s),
		Latency:  s,
		Interval: opts.interval,
	})
	fpsCh, unsubFPS := sched.Telemetry().FPS.Subscribe(64)
	defer unsubFPS()
	errCh, unsubErrs := sched.Telemetry().Errors.Subscribe(64)
	defer unsubErrs()

	defer func() {
		sched.StopAll()
		if err := s.Save(); err != nil {
			logging.Errorf("save: %v", err)
		}
	}()

	if err := sched.Reconfigure(ctx, s.Outputs()); err != nil {
		logging.Warnf("%v", err)
	}

	go s.Autosave(ctx, cfg.Autosave)

	if err := startControllers(ctx, s, sched, opts); err != nil {
		return err
	}

	heading.Fprintf(w, "playing %s\n", projectPath)
	if opts.tui {
		logging.SetOutput(io.Discard)
		defer logging.SetOutput(os.Stderr)
		return monitor.Run(ctx, monitor.Config{
			FPS:    fpsCh,
			Errors: errCh,
			Stats:  sched.Snapshot,
			Tiles:  s.Tiles,
			BPM:    func() float64 { return s.Beat().Metadata().BPM() },
		})
	}

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(w)
			return nil
		case <-fpsCh:
		case e := <-errCh:
			bad.Fprintf(w, "%s: %v\n", e.Output, e.Err)
		}
	}
}

func startControllers(ctx context.Context, s *show.Show, sched *scheduler.Scheduler, opts playOptions) error {
	if opts.httpAddr != "" {
		srv := web.New(s, sched)
		go func() {
			if err := srv.ListenAndServe(ctx, opts.httpAddr); err != nil {
				logging.Errorf("%v", err)
			}
		}()
	}

	if opts.oscAddr != "" {
		srv, err := osc.Listen(opts.oscAddr, control.OSCHandler(s))
		if err != nil {
			return err
		}
		logging.Infof("osc: listening on %s", srv.Addr())
		go func() {
			if err := srv.Serve(ctx); err != nil {
				logging.Errorf("%v", err)
			}
		}()
	}

	if opts.xtouchPort != "" {
		in, err := xtouch.FindInPort(opts.xtouchPort)
		if err != nil {
			return err
		}
		outPort, err := xtouch.FindOutPort(opts.xtouchPort)
		if err != nil {
			return err
		}
		out, err := xtouch.NewOutput(outPort, xtouch.DeviceIDXTouch)
		if err != nil {
			return err
		}
		go func() {
			if err := control.NewXTouch(s, out).Run(ctx, in); err != nil {
				logging.Errorf("%v", err)
			}
		}()
	}

	if opts.clockPort != "" {
		in, err := midi.FindInPort(opts.clockPort)
		if err != nil {
			return fmt.Errorf("clock port %q: %w", opts.clockPort, err)
		}
		stopClock, err := midi.ListenTo(in, control.ClockReceiver(s), midi.UseTimeCode())
		if err != nil {
			return fmt.Errorf("clock port %q: %w", opts.clockPort, err)
		}
		go func() {
			<-ctx.Done()
			stopClock()
		}()
	}

	if opts.deck {
		dev, err := streamdeck.Open(opts.deckModel)
		if err != nil {
			return err
		}
		go func() {
			defer dev.Close()
			if err := control.NewDeck(s, dev).Run(ctx); err != nil {
				logging.Errorf("%v", err)
			}
		}()
	}
	return nil
}
