package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/alchemmist/lazy-rec/internal/app"
	"github.com/alchemmist/lazy-rec/internal/config"
	"github.com/alchemmist/lazy-rec/internal/control"
	"github.com/alchemmist/lazy-rec/internal/recorder"
	"github.com/alchemmist/lazy-rec/internal/recording"
)

const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

func checkFormat(format string) error {
	switch format {
	case formatText, formatJSON, formatYAML:
		return nil
	}
	return fmt.Errorf("%w: unknown format %q (want text, json or yaml)", errUsage, format)
}

// encode writes v as json or yaml. Text output is left to the caller.
func encode(w io.Writer, format string, v any) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("unsupported format %q", format)
}

func (c *cli) recordCmd() *cobra.Command {
	var (
		opts    app.RecordOptions
		fps     int
		quality string
		audio   bool
		device  string
	)
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record headlessly until interrupted, stopped or --duration elapses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags := cmd.Flags()
			if flags.Changed("fps") {
				opts.Settings.FPS = &fps
			}
			if flags.Changed("quality") {
				q := recording.Quality(strings.ToLower(quality))
				opts.Settings.Quality = &q
			}
			if flags.Changed("audio") {
				opts.Settings.IncludeAudio = &audio
			}
			if flags.Changed("device") {
				opts.Settings.AudioDevice = &device
			}

			a, err := c.newApp()
			if err != nil {
				return err
			}
			res, err := a.Record(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if res == nil || res.Path == "" {
				fmt.Fprintln(c.stdout, "recording discarded")
				return nil
			}
			fmt.Fprintf(c.stdout, "%s\t%s\n", res.Path, recording.FormatDuration(res.Session.Duration))
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.SourceID, "source", "", "source id or name (default: first screen)")
	f.StringVarP(&opts.Output, "output", "o", "", "output file (default: timestamped file in the save dir)")
	f.DurationVarP(&opts.Duration, "duration", "d", 0, "stop after this long")
	f.BoolVar(&opts.Listen, "listen", false, "serve the control endpoint while recording")
	f.IntVar(&fps, "fps", 0, "frame rate: 15, 24, 30 or 60")
	f.StringVar(&quality, "quality", "", "quality: low, medium or high")
	f.BoolVar(&audio, "audio", true, "capture audio")
	f.StringVar(&device, "device", "", "pulse audio source (default: system default)")
	return cmd
}

func (c *cli) sourcesCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "List capturable screens and windows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			a, err := c.newApp()
			if err != nil {
				return err
			}
			sources, err := a.Sources(cmd.Context())
			if err != nil {
				return err
			}
			views := make([]control.SourceView, 0, len(sources))
			for _, s := range sources {
				views = append(views, control.NewSourceView(s))
			}
			if format != formatText {
				return encode(c.stdout, format, views)
			}
			tw := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KIND\tID\tNAME")
			for _, v := range views {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", v.Category, v.ID, v.Name)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", formatText, "output format: text, json or yaml")
	return cmd
}

func (c *cli) ctlCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "ctl",
		Short: "Control a running recorder over its local endpoint",
	}
	cmd.PersistentFlags().StringVar(&addr, "addr", "", "control address (default from config)")

	client := func() (*control.Client, error) {
		if addr != "" {
			return control.NewClient(addr), nil
		}
		cfg, err := c.loadConfig()
		if err != nil {
			return nil, err
		}
		if cfg.ControlAddr == "" {
			return nil, fmt.Errorf("control endpoint disabled in config")
		}
		return control.NewClient(cfg.ControlAddr), nil
	}

	for _, trigger := range recorder.Triggers {
		trigger := trigger
		cmd.AddCommand(&cobra.Command{
			Use:   string(trigger),
			Short: fmt.Sprintf("Send the %s trigger", trigger),
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cl, err := client()
				if err != nil {
					return err
				}
				if err := cl.Trigger(cmd.Context(), string(trigger)); err != nil {
					return err
				}
				fmt.Fprintf(c.stdout, "%s queued\n", trigger)
				return nil
			},
		})
	}

	var (
		statusFormat string
		watch        bool
	)
	status := &cobra.Command{
		Use:   "status",
		Short: "Show the recorder state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := checkFormat(statusFormat); err != nil {
				return err
			}
			cl, err := client()
			if err != nil {
				return err
			}
			if watch {
				return cl.Watch(cmd.Context(), func(st control.StatusView) bool {
					if err := c.printStatus(statusFormat, st); err != nil {
						return false
					}
					return true
				})
			}
			st, err := cl.Status(cmd.Context())
			if err != nil {
				return err
			}
			return c.printStatus(statusFormat, st)
		},
	}
	status.Flags().StringVarP(&statusFormat, "format", "f", formatText, "output format: text, json or yaml")
	status.Flags().BoolVarP(&watch, "watch", "w", false, "stream updates until interrupted")

	var historyFormat string
	history := &cobra.Command{
		Use:   "history",
		Short: "List saved recordings, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := checkFormat(historyFormat); err != nil {
				return err
			}
			cl, err := client()
			if err != nil {
				return err
			}
			sessions, err := cl.Sessions(cmd.Context())
			if err != nil {
				return err
			}
			if historyFormat != formatText {
				return encode(c.stdout, historyFormat, sessions)
			}
			tw := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTARTED\tDURATION\tPATH")
			for _, s := range sessions {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.ID, s.StartTime.Local().Format(time.RFC3339),
					recording.FormatDuration(time.Duration(s.DurationMs)*time.Millisecond), s.SavedPath)
			}
			return tw.Flush()
		},
	}
	history.Flags().StringVarP(&historyFormat, "format", "f", formatText, "output format: text, json or yaml")

	del := &cobra.Command{
		Use:   "delete <session-id>",
		Short: "Remove a recording from history (the file stays on disk)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cl, err := client()
			if err != nil {
				return err
			}
			if err := cl.DeleteSession(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("delete %s: %w", args[0], err)
			}
			fmt.Fprintf(c.stdout, "%s removed\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(status, history, del)
	return cmd
}

func (c *cli) printStatus(format string, st control.StatusView) error {
	if format != formatText {
		return encode(c.stdout, format, st)
	}
	line := st.State
	if st.Active != nil {
		line += " " + st.Elapsed + " " + st.Active.Name
	} else if st.Selected != nil {
		line += " (" + st.Selected.Name + ")"
	}
	_, err := fmt.Fprintln(c.stdout, line)
	return err
}

func (c *cli) versionsCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "versions",
		Short: "Show lazy-rec, Go and ffmpeg versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			a, err := c.newApp()
			if err != nil {
				return err
			}
			v := a.Versions(cmd.Context())
			if format != formatText {
				return encode(c.stdout, format, v)
			}
			fmt.Fprintf(c.stdout, "host:     %s\nengine:   %s\nrenderer: %s\n", v.Host, v.Engine, v.Renderer)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", formatText, "output format: text, json or yaml")
	return cmd
}

type check struct {
	name     string
	bin      string
	required bool
	hint     string
}

func (c *cli) doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check prerequisites",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			return c.doctor(cfg)
		},
	}
}

func (c *cli) doctor(cfg config.Config) error {
	checks := []check{
		{"ffmpeg", cfg.FFmpegBin, true, "needed for capture, install ffmpeg"},
		{"xrandr", cfg.XrandrBin, true, "needed to list screens, install x11-xserver-utils"},
		{"wmctrl", cfg.WmctrlBin, false, "windows will not be listed"},
		{"pactl", cfg.PactlBin, false, "audio devices will not be listed"},
		{"zenity", cfg.ZenityBin, cfg.Dialog == config.DialogZenity, "native save dialog unavailable"},
	}
	missing := 0
	for _, ch := range checks {
		path, err := exec.LookPath(ch.bin)
		switch {
		case err == nil:
			fmt.Fprintf(c.stdout, "ok       %-8s %s\n", ch.name, path)
		case ch.required:
			missing++
			fmt.Fprintf(c.stdout, "missing  %-8s %s\n", ch.name, ch.hint)
		default:
			fmt.Fprintf(c.stdout, "optional %-8s %s\n", ch.name, ch.hint)
		}
	}
	fmt.Fprintf(c.stdout, "display  %s\nsave dir %s\n", cfg.Display, cfg.SaveDir)
	if pid, held := app.LockHolder(cfg.Display); held {
		fmt.Fprintf(c.stdout, "running  pid %d\n", pid)
	}
	if cfg.ControlAddr != "" {
		fmt.Fprintf(c.stdout, "control  http://%s\n", cfg.ControlAddr)
	}
	if missing > 0 {
		return fmt.Errorf("%d required tool(s) missing", missing)
	}
	return nil
}
