package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MrKhantee/andstatus/internal/config"
	"github.com/MrKhantee/andstatus/internal/connection"
	"github.com/MrKhantee/andstatus/internal/debuglog"
	"github.com/MrKhantee/andstatus/internal/queue"
	"github.com/MrKhantee/andstatus/internal/validation"
)

// Version is the version of the application, set at build time
var Version = "dev"

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "andstatus",
		Short:         "Social network client for Twitter-compatible, GNUSocial and pump.io origins",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to configuration file")

	root.AddCommand(
		workerCmd(),
		queueCmd(),
		resendCmd(),
		rmCmd(),
		postCmd(),
		timelineCmd(),
		generateConfigCmd(),
		versionCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setup loads config, initializes logging, and opens the queue store.
func setup() (*config.Config, *queue.Queues, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	if err := debuglog.Setup(debuglog.ParseLogLevel(cfg.Log.Level), cfg.Log.Path); err != nil {
		return nil, nil, err
	}
	queues, err := queue.Open(cfg.Queue.Path, cfg.Queue.MaxRetries)
	if err != nil {
		return nil, nil, err
	}
	return cfg, queues, nil
}

func workerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the queue executor until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, queues, err := setup()
			if err != nil {
				return err
			}
			defer queues.Close()
			registry, err := connection.FromConfig(cfg)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(cfg.Queue.DownloadDir, 0o755); err != nil {
				return err
			}
			exec := queue.NewExecutor(queues, registry, queue.ExecutorOptions{
				PollInterval:   cfg.Queue.PollInterval,
				CommandTimeout: cfg.Queue.CommandTimeout,
				MinBackoff:     cfg.Queue.MinBackoff,
				MaxBackoff:     cfg.Queue.MaxBackoff,
				Downloads:      downloadsTo(cfg.Queue.DownloadDir),
			})
			exec.Start()

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
			<-sig
			exec.Stop()
			return nil
		},
	}
}

// downloadsTo stores fetched attachments and avatars under dir, named
// after the last URL path segment.
func downloadsTo(dir string) func(url string) (io.WriteCloser, error) {
	return func(url string) (io.WriteCloser, error) {
		name := url
		if i := strings.LastIndexByte(name, '/'); i >= 0 {
			name = name[i+1:]
		}
		if name == "" {
			name = "download"
		}
		return os.Create(filepath.Join(dir, filepath.Base(name)))
	}
}

func queueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "queue",
		Short: "List queued, retrying, and failed commands",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, queues, err := setup()
			if err != nil {
				return err
			}
			defer queues.Close()
			for _, t := range []queue.QueueType{queue.QueueCurrent, queue.QueueRetry, queue.QueueError} {
				cmds, err := queues.List(t)
				if err != nil {
					return err
				}
				for _, c := range cmds {
					fmt.Printf("[%s] %s %s\n", t.Acronym(), c.ID(), c.Summary())
				}
			}
			return nil
		},
	}
}

func resendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resend <command-id>",
		Short: "Move a failed command back into the main queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, queues, err := setup()
			if err != nil {
				return err
			}
			defer queues.Close()
			return queues.Resend(args[0])
		},
	}
}

func rmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <command-id>",
		Short: "Delete a command from whichever queue holds it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, queues, err := setup()
			if err != nil {
				return err
			}
			defer queues.Close()
			return queues.Remove(args[0])
		},
	}
}

func postCmd() *cobra.Command {
	var origin, replyTo, media string
	c := &cobra.Command{
		Use:   "post <content>",
		Short: "Queue a new note for posting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, queues, err := setup()
			if err != nil {
				return err
			}
			defer queues.Close()
			acc, ok := cfg.Account(origin)
			if !ok {
				return fmt.Errorf("no account configured for origin %q", origin)
			}
			qc := queue.NewCommand(queue.UpdateStatus, origin, acc.ActorOid)
			qc.Content = args[0]
			qc.InReplyToOid = replyTo
			if media != "" {
				validated, err := validation.MediaFile(media)
				if err != nil {
					return err
				}
				qc.MediaURI = validated
			}
			added, err := queues.Add(qc)
			if err != nil {
				return err
			}
			if !added {
				fmt.Println("already queued")
				return nil
			}
			fmt.Printf("queued %s\n", qc.ID())
			return nil
		},
	}
	c.Flags().StringVar(&origin, "origin", "", "Origin to post to")
	c.Flags().StringVar(&replyTo, "reply-to", "", "Oid of the note being replied to")
	c.Flags().StringVar(&media, "media", "", "Path of a media file to attach")
	c.MarkFlagRequired("origin")
	return c
}

func timelineCmd() *cobra.Command {
	var origin, routine string
	c := &cobra.Command{
		Use:   "timeline",
		Short: "Queue a timeline fetch",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, queues, err := setup()
			if err != nil {
				return err
			}
			defer queues.Close()
			acc, ok := cfg.Account(origin)
			if !ok {
				return fmt.Errorf("no account configured for origin %q", origin)
			}
			qc := queue.NewCommand(queue.FetchTimeline, origin, acc.ActorOid)
			switch routine {
			case "home":
				qc.TimelineRoutine = connection.HomeTimeline
			case "public":
				qc.TimelineRoutine = connection.PublicTimeline
			case "actor":
				qc.TimelineRoutine = connection.ActorTimeline
				qc.ItemOid = acc.ActorOid
			default:
				return fmt.Errorf("unknown timeline %q", routine)
			}
			if _, err := queues.Add(qc); err != nil {
				return err
			}
			fmt.Printf("queued %s\n", qc.ID())
			return nil
		},
	}
	c.Flags().StringVar(&origin, "origin", "", "Origin to fetch from")
	c.Flags().StringVar(&routine, "routine", "home", "Timeline to fetch: home, public, or actor")
	c.MarkFlagRequired("origin")
	return c
}

func generateConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "generate-config",
		Short: "Generate default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			home, _ := os.UserHomeDir()
			configFile := filepath.Join(home, ".config", "andstatus", "config.toml")
			if err := config.GenerateDefaultConfig(configFile); err != nil {
				return err
			}
			fmt.Printf("Generated default configuration at: %s\n", configFile)
			return nil
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("andstatus %s\n", Version)
		},
	}
}
