package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/andertben/skillspot-chat/internal/chatsync"
	"github.com/andertben/skillspot-chat/internal/chattui"
	"github.com/andertben/skillspot-chat/internal/directory"
	"github.com/andertben/skillspot-chat/internal/logging"
)

var (
	openTail bool
	openOnce bool
)

func init() {
	rootCmd.AddCommand(openCmd)
	openCmd.Flags().BoolVar(&openTail, "tail", false, "print messages line by line instead of starting the interface")
	openCmd.Flags().BoolVar(&openOnce, "once", false, "with --tail, print the history and exit")
}

var openCmd = &cobra.Command{
	Use:   "open [thread-id]",
	Short: "Follow a conversation",
	Long: `Open a conversation and keep it in sync.

On a terminal this starts the chat interface with the thread list and unread
badge. Without a terminal, or with --tail, new messages are printed line by
line and lines read from stdin are sent.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOpen(cmd, args)
	},
}

func runOpen(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	tail := openTail || !hasTTY()
	if tail {
		a, err := newApp(ctx, appOptions{database: true})
		if err != nil {
			return err
		}
		defer a.Close()

		threadID := a.resolveThread(args)
		if threadID == "" {
			return errors.New("no thread given; pass a thread id or open one in the interface first")
		}
		return runTail(ctx, a, threadID, tailOptions{
			in:     cmd.InOrStdin(),
			out:    cmd.OutOrStdout(),
			errOut: cmd.ErrOrStderr(),
			once:   openOnce,
			jsonl:  IsJSONLOutput(),
		})
	}

	restore, err := redirectLogsForTUI()
	if err != nil {
		return err
	}
	defer restore()

	a, err := newApp(ctx, appOptions{database: true})
	if err != nil {
		return err
	}
	defer a.Close()

	threadID := ""
	if len(args) > 0 {
		threadID = strings.TrimSpace(args[0])
	}
	return runInterface(ctx, a, threadID)
}

func runInterface(ctx context.Context, a *app, threadID string) error {
	bridge := chattui.NewBridge()

	dir, err := directory.New(directory.Options{
		Source:          a.client,
		Hub:             a.hub,
		Session:         a.session,
		RefreshInterval: a.cfg.Directory.RefreshInterval,
		OnChange:        bridge.OnDirectory,
		Metrics:         a.metrics,
	})
	if err != nil {
		return err
	}
	badge, err := directory.NewBadge(directory.BadgeOptions{
		Source:   a.client,
		Hub:      a.hub,
		Session:  a.session,
		Cap:      a.cfg.Directory.BadgeCap,
		OnChange: bridge.OnBadge,
		Metrics:  a.metrics,
	})
	if err != nil {
		return err
	}

	bridge.OnDirectory(dir.Snapshot())
	if err := dir.Start(); err != nil {
		return err
	}
	defer func() { _ = dir.Stop() }()
	if err := badge.Start(); err != nil {
		return err
	}
	defer func() { _ = badge.Stop() }()

	return chattui.Run(ctx, chattui.Config{
		Bridge: bridge,
		Open: func(ctx context.Context, id string) (chattui.Thread, error) {
			s, err := a.openSynchronizer(ctx, id, bridge.OnUpdate)
			if err != nil {
				return nil, err
			}
			a.rememberThread(id, "")
			return s, nil
		},
		Navigate: func(path string) {
			dir.Navigate(path)
			badge.Navigate()
		},
		InitialThread: threadID,
	})
}

// openSynchronizer starts syncing threadID with updates delivered to onUpdate.
func (a *app) openSynchronizer(ctx context.Context, threadID string, onUpdate func(chatsync.Update)) (*chatsync.Synchronizer, error) {
	opts := chatsync.Options{
		ThreadID:           threadID,
		Transport:          a.client,
		Hub:                a.hub,
		Session:            a.session,
		PollInterval:       a.cfg.Chat.PollInterval,
		MaxConcurrentPolls: a.cfg.Chat.MaxConcurrentPolls,
		ScrollThreshold:    a.cfg.Chat.ScrollThreshold,
		OnUpdate:           onUpdate,
		Metrics:            a.metrics,
	}
	if a.drafts != nil {
		opts.Drafts = a.drafts
	}

	s, err := chatsync.New(opts)
	if err != nil {
		return nil, err
	}
	if err := s.Open(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func hasTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}

// redirectLogsForTUI sends console logs to a file while the interface owns
// the terminal. An explicit logging.file is left alone.
func redirectLogsForTUI() (func(), error) {
	cfg := GetConfig()
	if logCloser != nil || cfg == nil {
		return func() {}, nil
	}
	dataDir := cfg.Global.DataDir
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	f, err := logging.OpenFile(filepath.Join(dataDir, "skillchat.log"))
	if err != nil {
		return nil, err
	}

	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}
	logging.Init(logging.Config{
		Level:        level,
		Format:       "json",
		Output:       f,
		EnableCaller: cfg.Logging.EnableCaller,
	})
	return func() {
		logging.Init(logging.Config{
			Level:        level,
			Format:       cfg.Logging.Format,
			Output:       os.Stderr,
			EnableCaller: cfg.Logging.EnableCaller,
		})
		_ = f.Close()
	}, nil
}
