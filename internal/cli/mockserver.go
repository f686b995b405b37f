package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/andertben/skillspot-chat/internal/logging"
	"github.com/andertben/skillspot-chat/internal/mockapi"
)

var (
	mockAddr    string
	mockSeed    bool
	mockChatter time.Duration
)

func init() {
	rootCmd.AddCommand(mockServerCmd)
	mockServerCmd.Flags().StringVar(&mockAddr, "addr", "127.0.0.1:8080", "listen address")
	mockServerCmd.Flags().BoolVar(&mockSeed, "seed", true, "create demo users, services and threads")
	mockServerCmd.Flags().DurationVar(&mockChatter, "chatter", 0, "post a provider reply into the demo thread at this interval (0 disables)")
}

var mockServerCmd = &cobra.Command{
	Use:   "mock-server",
	Short: "Run an in-memory chat backend",
	Long: `Run an in-memory chat backend for local testing.

With --seed two users are created: token "tok-alice" (requester Alice) and
token "tok-bob" (provider Bob).`,
	Example: `  skillchat mock-server --chatter 10s
  skillchat --base-url http://127.0.0.1:8080 threads`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		logger := logging.Component("mock-server")

		backend := mockapi.New()
		threadID := ""
		if mockSeed {
			threadID = seedMockBackend(backend)
		}

		ln, err := net.Listen("tcp", mockAddr)
		if err != nil {
			return fmt.Errorf("listen on %s: %w", mockAddr, err)
		}
		srv := &http.Server{
			Handler:           backend,
			ReadHeaderTimeout: 5 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Serve(ln)
		}()
		fmt.Fprintf(cmd.OutOrStdout(), "Mock backend listening on http://%s\n", ln.Addr())
		if mockSeed {
			fmt.Fprintf(cmd.OutOrStdout(), "Demo thread: %s (token tok-alice)\n", threadID)
		}

		if mockChatter > 0 && threadID != "" {
			go chatter(ctx, backend, threadID, mockChatter)
		}

		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-ctx.Done():
		}

		logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

// seedMockBackend creates the demo users and returns the demo thread ID.
func seedMockBackend(backend *mockapi.Server) string {
	backend.AddUser("tok-alice", "alice", "Alice")
	backend.AddUser("tok-bob", "bob", "Bob")
	backend.AddService(mockapi.Service{ID: "svc-garden", Title: "Gartenpflege", ProviderSub: "bob", ProviderName: "Bob"})
	backend.AddService(mockapi.Service{ID: "svc-move", Title: "Umzugshilfe", ProviderSub: "bob", ProviderName: "Bob"})

	threadID, _ := backend.CreateThread("svc-garden", "alice")
	backend.PostMessage(threadID, "alice", "Hallo Bob, hast du nächste Woche Zeit?")
	backend.PostMessage(threadID, "bob", "Hallo Alice, Dienstag ginge.")
	return threadID
}

func chatter(ctx context.Context, backend *mockapi.Server, threadID string, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	n := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n++
			backend.PostMessage(threadID, "bob", fmt.Sprintf("Automatische Nachricht #%d", n))
		}
	}
}
