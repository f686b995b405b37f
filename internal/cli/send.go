package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var sendThread string

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringVarP(&sendThread, "thread", "t", "", "thread to send to (default: last opened thread)")
}

var sendCmd = &cobra.Command{
	Use:   "send [message]",
	Short: "Send a message",
	Long: `Send one message to a conversation.

The message is read from the arguments, or from stdin when it is piped.
Without --thread the last opened or created thread is used.`,
	Example: `  skillchat send --thread 3f2c... "Passt Dienstag um 10?"
  echo "Danke!" | skillchat send`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		text := strings.Join(args, " ")
		if strings.TrimSpace(text) == "" {
			piped, err := readStdinIfPiped(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("read stdin: %w", err)
			}
			text = piped
		}
		text = strings.TrimSpace(text)
		if text == "" {
			return errors.New("message is required")
		}

		a, err := newApp(ctx, appOptions{database: true})
		if err != nil {
			return err
		}
		defer a.Close()

		threadID := a.resolveThread([]string{sendThread})
		if threadID == "" {
			return errors.New("no thread given; use --thread or open a thread first")
		}

		msg, err := a.client.SendMessage(ctx, threadID, text)
		if err != nil {
			return describeError("send message", err)
		}
		if err := a.drafts.Delete(ctx, threadID); err != nil {
			a.logger.Warn().Err(err).Str("thread_id", threadID).Msg("failed to clear draft")
		}
		a.rememberThread(threadID, "")

		if IsJSONOutput() || IsJSONLOutput() {
			return WriteOutput(cmd.OutOrStdout(), msg)
		}
		fmt.Fprintln(cmd.OutOrStdout(), msg.ID)
		PrintNextSteps(cmd.OutOrStdout(), HintContext{Action: "send", ThreadID: threadID})
		return nil
	},
}

// readStdinIfPiped returns stdin's content when it is not a terminal.
func readStdinIfPiped(in io.Reader) (string, error) {
	if f, ok := in.(*os.File); ok {
		info, err := f.Stat()
		if err != nil {
			return "", err
		}
		if info.Mode()&os.ModeCharDevice != 0 {
			return "", nil
		}
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
