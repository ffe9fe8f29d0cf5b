package cmd

import (
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/xiaot623/gogo/relay/internal/chatclient"
)

func newChatCommand() *cobra.Command {
	var (
		url      string
		threadID string
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the assistant through a running relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			out := cmd.OutOrStdout()
			client, err := chatclient.Dial(ctx, url, threadID, out)
			if err != nil {
				return err
			}
			defer client.Close()

			cmd.Printf("Connected to %s\n", url)
			if threadID != "" {
				cmd.Printf("Continuing thread %s\n", threadID)
			}
			cmd.Println("Type a message and press Enter to send. /quit to exit.")
			return client.Run(ctx, cmd.InOrStdin())
		},
	}

	cmd.Flags().StringVar(&url, "url", "ws://localhost:3000/chat/ws", "relay websocket address")
	cmd.Flags().StringVar(&threadID, "thread", "", "existing thread id to continue")
	return cmd
}
