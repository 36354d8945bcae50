package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Windi-Fikriyansyah/gigmarket/internal/client"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/conversation"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/models"
	"github.com/Windi-Fikriyansyah/gigmarket/internal/realtime"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Direct messages",
}

var chatListCmd = &cobra.Command{
	Use:   "list",
	Short: "List conversations",
	RunE: func(cmd *cobra.Command, args []string) error {
		convs, err := newClient().Conversations(cmd.Context())
		if err != nil {
			return explain(err)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "WITH\tUNREAD\tLAST")
		for _, cv := range convs {
			fmt.Fprintf(w, "%s\t%d\t%s\n", cv.Counterpart.Username, cv.UnreadCount, cv.LastMessage.Content)
		}
		return w.Flush()
	},
}

// openThread resolves the caller and loads the thread with other.
func openThread(ctx context.Context, c *client.Cached, other string) (*conversation.Conversation, *models.Profile, error) {
	otherID, err := uuid.Parse(other)
	if err != nil {
		return nil, nil, fmt.Errorf("bad user id: %w", err)
	}
	me, err := c.Me(ctx)
	if err != nil {
		return nil, nil, explain(err)
	}
	conv := conversation.New(c.Client, me.ID, otherID)
	if err := conv.Load(ctx); err != nil {
		return nil, nil, explain(err)
	}
	return conv, me, nil
}

var attachPath string

var chatSendCmd = &cobra.Command{
	Use:   "send <user-id> [text]",
	Short: "Send a message, optionally with --file",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newClient()
		conv, _, err := openThread(cmd.Context(), c, args[0])
		if err != nil {
			return err
		}
		var text string
		if len(args) == 2 {
			text = args[1]
		}

		var att *conversation.Attachment
		if attachPath != "" {
			f, err := os.Open(attachPath)
			if err != nil {
				return err
			}
			defer f.Close()
			att = &conversation.Attachment{Name: filepath.Base(attachPath), Body: f}
		}

		e, err := conv.Send(cmd.Context(), text, att)
		if err != nil {
			return explain(err)
		}
		fmt.Printf("sent %s at %s\n", e.ID, e.CreatedAt.Local().Format("15:04:05"))
		return nil
	},
}

var chatWatchCmd = &cobra.Command{
	Use:   "watch <user-id>",
	Short: "Print the thread and follow new messages and read receipts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		c := newClient()
		conv, me, err := openThread(ctx, c, args[0])
		if err != nil {
			return err
		}

		p := &printer{me: me.ID, seen: map[string]bool{}, read: map[string]bool{}}
		p.print(conv.Messages())
		conv.OnChange(func() { p.print(conv.Messages()) })

		rt, err := c.Dial(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()

		onRow := func(ev realtime.ChangeEvent) {
			m, err := client.Decode[models.Message](ev.Record)
			if err != nil {
				return
			}
			// Receive may call MarkRead; keep the read loop free.
			go conv.Receive(ctx, m)
		}
		mine := me.ID.String()
		if _, err := rt.Subscribe(ctx, "messages", realtime.EventInsert, &realtime.Filter{Column: "receiver_id", Value: mine}, onRow); err != nil {
			return err
		}
		if _, err := rt.Subscribe(ctx, "messages", realtime.EventUpdate, &realtime.Filter{Column: "sender_id", Value: mine}, onRow); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-rt.Done():
			return rt.Err()
		}
	},
}

// printer writes each entry once, and a receipt line when one of my
// messages is read.
type printer struct {
	mu   sync.Mutex
	me   uuid.UUID
	seen map[string]bool
	read map[string]bool
}

func (p *printer) print(entries []conversation.Entry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range entries {
		if e.State != conversation.StateSent {
			continue
		}
		key := e.Key()
		if !p.seen[key] {
			p.seen[key] = true
			who := "them"
			if e.SenderID == p.me {
				who = "me"
			}
			body := e.Content
			if e.IsFile {
				body = fmt.Sprintf("%s [file %s]", body, e.FileURL)
			}
			fmt.Printf("[%s] %-4s %s\n", e.CreatedAt.Local().Format("01-02 15:04"), who, body)
		}
		if e.SenderID == p.me && e.ReadAt != nil && !p.read[key] {
			p.read[key] = true
			fmt.Printf("        read at %s\n", e.ReadAt.Local().Format("15:04"))
		}
	}
}

func init() {
	chatSendCmd.Flags().StringVar(&attachPath, "file", "", "file to attach")
	chatCmd.AddCommand(chatListCmd, chatSendCmd, chatWatchCmd)
}
