// Package matrix is the chat transport: it connects the assistant to a
// Matrix homeserver and delivers room messages to the conversation layer.
package matrix

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/bdobrica/Himawari/internal/himawari/chat"
)

// Config holds the Matrix connection settings.
type Config struct {
	Homeserver  string
	UserID      string
	AccessToken string

	// Rooms lists the room IDs where provisioning requests are accepted.
	// Messages anywhere else are ignored.
	Rooms []string

	// DB optionally persists the sync position (next_batch) across
	// restarts. When nil every restart replays room history.
	DB *sql.DB
}

// Client wraps the mautrix client with the room filtering and reply
// rendering the assistant needs.
type Client struct {
	client  *mautrix.Client
	config  *Config
	stopCh  chan struct{}
	handler MessageHandler
}

// MessageHandler receives each accepted room message.
type MessageHandler func(ctx context.Context, evt *event.Event)

const (
	backoffMin = 2 * time.Second
	backoffMax = 5 * time.Minute
)

// nextBackoff doubles the reconnect delay, capped at backoffMax.
func nextBackoff(d time.Duration) time.Duration {
	d *= 2
	if d > backoffMax {
		d = backoffMax
	}
	return d
}

// New builds a client; it does not connect until Start.
func New(config *Config) (*Client, error) {
	client, err := mautrix.NewClient(config.Homeserver, id.UserID(config.UserID), config.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Matrix client: %w", err)
	}

	c := &Client{
		client: client,
		config: config,
		stopCh: make(chan struct{}),
	}

	if config.DB != nil {
		client.Store = newDBSyncStore(config.DB)
		slog.Info("Matrix sync store: using persistent SQLite store")
	} else {
		slog.Warn("Matrix sync store: no DB configured, using in-memory store (history will replay on restart)")
	}

	return c, nil
}

// Start joins the configured rooms and begins syncing in the background.
func (c *Client) Start(ctx context.Context, handler MessageHandler) error {
	c.handler = handler

	syncer := c.client.Syncer.(*mautrix.DefaultSyncer)
	syncer.OnEventType(event.EventMessage, c.handleMessage)

	for _, roomID := range c.config.Rooms {
		if err := c.joinRoom(id.RoomID(roomID)); err != nil {
			return fmt.Errorf("failed to join room %s: %w", roomID, err)
		}
	}

	// Sync with exponential back-off reconnection. Without retries a
	// transient homeserver error would silently kill the sync goroutine
	// and leave the assistant deaf to all new messages.
	go func() {
		backoff := backoffMin
		for {
			if err := c.client.Sync(); err != nil {
				select {
				case <-c.stopCh:
					return
				default:
				}
				slog.Error("Matrix sync stopped; reconnecting", "err", err, "backoff", backoff)
				select {
				case <-c.stopCh:
					return
				case <-time.After(backoff):
				}
				backoff = nextBackoff(backoff)
				continue
			}
			// Sync returns nil only after a clean StopSync.
			return
		}
	}()

	return nil
}

// Stop ends the sync loop.
func (c *Client) Stop() {
	close(c.stopCh)
	c.client.StopSync()
}

// SendReply renders a conversational reply into the room. Buttons become
// a numbered option list; Matrix has no native button widget in plain
// rooms, so the user answers by typing the option text.
func (c *Client) SendReply(ctx context.Context, roomID string, reply chat.Reply) error {
	plain, htmlBody := renderReply(reply)
	content := event.MessageEventContent{
		MsgType:       event.MsgText,
		Body:          plain,
		Format:        event.FormatHTML,
		FormattedBody: htmlBody,
	}
	_, err := c.client.SendMessageEvent(ctx, id.RoomID(roomID), event.EventMessage, &content)
	if err != nil {
		return fmt.Errorf("failed to send reply: %w", err)
	}
	return nil
}

// SendNotice sends a low-priority message, used for startup banners.
func (c *Client) SendNotice(ctx context.Context, roomID, message string) error {
	content := event.MessageEventContent{
		MsgType: event.MsgNotice,
		Body:    message,
	}
	_, err := c.client.SendMessageEvent(ctx, id.RoomID(roomID), event.EventMessage, &content)
	if err != nil {
		return fmt.Errorf("failed to send notice: %w", err)
	}
	return nil
}

// SetTyping toggles the typing indicator while a turn is being handled.
func (c *Client) SetTyping(ctx context.Context, roomID string, typing bool, timeout time.Duration) error {
	_, err := c.client.UserTyping(ctx, id.RoomID(roomID), typing, timeout)
	if err != nil {
		return fmt.Errorf("failed to set typing: %w", err)
	}
	return nil
}

// IsProvisioningRoom reports whether the room accepts requests.
func (c *Client) IsProvisioningRoom(roomID string) bool {
	for _, r := range c.config.Rooms {
		if r == roomID {
			return true
		}
	}
	return false
}

// GetDisplayName resolves a user's display name for friendlier replies.
func (c *Client) GetDisplayName(ctx context.Context, userID string) (string, error) {
	profile, err := c.client.GetProfile(ctx, id.UserID(userID))
	if err != nil {
		return "", fmt.Errorf("failed to get profile: %w", err)
	}
	return profile.DisplayName, nil
}

// GetUserID returns the assistant's own user ID.
func (c *Client) GetUserID() string {
	return c.config.UserID
}

func (c *Client) handleMessage(ctx context.Context, evt *event.Event) {
	// Never react to our own messages.
	if evt.Sender == id.UserID(c.config.UserID) {
		return
	}

	msgContent := evt.Content.AsMessage()
	if msgContent == nil || msgContent.MsgType != event.MsgText {
		return
	}

	if !c.IsProvisioningRoom(evt.RoomID.String()) {
		return
	}

	if c.handler != nil {
		c.handler(ctx, evt)
	}
}

func (c *Client) joinRoom(roomID id.RoomID) error {
	_, err := c.client.JoinRoomByID(context.Background(), roomID)
	if err != nil {
		// Homeservers answer M_FORBIDDEN when the bot is already a member.
		if errors.Is(err, mautrix.MForbidden) {
			slog.Warn("joinRoom: already a member or access denied, continuing", "room", roomID)
			return nil
		}
		return err
	}
	return nil
}

// renderReply flattens a reply into plaintext and HTML bodies.
func renderReply(reply chat.Reply) (plain, htmlBody string) {
	var p, h strings.Builder
	p.WriteString(reply.Message)
	h.WriteString(html.EscapeString(reply.Message))

	if len(reply.Buttons) > 0 {
		p.WriteString("\n")
		h.WriteString("<ol>")
		for i, b := range reply.Buttons {
			p.WriteString(fmt.Sprintf("\n%d. %s", i+1, b.Text))
			h.WriteString("<li>" + html.EscapeString(b.Text) + "</li>")
		}
		h.WriteString("</ol>")
		p.WriteString("\n\nReply with the option you want.")
		h.WriteString("<p>Reply with the option you want.</p>")
	}
	return p.String(), h.String()
}
