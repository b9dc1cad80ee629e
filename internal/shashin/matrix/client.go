// Package matrix connects Shashin to a Matrix homeserver: it syncs incoming
// messages to a handler and delivers replies and reports.
package matrix

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/format"
	"maunium.net/go/mautrix/id"

	"github.com/bdobrica/Shashin/common/retry"
)

// Config holds Matrix client configuration
type Config struct {
	Homeserver  string
	UserID      string
	AccessToken string
	// Rooms are joined on start. When non-empty, messages from other rooms
	// are ignored.
	Rooms []string
	// AutoJoin accepts room invites addressed to the bot.
	AutoJoin bool
	// DB is an optional SQLite connection used to persist the Matrix sync
	// token (next_batch) across restarts. When nil, an in-memory store is
	// used and all room history will be replayed on every restart.
	DB *sql.DB
	// Retry controls delivery retries. The zero value uses
	// retry.DefaultConfig.
	Retry retry.Config
}

// Client wraps the Matrix client
type Client struct {
	client     *mautrix.Client
	config     *Config
	retry      retry.Config
	stopOnce   sync.Once
	stopCh     chan struct{}
	msgHandler MessageHandler
}

// MessageHandler processes incoming Matrix messages
type MessageHandler func(ctx context.Context, evt *event.Event)

// New creates a new Matrix client
func New(config *Config) (*Client, error) {
	client, err := mautrix.NewClient(config.Homeserver, id.UserID(config.UserID), config.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Matrix client: %w", err)
	}

	rc := config.Retry
	if rc.MaxAttempts == 0 {
		rc = retry.DefaultConfig
	}
	rc.ShouldRetry = isTransient

	c := &Client{
		client: client,
		config: config,
		retry:  rc,
		stopCh: make(chan struct{}),
	}

	// Resume from the last known position after a restart instead of
	// replaying the full room history.
	if config.DB != nil {
		client.Store = newDBSyncStore(config.DB)
		slog.Info("Matrix sync store: using persistent SQLite store")
	} else {
		slog.Warn("Matrix sync store: no DB configured, using in-memory store (history will replay on restart)")
	}

	return c, nil
}

// Start joins the configured rooms and begins syncing with the homeserver in
// the background.
func (c *Client) Start(ctx context.Context, handler MessageHandler) error {
	c.msgHandler = handler

	syncer := c.client.Syncer.(*mautrix.DefaultSyncer)
	syncer.OnEventType(event.EventMessage, c.handleMessage)
	if c.config.AutoJoin {
		syncer.OnEventType(event.StateMember, c.handleMember)
	}

	for _, roomID := range c.config.Rooms {
		if err := c.joinRoom(ctx, id.RoomID(roomID)); err != nil {
			return fmt.Errorf("failed to join room %s: %w", roomID, err)
		}
	}

	// A transient homeserver error must not silently kill the sync loop.
	go func() {
		const (
			backoffMin = 2 * time.Second
			backoffMax = 5 * time.Minute
		)
		backoff := backoffMin
		for {
			err := c.client.SyncWithContext(ctx)
			if err == nil {
				// Only happens on a clean StopSync() call.
				return
			}
			select {
			case <-c.stopCh:
				return
			case <-ctx.Done():
				return
			default:
			}
			slog.Error("Matrix sync stopped; reconnecting", "err", err, "backoff", backoff)
			select {
			case <-c.stopCh:
				return
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, backoffMax)
		}
	}()

	return nil
}

// Stop stops the Matrix client. It is safe to call more than once.
func (c *Client) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
		c.client.StopSync()
	})
}

// Send delivers text to a room. Rich text is treated as HTML with newline
// line breaks; a plain-text body is derived from it for clients without
// HTML support.
func (c *Client) Send(ctx context.Context, roomID, text string, rich bool) error {
	content := &event.MessageEventContent{
		MsgType: event.MsgText,
		Body:    text,
	}
	if rich {
		html := strings.ReplaceAll(text, "\n", "<br/>")
		content.Format = event.FormatHTML
		content.FormattedBody = html
		content.Body = format.HTMLToText(html)
	}
	if err := c.send(ctx, roomID, content); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// SendFormattedMessage sends a formatted message (HTML + plain text fallback)
func (c *Client) SendFormattedMessage(ctx context.Context, roomID, html, plaintext string) error {
	content := &event.MessageEventContent{
		MsgType:       event.MsgText,
		Body:          plaintext,
		Format:        event.FormatHTML,
		FormattedBody: html,
	}
	if err := c.send(ctx, roomID, content); err != nil {
		return fmt.Errorf("failed to send formatted message: %w", err)
	}
	return nil
}

// ReplyToMessage sends a reply to a specific message
func (c *Client) ReplyToMessage(ctx context.Context, roomID, eventID, message string) error {
	content := &event.MessageEventContent{
		MsgType: event.MsgText,
		Body:    message,
		RelatesTo: &event.RelatesTo{
			InReplyTo: &event.InReplyTo{
				EventID: id.EventID(eventID),
			},
		},
	}
	if err := c.send(ctx, roomID, content); err != nil {
		return fmt.Errorf("failed to send reply: %w", err)
	}
	return nil
}

// SendNotice sends a notice message (less intrusive than normal messages)
func (c *Client) SendNotice(ctx context.Context, roomID, message string) error {
	content := &event.MessageEventContent{
		MsgType: event.MsgNotice,
		Body:    message,
	}
	if err := c.send(ctx, roomID, content); err != nil {
		return fmt.Errorf("failed to send notice: %w", err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, roomID string, content *event.MessageEventContent) error {
	return retry.Do(ctx, c.retry, func(ctx context.Context) error {
		_, err := c.client.SendMessageEvent(ctx, id.RoomID(roomID), event.EventMessage, content)
		return err
	})
}

// isTransient reports whether a failed request is worth repeating. Requests
// the homeserver refused outright fail the same way on every attempt.
func isTransient(err error) bool {
	var httpErr mautrix.HTTPError
	if errors.As(err, &httpErr) && httpErr.Response != nil {
		code := httpErr.Response.StatusCode
		return code == 429 || code >= 500
	}
	return !errors.Is(err, mautrix.MForbidden) &&
		!errors.Is(err, mautrix.MUnknownToken) &&
		!errors.Is(err, mautrix.MNotFound)
}

// IsAllowedRoom reports whether messages from roomID are handled.
func (c *Client) IsAllowedRoom(roomID string) bool {
	return len(c.config.Rooms) == 0 || slices.Contains(c.config.Rooms, roomID)
}

// handleMessage processes incoming messages
func (c *Client) handleMessage(ctx context.Context, evt *event.Event) {
	// Ignore our own messages
	if evt.Sender == id.UserID(c.config.UserID) {
		return
	}

	msgContent := evt.Content.AsMessage()
	if msgContent == nil || msgContent.MsgType != event.MsgText {
		return
	}
	if !c.IsAllowedRoom(evt.RoomID.String()) {
		return
	}

	if c.msgHandler != nil {
		c.msgHandler(ctx, evt)
	}
}

// handleMember joins rooms the bot is invited to.
func (c *Client) handleMember(ctx context.Context, evt *event.Event) {
	member := evt.Content.AsMember()
	if member == nil || member.Membership != event.MembershipInvite {
		return
	}
	if evt.GetStateKey() != c.config.UserID || !c.IsAllowedRoom(evt.RoomID.String()) {
		return
	}
	if err := c.joinRoom(ctx, evt.RoomID); err != nil {
		slog.Warn("failed to accept invite", "room", evt.RoomID, "inviter", evt.Sender, "err", err)
		return
	}
	slog.Info("joined room on invite", "room", evt.RoomID, "inviter", evt.Sender)
}

// joinRoom attempts to join a room
func (c *Client) joinRoom(ctx context.Context, roomID id.RoomID) error {
	_, err := c.client.JoinRoomByID(ctx, roomID)
	if err != nil {
		// M_FORBIDDEN is returned by homeservers when the bot is already a
		// member of the room.
		if errors.Is(err, mautrix.MForbidden) {
			slog.Warn("joinRoom: already a member or access denied, continuing", "room", roomID)
			return nil
		}
		return err
	}
	return nil
}

// GetUserID returns the client's user ID
func (c *Client) GetUserID() string {
	return c.config.UserID
}
