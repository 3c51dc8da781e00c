package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Announcement is one view version published on the invalidation channel, encoded as
// "<view>:<version>".
type Announcement struct {
	View    string
	Version int64
}

func (a Announcement) String() string {
	return a.View + ":" + strconv.FormatInt(a.Version, 10)
}

// ParseAnnouncement rejects payloads without a view or with a non-positive version.
func ParseAnnouncement(payload string) (Announcement, bool) {
	idx := strings.LastIndexByte(payload, ':')
	if idx <= 0 {
		return Announcement{}, false
	}
	version, err := strconv.ParseInt(payload[idx+1:], 10, 64)
	if err != nil || version <= 0 {
		return Announcement{}, false
	}
	return Announcement{View: payload[:idx], Version: version}, true
}

// Listen subscribes to the invalidation channel and hands every well-formed announcement
// to fn until ctx ends or the subscription closes. Announcements from this process arrive
// too; callers drop versions they already hold.
func (c *Client) Listen(ctx context.Context, fn func(Announcement)) error {
	if c.raw == nil {
		return ErrNotInitialized
	}
	if c.channel == "" {
		return errors.New("redis invalidation channel not configured")
	}
	sub := c.raw.Subscribe(ctx, c.channel)
	defer func() { _ = sub.Close() }()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", c.channel, err)
	}
	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			if a, ok := ParseAnnouncement(msg.Payload); ok {
				fn(a)
			}
		}
	}
}
