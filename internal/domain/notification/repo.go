package notification

import "context"

type Repository interface {
	Create(ctx context.Context, n *Notification) error
	// ListUnread returns the identity's unread records, newest first.
	ListUnread(ctx context.Context, userID string) ([]*Notification, error)
	// MarkAllRead marks every record for the identity as read.
	MarkAllRead(ctx context.Context, userID string) error
}
