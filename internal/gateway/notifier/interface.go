package notifier

import "context"

// TextNotifier sends a rendered text message to a chat.
type TextNotifier interface {
	SendText(ctx context.Context, text string) error
}
