// Package notify defines the outbound messaging contract the approval
// workflow and the expiry sweeper speak, plus its Telegram
// implementation.  The core treats delivery as reliable best-effort:
// it needs "send text, get back an opaque handle" and "edit text at a
// handle", nothing more.
package notify

import "context"

// Button is one inline decision button attached to a notice.  Data is
// the opaque callback payload echoed back when the button is pressed.
type Button struct {
	Text string
	Data string
}

// Gateway delivers notices to a single recipient chat.  Edit must be
// safe to retry, but callers do not retry: one failed edit is logged
// and skipped, never propagated.
type Gateway interface {
	// Send delivers text to the chat, optionally with decision
	// buttons, and returns the message handle for later edits.
	Send(ctx context.Context, chatID int64, text string, buttons []Button) (int64, error)
	// Edit replaces the text of a previously sent message in place,
	// dropping any buttons it carried.
	Edit(ctx context.Context, chatID int64, messageID int64, text string) error
}
