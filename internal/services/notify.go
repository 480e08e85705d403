package services

import (
	"fmt"

	pubnub "github.com/pubnub/go"
)

// Notifier pushes realtime events to per-user PubNub channels so the mobile
// app can react without polling. A nil Notifier (PubNub not configured) is
// safe to call.
type Notifier struct {
	pubnub *pubnub.PubNub
}

func NewNotifier(pn *pubnub.PubNub) *Notifier {
	if pn == nil {
		return nil
	}
	return &Notifier{pubnub: pn}
}

func (n *Notifier) NotifyUser(userID string, message map[string]any) {
	if n == nil || n.pubnub == nil {
		return
	}
	channel := fmt.Sprintf("user-%s", userID)
	n.pubnub.Publish().
		Channel(channel).
		Message(message).
		Execute()
}
