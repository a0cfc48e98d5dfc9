// Package filter decides which chat messages are suppressed before they
// reach the notifier.
package filter

import (
	"weenotify/internal/domain"
	"weenotify/internal/logx"
)

type Reason string

const (
	ReasonNone    Reason = ""
	ReasonChannel Reason = "channel"
	ReasonSender  Reason = "sender"
	ReasonTag     Reason = "tag"
)

type Rules struct {
	Channels []string
	Senders  []string
	Tags     []string
}

// Filter holds case-sensitive ignore-sets. It is built once and never
// mutated, so it is safe to share without locking.
type Filter struct {
	channels map[string]struct{}
	senders  map[string]struct{}
	tags     map[string]struct{}
	log      logx.Logger
}

func New(r Rules, log logx.Logger) *Filter {
	return &Filter{
		channels: toSet(r.Channels),
		senders:  toSet(r.Senders),
		tags:     toSet(r.Tags),
		log:      log,
	}
}

// ShouldFilter reports whether msg must be suppressed.
func (f *Filter) ShouldFilter(msg domain.Message) bool {
	reason, matched := f.Match(msg)
	if reason != ReasonNone {
		f.log.Debug("message filtered",
			logx.String("reason", string(reason)),
			logx.String("match", matched),
			logx.String("channel", msg.Channel),
		)
	}
	return reason != ReasonNone
}

// Match returns the first rule msg hits and the value that hit it.
// Checks run channel, then sender, then tags.
func (f *Filter) Match(msg domain.Message) (Reason, string) {
	if _, ok := f.channels[msg.Channel]; ok {
		return ReasonChannel, msg.Channel
	}
	if sender, ok := msg.Sender(); ok {
		if _, ok := f.senders[sender]; ok {
			return ReasonSender, sender
		}
	}
	for _, tag := range msg.Tags {
		if _, ok := f.tags[tag]; ok {
			return ReasonTag, tag
		}
	}
	return ReasonNone, ""
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, it := range items {
		set[it] = struct{}{}
	}
	return set
}
