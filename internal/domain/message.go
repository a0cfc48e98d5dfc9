package domain

import "strings"

type MessageType string

const (
	TypePrivate MessageType = "private"
	TypeChannel MessageType = "channel"
)

const (
	senderTagPrefix = "nick_"
	unknownSender   = "unknown"
)

// Message is one chat event as published by the weechat AMQP relay.
type Message struct {
	Type      MessageType `json:"type"`
	Highlight bool        `json:"highlight"`
	Body      string      `json:"message"`
	Away      bool        `json:"away"`
	Channel   string      `json:"channel"`
	Server    string      `json:"server"`
	Timestamp string      `json:"date"`
	Tags      []string    `json:"tags"`
}

// Sender returns the nick encoded in the first "nick_<name>" tag.
// The publisher does not guarantee tag order, so if two such tags are
// present the result depends on the order they arrived in.
func (m Message) Sender() (string, bool) {
	for _, tag := range m.Tags {
		if name, ok := strings.CutPrefix(tag, senderTagPrefix); ok && name != "" {
			return name, true
		}
	}
	return "", false
}

// Summary is the notification title: the sender for private messages,
// the channel for everything else.
func (m Message) Summary() string {
	if m.Type != TypePrivate {
		return m.Channel
	}
	if sender, ok := m.Sender(); ok {
		return sender
	}
	return unknownSender
}

func (m Message) HasTag(desired string) bool {
	for _, tag := range m.Tags {
		if tag == desired {
			return true
		}
	}
	return false
}
