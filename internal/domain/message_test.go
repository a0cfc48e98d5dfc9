package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSender(t *testing.T) {
	tests := []struct {
		name   string
		tags   []string
		want   string
		wantOK bool
	}{
		{"nick after other tags", []string{"notify_message", "nick_alice"}, "alice", true},
		{"first match wins", []string{"nick_bob", "nick_carol"}, "bob", true},
		{"no sender tag", []string{"notify_none", "log1"}, "", false},
		{"empty nick is not a sender", []string{"nick_", "nick_dave"}, "dave", true},
		{"prefix must be anchored", []string{"xnick_eve"}, "", false},
		{"nil tags", nil, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Message{Tags: tt.tags}.Sender()
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSummary(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		want string
	}{
		{"private without sender", Message{Type: TypePrivate, Channel: "bob", Tags: []string{"notify_private"}}, "unknown"},
		{"private with sender", Message{Type: TypePrivate, Channel: "bob", Tags: []string{"nick_bob"}}, "bob"},
		{"channel uses channel", Message{Type: TypeChannel, Channel: "#dev", Tags: []string{"nick_bob"}}, "#dev"},
		{"other types use channel", Message{Type: "highlight", Channel: "#ops"}, "#ops"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.msg.Summary())
		})
	}
}

func TestHasTag(t *testing.T) {
	m := Message{Tags: []string{"notify_none", "nick_carol"}}
	assert.True(t, m.HasTag("notify_none"))
	assert.False(t, m.HasTag("notify_highlight"))
}

func TestDecodeRoundTrip(t *testing.T) {
	want := Message{
		Type:      TypePrivate,
		Highlight: true,
		Body:      "are you there? ünïcødé",
		Away:      true,
		Channel:   "alice",
		Server:    "libera",
		Timestamp: "2017-03-04 12:00:00",
		Tags:      []string{"notify_private", "nick_alice"},
	}

	raw, err := json.Marshal(want)
	require.NoError(t, err)

	got, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestDecodeOptionalFieldsDefault(t *testing.T) {
	got, err := Decode([]byte(`{"type":"channel","channel":"#dev","message":"hi","tags":[]}`))
	require.NoError(t, err)

	assert.Equal(t, Message{Type: TypeChannel, Channel: "#dev", Body: "hi", Tags: []string{}}, got)
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
		kind DecodeErrorKind
	}{
		{"invalid utf-8", []byte("{\"type\":\"channel\",\"message\":\"\xff\xfe\"}"), DecodeEncoding},
		{"missing tags", []byte(`{"type":"channel","channel":"#dev","message":"hi"}`), DecodeSchema},
		{"null tags", []byte(`{"type":"channel","channel":"#dev","message":"hi","tags":null}`), DecodeSchema},
		{"missing type", []byte(`{"channel":"#dev","message":"hi","tags":[]}`), DecodeSchema},
		{"wrong shape", []byte(`{"type":"channel","channel":"#dev","message":"hi","tags":"nick_x"}`), DecodeSchema},
		{"not json", []byte(`hello`), DecodeSchema},
		{"not an object", []byte(`[1,2]`), DecodeSchema},
		{"trailing data", []byte(`{"type":"channel","channel":"#dev","message":"hi","tags":[]} {}`), DecodeSchema},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.raw)
			require.Error(t, err)
			assert.True(t, IsDecodeKind(err, tt.kind), "got %v", err)
		})
	}
}
