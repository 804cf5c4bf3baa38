package chat

import (
	"fmt"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"livechat/internal/app/user"
	"livechat/internal/pkg/errs"
)

func TestJoinEmitsJoinedUserJoinedAndUserList(t *testing.T) {
	room := newTestRoom(t, 100, ControllerOptions{})

	room.join(t, "a", "alice")
	assert.Equal(t, []EventType{EventJoined, EventUserList}, room.transport.types("a"))

	room.join(t, "b", "bob")
	assert.Equal(t, []EventType{EventJoined, EventUserList}, room.transport.types("b"))
	assert.Equal(t, []EventType{EventJoined, EventUserList, EventUserJoined, EventUserList}, room.transport.types("a"))

	joined := decodeAs[JoinedPayload](t, room.transport.last(t, "b", EventJoined))
	assert.Equal(t, "bob", joined.Username)
	assert.NotEmpty(t, joined.UserID)
	assert.NotNil(t, joined.Messages)
	assert.Empty(t, joined.Messages)

	announced := decodeAs[UserEventPayload](t, room.transport.last(t, "a", EventUserJoined))
	assert.Equal(t, UserEventPayload{UserID: joined.UserID, Username: "bob", UserCount: 2}, announced)

	list := decodeAs[UserListPayload](t, room.transport.last(t, "a", EventUserList))
	require.Len(t, list.Users, 2)
	assert.Equal(t, "alice", list.Users[0].Username)
	assert.Equal(t, "bob", list.Users[1].Username)

	assert.Equal(t, StateJoined, room.controller.State("a"))
	assert.Equal(t, StateJoined, room.controller.State("b"))
}

func TestJoinCaseVariantIsTaken(t *testing.T) {
	room := newTestRoom(t, 100, ControllerOptions{})

	room.join(t, "a", "Bob")
	room.transport.reset()

	room.controller.Connect("b")
	err := room.controller.Join("b", "bob")

	assert.True(t, errs.Is(err, errs.ErrUsernameTaken))
	assert.Equal(t, 1, room.registry.Size())
	assert.Equal(t, StateAnonymous, room.controller.State("b"))

	assert.Equal(t, []EventType{EventError}, room.transport.types("b"))
	payload := decodeAs[ErrorPayload](t, room.transport.last(t, "b", EventError))
	assert.Equal(t, errs.ErrUsernameTaken, payload.Code)
	assert.Equal(t, "Username is already taken", payload.Message)

	assert.Empty(t, room.transport.events("a"), "other connections are not notified")
}

func TestJoinRejectsBlankUsername(t *testing.T) {
	room := newTestRoom(t, 100, ControllerOptions{})

	room.controller.Connect("a")
	err := room.controller.Join("a", "   ")

	assert.True(t, errs.Is(err, errs.ErrUsernameRequired))
	assert.Equal(t, 0, room.registry.Size())
	payload := decodeAs[ErrorPayload](t, room.transport.last(t, "a", EventError))
	assert.Equal(t, "Username is required", payload.Message)

	require.NoError(t, room.controller.Join("a", "alice"), "client may correct and resend")
}

func TestJoinTwiceOnSameConnection(t *testing.T) {
	room := newTestRoom(t, 100, ControllerOptions{})

	room.join(t, "a", "alice")
	err := room.controller.Join("a", "alice2")

	assert.True(t, errs.Is(err, errs.ErrAlreadyJoined))
	assert.Equal(t, 1, room.registry.Size())

	u, err := room.registry.Lookup("a")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Username)
}

func TestMessageBroadcastToWholeRoom(t *testing.T) {
	room := newTestRoom(t, 100, ControllerOptions{})
	room.join(t, "a", "alice")
	room.join(t, "b", "bob")
	room.transport.reset()

	msg, err := room.controller.PostMessage("a", "  hi there  ")
	require.NoError(t, err)

	assert.Equal(t, "hi there", msg.Content)
	assert.Equal(t, 1, room.log.Size())

	for _, handle := range []string{"a", "b"} {
		assert.Equal(t, []EventType{EventNewMessage}, room.transport.types(handle))

		got := decodeAs[Message](t, room.transport.last(t, handle, EventNewMessage))
		assert.Equal(t, msg.ID, got.ID)
		assert.Equal(t, msg.UserID, got.UserID)
		assert.Equal(t, "alice", got.Username)
		assert.Equal(t, "hi there", got.Content)
		assert.True(t, msg.Timestamp.Equal(got.Timestamp))
	}
}

func TestMessageFromConnectionThatNeverJoined(t *testing.T) {
	room := newTestRoom(t, 100, ControllerOptions{})
	room.join(t, "a", "alice")
	room.transport.reset()

	room.controller.Connect("x")
	_, err := room.controller.PostMessage("x", "hello")

	assert.True(t, errs.Is(err, errs.ErrUserNotFound))
	assert.Equal(t, 0, room.log.Size())
	assert.Equal(t, []EventType{EventError}, room.transport.types("x"))
	assert.Equal(t, "User not found", decodeAs[ErrorPayload](t, room.transport.last(t, "x", EventError)).Message)
	assert.Empty(t, room.transport.events("a"), "no broadcast emitted")
}

func TestMessageContentValidation(t *testing.T) {
	room := newTestRoom(t, 100, ControllerOptions{MaxContentBytes: 10})
	room.join(t, "a", "alice")
	room.join(t, "b", "bob")
	room.transport.reset()

	_, err := room.controller.PostMessage("a", " \t ")
	assert.True(t, errs.Is(err, errs.ErrMessageContentRequired))

	_, err = room.controller.PostMessage("a", strings.Repeat("x", 11))
	assert.True(t, errs.Is(err, errs.ErrMessageContentTooLong))
	assert.Equal(t, "Message must be at most 10 bytes", decodeAs[ErrorPayload](t, room.transport.last(t, "a", EventError)).Message)

	_, err = room.controller.PostMessage("a", "  "+strings.Repeat("x", 10)+"  ")
	assert.NoError(t, err, "limit applies after trimming")

	assert.Equal(t, 1, room.log.Size())
	assert.Equal(t, []EventType{EventNewMessage}, room.transport.types("b"))
}

func TestJoinedHistoryPlusNewMessageMatchesLogTail(t *testing.T) {
	room := newTestRoom(t, 100, ControllerOptions{})
	room.join(t, "b", "bob")
	for i := 0; i < 3; i++ {
		_, err := room.controller.PostMessage("b", fmt.Sprintf("earlier %d", i))
		require.NoError(t, err)
	}

	room.join(t, "a", "alice")
	_, err := room.controller.PostMessage("a", "hi")
	require.NoError(t, err)

	joined := decodeAs[JoinedPayload](t, room.transport.last(t, "a", EventJoined))
	fresh := decodeAs[Message](t, room.transport.last(t, "a", EventNewMessage))

	seen := append(joined.Messages, fresh)
	tail := room.log.Tail(len(seen))

	assert.Equal(t, messageIDs(tail), messageIDs(seen))
	assert.Equal(t, "hi", seen[len(seen)-1].Content)
	assert.Equal(t, "earlier 0", seen[0].Content)
}

func TestJoinedHistoryIsBoundedIndependently(t *testing.T) {
	room := newTestRoom(t, 100, ControllerOptions{HistorySize: 50})
	room.join(t, "b", "bob")
	for i := 0; i < 120; i++ {
		_, err := room.controller.PostMessage("b", fmt.Sprintf("m%d", i))
		require.NoError(t, err)
	}
	require.Equal(t, 100, room.log.Size())

	room.join(t, "a", "alice")

	joined := decodeAs[JoinedPayload](t, room.transport.last(t, "a", EventJoined))
	require.Len(t, joined.Messages, 50)
	assert.Equal(t, "m70", joined.Messages[0].Content)
	assert.Equal(t, "m119", joined.Messages[49].Content)
}

func TestMessageSnapshotSurvivesAuthorLeaving(t *testing.T) {
	room := newTestRoom(t, 100, ControllerOptions{})
	room.join(t, "a", "alice")
	msg, err := room.controller.PostMessage("a", "bye")
	require.NoError(t, err)

	room.controller.Disconnect("a")
	room.join(t, "b", "bob")

	joined := decodeAs[JoinedPayload](t, room.transport.last(t, "b", EventJoined))
	require.Len(t, joined.Messages, 1)
	assert.Equal(t, msg.UserID, joined.Messages[0].UserID)
	assert.Equal(t, "alice", joined.Messages[0].Username)
}

func TestTypingThenDisconnectOrdering(t *testing.T) {
	room := newTestRoom(t, 100, ControllerOptions{})
	room.join(t, "a", "alice")
	room.join(t, "b", "bob")
	room.join(t, "c", "carol")
	room.transport.reset()

	room.controller.Typing("a", true)
	room.controller.Disconnect("a")

	assert.Empty(t, room.transport.events("a"), "typing is not echoed to the sender")

	for _, handle := range []string{"b", "c"} {
		assert.Equal(t, []EventType{EventUserTyping, EventUserLeft, EventUserList}, room.transport.types(handle))

		typing := decodeAs[UserTypingPayload](t, room.transport.last(t, handle, EventUserTyping))
		assert.True(t, typing.IsTyping)
		assert.Equal(t, "alice", typing.Username)

		left := decodeAs[UserEventPayload](t, room.transport.last(t, handle, EventUserLeft))
		assert.Equal(t, "alice", left.Username)
		assert.Equal(t, 2, left.UserCount)

		list := decodeAs[UserListPayload](t, room.transport.last(t, handle, EventUserList))
		for _, p := range list.Users {
			assert.NotEqual(t, "alice", p.Username)
		}
		assert.Len(t, list.Users, 2)
	}

	assert.Equal(t, StateClosed, room.controller.State("a"))
	assert.Equal(t, 2, room.registry.Size())
}

func TestTypingWithoutUserIsSilent(t *testing.T) {
	room := newTestRoom(t, 100, ControllerOptions{})
	room.join(t, "a", "alice")
	room.transport.reset()

	room.controller.Connect("x")
	room.controller.Typing("x", true)

	assert.Empty(t, room.transport.events("x"))
	assert.Empty(t, room.transport.events("a"))
}

func TestTypingFlagClearedBySendingMessage(t *testing.T) {
	room := newTestRoom(t, 100, ControllerOptions{})
	room.join(t, "a", "alice")

	room.controller.Typing("a", true)
	_, err := room.controller.PostMessage("a", "done typing")
	require.NoError(t, err)

	u, err := room.registry.Lookup("a")
	require.NoError(t, err)
	assert.False(t, u.IsTyping)
}

func TestDisconnectAnonymousIsSilent(t *testing.T) {
	room := newTestRoom(t, 100, ControllerOptions{})
	room.join(t, "a", "alice")
	room.transport.reset()

	room.controller.Connect("x")
	room.controller.Disconnect("x")
	room.controller.Disconnect("x")

	assert.Empty(t, room.transport.events("a"))
	assert.Equal(t, StateClosed, room.controller.State("x"))
}

func TestEventsAfterCloseAreIgnored(t *testing.T) {
	room := newTestRoom(t, 100, ControllerOptions{})
	room.join(t, "a", "alice")
	room.controller.Disconnect("a")
	room.transport.reset()

	assert.ErrorIs(t, room.controller.Join("a", "alice"), ErrSessionClosed)

	_, err := room.controller.PostMessage("a", "ghost")
	assert.ErrorIs(t, err, ErrSessionClosed)

	room.controller.Typing("a", true)
	room.controller.Dispatch("a", []byte("not json"))

	assert.Empty(t, room.transport.events("a"))
	assert.Equal(t, 0, room.registry.Size())
	assert.Equal(t, 0, room.log.Size())
}

func TestDispatchRoutesEvents(t *testing.T) {
	room := newTestRoom(t, 100, ControllerOptions{})
	room.join(t, "b", "bob")

	room.controller.Connect("a")
	room.controller.Dispatch("a", []byte(`{"type":"join","payload":{"username":"alice"}}`))
	room.controller.Dispatch("a", []byte(`{"type":"typing","payload":{"isTyping":true}}`))
	room.controller.Dispatch("a", []byte(`{"type":"message","payload":{"content":"hello"}}`))

	assert.Equal(t, []EventType{EventJoined, EventUserList, EventNewMessage}, room.transport.types("a"))
	assert.Equal(t,
		[]EventType{EventJoined, EventUserList, EventUserJoined, EventUserList, EventUserTyping, EventNewMessage},
		room.transport.types("b"),
	)
	assert.Equal(t, "hello", decodeAs[Message](t, room.transport.last(t, "b", EventNewMessage)).Content)
}

func TestDispatchRejectsMalformedFrames(t *testing.T) {
	cases := []struct {
		name  string
		frame string
		code  int
	}{
		{"invalid json", `{"type":`, errs.ErrInvalidJSONFormat},
		{"unknown type", `{"type":"shout","payload":{}}`, errs.ErrUnsupportedEvent},
		{"client disconnect", `{"type":"disconnect"}`, errs.ErrUnsupportedEvent},
		{"bad join payload", `{"type":"join","payload":{"username":42}}`, errs.ErrInvalidParams},
		{"bad message payload before join", `{"type":"message","payload":"hi"}`, errs.ErrUserNotFound},
		{"missing join payload", `{"type":"join"}`, errs.ErrUsernameRequired},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			room := newTestRoom(t, 100, ControllerOptions{})
			room.controller.Connect("a")

			room.controller.Dispatch("a", []byte(tc.frame))

			require.Equal(t, []EventType{EventError}, room.transport.types("a"))
			assert.Equal(t, tc.code, decodeAs[ErrorPayload](t, room.transport.last(t, "a", EventError)).Code)
			assert.Equal(t, StateAnonymous, room.controller.State("a"))
		})
	}
}

func TestDispatchMalformedMessageFromJoinedUser(t *testing.T) {
	room := newTestRoom(t, 100, ControllerOptions{})
	room.join(t, "a", "alice")
	room.join(t, "b", "bob")
	room.transport.reset()

	room.controller.Dispatch("a", []byte(`{"type":"message","payload":"hi"}`))

	require.Equal(t, []EventType{EventError}, room.transport.types("a"))
	assert.Equal(t, errs.ErrInvalidParams, decodeAs[ErrorPayload](t, room.transport.last(t, "a", EventError)).Code)
	assert.Empty(t, room.transport.events("b"))
	assert.Equal(t, 0, room.log.Size())
}

func TestSlowConnectionIsForceRemoved(t *testing.T) {
	room := newTestRoom(t, 100, ControllerOptions{})
	room.join(t, "a", "alice")
	room.join(t, "b", "bob")
	room.transport.reset()
	room.transport.setFull("b")

	_, err := room.controller.PostMessage("a", "anyone there?")
	require.NoError(t, err)

	assert.Equal(t, []string{"b"}, room.transport.closedHandles())
	assert.Equal(t, StateClosed, room.controller.State("b"))
	assert.Equal(t, 1, room.registry.Size())
	assert.Equal(t, []EventType{EventNewMessage, EventUserLeft, EventUserList}, room.transport.types("a"))

	left := decodeAs[UserEventPayload](t, room.transport.last(t, "a", EventUserLeft))
	assert.Equal(t, "bob", left.Username)
	assert.Equal(t, 1, left.UserCount)
}

func TestKickRemovesUserAndClosesConnection(t *testing.T) {
	room := newTestRoom(t, 100, ControllerOptions{})
	room.join(t, "a", "alice")
	room.join(t, "b", "bob")
	room.transport.reset()

	room.controller.Kick("b", "removed by test")

	assert.Equal(t, []string{"b"}, room.transport.closedHandles())
	assert.Equal(t, []EventType{EventUserLeft, EventUserList}, room.transport.types("a"))
	assert.Empty(t, room.transport.events("b"))

	room.controller.Disconnect("b")
	assert.Equal(t, []EventType{EventUserLeft, EventUserList}, room.transport.types("a"), "transport disconnect after kick is a no-op")
}

func TestStats(t *testing.T) {
	room := newTestRoom(t, 100, ControllerOptions{})
	room.join(t, "a", "alice")
	room.join(t, "b", "bob")
	room.controller.Connect("x")
	_, err := room.controller.PostMessage("a", "one")
	require.NoError(t, err)

	stats := room.controller.Stats()

	assert.Equal(t, 2, stats.TotalUsers)
	assert.Equal(t, 1, stats.TotalMessages)
	assert.Equal(t, []string{"alice", "bob"}, usernames(stats.OnlineUsers))
	assert.Equal(t, stats, room.controller.Stats())
}

func TestControllerUsesInjectedClock(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	room := newTestRoom(t, 100, ControllerOptions{Now: func() time.Time { return fixed }})
	room.join(t, "a", "alice")

	msg, err := room.controller.PostMessage("a", "tick")
	require.NoError(t, err)
	assert.Equal(t, fixed, msg.Timestamp)
}

func TestConcurrentJoinsThroughController(t *testing.T) {
	room := newTestRoom(t, 100, ControllerOptions{})

	var g errgroup.Group
	for i := 0; i < 40; i++ {
		i := i
		g.Go(func() error {
			handle := fmt.Sprintf("conn-%d", i)
			room.controller.Connect(handle)
			name := "Alice"
			if i%2 == 1 {
				name = "aLICE"
			}
			err := room.controller.Join(handle, name)
			if err != nil && !errs.Is(err, errs.ErrUsernameTaken) {
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, 1, room.registry.Size())

	joined := 0
	for i := 0; i < 40; i++ {
		if room.controller.State(fmt.Sprintf("conn-%d", i)) == StateJoined {
			joined++
		}
	}
	assert.Equal(t, 1, joined)
}

func TestConcurrentMessagesBroadcastInLogOrder(t *testing.T) {
	room := newTestRoom(t, 1000, ControllerOptions{})
	room.join(t, "observer", "observer")

	senders := []string{"s0", "s1", "s2", "s3", "s4"}
	for _, handle := range senders {
		room.join(t, handle, "user-"+handle)
	}
	room.transport.reset()

	var g errgroup.Group
	for _, handle := range senders {
		handle := handle
		g.Go(func() error {
			for i := 0; i < 50; i++ {
				if _, err := room.controller.PostMessage(handle, fmt.Sprintf("%s-%d", handle, i)); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	var broadcast []string
	for _, ev := range room.transport.events("observer") {
		require.Equal(t, EventNewMessage, ev.Type)
		broadcast = append(broadcast, decodeAs[Message](t, ev).ID)
	}

	require.Len(t, broadcast, 250)
	assert.Equal(t, messageIDs(room.log.Tail(250)), broadcast)

	for _, handle := range senders {
		var own []string
		for _, m := range room.log.Tail(250) {
			if m.Username == "user-"+handle {
				own = append(own, m.Content)
			}
		}
		assert.True(t, slices.IsSortedFunc(own, func(a, b string) int {
			return messageSeq(a) - messageSeq(b)
		}), "per-sender order is preserved for %s", handle)
	}
}

func TestPanicInHandlerDoesNotPoisonRoom(t *testing.T) {
	room := newTestRoom(t, 100, ControllerOptions{})
	room.join(t, "a", "alice")

	room.controller.critical(func() {
		panic("boom")
	})

	_, err := room.controller.PostMessage("a", "still alive")
	assert.NoError(t, err)
}

func usernames(presences []user.Presence) []string {
	names := make([]string, 0, len(presences))
	for _, p := range presences {
		names = append(names, p.Username)
	}
	return names
}

func messageSeq(content string) int {
	var seq int
	_, _ = fmt.Sscanf(content[strings.LastIndex(content, "-")+1:], "%d", &seq)
	return seq
}
