package types

import "testing"

func TestMessage_IsSystem(t *testing.T) {
	tests := []struct {
		msg  Message
		want bool
	}{
		{Message{AuthorID: AuthorSystem, Type: MsgArgument}, true},
		{Message{AuthorID: "ada", Type: MsgSystem}, true},
		{Message{AuthorID: "ada", Type: MsgArgument}, false},
		{Message{AuthorID: AuthorHuman, Type: MsgHumanInput}, false},
	}
	for _, tt := range tests {
		if got := tt.msg.IsSystem(); got != tt.want {
			t.Errorf("IsSystem(%s/%s) = %v, want %v", tt.msg.AuthorID, tt.msg.Type, got, tt.want)
		}
	}
}

func TestMessage_IsHuman(t *testing.T) {
	m := Message{AuthorID: AuthorHuman, Type: MsgArgument}
	if !m.IsHuman() {
		t.Error("human author must be human")
	}
	m = Message{AuthorID: "ada", Type: MsgHumanInput}
	if !m.IsHuman() {
		t.Error("human_input type must be human")
	}
	m = Message{AuthorID: "ada", Type: MsgArgument}
	if m.IsHuman() {
		t.Error("agent message must not be human")
	}
}

func TestMessage_ShortID(t *testing.T) {
	m := Message{ID: "0123456789abcdef"}
	if got := m.ShortID(); got != "01234567" {
		t.Errorf("ShortID = %q, want %q", got, "01234567")
	}
	m = Message{ID: "short"}
	if got := m.ShortID(); got != "short" {
		t.Errorf("ShortID = %q, want %q", got, "short")
	}
}

func TestExpandGoal(t *testing.T) {
	got := ExpandGoal("Remember: {goal}. Focus on {goal}.", "ship the beta page")
	want := "Remember: ship the beta page. Focus on ship the beta page."
	if got != want {
		t.Errorf("ExpandGoal = %q, want %q", got, want)
	}
	if got := ExpandGoal("no placeholder here", "goal"); got != "no placeholder here" {
		t.Errorf("message without placeholder must pass through, got %q", got)
	}
}
