package consensus

import (
	"testing"

	"parley/internal/types"
)

func TestClassify_ExplicitTagWins(t *testing.T) {
	tests := []struct {
		content string
		want    ResponseType
	}{
		{"[PROPOSAL] lead with the outcome", ResponseProposal},
		{"[proposal] tags are case-insensitive", ResponseProposal},
		{"[AGREEMENT] yes, that direction", ResponseAgreement},
		{"[DISAGREEMENT] I agree the data is good, but no", ResponseDisagreement},
		{"[SYNTHESIS] pulling the threads together", ResponseSynthesis},
		{"[ARGUMENT] let's try to be precise here", ResponseArgument},
	}
	for _, tt := range tests {
		got := classify(types.Message{Content: tt.content, Type: types.MsgArgument})
		if got != tt.want {
			t.Errorf("classify(%q) = %s, want %s", tt.content, got, tt.want)
		}
	}
}

func TestClassify_CuePrecedence(t *testing.T) {
	// Agreement cues are checked before disagreement, disagreement before
	// proposal.
	got := classify(types.Message{
		Content: "I agree with the premise, though not convinced by the numbers",
		Type:    types.MsgArgument,
	})
	if got != ResponseAgreement {
		t.Errorf("expected agreement to shadow disagreement, got %s", got)
	}

	got = classify(types.Message{
		Content: "Not convinced. What if we tried a shorter headline?",
		Type:    types.MsgArgument,
	})
	if got != ResponseDisagreement {
		t.Errorf("expected disagreement to shadow proposal, got %s", got)
	}
}

func TestClassify_CueInference(t *testing.T) {
	tests := []struct {
		content string
		want    ResponseType
	}{
		{"Good point about the pricing page", ResponseAgreement},
		{"That won't work for enterprise buyers", ResponseDisagreement},
		{"How about we open with the testimonial?", ResponseProposal},
		{"+1 to the shorter version", ResponseAgreement},
	}
	for _, tt := range tests {
		got := classify(types.Message{Content: tt.content, Type: types.MsgArgument})
		if got != tt.want {
			t.Errorf("classify(%q) = %s, want %s", tt.content, got, tt.want)
		}
	}
}

func TestClassify_TypeFallback(t *testing.T) {
	neutral := "the audience skews toward technical founders"
	tests := []struct {
		mt   types.MessageType
		want ResponseType
	}{
		{types.MsgProposal, ResponseProposal},
		{types.MsgAgreement, ResponseAgreement},
		{types.MsgConsensus, ResponseAgreement},
		{types.MsgDisagreement, ResponseDisagreement},
		{types.MsgSynthesis, ResponseSynthesis},
		{types.MsgArgument, ResponseArgument},
		{types.MsgResearchRequest, ResponseArgument},
	}
	for _, tt := range tests {
		got := classify(types.Message{Content: neutral, Type: tt.mt})
		if got != tt.want {
			t.Errorf("type %s: classify = %s, want %s", tt.mt, got, tt.want)
		}
	}
}
