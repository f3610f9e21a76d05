package consensus

import (
	"regexp"
	"strings"

	"parley/internal/types"
)

// ResponseType is the classified role of a recorded contribution.
type ResponseType string

const (
	ResponseArgument     ResponseType = "argument"
	ResponseProposal     ResponseType = "proposal"
	ResponseAgreement    ResponseType = "agreement"
	ResponseDisagreement ResponseType = "disagreement"
	ResponseSynthesis    ResponseType = "synthesis"
)

// Explicit bracketed tags always win over inference.
var tagRe = regexp.MustCompile(`(?i)\[(ARGUMENT|PROPOSAL|AGREEMENT|DISAGREEMENT|SYNTHESIS)\]`)

// cueSet maps natural-language cue phrases to a response type. The sets are
// checked in order and the first match wins, so agreement cues shadow
// disagreement cues which shadow proposal cues. The tables are data: adding
// a cue phrase is an edit here, not a code change elsewhere.
type cueSet struct {
	responseType ResponseType
	cues         []string
}

var cueSets = []cueSet{
	{ResponseAgreement, []string{
		"i agree",
		"agreed",
		"good point",
		"exactly right",
		"you're right",
		"that works for me",
		"i support",
		"+1",
	}},
	{ResponseDisagreement, []string{
		"i disagree",
		"i don't agree",
		"i don't think",
		"not convinced",
		"on the contrary",
		"that won't work",
		"i object",
	}},
	{ResponseProposal, []string{
		"i propose",
		"proposal:",
		"what if we",
		"we should",
		"my suggestion",
		"how about",
		"let's try",
	}},
}

// classify determines a message's response type from its explicit tag when
// present, otherwise from the cue tables. Untagged, cue-free messages fall
// back to the message's own type when meaningful, else argument.
func classify(msg types.Message) ResponseType {
	if m := tagRe.FindStringSubmatch(msg.Content); m != nil {
		return ResponseType(strings.ToLower(m[1]))
	}

	lower := strings.ToLower(msg.Content)
	for _, set := range cueSets {
		for _, cue := range set.cues {
			if strings.Contains(lower, cue) {
				return set.responseType
			}
		}
	}

	switch msg.Type {
	case types.MsgProposal:
		return ResponseProposal
	case types.MsgAgreement, types.MsgConsensus:
		return ResponseAgreement
	case types.MsgDisagreement:
		return ResponseDisagreement
	case types.MsgSynthesis:
		return ResponseSynthesis
	default:
		return ResponseArgument
	}
}
