package tagger

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wesm/chatarchive/internal/tags"
	"github.com/wesm/chatarchive/internal/testutil"
)

func TestBuildPrompt(t *testing.T) {
	long := strings.Repeat("x", maxPromptRunes+50)
	prompt := BuildPrompt([]string{"hello\nworld", long}, []tags.Tag{tags.Funny, tags.Music})

	testutil.AssertContainsAll(t, prompt, []string{
		"these tags: Funny, Music.",
		"- Funny: Humorous messages",
		"- Music: Messages that reference music",
		`[0] "hello world"`,
		"[1] ",
		"Format: [number]: tag1, tag2, tag3",
	})
	if strings.Contains(prompt, "Insult:") {
		t.Error("prompt should only describe the requested tags")
	}
	if strings.Contains(prompt, long) {
		t.Error("long message should be truncated")
	}
}

func TestParseReply(t *testing.T) {
	allowed := []tags.Tag{tags.Funny, tags.Insult, tags.PoliticallyIncorrect}
	reply := `Here you go:
[0]: Funny, Insult
[1]: none
[2]: politically incorrect, Sport
 [3] : "Funny".
[7]: Funny
[x]: Funny
garbage line`

	got := ParseReply(reply, 5, allowed)
	want := map[int][]tags.Tag{
		0: {tags.Funny, tags.Insult},
		1: {},
		2: {tags.PoliticallyIncorrect},
		3: {tags.Funny},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseReply mismatch (-want +got):\n%s", diff)
	}
	if _, ok := got[4]; ok {
		t.Error("unanswered message should be absent")
	}
}

func TestParseReply_Empty(t *testing.T) {
	if got := ParseReply("", 3, tags.Classifiable()); len(got) != 0 {
		t.Errorf("ParseReply(\"\") = %v, want empty", got)
	}
}
