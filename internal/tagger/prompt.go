package tagger

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/wesm/chatarchive/internal/tags"
	"github.com/wesm/chatarchive/internal/textutil"
)

// maxPromptRunes caps each message's text in the prompt.
const maxPromptRunes = 1000

const systemPrompt = "You classify chat messages into a fixed set of tags. " +
	"Reply only in the requested format, one line per message."

// BuildPrompt renders the classification request for texts, restricted to
// vocab. Messages are numbered from zero in the order given.
func BuildPrompt(texts []string, vocab []tags.Tag) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Analyze the following chat messages and categorize each one with zero or more of these tags: %s.\n\n",
		strings.Join(tags.Strings(vocab), ", "))

	sb.WriteString("Rules:\n")
	for _, t := range vocab {
		if info, ok := tags.Lookup(t); ok {
			fmt.Fprintf(&sb, "- %s: %s\n", info.Label, info.Description)
		}
	}

	sb.WriteString("\nMessages:\n")
	for i, text := range texts {
		fmt.Fprintf(&sb, "[%d] %q\n\n", i, textutil.TruncateRunes(textutil.SingleLine(text), maxPromptRunes))
	}

	sb.WriteString(`For each message, respond with ONLY the message number followed by a colon and comma-separated tags (or "none" if no tags apply).
Format: [number]: tag1, tag2, tag3
Example:
[0]: Funny, Insult
[1]: Political
[2]: none

Your response:`)
	return sb.String()
}

var replyLine = regexp.MustCompile(`^\s*\[(\d+)\]\s*:\s*(.*)$`)

// ParseReply reads "[n]: tag1, tag2" and "[n]: none" lines. Indexes outside
// [0,n) and tags outside allowed are dropped; matching is case-insensitive
// and returns the canonical tag. Messages the model skipped are absent from
// the result, while "none" yields an empty, non-nil slice.
func ParseReply(reply string, n int, allowed []tags.Tag) map[int][]tags.Tag {
	canon := make(map[string]tags.Tag, len(allowed))
	for _, t := range allowed {
		canon[strings.ToLower(string(t))] = t
	}

	out := make(map[int][]tags.Tag)
	for _, line := range strings.Split(reply, "\n") {
		m := replyLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		idx, err := strconv.Atoi(m[1])
		if err != nil || idx < 0 || idx >= n {
			continue
		}
		body := strings.Trim(strings.TrimSpace(m[2]), ".")
		got := []tags.Tag{}
		if !strings.EqualFold(body, "none") {
			for _, tok := range tags.Parse(body) {
				if t, ok := canon[strings.ToLower(strings.Trim(string(tok), `"'*`))]; ok {
					got = append(got, t)
				}
			}
		}
		out[idx] = got
	}
	return out
}
