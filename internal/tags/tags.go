// Package tags defines the closed tag vocabulary used to classify archived
// chat messages, along with helpers for the denormalized tag column.
//
// The tags column stores a subset of the vocabulary joined with ", ".
// Membership is always decided on whole tokens: "Gay" matches "Funny, Gay"
// but never "Gay Bar".
package tags

import "strings"

// Tag is a single label from the vocabulary.
type Tag string

// The vocabulary, in display order.
const (
	Insult               Tag = "Insult"
	Funny                Tag = "Funny"
	Political            Tag = "Political"
	Sport                Tag = "Sport"
	Computers            Tag = "Computers"
	Transport            Tag = "Transport"
	Food                 Tag = "Food"
	Cables               Tag = "Cables"
	Animals              Tag = "Animals"
	Woke                 Tag = "Woke"
	PoliticallyIncorrect Tag = "Politically Incorrect"
	Gay                  Tag = "Gay"
	PoorGrammar          Tag = "Poor Grammar"
	Geeky                Tag = "Geeky"
	Profound             Tag = "Profound"
	DeathUpdate          Tag = "Death Update"
	Correction           Tag = "Correction"
	Music                Tag = "Music"
	ConversationStopper  Tag = "Conversation Stopper"
)

// Separator joins tags in the stored column.
const Separator = ", "

// Info is presentation metadata for a tag.
type Info struct {
	Tag         Tag    `json:"tag"`
	Label       string `json:"label"`
	Color       string `json:"color"`
	Icon        string `json:"icon"`
	Description string `json:"description"`
	// Computed tags are derived from message timing rather than content
	// and are never requested from the classifier.
	Computed bool `json:"computed,omitempty"`
}

var vocabulary = []Info{
	{Insult, "Insult", "red", "😠", "Messages that contain insults, name-calling, or derogatory language", false},
	{Funny, "Funny", "yellow", "😂", "Humorous messages, jokes, or lighthearted content", false},
	{Political, "Political", "blue", "🏛️", "References to politics, politicians, political events, or political opinions", false},
	{Sport, "Sport", "green", "⚽", "References to sports, teams, games, or sporting events", false},
	{Computers, "Computers", "purple", "💻", "Discussions about computers, programming, IT, software, or digital technology", false},
	{Transport, "Transport", "cyan", "🚗", "References to cars, bikes, trains, planes, or any form of transportation", false},
	{Food, "Food", "amber", "🍕", "References to food, eating, cooking, restaurants, or recipes", false},
	{Cables, "Cables", "slate", "🔌", "References to cables, wires, connections, or physical connectivity", false},
	{Animals, "Animals", "lime", "🐾", "References to animals, pets, wildlife, creatures, or animal-related topics", false},
	{Woke, "Woke", "pink", "✊", "Content related to social justice, progressive politics, or identity politics", false},
	{PoliticallyIncorrect, "Politically Incorrect", "orange", "🚫", "Offensive jokes, controversial humor, or content that challenges political correctness", false},
	{Gay, "Gay", "violet", "🌈", "Messages that are effeminate, ladylike, meek, sensitive, gentle, or express vulnerability", false},
	{PoorGrammar, "Poor Grammar", "rose", "📝", "Messages with obvious grammatical errors, spelling mistakes, or poor sentence structure", false},
	{Geeky, "Geeky", "indigo", "🤓", "Geek culture, nerdy references, science fiction, fantasy, gaming, comics, or technical enthusiasm", false},
	{Profound, "Profound", "teal", "💭", "Deep insights about life, philosophical thoughts, meaningful reflections, or thought-provoking wisdom", false},
	{DeathUpdate, "Death Update", "stone", "⚰️", "Messages discussing someone (other than a group member) dying or being dead", false},
	{Correction, "Correction", "emerald", "✅", "Messages that are correcting something someone else has said", false},
	{Music, "Music", "fuchsia", "🎵", "Messages that reference music, songs, musical instruments, bands, artists, or concerts", false},
	{ConversationStopper, "Conversation Stopper", "gray", "🛑", "No reply arrived within two hours, or this is the last message", true},
}

var byName = func() map[Tag]int {
	m := make(map[Tag]int, len(vocabulary))
	for i, info := range vocabulary {
		m[info.Tag] = i
	}
	return m
}()

// All returns every tag in display order.
func All() []Tag {
	out := make([]Tag, len(vocabulary))
	for i, info := range vocabulary {
		out[i] = info.Tag
	}
	return out
}

// Classifiable returns the tags an external classifier may assign.
func Classifiable() []Tag {
	var out []Tag
	for _, info := range vocabulary {
		if !info.Computed {
			out = append(out, info.Tag)
		}
	}
	return out
}

// Infos returns presentation metadata for every tag in display order.
func Infos() []Info {
	out := make([]Info, len(vocabulary))
	copy(out, vocabulary)
	return out
}

// Lookup returns metadata for t.
func Lookup(t Tag) (Info, bool) {
	i, ok := byName[t]
	if !ok {
		return Info{}, false
	}
	return vocabulary[i], true
}

// Known reports whether t is part of the vocabulary.
func Known(t Tag) bool {
	_, ok := byName[t]
	return ok
}

// Parse splits a stored tags column into trimmed, non-empty tokens.
// Unknown tokens are kept; callers that need only vocabulary tags filter
// with Known.
func Parse(column string) []Tag {
	if strings.TrimSpace(column) == "" {
		return nil
	}
	parts := strings.Split(column, ",")
	out := make([]Tag, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, Tag(p))
		}
	}
	return out
}

// Has reports whether the stored column contains t as a whole token.
func Has(column string, t Tag) bool {
	want := strings.TrimSpace(string(t))
	if want == "" {
		return false
	}
	for _, got := range Parse(column) {
		if string(got) == want {
			return true
		}
	}
	return false
}

// HasAny reports whether the column contains any of the given tags.
// An empty want list matches nothing.
func HasAny(column string, want []Tag) bool {
	for _, t := range want {
		if Has(column, t) {
			return true
		}
	}
	return false
}

// Join renders tags for storage, dropping blanks and duplicates while
// preserving first-seen order.
func Join(ts []Tag) string {
	seen := make(map[Tag]bool, len(ts))
	parts := make([]string, 0, len(ts))
	for _, t := range ts {
		t = Tag(strings.TrimSpace(string(t)))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		parts = append(parts, string(t))
	}
	return strings.Join(parts, Separator)
}

// Merge adds extra to the tags already in column.
func Merge(column string, extra ...Tag) string {
	return Join(append(Parse(column), extra...))
}

// Without removes t from column.
func Without(column string, t Tag) string {
	existing := Parse(column)
	kept := existing[:0]
	for _, e := range existing {
		if e != t {
			kept = append(kept, e)
		}
	}
	return Join(kept)
}

// ParseList parses user input such as the "tags" query parameter: a
// comma-separated list with duplicates removed. Unknown names are kept so a
// filter on them matches nothing instead of silently matching everything.
func ParseList(csv string) []Tag {
	var out []Tag
	seen := make(map[Tag]bool)
	for _, t := range Parse(csv) {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

// Strings converts tags to plain strings.
func Strings(ts []Tag) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = string(t)
	}
	return out
}
