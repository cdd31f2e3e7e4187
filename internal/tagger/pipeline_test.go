package tagger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/wesm/chatarchive/internal/store"
	"github.com/wesm/chatarchive/internal/tags"
	"github.com/wesm/chatarchive/internal/testutil"
)

// keywordLLM answers prompts by keyword: "joke" is Funny, "song" is Music.
// Prompts containing "explode" fail.
type keywordLLM struct {
	mu    sync.Mutex
	calls int
	fail  string
}

var promptLine = regexp.MustCompile(`(?m)^\[(\d+)\] "(.*)"$`)

func (k *keywordLLM) Chat(_ context.Context, msgs []Message) (string, error) {
	k.mu.Lock()
	k.calls++
	k.mu.Unlock()

	prompt := msgs[len(msgs)-1].Content
	if k.fail != "" && strings.Contains(prompt, k.fail) {
		return "", errors.New("model overloaded")
	}
	var sb strings.Builder
	for _, m := range promptLine.FindAllStringSubmatch(prompt, -1) {
		var got []string
		if strings.Contains(m[2], "joke") {
			got = append(got, "Funny")
		}
		if strings.Contains(m[2], "song") {
			got = append(got, "Music")
		}
		if len(got) == 0 {
			got = []string{"none"}
		}
		fmt.Fprintf(&sb, "[%s]: %s\n", m[1], strings.Join(got, ", "))
	}
	return sb.String(), nil
}

func (k *keywordLLM) Calls() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.calls
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func tagsOf(t *testing.T, st *store.Store, id string) string {
	t.Helper()
	m, err := st.GetMessage(id)
	testutil.MustNoErr(t, err, "GetMessage")
	if m == nil {
		t.Fatalf("message %s missing", id)
	}
	return m.Tags
}

func TestPipeline_TagsUntaggedRows(t *testing.T) {
	st := testutil.NewTestStore(t)
	testutil.SeedMessages(t, st,
		testutil.NewMessage("1").WithText("a joke").Build(),
		testutil.NewMessage("2").WithText("a joke and a song").Build(),
		testutil.NewMessage("3").WithText("nothing here").Build(),
		testutil.NewMessage("4").WithText("another joke").WithTags("Sport").Build(),
		testutil.NewMessage("5").WithText("a song").Build(),
	)
	llm := &keywordLLM{}
	var progress []int64

	p, err := New(st, llm, Options{
		BatchSize:   2,
		Concurrency: 2,
		Progress:    func(done, _ int64) { progress = append(progress, done) },
	})
	testutil.MustNoErr(t, err, "New")
	sum, err := p.WithLogger(quietLogger()).Run(context.Background())
	testutil.MustNoErr(t, err, "Run")

	if sum.Candidates != 4 || sum.Processed != 4 || sum.Updated != 3 || sum.FailedBatches != 0 {
		t.Errorf("summary = %+v", sum)
	}
	if llm.Calls() != 2 {
		t.Errorf("LLM calls = %d, want 2", llm.Calls())
	}
	want := map[string]string{"1": "Funny", "2": "Funny, Music", "3": "", "4": "Sport", "5": "Music"}
	for id, w := range want {
		if got := tagsOf(t, st, id); got != w {
			t.Errorf("message %s tags = %q, want %q", id, got, w)
		}
	}
	testutil.AssertEqualSlices(t, progress, 4)
}

func TestPipeline_FailedBatchLeftUntouchedAndRetried(t *testing.T) {
	st := testutil.NewTestStore(t)
	testutil.SeedMessages(t, st,
		testutil.NewMessage("1").WithText("a joke").Build(),
		testutil.NewMessage("2").WithText("joke explode").Build(),
		testutil.NewMessage("3").WithText("a song").Build(),
	)
	cpPath := filepath.Join(t.TempDir(), "checkpoint.json")
	opts := Options{BatchSize: 1, Concurrency: 1, CheckpointPath: cpPath}

	p, err := New(st, &keywordLLM{fail: "explode"}, opts)
	testutil.MustNoErr(t, err, "New")
	sum, err := p.WithLogger(quietLogger()).Run(context.Background())
	testutil.MustNoErr(t, err, "Run")
	if sum.FailedBatches != 1 {
		t.Errorf("FailedBatches = %d, want 1", sum.FailedBatches)
	}
	if got := tagsOf(t, st, "2"); got != "" {
		t.Errorf("failed row tags = %q, want untouched", got)
	}
	if got := tagsOf(t, st, "3"); got != "Music" {
		t.Errorf("row after failure tags = %q, want Music", got)
	}

	m1, _ := st.GetMessage("1")
	cp, err := LoadCheckpoint(cpPath)
	testutil.MustNoErr(t, err, "LoadCheckpoint")
	if cp.Mode != "untagged" || cp.LastID != m1.ID {
		t.Errorf("checkpoint = %+v, want frozen at id %d", cp, m1.ID)
	}

	llm := &keywordLLM{}
	p, err = New(st, llm, opts)
	testutil.MustNoErr(t, err, "New retry")
	sum, err = p.WithLogger(quietLogger()).Run(context.Background())
	testutil.MustNoErr(t, err, "Run retry")
	if sum.ResumedFrom != m1.ID || sum.Processed != 1 {
		t.Errorf("retry summary = %+v", sum)
	}
	if got := tagsOf(t, st, "2"); got != "Funny" {
		t.Errorf("retried row tags = %q, want Funny", got)
	}
	if llm.Calls() != 1 {
		t.Errorf("retry LLM calls = %d, want 1", llm.Calls())
	}
}

func TestPipeline_CheckpointForOtherModeIgnored(t *testing.T) {
	st := testutil.NewTestStore(t)
	testutil.SeedMessages(t, st, testutil.NewMessage("1").WithText("a joke").Build())
	cpPath := filepath.Join(t.TempDir(), "checkpoint.json")
	testutil.MustNoErr(t, SaveCheckpoint(cpPath, Checkpoint{Mode: "all", LastID: 999}), "SaveCheckpoint")

	p, err := New(st, &keywordLLM{}, Options{CheckpointPath: cpPath})
	testutil.MustNoErr(t, err, "New")
	sum, err := p.WithLogger(quietLogger()).Run(context.Background())
	testutil.MustNoErr(t, err, "Run")
	if sum.ResumedFrom != 0 || sum.Updated != 1 {
		t.Errorf("summary = %+v", sum)
	}
}

func TestPipeline_TagSubsetReplacesOnlyThoseTags(t *testing.T) {
	st := testutil.NewTestStore(t)
	testutil.SeedMessages(t, st,
		testutil.NewMessage("1").WithText("plain").WithTags("Funny, Music, Conversation Stopper").Build(),
		testutil.NewMessage("2").WithText("a song").WithTags("Insult").Build(),
	)

	p, err := New(st, &keywordLLM{}, Options{Tags: []tags.Tag{tags.Music}})
	testutil.MustNoErr(t, err, "New")
	_, err = p.WithLogger(quietLogger()).Run(context.Background())
	testutil.MustNoErr(t, err, "Run")

	if got := tagsOf(t, st, "1"); got != "Funny, Conversation Stopper" {
		t.Errorf("row 1 tags = %q", got)
	}
	if got := tagsOf(t, st, "2"); got != "Insult, Music" {
		t.Errorf("row 2 tags = %q", got)
	}
}

func TestNew_RejectsBadTags(t *testing.T) {
	for _, tag := range []tags.Tag{"Nope", tags.ConversationStopper} {
		if _, err := New(nil, &keywordLLM{}, Options{Tags: []tags.Tag{tag}}); err == nil {
			t.Errorf("New with tag %q: expected error", tag)
		}
	}
}

func TestPipeline_CancelledContext(t *testing.T) {
	st := testutil.NewTestStore(t)
	testutil.SeedMessages(t, st, testutil.NewMessage("1").Build())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p, err := New(st, &keywordLLM{}, Options{})
	testutil.MustNoErr(t, err, "New")
	if _, err := p.WithLogger(quietLogger()).Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Run() = %v, want context.Canceled", err)
	}
}

func TestChunk(t *testing.T) {
	rows := make([]store.TagCandidate, 5)
	var sizes []int
	for _, c := range chunk(rows, 2) {
		sizes = append(sizes, len(c))
	}
	testutil.AssertEqualSlices(t, sizes, 2, 2, 1)
}
