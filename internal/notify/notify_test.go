package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdholdren/upwatch/internal/upwatch"
	"github.com/jdholdren/upwatch/internal/upwatch/upwatchtest"
)

var now = time.Date(2024, time.January, 5, 15, 0, 0, 0, time.UTC)

type fakeSender struct {
	err  error
	sent []Message
}

func (f *fakeSender) Send(_ context.Context, msg Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func strPtr(s string) *string { return &s }

func seed(t *testing.T) *upwatchtest.Repo {
	t.Helper()

	repo := upwatchtest.NewRepo()
	require.NoError(t, repo.InsertEntries(context.Background(), []upwatch.Entry{
		{FeedID: 1, URL: "https://example.com/jobs/1", Title: "Older", PostedOn: now.Add(-3 * time.Hour)},
		{FeedID: 1, URL: "https://example.com/jobs/2", Title: "Newer", PostedOn: now.Add(-5 * time.Minute)},
	}))

	return repo
}

func newTestTrigger(repo upwatch.Repository, sender Sender) *Trigger {
	tr := NewTrigger(repo, HTMLRenderer{Site: "Upwork"}, sender)
	tr.now = func() time.Time { return now }
	return tr
}

func TestNotify(t *testing.T) {
	ctx := context.Background()
	repo := seed(t)
	sender := &fakeSender{}

	require.NoError(t, newTestTrigger(repo, sender).Notify(ctx))
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "Upwork feed update (2)", sender.sent[0].Subject)

	unsent, err := repo.UnsentEntries(ctx)
	require.NoError(t, err)
	assert.Empty(t, unsent)

	// Nothing left, nothing sent
	require.NoError(t, newTestTrigger(repo, sender).Notify(ctx))
	assert.Len(t, sender.sent, 1)
}

func TestNotify_OnlyUnsent(t *testing.T) {
	ctx := context.Background()
	repo := seed(t)
	sender := &fakeSender{}
	tr := newTestTrigger(repo, sender)

	require.NoError(t, tr.Notify(ctx))
	require.NoError(t, repo.InsertEntries(ctx, []upwatch.Entry{
		{FeedID: 1, URL: "https://example.com/jobs/3", Title: "Latest", PostedOn: now},
	}))
	require.NoError(t, tr.Notify(ctx))

	require.Len(t, sender.sent, 2)
	assert.Equal(t, "Upwork feed update (1)", sender.sent[1].Subject)
	assert.Contains(t, sender.sent[1].HTML, "Latest")
	assert.NotContains(t, sender.sent[1].HTML, "Older")
}

func TestNotify_Failures(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantFatal bool
	}{
		{
			name: "transient",
			err:  fmt.Errorf("%w: connection refused", ErrTransient),
		},
		{
			name: "unclassified",
			err:  errors.New("something odd"),
		},
		{
			name:      "fatal",
			err:       fmt.Errorf("%w: bad credentials", ErrFatal),
			wantFatal: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			repo := seed(t)

			err := newTestTrigger(repo, &fakeSender{err: tt.err}).Notify(ctx)
			if tt.wantFatal {
				assert.ErrorIs(t, err, ErrFatal)
			} else {
				assert.NoError(t, err)
			}

			// Nothing is marked sent either way
			unsent, err := repo.UnsentEntries(ctx)
			require.NoError(t, err)
			assert.Len(t, unsent, 2)
		})
	}
}

func TestNotify_MarkSentFails(t *testing.T) {
	repo := seed(t)
	repo.MarkSentErr = errors.New("locked")
	sender := &fakeSender{}

	assert.NoError(t, newTestTrigger(repo, sender).Notify(context.Background()))
	assert.Len(t, sender.sent, 1)
}

func TestHTMLRenderer(t *testing.T) {
	entries := []upwatch.Entry{
		{
			URL:        "https://example.com/jobs/2",
			Title:      "Go <backend>",
			PostedOn:   now.Add(-5 * time.Minute),
			LowHourly:  strPtr("$20"),
			HighHourly: strPtr("$40"),
			Skills:     strPtr("Go, Rust, C++"),
			Keywords:   strPtr("scheduler, sqlite"),
		},
		{
			URL:      "https://example.com/jobs/1",
			Title:    "Plain",
			PostedOn: now.Add(-50 * time.Hour),
		},
	}

	msg, err := HTMLRenderer{Site: "Upwork"}.Render(entries, now)
	require.NoError(t, err)
	assert.Equal(t, "Upwork feed update (2)", msg.Subject)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(msg.HTML))
	require.NoError(t, err)

	rows := doc.Find("tr.entry")
	require.Equal(t, 2, rows.Length())

	first := rows.First()
	link := first.Find("a.title")
	assert.Equal(t, "Go <backend>", link.Text())
	href, _ := link.Attr("href")
	assert.Equal(t, "https://example.com/jobs/2", href)
	assert.Equal(t, "5 minutes ago", first.Find(".posted").Text())
	assert.Equal(t, "$20 - $40 hourly", first.Find(".rate").Text())
	assert.Equal(t, "Skills: Go, Rust, C++", first.Find(".skills").Text())
	assert.Equal(t, "Keywords: scheduler, sqlite", first.Find(".keywords").Text())

	second := rows.Eq(1)
	assert.Equal(t, "2 days ago", second.Find(".posted").Text())
	assert.Zero(t, second.Find(".rate").Length())
	assert.Zero(t, second.Find(".skills").Length())
}

func TestTimeAgo(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{d: 0, want: "just now"},
		{d: 59 * time.Second, want: "just now"},
		{d: time.Minute, want: "1 minute ago"},
		{d: 59 * time.Minute, want: "59 minutes ago"},
		{d: time.Hour, want: "1 hour ago"},
		{d: 23*time.Hour + 59*time.Minute, want: "23 hours ago"},
		{d: 24 * time.Hour, want: "1 day ago"},
		{d: 30 * 24 * time.Hour, want: "30 days ago"},
		// Clock skew puts some postings in the future
		{d: -time.Hour, want: "just now"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, TimeAgo(tt.d))
		})
	}
}
