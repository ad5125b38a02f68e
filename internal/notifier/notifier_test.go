package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"

	"EarningsScreener/internal/model"
)

func strPtr(s string) *string { return &s }
func fPtr(f float64) *float64 { return &f }

func sampleRows() []model.ResultRow {
	return []model.ResultRow{
		{Symbol: "AAA", Company: "Alpha Inc", Rating: model.RatingGo, AvgVolume: true, IV30RV30: true,
			ExpectedMove: strPtr("6.1%"), TSSlope045: fPtr(-0.012), IV30: 0.55},
		{Symbol: "BBB", Company: "Beta Corp", Rating: model.RatingConsider, AvgVolume: true,
			ExpectedMove: strPtr("4.0%"), TSSlope045: fPtr(-0.005), IV30: 0.41},
		{Symbol: "CCC", Company: "Gamma", Rating: model.RatingReject, IV30: 0.2},
	}
}

func TestSummary(t *testing.T) {
	assert.Equal(t, "GO: AAA | CONSIDER: BBB", Summary(sampleRows()))
	assert.Equal(t, "CONSIDER: BBB", Summary(sampleRows()[1:]))
	assert.Equal(t, "No Go or Consider symbols today", Summary(nil))
}

func TestFormatReport(t *testing.T) {
	r := Report{
		Date:      time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC),
		Rows:      sampleRows(),
		Shortfall: []string{"DDD", "EEE"},
		Errors:    []string{"FFF: price unavailable"},
		Filtered:  []string{"GGG"},
	}
	msg := FormatReport(r)

	assert.Equal(t, "Earnings Recommendations - 2024-03-08", msg.Subject)
	assert.Equal(t, "GO: AAA | CONSIDER: BBB", msg.Summary)
	assert.Contains(t, msg.Text, "AAA")
	assert.Contains(t, msg.Text, "6.1%")
	assert.Contains(t, msg.Text, "Errors occurred for 3 tickers:")
	assert.Contains(t, msg.Text, "Not enough expirations: DDD, EEE")
	assert.Contains(t, msg.Text, "  - FFF: price unavailable")
	assert.Contains(t, msg.Text, "Below market cap: 1 (GGG)")

	assert.Contains(t, msg.HTML, `<tr class="go">`)
	assert.Contains(t, msg.HTML, "<td>Beta Corp</td>")
}

func TestFormatReport_NoResults(t *testing.T) {
	msg := FormatReport(Report{Date: time.Date(2024, 3, 8, 0, 0, 0, 0, time.UTC), Shortfall: []string{"DDD"}})
	assert.Equal(t, "Earnings Recommendations - 2024-03-08 (No Results)", msg.Subject)
	assert.NotContains(t, msg.HTML, "<table>")
	assert.Contains(t, msg.Text, "Processed 0 tickers successfully.")
}

func TestFormatReport_EscapesHTML(t *testing.T) {
	rows := []model.ResultRow{{Symbol: "AAA", Company: "A&B <Co>", Rating: model.RatingGo}}
	msg := FormatReport(Report{Date: time.Now(), Rows: rows})
	assert.Contains(t, msg.HTML, "A&amp;B &lt;Co&gt;")
}

func TestFormatRecommendation(t *testing.T) {
	rec := &model.Recommendation{
		Symbol:          "AAA",
		Rating:          model.RatingGo,
		AvgVolume:       true,
		AvgVolumeValue:  fPtr(2_345_678),
		IV30:            0.5,
		RV30:            fPtr(0.3),
		IV30RV30Value:   fPtr(1.667),
		IV30RV30:        true,
		TSSlope045:      fPtr(-0.01),
		Slope:           true,
		UnderlyingPrice: 101.5,
		Straddle:        fPtr(6.2),
		ExpectedMove:    strPtr("6.11%"),
	}
	out := FormatRecommendation(rec)
	assert.Contains(t, out, "<b>AAA</b> | Go")
	assert.Contains(t, out, "Avg volume (30d): 2,345,678 PASS")
	assert.Contains(t, out, "IV30/RV30: 1.667 PASS")
	assert.Contains(t, out, "Expected move: 6.11%")

	rec.RV30, rec.IV30RV30Value, rec.AvgVolumeValue = nil, nil, nil
	out = FormatRecommendation(rec)
	assert.Contains(t, out, "RV30: -")
	assert.Contains(t, out, "Avg volume (30d): -")
}

func TestSplitLines(t *testing.T) {
	assert.Equal(t, []string{"short"}, splitLines("short", 100))

	text := "aaaa\nbbbb\ncccc\n"
	parts := splitLines(text, 10)
	assert.Equal(t, []string{"aaaa\nbbbb\n", "cccc\n"}, parts)
	assert.Equal(t, text, strings.Join(parts, ""))

	parts = splitLines("0123456789abcdef", 6)
	assert.Equal(t, []string{"012345", "6789ab", "cdef"}, parts)
}

func TestTelegramNotifier_Notify(t *testing.T) {
	var mu sync.Mutex
	var texts []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "42", payload["chat_id"])
		assert.Equal(t, "HTML", payload["parse_mode"])
		mu.Lock()
		texts = append(texts, payload["text"])
		mu.Unlock()
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	tg := NewTelegramNotifier("TOKEN", "42", "")
	tg.BaseURL = srv.URL
	msg := Message{Subject: "Report", Summary: "GO: AAA", Text: "a < b\n"}
	require.NoError(t, tg.Notify(context.Background(), msg))

	require.Len(t, texts, 1)
	assert.Equal(t, "<b>Report</b>\nGO: AAA\n<pre>a &lt; b\n</pre>", texts[0])
}

func TestTelegramNotifier_SendWithRetryGivesUp(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"ok":false}`))
	}))
	defer srv.Close()

	tg := NewTelegramNotifier("TOKEN", "42", "")
	tg.BaseURL = srv.URL
	err := tg.SendWithRetry(context.Background(), "hi", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
	assert.Equal(t, 1, calls)
}

type fakeDiscord struct {
	channel  string
	contents []string
	err      error
}

func (f *fakeDiscord) ChannelMessageSend(channelID, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.channel = channelID
	f.contents = append(f.contents, content)
	return &discordgo.Message{Content: content}, f.err
}

func TestDiscordNotifier_Notify(t *testing.T) {
	fake := &fakeDiscord{}
	d := &DiscordNotifier{ChannelID: "chan", session: fake}

	text := strings.Repeat("row line of table\n", 200)
	require.NoError(t, d.Notify(context.Background(), Message{Subject: "Report", Summary: "GO: AAA", Text: text}))

	assert.Equal(t, "chan", fake.channel)
	require.Greater(t, len(fake.contents), 1)
	assert.True(t, strings.HasPrefix(fake.contents[0], "**Report**\nGO: AAA\n```\n"))
	for _, c := range fake.contents {
		assert.LessOrEqual(t, len(c), discordMaxLen)
	}
}

func TestDiscordNotifier_Error(t *testing.T) {
	d := &DiscordNotifier{ChannelID: "chan", session: &fakeDiscord{err: errors.New("403")}}
	err := d.Notify(context.Background(), Message{Subject: "x", Text: "y"})
	assert.ErrorContains(t, err, "discord send")
}

func TestEmailNotifier_Notify(t *testing.T) {
	e := NewEmailNotifier("smtp.example.com", 587, "user", "pass", "bot@example.com", []string{"a@example.com", "b@example.com"})
	var sent *mail.Msg
	e.send = func(_ context.Context, m *mail.Msg) error {
		sent = m
		return nil
	}

	require.NoError(t, e.Notify(context.Background(), Message{Subject: "Report", Text: "AAA Go\n", HTML: "<p>hi</p>"}))
	require.NotNil(t, sent)

	to, err := sent.GetRecipients()
	require.NoError(t, err)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, to)

	var buf bytes.Buffer
	_, err = sent.WriteTo(&buf)
	require.NoError(t, err)
	raw := buf.String()
	assert.Contains(t, raw, "Subject: Report")
	assert.Contains(t, raw, "bot@example.com")
	assert.Contains(t, raw, "text/html")
	assert.Contains(t, raw, "text/plain")
	assert.Contains(t, raw, "<p>hi</p>")
}

func TestEmailNotifier_TextOnlyIsEscaped(t *testing.T) {
	e := NewEmailNotifier("smtp.example.com", 25, "", "", "bot@example.com", []string{"a@example.com"})
	var sent *mail.Msg
	e.send = func(_ context.Context, m *mail.Msg) error {
		sent = m
		return nil
	}
	require.NoError(t, e.Notify(context.Background(), Message{Subject: "x", Text: "a<b"}))

	var buf bytes.Buffer
	_, err := sent.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "<pre>a&lt;b</pre>")
}

func TestEmailNotifier_Errors(t *testing.T) {
	e := NewEmailNotifier("smtp.example.com", 25, "", "", "not an address", []string{"a@example.com"})
	e.send = func(context.Context, *mail.Msg) error { return nil }
	assert.ErrorContains(t, e.Notify(context.Background(), Message{Subject: "x"}), "email from")

	e = NewEmailNotifier("smtp.example.com", 25, "", "", "bot@example.com", []string{"a@example.com"})
	e.send = func(context.Context, *mail.Msg) error { return errors.New("connection refused") }
	assert.ErrorContains(t, e.Notify(context.Background(), Message{Subject: "x"}), "smtp send: connection refused")
}

type stubNotifier struct {
	name string
	err  error
	got  []Message
}

func (s *stubNotifier) Name() string { return s.name }
func (s *stubNotifier) Notify(_ context.Context, msg Message) error {
	s.got = append(s.got, msg)
	return s.err
}

func TestMulti_AttemptsAll(t *testing.T) {
	a := &stubNotifier{name: "a", err: errors.New("down")}
	b := &stubNotifier{name: "b"}
	err := Multi{a, b}.Notify(context.Background(), Message{Subject: "s"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "a: down")
	assert.Len(t, a.got, 1)
	assert.Len(t, b.got, 1)

	assert.NoError(t, Multi{b}.Notify(context.Background(), Message{}))
}

func TestStartPolling_AnswersConfiguredChatOnly(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var got []string
	var replies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/botTOKEN/getUpdates":
			if r.URL.Query().Get("offset") == "0" {
				w.Write([]byte(`{"ok":true,"result":[
					{"update_id":7,"message":{"text":"/today","chat":{"id":99}}},
					{"update_id":8,"message":{"text":" /rec aapl ","chat":{"id":42}}}
				]}`))
				return
			}
			w.Write([]byte(`{"ok":true,"result":[]}`))
		case "/botTOKEN/sendMessage":
			var payload map[string]string
			json.NewDecoder(r.Body).Decode(&payload)
			replies = append(replies, payload["text"])
			cancel()
			w.Write([]byte(`{"ok":true}`))
		}
	}))
	defer srv.Close()

	tg := NewTelegramNotifier("TOKEN", "42", "")
	tg.BaseURL = srv.URL
	tg.StartPolling(ctx, func(_ context.Context, cmd string) string {
		got = append(got, cmd)
		return "reply to " + cmd
	})

	assert.Equal(t, []string{"/rec aapl"}, got)
	assert.Equal(t, []string{"reply to /rec aapl"}, replies)
}
