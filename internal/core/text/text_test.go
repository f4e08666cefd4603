package text

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func spanKinds(spans []Span) []SpanKind {
	kinds := make([]SpanKind, len(spans))
	for i, s := range spans {
		kinds[i] = s.Kind
	}
	return kinds
}

func findSpan(t *testing.T, spans []Span, kind SpanKind, text string) Span {
	t.Helper()
	for _, s := range spans {
		if s.Kind == kind && s.Text == text {
			return s
		}
	}
	t.Fatalf("no %s span with text %q in %v", kind, text, spans)
	return Span{}
}

func TestScan_TokenClasses(t *testing.T) {
	s := NewState()
	s.SetText("try #golang with @maintainer and see https://example.com/docs today")

	spans := s.Spans()
	assert.ElementsMatch(t, []SpanKind{SpanHashtag, SpanMention, SpanLink}, spanKinds(spans))

	tag := findSpan(t, spans, SpanHashtag, "#golang")
	assert.Equal(t, "#golang", string([]rune(s.Text())[tag.Start:tag.End]))

	mention := findSpan(t, spans, SpanMention, "@maintainer")
	assert.Equal(t, "@maintainer", string([]rune(s.Text())[mention.Start:mention.End]))
}

func TestScan_LinksClaimTheirFragments(t *testing.T) {
	s := NewState()
	s.SetText("read https://example.com/#section @not-this-part")

	// The #section fragment belongs to the URL, not a hashtag span; the
	// mention after the URL is still recognized
	for _, span := range s.Spans() {
		if span.Kind == SpanHashtag {
			t.Fatalf("URL fragment misclassified as hashtag: %+v", span)
		}
	}
}

func TestURLLengthAdjustments(t *testing.T) {
	s := NewState()

	// 40-char URL: adjustment = 40 - 23 = 17
	url := "https://example.com/a/very/long/path/xyz"
	require.Len(t, url, 40)
	s.SetText("check " + url)
	assert.Equal(t, 17, s.URLLengthAdjustments())

	// Two URLs accumulate
	s.SetText(url + " and " + url)
	assert.Equal(t, 34, s.URLLengthAdjustments())

	// No URLs, no adjustment
	s.SetText("no links here")
	assert.Equal(t, 0, s.URLLengthAdjustments())
}

func TestRemaining_CountsGraphemesAndNormalizesURLs(t *testing.T) {
	s := NewState()

	url := "https://example.com/a/very/long/path/xyz" // 40 chars, counted as 23
	s.SetText("check " + url)                          // 6 + 40 = 46 raw

	assert.Equal(t, 500-46+17, s.Remaining(500, ""))
	assert.Equal(t, 500-46+17-7, s.Remaining(500, "spoiler"))
}

func TestRemaining_GraphemeClusters(t *testing.T) {
	s := NewState()
	// A family emoji is multiple runes but one displayed character
	s.SetText("hi 👨‍👩‍👧‍👦")
	assert.Equal(t, 500-4, s.Remaining(500, ""))
}

func TestSuggestionDetection(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		cursor    int
		wantQuery string
	}{
		{name: "cursor at end of hashtag", text: "post #gol", cursor: 9, wantQuery: "#gol"},
		{name: "cursor inside hashtag", text: "post #golang now", cursor: 8, wantQuery: "#golang"},
		{name: "cursor at end of mention", text: "hey @ali", cursor: 8, wantQuery: "@ali"},
		{name: "cursor on plain word", text: "plain words", cursor: 5, wantQuery: ""},
		{name: "cursor before token", text: "a #tag", cursor: 1, wantQuery: ""},
		{name: "cursor just past token", text: "#tag done", cursor: 5, wantQuery: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewState()
			s.SetText(tt.text)
			s.SetCursor(tt.cursor)

			suggestion := s.CurrentSuggestion()
			if tt.wantQuery == "" {
				assert.Nil(t, suggestion)
				return
			}
			require.NotNil(t, suggestion)
			assert.Equal(t, tt.wantQuery, suggestion.Query)
		})
	}
}

func TestTypingTriggersSuggestion(t *testing.T) {
	s := NewState()
	s.SetText("hello ")
	s.InsertAtCursor("@")
	assert.Nil(t, s.CurrentSuggestion(), "bare @ is not a token yet")

	s.InsertAtCursor("a")
	require.NotNil(t, s.CurrentSuggestion())
	assert.Equal(t, "@a", s.CurrentSuggestion().Query)

	s.InsertAtCursor("l")
	require.NotNil(t, s.CurrentSuggestion())
	assert.Equal(t, "@al", s.CurrentSuggestion().Query)
}

func TestApplySuggestion(t *testing.T) {
	s := NewState()
	s.SetText("hey @ali")
	require.NotNil(t, s.CurrentSuggestion())

	s.ApplySuggestion("@alice@example.com")
	assert.Equal(t, "hey @alice@example.com ", s.Text())
	assert.Nil(t, s.CurrentSuggestion(), "applying a suggestion clears suggestion state")

	// Applying again is a no-op
	s.ApplySuggestion("@bob")
	assert.Equal(t, "hey @alice@example.com ", s.Text())
}

func TestApplySuggestion_ReplacesExactRange(t *testing.T) {
	s := NewState()
	s.SetText("start #go end")
	s.SetCursor(9) // end of #go

	require.NotNil(t, s.CurrentSuggestion())
	s.ApplySuggestion("#golang")
	assert.Equal(t, "start #golang  end", s.Text())
}

func TestSeedMention(t *testing.T) {
	s := NewState()
	s.SeedMention("friend@example.com")

	assert.Equal(t, "@friend@example.com ", s.Text())
	assert.Equal(t, "@friend@example.com ", s.MentionPrefix())
	assert.Equal(t, len([]rune(s.Text())), s.Cursor())
}

func TestReplaceRange_Bounds(t *testing.T) {
	s := NewState()
	s.SetText("abcdef")

	s.ReplaceRange(2, 4, "XY")
	assert.Equal(t, "abXYef", s.Text())

	// Out-of-range indices are clamped
	s.ReplaceRange(-5, 100, "reset")
	assert.Equal(t, "reset", s.Text())
}

func TestBackupRestore(t *testing.T) {
	s := NewState()
	s.SetText("original thought")
	assert.False(t, s.HasBackup())

	s.Backup()
	assert.True(t, s.HasBackup())

	s.SetText("ai rewrote this entirely")
	s.RestoreBackup()
	assert.Equal(t, "original thought", s.Text())
	assert.False(t, s.HasBackup())

	// Restore without backup is a no-op
	s.SetText("newer text")
	s.RestoreBackup()
	assert.Equal(t, "newer text", s.Text())
}

func TestTrimForSubmission(t *testing.T) {
	assert.Equal(t, "hello", TrimForSubmission("  hello \n"))
	assert.Equal(t, "", TrimForSubmission("   "))
}
