// Package text manages the rich-text status buffer: token scanning for
// hashtags, mentions and links, URL length normalization for character
// counting, and autocomplete suggestion range detection under the cursor.
//
// The buffer itself is plain text; scanning produces presentation spans
// without ever mutating the characters. Offsets are rune indices.
package text

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/rivo/uniseg"
)

// FixedURLLength is the server-normalized character cost of a link: every
// URL counts as this many characters regardless of its actual length,
// matching server-side link shortening semantics.
const FixedURLLength = 23

// Token classes scanned on every edit. Post bodies are short (~1000 chars)
// so a full rescan per edit is fine.
var (
	hashtagPattern = regexp.MustCompile(`#\w+`)
	mentionPattern = regexp.MustCompile(`@[\w.-]+`)
	urlPattern     = regexp.MustCompile(`https?://\S+`)
)

// SpanKind classifies a scanned token.
type SpanKind int

const (
	SpanHashtag SpanKind = iota
	SpanMention
	SpanLink
)

func (k SpanKind) String() string {
	switch k {
	case SpanHashtag:
		return "hashtag"
	case SpanMention:
		return "mention"
	case SpanLink:
		return "link"
	default:
		return "unknown"
	}
}

// Span is a highlighted token range over the buffer, in rune offsets.
type Span struct {
	Kind  SpanKind
	Start int
	End   int
	Text  string
}

// Suggestion is the token under the cursor eligible for autocomplete.
// Query includes the leading '#' or '@'.
type Suggestion struct {
	Kind  SpanKind
	Start int
	End   int
	Query string
}

// State is the mutable rich-text buffer for one editing session. It is not
// internally locked; the owning editor store serializes access.
type State struct {
	buffer         []rune
	cursor         int
	mentionPrefix  string
	spans          []Span
	suggestion     *Suggestion
	urlAdjustments int
	backup         *string
}

// NewState creates an empty buffer.
func NewState() *State {
	return &State{}
}

// Text returns the current buffer contents.
func (s *State) Text() string {
	return string(s.buffer)
}

// Cursor returns the cursor position in rune offsets.
func (s *State) Cursor() int {
	return s.cursor
}

// MentionPrefix returns the reply prefix to preserve, if any.
func (s *State) MentionPrefix() string {
	return s.mentionPrefix
}

// SetText replaces the whole buffer and moves the cursor to the end.
func (s *State) SetText(text string) {
	s.buffer = []rune(text)
	s.cursor = len(s.buffer)
	s.rescan()
}

// SeedMention initializes the buffer with a reply prefix ("@acct ") that
// the session should preserve, cursor after the prefix.
func (s *State) SeedMention(acct string) {
	prefix := "@" + acct + " "
	s.mentionPrefix = prefix
	s.buffer = []rune(prefix)
	s.cursor = len(s.buffer)
	s.rescan()
}

// SetCursor moves the cursor, clamped into the buffer, and re-evaluates
// the suggestion range.
func (s *State) SetCursor(pos int) {
	if pos < 0 {
		pos = 0
	}
	if pos > len(s.buffer) {
		pos = len(s.buffer)
	}
	s.cursor = pos
	s.detectSuggestion()
}

// InsertAtCursor inserts text at the cursor and advances it.
func (s *State) InsertAtCursor(text string) {
	insert := []rune(text)
	s.buffer = append(s.buffer[:s.cursor], append(insert, s.buffer[s.cursor:]...)...)
	s.cursor += len(insert)
	s.rescan()
}

// Append adds text at the end of the buffer without moving the cursor past
// existing edits, used for quote links and share-sheet seeding.
func (s *State) Append(text string) {
	s.buffer = append(s.buffer, []rune(text)...)
	s.cursor = len(s.buffer)
	s.rescan()
}

// ReplaceRange replaces the rune range [start, end) with text and places
// the cursor after the replacement.
func (s *State) ReplaceRange(start, end int, text string) {
	if start < 0 {
		start = 0
	}
	if end > len(s.buffer) {
		end = len(s.buffer)
	}
	if start > end {
		start = end
	}
	replacement := []rune(text)
	rest := append([]rune{}, s.buffer[end:]...)
	s.buffer = append(s.buffer[:start], append(replacement, rest...)...)
	s.cursor = start + len(replacement)
	s.rescan()
}

// Spans returns the presentation spans from the last scan.
func (s *State) Spans() []Span {
	return s.spans
}

// URLLengthAdjustments is the total saving from URL normalization:
// sum(actual URL length) - FixedURLLength * count.
func (s *State) URLLengthAdjustments() int {
	return s.urlAdjustments
}

// CurrentSuggestion returns the autocomplete candidate token under the
// cursor, or nil if the cursor is not on a hashtag or mention.
func (s *State) CurrentSuggestion() *Suggestion {
	return s.suggestion
}

// ApplySuggestion replaces exactly the current suggestion range with the
// canonical token plus a trailing space and clears suggestion state.
// No-op when there is no active suggestion.
func (s *State) ApplySuggestion(token string) {
	if s.suggestion == nil {
		return
	}
	start, end := s.suggestion.Start, s.suggestion.End
	s.ReplaceRange(start, end, token+" ")
	s.suggestion = nil
}

// Remaining computes the displayed remaining character count against
// serverMax, counting grapheme clusters and crediting back the URL
// normalization adjustment.
func (s *State) Remaining(serverMax int, spoiler string) int {
	used := uniseg.GraphemeClusterCount(string(s.buffer))
	if spoiler != "" {
		used += uniseg.GraphemeClusterCount(spoiler)
	}
	return serverMax - used + s.urlAdjustments
}

// Backup snapshots the buffer so a destructive rewrite can be undone.
func (s *State) Backup() {
	text := string(s.buffer)
	s.backup = &text
}

// HasBackup reports whether a pre-rewrite snapshot exists.
func (s *State) HasBackup() bool {
	return s.backup != nil
}

// RestoreBackup restores the snapshotted buffer and clears it. No-op when
// no backup exists.
func (s *State) RestoreBackup() {
	if s.backup == nil {
		return
	}
	s.SetText(*s.backup)
	s.backup = nil
}

// rescan rebuilds spans, URL adjustments and the suggestion range from the
// full buffer.
func (s *State) rescan() {
	text := string(s.buffer)
	s.spans = s.spans[:0]
	s.urlAdjustments = 0

	// Links first so hashtag/mention patterns can't claim URL fragments
	linkRanges := make([][2]int, 0, 2)
	for _, m := range urlPattern.FindAllStringIndex(text, -1) {
		start, end := runeOffset(text, m[0]), runeOffset(text, m[1])
		linkRanges = append(linkRanges, [2]int{start, end})
		url := text[m[0]:m[1]]
		s.spans = append(s.spans, Span{Kind: SpanLink, Start: start, End: end, Text: url})
		s.urlAdjustments += utf8.RuneCountInString(url) - FixedURLLength
	}

	for _, m := range hashtagPattern.FindAllStringIndex(text, -1) {
		start, end := runeOffset(text, m[0]), runeOffset(text, m[1])
		if overlapsAny(start, end, linkRanges) {
			continue
		}
		s.spans = append(s.spans, Span{Kind: SpanHashtag, Start: start, End: end, Text: text[m[0]:m[1]]})
	}

	for _, m := range mentionPattern.FindAllStringIndex(text, -1) {
		start, end := runeOffset(text, m[0]), runeOffset(text, m[1])
		if overlapsAny(start, end, linkRanges) {
			continue
		}
		s.spans = append(s.spans, Span{Kind: SpanMention, Start: start, End: end, Text: text[m[0]:m[1]]})
	}

	s.detectSuggestion()
}

// detectSuggestion finds a hashtag or mention token the cursor sits inside
// or immediately after. Moving off any token clears the suggestion.
func (s *State) detectSuggestion() {
	for i := range s.spans {
		span := s.spans[i]
		if span.Kind == SpanLink {
			continue
		}
		if span.Start < s.cursor && s.cursor <= span.End {
			s.suggestion = &Suggestion{
				Kind:  span.Kind,
				Start: span.Start,
				End:   span.End,
				Query: span.Text,
			}
			return
		}
	}
	s.suggestion = nil
}

// runeOffset converts a byte offset into a rune offset.
func runeOffset(text string, byteOffset int) int {
	return utf8.RuneCountInString(text[:byteOffset])
}

func overlapsAny(start, end int, ranges [][2]int) bool {
	for _, r := range ranges {
		if start < r[1] && end > r[0] {
			return true
		}
	}
	return false
}

// TrimForSubmission normalizes the buffer for the outgoing payload.
func TrimForSubmission(text string) string {
	return strings.TrimSpace(text)
}
