package editor

import (
	"Perch/internal/client"
	"Perch/internal/core/media"
)

// ModeKind discriminates how an editing session starts and where it
// submits.
type ModeKind int

const (
	ModeNew ModeKind = iota
	ModeReplyTo
	ModeEdit
	ModeQuote
	ModeQuoteLink
	ModeMention
	ModeShareExtension
	ModeImageURL
)

func (k ModeKind) String() string {
	switch k {
	case ModeNew:
		return "new"
	case ModeReplyTo:
		return "replyTo"
	case ModeEdit:
		return "edit"
	case ModeQuote:
		return "quote"
	case ModeQuoteLink:
		return "quoteLink"
	case ModeMention:
		return "mention"
	case ModeShareExtension:
		return "shareExtension"
	case ModeImageURL:
		return "imageURL"
	default:
		return "unknown"
	}
}

// Mode drives a session's initial state and submission target. It is
// created once per session and never mutated afterward; only Edit's target
// status id is read again at submit time.
type Mode struct {
	Kind       ModeKind
	Visibility client.Visibility

	// Status is the reply target (ReplyTo), edit target (Edit) or quoted
	// status (Quote).
	Status *client.Status

	// Account is the mention target (Mention).
	Account *client.Account

	// URL is the quoted link (QuoteLink).
	URL string

	// Items are the share-sheet payloads (ShareExtension).
	Items []media.InputItem

	// ImageURLs, Caption and AltTexts seed an image-by-URL session
	// (ImageURL). AltTexts aligns with ImageURLs by index.
	ImageURLs []string
	Caption   string
	AltTexts  []string
}

// NewMode starts a blank session with the given default visibility.
func NewMode(visibility client.Visibility) Mode {
	return Mode{Kind: ModeNew, Visibility: visibility}
}

// ReplyToMode starts a session replying to status.
func ReplyToMode(status *client.Status) Mode {
	return Mode{Kind: ModeReplyTo, Status: status, Visibility: status.Visibility}
}

// EditMode starts a session editing an already-posted status.
func EditMode(status *client.Status) Mode {
	return Mode{Kind: ModeEdit, Status: status, Visibility: status.Visibility}
}

// QuoteMode starts a session quoting status by its URL.
func QuoteMode(status *client.Status) Mode {
	return Mode{Kind: ModeQuote, Status: status, Visibility: status.Visibility}
}

// QuoteLinkMode starts a session quoting an arbitrary URL.
func QuoteLinkMode(url string) Mode {
	return Mode{Kind: ModeQuoteLink, URL: url, Visibility: client.VisibilityPublic}
}

// MentionMode starts a session mentioning account.
func MentionMode(account *client.Account, visibility client.Visibility) Mode {
	return Mode{Kind: ModeMention, Account: account, Visibility: visibility}
}

// ShareExtensionMode starts a session seeded from share-sheet items.
func ShareExtensionMode(items []media.InputItem) Mode {
	return Mode{Kind: ModeShareExtension, Items: items, Visibility: client.VisibilityPublic}
}

// ImageURLMode starts a session seeded from remote image URLs.
func ImageURLMode(urls []string, caption string, altTexts []string, visibility client.Visibility) Mode {
	return Mode{
		Kind:       ModeImageURL,
		ImageURLs:  urls,
		Caption:    caption,
		AltTexts:   altTexts,
		Visibility: visibility,
	}
}
