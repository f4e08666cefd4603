package client

import "time"

// Visibility controls who can see a posted status.
type Visibility string

const (
	VisibilityPublic   Visibility = "public"
	VisibilityUnlisted Visibility = "unlisted"
	VisibilityPrivate  Visibility = "private"
	VisibilityDirect   Visibility = "direct"
)

// Attachment represents a media attachment as returned by the server.
// URL is nil while the server is still processing the upload (the v2 media
// endpoint answers 202 with a null url); callers poll GetAttachment until
// it resolves.
type Attachment struct {
	ID          string  `json:"id"`
	Type        string  `json:"type"`
	URL         *string `json:"url"`
	PreviewURL  *string `json:"preview_url,omitempty"`
	Description *string `json:"description,omitempty"`
}

// HasURL reports whether the server has finished processing the attachment.
func (a Attachment) HasURL() bool {
	return a.URL != nil && *a.URL != ""
}

// AltText returns the attachment description, or empty string if unset.
func (a Attachment) AltText() string {
	if a.Description == nil {
		return ""
	}
	return *a.Description
}

// Account represents a user account referenced by mentions and search results.
type Account struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Acct        string `json:"acct"`
	DisplayName string `json:"display_name"`
}

// TagHistory is one day of usage numbers for a hashtag.
type TagHistory struct {
	Day      string `json:"day"`
	Uses     string `json:"uses"`
	Accounts string `json:"accounts"`
}

// Tag represents a hashtag search result.
type Tag struct {
	Name    string       `json:"name"`
	URL     string       `json:"url"`
	History []TagHistory `json:"history,omitempty"`
}

// TotalUses sums the tag's historical usage counts. Used to rank
// autocomplete candidates by popularity.
func (t Tag) TotalUses() int {
	total := 0
	for _, h := range t.History {
		n := 0
		for _, c := range h.Uses {
			if c < '0' || c > '9' {
				n = 0
				break
			}
			n = n*10 + int(c-'0')
		}
		total += n
	}
	return total
}

// PollOption is a single poll choice with its vote count.
type PollOption struct {
	Title      string `json:"title"`
	VotesCount int    `json:"votes_count"`
}

// Poll represents a poll attached to a status.
type Poll struct {
	ID       string       `json:"id"`
	Multiple bool         `json:"multiple"`
	Options  []PollOption `json:"options"`
}

// Status is a posted (or edited) status as returned by the server.
type Status struct {
	ID               string       `json:"id"`
	URI              string       `json:"uri"`
	CreatedAt        time.Time    `json:"created_at"`
	Content          string       `json:"content"`
	Visibility       Visibility   `json:"visibility"`
	SpoilerText      string       `json:"spoiler_text"`
	InReplyToID      *string      `json:"in_reply_to_id,omitempty"`
	Language         *string      `json:"language,omitempty"`
	Account          Account      `json:"account"`
	MediaAttachments []Attachment `json:"media_attachments"`
	Poll             *Poll        `json:"poll,omitempty"`
	Mentions         []Account    `json:"mentions,omitempty"`
}

// PollPayload is the poll section of a status submission.
type PollPayload struct {
	Options    []string `json:"options"`
	ExpiresIn  int      `json:"expires_in"`
	Multiple   bool     `json:"multiple"`
	HideTotals bool     `json:"hide_totals"`
}

// MediaAttribute overrides per-media metadata during a status edit,
// letting alt text be changed on an already-uploaded attachment.
type MediaAttribute struct {
	ID          string  `json:"id"`
	Description *string `json:"description,omitempty"`
}

// StatusPayload is the request body for creating or editing a status.
type StatusPayload struct {
	Status          string           `json:"status"`
	Visibility      Visibility       `json:"visibility"`
	SpoilerText     string           `json:"spoiler_text,omitempty"`
	InReplyToID     *string          `json:"in_reply_to_id,omitempty"`
	MediaIDs        []string         `json:"media_ids,omitempty"`
	Poll            *PollPayload     `json:"poll,omitempty"`
	Language        string           `json:"language,omitempty"`
	MediaAttributes []MediaAttribute `json:"media_attributes,omitempty"`
}
