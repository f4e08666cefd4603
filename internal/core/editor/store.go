// Package editor owns one post's full editing session: it composes the
// media pipeline, the text buffer, autocomplete and posting behind the
// operations a UI would call, and manages follow-up stores for threads.
//
// All session state is guarded by a single mutex so per-container
// transitions are linearized; uploads and refresh polls run off that lock
// and apply their results through it. A result arriving for a removed
// container id is a no-op.
package editor

import (
	"context"
	"fmt"
	"log"
	"sync"

	"golang.org/x/sync/semaphore"

	"Perch/internal/client"
	"Perch/internal/core/autocomplete"
	"Perch/internal/core/drafts"
	"Perch/internal/core/media"
	"Perch/internal/core/posting"
	textpkg "Perch/internal/core/text"
)

// Deps are the collaborators injected into a store. Autocomplete and
// Drafts are optional and may be nil.
type Deps struct {
	Media        client.MediaClient
	Uploader     media.UploadService
	Refresher    *media.Refresher
	Ingestion    *media.IngestionService
	Posting      posting.Service
	Autocomplete *autocomplete.Service
	Drafts       *drafts.Store

	Policy         media.Policy
	RefreshCfg     media.RefreshConfig
	ServerMaxChars int
}

// Store is the orchestrator for one editing session.
type Store struct {
	deps Deps
	mode Mode

	// sem caps concurrently running uploads at Policy.MaxConcurrentUploads
	sem *semaphore.Weighted

	mu          sync.Mutex
	text        *textpkg.State
	containers  []*media.Container
	cancels     map[string]context.CancelFunc
	altTexts    map[string]string
	poll        *posting.PollSpec
	spoiler     string
	visibility  client.Visibility
	language    string
	suggestions autocomplete.Result
	followUps   []*Store
	uploads     sync.WaitGroup
}

// NewStore creates a session store seeded from mode.
func NewStore(deps Deps, mode Mode) *Store {
	if deps.ServerMaxChars <= 0 {
		deps.ServerMaxChars = 500
	}
	workers := deps.Policy.MaxConcurrentUploads
	if workers <= 0 {
		workers = media.DefaultPolicy().MaxConcurrentUploads
	}
	s := &Store{
		deps:       deps,
		mode:       mode,
		sem:        semaphore.NewWeighted(int64(workers)),
		text:       textpkg.NewState(),
		cancels:    make(map[string]context.CancelFunc),
		altTexts:   make(map[string]string),
		visibility: mode.Visibility,
	}
	s.seed()
	return s
}

// seed applies the mode's initial state. Modes that need network work
// (ShareExtension, ImageURL) finish seeding in Prepare.
func (s *Store) seed() {
	switch s.mode.Kind {
	case ModeReplyTo:
		s.text.SeedMention(replyPrefix(s.mode.Status))

	case ModeMention:
		s.text.SeedMention(s.mode.Account.Acct)

	case ModeEdit:
		status := s.mode.Status
		s.text.SetText(status.Content)
		s.spoiler = status.SpoilerText
		if status.Language != nil {
			s.language = *status.Language
		}
		for _, att := range status.MediaAttachments {
			s.containers = append(s.containers, media.RestoreUploaded(att))
		}
		if status.Poll != nil {
			spec := &posting.PollSpec{Multiple: status.Poll.Multiple}
			for _, opt := range status.Poll.Options {
				spec.Options = append(spec.Options, opt.Title)
			}
			s.poll = spec
		}

	case ModeQuote:
		s.text.SetText("\n\n" + s.mode.Status.URI)
		s.text.SetCursor(0)

	case ModeQuoteLink:
		s.text.SetText("\n\n" + s.mode.URL)
		s.text.SetCursor(0)

	case ModeImageURL:
		if s.mode.Caption != "" {
			s.text.SetText(s.mode.Caption)
		}
	}
}

// replyPrefix builds the mention string for a reply: the author first,
// then the other accounts mentioned in the parent.
func replyPrefix(status *client.Status) string {
	prefix := status.Account.Acct
	for _, m := range status.Mentions {
		if m.Acct == status.Account.Acct {
			continue
		}
		prefix += " @" + m.Acct
	}
	return prefix
}

// Prepare finishes seeding for modes that ingest external inputs, creating
// pending containers and initial text. Safe to call for every mode; it is
// a no-op where nothing needs ingesting.
func (s *Store) Prepare(ctx context.Context) error {
	var items []media.InputItem
	switch s.mode.Kind {
	case ModeShareExtension:
		items = s.mode.Items
	case ModeImageURL:
		for _, u := range s.mode.ImageURLs {
			items = append(items, media.InputItem{URL: u})
		}
	default:
		return nil
	}

	result := s.deps.Ingestion.Ingest(ctx, items)

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range result.Containers {
		s.containers = append(s.containers, c)
		if s.mode.Kind == ModeImageURL && i < len(s.mode.AltTexts) {
			s.altTexts[c.ID()] = s.mode.AltTexts[i]
		}
	}
	if result.InitialText != "" {
		s.text.Append(result.InitialText)
	}
	if result.HadError {
		return fmt.Errorf("some inputs could not be ingested")
	}
	return nil
}

// Mode returns the session's mode.
func (s *Store) Mode() Mode { return s.mode }

// Text returns the current buffer contents.
func (s *Store) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text.Text()
}

// SetText replaces the buffer and refreshes autocomplete.
func (s *Store) SetText(ctx context.Context, t string) {
	s.mu.Lock()
	s.text.SetText(t)
	s.mu.Unlock()
	s.syncAutocomplete(ctx)
}

// InsertText inserts at the cursor and refreshes autocomplete.
func (s *Store) InsertText(ctx context.Context, t string) {
	s.mu.Lock()
	s.text.InsertAtCursor(t)
	s.mu.Unlock()
	s.syncAutocomplete(ctx)
}

// SetCursor moves the cursor and refreshes autocomplete.
func (s *Store) SetCursor(ctx context.Context, pos int) {
	s.mu.Lock()
	s.text.SetCursor(pos)
	s.mu.Unlock()
	s.syncAutocomplete(ctx)
}

// Spans returns the presentation spans for the buffer.
func (s *Store) Spans() []textpkg.Span {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text.Spans()
}

// Remaining is the displayed remaining character count.
func (s *Store) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text.Remaining(s.deps.ServerMaxChars, s.spoiler)
}

// Suggestions returns the last delivered autocomplete result.
func (s *Store) Suggestions() autocomplete.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.suggestions
}

// ApplySuggestion replaces the active suggestion range with the canonical
// token and clears suggestion state.
func (s *Store) ApplySuggestion(token string) {
	s.mu.Lock()
	s.text.ApplySuggestion(token)
	s.suggestions = autocomplete.Result{Kind: autocomplete.KindNone}
	s.mu.Unlock()
	if s.deps.Autocomplete != nil {
		s.deps.Autocomplete.Cancel()
	}
}

// syncAutocomplete pushes the token under the cursor to the autocomplete
// service. Called without the lock held: synchronous deliveries re-enter
// the store.
func (s *Store) syncAutocomplete(ctx context.Context) {
	if s.deps.Autocomplete == nil {
		return
	}

	s.mu.Lock()
	suggestion := s.text.CurrentSuggestion()
	s.mu.Unlock()

	if suggestion == nil {
		// Cursor moved off any token: clear immediately, no debounce
		s.deps.Autocomplete.Cancel()
		s.mu.Lock()
		s.suggestions = autocomplete.Result{Kind: autocomplete.KindNone}
		s.mu.Unlock()
		return
	}

	s.deps.Autocomplete.QueryChanged(ctx, suggestion.Query, func(r autocomplete.Result) {
		s.mu.Lock()
		s.suggestions = r
		s.mu.Unlock()
	})
}

// Containers returns a snapshot of the session's containers in order.
func (s *Store) Containers() []*media.Container {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*media.Container, len(s.containers))
	copy(out, s.containers)
	return out
}

// AddMedia ingests items into pending containers and starts their uploads.
func (s *Store) AddMedia(ctx context.Context, items []media.InputItem) error {
	result := s.deps.Ingestion.Ingest(ctx, items)

	s.mu.Lock()
	s.containers = append(s.containers, result.Containers...)
	if result.InitialText != "" {
		s.text.Append(result.InitialText)
	}
	s.mu.Unlock()

	for _, c := range result.Containers {
		s.startUpload(ctx, c.ID())
	}
	if result.HadError {
		return fmt.Errorf("some inputs could not be ingested")
	}
	return nil
}

// RemoveMedia deletes a container, cancelling any in-flight upload or
// refresh for its id. Late results for the removed id are discarded.
func (s *Store) RemoveMedia(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cancel, ok := s.cancels[id]; ok {
		cancel()
		delete(s.cancels, id)
	}
	delete(s.altTexts, id)
	for i, c := range s.containers {
		if c.ID() == id {
			s.containers = append(s.containers[:i], s.containers[i+1:]...)
			return
		}
	}
}

// SetAltText records alt text for a container. For uploaded containers the
// description is pushed to the server immediately; for pending ones it
// rides along with the upload.
func (s *Store) SetAltText(ctx context.Context, id, altText string) error {
	s.mu.Lock()
	s.altTexts[id] = altText
	c := s.findLocked(id)
	var attachmentID string
	if c != nil && c.Phase() == media.PhaseUploaded && c.Attachment() != nil {
		attachmentID = c.Attachment().ID
	}
	s.mu.Unlock()

	if c == nil {
		return fmt.Errorf("no container with id %s", id)
	}
	if attachmentID == "" {
		return nil
	}

	updated, err := s.deps.Media.UpdateAttachment(ctx, attachmentID, altText)
	if err != nil {
		return fmt.Errorf("failed to update attachment description: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if c := s.findLocked(id); c != nil {
		if updErr := c.UpdateAttachment(updated); updErr != nil {
			log.Printf("[EDITOR] Warning: could not apply updated attachment for %s: %v", id, updErr)
		}
	}
	return nil
}

// RetryUpload re-enters a failed container into the pipeline.
func (s *Store) RetryUpload(ctx context.Context, id string) error {
	s.mu.Lock()
	c := s.findLocked(id)
	if c == nil {
		s.mu.Unlock()
		return fmt.Errorf("no container with id %s", id)
	}
	if err := c.Retry(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	s.startUpload(ctx, id)
	return nil
}

// StartUploads begins uploading every pending container.
func (s *Store) StartUploads(ctx context.Context) {
	s.mu.Lock()
	var ids []string
	for _, c := range s.containers {
		if c.Phase() == media.PhasePending {
			ids = append(ids, c.ID())
		}
	}
	s.mu.Unlock()

	for _, id := range ids {
		s.startUpload(ctx, id)
	}
}

// WaitForUploads blocks until all in-flight uploads settle.
func (s *Store) WaitForUploads() {
	s.uploads.Wait()
}

// startUpload transitions the container to Uploading and runs the upload
// off the lock, applying results back through it.
func (s *Store) startUpload(ctx context.Context, id string) {
	s.mu.Lock()
	c := s.findLocked(id)
	if c == nil {
		s.mu.Unlock()
		return
	}
	if err := c.BeginUpload(); err != nil {
		s.mu.Unlock()
		log.Printf("[EDITOR] cannot start upload for %s: %v", id, err)
		return
	}
	uploadCtx, cancel := context.WithCancel(ctx)
	s.cancels[id] = cancel
	input := media.UploadInput{ID: id, Content: c.Content(), AltText: s.altTexts[id]}
	s.mu.Unlock()

	s.uploads.Add(1)
	go func() {
		defer s.uploads.Done()
		defer cancel()

		if err := s.sem.Acquire(uploadCtx, 1); err != nil {
			s.applyFailed(id, media.ErrCancelled)
			return
		}
		result, err := s.deps.Uploader.Upload(uploadCtx, input, s.deps.Policy, func(f float64) {
			s.applyProgress(id, f)
		})
		s.sem.Release(1)
		if err != nil {
			s.applyFailed(id, err)
			return
		}
		s.applyUploaded(uploadCtx, id, result)

		if result.NeedsRefresh && s.deps.Refresher != nil {
			att, refreshErr := s.deps.Refresher.AwaitURL(uploadCtx, result.Attachment.ID, s.deps.RefreshCfg)
			if refreshErr != nil {
				log.Printf("[EDITOR] attachment refresh for %s gave up: %v", id, refreshErr)
				return
			}
			s.applyAttachment(id, att)
		}
	}()
}

// applyProgress patches progress for a live container; removed ids no-op.
func (s *Store) applyProgress(id string, f float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c := s.findLocked(id); c != nil {
		_ = c.SetProgress(f)
	}
}

// applyUploaded marks the container Uploaded and pushes alt text that was
// recorded while the upload was in flight, so a description set mid-upload
// is not lost.
func (s *Store) applyUploaded(ctx context.Context, id string, result *media.UploadResult) {
	s.mu.Lock()
	c := s.findLocked(id)
	if c == nil {
		s.mu.Unlock()
		return
	}
	if err := c.MarkUploaded(result.Attachment); err != nil {
		log.Printf("[EDITOR] dropping late upload result for %s: %v", id, err)
		s.mu.Unlock()
		return
	}
	alt := s.altTexts[id]
	attachmentID := result.Attachment.ID
	pending := alt != "" && alt != result.Attachment.AltText()
	s.mu.Unlock()

	if !pending {
		return
	}
	updated, err := s.deps.Media.UpdateAttachment(ctx, attachmentID, alt)
	if err != nil {
		log.Printf("[EDITOR] Warning: could not attach description for %s: %v", id, err)
		return
	}
	s.applyAttachment(id, updated)
}

func (s *Store) applyFailed(id string, cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c := s.findLocked(id); c != nil {
		if err := c.MarkFailed(cause); err != nil {
			log.Printf("[EDITOR] dropping late upload failure for %s: %v", id, err)
		}
	}
}

func (s *Store) applyAttachment(id string, att *client.Attachment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c := s.findLocked(id); c != nil {
		_ = c.UpdateAttachment(att)
	}
}

func (s *Store) findLocked(id string) *media.Container {
	for _, c := range s.containers {
		if c.ID() == id {
			return c
		}
	}
	return nil
}

// SetPoll attaches a poll to the session.
func (s *Store) SetPoll(spec *posting.PollSpec) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.poll = spec
}

// SetSpoiler sets the content warning text.
func (s *Store) SetSpoiler(spoiler string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spoiler = spoiler
}

// SetVisibility sets the post visibility.
func (s *Store) SetVisibility(v client.Visibility) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visibility = v
}

// SetLanguage sets the language tag for the post.
func (s *Store) SetLanguage(lang string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.language = lang
}

// AddFollowUp appends a thread follow-up session. Visibility and language
// propagate one way from this store at creation; the reply target is
// assigned only after the parent posts.
func (s *Store) AddFollowUp() *Store {
	s.mu.Lock()
	defer s.mu.Unlock()

	follow := NewStore(s.deps, NewMode(s.visibility))
	follow.language = s.language
	s.followUps = append(s.followUps, follow)
	return follow
}

// FollowUps returns the thread follow-up stores in order.
func (s *Store) FollowUps() []*Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Store, len(s.followUps))
	copy(out, s.followUps)
	return out
}

// RemoveFollowUp deletes a follow-up store from the thread.
func (s *Store) RemoveFollowUp(follow *Store) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, f := range s.followUps {
		if f == follow {
			s.followUps = append(s.followUps[:i], s.followUps[i+1:]...)
			return
		}
	}
}

// buildSubmission assembles this session's submission under the lock.
func (s *Store) buildSubmission() *posting.Submission {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub := &posting.Submission{
		Text:            s.text.Text(),
		Visibility:      s.visibility,
		SpoilerText:     s.spoiler,
		Language:        s.language,
		Containers:      append([]*media.Container{}, s.containers...),
		Poll:            s.poll,
		RequiresAltText: s.deps.Policy.RequiresAltText,
	}

	switch s.mode.Kind {
	case ModeReplyTo:
		sub.InReplyToID = s.mode.Status.ID
	case ModeEdit:
		sub.EditStatusID = s.mode.Status.ID
		sub.MediaAttributes = s.mediaAttributesLocked()
	}

	return sub
}

// mediaAttributesLocked builds per-media overrides for alt text changed on
// attachments that were already uploaded when the edit session opened.
func (s *Store) mediaAttributesLocked() []client.MediaAttribute {
	var attrs []client.MediaAttribute
	for _, c := range s.containers {
		att := c.Attachment()
		if att == nil {
			continue
		}
		if alt, ok := s.altTexts[c.ID()]; ok && alt != att.AltText() {
			desc := alt
			attrs = append(attrs, client.MediaAttribute{ID: att.ID, Description: &desc})
		}
	}
	return attrs
}

// Submit posts this single session.
func (s *Store) Submit(ctx context.Context) (*client.Status, error) {
	status, err := s.deps.Posting.Submit(ctx, s.buildSubmission())
	if err != nil {
		s.saveDraft()
		return nil, err
	}
	return status, nil
}

// SubmitAll posts the session and its follow-ups as a thread: strictly
// sequential, each follow-up replying to the previous result. On failure
// the chain stops, already-posted sessions stay live, and the unsent
// sessions' text is preserved as drafts.
func (s *Store) SubmitAll(ctx context.Context) ([]*client.Status, error) {
	s.mu.Lock()
	stores := append([]*Store{s}, s.followUps...)
	s.mu.Unlock()

	subs := make([]*posting.Submission, len(stores))
	for i, st := range stores {
		subs[i] = st.buildSubmission()
	}

	posted, err := s.deps.Posting.SubmitThread(ctx, subs)
	if err != nil {
		for i := len(posted); i < len(stores); i++ {
			stores[i].saveDraft()
		}
		return posted, err
	}
	return posted, nil
}

// saveDraft preserves the session text after a failed submission so it is
// recoverable. Best effort: a draft failure only logs.
func (s *Store) saveDraft() {
	if s.deps.Drafts == nil {
		return
	}

	s.mu.Lock()
	draft := drafts.Draft{
		Text:        s.text.Text(),
		SpoilerText: s.spoiler,
		Visibility:  s.visibility,
		Language:    s.language,
	}
	if s.mode.Kind == ModeReplyTo {
		draft.InReplyToID = s.mode.Status.ID
	}
	s.mu.Unlock()

	if textpkg.TrimForSubmission(draft.Text) == "" {
		return
	}
	if id, err := s.deps.Drafts.Save(draft); err != nil {
		log.Printf("[EDITOR] Warning: failed to save draft: %v", err)
	} else {
		log.Printf("[EDITOR] saved unsent post as draft %s", id)
	}
}
