package arclight

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// DefaultIndexAttempts bounds how often a post index append is redone when
// the index changes between read and submit.
const DefaultIndexAttempts = 3

// PublishResult describes a completed release publish.
type PublishResult struct {
	Release ReleaseKind
	Author  Author
	CoverID RecordID
	Media   []TrackRef
	InfoID  RecordID
	IndexID RecordID
	Entry   PostEntry
	Records []SubmittedRecord
	State   State
}

// FieldResult describes a completed single-record update.
type FieldResult struct {
	Kind  Kind
	ID    RecordID
	State State
}

// Publisher writes releases and profile updates as chains of immutable
// records: cover, media, info and post index, each submitted only after the
// records it references are confirmed.
type Publisher struct {
	ledger        Ledger
	resolver      *Resolver
	builder       *Builder
	encryptor     Encryptor
	journal       Journal
	clock         Clock
	ids           IDGenerator
	logger        Logger
	locks         *addressLocks
	indexAttempts int
}

// NewPublisher creates a Publisher. The resolver supplies author identity and
// the current post index. journal may be nil.
func NewPublisher(
	ledger Ledger,
	resolver *Resolver,
	encryptor Encryptor,
	journal Journal,
	namespaces Namespaces,
	clock Clock,
	ids IDGenerator,
	logger Logger,
) *Publisher {
	if journal == nil {
		journal = nopJournal{}
	}
	return &Publisher{
		ledger:        ledger,
		resolver:      resolver,
		builder:       NewBuilder(namespaces, clock),
		encryptor:     encryptor,
		journal:       journal,
		clock:         clock,
		ids:           ids,
		logger:        logger,
		locks:         newAddressLocks(),
		indexAttempts: DefaultIndexAttempts,
	}
}

// Author derives the address of key and resolves its display name.
func (p *Publisher) Author(ctx context.Context, key Key) (Author, error) {
	address, err := p.ledger.DeriveAddress(key)
	if err != nil {
		return Author{}, fmt.Errorf("deriving address: %w", err)
	}
	identity, err := p.resolver.ResolveIdentity(ctx, address)
	if err != nil {
		return Author{}, err
	}
	return Author{Address: address, Username: identity.DisplayName}, nil
}

// run carries the per-operation state of one publish.
type run struct {
	p         *Publisher
	key       Key
	author    Author
	operation string
	obs       Observer
	journalID int64
	state     State
	submitted []SubmittedRecord
	tracks    int
}

func (p *Publisher) start(ctx context.Context, key Key, operation, title string, obs Observer) (*run, error) {
	if obs == nil {
		obs = nopObserver{}
	}
	r := &run{p: p, key: key, operation: operation, obs: obs, state: StateDraft}
	obs.OnEvent(Event{Type: EventReset, Operation: operation})

	author, err := p.Author(ctx, key)
	if err != nil {
		return nil, &PublishError{Operation: operation, Step: StepIdentity, State: StateDraft, Err: err}
	}
	r.author = author

	ref := p.ids.New()
	r.journalID, err = p.journal.BeginOperation(&Operation{
		Ref:       ref,
		Name:      operation,
		Title:     title,
		Address:   author.Address,
		StartedAt: p.clock.Now(),
		State:     StateDraft,
	})
	if err != nil {
		p.logger.Warn("journal begin failed", "operation", operation, "error", err)
		r.journalID = 0
	}
	p.logger.Info("publish started", "operation", operation, "ref", ref, "address", author.Address)
	return r, nil
}

func (r *run) transition(s State) {
	r.state = s
	r.obs.OnEvent(Event{Type: EventState, Operation: r.operation, State: s})
}

// submit hands a finished record to the ledger, reports
// progress and remembers the confirmed id.
func (r *run) submit(ctx context.Context, step Step, track int, kind Kind, rec *UnsignedRecord) (RecordID, error) {
	if err := ctx.Err(); err != nil {
		return "", r.fail(step, track, fmt.Errorf("%w: %w", ErrLedgerUnavailable, err))
	}
	id, err := r.p.ledger.Submit(ctx, rec, r.key, func(pct int) {
		r.obs.OnEvent(Event{
			Type:      EventProgress,
			Operation: r.operation,
			Step:      step,
			State:     r.state,
			Track:     track,
			Tracks:    r.tracks,
			Percent:   pct,
		})
	})
	if err != nil {
		return "", r.fail(step, track, err)
	}

	sub := SubmittedRecord{ID: id, Kind: kind, Step: step, Track: track}
	r.submitted = append(r.submitted, sub)
	if r.journalID != 0 {
		if err := r.p.journal.RecordSubmitted(r.journalID, sub); err != nil {
			r.p.logger.Warn("journal record failed", "id", id, "error", err)
		}
	}
	r.p.logger.Debug("record confirmed", "operation", r.operation, "step", step, "kind", kind, "id", id)
	return id, nil
}

// fail wraps err with the step and everything submitted so far.
func (r *run) fail(step Step, track int, err error) error {
	submitted := make([]SubmittedRecord, len(r.submitted))
	copy(submitted, r.submitted)
	return &PublishError{
		Operation: r.operation,
		Step:      step,
		State:     r.state,
		Track:     track,
		Submitted: submitted,
		Err:       err,
	}
}

func (r *run) finish(err error) {
	var failedStep Step
	var pe *PublishError
	if errors.As(err, &pe) {
		failedStep = pe.Step
	}
	if err != nil {
		r.p.logger.Error("publish failed", "operation", r.operation, "state", r.state, "step", failedStep,
			"confirmed", len(r.submitted), "error", err)
	} else {
		r.p.logger.Info("publish complete", "operation", r.operation, "records", len(r.submitted))
	}
	if r.journalID == 0 {
		return
	}
	if jerr := r.p.journal.FinishOperation(r.journalID, r.state, failedStep, err); jerr != nil {
		r.p.logger.Warn("journal finish failed", "operation", r.operation, "error", jerr)
	}
}

// Publish submits release as cover, media, info and post index records. On
// failure the returned *PublishError names the failed step; records confirmed
// before it stay on the ledger and are listed in the error.
func (p *Publisher) Publish(ctx context.Context, key Key, release *Release, obs Observer) (*PublishResult, error) {
	d, err := Descriptor(release.Kind)
	if err != nil {
		return nil, err
	}
	if err := release.Validate(); err != nil {
		return nil, fmt.Errorf("validating %s: %w", release.Kind, err)
	}

	r, err := p.start(ctx, key, string(release.Kind), release.Title, obs)
	if err != nil {
		return nil, err
	}
	r.tracks = len(release.Tracks)

	result, err := p.publishRelease(ctx, r, d, release)
	r.finish(err)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (p *Publisher) publishRelease(ctx context.Context, r *run, d *ReleaseDescriptor, release *Release) (*PublishResult, error) {
	result := &PublishResult{Release: d.Kind, Author: r.author}

	rec, err := p.builder.Build(release.Cover.Data, d.CoverKind, r.author, A(TagContentType, release.Cover.ContentType))
	if err != nil {
		return nil, r.fail(StepCover, 0, err)
	}
	result.CoverID, err = r.submit(ctx, StepCover, 0, d.CoverKind, rec)
	if err != nil {
		return nil, err
	}
	r.transition(StateCoverSubmitted)

	media := make([]TrackRef, 0, len(release.Tracks))
	for i := range release.Tracks {
		track := &release.Tracks[i]
		number := i + 1
		trackIndex := 0
		if d.MultiTrack {
			trackIndex = number
		}

		var sealed bytes.Buffer
		if err := p.encryptor.Encrypt(bytes.NewReader(track.Media.Data), &sealed); err != nil {
			return nil, r.fail(StepMedia, trackIndex, fmt.Errorf("encrypting media: %w", err))
		}
		rec, err := p.builder.Build(sealed.Bytes(), d.MediaKind, r.author, d.mediaAttrs(release, track, number)...)
		if err != nil {
			return nil, r.fail(StepMedia, trackIndex, err)
		}
		id, err := r.submit(ctx, StepMedia, trackIndex, d.MediaKind, rec)
		if err != nil {
			return nil, err
		}
		title := track.Title
		if title == "" {
			title = release.Title
		}
		media = append(media, TrackRef{ID: id, Title: title, Price: track.Price})
	}
	result.Media = media
	r.transition(StateMediaSubmitted)

	payload, err := json.Marshal(d.infoPayload(release, result.CoverID, media))
	if err != nil {
		return nil, r.fail(StepInfo, 0, fmt.Errorf("encoding info payload: %w", err))
	}
	rec, err = p.builder.Build(payload, d.InfoKind, r.author, d.infoAttrs(release)...)
	if err != nil {
		return nil, r.fail(StepInfo, 0, err)
	}
	result.InfoID, err = r.submit(ctx, StepInfo, 0, d.InfoKind, rec)
	if err != nil {
		return nil, err
	}
	r.transition(StateInfoSubmitted)

	entry := PostEntry{Kind: d.Kind, ID: result.InfoID, Timestamp: unixMillis(p.clock.Now())}
	result.IndexID, err = p.appendPostIndex(ctx, r, entry)
	if err != nil {
		return nil, err
	}
	result.Entry = entry
	r.transition(StateIndexUpdated)

	r.transition(StateComplete)
	result.State = StateComplete
	result.Records = r.submitted
	return result, nil
}

// appendPostIndex appends entry to the author's post index. Appends for one
// address are serialized within this Publisher; before submitting, the index
// head is read again and the append redone if another writer got in first.
func (p *Publisher) appendPostIndex(ctx context.Context, r *run, entry PostEntry) (RecordID, error) {
	unlock := p.locks.lock(r.author.Address)
	defer unlock()

	for attempt := 1; attempt <= p.indexAttempts; attempt++ {
		head, err := p.resolver.postIndexHead(ctx, r.author.Address)
		if err != nil {
			return "", r.fail(StepIndex, 0, err)
		}

		entries := make([]PostEntry, 0, len(head.entries)+1)
		entries = append(entries, head.entries...)
		entries = append(entries, entry)
		payload, err := EncodePostIndex(entries)
		if err != nil {
			return "", r.fail(StepIndex, 0, err)
		}
		rec, err := p.builder.BuildSuccessor(head.meta, payload, KindPostInfo, r.author)
		if err != nil {
			return "", r.fail(StepIndex, 0, err)
		}

		current, err := p.resolver.latestPostIndex(ctx, r.author.Address)
		if err != nil {
			return "", r.fail(StepIndex, 0, err)
		}
		if currentID(current) != head.id() {
			p.logger.Warn("post index moved, retrying append",
				"address", r.author.Address, "attempt", attempt, "read", head.id(), "current", currentID(current))
			continue
		}
		return r.submit(ctx, StepIndex, 0, KindPostInfo, rec)
	}
	return "", r.fail(StepIndex, 0, ErrIndexConflict)
}

func currentID(m *RecordMeta) RecordID {
	if m == nil {
		return ""
	}
	return m.ID
}

// UpdateProfileField publishes a new value for one profile field. The record
// is tagged with the author's username and supersedes earlier values.
func (p *Publisher) UpdateProfileField(ctx context.Context, key Key, field ProfileField, value string, obs Observer) (*FieldResult, error) {
	kind := field.Kind()
	if err := kind.Validate(); err != nil {
		return nil, err
	}
	return p.publishField(ctx, key, kind, []byte(value), obs, func(a Author) []Attr {
		return []Attr{A(TagUsername, a.Username)}
	})
}

// SetUsername publishes a name record in the identity namespace.
func (p *Publisher) SetUsername(ctx context.Context, key Key, name string, obs Observer) (*FieldResult, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: username is empty", ErrInvalidTagValue)
	}
	return p.publishField(ctx, key, KindName, []byte(name), obs, nil)
}

// SetAvatar publishes an avatar image in the identity namespace.
func (p *Publisher) SetAvatar(ctx context.Context, key Key, avatar Media, obs Observer) (*FieldResult, error) {
	if len(avatar.Data) == 0 || avatar.ContentType == "" {
		return nil, fmt.Errorf("avatar requires data and a content type")
	}
	return p.publishField(ctx, key, KindAvatar, avatar.Data, obs, func(Author) []Attr {
		return []Attr{A(TagContentType, avatar.ContentType)}
	})
}

func (p *Publisher) publishField(ctx context.Context, key Key, kind Kind, payload []byte, obs Observer, attrs func(Author) []Attr) (*FieldResult, error) {
	r, err := p.start(ctx, key, string(kind), "", obs)
	if err != nil {
		return nil, err
	}

	var extra []Attr
	if attrs != nil {
		extra = attrs(r.author)
	}
	result, err := func() (*FieldResult, error) {
		unlock := p.locks.lock(r.author.Address)
		defer unlock()

		prev, err := p.resolver.head(ctx, r.author.Address, kind)
		if err != nil {
			return nil, r.fail(StepField, 0, err)
		}
		rec, err := p.builder.BuildSuccessor(prev, payload, kind, r.author, extra...)
		if err != nil {
			return nil, r.fail(StepField, 0, err)
		}
		id, err := r.submit(ctx, StepField, 0, kind, rec)
		if err != nil {
			return nil, err
		}
		r.transition(StateFieldSubmitted)
		r.transition(StateComplete)
		return &FieldResult{Kind: kind, ID: id, State: StateComplete}, nil
	}()
	r.finish(err)
	return result, err
}
