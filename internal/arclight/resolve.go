package arclight

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// GuestName is the display name of an address without an identity record.
const GuestName = "Guest"

// IdentityKind distinguishes addresses with a published name from guests.
type IdentityKind int

const (
	IdentityGuest IdentityKind = iota
	IdentityNamed
)

func (k IdentityKind) String() string {
	if k == IdentityNamed {
		return "named"
	}
	return "guest"
}

// Identity is the resolved display identity of an address.
type Identity struct {
	Kind        IdentityKind
	DisplayName string
}

// Guest returns the identity of an address with no name record.
func Guest() Identity {
	return Identity{Kind: IdentityGuest, DisplayName: GuestName}
}

// ProfileField is one independently published scalar profile attribute.
type ProfileField string

const (
	FieldLocation     ProfileField = "location"
	FieldWebsite      ProfileField = "website"
	FieldIntroduction ProfileField = "introduction"
	FieldNeteaseID    ProfileField = "neteaseid"
	FieldSoundcloudID ProfileField = "soundcloudid"
	FieldBandcampID   ProfileField = "bandcampid"
)

// ProfileFields lists every scalar profile field.
var ProfileFields = []ProfileField{
	FieldLocation, FieldWebsite, FieldIntroduction,
	FieldNeteaseID, FieldSoundcloudID, FieldBandcampID,
}

// ParseProfileField validates s against the known profile fields.
func ParseProfileField(s string) (ProfileField, error) {
	f := ProfileField(s)
	if err := f.Kind().Validate(); err != nil {
		return "", err
	}
	return f, nil
}

// Kind is the record kind the field is stored under.
func (f ProfileField) Kind() Kind {
	return Kind("profile-" + string(f))
}

// Profile is the reduced view of every per-address profile record.
type Profile struct {
	Address      Address
	Identity     Identity
	Avatar       []byte
	HasAvatar    bool
	Location     string
	Website      string
	Introduction string
	NeteaseID    string
	SoundcloudID string
	BandcampID   string
}

func (p *Profile) set(f ProfileField, v string) {
	switch f {
	case FieldLocation:
		p.Location = v
	case FieldWebsite:
		p.Website = v
	case FieldIntroduction:
		p.Introduction = v
	case FieldNeteaseID:
		p.NeteaseID = v
	case FieldSoundcloudID:
		p.SoundcloudID = v
	case FieldBandcampID:
		p.BandcampID = v
	}
}

// Resolver reduces tag queries against the ledger to single logical values.
// Misses resolve to defaults; only ledger failures are returned as errors.
type Resolver struct {
	ledger     Ledger
	namespaces Namespaces
	logger     Logger
}

// NewResolver creates a Resolver reading the given namespaces.
func NewResolver(ledger Ledger, namespaces Namespaces, logger Logger) *Resolver {
	return &Resolver{ledger: ledger, namespaces: namespaces, logger: logger}
}

// ResolveIdentity returns the latest name published by address, or the guest
// identity when there is none.
func (r *Resolver) ResolveIdentity(ctx context.Context, address Address) (Identity, error) {
	q, err := r.namespaces.OwnedKindQuery(address, KindName)
	if err != nil {
		return Identity{}, err
	}
	meta, err := r.latest(ctx, q, func(m *RecordMeta) bool {
		return m.Tags.Value(TagType) == string(KindName)
	})
	if err != nil {
		return Identity{}, fmt.Errorf("resolving identity of %s: %w", address, err)
	}
	if meta == nil {
		return Guest(), nil
	}

	data, err := r.ledger.FetchRecordData(ctx, meta.ID)
	if err != nil {
		return Identity{}, fmt.Errorf("fetching name record %s: %w", meta.ID, err)
	}
	name := string(bytes.TrimSpace(data))
	if name == "" {
		return Guest(), nil
	}
	return Identity{Kind: IdentityNamed, DisplayName: name}, nil
}

// ResolveAvatar returns the latest avatar of address. found is false when the
// address never published one.
func (r *Resolver) ResolveAvatar(ctx context.Context, address Address) (data []byte, found bool, err error) {
	meta, err := r.latestAvatar(ctx, address)
	if err != nil {
		return nil, false, err
	}
	if meta == nil {
		return nil, false, nil
	}
	data, err = r.ledger.FetchRecordData(ctx, meta.ID)
	if err != nil {
		return nil, false, fmt.Errorf("fetching avatar record %s: %w", meta.ID, err)
	}
	return data, true, nil
}

// ResolveAvatarMedia is ResolveAvatar plus the avatar's content type.
func (r *Resolver) ResolveAvatarMedia(ctx context.Context, address Address) (*Media, bool, error) {
	meta, err := r.latestAvatar(ctx, address)
	if err != nil || meta == nil {
		return nil, false, err
	}
	data, err := r.ledger.FetchRecordData(ctx, meta.ID)
	if err != nil {
		return nil, false, fmt.Errorf("fetching avatar record %s: %w", meta.ID, err)
	}
	return &Media{Data: data, ContentType: meta.Tags.Value(TagContentType)}, true, nil
}

func (r *Resolver) latestAvatar(ctx context.Context, address Address) (*RecordMeta, error) {
	q := And(From(address), Or(
		Equals(TagAppName, r.namespaces.Avatar),
		Equals(TagType, string(KindAvatar)),
	))
	meta, err := r.latest(ctx, q, nil)
	if err != nil {
		return nil, fmt.Errorf("resolving avatar of %s: %w", address, err)
	}
	return meta, nil
}

// ResolveProfileField returns the latest value of one profile field, or ""
// when it was never set.
func (r *Resolver) ResolveProfileField(ctx context.Context, address Address, field ProfileField) (string, error) {
	q, err := r.namespaces.OwnedKindQuery(address, field.Kind())
	if err != nil {
		return "", err
	}
	meta, err := r.latest(ctx, q, nil)
	if err != nil {
		return "", fmt.Errorf("resolving %s of %s: %w", field, address, err)
	}
	if meta == nil {
		return "", nil
	}
	data, err := r.ledger.FetchRecordData(ctx, meta.ID)
	if err != nil {
		return "", fmt.Errorf("fetching %s record %s: %w", field, meta.ID, err)
	}
	return string(data), nil
}

// ResolveProfile resolves identity, avatar and every profile field. Each
// part is resolved independently; when some fail the returned profile still
// carries every part that succeeded, alongside the joined errors.
func (r *Resolver) ResolveProfile(ctx context.Context, address Address) (*Profile, error) {
	profile := &Profile{Address: address, Identity: Guest()}

	var (
		mu   sync.Mutex
		errs []error
	)
	fail := func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}

	var g errgroup.Group
	g.SetLimit(4)
	g.Go(func() error {
		id, err := r.ResolveIdentity(ctx, address)
		if err != nil {
			fail(err)
			return nil
		}
		mu.Lock()
		profile.Identity = id
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		data, found, err := r.ResolveAvatar(ctx, address)
		if err != nil {
			fail(err)
			return nil
		}
		mu.Lock()
		profile.Avatar, profile.HasAvatar = data, found
		mu.Unlock()
		return nil
	})
	for _, field := range ProfileFields {
		g.Go(func() error {
			v, err := r.ResolveProfileField(ctx, address, field)
			if err != nil {
				fail(err)
				return nil
			}
			mu.Lock()
			profile.set(field, v)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if len(errs) > 0 {
		r.logger.Warn("profile resolved partially", "address", address, "failures", len(errs))
		return profile, errors.Join(errs...)
	}
	return profile, nil
}

// ResolvePostIndex returns the author's post index, oldest entry first. An
// author who never published has an empty index.
func (r *Resolver) ResolvePostIndex(ctx context.Context, address Address) ([]PostEntry, error) {
	head, err := r.postIndexHead(ctx, address)
	if err != nil {
		return nil, err
	}
	return head.entries, nil
}

type postIndexHead struct {
	meta    *RecordMeta // nil when the author has no index yet
	entries []PostEntry
}

func (h *postIndexHead) id() RecordID { return currentID(h.meta) }

// postIndexHead loads the latest index record, returning an empty head when
// there is none.
func (r *Resolver) postIndexHead(ctx context.Context, address Address) (*postIndexHead, error) {
	meta, err := r.latestPostIndex(ctx, address)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return &postIndexHead{entries: []PostEntry{}}, nil
	}
	data, err := r.ledger.FetchRecordData(ctx, meta.ID)
	if err != nil {
		return nil, fmt.Errorf("fetching post index %s: %w", meta.ID, err)
	}
	entries, err := DecodePostIndex(data)
	if err != nil {
		return nil, fmt.Errorf("post index %s: %w", meta.ID, err)
	}
	return &postIndexHead{meta: meta, entries: entries}, nil
}

// head returns the record of kind that address's readers currently resolve,
// or nil when there is none.
func (r *Resolver) head(ctx context.Context, address Address, kind Kind) (*RecordMeta, error) {
	switch kind {
	case KindAvatar:
		return r.latestAvatar(ctx, address)
	case KindPostInfo:
		return r.latestPostIndex(ctx, address)
	}
	q, err := r.namespaces.OwnedKindQuery(address, kind)
	if err != nil {
		return nil, err
	}
	meta, err := r.latest(ctx, q, nil)
	if err != nil {
		return nil, fmt.Errorf("resolving %s of %s: %w", kind, address, err)
	}
	return meta, nil
}

func (r *Resolver) latestPostIndex(ctx context.Context, address Address) (*RecordMeta, error) {
	q, err := r.namespaces.OwnedKindQuery(address, KindPostInfo)
	if err != nil {
		return nil, err
	}
	meta, err := r.latest(ctx, q, nil)
	if err != nil {
		return nil, fmt.Errorf("resolving post index of %s: %w", address, err)
	}
	return meta, nil
}

// ResolveReleaseList returns the info record ids of every release of kind.
// A non-empty genre narrows the list; podcasts are narrowed by category.
func (r *Resolver) ResolveReleaseList(ctx context.Context, kind ReleaseKind, genre string) ([]RecordID, error) {
	d, err := Descriptor(kind)
	if err != nil {
		return nil, err
	}
	q, err := r.namespaces.KindQuery(d.InfoKind)
	if err != nil {
		return nil, err
	}
	if genre != "" {
		key := TagGenre
		if kind == ReleasePodcast {
			key = TagCategory
		}
		q = And(q, Equals(key, genre))
	}

	ids, err := r.ledger.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("listing %s releases: %w", kind, err)
	}
	if ids == nil {
		ids = []RecordID{}
	}
	return ids, nil
}

// FetchRelease loads and decodes an info record of any release kind.
func (r *Resolver) FetchRelease(ctx context.Context, infoID RecordID) (*ReleaseInfo, error) {
	meta, err := r.ledger.FetchRecord(ctx, infoID)
	if err != nil {
		return nil, fmt.Errorf("fetching release %s: %w", infoID, err)
	}
	kind, err := meta.Tags.Kind()
	if err != nil {
		return nil, fmt.Errorf("release %s: %w", infoID, err)
	}
	releaseKind, err := ReleaseKindForInfo(kind)
	if err != nil {
		return nil, fmt.Errorf("release %s: %w", infoID, err)
	}
	data, err := r.ledger.FetchRecordData(ctx, infoID)
	if err != nil {
		return nil, fmt.Errorf("fetching release %s data: %w", infoID, err)
	}
	info, err := DecodeReleaseInfo(releaseKind, data)
	if err != nil {
		return nil, fmt.Errorf("release %s: %w", infoID, err)
	}
	info.ID = infoID
	info.Author = meta.Owner
	return info, nil
}

// FetchCover returns a cover image with its content type.
func (r *Resolver) FetchCover(ctx context.Context, id RecordID) (*Media, error) {
	return r.fetchMedia(ctx, id, nil)
}

// FetchMedia returns a media payload decrypted with dec.
func (r *Resolver) FetchMedia(ctx context.Context, id RecordID, dec DecryptionContext) (*Media, error) {
	if dec == nil {
		return nil, fmt.Errorf("fetching media %s: no decryption context", id)
	}
	return r.fetchMedia(ctx, id, dec)
}

func (r *Resolver) fetchMedia(ctx context.Context, id RecordID, dec DecryptionContext) (*Media, error) {
	meta, err := r.ledger.FetchRecord(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetching record %s: %w", id, err)
	}
	data, err := r.ledger.FetchRecordData(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetching record %s data: %w", id, err)
	}
	if dec != nil {
		var plain bytes.Buffer
		if err := dec.Decrypt(bytes.NewReader(data), &plain); err != nil {
			return nil, fmt.Errorf("decrypting record %s: %w", id, err)
		}
		data = plain.Bytes()
	}
	return &Media{Data: data, ContentType: meta.Tags.Value(TagContentType)}, nil
}

// latest runs q and picks the most recent matching record: the highest
// Unix-Time tag wins and ties go to the greatest record id. keep, when set,
// filters candidates after their tags are fetched. Candidates the ledger has
// indexed but cannot serve yet are skipped.
func (r *Resolver) latest(ctx context.Context, q *Predicate, keep func(*RecordMeta) bool) (*RecordMeta, error) {
	ids, err := r.ledger.Query(ctx, q)
	if err != nil {
		return nil, err
	}

	var best *RecordMeta
	for _, id := range ids {
		meta, err := r.ledger.FetchRecord(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				r.logger.Debug("skipping unavailable candidate", "id", id)
				continue
			}
			return nil, err
		}
		if keep != nil && !keep(meta) {
			continue
		}
		if best == nil || newer(meta, best) {
			best = meta
		}
	}
	return best, nil
}

func newer(a, b *RecordMeta) bool {
	at, bt := a.Tags.UnixTime(), b.Tags.UnixTime()
	if at != bt {
		return at > bt
	}
	return a.ID > b.ID
}
