package arclight

import "fmt"

// Kind is the value of a record's Type tag.
type Kind string

const (
	KindSingleInfo  Kind = "single-info"
	KindSingleCover Kind = "single-cover"
	KindSingleMusic Kind = "single-music"

	KindAlbumInfo  Kind = "album-info"
	KindAlbumCover Kind = "album-cover"
	KindAlbumMusic Kind = "album-music"

	KindPodcastInfo    Kind = "podcast-info"
	KindPodcastCover   Kind = "podcast-cover"
	KindPodcastProgram Kind = "podcast-program"

	KindSoundEffectInfo  Kind = "soundeffect-info"
	KindSoundEffectCover Kind = "soundeffect-cover"
	KindSoundEffectAudio Kind = "soundeffect-audio"

	KindPostInfo Kind = "post-info"

	KindProfileLocation     Kind = "profile-location"
	KindProfileWebsite      Kind = "profile-website"
	KindProfileIntroduction Kind = "profile-introduction"
	KindProfileNeteaseID    Kind = "profile-neteaseid"
	KindProfileSoundcloudID Kind = "profile-soundcloudid"
	KindProfileBandcampID   Kind = "profile-bandcampid"

	// Identity kinds live in the identity namespace rather than the app namespace.
	KindName   Kind = "name"
	KindAvatar Kind = "avatar"
)

var knownKinds = map[Kind]struct{}{
	KindSingleInfo: {}, KindSingleCover: {}, KindSingleMusic: {},
	KindAlbumInfo: {}, KindAlbumCover: {}, KindAlbumMusic: {},
	KindPodcastInfo: {}, KindPodcastCover: {}, KindPodcastProgram: {},
	KindSoundEffectInfo: {}, KindSoundEffectCover: {}, KindSoundEffectAudio: {},
	KindPostInfo:        {},
	KindProfileLocation: {}, KindProfileWebsite: {}, KindProfileIntroduction: {},
	KindProfileNeteaseID: {}, KindProfileSoundcloudID: {}, KindProfileBandcampID: {},
	KindName: {}, KindAvatar: {},
}

// ParseKind validates s against the closed kind vocabulary.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if err := k.Validate(); err != nil {
		return "", err
	}
	return k, nil
}

// Validate returns ErrUnknownRecordKind for kinds outside the vocabulary.
func (k Kind) Validate() error {
	if _, ok := knownKinds[k]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownRecordKind, string(k))
	}
	return nil
}

// Reserved tag names attached by the builder.
const (
	TagAppName        = "App-Name"
	TagType           = "Type"
	TagUnixTime       = "Unix-Time"
	TagAuthorAddress  = "Author-Address"
	TagAuthorUsername = "Author-Username"
)

// Kind-specific tag names.
const (
	TagContentType = "Content-Type"
	TagTitle       = "Title"
	TagGenre       = "Genre"
	TagPrice       = "Price"
	TagTrackNumber = "Track-Number"
	TagAlbumTitle  = "Album-Title"
	TagAlbumDesp   = "Album-Desp"
	TagTracks      = "Tracks"
	TagCategory    = "Category"
	TagPodcast     = "Podcast"
	TagUsername    = "Username"
)

var reservedTags = map[string]struct{}{
	TagAppName: {}, TagType: {}, TagUnixTime: {}, TagAuthorAddress: {}, TagAuthorUsername: {},
}

// Namespaces are the App-Name values that separate this marketplace's
// records from identity records and unrelated ledger traffic.
type Namespaces struct {
	App      string
	Identity string
	Avatar   string
}

// DefaultNamespaces returns the namespaces used by the public marketplace.
func DefaultNamespaces() Namespaces {
	return Namespaces{
		App:      "arclight-test",
		Identity: "arweave-id",
		Avatar:   "arweave-avatar",
	}
}

// Validate checks that every namespace is set.
func (n Namespaces) Validate() error {
	if n.App == "" || n.Identity == "" || n.Avatar == "" {
		return fmt.Errorf("%w: namespaces must be non-empty", ErrInvalidTagValue)
	}
	return nil
}

// namespaceFor returns the App-Name a record of kind k is written under.
func (n Namespaces) namespaceFor(k Kind) string {
	if k == KindName || k == KindAvatar {
		return n.Identity
	}
	return n.App
}

// KindQuery returns the predicate selecting records of kind k in the
// namespace that kind belongs to.
func (n Namespaces) KindQuery(k Kind) (*Predicate, error) {
	if err := k.Validate(); err != nil {
		return nil, err
	}
	return And(Equals(TagAppName, n.namespaceFor(k)), Equals(TagType, string(k))), nil
}

// OwnedKindQuery narrows KindQuery to records owned by address.
func (n Namespaces) OwnedKindQuery(address Address, k Kind) (*Predicate, error) {
	q, err := n.KindQuery(k)
	if err != nil {
		return nil, err
	}
	return And(From(address), q), nil
}
