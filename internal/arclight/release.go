package arclight

import (
	"encoding/json"
	"fmt"
	"math"
)

// ReleaseKind names a publishable artifact type. It doubles as the key of a
// post index entry.
type ReleaseKind string

const (
	ReleaseSingle      ReleaseKind = "single"
	ReleaseAlbum       ReleaseKind = "album"
	ReleasePodcast     ReleaseKind = "podcast"
	ReleaseSoundEffect ReleaseKind = "soundeffect"
)

// ParseReleaseKind validates s against the known release kinds.
func ParseReleaseKind(s string) (ReleaseKind, error) {
	k := ReleaseKind(s)
	if _, ok := descriptors[k]; !ok {
		return "", fmt.Errorf("%w: release %q", ErrUnknownRecordKind, s)
	}
	return k, nil
}

// Media is raw content plus its MIME type.
type Media struct {
	Data        []byte
	ContentType string
}

// Track is one media payload of a release. Singles, podcasts and sound
// effects carry exactly one; albums carry one per track, in track order.
type Track struct {
	Title    string
	Price    float64
	Duration float64
	Media    Media
}

// Release is a complete draft ready to be published.
type Release struct {
	Kind        ReleaseKind
	Title       string
	Description string
	Genre       string
	Category    string // podcasts only
	Podcast     string // podcast show name
	Price       float64
	Duration    float64
	Cover       Media
	Tracks      []Track
}

// TrackRef is a confirmed media record as listed by an info payload.
type TrackRef struct {
	ID    RecordID `json:"id"`
	Title string   `json:"title"`
	Price float64  `json:"price"`
}

// UnmarshalJSON accepts a price written as a number or a numeric string.
func (t *TrackRef) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID    RecordID    `json:"id"`
		Title string      `json:"title"`
		Price json.Number `json:"price"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*t = TrackRef{ID: raw.ID, Title: raw.Title, Price: numberOrZero(raw.Price)}
	return nil
}

// ReleaseDescriptor parameterizes the publish pipeline for one release kind.
type ReleaseDescriptor struct {
	Kind       ReleaseKind
	CoverKind  Kind
	MediaKind  Kind
	InfoKind   Kind
	MultiTrack bool

	mediaAttrs  func(r *Release, t *Track, number int) []Attr
	infoAttrs   func(r *Release) []Attr
	infoPayload func(r *Release, cover RecordID, media []TrackRef) any
}

var descriptors = map[ReleaseKind]*ReleaseDescriptor{
	ReleaseSingle: {
		Kind:      ReleaseSingle,
		CoverKind: KindSingleCover,
		MediaKind: KindSingleMusic,
		InfoKind:  KindSingleInfo,
		mediaAttrs: func(_ *Release, t *Track, _ int) []Attr {
			return []Attr{A(TagContentType, t.Media.ContentType)}
		},
		infoAttrs: func(r *Release) []Attr {
			return []Attr{A(TagTitle, r.Title), A(TagGenre, r.Genre), A(TagPrice, r.Price)}
		},
		infoPayload: func(r *Release, cover RecordID, media []TrackRef) any {
			return singleInfo{
				Title: r.Title, Desp: r.Description, Genre: r.Genre, Price: r.Price,
				Duration: r.Duration, Cover: cover, Music: media[0].ID,
			}
		},
	},
	ReleaseAlbum: {
		Kind:       ReleaseAlbum,
		CoverKind:  KindAlbumCover,
		MediaKind:  KindAlbumMusic,
		InfoKind:   KindAlbumInfo,
		MultiTrack: true,
		mediaAttrs: func(r *Release, t *Track, number int) []Attr {
			return []Attr{
				A(TagContentType, t.Media.ContentType),
				A(TagTrackNumber, number),
				A(TagTitle, t.Title),
				A(TagAlbumTitle, r.Title),
				A(TagAlbumDesp, r.Description),
			}
		},
		infoAttrs: func(r *Release) []Attr {
			return []Attr{A(TagTitle, r.Title), A(TagTracks, len(r.Tracks)), A(TagGenre, r.Genre), A(TagPrice, r.Price)}
		},
		infoPayload: func(r *Release, cover RecordID, media []TrackRef) any {
			return albumInfo{
				Title: r.Title, Desp: r.Description, Genre: r.Genre, Price: r.Price,
				Duration: r.Duration, Cover: cover, Music: media,
			}
		},
	},
	ReleasePodcast: {
		Kind:      ReleasePodcast,
		CoverKind: KindPodcastCover,
		MediaKind: KindPodcastProgram,
		InfoKind:  KindPodcastInfo,
		mediaAttrs: func(_ *Release, t *Track, _ int) []Attr {
			return []Attr{A(TagContentType, t.Media.ContentType)}
		},
		infoAttrs: func(r *Release) []Attr {
			return []Attr{A(TagPodcast, r.Podcast), A(TagTitle, r.Title), A(TagCategory, r.Category), A(TagPrice, r.Price)}
		},
		infoPayload: func(r *Release, cover RecordID, media []TrackRef) any {
			return podcastInfo{
				Podcast: r.Podcast, Title: r.Title, Desp: r.Description, Category: r.Category,
				Price: r.Price, Duration: r.Duration, Cover: cover, Program: media[0].ID,
			}
		},
	},
	ReleaseSoundEffect: {
		Kind:      ReleaseSoundEffect,
		CoverKind: KindSoundEffectCover,
		MediaKind: KindSoundEffectAudio,
		InfoKind:  KindSoundEffectInfo,
		mediaAttrs: func(_ *Release, t *Track, _ int) []Attr {
			return []Attr{A(TagContentType, t.Media.ContentType)}
		},
		infoAttrs: func(r *Release) []Attr {
			return []Attr{A(TagTitle, r.Title), A(TagPrice, r.Price)}
		},
		infoPayload: func(r *Release, cover RecordID, media []TrackRef) any {
			return soundEffectInfo{
				Title: r.Title, Desp: r.Description, Price: r.Price,
				Duration: r.Duration, Cover: cover, Audio: media[0].ID,
			}
		},
	},
}

// Descriptor returns the pipeline parameters for kind.
func Descriptor(kind ReleaseKind) (*ReleaseDescriptor, error) {
	d, ok := descriptors[kind]
	if !ok {
		return nil, fmt.Errorf("%w: release %q", ErrUnknownRecordKind, string(kind))
	}
	return d, nil
}

// ReleaseKindForInfo maps an info record kind back to its release kind.
func ReleaseKindForInfo(k Kind) (ReleaseKind, error) {
	for _, d := range descriptors {
		if d.InfoKind == k {
			return d.Kind, nil
		}
	}
	return "", fmt.Errorf("%w: %q is not an info kind", ErrUnknownRecordKind, string(k))
}

// IsMediaKind reports whether k holds a release's media payload. Media
// payloads are stored encrypted; covers are not.
func IsMediaKind(k Kind) bool {
	for _, d := range descriptors {
		if d.MediaKind == k {
			return true
		}
	}
	return false
}

// Validate checks that a draft has everything its descriptor needs.
func (r *Release) Validate() error {
	d, err := Descriptor(r.Kind)
	if err != nil {
		return err
	}
	if len(r.Cover.Data) == 0 {
		return fmt.Errorf("%s release requires cover data", r.Kind)
	}
	if r.Cover.ContentType == "" {
		return fmt.Errorf("%s release requires a cover content type", r.Kind)
	}
	if len(r.Tracks) == 0 {
		return fmt.Errorf("%s release requires media", r.Kind)
	}
	if !d.MultiTrack && len(r.Tracks) != 1 {
		return fmt.Errorf("%s release takes exactly one media payload, got %d", r.Kind, len(r.Tracks))
	}
	if err := checkPrice(r.Price); err != nil {
		return err
	}
	for i := range r.Tracks {
		t := &r.Tracks[i]
		if len(t.Media.Data) == 0 {
			return fmt.Errorf("track %d has no media data", i+1)
		}
		if t.Media.ContentType == "" {
			return fmt.Errorf("track %d has no content type", i+1)
		}
		if err := checkPrice(t.Price); err != nil {
			return fmt.Errorf("track %d: %w", i+1, err)
		}
	}
	return nil
}

func checkPrice(p float64) error {
	if math.IsNaN(p) || math.IsInf(p, 0) || p < 0 {
		return fmt.Errorf("%w: price %v", ErrInvalidTagValue, p)
	}
	return nil
}

type singleInfo struct {
	Title    string   `json:"title"`
	Desp     string   `json:"desp"`
	Genre    string   `json:"genre"`
	Price    float64  `json:"price"`
	Duration float64  `json:"duration"`
	Cover    RecordID `json:"cover"`
	Music    RecordID `json:"music"`
}

type albumInfo struct {
	Title    string     `json:"title"`
	Desp     string     `json:"desp"`
	Genre    string     `json:"genre"`
	Price    float64    `json:"price"`
	Duration float64    `json:"duration"`
	Cover    RecordID   `json:"cover"`
	Music    []TrackRef `json:"music"`
}

type podcastInfo struct {
	Podcast  string   `json:"podcast"`
	Title    string   `json:"title"`
	Desp     string   `json:"desp"`
	Category string   `json:"category"`
	Price    float64  `json:"price"`
	Duration float64  `json:"duration"`
	Cover    RecordID `json:"cover"`
	Program  RecordID `json:"program"`
}

type soundEffectInfo struct {
	Title    string   `json:"title"`
	Desp     string   `json:"desp"`
	Price    float64  `json:"price"`
	Duration float64  `json:"duration"`
	Cover    RecordID `json:"cover"`
	Audio    RecordID `json:"audio"`
}

// ReleaseInfo is the decoded info payload of any release kind. Media lists
// the referenced media records in track order; single-media kinds yield one
// entry carrying only the id.
type ReleaseInfo struct {
	ID       RecordID    `json:"id"`
	Kind     ReleaseKind `json:"kind"`
	Author   Address     `json:"author"`
	Title    string      `json:"title"`
	Desp     string      `json:"desp"`
	Genre    string      `json:"genre,omitempty"`
	Category string      `json:"category,omitempty"`
	Podcast  string      `json:"podcast,omitempty"`
	Price    float64     `json:"price"`
	Duration float64     `json:"duration"`
	Cover    RecordID    `json:"cover"`
	Media    []TrackRef  `json:"media"`
}

// DecodeReleaseInfo parses an info payload written for kind.
func DecodeReleaseInfo(kind ReleaseKind, data []byte) (*ReleaseInfo, error) {
	var raw struct {
		Title    string          `json:"title"`
		Desp     string          `json:"desp"`
		Genre    string          `json:"genre"`
		Category string          `json:"category"`
		Podcast  string          `json:"podcast"`
		Price    json.Number     `json:"price"`
		Duration json.Number     `json:"duration"`
		Cover    RecordID        `json:"cover"`
		Music    json.RawMessage `json:"music"`
		Program  RecordID        `json:"program"`
		Audio    RecordID        `json:"audio"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding %s info: %w", kind, err)
	}

	info := &ReleaseInfo{
		Kind:     kind,
		Title:    raw.Title,
		Desp:     raw.Desp,
		Genre:    raw.Genre,
		Category: raw.Category,
		Podcast:  raw.Podcast,
		Price:    numberOrZero(raw.Price),
		Duration: numberOrZero(raw.Duration),
		Cover:    raw.Cover,
	}

	switch kind {
	case ReleaseSingle, ReleaseAlbum:
		refs, err := decodeMusic(raw.Music)
		if err != nil {
			return nil, fmt.Errorf("decoding %s music: %w", kind, err)
		}
		info.Media = refs
	case ReleasePodcast:
		info.Media = []TrackRef{{ID: raw.Program, Title: raw.Title}}
	case ReleaseSoundEffect:
		info.Media = []TrackRef{{ID: raw.Audio, Title: raw.Title}}
	default:
		return nil, fmt.Errorf("%w: release %q", ErrUnknownRecordKind, string(kind))
	}
	return info, nil
}

// decodeMusic accepts both the single form (one id string) and the album
// form (a list of track refs).
func decodeMusic(raw json.RawMessage) ([]TrackRef, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var id RecordID
	if err := json.Unmarshal(raw, &id); err == nil {
		return []TrackRef{{ID: id}}, nil
	}
	var refs []TrackRef
	if err := json.Unmarshal(raw, &refs); err != nil {
		return nil, err
	}
	return refs, nil
}

// numberOrZero tolerates prices and durations that were written as strings.
func numberOrZero(n json.Number) float64 {
	f, err := n.Float64()
	if err != nil {
		return 0
	}
	return f
}
