package tag

import "github.com/janina-ellinghaus/audio-producer/model"

// FrameKind is the category of an ID3 frame. Each kind maps to one
// four-character ID3v2.3 identifier.
type FrameKind string

const (
	KindPicture   FrameKind = "picture"
	KindTitle     FrameKind = "title"
	KindAlbum     FrameKind = "album"
	KindArtist    FrameKind = "artist"
	KindYear      FrameKind = "year"
	KindTrack     FrameKind = "track"
	KindGenre     FrameKind = "genre"
	KindPublisher FrameKind = "publisher"
)

// CoverDescription labels every picture frame the writer produces. Existing
// pictures are replaced only when they carry this description.
const CoverDescription = "Cover"

var frameIDs = map[FrameKind]string{
	KindPicture:   "APIC",
	KindTitle:     "TIT2",
	KindAlbum:     "TALB",
	KindArtist:    "TPE1",
	KindYear:      "TYER",
	KindTrack:     "TRCK",
	KindGenre:     "TCON",
	KindPublisher: "TPUB",
}

// FrameID returns the ID3v2.3 identifier of k.
func (k FrameKind) FrameID() string {
	return frameIDs[k]
}

// Frame is either a TextFrame or a PictureFrame.
type Frame interface {
	Kind() FrameKind
}

type TextFrame struct {
	FrameKind FrameKind
	Text      string
}

func (f TextFrame) Kind() FrameKind { return f.FrameKind }

// PictureFrame is always a front cover labelled CoverDescription.
type PictureFrame struct {
	MIME string
	Data []byte
}

func (f PictureFrame) Kind() FrameKind { return KindPicture }

// FrameSet is an insertion-ordered map from kind to frame. Setting a kind
// that is already present replaces it in place, so a set never holds two
// frames of one kind.
type FrameSet struct {
	order  []FrameKind
	frames map[FrameKind]Frame
}

func NewFrameSet() *FrameSet {
	return &FrameSet{frames: make(map[FrameKind]Frame)}
}

func (s *FrameSet) Set(f Frame) {
	if _, ok := s.frames[f.Kind()]; !ok {
		s.order = append(s.order, f.Kind())
	}
	s.frames[f.Kind()] = f
}

func (s *FrameSet) Get(kind FrameKind) (Frame, bool) {
	f, ok := s.frames[kind]
	return f, ok
}

func (s *FrameSet) Len() int {
	return len(s.order)
}

// Frames returns the frames in first-insertion order.
func (s *FrameSet) Frames() []Frame {
	out := make([]Frame, 0, len(s.order))
	for _, kind := range s.order {
		out = append(out, s.frames[kind])
	}
	return out
}

// BuildFrameSet derives the frames to write from metadata and cover art.
// Picture, title, album and artist are always present; year, track, genre and
// publisher only when non-empty.
func BuildFrameSet(meta model.TrackMetadata, cover []byte, coverMIME string) *FrameSet {
	meta = meta.Normalize()

	set := NewFrameSet()
	set.Set(PictureFrame{MIME: coverMIME, Data: cover})
	set.Set(TextFrame{FrameKind: KindTitle, Text: meta.Title})
	set.Set(TextFrame{FrameKind: KindAlbum, Text: meta.Album})
	set.Set(TextFrame{FrameKind: KindArtist, Text: meta.Artist})

	optional := []TextFrame{
		{FrameKind: KindYear, Text: meta.Year},
		{FrameKind: KindTrack, Text: meta.Track},
		{FrameKind: KindGenre, Text: meta.Genre},
		{FrameKind: KindPublisher, Text: meta.Publisher},
	}
	for _, f := range optional {
		if f.Text != "" {
			set.Set(f)
		}
	}
	return set
}
