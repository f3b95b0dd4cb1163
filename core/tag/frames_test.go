package tag

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/janina-ellinghaus/audio-producer/model"
)

func kinds(set *FrameSet) []FrameKind {
	var out []FrameKind
	for _, f := range set.Frames() {
		out = append(out, f.Kind())
	}
	return out
}

func TestBuildFrameSetRequiredOnly(t *testing.T) {
	set := BuildFrameSet(model.TrackMetadata{Title: "T", Album: "A"}, []byte{1}, "image/png")

	want := []FrameKind{KindPicture, KindTitle, KindAlbum, KindArtist}
	if diff := cmp.Diff(want, kinds(set)); diff != "" {
		t.Errorf("kinds mismatch (-want +got):\n%s", diff)
	}

	artist, ok := set.Get(KindArtist)
	if !ok {
		t.Fatal("artist frame missing")
	}
	if got := artist.(TextFrame).Text; got != model.DefaultArtist {
		t.Errorf("artist = %q, want %q", got, model.DefaultArtist)
	}
}

func TestBuildFrameSetOptional(t *testing.T) {
	meta := model.TrackMetadata{
		Title:     " Title ",
		Album:     "Album",
		Artist:    "Artist",
		Year:      "2024",
		Track:     "3",
		Genre:     "Podcast",
		Publisher: "Org",
	}
	set := BuildFrameSet(meta, []byte{1, 2}, "image/jpeg")

	if set.Len() != 8 {
		t.Fatalf("Len() = %d, want 8", set.Len())
	}
	want := []Frame{
		PictureFrame{MIME: "image/jpeg", Data: []byte{1, 2}},
		TextFrame{FrameKind: KindTitle, Text: "Title"},
		TextFrame{FrameKind: KindAlbum, Text: "Album"},
		TextFrame{FrameKind: KindArtist, Text: "Artist"},
		TextFrame{FrameKind: KindYear, Text: "2024"},
		TextFrame{FrameKind: KindTrack, Text: "3"},
		TextFrame{FrameKind: KindGenre, Text: "Podcast"},
		TextFrame{FrameKind: KindPublisher, Text: "Org"},
	}
	if diff := cmp.Diff(want, set.Frames()); diff != "" {
		t.Errorf("frames mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildFrameSetSkipsBlankOptional(t *testing.T) {
	set := BuildFrameSet(model.TrackMetadata{Title: "T", Album: "A", Year: "  ", Genre: ""}, nil, "image/png")
	for _, kind := range []FrameKind{KindYear, KindTrack, KindGenre, KindPublisher} {
		if _, ok := set.Get(kind); ok {
			t.Errorf("frame %s present for blank value", kind)
		}
	}
}

func TestFrameSetReplacesSameKind(t *testing.T) {
	set := NewFrameSet()
	set.Set(TextFrame{FrameKind: KindTitle, Text: "first"})
	set.Set(TextFrame{FrameKind: KindAlbum, Text: "album"})
	set.Set(TextFrame{FrameKind: KindTitle, Text: "second"})

	want := []Frame{
		TextFrame{FrameKind: KindTitle, Text: "second"},
		TextFrame{FrameKind: KindAlbum, Text: "album"},
	}
	if diff := cmp.Diff(want, set.Frames()); diff != "" {
		t.Errorf("frames mismatch (-want +got):\n%s", diff)
	}
}

func TestFrameIDs(t *testing.T) {
	want := map[FrameKind]string{
		KindPicture:   "APIC",
		KindTitle:     "TIT2",
		KindAlbum:     "TALB",
		KindArtist:    "TPE1",
		KindYear:      "TYER",
		KindTrack:     "TRCK",
		KindGenre:     "TCON",
		KindPublisher: "TPUB",
	}
	for kind, id := range want {
		if got := kind.FrameID(); got != id {
			t.Errorf("%s.FrameID() = %q, want %q", kind, got, id)
		}
	}
}
