package tag

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bogem/id3v2"
	"go.uber.org/zap"

	"github.com/janina-ellinghaus/audio-producer/logger"
	"github.com/janina-ellinghaus/audio-producer/model"
)

// textEncoding is used for every text field written. ID3v2.3 has no UTF-8,
// so UTF-16 with BOM is the Unicode-capable choice.
var textEncoding = id3v2.EncodingUTF16

// v2.4-only frames that have no place in a v2.3 tag.
var v24OnlyFrames = []string{
	"ASPI", "EQU2", "RVA2", "SEEK", "SIGN", "TDEN", "TDOR", "TDRC", "TDRL",
	"TDTG", "TIPL", "TMCL", "TMOO", "TPRO", "TSOA", "TSOP", "TSOT", "TSST",
}

// Writer embeds metadata and cover art into MP3 files as an ID3v2.3 tag.
type Writer struct{}

func NewWriter() *Writer {
	return &Writer{}
}

// WriteTags rewrites the ID3 tag of the MP3 at mp3Path. The audio payload is
// copied unchanged. The file is replaced atomically, so on any error it is
// left exactly as it was.
func (w *Writer) WriteTags(mp3Path string, meta model.TrackMetadata, coverPath, coverMIME string) error {
	cover, err := os.ReadFile(coverPath)
	if err != nil {
		return &model.TagWriteFailedError{Op: "read cover", Err: err}
	}

	data, err := os.ReadFile(mp3Path)
	if err != nil {
		return &model.TagWriteFailedError{Op: "read audio", Err: err}
	}

	audioStart, err := locateAudio(data)
	if err != nil {
		return &model.TagWriteFailedError{Op: "normalize", Err: err}
	}

	t := loadTag(data[:audioStart])
	defer t.Close()

	t.SetVersion(3)
	downgradeToV23(t)

	frames := BuildFrameSet(meta, cover, coverMIME)
	for _, f := range frames.Frames() {
		apply(t, f)
	}

	if err := saveAtomic(mp3Path, t, data[audioStart:]); err != nil {
		return &model.TagWriteFailedError{Op: "save", Err: err}
	}

	fields := []zap.Field{
		logger.String("path", mp3Path),
		logger.Int("written", frames.Len()),
		logger.Int("frames", t.Count()),
		logger.Int("audioBytes", len(data)-audioStart),
	}
	if f, ok := frames.Get(KindPicture); ok {
		if pic, ok := f.(PictureFrame); ok {
			fields = append(fields, logger.String("coverMIME", pic.MIME))
		}
	}
	logger.Debug("ID3 tag written", fields...)
	return nil
}

// loadTag parses the existing tag block. A missing or unreadable tag yields
// an empty tag rather than an error.
func loadTag(block []byte) *id3v2.Tag {
	if len(block) == 0 {
		return id3v2.NewEmptyTag()
	}
	t, err := id3v2.ParseReader(bytes.NewReader(block), id3v2.Options{Parse: true})
	if err != nil {
		logger.Warn("existing ID3 tag could not be parsed, starting from an empty tag", logger.ErrorField(err))
		return id3v2.NewEmptyTag()
	}
	return t
}

// apply removes every frame of f's kind and adds f.
func apply(t *id3v2.Tag, f Frame) {
	id := f.Kind().FrameID()

	switch frame := f.(type) {
	case PictureFrame:
		var keep []id3v2.Framer
		for _, existing := range t.GetFrames(id) {
			if pf, ok := existing.(id3v2.PictureFrame); ok && pf.Description == CoverDescription {
				continue
			}
			keep = append(keep, existing)
		}
		t.DeleteFrames(id)
		for _, existing := range keep {
			t.AddFrame(id, existing)
		}
		t.AddFrame(id, id3v2.PictureFrame{
			Encoding:    textEncoding,
			MimeType:    frame.MIME,
			PictureType: id3v2.PTFrontCover,
			Description: CoverDescription,
			Picture:     frame.Data,
		})

	case TextFrame:
		t.DeleteFrames(id)
		if frame.FrameKind == KindYear {
			t.DeleteFrames("TDRC")
		}
		t.AddTextFrame(id, textEncoding, frame.Text)
	}
}

// downgradeToV23 makes frames carried over from an existing (often v2.4)
// tag valid for v2.3: the recording time becomes TYER, other v2.4-only frames
// are dropped and UTF-8 text is re-encoded.
func downgradeToV23(t *id3v2.Tag) {
	if recorded := t.GetTextFrame("TDRC").Text; recorded != "" && t.GetTextFrame("TYER").Text == "" {
		year := []rune(recorded)
		if len(year) > 4 {
			year = year[:4]
		}
		t.AddTextFrame("TYER", textEncoding, string(year))
	}
	for _, id := range v24OnlyFrames {
		t.DeleteFrames(id)
	}

	for id, frames := range t.AllFrames() {
		changed := false
		converted := make([]id3v2.Framer, 0, len(frames))
		for _, f := range frames {
			g, ok := reencode(f)
			changed = changed || ok
			converted = append(converted, g)
		}
		if !changed {
			continue
		}
		t.DeleteFrames(id)
		for _, f := range converted {
			t.AddFrame(id, f)
		}
	}
}

func isUTF8(e id3v2.Encoding) bool {
	return e.Key == id3v2.EncodingUTF8.Key
}

func reencode(f id3v2.Framer) (id3v2.Framer, bool) {
	switch frame := f.(type) {
	case id3v2.TextFrame:
		if isUTF8(frame.Encoding) {
			frame.Encoding = textEncoding
			return frame, true
		}
	case id3v2.PictureFrame:
		if isUTF8(frame.Encoding) {
			frame.Encoding = textEncoding
			return frame, true
		}
	case id3v2.CommentFrame:
		if isUTF8(frame.Encoding) {
			frame.Encoding = textEncoding
			return frame, true
		}
	case id3v2.UnsynchronisedLyricsFrame:
		if isUTF8(frame.Encoding) {
			frame.Encoding = textEncoding
			return frame, true
		}
	}
	return f, false
}

// saveAtomic writes tag and audio to a temporary file next to path and
// renames it over path.
func saveAtomic(path string, t *id3v2.Tag, audio []byte) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tagging-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err = t.WriteTo(tmp); err != nil {
		return fmt.Errorf("failed to write tag: %w", err)
	}
	if _, err = tmp.Write(audio); err != nil {
		return fmt.Errorf("failed to write audio: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if info, statErr := os.Stat(path); statErr == nil {
		_ = os.Chmod(tmp.Name(), info.Mode().Perm())
	}
	return os.Rename(tmp.Name(), path)
}
