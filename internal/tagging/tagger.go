package tagging

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/bogem/id3v2"

	"trawl/internal/catalog"
)

// commentDescription labels the comment frame so tagged files can be traced
// back to the catalog track they came from.
const commentDescription = "trawl"

// Tagger writes ID3v2 frames into downloaded MP3 files.
type Tagger struct {
	// Comment, when non-empty, is stored in a COMM frame after the track id.
	Comment string
}

// New returns a Tagger.
func New() *Tagger {
	return &Tagger{}
}

// Supports reports whether files with extension ext can carry ID3v2 tags.
func Supports(ext string) bool {
	return strings.EqualFold(strings.TrimPrefix(ext, "."), "mp3")
}

// Write sets artist, title, album, year, and catalog id frames on path.
// Existing frames of the same kind are replaced; others are left alone.
func (t *Tagger) Write(path string, artist catalog.Artist, track catalog.Track) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return err
	}
	defer tag.Close()

	tag.SetDefaultEncoding(id3v2.EncodingUTF8)
	tag.SetVersion(4)
	tag.SetArtist(artist.Name)
	tag.SetTitle(track.Title)
	if track.Album != "" {
		tag.SetAlbum(track.Album)
	}
	if track.ReleaseYear > 0 {
		tag.DeleteFrames("TDRC")
		tag.AddTextFrame("TDRC", id3v2.EncodingUTF8, strconv.Itoa(track.ReleaseYear))
	}

	tag.DeleteFrames(tag.CommonID("Comments"))
	text := "catalog:" + track.ID
	if t.Comment != "" {
		text += " " + t.Comment
	}
	tag.AddCommentFrame(id3v2.CommentFrame{
		Encoding:    id3v2.EncodingUTF8,
		Language:    "eng",
		Description: commentDescription,
		Text:        text,
	})

	return tag.Save()
}

// Read returns the artist and title frames of path; used by diagnostics.
func Read(path string) (artist, title string, err error) {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true, ParseFrames: []string{"Artist", "Title"}})
	if err != nil {
		return "", "", err
	}
	defer tag.Close()
	if tag.Count() == 0 {
		return "", "", errors.New("no id3v2 frames")
	}
	return tag.Artist(), tag.Title(), nil
}
