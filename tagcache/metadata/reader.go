// Package metadata turns audio files into the record shape the indexer
// interns. The external tag reader is behind a small interface; the default
// implementation is backed by dhowden/tag.
package metadata

import (
	"fmt"
	"os"
	"strconv"

	"github.com/dhowden/tag"
)

// Properties are the audio-level readings that accompany the tag bag.
type Properties struct {
	Bitrate  uint32 // kbit/s, 0 when the reader cannot tell
	LengthMS uint32 // track length in milliseconds, 0 when unknown
	MTime    uint32 // file modification time, seconds since epoch
	Size     int64
}

// Raw is the flat tag bag plus audio properties for one file.
type Raw struct {
	Tags  map[string]string
	Props Properties
}

// Reader extracts the raw tag bag from one audio file.
type Reader interface {
	Read(path string) (*Raw, error)
}

// TagReader reads metadata through dhowden/tag. It reports zero for audio
// properties the library does not expose (bitrate, length); a richer prober
// can replace it behind the Reader interface.
type TagReader struct{}

// grouping lives under format-specific raw keys; dhowden/tag has no
// accessor for it.
var groupingKeys = []string{"TIT1", "GRP1", "\xa9grp", "GROUPING", "grouping"}

func (TagReader) Read(path string) (*Raw, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	m, err := tag.ReadFrom(f)
	if err != nil {
		return nil, fmt.Errorf("read tags from %s: %w", path, err)
	}

	track, _ := m.Track()
	disc, _ := m.Disc()

	tags := map[string]string{
		"artist":      m.Artist(),
		"album":       m.Album(),
		"genre":       m.Genre(),
		"title":       m.Title(),
		"composer":    m.Composer(),
		"comment":     m.Comment(),
		"albumartist": m.AlbumArtist(),
		"grouping":    rawGrouping(m),
		"year":        strconv.Itoa(m.Year()),
		"tracknumber": strconv.Itoa(track),
		"discnumber":  strconv.Itoa(disc),
	}

	return &Raw{
		Tags: tags,
		Props: Properties{
			MTime: uint32(info.ModTime().Unix()),
			Size:  info.Size(),
		},
	}, nil
}

func rawGrouping(m tag.Metadata) string {
	raw := m.Raw()
	for _, key := range groupingKeys {
		if v, ok := raw[key]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
	}
	return ""
}
