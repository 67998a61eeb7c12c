package segment

import (
	"bytes"

	"github.com/bogem/id3v2"
)

// Tags holds the descriptive metadata of an encoded file.
type Tags struct {
	Title  string
	Artist string
	Album  string
}

// Empty reports whether no tag fields were found.
func (t Tags) Empty() bool {
	return t.Title == "" && t.Artist == "" && t.Album == ""
}

// ReadTags extracts ID3v2 tags from an encoded file. Files without tags
// return an empty Tags value.
func ReadTags(data []byte) Tags {
	if !bytes.HasPrefix(data, []byte("ID3")) {
		return Tags{}
	}
	tag, err := id3v2.ParseReader(bytes.NewReader(data), id3v2.Options{Parse: true})
	if err != nil {
		return Tags{}
	}

	return Tags{
		Title:  tag.Title(),
		Artist: tag.Artist(),
		Album:  tag.Album(),
	}
}
