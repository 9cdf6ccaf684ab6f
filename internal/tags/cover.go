// Package tags finds cover art for local audio files reported by players
// that expose a file:// track URL but no artwork of their own.
package tags

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
)

const (
	mimeJPEG = "image/jpeg"
	mimePNG  = "image/png"

	// MaxCoverSize bounds folder images read from disk.
	MaxCoverSize = 10 << 20
)

// Common cover art filenames to look for in album folders.
var coverArtFilenames = []string{
	"cover.jpg", "cover.jpeg", "cover.png",
	"folder.jpg", "folder.jpeg", "folder.png",
	"album.jpg", "album.jpeg", "album.png",
	"front.jpg", "front.jpeg", "front.png",
	"artwork.jpg", "artwork.jpeg", "artwork.png",
}

// Cover is artwork found for a track.
type Cover struct {
	Data     []byte
	MIMEType string
	// Source is "embedded" or the path of the folder image.
	Source string
}

// ExtractCoverArt returns the cover art of the audio file at path: the
// embedded picture if there is one, else the first known folder image next
// to it. It returns nil without error when nothing is found, including for
// files that carry no readable tags.
func ExtractCoverArt(path string) (*Cover, error) {
	cover, err := extractEmbeddedArt(path)
	if err != nil {
		return nil, err
	}
	if cover != nil {
		return cover, nil
	}
	return findFolderArt(filepath.Dir(path))
}

func extractEmbeddedArt(path string) (*Cover, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open track: %w", err)
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if errors.Is(err, tag.ErrNoTagsFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read tags: %w", err)
	}

	pic := m.Picture()
	if pic == nil || len(pic.Data) == 0 {
		return nil, nil
	}
	mime := pic.MIMEType
	if mime == "" {
		mime = mimeFromExt(pic.Ext)
	}
	return &Cover{Data: pic.Data, MIMEType: mime, Source: "embedded"}, nil
}

func findFolderArt(dir string) (*Cover, error) {
	for _, filename := range coverArtFilenames {
		for _, name := range []string{filename, strings.ToUpper(filename)} {
			imgPath := filepath.Join(dir, name)
			data, err := readLimited(imgPath)
			if err != nil {
				continue
			}
			return &Cover{
				Data:     data,
				MIMEType: mimeFromExt(filepath.Ext(filename)),
				Source:   imgPath,
			}, nil
		}
	}
	return nil, nil
}

func readLimited(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxCoverSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxCoverSize {
		return nil, fmt.Errorf("%s: larger than %d bytes", path, MaxCoverSize)
	}
	return data, nil
}

func mimeFromExt(ext string) string {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "jpg", "jpeg":
		return mimeJPEG
	case "png":
		return mimePNG
	default:
		return "application/octet-stream"
	}
}
