package upload

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"

	"capturesync/internal/content"
)

const fallbackMediaType = "application/octet-stream"

var noteMediaTypes = map[string]string{
	".md":   "text/markdown",
	".txt":  "text/plain",
	".json": "application/json",
	".html": "text/html",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

var audioMediaTypes = map[string]string{
	".opus": "audio/opus",
	".m4a":  "audio/mp4",
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".webm": "audio/webm",
	".ogg":  "audio/ogg",
	".aac":  "audio/aac",
	".flac": "audio/flac",
}

// MediaType picks the upload content type for a candidate. Notes map by
// extension; audio is sniffed from the file header first.
func MediaType(c content.Candidate) string {
	ext := strings.ToLower(filepath.Ext(c.Name))
	if c.Kind == content.KindNote {
		if mt, ok := noteMediaTypes[ext]; ok {
			return mt
		}
		return "text/plain"
	}
	if mt := sniffAudio(c, ext); mt != "" {
		return mt
	}
	if mt, ok := audioMediaTypes[ext]; ok {
		return mt
	}
	return fallbackMediaType
}

func sniffAudio(c content.Candidate, ext string) string {
	var reader io.ReadSeeker
	if c.IsInline() {
		reader = bytes.NewReader(c.Inline)
	} else {
		file, err := os.Open(c.Path)
		if err != nil {
			return ""
		}
		defer file.Close()
		reader = file
	}

	_, fileType, err := tag.Identify(reader)
	if err != nil {
		return ""
	}
	switch fileType {
	case tag.MP3:
		return "audio/mpeg"
	case tag.M4A, tag.M4B, tag.M4P, tag.ALAC:
		return "audio/mp4"
	case tag.FLAC:
		return "audio/flac"
	case tag.OGG:
		if ext == ".opus" {
			return "audio/opus"
		}
		return "audio/ogg"
	case tag.DSF:
		return "audio/dsf"
	default:
		return ""
	}
}
