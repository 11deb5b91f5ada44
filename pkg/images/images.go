// Package images turns the image references a caller may send (file paths,
// base64 payloads, data URIs) into the exact string a provider expects on the wire.
package images

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/goccy/go-json"

	"github.com/papercomputeco/mcpbridge/pkg/llm"
)

// DefaultMIME is used for data URIs when no MIME type is known.
const DefaultMIME = "image/png"

const unsupportedEntry = "Unsupported image entry format. Use a path string or an object with 'path', 'base64' or 'data_uri'."

// Source tags which shape an Entry was given in.
type Source int

const (
	SourceInvalid Source = iota
	SourcePath
	SourceDataURI
	SourceBase64
)

// Entry is one image reference from a request. It decodes from either a bare
// string (a file path) or an object with one of data_uri, base64 or path, and
// re-encodes to the exact JSON it was decoded from.
type Entry struct {
	Source Source

	// Value holds the path, data URI or base64 payload depending on Source.
	Value string

	// MIME is an optional hint for base64 and path entries.
	MIME string

	raw json.RawMessage
}

// PathEntry builds an Entry referencing a file.
func PathEntry(path string) Entry {
	raw, _ := json.Marshal(path)
	return Entry{Source: SourcePath, Value: path, raw: raw}
}

type entryObject struct {
	DataURI *string `json:"data_uri"`
	Base64  *string `json:"base64"`
	Path    *string `json:"path"`
	MIME    *string `json:"mime"`
}

// UnmarshalJSON never fails on well-formed JSON: shapes it cannot interpret
// are kept as SourceInvalid and rejected by Normalize.
func (e *Entry) UnmarshalJSON(data []byte) error {
	*e = Entry{raw: append(json.RawMessage(nil), data...)}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil
	}

	switch trimmed[0] {
	case '"':
		var path string
		if err := json.Unmarshal(trimmed, &path); err != nil {
			return nil
		}
		e.Source = SourcePath
		e.Value = path
	case '{':
		var obj entryObject
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return nil
		}
		if obj.MIME != nil {
			e.MIME = *obj.MIME
		}
		switch {
		case obj.DataURI != nil:
			e.Source = SourceDataURI
			e.Value = *obj.DataURI
			e.MIME = ""
		case obj.Base64 != nil:
			e.Source = SourceBase64
			e.Value = *obj.Base64
		case obj.Path != nil:
			e.Source = SourcePath
			e.Value = *obj.Path
		}
	}
	return nil
}

// MarshalJSON echoes the original request JSON.
func (e Entry) MarshalJSON() ([]byte, error) {
	if len(e.raw) > 0 {
		return e.raw, nil
	}
	switch e.Source {
	case SourcePath:
		if e.MIME == "" {
			return json.Marshal(e.Value)
		}
		return json.Marshal(map[string]string{"path": e.Value, "mime": e.MIME})
	case SourceDataURI:
		return json.Marshal(map[string]string{"data_uri": e.Value})
	case SourceBase64:
		obj := map[string]string{"base64": e.Value}
		if e.MIME != "" {
			obj["mime"] = e.MIME
		}
		return json.Marshal(obj)
	default:
		return []byte("null"), nil
	}
}

// Normalized is a provider-agnostic encoded image. Data is base64 text, or a
// complete data URI when the caller supplied one.
type Normalized struct {
	Data string
	MIME string
}

// Normalize resolves an Entry, reading the file for path entries.
func Normalize(e Entry) (Normalized, error) {
	switch e.Source {
	case SourcePath:
		return Load(e.Value, e.MIME)
	case SourceDataURI:
		return Normalized{Data: e.Value}, nil
	case SourceBase64:
		return Normalized{Data: e.Value, MIME: e.MIME}, nil
	default:
		return Normalized{}, &llm.ValidationError{Message: unsupportedEntry}
	}
}

// Load reads and base64-encodes a file. The MIME type is the hint when given,
// else guessed from the extension, else sniffed from the content.
func Load(path, mimeHint string) (Normalized, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Normalized{}, llm.NewValidationError("Unable to read image file '%s': %v", path, err)
	}

	return Normalized{
		Data: base64.StdEncoding.EncodeToString(raw),
		MIME: guessMIME(path, mimeHint, raw),
	}, nil
}

func guessMIME(path, hint string, raw []byte) string {
	if hint != "" {
		return hint
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); byExt != "" {
		// Drop parameters such as "; charset=utf-8"
		mediaType, _, err := mime.ParseMediaType(byExt)
		if err == nil {
			return mediaType
		}
		return byExt
	}
	if detected := mimetype.Detect(raw); strings.HasPrefix(detected.String(), "image/") {
		return detected.String()
	}
	return ""
}

// Format is the wire representation a provider expects for images.
type Format int

const (
	// FormatDataURI renders data:<mime>;base64,<payload> (OpenAI-compatible).
	FormatDataURI Format = iota

	// FormatRawBase64 renders the bare base64 payload (native chat).
	FormatRawBase64
)

// Render produces the wire string for an image in the given format.
func (n Normalized) Render(f Format) string {
	switch f {
	case FormatRawBase64:
		if strings.HasPrefix(n.Data, "data:") {
			if _, payload, ok := strings.Cut(n.Data, ","); ok {
				return payload
			}
			return ""
		}
		return n.Data
	default:
		if strings.HasPrefix(n.Data, "data:") {
			return n.Data
		}
		mimeType := n.MIME
		if mimeType == "" {
			mimeType = DefaultMIME
		}
		return fmt.Sprintf("data:%s;base64,%s", mimeType, n.Data)
	}
}

// Prepare normalizes entries and renders each one in the given format,
// preserving order. The first failing entry aborts.
func Prepare(entries []Entry, f Format) ([]string, error) {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		n, err := Normalize(e)
		if err != nil {
			return nil, err
		}
		out = append(out, n.Render(f))
	}
	return out, nil
}
