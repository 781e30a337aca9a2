package extract

import (
	"context"
	"errors"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

var errInvalidUTF8 = errors.New("invalid UTF-8")

// decodeStrategy decodes text with one character encoding.
type decodeStrategy struct {
	name    string
	decoder *encoding.Decoder
}

func (s decodeStrategy) Name() string { return s.name }

func (s decodeStrategy) Attempt(_ context.Context, content []byte) (string, error) {
	if s.decoder == nil {
		if !utf8.Valid(content) {
			return "", errInvalidUTF8
		}
		return string(content), nil
	}
	out, err := s.decoder.Bytes(content)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// plainStrategies returns UTF-8 followed by the single-byte fallbacks.
func plainStrategies() []Strategy {
	return []Strategy{
		decodeStrategy{name: "utf-8"},
		decodeStrategy{name: "latin-1", decoder: charmap.ISO8859_1.NewDecoder()},
		decodeStrategy{name: "cp1252", decoder: charmap.Windows1252.NewDecoder()},
		decodeStrategy{name: "iso-8859-1", decoder: charmap.ISO8859_1.NewDecoder()},
	}
}
