package document

import (
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// decodePlist reads an XML property list whose root is a dictionary.
// It walks the token stream so dictionary keys keep their order.
func decodePlist(r io.Reader) (*Dict, error) {
	dec := xml.NewDecoder(r)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil, errors.New("no plist value found")
		}
		if err != nil {
			return nil, err
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if start.Name.Local == "plist" {
			continue
		}

		v, err := decodeValue(dec, start)
		if err != nil {
			return nil, err
		}
		root, ok := v.(*Dict)
		if !ok {
			return nil, fmt.Errorf("plist root is <%s>, not <dict>", start.Name.Local)
		}
		return root, nil
	}
}

func decodeValue(dec *xml.Decoder, start xml.StartElement) (any, error) {
	switch start.Name.Local {
	case "dict":
		return decodeDict(dec)
	case "array":
		return decodeArray(dec)
	case "true", "false":
		if err := dec.Skip(); err != nil {
			return nil, err
		}
		return start.Name.Local == "true", nil
	}

	var text string
	if err := dec.DecodeElement(&text, &start); err != nil {
		return nil, err
	}

	switch start.Name.Local {
	case "string":
		return text, nil
	case "integer":
		text = strings.TrimSpace(text)
		if n, err := strconv.ParseInt(text, 10, 64); err == nil {
			return n, nil
		}
		n, err := strconv.ParseUint(text, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q", text)
		}
		return n, nil
	case "real":
		f, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid real %q", text)
		}
		return f, nil
	case "data":
		clean := strings.Join(strings.Fields(text), "")
		b, err := base64.StdEncoding.DecodeString(clean)
		if err != nil {
			return nil, fmt.Errorf("invalid data: %w", err)
		}
		return b, nil
	case "date":
		t, err := time.Parse(time.RFC3339, strings.TrimSpace(text))
		if err != nil {
			return nil, fmt.Errorf("invalid date %q", text)
		}
		return t, nil
	default:
		return nil, fmt.Errorf("unknown plist element <%s>", start.Name.Local)
	}
}

func decodeDict(dec *xml.Decoder) (*Dict, error) {
	d := NewDict()
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, unexpectedEOF(err, "dict")
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local != "key" {
				return nil, fmt.Errorf("expected <key> in dict, got <%s>", t.Name.Local)
			}
			var key string
			if err := dec.DecodeElement(&key, &t); err != nil {
				return nil, err
			}

			valueStart, err := nextStart(dec)
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", key, err)
			}
			v, err := decodeValue(dec, valueStart)
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", key, err)
			}
			d.Set(key, v)
		case xml.EndElement:
			return d, nil
		}
	}
}

func decodeArray(dec *xml.Decoder) ([]any, error) {
	items := []any{}
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, unexpectedEOF(err, "array")
		}

		switch t := tok.(type) {
		case xml.StartElement:
			v, err := decodeValue(dec, t)
			if err != nil {
				return nil, fmt.Errorf("item %d: %w", len(items), err)
			}
			items = append(items, v)
		case xml.EndElement:
			return items, nil
		}
	}
}

// nextStart skips whitespace and comments up to the next element
func nextStart(dec *xml.Decoder) (xml.StartElement, error) {
	for {
		tok, err := dec.Token()
		if err != nil {
			return xml.StartElement{}, unexpectedEOF(err, "value")
		}
		switch t := tok.(type) {
		case xml.StartElement:
			return t, nil
		case xml.EndElement:
			return xml.StartElement{}, errors.New("missing value")
		}
	}
}

func unexpectedEOF(err error, what string) error {
	if errors.Is(err, io.EOF) {
		return fmt.Errorf("unterminated %s", what)
	}
	return err
}
