package document

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/octool/octool/internal/domain"
)

// Format is the on-disk encoding of a document
type Format string

const (
	// FormatPlist is an XML property list
	FormatPlist Format = "plist"
	// FormatYAML is a YAML or JSON document
	FormatYAML Format = "yaml"
)

// Document is a loaded configuration document
type Document struct {
	Path   string
	Format Format
	Root   *Dict
}

// Sections returns the top-level section names in order
func (d *Document) Sections() []string {
	return d.Root.Keys()
}

// Load reads a configuration document. The format follows the extension;
// unknown extensions are sniffed.
func Load(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrDocumentNotFound, path)
		}
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrDocumentNotFound, path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err == nil && info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", domain.ErrDocumentNotFound, path)
	}

	r := bufio.NewReader(f)
	format := detectFormat(path, r)

	var root *Dict
	switch format {
	case FormatPlist:
		root, err = decodePlist(r)
	default:
		root, err = decodeYAML(r)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrDocumentMalformed, path, err)
	}

	return &Document{Path: path, Format: format, Root: root}, nil
}

func detectFormat(path string, r *bufio.Reader) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".plist", ".xml":
		return FormatPlist
	case ".yaml", ".yml", ".json":
		return FormatYAML
	}

	head, err := r.Peek(512)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return FormatYAML
	}
	if bytes.HasPrefix(bytes.TrimSpace(head), []byte("<")) {
		return FormatPlist
	}
	return FormatYAML
}
