package htmlform

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Loader finds form definitions by name: {Dir}/{name}.xml on disk first,
// then the same path inside FS.
type Loader struct {
	Dir string
	FS  fs.FS
}

// Path returns the relative path a form name resolves to.
func (l Loader) Path(name string) string {
	return filepath.Join(l.Dir, name+".xml")
}

func (l Loader) Load(name string) (*HtmlForm, error) {
	xml, err := ReadDefinition(l.Path(name), l.FS)
	if err != nil {
		return nil, err
	}
	return &HtmlForm{Name: name, XMLData: xml}, nil
}

// ReadDefinition reads the file at p, falling back to fsys when it is not on
// disk. Every line, the last included, ends with "\n".
func ReadDefinition(p string, fsys fs.FS) (string, error) {
	f, err := openDefinition(p, fsys)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return readLines(f)
}

func openDefinition(p string, fsys fs.FS) (io.ReadCloser, error) {
	f, err := os.Open(p)
	if err == nil {
		return f, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("open %s: %w", p, err)
	}
	if fsys != nil {
		name := path.Clean(filepath.ToSlash(p))
		if fs.ValidPath(name) {
			ff, err := fsys.Open(name)
			if err == nil {
				return ff, nil
			}
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("open %s: %w", name, err)
			}
		}
	}
	return nil, fmt.Errorf("unable to find '%s' in the classpath: %w", p, fs.ErrNotExist)
}

func readLines(r io.Reader) (string, error) {
	var b strings.Builder
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		b.WriteString(sc.Text())
		b.WriteString("\n")
	}
	if err := sc.Err(); err != nil {
		return "", fmt.Errorf("read form definition: %w", err)
	}
	return b.String(), nil
}
