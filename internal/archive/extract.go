// SPDX-License-Identifier: MPL-2.0

package archive

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/procdrive/procdrive/pkg/platform"

	"github.com/charmbracelet/log"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
)

const (
	cutDirPattern     = `^/?([^/]+)/(.*)`
	cutDirReplacement = "$2"
)

var (
	// ErrUnsafePath is the sentinel wrapped by UnsafePathError.
	ErrUnsafePath = errors.New("archive entry escapes destination")
	// ErrInvalidRemap is returned by Extract when a Remap pattern did not compile.
	ErrInvalidRemap = errors.New("invalid remap pattern")
	// ErrReservedName is returned for entries Windows cannot create, such as "aux/".
	ErrReservedName = errors.New("archive entry uses a reserved file name")
	// ErrNoDestination is returned by Extract when no destination was set.
	ErrNoDestination = errors.New("no destination directory")
)

type (
	// Extractor unpacks archives into a destination directory.
	Extractor struct {
		dest   string
		remaps []remap
		errs   []error
		logger *log.Logger

		rejectReserved bool
	}

	remap struct {
		re          *regexp.Regexp
		replacement string
	}

	// UnsafePathError reports an entry whose remapped name points outside
	// the destination directory.
	UnsafePathError struct {
		Entry string
		Path  string
	}

	// entry is the format-independent view of an archive member.
	entry struct {
		name  string
		dir   bool
		mode  fs.FileMode
		skip  bool
		open  func() (io.ReadCloser, error)
		label string
	}
)

// Error implements the error interface.
func (e *UnsafePathError) Error() string {
	return fmt.Sprintf("archive entry %q resolves to %q outside the destination", e.Entry, e.Path)
}

// Unwrap returns ErrUnsafePath for errors.Is() compatibility.
func (e *UnsafePathError) Unwrap() error { return ErrUnsafePath }

// NewExtractor creates an extractor writing into dest.
func NewExtractor(dest string) *Extractor {
	return &Extractor{
		dest:           dest,
		logger:         log.Default(),
		rejectReserved: platform.IsWindows(),
	}
}

// WithLogger sets the logger used for per-entry trace output.
func (x *Extractor) WithLogger(l *log.Logger) *Extractor {
	if l != nil {
		x.logger = l
	}
	return x
}

// Remap rewrites entry names matching pattern with replacement, which may
// reference capture groups as $1. Remaps run in the order they were added,
// after backslashes in entry names are turned into slashes. An entry whose
// name becomes empty is skipped.
func (x *Extractor) Remap(pattern, replacement string) *Extractor {
	re, err := regexp.Compile(pattern)
	if err != nil {
		x.errs = append(x.errs, fmt.Errorf("%w %q: %w", ErrInvalidRemap, pattern, err))
		return x
	}
	x.remaps = append(x.remaps, remap{re: re, replacement: replacement})
	return x
}

// CutDirs strips the leading directory from every entry name, so that
// "tool-1.0/bin/tool" is extracted as "bin/tool".
func (x *Extractor) CutDirs() *Extractor {
	return x.Remap(cutDirPattern, cutDirReplacement)
}

// RemapName applies the configured remaps to an entry name.
func (x *Extractor) RemapName(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	for _, r := range x.remaps {
		name = r.re.ReplaceAllString(name, r.replacement)
	}
	return name
}

// Extract unpacks src into the destination directory and returns it.
func (x *Extractor) Extract(ctx context.Context, src string) (string, error) {
	if len(x.errs) > 0 {
		return "", errors.Join(x.errs...)
	}
	if x.dest == "" {
		return "", ErrNoDestination
	}
	format, err := DetectFormat(src)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(x.dest, 0o755); err != nil {
		return "", fmt.Errorf("create destination: %w", err)
	}

	x.logger.Debug("extracting archive", "src", src, "dest", x.dest, "format", format)
	switch format {
	case FormatZip:
		err = x.extractZip(ctx, src)
	default:
		err = x.extractTar(ctx, src, format)
	}
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", src, err)
	}
	return x.dest, nil
}

func (x *Extractor) extractZip(ctx context.Context, src string) error {
	zr, err := zip.OpenReader(src)
	if err != nil {
		return err
	}
	defer zr.Close()

	for _, f := range zr.File {
		info := f.FileInfo()
		e := entry{
			name: f.Name,
			dir:  info.IsDir(),
			mode: info.Mode().Perm(),
			open: func() (io.ReadCloser, error) { return f.Open() },
		}
		if info.Mode()&fs.ModeSymlink != 0 {
			e.skip, e.label = true, "symlink"
		}
		if err := x.write(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (x *Extractor) extractTar(ctx context.Context, src string, format Format) error {
	file, err := os.Open(src)
	if err != nil {
		return err
	}
	defer file.Close()

	var r io.Reader = file
	switch format {
	case FormatTarGz:
		gz, err := gzip.NewReader(file)
		if err != nil {
			return err
		}
		defer gz.Close()
		r = gz
	case FormatTarZst:
		zr, err := zstd.NewReader(file)
		if err != nil {
			return err
		}
		defer zr.Close()
		r = zr
	}

	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		e := entry{
			name: hdr.Name,
			dir:  hdr.Typeflag == tar.TypeDir,
			mode: fs.FileMode(hdr.Mode).Perm(),
			open: func() (io.ReadCloser, error) { return io.NopCloser(tr), nil },
		}
		switch hdr.Typeflag {
		case tar.TypeDir, tar.TypeReg:
		case tar.TypeSymlink, tar.TypeLink:
			e.skip, e.label = true, "link"
		default:
			e.skip, e.label = true, fmt.Sprintf("type %q", hdr.Typeflag)
		}
		if err := x.write(ctx, e); err != nil {
			return err
		}
	}
}

func (x *Extractor) write(ctx context.Context, e entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.skip {
		x.logger.Warn("skipping archive entry", "entry", e.name, "kind", e.label)
		return nil
	}
	name := x.RemapName(e.name)
	if strings.Trim(name, "/") == "" {
		x.logger.Debug("entry remapped away", "entry", e.name)
		return nil
	}
	if x.rejectReserved && platform.HasWindowsReservedElement(name) {
		return fmt.Errorf("%w: %q", ErrReservedName, e.name)
	}
	target, err := x.resolve(e.name, name)
	if err != nil {
		return err
	}
	x.logger.Debug("extracting entry", "entry", e.name, "path", target)

	if e.dir {
		return os.MkdirAll(target, 0o755)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	if err := x.writeFile(target, e); err != nil {
		return err
	}
	if e.mode != 0 {
		return os.Chmod(target, e.mode)
	}
	return nil
}

func (x *Extractor) writeFile(target string, e entry) (err error) {
	src, err := e.open()
	if err != nil {
		return err
	}
	defer src.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	_, err = io.Copy(out, src)
	return err
}

// resolve joins name onto the destination, rejecting results outside it.
func (x *Extractor) resolve(original, name string) (string, error) {
	dest, err := filepath.Abs(x.dest)
	if err != nil {
		return "", err
	}
	target := filepath.Join(dest, filepath.FromSlash(name))
	rel, err := filepath.Rel(dest, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", &UnsafePathError{Entry: original, Path: target}
	}
	return target, nil
}
