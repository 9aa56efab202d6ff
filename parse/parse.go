package parse

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
)

// Progress band covered by archive extraction, in percent.
const (
	ArchiveProgressStart = 50
	ArchiveProgressEnd   = 70
	archiveProgressEvery = 5
)

type ArchiveOptions struct {
	Options

	// Limit on the summed uncompressed size of the documents in the
	// archive. Zero means no limit.
	MaxUncompressedSize int64

	// Called every few documents with a percentage within
	// [ArchiveProgressStart, ArchiveProgressEnd].
	Progress func(percent int)
}

// IsDocumentName reports whether an archive member should be
// treated as a TransXChange document. Anything under a "__" prefixed
// path segment is metadata left by archivers.
func IsDocumentName(name string) bool {
	for _, segment := range strings.Split(name, "/") {
		if strings.HasPrefix(segment, "__") {
			return false
		}
	}
	return strings.HasSuffix(strings.ToLower(path.Base(name)), ".xml")
}

// ExtractArchive extracts every document in a zip archive and merges
// the results. Any failing document fails the whole archive.
func ExtractArchive(filename string, buf []byte, opts ArchiveOptions) (*Bundle, error) {
	r, err := zip.NewReader(bytes.NewReader(buf), int64(len(buf)))
	if err != nil {
		return nil, ErrZipFile(filename, err)
	}

	members := []*zip.File{}
	var total uint64
	for _, f := range r.File {
		// Directories are walked implicitly, since the zip lists
		// every file by its full path.
		if f.FileInfo().IsDir() {
			continue
		}
		if strings.HasSuffix(strings.ToLower(f.Name), ".zip") {
			return nil, ErrNestedZipForbidden(filename)
		}
		if !IsDocumentName(f.Name) {
			continue
		}
		members = append(members, f)
		total += f.UncompressedSize64
	}

	if len(members) == 0 {
		return nil, ErrNoDataFound(filename)
	}
	if opts.MaxUncompressedSize > 0 && total > uint64(opts.MaxUncompressedSize) {
		return nil, ErrZipTooLarge(filename, int64(total), opts.MaxUncompressedSize)
	}

	// Member order decides which duplicate record wins, so it must
	// not depend on how the archive was assembled.
	sort.Slice(members, func(i, j int) bool {
		return members[i].Name < members[j].Name
	})

	merger := newBundleMerger()
	for i, f := range members {
		data, err := readMember(f)
		if err != nil {
			return nil, ErrZipFile(filename, fmt.Errorf("reading %s: %w", f.Name, err))
		}

		bundle, err := ExtractDocument(path.Base(f.Name), data, opts.Options)
		if err != nil {
			return nil, err
		}
		merger.add(bundle)

		if opts.Progress != nil && (i+1)%archiveProgressEvery == 0 {
			span := ArchiveProgressEnd - ArchiveProgressStart
			opts.Progress(ArchiveProgressStart + span*(i+1)/len(members))
		}
	}

	return merger.bundle(), nil
}

func readMember(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
