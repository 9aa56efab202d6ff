package parse

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tidbyt.dev/txc/testutil"
)

// A second document sharing stops with SingleRouteDoc, for a
// different service.
func otherServiceDoc() testutil.Doc {
	doc := testutil.SingleRouteDoc()
	doc.CreationDateTime = "2019-12-01T09:00:00"
	doc.ModificationDateTime = "2020-03-01T09:00:00"
	doc.SchemaVersion = "2.1"
	doc.Services[0].Code = "PB0000002:1"
	doc.Services[0].Lines = []string{"2"}
	doc.VehicleJourneys[0].Service = "PB0000002:1"
	return doc
}

func TestExtractArchive(t *testing.T) {
	buf := testutil.BuildZip(t, map[string][]byte{
		"b/two.xml":  otherServiceDoc().XML(),
		"a/one.xml":  testutil.SingleRouteDoc().XML(),
		"readme.txt": []byte("not a timetable"),
		"a/":         nil,
	})

	b, err := ExtractArchive("feed.zip", buf, ArchiveOptions{})
	require.NoError(t, err)

	require.Equal(t, 2, len(b.Files))
	assert.Equal(t, "one.xml", b.Files[0].Name)
	assert.Equal(t, "two.xml", b.Files[1].Name)

	require.Equal(t, 2, len(b.Services))
	assert.Equal(t, "PB0000001:1", b.Services[0].Code)
	assert.Equal(t, "PB0000002:1", b.Services[1].Code)

	assert.Equal(t, 2, b.LineCount)
	assert.Equal(t, []string{"1A", "2"}, b.LineNames)
	assert.Equal(t, 4, b.TimingPointCount)
	assert.Equal(t, []string{"2.1", "2.4"}, b.SchemaVersions)
	assert.Equal(t, "2019-12-01T09:00:00Z", b.CreationDateTime.Format("2006-01-02T15:04:05Z07:00"))
	assert.Equal(t, "2020-03-01T09:00:00Z", b.ModificationDateTime.Format("2006-01-02T15:04:05Z07:00"))

	// Same stops in both documents, first seen wins.
	assert.Equal(t, 2, len(b.ProvisionalStops))
	assert.Equal(t, b.Files[0].ID, b.ProvisionalStops[0].FileID)
	assert.Equal(t, 2, b.StopCount())
}

func TestExtractArchiveOrderIndependent(t *testing.T) {
	files := map[string][]byte{
		"one.xml": testutil.SingleRouteDoc().XML(),
		"two.xml": otherServiceDoc().XML(),
	}
	a, err := ExtractArchive("a.zip", testutil.BuildZip(t, files), ArchiveOptions{})
	require.NoError(t, err)

	// Renaming so the other document sorts first flips service order
	// but not content.
	swapped := map[string][]byte{
		"2.xml": testutil.SingleRouteDoc().XML(),
		"1.xml": otherServiceDoc().XML(),
	}
	b, err := ExtractArchive("b.zip", testutil.BuildZip(t, swapped), ArchiveOptions{})
	require.NoError(t, err)

	assert.Equal(t, a.LineNames, b.LineNames)
	assert.Equal(t, a.TimingPointCount, b.TimingPointCount)
	assert.Equal(t, len(a.Services), len(b.Services))
	assert.Equal(t, "PB0000002:1", b.Services[0].Code)
}

func TestExtractArchiveSkipsMembers(t *testing.T) {
	buf := testutil.BuildZip(t, map[string][]byte{
		"__MACOSX/one.xml": []byte("garbage"),
		"dir/__junk.xml":   []byte("garbage"),
		"notes.txt":        []byte("garbage"),
		"ONE.XML":          testutil.SingleRouteDoc().XML(),
	})

	b, err := ExtractArchive("feed.zip", buf, ArchiveOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, len(b.Files))
}

func TestIsDocumentName(t *testing.T) {
	for name, expected := range map[string]bool{
		"a.xml":          true,
		"dir/a.XML":      true,
		"a.txt":          false,
		"__MACOSX/a.xml": false,
		"dir/__a.xml":    false,
		"xml":            false,
		"a.xml.zip":      false,
	} {
		assert.Equal(t, expected, IsDocumentName(name), name)
	}
}

func TestExtractArchiveErrors(t *testing.T) {
	missingLines := testutil.SingleRouteDoc()
	missingLines.Services[0].Lines = nil

	for _, tc := range []struct {
		name string
		buf  []byte
		opts ArchiveOptions
		kind FileErrorKind
	}{
		{
			"not_a_zip",
			[]byte("PK but not really"),
			ArchiveOptions{},
			FileErrorZipFile,
		},
		{
			"no_documents",
			testutil.BuildZip(t, map[string][]byte{"readme.txt": []byte("hi")}),
			ArchiveOptions{},
			FileErrorNoDataFound,
		},
		{
			"empty",
			testutil.BuildZip(t, map[string][]byte{}),
			ArchiveOptions{},
			FileErrorNoDataFound,
		},
		{
			"too_large",
			testutil.BuildZip(t, map[string][]byte{"one.xml": testutil.SingleRouteDoc().XML()}),
			ArchiveOptions{MaxUncompressedSize: 100},
			FileErrorZipTooLarge,
		},
		{
			"nested_zip",
			testutil.BuildZip(t, map[string][]byte{
				"one.xml":   testutil.SingleRouteDoc().XML(),
				"inner.zip": testutil.BuildZip(t, map[string][]byte{"two.xml": testutil.SingleRouteDoc().XML()}),
			}),
			ArchiveOptions{},
			FileErrorNestedZipForbidden,
		},
		{
			"member_fails",
			testutil.BuildZip(t, map[string][]byte{
				"one.xml": testutil.SingleRouteDoc().XML(),
				"two.xml": missingLines.XML(),
			}),
			ArchiveOptions{},
			FileErrorMissingLines,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ExtractArchive("feed.zip", tc.buf, tc.opts)
			assert.True(t, IsFileError(err, tc.kind), "unexpected error: %v", err)
		})
	}
}

func TestExtractArchiveMemberErrorNamesMember(t *testing.T) {
	missingLines := testutil.SingleRouteDoc()
	missingLines.Services[0].Lines = nil

	buf := testutil.BuildZip(t, map[string][]byte{"dir/bad.xml": missingLines.XML()})
	_, err := ExtractArchive("feed.zip", buf, ArchiveOptions{})

	var fe *FileError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "bad.xml", fe.Filename)
}

func TestExtractArchiveProgress(t *testing.T) {
	files := map[string][]byte{}
	for i := 0; i < 10; i++ {
		doc := testutil.SingleRouteDoc()
		doc.Services[0].Code = fmt.Sprintf("SVC%d", i)
		doc.VehicleJourneys[0].Service = doc.Services[0].Code
		files[fmt.Sprintf("doc%02d.xml", i)] = doc.XML()
	}

	reported := []int{}
	b, err := ExtractArchive("feed.zip", testutil.BuildZip(t, files), ArchiveOptions{
		Progress: func(percent int) { reported = append(reported, percent) },
	})
	require.NoError(t, err)
	assert.Equal(t, 10, len(b.Services))
	assert.Equal(t, []int{60, 70}, reported)
}
