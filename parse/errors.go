package parse

import (
	"errors"
	"fmt"
	"time"
)

type FileErrorKind int

const (
	FileErrorGeneric FileErrorKind = iota
	FileErrorZipFile
	FileErrorFileTooLarge
	FileErrorZipTooLarge
	FileErrorNestedZipForbidden
	FileErrorNoDataFound
	FileErrorXMLSyntax
	FileErrorDangerousXML
	FileErrorSchemaVersionMissing
	FileErrorSchemaVersionNotSupported
	FileErrorSchemaViolation
	FileErrorDatasetExpired
	FileErrorSuspiciousFile
	FileErrorMissingLines
)

var fileErrorKindNames = map[FileErrorKind]string{
	FileErrorGeneric:                   "FileError",
	FileErrorZipFile:                   "ZipFileError",
	FileErrorFileTooLarge:              "FileTooLarge",
	FileErrorZipTooLarge:               "ZipTooLarge",
	FileErrorNestedZipForbidden:        "NestedZipForbidden",
	FileErrorNoDataFound:               "NoDataFoundError",
	FileErrorXMLSyntax:                 "XMLSyntaxError",
	FileErrorDangerousXML:              "DangerousXMLError",
	FileErrorSchemaVersionMissing:      "SchemaVersionMissing",
	FileErrorSchemaVersionNotSupported: "SchemaVersionNotSupported",
	FileErrorSchemaViolation:           "SchemaError",
	FileErrorDatasetExpired:            "DatasetExpired",
	FileErrorSuspiciousFile:            "SuspiciousFile",
	FileErrorMissingLines:              "MissingLines",
}

func (k FileErrorKind) String() string {
	if name, ok := fileErrorKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("FileErrorKind(%d)", int(k))
}

// FileError is a problem with one specific input file. It is always
// fatal to the run.
type FileError struct {
	Filename string
	Kind     FileErrorKind
	Message  string
	Err      error
}

func (e *FileError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("An error occurred with file %s", e.Filename)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// IsFileError reports whether err is a FileError of the given kind.
func IsFileError(err error, kind FileErrorKind) bool {
	var fe *FileError
	return errors.As(err, &fe) && fe.Kind == kind
}

func newFileError(filename string, kind FileErrorKind, message string) *FileError {
	return &FileError{Filename: filename, Kind: kind, Message: message}
}

func ErrZipFile(filename string, err error) *FileError {
	return &FileError{
		Filename: filename,
		Kind:     FileErrorZipFile,
		Message:  fmt.Sprintf("File %s is not a valid zip file", filename),
		Err:      err,
	}
}

func ErrFileTooLarge(filename string, size, limit int64) *FileError {
	return newFileError(filename, FileErrorFileTooLarge,
		fmt.Sprintf("File %s is too large (%d bytes, limit %d)", filename, size, limit))
}

func ErrZipTooLarge(filename string, size, limit int64) *FileError {
	return newFileError(filename, FileErrorZipTooLarge,
		fmt.Sprintf("Uncompressed contents of %s are too large (%d bytes, limit %d)", filename, size, limit))
}

func ErrNestedZipForbidden(filename string) *FileError {
	return newFileError(filename, FileErrorNestedZipForbidden,
		fmt.Sprintf("Zip file %s contains another zip file.", filename))
}

func ErrNoDataFound(filename string) *FileError {
	return newFileError(filename, FileErrorNoDataFound,
		fmt.Sprintf("File %s contains no TransXChange data", filename))
}

func ErrXMLSyntax(filename string, err error) *FileError {
	return &FileError{
		Filename: filename,
		Kind:     FileErrorXMLSyntax,
		Message:  fmt.Sprintf("File %s is not well formed XML: %s", filename, err),
		Err:      err,
	}
}

func ErrDangerousXML(filename, construct string) *FileError {
	return newFileError(filename, FileErrorDangerousXML,
		fmt.Sprintf("File %s contains a forbidden XML construct: %s", filename, construct))
}

func ErrSchemaVersionMissing(filename string) *FileError {
	return newFileError(filename, FileErrorSchemaVersionMissing,
		"Missing schema. Document must define a valid SchemaVersion attribute. Valid values = 2.1 or 2.4.")
}

func ErrSchemaVersionNotSupported(filename, version string) *FileError {
	return newFileError(filename, FileErrorSchemaVersionNotSupported,
		fmt.Sprintf("Invalid schema version '%s'. Document must define a valid SchemaVersion attribute with a value = 2.1 or 2.4.", version))
}

func ErrSchemaViolation(filename, version string) *FileError {
	return newFileError(filename, FileErrorSchemaViolation,
		fmt.Sprintf("File %s is not compliant with schema http://www.transxchange.org.uk version %s", filename, version))
}

func ErrDatasetExpired(filename, serviceCode string, expired time.Time) *FileError {
	return newFileError(filename, FileErrorDatasetExpired,
		fmt.Sprintf("File %s has contains expired service '%s' (expired at: %s). ", filename, serviceCode, expired.Format(time.RFC3339)))
}

func ErrSuspiciousFile(filename, reason string) *FileError {
	return newFileError(filename, FileErrorSuspiciousFile,
		fmt.Sprintf("File %s has triggered an anti-virus alert. FOUND: '%s'.", filename, reason))
}

func ErrMissingLines(filename, serviceCode string) *FileError {
	return newFileError(filename, FileErrorMissingLines,
		fmt.Sprintf("File %s: service '%s' does not define any LineName", filename, serviceCode))
}
