package pbclient

import (
	"path"
	"strings"
)

// FileFieldKind tags the two shapes a record's file-bearing value can take.
type FileFieldKind int

const (
	// FileNone means no file value could be resolved from the record.
	FileNone FileFieldKind = iota
	// FileURL means the record carried a pre-built absolute URL.
	FileURL
	// FileStored means the record carried a data-service storage filename.
	FileStored
)

// FileField is the resolved form of a record's file value. Records coming
// back from the data service are untyped maps where a file field is sometimes
// a stored filename, sometimes an absolute URL and sometimes a list; callers
// resolve once through ResolveFileField and never re-inspect map shapes.
type FileField struct {
	Kind FileFieldKind
	// Value is the raw resolved string: an absolute URL for FileURL, a
	// storage filename or path for FileStored. May still carry a query
	// string; Filename strips it.
	Value string
}

// Filename returns just the file name component of the field, with any query
// string removed. Empty for FileNone.
func (f FileField) Filename() string {
	if f.Kind == FileNone {
		return ""
	}
	value := f.Value
	if i := strings.IndexByte(value, '?'); i >= 0 {
		value = value[:i]
	}
	return path.Base(value)
}

// ResolveFileField extracts the file value from a record, trying the given
// candidate field names in order and then falling back to scanning every
// string field for an embedded storage-path marker.
func ResolveFileField(record map[string]any, candidates ...string) FileField {
	for _, name := range candidates {
		if field, ok := fileFieldValue(record[name]); ok {
			return field
		}
	}
	// Last resort: any string field that embeds a data-service file path.
	for _, value := range record {
		s, ok := value.(string)
		if !ok || !strings.Contains(s, "/api/files/") {
			continue
		}
		if field, ok := fileFieldValue(s); ok {
			return field
		}
	}
	return FileField{}
}

func fileFieldValue(value any) (FileField, bool) {
	switch v := value.(type) {
	case string:
		if v == "" {
			return FileField{}, false
		}
		if strings.HasPrefix(v, "http://") || strings.HasPrefix(v, "https://") {
			return FileField{Kind: FileURL, Value: v}, true
		}
		return FileField{Kind: FileStored, Value: v}, true
	case []any:
		if len(v) == 0 {
			return FileField{}, false
		}
		return fileFieldValue(v[0])
	case map[string]any:
		if nested, ok := fileFieldValue(v["url"]); ok {
			return nested, true
		}
		return fileFieldValue(v["path"])
	default:
		return FileField{}, false
	}
}

// PublicFileURL builds the externally visible URL for a stored file. The
// configured public file domain is always used, never the data service's own
// origin, and its default URL scheme (which embeds the renameable collection
// name) is bypassed in favor of the stable collection id.
func PublicFileURL(fileDomain, collectionID, recordID string, field FileField) string {
	filename := field.Filename()
	if filename == "" || filename == "." || filename == "/" {
		return ""
	}
	return strings.TrimRight(fileDomain, "/") + "/api/files/" + collectionID + "/" + recordID + "/" + filename
}
