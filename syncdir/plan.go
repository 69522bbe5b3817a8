package syncdir

import (
	"time"

	"github.com/h2kv/h2kv"
)

// Class is the outcome of comparing one pair across the sync directory,
// the store and its sync marker.
type Class int

const (
	// ClassNew: the file has no record yet.
	ClassNew Class = iota
	// ClassModified: the file changed since the last sync.
	ClassModified
	// ClassUnchanged: file and record hold the same content.
	ClassUnchanged
	// ClassRemovedFromFilesystem: a synced file is gone. Storage keeps it.
	ClassRemovedFromFilesystem
	// ClassStorageModified: the record changed over HTTP, the file did not.
	ClassStorageModified
	// ClassStorageDeleted: the record was deleted over HTTP, the file did
	// not change.
	ClassStorageDeleted
)

func (c Class) String() string {
	switch c {
	case ClassNew:
		return "new"
	case ClassModified:
		return "modified"
	case ClassUnchanged:
		return "unchanged"
	case ClassRemovedFromFilesystem:
		return "removed_from_filesystem"
	case ClassStorageModified:
		return "storage_modified"
	case ClassStorageDeleted:
		return "storage_deleted"
	default:
		return "unknown"
	}
}

// Classify compares the file hash, the stored record hash and the sync
// marker hash of one pair. An empty hash means that side is absent.
func Classify(file, record, marker string) Class {
	switch {
	case file == "":
		return ClassRemovedFromFilesystem
	case record == "":
		if marker != "" && marker == file {
			return ClassStorageDeleted
		}
		return ClassNew
	case file == record:
		return ClassUnchanged
	case marker == file:
		return ClassStorageModified
	default:
		return ClassModified
	}
}

// Item is one classified pair.
type Item struct {
	Path           string
	Key            string
	Representation h2kv.Representation
	Class          Class

	FileHash   string
	RecordHash string
	MarkerHash string

	Size    int64
	ModTime time.Time
}

// Plan is the result of the diffing phase, in path order for manifest
// entries followed by pairs only the markers know about.
type Plan struct {
	Items []Item
}

// Count returns the number of items of class c.
func (p Plan) Count(c Class) int {
	n := 0
	for _, it := range p.Items {
		if it.Class == c {
			n++
		}
	}
	return n
}
