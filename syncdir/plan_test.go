package syncdir_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/h2kv/h2kv/syncdir"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name                 string
		file, record, marker string
		want                 syncdir.Class
	}{
		{name: "fresh file", file: "f", want: syncdir.ClassNew},
		{name: "record deleted then file edited", file: "f2", marker: "f1", want: syncdir.ClassNew},
		{name: "record deleted over http", file: "f", marker: "f", want: syncdir.ClassStorageDeleted},
		{name: "in agreement", file: "h", record: "h", marker: "h", want: syncdir.ClassUnchanged},
		{name: "agreement without marker", file: "h", record: "h", want: syncdir.ClassUnchanged},
		{name: "record put over http", file: "f", record: "r", marker: "f", want: syncdir.ClassStorageModified},
		{name: "file edited", file: "f2", record: "f1", marker: "f1", want: syncdir.ClassModified},
		{name: "both edited", file: "f2", record: "r2", marker: "x", want: syncdir.ClassModified},
		{name: "file and record never synced", file: "f", record: "r", want: syncdir.ClassModified},
		{name: "file gone", record: "r", marker: "r", want: syncdir.ClassRemovedFromFilesystem},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, syncdir.Classify(tt.file, tt.record, tt.marker))
		})
	}
}

func TestClassString(t *testing.T) {
	assert.Equal(t, "new", syncdir.ClassNew.String())
	assert.Equal(t, "storage_deleted", syncdir.ClassStorageDeleted.String())
	assert.Equal(t, "importing", syncdir.StateImporting.String())
}
