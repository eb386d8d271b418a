package scans

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/jedib0t/go-pretty/v6/progress"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// GetSlices returns every slice of a subject, ordered by slice index.
// Cached slices are served from the local leveldb store; a subject with no
// cached slices is fetched from the dataset endpoint and cached for the
// next run.
func GetSlices(db *leveldb.DB, pw progress.Writer, baseURL, scanner, subject string) ([]Slice, error) {
	out := []Slice{}

	prefix := fmt.Appendf([]byte{}, "%s/%s/", scanner, subject)
	iter := db.NewIterator(util.BytesPrefix(prefix), nil)
	for iter.Next() {
		var s Slice
		if err := json.Unmarshal(iter.Value(), &s); err != nil {
			continue
		}
		out = append(out, s)
	}
	iter.Release()

	if len(out) == 0 {
		fetched, err := fetchSubject(pw, baseURL, scanner, subject)
		if err != nil {
			return nil, err
		}
		for _, s := range fetched {
			if err := PutSlice(db, s); err != nil {
				return nil, err
			}
		}
		out = fetched
	}

	slices.SortFunc(out, func(a, b Slice) int {
		return a.Index - b.Index
	})
	out = slices.CompactFunc(out, func(a, b Slice) bool {
		return a.Index == b.Index
	})

	return out, nil
}

// PutSlice stores one slice in the cache under its scanner/subject/index
// key.
func PutSlice(db *leveldb.DB, s Slice) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("scans: failed to marshal slice %s/%s/%d: %v", s.Scanner, s.Subject, s.Index, err)
	}
	if err := db.Put(s.key(), data, nil); err != nil {
		return fmt.Errorf("scans: failed to cache slice %s/%s/%d: %v", s.Scanner, s.Subject, s.Index, err)
	}
	return nil
}
