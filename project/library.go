package project

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/altic-dev/PixelMark/internal/types"
)

const keyPrefix = "project:"

// Library is the persistent index of recording bundles, so listing recent
// projects never requires scanning the output directory.
type Library struct {
	db *badger.DB
}

// OpenLibrary opens (or creates) the index at dir.
func OpenLibrary(dir string) (*Library, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open library index: %w", err)
	}
	return &Library{db: db}, nil
}

// Close releases the index.
func (l *Library) Close() error {
	return l.db.Close()
}

// Put records a bundle in the index, replacing any entry with the same ID.
func (l *Library) Put(info types.ProjectInfo) error {
	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("marshal project info: %w", err)
	}
	err = l.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPrefix+info.ID), data)
	})
	if err != nil {
		return fmt.Errorf("index project: %w", err)
	}
	return nil
}

// Remove drops a bundle from the index. The bundle itself is untouched.
func (l *Library) Remove(id string) error {
	err := l.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(keyPrefix + id))
	})
	if err != nil {
		return fmt.Errorf("remove project: %w", err)
	}
	return nil
}

// Recent returns up to n bundles, newest first. Entries whose bundle
// directory no longer exists are pruned from the index as they are found.
func (l *Library) Recent(n int) ([]types.ProjectInfo, error) {
	var all []types.ProjectInfo
	err := l.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(keyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var info types.ProjectInfo
				if err := json.Unmarshal(val, &info); err != nil {
					// Corrupt entry; skip rather than fail the listing.
					return nil
				}
				all = append(all, info)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}

	kept := all[:0]
	for _, info := range all {
		if _, err := os.Stat(info.Path); err != nil {
			l.Remove(info.ID)
			continue
		}
		kept = append(kept, info)
	}

	sort.Slice(kept, func(i, j int) bool {
		return kept[i].CreatedAt.After(kept[j].CreatedAt)
	})
	if n > 0 && len(kept) > n {
		kept = kept[:n]
	}
	return kept, nil
}
