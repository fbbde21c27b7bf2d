package badger

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	badgerdb "github.com/dgraph-io/badger/v4"
	jsoniter "github.com/json-iterator/go"

	"github.com/libraryapi/library-server/internal/store"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// entity stores values of type T under prefix+id and maintains their secondary indexes.
// Every method works inside a caller-supplied transaction so several entities can be
// changed atomically.
type entity[T any] struct {
	prefix  string
	unique  []uniqueIndex[T]
	multi   []multiIndex[T]
	idOf    func(*T) int64
	idxBase string
}

// uniqueIndex maps one value to exactly one entity. Writing a second entity with the same
// value fails with conflict. keyFn reports false when the entity is not indexed.
type uniqueIndex[T any] struct {
	name     string
	keyFn    func(*T) (string, bool)
	conflict error
}

// multiIndex maps a value to any number of entities; keys are value:id so a prefix scan
// returns every id for the value.
type multiIndex[T any] struct {
	name  string
	keyFn func(*T) string
}

func newEntity[T any](prefix string, idOf func(*T) int64) *entity[T] {
	return &entity[T]{prefix: prefix, idOf: idOf, idxBase: prefix + "idx:"}
}

// withUnique adds a unique index whose violation is reported as conflict.
func (e *entity[T]) withUnique(name string, keyFn func(*T) (string, bool), conflict error) *entity[T] {
	e.unique = append(e.unique, uniqueIndex[T]{name: name, keyFn: keyFn, conflict: conflict})
	return e
}

// withIndex adds a non-unique index.
func (e *entity[T]) withIndex(name string, keyFn func(*T) string) *entity[T] {
	e.multi = append(e.multi, multiIndex[T]{name: name, keyFn: keyFn})
	return e
}

func encodeID(id int64) string {
	return fmt.Sprintf("%020d", id)
}

func (e *entity[T]) key(id int64) []byte {
	return []byte(e.prefix + encodeID(id))
}

func (e *entity[T]) uniqueKey(name, value string) []byte {
	return []byte(e.idxBase + name + ":" + value)
}

func (e *entity[T]) multiPrefix(name, value string) string {
	return e.idxBase + name + ":" + value + ":"
}

// get loads the entity with id. Returns store.ErrNotFound if it does not exist.
func (e *entity[T]) get(txn *badgerdb.Txn, id int64) (*T, error) {
	item, err := txn.Get(e.key(id))
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get key: %w", err)
	}

	var v T
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &v)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal entity: %w", err)
	}
	return &v, nil
}

// lookup resolves a unique index value to an id. Returns store.ErrNotFound if unset.
func (e *entity[T]) lookup(txn *badgerdb.Txn, index, value string) (int64, error) {
	item, err := txn.Get(e.uniqueKey(index, value))
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return 0, store.ErrNotFound
	}
	if err != nil {
		return 0, err
	}

	var id int64
	err = item.Value(func(val []byte) error {
		id, err = strconv.ParseInt(string(val), 10, 64)
		return err
	})
	return id, err
}

// exists reports whether a unique index value is taken.
func (e *entity[T]) exists(txn *badgerdb.Txn, index, value string) (bool, error) {
	_, err := e.lookup(txn, index, value)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// insert writes a new entity and its index keys.
func (e *entity[T]) insert(txn *badgerdb.Txn, v *T) error {
	return e.write(txn, nil, v)
}

// replace overwrites an existing entity, moving any index keys that changed.
// Returns store.ErrNotFound if the entity does not exist.
func (e *entity[T]) replace(txn *badgerdb.Txn, v *T) error {
	old, err := e.get(txn, e.idOf(v))
	if err != nil {
		return err
	}
	return e.write(txn, old, v)
}

func (e *entity[T]) write(txn *badgerdb.Txn, old, v *T) error {
	id := e.idOf(v)
	idStr := strconv.FormatInt(id, 10)

	for _, idx := range e.unique {
		newKey, indexed := idx.keyFn(v)
		if old != nil {
			oldKey, wasIndexed := idx.keyFn(old)
			if wasIndexed && indexed && oldKey == newKey {
				continue
			}
			if wasIndexed {
				if err := txn.Delete(e.uniqueKey(idx.name, oldKey)); err != nil {
					return fmt.Errorf("failed to delete old index key: %w", err)
				}
			}
		}
		if !indexed {
			continue
		}

		key := e.uniqueKey(idx.name, newKey)
		_, err := txn.Get(key)
		if err == nil {
			return idx.conflict
		}
		if !errors.Is(err, badgerdb.ErrKeyNotFound) {
			return fmt.Errorf("failed to check index key: %w", err)
		}
		if err := txn.Set(key, []byte(idStr)); err != nil {
			return fmt.Errorf("failed to set index key: %w", err)
		}
	}

	for _, idx := range e.multi {
		newKey := e.multiPrefix(idx.name, idx.keyFn(v)) + encodeID(id)
		if old != nil {
			oldKey := e.multiPrefix(idx.name, idx.keyFn(old)) + encodeID(id)
			if oldKey == newKey {
				continue
			}
			if err := txn.Delete([]byte(oldKey)); err != nil {
				return fmt.Errorf("failed to delete old index key: %w", err)
			}
		}
		if err := txn.Set([]byte(newKey), nil); err != nil {
			return fmt.Errorf("failed to set index key: %w", err)
		}
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal entity: %w", err)
	}
	if err := txn.Set(e.key(id), data); err != nil {
		return fmt.Errorf("failed to set key: %w", err)
	}
	return nil
}

// remove deletes the entity and all of its index keys.
// Returns store.ErrNotFound if the entity does not exist.
func (e *entity[T]) remove(txn *badgerdb.Txn, id int64) error {
	v, err := e.get(txn, id)
	if err != nil {
		return err
	}

	for _, idx := range e.unique {
		if key, indexed := idx.keyFn(v); indexed {
			if err := txn.Delete(e.uniqueKey(idx.name, key)); err != nil {
				return fmt.Errorf("failed to delete index key: %w", err)
			}
		}
	}
	for _, idx := range e.multi {
		key := e.multiPrefix(idx.name, idx.keyFn(v)) + encodeID(id)
		if err := txn.Delete([]byte(key)); err != nil {
			return fmt.Errorf("failed to delete index key: %w", err)
		}
	}

	if err := txn.Delete(e.key(id)); err != nil {
		return fmt.Errorf("failed to delete key: %w", err)
	}
	return nil
}

// idsByIndex returns the ids stored under a non-unique index value, in id order.
func (e *entity[T]) idsByIndex(txn *badgerdb.Txn, index, value string) ([]int64, error) {
	prefix := []byte(e.multiPrefix(index, value))

	opts := badgerdb.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = false

	it := txn.NewIterator(opts)
	defer it.Close()

	var ids []int64
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		raw := strings.TrimPrefix(string(it.Item().Key()), string(prefix))
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("corrupt index key %q: %w", it.Item().Key(), err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// scan calls fn for every entity in id order until fn returns false.
func (e *entity[T]) scan(txn *badgerdb.Txn, fn func(*T) bool) error {
	prefix := []byte(e.prefix)

	opts := badgerdb.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = true

	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		if strings.HasPrefix(string(it.Item().Key()), e.idxBase) {
			continue
		}

		var v T
		err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &v)
		})
		if err != nil {
			return fmt.Errorf("failed to unmarshal entity: %w", err)
		}
		if !fn(&v) {
			return nil
		}
	}
	return nil
}
