package memdb

import (
	"context"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/on-the-ground/effect_ive_runtime/effects/storage"
)

var _ storage.ObjectStore = (*Objects)(nil)

type objectRecord struct {
	Path   string
	Object storage.Object
}

// Objects is an object store keyed by "bucket/key".
type Objects struct {
	store *Store
}

func path(bucket, key string) string { return bucket + "/" + key }

func (o *Objects) Get(_ context.Context, bucket, key string) (storage.GetResult, error) {
	txn := o.store.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(tableObject, "id", path(bucket, key))
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return storage.ObjectNotFound{Bucket: bucket, Key: key}, nil
	}
	return raw.(*objectRecord).Object, nil
}

func (o *Objects) Put(
	_ context.Context,
	bucket, key string,
	content []byte,
	contentType string,
	metadata map[string]string,
) (storage.PutResult, error) {
	if bucket == "" || key == "" {
		return storage.PutFailure{Bucket: bucket, Key: key, Reason: "invalid object path"}, nil
	}

	txn := o.store.db.Txn(true)
	defer txn.Abort()

	obj := storage.Object{
		Bucket:       bucket,
		Key:          key,
		Content:      append([]byte(nil), content...),
		ContentType:  contentType,
		Metadata:     metadata,
		Size:         len(content),
		ETag:         fmt.Sprintf("%016x", xxhash.Sum64(content)),
		LastModified: o.store.now(),
	}
	if err := txn.Insert(tableObject, &objectRecord{Path: path(bucket, key), Object: obj}); err != nil {
		return nil, err
	}
	txn.Commit()
	return storage.PutSuccess{Bucket: bucket, Key: key, ETag: obj.ETag}, nil
}

// Delete is idempotent.
func (o *Objects) Delete(_ context.Context, bucket, key string) error {
	txn := o.store.db.Txn(true)
	defer txn.Abort()

	if _, err := txn.DeleteAll(tableObject, "id", path(bucket, key)); err != nil {
		return err
	}
	txn.Commit()
	return nil
}

// List returns keys in lexical order.
func (o *Objects) List(_ context.Context, bucket, prefix string, maxKeys int) ([]string, error) {
	txn := o.store.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(tableObject, "id_prefix", path(bucket, prefix))
	if err != nil {
		return nil, err
	}
	return collect(it, maxKeys, 0, func(raw any) string {
		return strings.TrimPrefix(raw.(*objectRecord).Path, bucket+"/")
	}), nil
}
