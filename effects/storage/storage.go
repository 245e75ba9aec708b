// Package storage holds the object storage effect family and its interpreter.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/on-the-ground/effect_ive_runtime/effects"
	"github.com/on-the-ground/effect_ive_runtime/effects/retry"
)

const Name = "storage"

// ObjectStore is the object storage capability.
type ObjectStore interface {
	Get(ctx context.Context, bucket, key string) (GetResult, error)
	Put(ctx context.Context, bucket, key string, content []byte, contentType string, metadata map[string]string) (PutResult, error)
	Delete(ctx context.Context, bucket, key string) error
	List(ctx context.Context, bucket, prefix string, maxKeys int) ([]string, error)
}

var ErrNilStore = errors.New("storage: nil object store")

type Interpreter struct {
	store ObjectStore
}

func NewInterpreter(store ObjectStore) (*Interpreter, error) {
	if store == nil {
		return nil, ErrNilStore
	}
	return &Interpreter{store: store}, nil
}

func (i *Interpreter) Interpret(ctx context.Context, eff effects.Effect) effects.InterpretResult {
	e, ok := effects.Concrete(eff).(Effect)
	if !ok {
		return effects.Unhandled(eff, Name)
	}

	var (
		res any
		err error
	)
	switch e := e.(type) {
	case GetObject:
		res, err = effects.Safely(func() (GetResult, error) {
			return i.store.Get(ctx, e.Bucket, e.Key)
		})
	case PutObject:
		var put PutResult
		put, err = effects.Safely(func() (PutResult, error) {
			return i.store.Put(ctx, e.Bucket, e.Key, e.Content, e.ContentType, e.Metadata)
		})
		if failure, failed := put.(PutFailure); err == nil && failed {
			return effects.Failed(effects.NewStorageError(
				eff,
				fmt.Sprintf("put %s/%s failed: %s", failure.Bucket, failure.Key, failure.Reason),
				retry.Storage.ClassifyMessage(failure.Reason),
				nil,
			))
		}
		res = put
	case DeleteObject:
		res, err = effects.Safely(func() (ObjectDeleted, error) {
			return ObjectDeleted{Bucket: e.Bucket, Key: e.Key}, i.store.Delete(ctx, e.Bucket, e.Key)
		})
	case ListObjects:
		res, err = effects.Safely(func() ([]string, error) {
			return i.store.List(ctx, e.Bucket, e.Prefix, e.MaxKeys)
		})
	default:
		panic(fmt.Errorf("invalid storage effect type: %T", e))
	}

	if err != nil {
		return effects.Failed(effects.NewStorageError(eff, err.Error(), retry.Storage.Classify(err), err))
	}
	return effects.Returned(eff, res)
}
