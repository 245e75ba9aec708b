package storage

import (
	"time"

	"github.com/on-the-ground/effect_ive_runtime/effects"
)

// Effect is the sealed set of object storage effects.
type Effect interface {
	effects.Effect
	storageEffect()
}

type GetObject struct {
	Bucket string
	Key    string
}

func (GetObject) EffectTag() string { return "GetObject" }
func (GetObject) storageEffect()    {}

type PutObject struct {
	Bucket      string
	Key         string
	Content     []byte
	ContentType string
	Metadata    map[string]string
}

func (PutObject) EffectTag() string { return "PutObject" }
func (PutObject) storageEffect()    {}

type DeleteObject struct {
	Bucket string
	Key    string
}

func (DeleteObject) EffectTag() string { return "DeleteObject" }
func (DeleteObject) storageEffect()    {}

// ListObjects lists keys under Prefix; MaxKeys <= 0 means no limit.
type ListObjects struct {
	Bucket  string
	Prefix  string
	MaxKeys int
}

func (ListObjects) EffectTag() string { return "ListObjects" }
func (ListObjects) storageEffect()    {}

// GetResult is Object or ObjectNotFound.
type GetResult interface {
	getResult()
}

type Object struct {
	Bucket       string
	Key          string
	Content      []byte
	ContentType  string
	Metadata     map[string]string
	Size         int
	ETag         string
	LastModified time.Time
}

func (Object) getResult() {}

type ObjectNotFound struct {
	Bucket string
	Key    string
}

func (ObjectNotFound) getResult() {}

// PutResult is PutSuccess or PutFailure.
type PutResult interface {
	putResult()
}

type PutSuccess struct {
	Bucket string
	Key    string
	ETag   string
}

func (PutSuccess) putResult() {}

type PutFailure struct {
	Bucket string
	Key    string
	Reason string
}

func (PutFailure) putResult() {}

type ObjectDeleted struct {
	Bucket string
	Key    string
}
