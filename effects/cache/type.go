package cache

import (
	"time"

	"github.com/google/uuid"
	"github.com/on-the-ground/effect_ive_runtime/effects"
)

// Effect is the sealed set of cache effects.
type Effect interface {
	effects.Effect
	cacheEffect()
}

type GetCachedProfile struct {
	UserID uuid.UUID
}

func (GetCachedProfile) EffectTag() string { return "GetCachedProfile" }
func (GetCachedProfile) cacheEffect()      {}

// PutCachedProfile stores a profile; a zero TTL means the interpreter default.
type PutCachedProfile struct {
	UserID  uuid.UUID
	Profile ProfileData
	TTL     time.Duration
}

func (PutCachedProfile) EffectTag() string { return "PutCachedProfile" }
func (PutCachedProfile) cacheEffect()      {}

type GetCachedValue struct {
	Key string
}

func (GetCachedValue) EffectTag() string { return "GetCachedValue" }
func (GetCachedValue) cacheEffect()      {}

// PutCachedValue stores raw bytes; a zero TTL means the interpreter default.
type PutCachedValue struct {
	Key   string
	Value []byte
	TTL   time.Duration
}

func (PutCachedValue) EffectTag() string { return "PutCachedValue" }
func (PutCachedValue) cacheEffect()      {}

type InvalidateCache struct {
	Key string
}

func (InvalidateCache) EffectTag() string { return "InvalidateCache" }
func (InvalidateCache) cacheEffect()      {}

// ProfileKey is the cache key under which a user's profile is stored, so
// InvalidateCache{Key: ProfileKey(id)} drops a cached profile.
func ProfileKey(userID uuid.UUID) string {
	return "profile:" + userID.String()
}

type ProfileData struct {
	UserID uuid.UUID
	Name   string
	Email  string
}

// Lookup is the outcome of a cache read: CacheHit or CacheMiss.
type Lookup interface {
	cacheLookup()
}

// CacheHit carries the stored value: ProfileData for profile reads, []byte
// for value reads.
type CacheHit struct {
	Key   string
	Value any
}

func (CacheHit) cacheLookup() {}

type CacheMiss struct {
	Key string
}

func (CacheMiss) cacheLookup() {}

type Stored struct {
	Key       string
	ExpiresIn time.Duration
}

type Invalidated struct {
	Key     string
	Existed bool
}
