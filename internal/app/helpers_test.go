package app_test

import (
	"github.com/google/uuid"
	"github.com/on-the-ground/effect_ive_runtime/effects"
	"github.com/on-the-ground/effect_ive_runtime/effects/cache"
)

func cacheGet(id uuid.UUID) cache.GetCachedProfile {
	return cache.GetCachedProfile{UserID: id}
}

func cacheMiss(eff effects.Effect) cache.Lookup {
	return cache.CacheMiss{Key: cache.ProfileKey(eff.(cache.GetCachedProfile).UserID)}
}
