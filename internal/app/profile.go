package app

import (
	"time"

	"github.com/google/uuid"
	"github.com/on-the-ground/effect_ive_runtime/effects"
	"github.com/on-the-ground/effect_ive_runtime/effects/cache"
	"github.com/on-the-ground/effect_ive_runtime/effects/database"
)

// ProfileTTL is how long a profile stays cached after a lookup.
const ProfileTTL = 10 * time.Minute

// Profile is the outcome of GetProfile.
type Profile struct {
	Data   cache.ProfileData
	Found  bool
	Cached bool
}

// GetProfile reads a profile through the cache. A miss falls back to the
// database and fills the cache; an unknown user is not cached.
func GetProfile(userID uuid.UUID) effects.Program[Profile] {
	return func(yield effects.Yield) Profile {
		if hit, ok := effects.Perform[cache.Lookup](yield, cache.GetCachedProfile{UserID: userID}).(cache.CacheHit); ok {
			return Profile{Data: hit.Value.(cache.ProfileData), Found: true, Cached: true}
		}

		switch found := effects.Perform[database.UserLookup](yield, database.GetUserByID{UserID: userID}).(type) {
		case database.UserFound:
			data := cache.ProfileData{UserID: found.User.ID, Name: found.User.Name, Email: found.User.Email}
			effects.Perform[cache.Stored](yield, cache.PutCachedProfile{UserID: userID, Profile: data, TTL: ProfileTTL})
			return Profile{Data: data, Found: true}
		case database.UserNotFound:
			return Profile{}
		default:
			panic("unreachable")
		}
	}
}

// RenameUser updates a user's name and drops the stale cached profile.
func RenameUser(userID uuid.UUID, name string) effects.Program[database.UserLookup] {
	return func(yield effects.Yield) database.UserLookup {
		updated := effects.Perform[database.UserLookup](yield, database.UpdateUser{UserID: userID, Name: name})
		if _, ok := updated.(database.UserFound); ok {
			effects.Perform[cache.Invalidated](yield, cache.InvalidateCache{Key: cache.ProfileKey(userID)})
		}
		return updated
	}
}
