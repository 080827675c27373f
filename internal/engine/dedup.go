// Copyright 2025 James Ross
package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/flyingrobots/pigtrack/internal/model"
)

// dedupBucket is the span repeat firings of a point-in-time
// notification (a POI passage, a gap crossing, a run completion) are
// folded into. It is coarse enough that a pig crossing the same POI
// twice in the same stretch of a run collapses to one fingerprint,
// while distinct runs on different days produce distinct ones.
const dedupBucket = 24 * time.Hour

// buildDedupKey computes the fingerprint for a notification. The key
// always includes pig_id and notif_type; identity carries the target
// (a POI tag, a gap's route+kind) for types where distinct targets
// must produce distinct keys. Periodic updates have no target and
// instead key off a cadence-window bucket so at most one update per
// bucket per pig can ever be enqueued.
func buildDedupKey(pigID string, notif model.NotifType, identity string, now time.Time) string {
	bucket := now.Truncate(dedupBucket)
	if notif == model.NotifPeriodicUpdate {
		bucket = now.Truncate(periodicUpdateInterval)
	}
	raw := fmt.Sprintf("%s|%s|%s|%d", pigID, notif, identity, bucket.Unix())
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
