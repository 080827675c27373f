// Copyright 2025 James Ross
package outbox

import "github.com/google/uuid"

// newApprovalToken generates an unguessable per-row token that must
// accompany a decide-approval call, so an approval link can't be
// forged from the row id alone.
func newApprovalToken() string {
	return uuid.NewString()
}
