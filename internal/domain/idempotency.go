package domain

import (
	"time"

	"github.com/google/uuid"

	"github.com/kevin07696/subscription-service/pkg/timeutil"
)

// idempotencyNamespace scopes derived keys so they never collide with other uuid v5 users
var idempotencyNamespace = uuid.MustParse("6f0f4a52-8c51-4d8e-9a3c-2f1b7c0e5d21")

// IdempotencyKey derives the gateway key for one logical checkout. The same
// user, plan and UTC start day always map to the same key.
func IdempotencyKey(userID string, plan PlanType, intendedStart time.Time) string {
	day := timeutil.StartOfDay(intendedStart).Format("2006-01-02")
	return uuid.NewSHA1(idempotencyNamespace, []byte(userID+"|"+string(plan)+"|"+day)).String()
}
