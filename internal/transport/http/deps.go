package http

import (
	"github.com/go-carrier-billing/internal/application/operators"
	"github.com/go-carrier-billing/internal/infrastructure/dynamo"
	jwtinfra "github.com/go-carrier-billing/internal/infrastructure/jwt"
	s3infra "github.com/go-carrier-billing/internal/infrastructure/s3"
	"github.com/go-carrier-billing/internal/infrastructure/sns"
	"github.com/go-carrier-billing/internal/infrastructure/upstream"
	"github.com/go-carrier-billing/internal/pkg/clock"
)

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	Operators      *operators.Table
	Gateway        *upstream.Gateway
	RecordRepo     *dynamo.BillingRecordRepo
	SubRepo        *dynamo.SubscriptionRepo
	AnonRefRepo    *dynamo.AnonymousRefRepo
	WebhookArchive *s3infra.Archive
	SMSSender      sns.SMSSender
	JWTProvider    *jwtinfra.Provider
	Clock          clock.Clock
}
