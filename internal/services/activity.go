package services

import (
	"context"

	"github.com/rs/zerolog/log"

	"letsconnect/internal/clock"
	"letsconnect/internal/models"
	"letsconnect/internal/repositories"
)

// activityLog writes audit entries. A failed write is logged and never
// fails the operation being audited.
type activityLog struct {
	repo  repositories.ActivityRepository
	clock clock.Clock
}

func (a activityLog) record(ctx context.Context, email, sessionToken string, typ models.ActivityType, detail string) {
	if a.repo == nil {
		return
	}
	entry := &models.Activity{
		Email:        email,
		SessionToken: sessionToken,
		Type:         typ,
		Detail:       detail,
		CreatedAt:    a.clock.Now(),
	}
	if err := a.repo.Create(ctx, entry); err != nil {
		log.Warn().Err(err).Str("email", email).Str("activity", string(typ)).Msg("Could not record activity")
	}
}
