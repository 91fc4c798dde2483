package store

import (
	"context"

	"github.com/dunamismax/avatarframe/internal/domain"
)

type UsageStore interface {
	CreateUsageLog(ctx context.Context, usage domain.UsageLog) error
}
