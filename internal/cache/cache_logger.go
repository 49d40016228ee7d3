package cache

import (
	"context"
	"log/slog"
)

// SafeDelete deletes cache keys and logs instead of failing
func SafeDelete(ctx context.Context, helper *CacheHelper, keys ...string) {
	if err := helper.Delete(ctx, keys...); err != nil {
		slog.ErrorContext(ctx, "Failed to delete cache keys",
			"error", err,
			"keys", keys)
	}
}

// SafeInvalidatePattern invalidates a key pattern and logs instead of failing
func SafeInvalidatePattern(ctx context.Context, helper *CacheHelper, pattern string) {
	if err := helper.InvalidatePattern(ctx, pattern); err != nil {
		slog.ErrorContext(ctx, "Failed to invalidate cache pattern",
			"error", err,
			"pattern", pattern)
	}
}

// InvalidateProfiles drops every cached profile listing
func InvalidateProfiles(ctx context.Context, cm *CacheManager) {
	SafeInvalidatePattern(ctx, cm.Profile, "list:*")
}

func InvalidateStudent(ctx context.Context, cm *CacheManager, studentID string) {
	SafeDelete(ctx, cm.Student, "id:"+studentID)
}
