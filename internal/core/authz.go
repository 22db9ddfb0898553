package core

import (
	"context"
	"plantingcore/pkg/domain"
)

// Authorizer decides whether the caller in ctx may read an observation, site
// or organization. It is consulted before any data is read; a denial surfaces
// as domain.ErrNotFound so existence is not leaked.
type Authorizer interface {
	CanRead(ctx context.Context, entity domain.EntityType, id string) bool
}

// AuthorizerFunc adapts a function to Authorizer.
type AuthorizerFunc func(ctx context.Context, entity domain.EntityType, id string) bool

// CanRead implements Authorizer.
func (f AuthorizerFunc) CanRead(ctx context.Context, entity domain.EntityType, id string) bool {
	return f(ctx, entity, id)
}

// AllowAll permits every read.
var AllowAll Authorizer = AuthorizerFunc(func(context.Context, domain.EntityType, string) bool { return true })

func (s *Service) authorize(ctx context.Context, entity domain.EntityType, id string) error {
	if s.authz.CanRead(ctx, entity, id) {
		return nil
	}
	s.logger.Debug("read denied", "entity", string(entity), "id", id)
	return domain.ErrNotFound{Entity: entity, ID: id}
}
