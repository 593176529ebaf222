package repositories

import (
	"github.com/GX-mob/gx-service-template/internal/core/domain/auth"
	"github.com/GX-mob/gx-service-template/internal/core/domain/session"
	"github.com/GX-mob/gx-service-template/internal/core/domain/user"
	"github.com/GX-mob/gx-service-template/internal/infrastructure/cache"
)

var userFields = []cache.Field{
	{Name: "id", Type: cache.String},
	{Name: "first_name", Type: cache.String},
	{Name: "last_name", Type: cache.String},
	{Name: "cpf", Type: cache.String},
	{Name: "primary_email", Type: cache.String},
	{Name: "primary_phone", Type: cache.String},
	{Name: "birth", Type: cache.Time},
	{Name: "groups", Type: cache.IntList},
	{Name: "credential", Type: cache.String},
	{Name: "created_at", Type: cache.Time},
	{Name: "updated_at", Type: cache.Time},
}

var sessionFields = []cache.Field{
	{Name: "id", Type: cache.String},
	{Name: "user_id", Type: cache.String},
	{Name: "groups", Type: cache.IntList},
	{Name: "user_agent", Type: cache.String},
	{Name: "ips", Type: cache.StringList},
	{Name: "active", Type: cache.Bool},
	{Name: "created_at", Type: cache.Time},
	{Name: "updated_at", Type: cache.Time},
}

var tokenFields = []cache.Field{
	{Name: "sid", Type: cache.String},
	{Name: "uid", Type: cache.String},
	{Name: "iat", Type: cache.Int64},
}

// RegisterSchemas declares the binary cache layout of every namespace the
// service writes. It must run before the first cache write.
func RegisterSchemas(reg *cache.SchemaRegistry) error {
	for ns, fields := range map[string][]cache.Field{
		user.Namespace:      userFields,
		session.Namespace:   sessionFields,
		auth.TokenNamespace: tokenFields,
	} {
		if err := reg.Register(ns, fields...); err != nil {
			return err
		}
	}
	return nil
}
