package grpc

import (
	"context"

	"github.com/vibast-solutions/ms-go-autonomax/app/middleware"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const MetadataAdminKey = "x-admin-key"

// AdminKeyInterceptor requires the admin secret in the x-admin-key metadata.
func AdminKeyInterceptor(secret string) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if secret == "" {
			return nil, status.Error(codes.Internal, "ADMIN_SECRET_KEY not configured")
		}
		var provided string
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if values := md.Get(MetadataAdminKey); len(values) > 0 {
				provided = values[0]
			}
		}
		if !middleware.AdminKeyMatches(secret, provided) {
			return nil, status.Error(codes.Unauthenticated, "invalid admin key")
		}
		return handler(ctx, req)
	}
}
