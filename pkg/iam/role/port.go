package role

import "context"

// Repository defines the contract for role persistence
type Repository interface {
	FindByID(ctx context.Context, id string) (*Role, error)
	FindByName(ctx context.Context, name string) (*Role, error)
	List(ctx context.Context) ([]*Role, error)
	Save(ctx context.Context, r Role) error
}
