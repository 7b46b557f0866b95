package app

import "context"

// Contribution is an independently registered extension of the controller.
// Contributions are kept in an explicit ordered collection: the controller
// starts them in registration order and stops them in reverse.
type Contribution interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
