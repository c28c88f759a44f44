package collection

import "context"

// Repository lists the collections the vector store knows.
type Repository interface {
	ListCollections(ctx context.Context) ([]string, error)
}
