package resource

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("resource not found")

// Resource is a study material uploaded by a teacher. Resource management
// itself lives outside this service; the table exists so doubt threads can
// anchor to a resource and resolve its owning teacher.
type Resource struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Subject    string    `json:"subject"`
	FileURL    string    `json:"file_url"`
	UploaderID string    `json:"uploader_id"` // teacher
	CreatedAt  time.Time `json:"created_at"`
}

type Repository interface {
	CreateResource(ctx context.Context, r Resource) (Resource, error)
	GetResourceByID(ctx context.Context, id string) (Resource, error)
	QueryResources(ctx context.Context) ([]Resource, error)
}
