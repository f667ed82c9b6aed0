package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/momentum-academy/portal/core/resource"
)

type resourceRepository struct {
	db *sqlx.DB
}

var _ resource.Repository = (*resourceRepository)(nil) // interface compliance check

func NewResourceRepository(db *sqlx.DB) resource.Repository {
	return &resourceRepository{db: db}
}

type dbResource struct {
	ID         string      `db:"id"`
	Title      string      `db:"title"`
	Subject    null.String `db:"subject"`
	FileURL    null.String `db:"file_url"`
	UploaderID null.String `db:"uploader_id"`
	CreatedAt  null.Time   `db:"created_at"`
}

func (repo *resourceRepository) unrow(r dbResource) resource.Resource {
	return resource.Resource{
		ID:         r.ID,
		Title:      r.Title,
		Subject:    r.Subject.String,
		FileURL:    r.FileURL.String,
		UploaderID: r.UploaderID.String,
		CreatedAt:  r.CreatedAt.Time,
	}
}

func (repo *resourceRepository) CreateResource(ctx context.Context, res resource.Resource) (resource.Resource, error) {
	res.ID = uuid.New().String()
	query := `
INSERT INTO resource (id, title, subject, file_url, uploader_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := repo.db.ExecContext(ctx, query,
		res.ID, res.Title,
		null.NewString(res.Subject, res.Subject != ""),
		null.NewString(res.FileURL, res.FileURL != ""),
		null.NewString(res.UploaderID, res.UploaderID != ""),
		null.NewTime(res.CreatedAt.UTC(), !res.CreatedAt.IsZero()),
	)
	if err != nil {
		return resource.Resource{}, errors.Wrap(err, "inserting resource")
	}
	return res, nil
}

func (repo *resourceRepository) GetResourceByID(ctx context.Context, id string) (resource.Resource, error) {
	var r dbResource
	if err := repo.db.GetContext(ctx, &r, `SELECT * FROM resource WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return resource.Resource{}, resource.ErrNotFound
		}
		return resource.Resource{}, errors.Wrap(err, "getting resource")
	}
	return repo.unrow(r), nil
}

func (repo *resourceRepository) QueryResources(ctx context.Context) ([]resource.Resource, error) {
	var rows []dbResource
	if err := repo.db.SelectContext(ctx, &rows, `SELECT * FROM resource ORDER BY created_at ASC`); err != nil {
		return nil, errors.Wrap(err, "querying resources")
	}

	ress := make([]resource.Resource, 0, len(rows))
	for _, r := range rows {
		ress = append(ress, repo.unrow(r))
	}
	return ress, nil
}
