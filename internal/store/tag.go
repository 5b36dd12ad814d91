package store

import (
	"context"
	"database/sql"

	"github.com/campuslink/apiserver/types"
)

// AccountTagRepository handles read access to account tags.
type AccountTagRepository struct {
	db *sql.DB
}

func NewAccountTagRepository(db *sql.DB) *AccountTagRepository {
	return &AccountTagRepository{db: db}
}

func (r *AccountTagRepository) ListByEmail(ctx context.Context, email string) ([]types.AccountTag, error) {
	const query = `
		SELECT id, email, tag_name, created_at
		FROM account_tags
		WHERE email = $1
		ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, email)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tags []types.AccountTag
	for rows.Next() {
		var tag types.AccountTag
		if err := rows.Scan(&tag.ID, &tag.Email, &tag.TagName, &tag.CreatedAt); err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tags, nil
}
