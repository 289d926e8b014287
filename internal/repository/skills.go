package repository

import (
	"context"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/pkg/errors"

	"github.com/joseph-ayodele/cv-autofill/internal/normalize"
)

const tableSkills = "canonical_skills"

// SkillRepository holds the canonical skill list skills are matched against.
type SkillRepository interface {
	ListCanonical(ctx context.Context) ([]string, error)
	AddCanonical(ctx context.Context, names ...string) error
}

type skillRepo struct {
	db *DB
}

func NewSkillRepository(db *DB) SkillRepository {
	return &skillRepo{db: db}
}

func (r *skillRepo) ListCanonical(ctx context.Context) ([]string, error) {
	b := r.db.builder()
	q := b.Select("name").From(b.Table(tableSkills)).OrderBy("name")
	var out []string
	err := r.db.query(ctx, q, func(rows *entsql.Rows) error {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		out = append(out, name)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "list canonical skills")
	}
	return out, nil
}

// AddCanonical inserts names; an existing key keeps its first spelling.
func (r *skillRepo) AddCanonical(ctx context.Context, names ...string) error {
	for _, name := range names {
		key := normalize.CaseKey(name)
		if key == "" {
			continue
		}
		q := r.db.builder().Insert(tableSkills).
			Columns("skill_key", "name").
			Values(key, name).
			OnConflict(entsql.ConflictColumns("skill_key"), entsql.DoNothing())
		if _, err := r.db.exec(ctx, q); err != nil {
			return errors.Wrapf(err, "add canonical skill %q", name)
		}
	}
	return nil
}
