package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"rentsync/internal/model"
)

// DBPool matches the methods from *pgxpool.Pool that we use.
// This allows us to mock the database in tests.
type DBPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Ping(ctx context.Context) error
}

// PostgresRepository reads the catalog from Postgres. Money columns are
// NUMERIC and read as text so no precision is lost on the way to decimal.
type PostgresRepository struct {
	pool DBPool
}

func NewPostgresRepository(pool DBPool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const listProjectsSQL = `
	SELECT id, slug, name, description, visible, position
	FROM catalog_projects
	WHERE visible
	ORDER BY position, name`

const getProjectSQL = `
	SELECT id, slug, name, description, visible, position
	FROM catalog_projects
	WHERE slug = $1 AND visible`

const listSectionsSQL = `
	SELECT id, name, guidance, kind, visible, position
	FROM catalog_sections
	WHERE project_id = $1 AND visible
	ORDER BY position, name`

const listItemsSQL = `
	SELECT i.section_id, i.id, i.name, i.retail_price::text, i.daily_rate::text, i.first_day_rate::text,
	       i.default_quantity, i.is_consumable, i.is_sales_item, i.image_url, i.booqable_id, i.slug,
	       i.visible, i.position
	FROM catalog_items i
	JOIN catalog_sections s ON s.id = i.section_id
	WHERE s.project_id = $1 AND s.visible AND i.visible
	ORDER BY s.position, i.position, i.name`

func (r *PostgresRepository) ListProjects(ctx context.Context) ([]Project, error) {
	rows, err := r.pool.Query(ctx, listProjectsSQL)
	if err != nil {
		return nil, fmt.Errorf("querying projects: %w", err)
	}
	defer rows.Close()

	projects := []Project{}
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.Slug, &p.Name, &p.Description, &p.Visible, &p.Position); err != nil {
			return nil, fmt.Errorf("scanning project: %w", err)
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating projects: %w", err)
	}
	return projects, nil
}

func (r *PostgresRepository) GetProject(ctx context.Context, slug string) (*Project, error) {
	var p Project
	row := r.pool.QueryRow(ctx, getProjectSQL, slug)
	if err := row.Scan(&p.ID, &p.Slug, &p.Name, &p.Description, &p.Visible, &p.Position); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.NewNotFoundError("project")
		}
		return nil, fmt.Errorf("querying project: %w", err)
	}

	sections, err := r.sections(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if err := r.fillItems(ctx, p.ID, sections); err != nil {
		return nil, err
	}
	p.Sections = sections
	return &p, nil
}

func (r *PostgresRepository) sections(ctx context.Context, projectID string) ([]Section, error) {
	rows, err := r.pool.Query(ctx, listSectionsSQL, projectID)
	if err != nil {
		return nil, fmt.Errorf("querying sections: %w", err)
	}
	defer rows.Close()

	var sections []Section
	for rows.Next() {
		s := Section{Items: []Item{}}
		if err := rows.Scan(&s.ID, &s.Name, &s.Guidance, &s.Kind, &s.Visible, &s.Position); err != nil {
			return nil, fmt.Errorf("scanning section: %w", err)
		}
		sections = append(sections, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sections: %w", err)
	}
	return sections, nil
}

// fillItems loads every visible item of the project in one query and
// distributes them over sections.
func (r *PostgresRepository) fillItems(ctx context.Context, projectID string, sections []Section) error {
	index := make(map[string]int, len(sections))
	for i, s := range sections {
		index[s.ID] = i
	}

	rows, err := r.pool.Query(ctx, listItemsSQL, projectID)
	if err != nil {
		return fmt.Errorf("querying items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			sectionID     string
			it            Item
			retail, daily string
			firstDay      *string
		)
		if err := rows.Scan(&sectionID, &it.ID, &it.Name, &retail, &daily, &firstDay,
			&it.Quantity, &it.IsConsumable, &it.IsSalesItem, &it.ImageURL, &it.BooqableID, &it.Slug,
			&it.Visible, &it.Position); err != nil {
			return fmt.Errorf("scanning item: %w", err)
		}
		if it.RetailPrice, err = model.ParseAmount(retail); err != nil {
			return fmt.Errorf("item %s retail price: %w", it.ID, err)
		}
		if it.DailyRate, err = model.ParseAmount(daily); err != nil {
			return fmt.Errorf("item %s daily rate: %w", it.ID, err)
		}
		if it.FirstDayRate, err = model.ParseOptionalAmount(firstDay); err != nil {
			return fmt.Errorf("item %s first day rate: %w", it.ID, err)
		}

		i, ok := index[sectionID]
		if !ok {
			continue
		}
		sections[i].Items = append(sections[i].Items, it)
	}
	return rows.Err()
}

// Ping reports whether the database is reachable.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
