package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v4"

	kpool "github.com/opencatalog/fem/pkg/conn/postgres/pool"
	"github.com/opencatalog/fem/pkg/domain"
	pgerr "github.com/opencatalog/fem/pkg/domain/dberrors/postgres"
	kdb "github.com/opencatalog/fem/pkg/domain/feature/db"
	"github.com/opencatalog/fem/pkg/utils/slices"
)

type pgFeature struct {
	pool kpool.Pool
}

func New(pool kpool.Pool) kdb.Interface {
	return &pgFeature{pool: pool}
}

const featureColumns = `
	"id", "urn", "provider_id", "version",
	"session_owner", "session", "feature", "previous_version_urn",
	"last", "dissemination_pending", "last_update"
`

func scanEntity(rows pgx.Rows) (domain.FeatureEntity, error) {
	e := domain.FeatureEntity{}

	var urn string
	var previous *string
	var feature []byte

	if err := rows.Scan(
		&e.Id, &urn, &e.ProviderId, &e.Version,
		&e.SessionOwner, &e.Session, &feature, &previous,
		&e.Last, &e.DisseminationPending, &e.LastUpdate,
	); err != nil {
		return domain.FeatureEntity{}, err
	}

	var err error
	if e.Urn, err = domain.ParseURN(urn); err != nil {
		return domain.FeatureEntity{}, err
	}
	if previous != nil {
		p, err := domain.ParseURN(*previous)
		if err != nil {
			return domain.FeatureEntity{}, err
		}
		e.PreviousVersionUrn = &p
	}
	if err := json.Unmarshal(feature, &e.Feature); err != nil {
		return domain.FeatureEntity{}, err
	}

	return e, nil
}

func scanEntities(rows pgx.Rows) ([]domain.FeatureEntity, error) {
	defer rows.Close()
	found := []domain.FeatureEntity{}
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		found = append(found, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return found, nil
}

func urnStrings(urns []domain.URN) []string {
	return slices.Map(urns, domain.URN.String)
}

func (p *pgFeature) LatestVersions(
	ctx context.Context, providerIds []string,
) (map[string]domain.FeatureEntity, error) {
	rows, err := p.pool.Query(
		ctx,
		`
		select `+featureColumns+` from "feature"
		where "provider_id" = any($1) and "last"
		`,
		providerIds,
	)
	if err != nil {
		return nil, err
	}
	found, err := scanEntities(rows)
	if err != nil {
		return nil, err
	}
	return slices.ToMap(found, func(e domain.FeatureEntity) string { return e.ProviderId }), nil
}

func (p *pgFeature) SaveAll(ctx context.Context, entities []*domain.FeatureEntity) error {
	if len(entities) == 0 {
		return nil
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, e := range entities {
		feature, err := json.Marshal(e.Feature)
		if err != nil {
			return err
		}
		var previous *string
		if e.PreviousVersionUrn != nil {
			s := e.PreviousVersionUrn.String()
			previous = &s
		}

		if e.Last {
			if _, err := tx.Exec(
				ctx,
				`update "feature" set "last" = false where "provider_id" = $1 and "last"`,
				e.ProviderId,
			); err != nil {
				return err
			}
		}

		if err := tx.QueryRow(
			ctx,
			`
			insert into "feature" (
				"urn", "provider_id", "version",
				"session_owner", "session", "feature", "previous_version_urn",
				"last", "dissemination_pending", "last_update"
			) values ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
			returning "id"
			`,
			e.Urn.String(), e.ProviderId, e.Version,
			e.SessionOwner, e.Session, feature, previous,
			e.Last, e.DisseminationPending,
		).Scan(&e.Id); err != nil {
			// a concurrent pass landed the same version first.
			if pgErr := new(pgconn.PgError); errors.As(err, &pgErr) &&
				pgErr.Code == pgerrcode.UniqueViolation {
				return pgerr.Conflict{Table: "feature", Identity: e.Urn.String()}
			}
			return err
		}
	}

	return tx.Commit(ctx)
}

func (p *pgFeature) GetByUrns(
	ctx context.Context, urns []domain.URN,
) (map[domain.URN]domain.FeatureEntity, error) {
	rows, err := p.pool.Query(
		ctx,
		`select `+featureColumns+` from "feature" where "urn" = any($1)`,
		urnStrings(urns),
	)
	if err != nil {
		return nil, err
	}
	found, err := scanEntities(rows)
	if err != nil {
		return nil, err
	}
	return slices.ToMap(found, func(e domain.FeatureEntity) domain.URN { return e.Urn }), nil
}

func (p *pgFeature) Update(ctx context.Context, entity *domain.FeatureEntity) error {
	feature, err := json.Marshal(entity.Feature)
	if err != nil {
		return err
	}

	tag, err := p.pool.Exec(
		ctx,
		`
		update "feature"
		set "feature" = $1, "last" = $2, "dissemination_pending" = $3,
			"last_update" = now()
		where "urn" = $4
		`,
		feature, entity.Last, entity.DisseminationPending, entity.Urn.String(),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgerr.Missing{Table: "feature", Identity: entity.Urn.String()}
	}
	return nil
}

func (p *pgFeature) ExistingUrns(
	ctx context.Context, urns []domain.URN,
) (map[domain.URN]bool, error) {
	rows, err := p.pool.Query(
		ctx,
		`select "urn" from "feature" where "urn" = any($1)`,
		urnStrings(urns),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	existing := map[domain.URN]bool{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		urn, err := domain.ParseURN(raw)
		if err != nil {
			return nil, err
		}
		existing[urn] = true
	}
	return existing, rows.Err()
}

func (p *pgFeature) DeleteByUrns(ctx context.Context, urns []domain.URN) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(
		ctx,
		`
		delete from "feature" where "urn" = any($1)
		returning "provider_id", "last"
		`,
		urnStrings(urns),
	)
	if err != nil {
		return err
	}

	orphaned := []string{}
	for rows.Next() {
		var providerId string
		var last bool
		if err := rows.Scan(&providerId, &last); err != nil {
			rows.Close()
			return err
		}
		if last {
			orphaned = append(orphaned, providerId)
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	rows.Close()

	// A deleted last version hands the flag to the latest survivor.
	if len(orphaned) != 0 {
		if _, err := tx.Exec(
			ctx,
			`
			update "feature" set "last" = true
			where "id" in (
				select distinct on ("provider_id") "id" from "feature"
				where "provider_id" = any($1)
				order by "provider_id", "version" desc
			)
			`,
			orphaned,
		); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (p *pgFeature) DisseminationPending(ctx context.Context, urn domain.URN) (bool, error) {
	var pending bool
	if err := p.pool.QueryRow(
		ctx,
		`select "dissemination_pending" from "feature" where "urn" = $1`,
		urn.String(),
	).Scan(&pending); err != nil {
		if err == pgx.ErrNoRows {
			return false, pgerr.Missing{Table: "feature", Identity: urn.String()}
		}
		return false, err
	}
	return pending, nil
}

func (p *pgFeature) AckDissemination(ctx context.Context, urn domain.URN) (bool, error) {
	tag, err := p.pool.Exec(
		ctx,
		`
		update "feature" set "dissemination_pending" = false
		where "urn" = $1 and "dissemination_pending"
		`,
		urn.String(),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() != 0, nil
}
