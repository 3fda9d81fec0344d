package postgres

import (
	"context"

	kpool "github.com/opencatalog/fem/pkg/conn/postgres/pool"
	"github.com/opencatalog/fem/pkg/domain"
	kdb "github.com/opencatalog/fem/pkg/domain/session/db"
)

type pgSession struct {
	pool kpool.Pool
}

func New(pool kpool.Pool) kdb.Interface {
	return &pgSession{pool: pool}
}

func (p *pgSession) Increment(
	ctx context.Context, info domain.SessionInfo, property domain.SessionProperty, delta int64,
) error {
	_, err := p.pool.Exec(
		ctx,
		`
		insert into "session_counter" ("session_owner", "session", "property", "value")
		values ($1, $2, $3, $4)
		on conflict ("session_owner", "session", "property")
		do update set "value" = "session_counter"."value" + excluded."value"
		`,
		info.Owner, info.Session, string(property), delta,
	)
	return err
}

func (p *pgSession) Get(
	ctx context.Context, info domain.SessionInfo,
) (map[domain.SessionProperty]int64, error) {
	rows, err := p.pool.Query(
		ctx,
		`
		select "property", "value" from "session_counter"
		where "session_owner" = $1 and "session" = $2
		`,
		info.Owner, info.Session,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counters := map[domain.SessionProperty]int64{}
	for rows.Next() {
		var property string
		var value int64
		if err := rows.Scan(&property, &value); err != nil {
			return nil, err
		}
		counters[domain.SessionProperty(property)] = value
	}
	return counters, rows.Err()
}
