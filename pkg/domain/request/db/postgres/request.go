package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgtype"
	"github.com/jackc/pgx/v4"

	kpool "github.com/opencatalog/fem/pkg/conn/postgres/pool"
	"github.com/opencatalog/fem/pkg/domain"
	pgerr "github.com/opencatalog/fem/pkg/domain/dberrors/postgres"
	kdb "github.com/opencatalog/fem/pkg/domain/request/db"
	"github.com/opencatalog/fem/pkg/utils/slices"
)

type pgRequest struct {
	pool kpool.Pool
}

func New(pool kpool.Pool) kdb.Interface {
	return &pgRequest{pool: pool}
}

const requestColumns = `
	"id", "kind", "request_id", "owner", "request_date",
	"state", "step", "last_exec_error_step", "priority", "errors",
	"group_id", "session_owner", "session", "provider_id", "urn",
	"metadata", "feature", "checksum", "target_storage",
	"factory", "parameters"
`

func scanRequest(rows pgx.Rows) (domain.Request, error) {
	r := domain.Request{}

	var kind, state, step, urn string
	var lastErrorStep *string
	var errs pgtype.TextArray
	var metadata []byte
	var feature, parameters []byte

	if err := rows.Scan(
		&r.Id, &kind, &r.RequestId, &r.Owner, &r.RequestDate,
		&state, &step, &lastErrorStep, &r.Priority, &errs,
		&r.GroupId, &r.Metadata.SessionOwner, &r.Metadata.Session,
		new(string), &urn,
		&metadata, &feature, &r.Checksum, &r.TargetStorage,
		&r.Factory, &parameters,
	); err != nil {
		return domain.Request{}, err
	}

	var err error
	if r.Kind, err = domain.AsRequestKind(kind); err != nil {
		return domain.Request{}, err
	}
	r.State = domain.RequestState(state)
	if r.Step, err = domain.AsRequestStep(step); err != nil {
		return domain.Request{}, err
	}
	if lastErrorStep != nil {
		s, err := domain.AsRequestStep(*lastErrorStep)
		if err != nil {
			return domain.Request{}, err
		}
		r.LastExecErrorStep = &s
	}
	if err := errs.AssignTo(&r.Errors); err != nil {
		return domain.Request{}, err
	}
	if urn != "" {
		if r.Urn, err = domain.ParseURN(urn); err != nil {
			return domain.Request{}, err
		}
	}
	if err := json.Unmarshal(metadata, &r.Metadata); err != nil {
		return domain.Request{}, err
	}
	if feature != nil {
		r.Feature = &domain.Feature{}
		if err := json.Unmarshal(feature, r.Feature); err != nil {
			return domain.Request{}, err
		}
	}
	r.Parameters = parameters

	return r, nil
}

func scanRequests(rows pgx.Rows) ([]domain.Request, error) {
	defer rows.Close()
	found := []domain.Request{}
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		found = append(found, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return found, nil
}

func (p *pgRequest) ExistingRequestIds(
	ctx context.Context, kind domain.RequestKind, requestIds []string,
) (map[string]bool, error) {
	rows, err := p.pool.Query(
		ctx,
		`
		select distinct "request_id" from "feature_request"
		where "kind" = $1 and "request_id" = any($2)
		`,
		string(kind), requestIds,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	existing := map[string]bool{}
	for rows.Next() {
		var rid string
		if err := rows.Scan(&rid); err != nil {
			return nil, err
		}
		existing[rid] = true
	}
	return existing, rows.Err()
}

func (p *pgRequest) SaveAll(ctx context.Context, requests []*domain.Request) error {
	if len(requests) == 0 {
		return nil
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, r := range requests {
		metadata, err := json.Marshal(r.Metadata)
		if err != nil {
			return err
		}
		var feature []byte
		if r.Feature != nil {
			if feature, err = json.Marshal(r.Feature); err != nil {
				return err
			}
		}
		var lastErrorStep *string
		if r.LastExecErrorStep != nil {
			s := string(*r.LastExecErrorStep)
			lastErrorStep = &s
		}
		urn := ""
		if !r.Urn.IsZero() {
			urn = r.Urn.String()
		}

		if err := tx.QueryRow(
			ctx,
			`
			insert into "feature_request" (
				"kind", "request_id", "owner", "request_date",
				"state", "step", "step_changed_at", "last_exec_error_step",
				"priority", "errors", "group_id",
				"session_owner", "session", "provider_id", "urn",
				"metadata", "feature", "checksum", "target_storage",
				"factory", "parameters"
			) values (
				$1, $2, $3, $4, $5, $6, now(), $7, $8, $9, '',
				$10, $11, $12, $13, $14, $15, $16, $17, $18, $19
			)
			returning "id"
			`,
			string(r.Kind), r.RequestId, r.Owner, r.RequestDate,
			string(r.State), string(r.Step), lastErrorStep,
			int(r.Priority), r.Errors,
			r.Metadata.SessionOwner, r.Metadata.Session,
			r.ProviderId(), urn,
			metadata, feature, r.Checksum, r.TargetStorage,
			r.Factory, []byte(r.Parameters),
		).Scan(&r.Id); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (p *pgRequest) Get(ctx context.Context, ids []int64) (map[int64]domain.Request, error) {
	rows, err := p.pool.Query(
		ctx,
		`select `+requestColumns+` from "feature_request" where "id" = any($1)`,
		ids,
	)
	if err != nil {
		return nil, err
	}
	found, err := scanRequests(rows)
	if err != nil {
		return nil, err
	}
	return slices.ToMap(found, func(r domain.Request) int64 { return r.Id }), nil
}

func (p *pgRequest) PickAndSchedule(
	ctx context.Context, query kdb.ScheduleQuery,
) ([]domain.Request, error) {
	if query.Limit <= 0 {
		return nil, nil
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	picking := `
		select "id" from "feature_request"
		where "kind" = $1 and "step" = $2 and "request_date" <= $3
		order by "priority" asc, "request_date" asc, "id" asc
		limit $4
		for update skip locked
	`
	if query.OnePerProvider {
		// At most one request per lineage per batch. distinct on keeps
		// the best-ranked row of each provider id.
		picking = `
			select "id" from (
				select distinct on ("provider_id")
					"id", "priority", "request_date"
				from "feature_request"
				where "kind" = $1 and "step" = $2 and "request_date" <= $3
				order by "provider_id", "priority" asc, "request_date" asc, "id" asc
			) as "one_per_provider"
			order by "priority" asc, "request_date" asc, "id" asc
			limit $4
			for update skip locked
		`
	}

	rows, err := tx.Query(
		ctx,
		`
		update "feature_request"
		set "step" = $5, "step_changed_at" = now()
		where "id" in (`+picking+`)
		returning `+requestColumns,
		string(query.Kind), string(domain.StepLocalDelayed),
		time.Now().Add(-query.Delay), query.Limit,
		string(domain.StepLocalScheduled),
	)
	if err != nil {
		return nil, err
	}
	picked, err := scanRequests(rows)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	// The returning clause does not honor the inner ordering.
	slices.SortBy(picked, func(a, b domain.Request) bool {
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		if !a.RequestDate.Equal(b.RequestDate) {
			return a.RequestDate.Before(b.RequestDate)
		}
		return a.Id < b.Id
	})
	return picked, nil
}

func (p *pgRequest) SetStep(
	ctx context.Context, ids []int64, from, to domain.RequestStep,
) (int64, error) {
	tag, err := p.pool.Exec(
		ctx,
		`
		update "feature_request"
		set "step" = $1, "step_changed_at" = now()
		where "id" = any($2) and "step" = $3
		`,
		string(to), ids, string(from),
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (p *pgRequest) MarkError(
	ctx context.Context, id int64, step domain.RequestStep, causes ...string,
) error {
	tag, err := p.pool.Exec(
		ctx,
		`
		update "feature_request"
		set "state" = $1, "step" = $2, "step_changed_at" = now(),
			"last_exec_error_step" = $2,
			"errors" = "errors" || $3
		where "id" = $4
		`,
		string(domain.Error), string(step), causes, id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgerr.Missing{Table: "feature_request", Identity: fmt.Sprintf("id=%d", id)}
	}
	return nil
}

func (p *pgRequest) Materialize(ctx context.Context, id int64, feature *domain.Feature) error {
	buf, err := json.Marshal(feature)
	if err != nil {
		return err
	}

	urn := ""
	if !feature.Urn.IsZero() {
		urn = feature.Urn.String()
	}

	tag, err := p.pool.Exec(
		ctx,
		`
		update "feature_request"
		set "feature" = $1, "urn" = $2, "provider_id" = $3
		where "id" = $4
		`,
		buf, urn, feature.Id, id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgerr.Missing{Table: "feature_request", Identity: fmt.Sprintf("id=%d", id)}
	}
	return nil
}

func (p *pgRequest) AttachGroup(ctx context.Context, ids []int64, groupId string) error {
	_, err := p.pool.Exec(
		ctx,
		`update "feature_request" set "group_id" = $1 where "id" = any($2)`,
		groupId, ids,
	)
	return err
}

func (p *pgRequest) FindByGroup(ctx context.Context, groupId string) ([]domain.Request, error) {
	rows, err := p.pool.Query(
		ctx,
		`select `+requestColumns+` from "feature_request" where "group_id" = $1`,
		groupId,
	)
	if err != nil {
		return nil, err
	}
	return scanRequests(rows)
}

func (p *pgRequest) Find(
	ctx context.Context, filters kdb.Filters, page kdb.Page,
) ([]domain.Request, error) {
	conds := []string{}
	args := []interface{}{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filters.Kind != "" {
		conds = append(conds, `"kind" = `+arg(string(filters.Kind)))
	}
	if len(filters.States) != 0 {
		conds = append(conds, `"state" = any(`+arg(slices.Map(
			filters.States, domain.RequestState.String,
		))+`)`)
	}
	if len(filters.Steps) != 0 {
		conds = append(conds, `"step" = any(`+arg(slices.Map(
			filters.Steps, domain.RequestStep.String,
		))+`)`)
	}
	if filters.Owner != "" {
		conds = append(conds, `"owner" = `+arg(filters.Owner))
	}
	if filters.RequestId != "" {
		conds = append(conds, `"request_id" = `+arg(filters.RequestId))
	}
	if filters.SessionOwner != "" {
		conds = append(conds, `"session_owner" = `+arg(filters.SessionOwner))
	}
	if filters.Session != "" {
		conds = append(conds, `"session" = `+arg(filters.Session))
	}

	where := ""
	if len(conds) != 0 {
		where = " where " + strings.Join(conds, " and ")
	}
	limit := page.Limit
	if limit <= 0 {
		limit = 100
	}

	rows, err := p.pool.Query(
		ctx,
		`select `+requestColumns+` from "feature_request"`+where+
			` order by "request_date" desc, "id" desc`+
			` limit `+arg(limit)+` offset `+arg(page.Offset),
		args...,
	)
	if err != nil {
		return nil, err
	}
	return scanRequests(rows)
}

func (p *pgRequest) PickToNotify(ctx context.Context, limit int) ([]domain.Request, error) {
	if limit <= 0 {
		return nil, nil
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(
		ctx,
		`
		update "feature_request"
		set "step" = $1, "step_changed_at" = now()
		where "id" in (
			select "id" from "feature_request"
			where "step" = $2 and "state" = $3
			order by "request_date" asc, "id" asc
			limit $4
			for update skip locked
		)
		returning `+requestColumns,
		string(domain.StepRemoteNotificationRequested),
		string(domain.StepLocalToBeNotified),
		string(domain.Granted),
		limit,
	)
	if err != nil {
		return nil, err
	}
	picked, err := scanRequests(rows)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return picked, nil
}

func (p *pgRequest) UpdateForRetry(
	ctx context.Context, ids []int64, now time.Time,
) (int64, error) {
	tag, err := p.pool.Exec(
		ctx,
		`
		update "feature_request"
		set "state" = $1,
			"step" = case "step" when $2 then $3 else $4 end,
			"step_changed_at" = now(),
			"group_id" = '',
			"errors" = '{}',
			"request_date" = $5
		where "id" = any($6) and "step" = any($7)
		`,
		string(domain.Granted),
		string(domain.StepRemoteNotificationError), string(domain.StepLocalToBeNotified),
		string(domain.StepLocalDelayed),
		now, ids,
		[]string{
			string(domain.StepLocalError),
			string(domain.StepRemoteStorageError),
			string(domain.StepRemoteNotificationError),
		},
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (p *pgRequest) DeleteByIds(ctx context.Context, ids []int64) (int64, error) {
	tag, err := p.pool.Exec(
		ctx,
		`
		delete from "feature_request"
		where "id" = any($1) and not ("step" = any($2))
		`,
		ids,
		[]string{
			string(domain.StepLocalScheduled),
			string(domain.StepRemoteStorageRequested),
			string(domain.StepRemoteStorageDeletionRequested),
			string(domain.StepRemoteNotificationRequested),
		},
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (p *pgRequest) Settle(ctx context.Context, ids []int64) error {
	_, err := p.pool.Exec(
		ctx,
		`delete from "feature_request" where "id" = any($1)`,
		ids,
	)
	return err
}

func (p *pgRequest) Abort(ctx context.Context, id int64, cause string) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var step string
	if err := tx.QueryRow(
		ctx,
		`select "step" from "feature_request" where "id" = $1 for update`,
		id,
	).Scan(&step); err != nil {
		if err == pgx.ErrNoRows {
			return pgerr.Missing{Table: "feature_request", Identity: fmt.Sprintf("id=%d", id)}
		}
		return err
	}

	current, err := domain.AsRequestStep(step)
	if err != nil {
		return err
	}
	if current.Processing() {
		return domain.NewErrInvalidRequestStateChanging(current, domain.StepLocalError)
	}

	if _, err := tx.Exec(
		ctx,
		`
		update "feature_request"
		set "state" = $1, "step" = $2, "step_changed_at" = now(),
			"last_exec_error_step" = $2,
			"errors" = "errors" || $3
		where "id" = $4
		`,
		string(domain.Error), string(domain.StepLocalError), []string{cause}, id,
	); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (p *pgRequest) UrnsInDeletion(ctx context.Context) ([]domain.URN, error) {
	rows, err := p.pool.Query(
		ctx,
		`
		select distinct "urn" from "feature_request"
		where "kind" = $1 and "urn" <> '' and not ("state" = any($2))
		`,
		string(domain.KindDeletion),
		[]string{string(domain.Success), string(domain.Denied)},
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	urns := []domain.URN{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		urn, err := domain.ParseURN(raw)
		if err != nil {
			return nil, err
		}
		urns = append(urns, urn)
	}
	return urns, rows.Err()
}

func (p *pgRequest) WakeBlocked(ctx context.Context, urn domain.URN) (int64, error) {
	tag, err := p.pool.Exec(
		ctx,
		`
		update "feature_request"
		set "step" = $1, "step_changed_at" = now()
		where "step" = $2 and "urn" = $3
		`,
		string(domain.StepLocalDelayed),
		string(domain.StepWaitingBlockingDissemination),
		urn.String(),
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (p *pgRequest) RequeueStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	tag, err := p.pool.Exec(
		ctx,
		`
		update "feature_request"
		set "step" = $1, "step_changed_at" = now()
		where "step" = $2 and "step_changed_at" < $3
		`,
		string(domain.StepLocalDelayed),
		string(domain.StepLocalScheduled),
		time.Now().Add(-olderThan),
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
