package mock

import (
	"context"
	"errors"
	"time"

	"github.com/opencatalog/fem/pkg/domain"
	dbmock "github.com/opencatalog/fem/internal/mocks"
	kdb "github.com/opencatalog/fem/pkg/domain/request/db"
)

type RequestInterface struct {
	Impl struct {
		ExistingRequestIds func(ctx context.Context, kind domain.RequestKind, requestIds []string) (map[string]bool, error)
		SaveAll            func(ctx context.Context, requests []*domain.Request) error
		Get                func(ctx context.Context, ids []int64) (map[int64]domain.Request, error)
		PickAndSchedule    func(ctx context.Context, query kdb.ScheduleQuery) ([]domain.Request, error)
		SetStep            func(ctx context.Context, ids []int64, from, to domain.RequestStep) (int64, error)
		MarkError          func(ctx context.Context, id int64, step domain.RequestStep, causes ...string) error
		Materialize        func(ctx context.Context, id int64, feature *domain.Feature) error
		AttachGroup        func(ctx context.Context, ids []int64, groupId string) error
		FindByGroup        func(ctx context.Context, groupId string) ([]domain.Request, error)
		Find               func(ctx context.Context, filters kdb.Filters, page kdb.Page) ([]domain.Request, error)
		PickToNotify       func(ctx context.Context, limit int) ([]domain.Request, error)
		UpdateForRetry     func(ctx context.Context, ids []int64, now time.Time) (int64, error)
		DeleteByIds        func(ctx context.Context, ids []int64) (int64, error)
		Settle             func(ctx context.Context, ids []int64) error
		Abort              func(ctx context.Context, id int64, cause string) error
		UrnsInDeletion     func(ctx context.Context) ([]domain.URN, error)
		WakeBlocked        func(ctx context.Context, urn domain.URN) (int64, error)
		RequeueStale       func(ctx context.Context, olderThan time.Duration) (int64, error)
	}

	Calls struct {
		ExistingRequestIds dbmock.CallLog[struct {
			Kind       domain.RequestKind
			RequestIds []string
		}]
		SaveAll         dbmock.CallLog[[]*domain.Request]
		Get             dbmock.CallLog[[]int64]
		PickAndSchedule dbmock.CallLog[kdb.ScheduleQuery]
		SetStep         dbmock.CallLog[struct {
			Ids      []int64
			From, To domain.RequestStep
		}]
		MarkError dbmock.CallLog[struct {
			Id     int64
			Step   domain.RequestStep
			Causes []string
		}]
		Materialize dbmock.CallLog[struct {
			Id      int64
			Feature *domain.Feature
		}]
		AttachGroup dbmock.CallLog[struct {
			Ids     []int64
			GroupId string
		}]
		FindByGroup dbmock.CallLog[string]
		Find        dbmock.CallLog[struct {
			Filters kdb.Filters
			Page    kdb.Page
		}]
		PickToNotify   dbmock.CallLog[int]
		UpdateForRetry dbmock.CallLog[[]int64]
		DeleteByIds    dbmock.CallLog[[]int64]
		Settle         dbmock.CallLog[[]int64]
		Abort          dbmock.CallLog[struct {
			Id    int64
			Cause string
		}]
		UrnsInDeletion dbmock.CallLog[struct{}]
		WakeBlocked    dbmock.CallLog[domain.URN]
		RequeueStale   dbmock.CallLog[time.Duration]
	}
}

func NewRequestInterface() *RequestInterface {
	return &RequestInterface{}
}

var _ kdb.Interface = &RequestInterface{}

func (m *RequestInterface) ExistingRequestIds(
	ctx context.Context, kind domain.RequestKind, requestIds []string,
) (map[string]bool, error) {
	m.Calls.ExistingRequestIds = append(m.Calls.ExistingRequestIds, struct {
		Kind       domain.RequestKind
		RequestIds []string
	}{Kind: kind, RequestIds: requestIds})
	if m.Impl.ExistingRequestIds != nil {
		return m.Impl.ExistingRequestIds(ctx, kind, requestIds)
	}

	panic(errors.New("it should not be called"))
}

func (m *RequestInterface) SaveAll(ctx context.Context, requests []*domain.Request) error {
	m.Calls.SaveAll = append(m.Calls.SaveAll, requests)
	if m.Impl.SaveAll != nil {
		return m.Impl.SaveAll(ctx, requests)
	}

	panic(errors.New("it should not be called"))
}

func (m *RequestInterface) Get(ctx context.Context, ids []int64) (map[int64]domain.Request, error) {
	m.Calls.Get = append(m.Calls.Get, ids)
	if m.Impl.Get != nil {
		return m.Impl.Get(ctx, ids)
	}

	panic(errors.New("it should not be called"))
}

func (m *RequestInterface) PickAndSchedule(
	ctx context.Context, query kdb.ScheduleQuery,
) ([]domain.Request, error) {
	m.Calls.PickAndSchedule = append(m.Calls.PickAndSchedule, query)
	if m.Impl.PickAndSchedule != nil {
		return m.Impl.PickAndSchedule(ctx, query)
	}

	panic(errors.New("it should not be called"))
}

func (m *RequestInterface) SetStep(
	ctx context.Context, ids []int64, from, to domain.RequestStep,
) (int64, error) {
	m.Calls.SetStep = append(m.Calls.SetStep, struct {
		Ids      []int64
		From, To domain.RequestStep
	}{Ids: ids, From: from, To: to})
	if m.Impl.SetStep != nil {
		return m.Impl.SetStep(ctx, ids, from, to)
	}

	panic(errors.New("it should not be called"))
}

func (m *RequestInterface) MarkError(
	ctx context.Context, id int64, step domain.RequestStep, causes ...string,
) error {
	m.Calls.MarkError = append(m.Calls.MarkError, struct {
		Id     int64
		Step   domain.RequestStep
		Causes []string
	}{Id: id, Step: step, Causes: causes})
	if m.Impl.MarkError != nil {
		return m.Impl.MarkError(ctx, id, step, causes...)
	}

	panic(errors.New("it should not be called"))
}

func (m *RequestInterface) Materialize(ctx context.Context, id int64, feature *domain.Feature) error {
	m.Calls.Materialize = append(m.Calls.Materialize, struct {
		Id      int64
		Feature *domain.Feature
	}{Id: id, Feature: feature})
	if m.Impl.Materialize != nil {
		return m.Impl.Materialize(ctx, id, feature)
	}

	panic(errors.New("it should not be called"))
}

func (m *RequestInterface) AttachGroup(ctx context.Context, ids []int64, groupId string) error {
	m.Calls.AttachGroup = append(m.Calls.AttachGroup, struct {
		Ids     []int64
		GroupId string
	}{Ids: ids, GroupId: groupId})
	if m.Impl.AttachGroup != nil {
		return m.Impl.AttachGroup(ctx, ids, groupId)
	}

	panic(errors.New("it should not be called"))
}

func (m *RequestInterface) FindByGroup(ctx context.Context, groupId string) ([]domain.Request, error) {
	m.Calls.FindByGroup = append(m.Calls.FindByGroup, groupId)
	if m.Impl.FindByGroup != nil {
		return m.Impl.FindByGroup(ctx, groupId)
	}

	panic(errors.New("it should not be called"))
}

func (m *RequestInterface) Find(
	ctx context.Context, filters kdb.Filters, page kdb.Page,
) ([]domain.Request, error) {
	m.Calls.Find = append(m.Calls.Find, struct {
		Filters kdb.Filters
		Page    kdb.Page
	}{Filters: filters, Page: page})
	if m.Impl.Find != nil {
		return m.Impl.Find(ctx, filters, page)
	}

	panic(errors.New("it should not be called"))
}

func (m *RequestInterface) PickToNotify(ctx context.Context, limit int) ([]domain.Request, error) {
	m.Calls.PickToNotify = append(m.Calls.PickToNotify, limit)
	if m.Impl.PickToNotify != nil {
		return m.Impl.PickToNotify(ctx, limit)
	}

	panic(errors.New("it should not be called"))
}

func (m *RequestInterface) UpdateForRetry(
	ctx context.Context, ids []int64, now time.Time,
) (int64, error) {
	m.Calls.UpdateForRetry = append(m.Calls.UpdateForRetry, ids)
	if m.Impl.UpdateForRetry != nil {
		return m.Impl.UpdateForRetry(ctx, ids, now)
	}

	panic(errors.New("it should not be called"))
}

func (m *RequestInterface) DeleteByIds(ctx context.Context, ids []int64) (int64, error) {
	m.Calls.DeleteByIds = append(m.Calls.DeleteByIds, ids)
	if m.Impl.DeleteByIds != nil {
		return m.Impl.DeleteByIds(ctx, ids)
	}

	panic(errors.New("it should not be called"))
}

func (m *RequestInterface) Settle(ctx context.Context, ids []int64) error {
	m.Calls.Settle = append(m.Calls.Settle, ids)
	if m.Impl.Settle != nil {
		return m.Impl.Settle(ctx, ids)
	}

	panic(errors.New("it should not be called"))
}

func (m *RequestInterface) Abort(ctx context.Context, id int64, cause string) error {
	m.Calls.Abort = append(m.Calls.Abort, struct {
		Id    int64
		Cause string
	}{Id: id, Cause: cause})
	if m.Impl.Abort != nil {
		return m.Impl.Abort(ctx, id, cause)
	}

	panic(errors.New("it should not be called"))
}

func (m *RequestInterface) UrnsInDeletion(ctx context.Context) ([]domain.URN, error) {
	m.Calls.UrnsInDeletion = append(m.Calls.UrnsInDeletion, struct{}{})
	if m.Impl.UrnsInDeletion != nil {
		return m.Impl.UrnsInDeletion(ctx)
	}

	panic(errors.New("it should not be called"))
}

func (m *RequestInterface) WakeBlocked(ctx context.Context, urn domain.URN) (int64, error) {
	m.Calls.WakeBlocked = append(m.Calls.WakeBlocked, urn)
	if m.Impl.WakeBlocked != nil {
		return m.Impl.WakeBlocked(ctx, urn)
	}

	panic(errors.New("it should not be called"))
}

func (m *RequestInterface) RequeueStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	m.Calls.RequeueStale = append(m.Calls.RequeueStale, olderThan)
	if m.Impl.RequeueStale != nil {
		return m.Impl.RequeueStale(ctx, olderThan)
	}

	panic(errors.New("it should not be called"))
}
