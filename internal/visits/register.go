package visits

import (
	"context"
	"errors"
	"strings"

	"github.com/mrlokans/libreria/internal/database"
)

const (
	insertVisitSQL = `INSERT INTO visitas (visitante_id, ip, created_at) VALUES (?, ?, CURRENT_TIMESTAMP)`
	countVisitsSQL = `SELECT total FROM contador_visitas WHERE id = 1`
)

var ErrNoIdentity = errors.New("visitor has neither token nor address")

// RecordStore runs parameterized statements. *database.Database satisfies it.
type RecordStore interface {
	Query(ctx context.Context, statement string, params ...any) ([]database.Row, error)
	Exec(ctx context.Context, statement string, params ...any) (int64, error)
}

// Visit is the outcome of a registration.
type Visit struct {
	IsNew bool
}

// Register counts each identity at most once. The insert and the counter
// increment happen in one statement (a trigger on visitas), and the unique
// index on visitante_id decides races between first visits.
type Register struct {
	store   RecordStore
	observe func(isNew bool)
}

type Option func(*Register)

// WithObserver is called after every successful registration.
func WithObserver(observe func(isNew bool)) Option {
	return func(r *Register) {
		r.observe = observe
	}
}

func NewRegister(store RecordStore, opts ...Option) *Register {
	r := &Register{store: store}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Register) RegisterVisit(ctx context.Context, id Identity) (Visit, error) {
	if id == "" {
		return Visit{}, ErrNoIdentity
	}

	var address string
	if id.IsAddress() {
		address = strings.TrimPrefix(string(id), AddressPrefix)
	}

	_, err := r.store.Exec(ctx, insertVisitSQL, string(id), address)
	switch {
	case err == nil:
		r.record(true)
		return Visit{IsNew: true}, nil
	case database.IsUniqueViolation(err):
		r.record(false)
		return Visit{IsNew: false}, nil
	default:
		return Visit{}, err
	}
}

// Count returns the number of distinct identities ever registered.
func (r *Register) Count(ctx context.Context) (int64, error) {
	rows, err := r.store.Query(ctx, countVisitsSQL)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	total, _ := database.Int64(rows[0], "total")
	return total, nil
}

func (r *Register) record(isNew bool) {
	if r.observe != nil {
		r.observe(isNew)
	}
}
