package contentcache

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100

	listPrefix = "list:"
	docPrefix  = "doc:"
	todayKey   = "today"
)

// ErrInvalidQuery is returned for list queries outside page >= 1, 1 <= limit <= MaxLimit.
var ErrInvalidQuery = errors.New("contentcache: invalid query")

// Query is the tagged query-shape variant: ListQuery, ByIDQuery or TodayQuery.
type Query interface {
	cacheKey() string
}

type ListQuery struct {
	Page  int
	Limit int
}

type ByIDQuery struct {
	ID string
}

type TodayQuery struct{}

func (q ListQuery) cacheKey() string {
	return listPrefix + "page:" + strconv.Itoa(q.Page) + ":limit:" + strconv.Itoa(q.Limit)
}

func (q ByIDQuery) cacheKey() string { return docPrefix + q.ID }

func (TodayQuery) cacheKey() string { return todayKey }

// Key derives the cache key for q. It is pure; ListQuery must already be validated.
func Key(q Query) string { return q.cacheKey() }

// Skip is the number of items to skip for this page.
func (q ListQuery) Skip() int { return (q.Page - 1) * q.Limit }

func (q ListQuery) Validate() error {
	err := validation.ValidateStruct(&q,
		validation.Field(&q.Page, validation.Required, validation.Min(1)),
		validation.Field(&q.Limit, validation.Required, validation.Min(1), validation.Max(MaxLimit)),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	return nil
}

// ParseListQuery normalizes request-level page/limit strings. Empty values take the
// defaults; "2", " 02 " and "+2" all yield page 2.
func ParseListQuery(page, limit string) (ListQuery, error) {
	p, err := parseBound("page", page, DefaultPage)
	if err != nil {
		return ListQuery{}, err
	}
	l, err := parseBound("limit", limit, DefaultLimit)
	if err != nil {
		return ListQuery{}, err
	}
	q := ListQuery{Page: p, Limit: l}
	if err := q.Validate(); err != nil {
		return ListQuery{}, err
	}
	return q, nil
}

func parseBound(name, raw string, def int) (int, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q is not an integer", ErrInvalidQuery, name, raw)
	}
	return n, nil
}
