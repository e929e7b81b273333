// Package formschema is the application-level Form Schema Registry. It
// validates definitions at the boundary, serves them through a Redis
// cache-aside layer and detects services that share an annexure table.
package formschema

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	domainSchema "github.com/vanshwebstep/screeningstarnewnode-sub002/internal/domain/formschema"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/infrastructure/database/redis"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/infrastructure/monitoring/logging"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/infrastructure/monitoring/prometheus"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/pkg/errors"
)

// Cache is the part of redis.Cache the registry needs.
type Cache interface {
	GetOrSet(ctx context.Context, key string, dest interface{}, ttl time.Duration, loader func(ctx context.Context) (interface{}, error)) error
	Delete(ctx context.Context, keys ...string) error
}

// cachedSchema is the cache representation of a Schema; the parsed fields are
// rebuilt from Document on read.
type cachedSchema struct {
	ServiceID int64           `json:"service_id"`
	AuthorID  int64           `json:"author_id"`
	UpdatedAt time.Time       `json:"updated_at"`
	Document  json.RawMessage `json:"document"`
}

const cacheName = "form_schema"

// Registry serves form definitions.
type Registry struct {
	repo    domainSchema.Repository
	cache   Cache
	ttl     time.Duration
	log     logging.Logger
	metrics *prometheus.AppMetrics
}

// Option configures a Registry.
type Option func(*Registry)

// WithCache enables cache-aside reads. Without it every read hits the store.
func WithCache(c Cache, ttl time.Duration) Option {
	return func(r *Registry) {
		r.cache = c
		r.ttl = ttl
	}
}

func WithMetrics(m *prometheus.AppMetrics) Option {
	return func(r *Registry) { r.metrics = m }
}

func NewRegistry(repo domainSchema.Repository, log logging.Logger, opts ...Option) *Registry {
	r := &Registry{repo: repo, log: log.Named("formschema")}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func cacheKey(serviceID int64) string {
	return "service:" + strconv.FormatInt(serviceID, 10)
}

// ListModules returns every service that owns a definition.
func (r *Registry) ListModules(ctx context.Context) ([]domainSchema.Module, error) {
	return r.repo.ListModules(ctx)
}

// Get returns the definition of serviceID, or nil when there is none.
func (r *Registry) Get(ctx context.Context, serviceID int64) (*domainSchema.Schema, error) {
	if serviceID <= 0 {
		return nil, errors.Validation("service id must be positive")
	}
	if r.cache == nil {
		return r.repo.GetByServiceID(ctx, serviceID)
	}

	hit := true
	var entry cachedSchema
	err := r.cache.GetOrSet(ctx, cacheKey(serviceID), &entry, r.ttl, func(ctx context.Context) (interface{}, error) {
		hit = false
		s, err := r.repo.GetByServiceID(ctx, serviceID)
		if err != nil || s == nil {
			return nil, err
		}
		return &cachedSchema{ServiceID: s.ServiceID, AuthorID: s.AuthorID, UpdatedAt: s.UpdatedAt, Document: s.Raw}, nil
	})
	prometheus.RecordCacheAccess(r.metrics, cacheName, hit)
	if errors.Is(err, redis.ErrCacheMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	s, err := domainSchema.Decode(entry.Document)
	if err != nil {
		return nil, err
	}
	s.ServiceID = entry.ServiceID
	s.AuthorID = entry.AuthorID
	s.UpdatedAt = entry.UpdatedAt
	return s, nil
}

// Upsert validates doc and stores it as the definition of serviceID.
//
// Another service may already write to the same target table. That is
// allowed, but a field declared by both with different input types is
// rejected since both would write the same column.
func (r *Registry) Upsert(ctx context.Context, serviceID int64, doc []byte, authorID int64) (domainSchema.UpsertResult, error) {
	if serviceID <= 0 {
		return "", errors.Validation("service id must be positive")
	}
	s, err := domainSchema.Parse(doc)
	if err != nil {
		return "", err
	}
	s.ServiceID = serviceID
	s.AuthorID = authorID

	if err := r.checkSharedTable(ctx, s); err != nil {
		return "", err
	}

	res, err := r.repo.Upsert(ctx, s)
	if err != nil {
		return "", err
	}
	if r.cache != nil {
		if err := r.cache.Delete(ctx, cacheKey(serviceID)); err != nil {
			r.log.Warn("failed to invalidate cached form schema",
				logging.Int64("service_id", serviceID), logging.Err(err))
		}
	}
	r.log.Info("form schema stored",
		logging.Int64("service_id", serviceID),
		logging.String("table", s.TargetTable),
		logging.String("result", string(res)))
	return res, nil
}

// DeclaresTable reports whether any stored definition targets table.
func (r *Registry) DeclaresTable(ctx context.Context, table string) (bool, error) {
	if err := domainSchema.ValidateTableName(table); err != nil {
		return false, err
	}
	schemas, err := r.repo.FindByTargetTable(ctx, table)
	if err != nil {
		return false, err
	}
	return len(schemas) > 0, nil
}

func (r *Registry) checkSharedTable(ctx context.Context, s *domainSchema.Schema) error {
	others, err := r.repo.FindByTargetTable(ctx, s.TargetTable)
	if err != nil {
		return err
	}
	mine := declaredTypes(s)
	var sharing []int64
	for _, o := range others {
		if o.ServiceID == s.ServiceID {
			continue
		}
		sharing = append(sharing, o.ServiceID)
		for name, typ := range declaredTypes(o) {
			if own, ok := mine[name]; ok && own != typ {
				return errors.Validation("field conflicts with a service sharing the table").
					WithDetail(name + " is " + string(typ) + " in service " + strconv.FormatInt(o.ServiceID, 10))
			}
		}
	}
	if len(sharing) > 0 {
		r.log.Warn("annexure table shared between services",
			logging.String("table", s.TargetTable),
			logging.Int64("service_id", s.ServiceID),
			logging.Any("shared_with", sharing))
	}
	return nil
}

// declaredTypes keys the first declared type of each field by lower-cased name.
func declaredTypes(s *domainSchema.Schema) map[string]domainSchema.InputType {
	out := make(map[string]domainSchema.InputType)
	for _, row := range s.Rows {
		for _, in := range row.Inputs {
			key := strings.ToLower(strings.TrimSpace(in.Name))
			if _, ok := out[key]; !ok {
				out[key] = in.Type
			}
		}
	}
	return out
}
