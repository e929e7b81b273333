// Package attachment lists the uploaded files of a case as public URLs,
// grouped by the heading of the service form that declared them.
package attachment

import (
	"context"
	"net/url"
	"strings"

	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/domain/annexure"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/domain/casefile"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/domain/formschema"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/internal/infrastructure/monitoring/logging"
	"github.com/vanshwebstep/screeningstarnewnode-sub002/pkg/errors"
)

// FileURLResolver turns a stored relative path into a URL a client can fetch.
type FileURLResolver interface {
	URL(ctx context.Context, path string) (string, error)
}

// SchemaSource resolves a service's form definition; nil means none.
type SchemaSource interface {
	Get(ctx context.Context, serviceID int64) (*formschema.Schema, error)
}

// LabeledFetcher reads the populated columns of a case row in request order.
type LabeledFetcher interface {
	FetchLabeled(ctx context.Context, table string, caseID int64, columns []string, labels map[string]string) ([]annexure.LabeledValue, error)
}

// PublicURLResolver joins stored paths onto a fixed base URL.
type PublicURLResolver struct {
	base string
}

func NewPublicURLResolver(base string) (*PublicURLResolver, error) {
	base = strings.TrimSpace(base)
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.InvalidParam("public base url must be absolute").WithDetail(base)
	}
	return &PublicURLResolver{base: strings.TrimRight(base, "/")}, nil
}

func (p *PublicURLResolver) URL(_ context.Context, path string) (string, error) {
	path = strings.TrimSpace(path)
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path, nil
	}
	path = strings.TrimLeft(path, "/")
	if path == "" {
		return "", errors.Validation("empty object path")
	}
	return p.base + "/" + path, nil
}

// tableFiles is the file fields one target table contributes.
type tableFiles struct {
	table   string
	heading string
	fields  []string
	labels  map[string]string
	seen    map[string]struct{}
}

// Resolver builds the attachment listing of a case.
type Resolver struct {
	dir     casefile.Directory
	schemas SchemaSource
	records LabeledFetcher
	urls    FileURLResolver
	log     logging.Logger
}

func NewResolver(dir casefile.Directory, schemas SchemaSource, records LabeledFetcher, urls FileURLResolver, log logging.Logger) *Resolver {
	return &Resolver{dir: dir, schemas: schemas, records: records, urls: urls, log: log.Named("attachment")}
}

// Resolve returns heading -> [{label: url}, ...] for every file field of the
// case's services that holds a value. Services sharing a table contribute
// their file fields once. A stored value may list several comma-separated
// paths; each becomes its own entry. Tables without any value are omitted.
func (r *Resolver) Resolve(ctx context.Context, caseID int64) (map[string][]map[string]string, error) {
	if caseID <= 0 {
		return nil, errors.Validation("case id must be positive")
	}
	c, err := r.dir.GetCase(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if c.ServicesErr != nil {
		return nil, c.ServicesErr
	}

	groups, err := r.group(ctx, c.ServiceIDs)
	if err != nil {
		return nil, err
	}

	out := make(map[string][]map[string]string)
	for _, g := range groups {
		values, err := r.records.FetchLabeled(ctx, g.table, caseID, g.fields, g.labels)
		if err != nil {
			return nil, err
		}
		var entries []map[string]string
		for _, v := range values {
			for _, path := range strings.Split(v.Value, ",") {
				if strings.TrimSpace(path) == "" {
					continue
				}
				u, err := r.urls.URL(ctx, path)
				if err != nil {
					return nil, err
				}
				entries = append(entries, map[string]string{v.Label: u})
			}
		}
		if len(entries) == 0 {
			continue
		}
		out[g.heading] = append(out[g.heading], entries...)
	}

	r.log.Debug("attachments resolved", logging.Int64("case_id", caseID), logging.Int("tables", len(out)))
	return out, nil
}

// group collects file fields per target table in service order.
func (r *Resolver) group(ctx context.Context, serviceIDs []int64) ([]*tableFiles, error) {
	var order []*tableFiles
	byTable := make(map[string]*tableFiles)
	for _, sid := range serviceIDs {
		s, err := r.schemas.Get(ctx, sid)
		if err != nil {
			return nil, err
		}
		if s == nil {
			r.log.Warn("service has no form schema", logging.Int64("service_id", sid))
			continue
		}
		files := s.FileFields()
		if len(files) == 0 {
			continue
		}
		g, ok := byTable[s.TargetTable]
		if !ok {
			heading := s.Heading
			if heading == "" {
				heading = s.TargetTable
			}
			g = &tableFiles{table: s.TargetTable, heading: heading, labels: make(map[string]string), seen: make(map[string]struct{})}
			byTable[s.TargetTable] = g
			order = append(order, g)
		}
		labels := s.Labels()
		for _, f := range files {
			if _, dup := g.seen[f]; dup {
				continue
			}
			g.seen[f] = struct{}{}
			g.fields = append(g.fields, f)
			g.labels[f] = labels[f]
		}
	}
	return order, nil
}
