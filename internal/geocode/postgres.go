package geocode

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/pkg/errors"
)

const postgresCacheTable = "dim_location_cache"

var postgresCacheColumns = []string{
	"ops_street", "ops_city", "ops_state", "ops_zip5", "organization_name",
	"type", "accuracy", "lon", "lat", "formatted_address",
}

// PostgresCache keeps results in the dim_location_cache table of schema.
type PostgresCache struct {
	db     *sql.DB
	schema string
}

// NewPostgresCache creates a cache over db.
func NewPostgresCache(db *sql.DB, schema string) *PostgresCache {
	return &PostgresCache{db: db, schema: schema}
}

func (c *PostgresCache) table() string {
	return pq.QuoteIdentifier(c.schema) + "." + pq.QuoteIdentifier(postgresCacheTable)
}

// Lookup loads every cached row for the states and organizations in reqs,
// then keeps those matching a request exactly.
func (c *PostgresCache) Lookup(ctx context.Context, reqs []Request) (map[string]Result, error) {
	out := make(map[string]Result)
	if len(reqs) == 0 {
		return out, nil
	}

	wanted := make(map[string]bool, len(reqs))
	states, orgs := make(map[string]bool), make(map[string]bool)
	for _, r := range reqs {
		wanted[r.Key()] = true
		states[r.State] = true
		orgs[r.Organization] = true
	}

	query := fmt.Sprintf(`SELECT ops_street, ops_city, ops_state, ops_zip5, organization_name,
		COALESCE(type, ''), COALESCE(accuracy, 0), COALESCE(lon, 0), COALESCE(lat, 0), formatted_address
		FROM %s
		WHERE ops_state = ANY($1) AND organization_name = ANY($2) AND formatted_address IS NOT NULL`, c.table())

	rows, err := c.db.QueryContext(ctx, query, pq.Array(keys(states)), pq.Array(keys(orgs)))
	if err != nil {
		return nil, errors.Wrap(err, "query geocode cache")
	}
	defer rows.Close()

	for rows.Next() {
		var r Request
		var res Result
		if err := rows.Scan(&r.Street, &r.City, &r.State, &r.Zip, &r.Organization,
			&res.Level, &res.Accuracy, &res.Longitude, &res.Latitude, &res.FormattedAddress); err != nil {
			return nil, errors.Wrap(err, "scan geocode cache row")
		}
		if !wanted[r.Key()] {
			continue
		}
		res.Found = true
		out[r.Key()] = res
	}
	return out, errors.Wrap(rows.Err(), "read geocode cache")
}

// Save appends entries with COPY. Only vendor matches are worth caching;
// duplicates within entries are written once.
func (c *PostgresCache) Save(ctx context.Context, entries []Entry) error {
	seen := make(map[string]bool, len(entries))
	var todo []Entry
	for _, e := range entries {
		if !e.Result.Found || seen[e.Request.Key()] {
			continue
		}
		seen[e.Request.Key()] = true
		todo = append(todo, e)
	}
	if len(todo) == 0 {
		return nil
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin geocode cache write")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, pq.CopyInSchema(c.schema, postgresCacheTable, postgresCacheColumns...))
	if err != nil {
		return errors.Wrap(err, "prepare copy")
	}
	for _, e := range todo {
		r, res := e.Request, e.Result
		if _, err := stmt.ExecContext(ctx, r.Street, r.City, r.State, r.Zip, r.Organization,
			res.Level, res.Accuracy, res.Longitude, res.Latitude, res.FormattedAddress); err != nil {
			_ = stmt.Close()
			return errors.Wrap(err, "copy geocode cache row")
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		_ = stmt.Close()
		return errors.Wrap(err, "flush copy")
	}
	if err := stmt.Close(); err != nil {
		return errors.Wrap(err, "close copy")
	}
	return errors.Wrap(tx.Commit(), "commit geocode cache write")
}

func keys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
