package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Metric is one row of the run statistics table.
type Metric struct {
	Category   string    `json:"category"`
	Entity     string    `json:"entity"`
	FullName   string    `json:"fullname"`
	Metric     string    `json:"metric"`
	Result     float64   `json:"result"`
	InMillions float64   `json:"inmillions"`
	RunID      string    `json:"run_id"`
	CreatedAt  time.Time `json:"created_at"`
}

type statTable struct {
	category string
	entity   string
	table    Table
	unique   string
	// missing association: column of table that must match refColumn of ref
	column    string
	ref       Table
	refColumn string
}

func (s Schemas) statTables() []statTable {
	return []statTable{
		{category: "CIM", entity: "Account", table: s.OrgAccounts(), unique: "account"},
		{category: "CIM", entity: "Location", table: s.Locations(), unique: "id"},
		{category: "CIM", entity: "Location Hierarchy", table: s.Bridge(), unique: "location_id_p, location_id_c"},
		{category: "CIM", entity: "Organization", table: s.Organizations(), unique: "id"},
		{category: "CIM", entity: "Sold To Location", table: s.SoldToLocations(), unique: "id"},
		{category: "DNB", entity: "Location Dimension", table: s.Firmographics(), unique: "id",
			column: "id", ref: s.Locations(), refColumn: "dnb_dim_location_id"},
		{category: "KEEPSTOCK", entity: "Location Dimension", table: s.KeepstockDims(), unique: "id",
			column: "ops_location_id", ref: s.Locations(), refColumn: "id"},
		{category: "SALES_ORDER", entity: "Location Sales Order Dimension", table: s.SalesOrderDims(), unique: "id",
			column: "ops_location_id", ref: s.Locations(), refColumn: "id"},
		{category: "SOLDTO_ACCOUNT", entity: "Location Dimension", table: s.SoldToDims(), unique: "id",
			column: "ops_location_id", ref: s.SoldToLocations(), refColumn: "id"},
	}
}

func quoteLiteral(v string) string {
	return "'" + strings.ReplaceAll(v, "'", "''") + "'"
}

// statsSQL computes row counts, duplicate keys and missing associations for
// every pipeline table and inserts them tagged with runID.
func statsSQL(sc Schemas, runID string) string {
	var parts []string
	for _, t := range sc.statTables() {
		head := fmt.Sprintf("SELECT %s, %s, %s", quoteLiteral(t.category), quoteLiteral(t.entity), quoteLiteral(t.table.Schema+"."+t.table.Name))
		parts = append(parts, fmt.Sprintf("%s, 'Count', count(*) FROM %s", head, t.table))
		if t.unique != "" {
			parts = append(parts, fmt.Sprintf(
				"%s, 'Duplicates', count(*) FROM (SELECT 1 FROM %s GROUP BY %s HAVING count(*) > 1) d",
				head, t.table, t.unique))
		}
		if t.column != "" {
			parts = append(parts, fmt.Sprintf(
				"%s, 'Missing Association', count(*) FROM %s t LEFT JOIN %s r ON t.%s = r.%s WHERE r.%s IS NULL",
				head, t.table, t.ref, t.column, t.refColumn, t.refColumn))
		}
	}
	return fmt.Sprintf(`INSERT INTO %s (category, entity, fullname, metric, result, inmillions, run_id)
WITH metric_data (category, entity, fullname, metric, result) AS (
	%s
)
SELECT *, round(result / 1000000.0), %s FROM metric_data ORDER BY category, entity, metric`,
		sc.RunMetrics(), strings.Join(parts, "\n\tUNION ALL\n\t"), quoteLiteral(runID))
}

// ComputeStats appends the statistics of the current tables to the run
// metrics table and returns the number of metrics written.
func (s *Store) ComputeStats(ctx context.Context, runID string) (int64, error) {
	n, err := s.Exec(ctx, statsSQL(s.schemas, runID))
	if err != nil {
		return 0, errors.Wrap(err, "compute stats")
	}
	s.logger.Info("run metrics inserted", "run_id", runID, "metrics", n)
	return n, nil
}

// LatestStats returns the metrics of the most recent run.
func (s *Store) LatestStats(ctx context.Context) ([]Metric, error) {
	rows, err := s.Query(ctx, fmt.Sprintf(`SELECT category, entity, fullname, metric, result, inmillions, COALESCE(run_id, ''), created_at
FROM %[1]s
WHERE created_at = (SELECT max(created_at) FROM %[1]s)
ORDER BY category, entity, metric`, s.schemas.RunMetrics()))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Metric
	for rows.Next() {
		var m Metric
		if err := rows.Scan(&m.Category, &m.Entity, &m.FullName, &m.Metric, &m.Result, &m.InMillions, &m.RunID, &m.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan metric")
		}
		out = append(out, m)
	}
	return out, errors.Wrap(rows.Err(), "read metrics")
}
