package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/m25mathews/rainger-poc/internal/curate"
	"github.com/m25mathews/rainger-poc/internal/match"
	"github.com/m25mathews/rainger-poc/internal/scope"
)

// activeAccountYear drops sold-to accounts not billed since this year.
const activeAccountYear = 2017

// Provider loads the records of one scope.
type Provider struct {
	store *Store
}

// NewProvider creates a provider reading through s.
func NewProvider(s *Store) *Provider {
	return &Provider{store: s}
}

type query struct {
	sql  string
	args []any
}

// pairFilter matches (a, b) against the scope's parallel key lists.
func pairFilter(a, b string, first, second []string) (string, []any) {
	return fmt.Sprintf("(%s, %s) IN (SELECT * FROM unnest($1::text[], $2::text[]))", a, b),
		[]any{pq.Array(first), pq.Array(second)}
}

func incremental(s scope.Scope, column string) string {
	if s.Incremental {
		return "AND " + column + " IS NULL"
	}
	return ""
}

func dimensionQuery(sc Schemas, s scope.Scope) (query, error) {
	switch s.Kind {
	case scope.KindSalesOrder:
		filter, args := pairFilter("oa.organization_id", "dl.state", s.OrganizationIDs, s.States)
		return query{sql: fmt.Sprintf(`SELECT DISTINCT
	dl.id,
	COALESCE(dl.street_num, ''), COALESCE(dl.street, ''), COALESCE(dl.city, ''),
	COALESCE(dl.state, ''), COALESCE(dl.zip5, ''),
	COALESCE(dl.department, ''), COALESCE(dl.attention, ''),
	COALESCE(dl.supplemental, ''), COALESCE(dl.receiver, ''),
	oa.organization_id, COALESCE(oo.organization_name, ''),
	COALESCE(dl.sold_account, ''), COALESCE(dl.ship_account, ''),
	COALESCE(dl.track_code, ''), COALESCE(dl.sub_track_code, ''), COALESCE(dl.country, '')
FROM %s dl
JOIN %s oa ON oa.account = dl.sold_account
LEFT JOIN %s oo ON oo.id = oa.organization_id
WHERE oa.account NOT IN (SELECT account FROM %s)
AND %s
%s
ORDER BY 3`,
			sc.SalesOrderDims(), sc.OrgAccounts(), sc.Organizations(), sc.InvalidAccounts(),
			filter, incremental(s, "dl.ops_location_id")), args: args}, nil

	case scope.KindSoldTo:
		filter, args := pairFilter("oa.organization_id", "left(dim.zip5, 3)", s.OrganizationIDs, s.Zip3s)
		return query{sql: fmt.Sprintf(`SELECT DISTINCT
	trim(dim.id),
	'', COALESCE(trim(dim.street), ''), COALESCE(trim(dim.city), ''),
	COALESCE(trim(dim.region), ''), COALESCE(trim(dim.zip5), ''),
	'', '', '', '',
	oa.organization_id, COALESCE(oo.organization_name, ''),
	'', '', '', '', ''
FROM %s dim
JOIN %s fct ON fct.dim_location_id = dim.id
JOIN %s oa ON oa.account = fct.account
LEFT JOIN %s oo ON oo.id = oa.organization_id
WHERE %s
AND fct.last_bill_date IS NOT NULL
AND extract(year FROM fct.last_bill_date) >= %d
%s`,
			sc.SoldToDims(), sc.SoldToFacts(), sc.OrgAccounts(), sc.Organizations(),
			filter, activeAccountYear, incremental(s, "dim.ops_location_id")), args: args}, nil
	}
	return query{}, errors.Errorf("%s scopes have no dimension records", s.Kind)
}

// Dimensions returns the raw records of a sales-order or sold-to scope.
func (p *Provider) Dimensions(ctx context.Context, s scope.Scope) ([]curate.DimensionRecord, error) {
	q, err := dimensionQuery(p.store.schemas, s)
	if err != nil {
		return nil, err
	}
	rows, err := p.store.Query(ctx, q.sql, q.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []curate.DimensionRecord
	for rows.Next() {
		var d curate.DimensionRecord
		if err := rows.Scan(
			&d.ID, &d.StreetNum, &d.Street, &d.City, &d.State, &d.Zip5,
			&d.Department, &d.Attention, &d.Supplemental, &d.Receiver,
			&d.OrganizationID, &d.OrganizationName,
			&d.SoldAccount, &d.ShipAccount, &d.TrackCode, &d.SubTrackCode, &d.Country,
		); err != nil {
			return nil, errors.Wrap(err, "scan dimension record")
		}
		out = append(out, d)
	}
	return out, errors.Wrap(rows.Err(), "read dimension records")
}

const locationSelect = `SELECT
	id, COALESCE(ops_loc_name, ''), COALESCE(main_loc_name, ''),
	ops_street, ops_sublocation, ops_city, ops_state, ops_zip5, COALESCE(ops_marker, ''),
	organization_id, COALESCE(organization_name, ''),
	latitude, longitude, geocode_accuracy, COALESCE(geocode_level, ''),
	is_address, is_building, is_site, COALESCE(is_residential, false), curated
FROM %s`

func locationQuery(sc Schemas, s scope.Scope) (query, error) {
	base := fmt.Sprintf(locationSelect, sc.Locations())
	switch s.Kind {
	case scope.KindSalesOrder:
		filter, args := pairFilter("organization_id", "ops_state", s.OrganizationIDs, s.States)
		return query{sql: base + "\nWHERE is_site = false\nAND " + filter, args: args}, nil
	case scope.KindFirmographic:
		filter, args := pairFilter("ops_state", "left(ops_zip5, 3)", s.States, s.Zip3s)
		return query{sql: base + "\nWHERE " + filter + "\n" + incremental(s, "dnb_dim_location_id"), args: args}, nil
	case scope.KindKeepstock:
		return query{sql: fmt.Sprintf(`%s ol
WHERE ol.organization_id IN (
	SELECT oa.organization_id FROM %s oa WHERE oa.account = ANY($1)
)`, base, sc.OrgAccounts()), args: []any{pq.Array(s.Accounts)}}, nil
	case scope.KindSoldTo:
		filter, args := pairFilter("organization_id", "left(ops_zip5, 3)", s.OrganizationIDs, s.Zip3s)
		return query{sql: fmt.Sprintf(`SELECT
	id, COALESCE(ops_loc_name, ''), '',
	ops_street, '', ops_city, ops_state, ops_zip5, '',
	organization_id, COALESCE(organization_name, ''),
	latitude, longitude, geocode_accuracy, COALESCE(geocode_level, ''),
	true, false, false, false, false
FROM %s
WHERE %s`, sc.SoldToLocations(), filter), args: args}, nil
	}
	return query{}, errors.Errorf("unknown scope kind %q", s.Kind)
}

// Locations returns the canonical locations a scope resolves against. Sites
// are excluded for sales orders.
func (p *Provider) Locations(ctx context.Context, s scope.Scope) ([]curate.Location, error) {
	q, err := locationQuery(p.store.schemas, s)
	if err != nil {
		return nil, err
	}
	return p.store.scanLocations(ctx, q.sql, q.args...)
}

// Firmographics returns the third-party records of a firmographic scope.
func (p *Provider) Firmographics(ctx context.Context, s scope.Scope) ([]match.Firmographic, error) {
	if s.Kind != scope.KindFirmographic {
		return nil, errors.Errorf("%s scope has no firmographic records", s.Kind)
	}
	filter, args := pairFilter("phys_st_abrv", "left(phys_zip, 3)", s.States, s.Zip3s)
	rows, err := p.store.Query(ctx, fmt.Sprintf(`SELECT DISTINCT id, phys_strt_ad, phys_cty, phys_st_abrv, left(phys_zip, 5)
FROM %s
WHERE %s
AND phys_strt_ad IS NOT NULL AND phys_cty IS NOT NULL
AND phys_st_abrv IS NOT NULL AND phys_zip IS NOT NULL`, p.store.schemas.Firmographics(), filter), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []match.Firmographic
	for rows.Next() {
		var f match.Firmographic
		if err := rows.Scan(&f.ID, &f.Street, &f.City, &f.State, &f.Zip5); err != nil {
			return nil, errors.Wrap(err, "scan firmographic record")
		}
		out = append(out, f)
	}
	return out, errors.Wrap(rows.Err(), "read firmographic records")
}

// Keepstock returns the inventory-program records of a keepstock scope.
func (p *Provider) Keepstock(ctx context.Context, s scope.Scope) ([]match.Keepstock, error) {
	if s.Kind != scope.KindKeepstock {
		return nil, errors.Errorf("%s scope has no keepstock records", s.Kind)
	}
	rows, err := p.store.Query(ctx, fmt.Sprintf(`SELECT DISTINCT
	dl.id, COALESCE(dl.address1, ''), COALESCE(dl.city, ''), COALESCE(dl.province, ''),
	COALESCE(dl.zip5, ''), COALESCE(fp.customer_account, '')
FROM %s dl
LEFT JOIN %s fp ON fp.dim_location_id = dl.id
WHERE fp.customer_account = ANY($1)
%s`, p.store.schemas.KeepstockDims(), p.store.schemas.KeepstockPrograms(), incremental(s, "dl.ops_location_id")),
		pq.Array(s.Accounts))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []match.Keepstock
	for rows.Next() {
		var k match.Keepstock
		if err := rows.Scan(&k.ID, &k.Address1, &k.City, &k.Province, &k.Zip5, &k.Account); err != nil {
			return nil, errors.Wrap(err, "scan keepstock record")
		}
		out = append(out, k)
	}
	return out, errors.Wrap(rows.Err(), "read keepstock records")
}

func sizeQuery(sc Schemas, kind scope.Kind, incr bool) (string, error) {
	null := func(column string) string {
		if incr {
			return "AND " + column + " IS NULL"
		}
		return ""
	}
	switch kind {
	case scope.KindSalesOrder:
		return fmt.Sprintf(`SELECT oa.organization_id, dl.state, '', '', count(DISTINCT dl.id)
FROM %s oa
JOIN %s dl ON dl.sold_account = oa.account
WHERE oa.account NOT IN (SELECT account FROM %s)
%s
GROUP BY 1, 2`, sc.OrgAccounts(), sc.SalesOrderDims(), sc.InvalidAccounts(), null("dl.ops_location_id")), nil
	case scope.KindSoldTo:
		return fmt.Sprintf(`SELECT oa.organization_id, '', COALESCE(left(dim.zip5, 3), ''), '', count(DISTINCT dim.id)
FROM %s dim
JOIN %s fct ON fct.dim_location_id = dim.id
JOIN %s oa ON oa.account = fct.account
WHERE fct.last_bill_date IS NOT NULL
AND extract(year FROM fct.last_bill_date) >= %d
%s
GROUP BY 1, 3`, sc.SoldToDims(), sc.SoldToFacts(), sc.OrgAccounts(), activeAccountYear, null("dim.ops_location_id")), nil
	case scope.KindFirmographic:
		// matching work is dims times locations
		return fmt.Sprintf(`WITH dims AS (
	SELECT phys_st_abrv AS state, left(phys_zip, 3) AS zip3, count(DISTINCT id) AS n
	FROM %s GROUP BY 1, 2
), ops AS (
	SELECT ops_state AS state, left(ops_zip5, 3) AS zip3, count(*) AS n
	FROM %s WHERE true %s GROUP BY 1, 2
)
SELECT '', dims.state, dims.zip3, '', dims.n * ops.n
FROM dims JOIN ops ON ops.state = dims.state AND ops.zip3 = dims.zip3`,
			sc.Firmographics(), sc.Locations(), null("dnb_dim_location_id")), nil
	case scope.KindKeepstock:
		return fmt.Sprintf(`SELECT '', '', '', fp.customer_account, count(DISTINCT dl.id)
FROM %s dl
JOIN %s fp ON fp.dim_location_id = dl.id
WHERE fp.customer_account IS NOT NULL
%s
GROUP BY 4`, sc.KeepstockDims(), sc.KeepstockPrograms(), null("dl.ops_location_id")), nil
	}
	return "", errors.Errorf("unknown scope kind %q", kind)
}

// Sizes estimates the workload of every scope key of kind.
func (p *Provider) Sizes(ctx context.Context, kind scope.Kind, incremental bool) ([]scope.Sized, error) {
	q, err := sizeQuery(p.store.schemas, kind, incremental)
	if err != nil {
		return nil, err
	}
	rows, err := p.store.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []scope.Sized
	for rows.Next() {
		var (
			s     scope.Sized
			state sql.NullString
		)
		if err := rows.Scan(&s.OrganizationID, &state, &s.Zip3, &s.Account, &s.Size); err != nil {
			return nil, errors.Wrap(err, "scan scope size")
		}
		s.State = state.String
		out = append(out, s)
	}
	return out, errors.Wrap(rows.Err(), "read scope sizes")
}
