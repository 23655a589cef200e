package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/m25mathews/rainger-poc/internal/cluster"
	"github.com/m25mathews/rainger-poc/internal/curate"
	"github.com/m25mathews/rainger-poc/internal/match"
)

// LocationColumns are the columns written for a canonical location.
var LocationColumns = []string{
	"id", "ops_loc_name", "main_loc_name", "ops_street", "ops_city", "ops_state", "ops_zip5",
	"ops_sublocation", "ops_marker", "organization_id", "organization_name", "curated",
	"latitude", "longitude", "is_building", "is_address", "is_site", "is_residential",
	"geocode_accuracy", "geocode_level",
}

// LocationKey identifies a location in the destination table.
var LocationKey = []string{"ops_street", "ops_city", "ops_state", "ops_zip5", "ops_sublocation", "organization_id", "is_site"}

// SoldToLocationColumns are the columns written for a sold-to location.
var SoldToLocationColumns = []string{
	"id", "organization_name", "organization_id", "ops_street", "ops_city", "ops_state",
	"ops_loc_name", "ops_zip5", "latitude", "longitude", "geocode_accuracy", "geocode_level",
}

// SoldToLocationKey identifies a sold-to location.
var SoldToLocationKey = []string{"ops_street", "ops_city", "ops_state", "ops_zip5", "organization_id"}

// AssociationColumns are the staged association columns.
var AssociationColumns = []string{"dim_location_id", "ops_location_id", "ops_match_score", "method"}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func coordinates(l curate.Location) (lat, lon, acc any) {
	if !l.Geocoded {
		return nil, nil, nil
	}
	return l.Latitude, l.Longitude, l.Accuracy
}

// LocationRow renders l in LocationColumns order. residential is nil when
// the location has not been checked yet.
func LocationRow(l curate.Location, residential *bool) []any {
	lat, lon, acc := coordinates(l)
	var res any
	if residential != nil {
		res = *residential
	}
	return []any{
		l.ID, l.Name, nullString(l.MainName), l.Street, l.City, l.State, l.Zip5,
		l.Sublocation, nullString(l.Marker), l.OrganizationID, l.OrganizationName, l.Curated,
		lat, lon, l.IsBuilding, l.IsAddress, l.IsSite, res,
		acc, nullString(l.Level),
	}
}

// SoldToLocationRow renders l in SoldToLocationColumns order.
func SoldToLocationRow(l curate.Location) []any {
	lat, lon, acc := coordinates(l)
	return []any{
		l.ID, l.OrganizationName, l.OrganizationID, l.Street, l.City, l.State,
		l.Name, l.Zip5, lat, lon, acc, nullString(l.Level),
	}
}

// AssociationRows renders associations in AssociationColumns order.
func AssociationRows(assocs []match.Association) [][]any {
	out := make([][]any, len(assocs))
	for i, a := range assocs {
		out[i] = []any{a.DimensionID, a.LocationID, a.Score, string(a.Method)}
	}
	return out
}

// LocationStager stages canonical locations.
func (s *Store) LocationStager(ctx context.Context) (*Stager, error) {
	return s.NewStager(ctx, s.schemas.Locations(), LocationColumns, LocationKey)
}

// SoldToLocationStager stages sold-to locations.
func (s *Store) SoldToLocationStager(ctx context.Context) (*Stager, error) {
	return s.NewStager(ctx, s.schemas.SoldToLocations(), SoldToLocationColumns, SoldToLocationKey)
}

// StageAssociations appends associations to the staging table of kind.
func (s *Store) StageAssociations(ctx context.Context, kind string, assocs []match.Association) error {
	return s.Upload(ctx, s.schemas.AssociationStage(kind), AssociationColumns, AssociationRows(assocs))
}

// ClearAssociations empties the staging table of kind.
func (s *Store) ClearAssociations(ctx context.Context, kind string) error {
	return s.Truncate(ctx, s.schemas.AssociationStage(kind))
}

// Parent is a staged site: the site name and the locations it groups.
type Parent struct {
	Name     string
	Children []string
}

// StageParents appends site links to the parent staging table.
func (s *Store) StageParents(ctx context.Context, parents []Parent) error {
	rows := make([][]any, len(parents))
	for i, p := range parents {
		rows[i] = []any{p.Name, pq.Array(p.Children)}
	}
	return s.Upload(ctx, s.schemas.ParentStage(), []string{"parent_loc_name", "child_location_ids"}, rows)
}

// StageSites stages site locations and the children each one groups.
func (s *Store) StageSites(ctx context.Context, sites []cluster.Site) error {
	if len(sites) == 0 {
		return nil
	}
	no := false
	rows := make([][]any, len(sites))
	parents := make([]Parent, len(sites))
	for i, site := range sites {
		rows[i] = LocationRow(site.Location, &no)
		parents[i] = Parent{Name: site.Name, Children: site.Children}
	}
	if err := s.Upload(ctx, s.schemas.SiteStage(), LocationColumns, rows); err != nil {
		return errors.Wrap(err, "stage sites")
	}
	return errors.Wrap(s.StageParents(ctx, parents), "stage parents")
}

// ClearSites empties the site and parent staging tables.
func (s *Store) ClearSites(ctx context.Context) error {
	if err := s.Truncate(ctx, s.schemas.SiteStage()); err != nil {
		return err
	}
	return s.Truncate(ctx, s.schemas.ParentStage())
}

// CommitSites replaces the current sites with the staged ones and points
// the staged children at their site.
func (s *Store) CommitSites(ctx context.Context) error {
	sc := s.schemas
	cols := quoteAll(LocationColumns)
	return s.execAll(ctx, []string{
		fmt.Sprintf("DELETE FROM %s WHERE is_site = true", sc.Locations()),
		fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s", sc.Locations(), cols, cols, sc.SiteStage()),
		fmt.Sprintf(`UPDATE %s l
SET main_loc_name = p.parent_loc_name
FROM (SELECT parent_loc_name, unnest(child_location_ids) AS child_id FROM %s) p
WHERE l.id = p.child_id`, sc.Locations(), sc.ParentStage()),
	})
}

// commitSQL copies staged associations onto their target records. Sales
// orders, sold-to and keepstock records point at a location; firmographic
// associations are stored on the location. When a record was staged more
// than once the best score wins, and associations to locations that were
// never merged are ignored.
func commitSQL(sc Schemas, kind string) (string, error) {
	stage := sc.AssociationStage(kind)
	locations := sc.Locations()
	var target Table
	switch kind {
	case "salesorder":
		target = sc.SalesOrderDims()
	case "soldto":
		target, locations = sc.SoldToDims(), sc.SoldToLocations()
	case "keepstock":
		target = sc.KeepstockDims()
	case "firmographic":
		return fmt.Sprintf(`UPDATE %s t
SET dnb_dim_location_id = s.dim_location_id, dnb_match_score = s.ops_match_score
FROM (
	SELECT DISTINCT ON (ops_location_id) dim_location_id, ops_location_id, ops_match_score
	FROM %s
	ORDER BY ops_location_id, ops_match_score DESC, dim_location_id
) s
WHERE t.id = s.ops_location_id`, locations, stage), nil
	default:
		return "", errors.Errorf("unknown association kind %q", kind)
	}
	return fmt.Sprintf(`UPDATE %s t
SET ops_location_id = s.ops_location_id, ops_match_score = s.ops_match_score
FROM (
	SELECT DISTINCT ON (dim_location_id) dim_location_id, ops_location_id, ops_match_score
	FROM %s
	WHERE ops_location_id IN (SELECT id FROM %s)
	ORDER BY dim_location_id, ops_match_score DESC, ops_location_id
) s
WHERE t.id = s.dim_location_id`, target, stage, locations), nil
}

// CommitAssociations applies the staged associations of kind.
func (s *Store) CommitAssociations(ctx context.Context, kind string) (int64, error) {
	q, err := commitSQL(s.schemas, kind)
	if err != nil {
		return 0, err
	}
	n, err := s.Exec(ctx, q)
	if err != nil {
		return 0, err
	}
	s.logger.Info("committed associations", "kind", kind, "rows", n)
	return n, nil
}

// ResetLocations removes every location and unlinks the records that
// pointed at them. Used before full runs.
func (s *Store) ResetLocations(ctx context.Context) error {
	sc := s.schemas
	return s.execAll(ctx, []string{
		"TRUNCATE " + sc.Locations().String(),
		"TRUNCATE " + sc.Bridge().String(),
		fmt.Sprintf("UPDATE %s SET ops_location_id = NULL, ops_match_score = NULL", sc.SalesOrderDims()),
		fmt.Sprintf("UPDATE %s SET ops_location_id = NULL, ops_match_score = NULL", sc.KeepstockDims()),
	})
}

// ResetSoldToLocations is ResetLocations for sold-to accounts.
func (s *Store) ResetSoldToLocations(ctx context.Context) error {
	sc := s.schemas
	return s.execAll(ctx, []string{
		"TRUNCATE " + sc.SoldToLocations().String(),
		fmt.Sprintf("UPDATE %s SET ops_location_id = NULL, ops_match_score = NULL", sc.SoldToDims()),
	})
}

// execAll runs stmts in one transaction.
func (s *Store) execAll(ctx context.Context, stmts []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer tx.Rollback()
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return errors.Wrapf(err, "exec: %s", firstLine(stmt))
		}
	}
	return errors.Wrap(tx.Commit(), "commit")
}

// StagedSites reads the staged parent links.
func (s *Store) StagedSites(ctx context.Context) ([]Parent, error) {
	rows, err := s.Query(ctx, fmt.Sprintf("SELECT parent_loc_name, child_location_ids FROM %s", s.schemas.ParentStage()))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Parent
	for rows.Next() {
		var p Parent
		if err := rows.Scan(&p.Name, pq.Array(&p.Children)); err != nil {
			return nil, errors.Wrap(err, "scan parent")
		}
		out = append(out, p)
	}
	return out, errors.Wrap(rows.Err(), "read parents")
}

// HierarchyNode is the part of a location the bridge table is built from.
type HierarchyNode struct {
	ID       string
	Name     string
	MainName string
}

// Hierarchy loads every location's id and names.
func (s *Store) Hierarchy(ctx context.Context) ([]HierarchyNode, error) {
	rows, err := s.Query(ctx, fmt.Sprintf(
		"SELECT id, COALESCE(ops_loc_name, ''), COALESCE(main_loc_name, '') FROM %s ORDER BY id", s.schemas.Locations()))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []HierarchyNode
	for rows.Next() {
		var n HierarchyNode
		if err := rows.Scan(&n.ID, &n.Name, &n.MainName); err != nil {
			return nil, errors.Wrap(err, "scan hierarchy node")
		}
		out = append(out, n)
	}
	return out, errors.Wrap(rows.Err(), "read hierarchy")
}

// BridgeColumns are the bridge table columns.
var BridgeColumns = []string{
	"location_id_p", "location_id_c", "levels_removed",
	"parent_is_top", "parent_is_bottom", "child_is_top", "child_is_bottom",
}

// ReplaceBridge truncates the bridge table and loads rows.
func (s *Store) ReplaceBridge(ctx context.Context, rows [][]any) error {
	if err := s.Truncate(ctx, s.schemas.Bridge()); err != nil {
		return err
	}
	return s.Upload(ctx, s.schemas.Bridge(), BridgeColumns, rows)
}

// UncheckedLocations returns the non-site locations without a residential
// flag.
func (s *Store) UncheckedLocations(ctx context.Context) ([]curate.Location, error) {
	q := fmt.Sprintf(locationSelect, s.schemas.Locations()) + "\nWHERE is_site = false AND is_residential IS NULL"
	return s.scanLocations(ctx, q)
}

// SetResidential records the residential flag for every checked location.
func (s *Store) SetResidential(ctx context.Context, checked, residential []string) error {
	_, err := s.Exec(ctx, fmt.Sprintf(
		"UPDATE %s SET is_residential = (id = ANY($2)) WHERE id = ANY($1)", s.schemas.Locations()),
		pq.Array(checked), pq.Array(residential))
	return err
}

func (s *Store) scanLocations(ctx context.Context, q string, args ...any) ([]curate.Location, error) {
	rows, err := s.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []curate.Location
	for rows.Next() {
		var (
			l             curate.Location
			lat, lon, acc sql.NullFloat64
		)
		if err := rows.Scan(
			&l.ID, &l.Name, &l.MainName,
			&l.Street, &l.Sublocation, &l.City, &l.State, &l.Zip5, &l.Marker,
			&l.OrganizationID, &l.OrganizationName,
			&lat, &lon, &acc, &l.Level,
			&l.IsAddress, &l.IsBuilding, &l.IsSite, &l.IsResidential, &l.Curated,
		); err != nil {
			return nil, errors.Wrap(err, "scan location")
		}
		if lat.Valid && lon.Valid {
			l.Latitude, l.Longitude, l.Geocoded = lat.Float64, lon.Float64, true
		}
		l.Accuracy = acc.Float64
		out = append(out, l)
	}
	return out, errors.Wrap(rows.Err(), "read locations")
}
