package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/pkg/errors"
)

// Schemas names the Postgres schemas the pipeline uses. RunSuffix is
// appended to every schema so that several runs can share one database.
type Schemas struct {
	Core         string `koanf:"core"`
	Staging      string `koanf:"staging"`
	SalesOrder   string `koanf:"salesorder"`
	SoldTo       string `koanf:"soldto"`
	Keepstock    string `koanf:"keepstock"`
	Firmographic string `koanf:"firmographic"`
	Metastore    string `koanf:"metastore"`
	RunSuffix    string `koanf:"run_suffix"`
}

// DefaultSchemas returns the production schema names.
func DefaultSchemas() Schemas {
	return Schemas{
		Core:         "cim",
		Staging:      "temp",
		SalesOrder:   "sales_order",
		SoldTo:       "soldto_account",
		Keepstock:    "keepstock",
		Firmographic: "dnb",
		Metastore:    "metastore",
	}
}

// Table is a schema-qualified table name.
type Table struct {
	Schema string
	Name   string
}

func (t Table) String() string {
	return pq.QuoteIdentifier(t.Schema) + "." + pq.QuoteIdentifier(t.Name)
}

func (s Schemas) table(schema, name string) Table {
	return Table{Schema: strings.ToLower(schema + s.RunSuffix), Name: name}
}

func (s Schemas) Locations() Table        { return s.table(s.Core, "location") }
func (s Schemas) SoldToLocations() Table  { return s.table(s.Core, "soldto_location") }
func (s Schemas) Bridge() Table           { return s.table(s.Core, "brg_location") }
func (s Schemas) Organizations() Table    { return s.table(s.Core, "organization") }
func (s Schemas) OrgAccounts() Table      { return s.table(s.Core, "organization_soldto_account") }
func (s Schemas) InvalidAccounts() Table  { return s.table(s.Core, "invalid_account") }
func (s Schemas) GeocodeCache() Table     { return s.table(s.Core, "dim_location_cache") }
func (s Schemas) SalesOrderDims() Table   { return s.table(s.SalesOrder, "dim_location_sales_order") }
func (s Schemas) SoldToDims() Table       { return s.table(s.SoldTo, "dim_location_soldto") }
func (s Schemas) SoldToFacts() Table      { return s.table(s.SoldTo, "fct_account_soldto") }
func (s Schemas) KeepstockDims() Table    { return s.table(s.Keepstock, "dim_location_keepstock") }
func (s Schemas) KeepstockPrograms() Table { return s.table(s.Keepstock, "fct_program_keepstock") }
func (s Schemas) Firmographics() Table    { return s.table(s.Firmographic, "dim_location_dnb") }
func (s Schemas) ParentStage() Table      { return s.table(s.Staging, "stg_parent_loc") }
func (s Schemas) SiteStage() Table        { return s.table(s.Staging, "stg_site_loc") }
func (s Schemas) RunMetrics() Table       { return s.table(s.Metastore, "run_metrics") }

// AssociationStage is the staging table of one source kind.
func (s Schemas) AssociationStage(kind string) Table {
	return s.table(s.Staging, "stg_location_ass_"+kind)
}

// locationDDL is shared by the location table and its preload copies.
const locationDDL = `(
	id                  varchar(36) PRIMARY KEY,
	ops_loc_name        varchar(200),
	main_loc_name       varchar(200),
	ops_street          varchar(200) NOT NULL DEFAULT '',
	ops_city            varchar(200) NOT NULL DEFAULT '',
	ops_state           varchar(200) NOT NULL DEFAULT '',
	ops_zip5            varchar(20) NOT NULL DEFAULT '',
	ops_sublocation     varchar(200) NOT NULL DEFAULT '',
	ops_marker          varchar(500),
	organization_id     varchar(64) NOT NULL DEFAULT '',
	organization_name   varchar(200),
	curated             boolean NOT NULL DEFAULT false,
	latitude            double precision,
	longitude           double precision,
	is_building         boolean NOT NULL DEFAULT false,
	is_address          boolean NOT NULL DEFAULT false,
	is_site             boolean NOT NULL DEFAULT false,
	is_residential      boolean,
	geocode_accuracy    double precision,
	geocode_level       varchar(255),
	dnb_dim_location_id varchar(64),
	dnb_match_score     double precision
)`

const associationDDL = `(
	dim_location_id varchar(64) NOT NULL,
	ops_location_id varchar(64) NOT NULL,
	ops_match_score double precision NOT NULL,
	method          varchar(32) NOT NULL
)`

// EnsureSchema creates the schemas and the tables the pipeline owns. Source
// tables are created too so an empty database can run end to end.
func (s *Store) EnsureSchema(ctx context.Context) error {
	sc := s.schemas
	var stmts []string
	for _, schema := range []string{sc.Core, sc.Staging, sc.SalesOrder, sc.SoldTo, sc.Keepstock, sc.Firmographic, sc.Metastore} {
		stmts = append(stmts, "CREATE SCHEMA IF NOT EXISTS "+pq.QuoteIdentifier(strings.ToLower(schema+sc.RunSuffix)))
	}
	create := func(t Table, ddl string) {
		stmts = append(stmts, fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s %s", t, ddl))
	}

	create(sc.Locations(), locationDDL)
	create(sc.SoldToLocations(), `(
		id                varchar(36) PRIMARY KEY,
		ops_loc_name      varchar(200),
		ops_street        varchar(200) NOT NULL DEFAULT '',
		ops_city          varchar(200) NOT NULL DEFAULT '',
		ops_state         varchar(200) NOT NULL DEFAULT '',
		ops_zip5          varchar(200) NOT NULL DEFAULT '',
		organization_id   varchar(64) NOT NULL DEFAULT '',
		organization_name varchar(200),
		latitude          double precision,
		longitude         double precision,
		geocode_accuracy  double precision,
		geocode_level     varchar(255)
	)`)
	create(sc.Bridge(), `(
		location_id_p    varchar(36) NOT NULL,
		location_id_c    varchar(36) NOT NULL,
		levels_removed   integer NOT NULL,
		parent_is_top    boolean NOT NULL,
		parent_is_bottom boolean NOT NULL,
		child_is_top     boolean NOT NULL,
		child_is_bottom  boolean NOT NULL
	)`)
	create(sc.Organizations(), `(id varchar(64) PRIMARY KEY, organization_name varchar(200))`)
	create(sc.OrgAccounts(), `(account varchar(64) NOT NULL, organization_id varchar(64) NOT NULL)`)
	create(sc.InvalidAccounts(), `(account varchar(64) PRIMARY KEY)`)
	create(sc.GeocodeCache(), `(
		ops_street        text NOT NULL,
		ops_city          text NOT NULL,
		ops_state         text NOT NULL,
		ops_zip5          text NOT NULL,
		organization_name text NOT NULL,
		type              text,
		accuracy          double precision,
		lon               double precision,
		lat               double precision,
		formatted_address text
	)`)
	create(sc.SalesOrderDims(), `(
		id              varchar(64) PRIMARY KEY,
		sold_account    varchar(64),
		ship_account    varchar(64),
		track_code      varchar(64),
		sub_track_code  varchar(64),
		department      varchar(200),
		attention       varchar(200),
		supplemental    varchar(200),
		receiver        varchar(200),
		street_num      varchar(64),
		street          varchar(200),
		city            varchar(200),
		state           varchar(64),
		zip5            varchar(20),
		country         varchar(64),
		ops_location_id varchar(36),
		ops_match_score double precision
	)`)
	create(sc.SoldToDims(), `(
		id              varchar(64) PRIMARY KEY,
		street          varchar(200),
		city            varchar(200),
		region          varchar(64),
		zip5            varchar(20),
		ops_location_id varchar(36),
		ops_match_score double precision
	)`)
	create(sc.SoldToFacts(), `(dim_location_id varchar(64) NOT NULL, account varchar(64) NOT NULL, last_bill_date date)`)
	create(sc.KeepstockDims(), `(
		id              varchar(64) PRIMARY KEY,
		address1        varchar(200),
		city            varchar(200),
		province        varchar(64),
		zip5            varchar(20),
		ops_location_id varchar(36),
		ops_match_score double precision
	)`)
	create(sc.KeepstockPrograms(), `(dim_location_id varchar(64) NOT NULL, customer_account varchar(64))`)
	create(sc.Firmographics(), `(
		id           varchar(64) PRIMARY KEY,
		phys_strt_ad varchar(200),
		phys_cty     varchar(200),
		phys_st_abrv varchar(64),
		phys_zip     varchar(20)
	)`)
	create(sc.SiteStage(), locationDDL)
	create(sc.ParentStage(), `(parent_loc_name varchar(200) NOT NULL, child_location_ids text[] NOT NULL)`)
	for _, kind := range []string{"salesorder", "soldto", "firmographic", "keepstock"} {
		create(sc.AssociationStage(kind), associationDDL)
	}
	create(sc.RunMetrics(), `(
		category   varchar(64),
		entity     varchar(64),
		fullname   varchar(200),
		metric     varchar(64),
		result     double precision,
		inmillions double precision,
		run_id     varchar(64),
		created_at timestamptz NOT NULL DEFAULT now()
	)`)

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrapf(err, "ensure schema: %s", firstLine(stmt))
		}
	}
	return nil
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
