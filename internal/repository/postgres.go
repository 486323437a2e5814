package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"estatechat/internal/model"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Connect opens the shared PostgreSQL pool
func Connect(ctx context.Context, dsn string, maxConn, maxIdleConn int) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(maxConn)
	db.SetMaxIdleConns(maxIdleConn)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// ListingRepository reads the listings table. It never writes to it.
type ListingRepository struct {
	db    *sqlx.DB
	table string
}

// NewListingRepository creates a repository over the given listings table
func NewListingRepository(db *sqlx.DB, table string) (*ListingRepository, error) {
	if !identPattern.MatchString(table) {
		return nil, fmt.Errorf("invalid listings table name %q", table)
	}
	return &ListingRepository{db: db, table: table}, nil
}

const listingColumns = `
	id::text AS id,
	borough::text AS borough,
	neighborhood::text AS neighborhood,
	address::text AS address,
	sale_price::text AS sale_price,
	gross_square_feet::text AS gross_square_feet,
	year_built::text AS year_built`

// FindListings returns raw rows matching the criteria, cheapest first.
//
// Neighborhood is a case-insensitive substring match. Price and area columns may hold
// delimited text, so bounds and ordering use a guarded parse: a value that does not
// parse is unknown, never satisfies a bound and sorts last. Ties break by id.
// criteria.Limit caps the rows returned; zero means no cap.
func (r *ListingRepository) FindListings(ctx context.Context, criteria model.FilterCriteria) ([]model.ListingRow, error) {
	whereClauses := []string{"1=1"}
	args := []interface{}{}
	argIndex := 1

	if criteria.Neighborhood != nil && strings.TrimSpace(*criteria.Neighborhood) != "" {
		whereClauses = append(whereClauses, fmt.Sprintf(`neighborhood::text ILIKE $%d ESCAPE '\'`, argIndex))
		args = append(args, "%"+escapeLike(strings.TrimSpace(*criteria.Neighborhood))+"%")
		argIndex++
	}

	priceExpr := parsedNumberExpr("sale_price")
	if criteria.MaxPrice != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("%s <= $%d", priceExpr, argIndex))
		args = append(args, *criteria.MaxPrice)
		argIndex++
	}

	if criteria.MinSqft != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("%s >= $%d", parsedNumberExpr("gross_square_feet"), argIndex))
		args = append(args, *criteria.MinSqft)
		argIndex++
	}

	// l.id, not the text alias, so integer ids order numerically
	query := fmt.Sprintf(`SELECT %s FROM %s l WHERE %s ORDER BY %s ASC NULLS LAST, l.id`,
		listingColumns, r.table, strings.Join(whereClauses, " AND "), priceExpr)
	if criteria.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIndex)
		args = append(args, criteria.Limit)
	}

	var rows []model.ListingRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to fetch listings: %w", err)
	}
	return rows, nil
}

// parsedNumberExpr parses a possibly delimited numeric column in SQL the way
// utils.ParseNumber does in Go, yielding NULL for anything else.
func parsedNumberExpr(column string) string {
	cleaned := fmt.Sprintf(`regexp_replace(%s::text, '[$,_[:space:]\u00a0]', '', 'g')`, column)
	return fmt.Sprintf(`(CASE WHEN length(%[1]s) <= 32 AND %[1]s ~ '%[2]s' THEN %[1]s::float8 END)`, cleaned, numericPattern)
}

// numericPattern accepts non-negative decimals with an optional short exponent.
const numericPattern = `^([0-9]+\.?[0-9]*|\.[0-9]+)([eE][+-]?[0-9]{1,2})?$`

// GetListing retrieves a single listing by id. It returns nil, nil when absent.
func (r *ListingRepository) GetListing(ctx context.Context, id string) (*model.ListingRow, error) {
	var row model.ListingRow
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id::text = $1`, listingColumns, r.table)
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}
	return &row, nil
}

// ListPage pages through all listings ordered by id, including their descriptions.
// Pass the last id of the previous page as afterID; "" starts from the beginning.
func (r *ListingRepository) ListPage(ctx context.Context, afterID string, pageSize int) ([]model.ListingRow, error) {
	query := fmt.Sprintf(`
		SELECT %s, description::text AS description
		FROM %s
		WHERE id::text > $1
		ORDER BY id::text
		LIMIT $2`, listingColumns, r.table)

	var rows []model.ListingRow
	if err := r.db.SelectContext(ctx, &rows, query, afterID, pageSize); err != nil {
		return nil, fmt.Errorf("failed to page listings: %w", err)
	}
	return rows, nil
}

// Ping checks the database connection
func (r *ListingRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
