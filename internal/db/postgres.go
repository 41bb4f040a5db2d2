package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/XSAM/otelsql"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/openadstack/addecide/internal/models"
)

// ErrNotFound is returned when a row lookup matches nothing.
var ErrNotFound = errors.New("not found")

// Postgres wraps the relational store holding placements, campaigns,
// creatives, line items and provider mappings.
type Postgres struct {
	DB *sql.DB
}

// schemaSQL sets up the necessary tables if they don't exist.
const schemaSQL = `CREATE TABLE IF NOT EXISTS placements (
    id TEXT PRIMARY KEY,
    code TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL DEFAULT '',
    width INT NOT NULL DEFAULT 0,
    height INT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS campaigns (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'active'
);

CREATE TABLE IF NOT EXISTS creatives (
    id TEXT PRIMARY KEY,
    type TEXT NOT NULL DEFAULT 'banner',
    file_url TEXT,
    third_party_tag TEXT,
    click_url_template TEXT,
    width INT NOT NULL DEFAULT 0,
    height INT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS line_items (
    id TEXT PRIMARY KEY,
    creative_id TEXT NOT NULL REFERENCES creatives(id),
    campaign_id TEXT NOT NULL REFERENCES campaigns(id),
    placement_id TEXT NOT NULL REFERENCES placements(id),
    name TEXT NOT NULL DEFAULT '',
    priority INT NOT NULL DEFAULT 0,
    weight INT NOT NULL DEFAULT 1,
    status TEXT NOT NULL DEFAULT 'active',
    targeting JSONB,
    start_at TIMESTAMPTZ NOT NULL,
    end_at TIMESTAMPTZ NOT NULL,
    rotation_strategy TEXT,
    served_impressions INT NOT NULL DEFAULT 0,
    max_impressions_total INT,
    max_impressions_daily INT,
    freq_cap_count INT NOT NULL DEFAULT 0,
    freq_cap_window_seconds INT NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS provider_mappings (
    id TEXT PRIMARY KEY,
    placement_id TEXT NOT NULL REFERENCES placements(id),
    tag_template TEXT NOT NULL,
    priority INT NOT NULL DEFAULT 0,
    is_active BOOLEAN NOT NULL DEFAULT TRUE
);

-- Performance indexes for the decision path
CREATE INDEX IF NOT EXISTS idx_line_items_placement_id ON line_items (placement_id);
CREATE INDEX IF NOT EXISTS idx_line_items_status_dates ON line_items (status, start_at, end_at) WHERE status = 'active';
CREATE INDEX IF NOT EXISTS idx_provider_mappings_placement_id ON provider_mappings (placement_id) WHERE is_active;
`

// InitPostgres connects to Postgres with connection pooling configuration.
func InitPostgres(dsn string, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) (*Postgres, error) {
	driverName, err := otelsql.Register("postgres",
		otelsql.WithAttributes(
			attribute.String("db.system", "postgresql"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("register otelsql: %w", err)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres open: %w", err)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)
	db.SetConnMaxIdleTime(connMaxIdleTime)

	if err := db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	p := &Postgres{DB: db}
	if err := p.ensureSchema(); err != nil {
		return nil, err
	}
	zap.L().Info("Connected to Postgres",
		zap.Int("max_open_conns", maxOpenConns),
		zap.Int("max_idle_conns", maxIdleConns))
	return p, nil
}

// Close terminates the Postgres connection.
func (p *Postgres) Close() {
	if p != nil && p.DB != nil {
		if err := p.DB.Close(); err != nil {
			zap.L().Error("postgres close", zap.Error(err))
		}
	}
}

func (p *Postgres) ensureSchema() error {
	if _, err := p.DB.ExecContext(context.Background(), schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

const lineItemColumns = `li.id, li.creative_id, li.campaign_id, li.placement_id, li.name,
	li.priority, li.weight, li.status, li.targeting, li.start_at, li.end_at,
	li.rotation_strategy, li.served_impressions, li.max_impressions_total, li.max_impressions_daily,
	li.freq_cap_count, li.freq_cap_window_seconds,
	c.type, c.file_url, c.third_party_tag, c.click_url_template, c.width, c.height`

// LineItemsForPlacement returns every line item assigned to the placement
// code, joined with its creative's rendering fields. No status or schedule
// filtering happens here; the decision engine owns eligibility.
func (p *Postgres) LineItemsForPlacement(ctx context.Context, placementCode string) ([]models.LineItem, error) {
	rows, err := p.DB.QueryContext(ctx, `SELECT `+lineItemColumns+`
		FROM line_items li
		JOIN creatives c ON c.id = li.creative_id
		JOIN placements pl ON pl.id = li.placement_id
		WHERE pl.code = $1`, placementCode)
	if err != nil {
		return nil, fmt.Errorf("query line items: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var items []models.LineItem
	for rows.Next() {
		li, err := scanLineItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *li)
	}
	return items, rows.Err()
}

// ListLineItems returns every line item with its creative fields.
func (p *Postgres) ListLineItems(ctx context.Context) ([]models.LineItem, error) {
	rows, err := p.DB.QueryContext(ctx, `SELECT `+lineItemColumns+`
		FROM line_items li
		JOIN creatives c ON c.id = li.creative_id
		ORDER BY li.id`)
	if err != nil {
		return nil, fmt.Errorf("query line items: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var items []models.LineItem
	for rows.Next() {
		li, err := scanLineItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *li)
	}
	return items, rows.Err()
}

// GetLineItem returns a single line item with its creative fields, or
// ErrNotFound.
func (p *Postgres) GetLineItem(ctx context.Context, id string) (*models.LineItem, error) {
	rows, err := p.DB.QueryContext(ctx, `SELECT `+lineItemColumns+`
		FROM line_items li
		JOIN creatives c ON c.id = li.creative_id
		WHERE li.id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("query line item: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, ErrNotFound
	}
	return scanLineItem(rows)
}

func scanLineItem(rows *sql.Rows) (*models.LineItem, error) {
	var li models.LineItem
	var name, status, strategy, crType, fileURL, tag, clickURL sql.NullString
	var targeting []byte
	var maxTotal, maxDaily sql.NullInt64
	var freqWindowSecs int
	if err := rows.Scan(&li.ID, &li.CreativeID, &li.CampaignID, &li.PlacementID, &name,
		&li.Priority, &li.Weight, &status, &targeting, &li.StartAt, &li.EndAt,
		&strategy, &li.ServedImpressions, &maxTotal, &maxDaily,
		&li.FreqCapCount, &freqWindowSecs,
		&crType, &fileURL, &tag, &clickURL, &li.CreativeWidth, &li.CreativeHeight); err != nil {
		return nil, fmt.Errorf("scan line item: %w", err)
	}
	li.Name = name.String
	li.Status = status.String
	li.RotationStrategy = strategy.String
	li.CreativeType = crType.String
	li.CreativeFileURL = fileURL.String
	li.CreativeThirdPartyTag = tag.String
	li.CreativeClickURL = clickURL.String
	li.FreqCapWindow = time.Duration(freqWindowSecs) * time.Second
	if maxTotal.Valid {
		v := int(maxTotal.Int64)
		li.MaxImpressionsTotal = &v
	}
	if maxDaily.Valid {
		v := int(maxDaily.Int64)
		li.MaxImpressionsDaily = &v
	}
	if len(targeting) > 0 {
		var rule models.TargetingRule
		if err := json.Unmarshal(targeting, &rule); err != nil {
			return nil, fmt.Errorf("decode targeting for line item %s: %w", li.ID, err)
		}
		li.Targeting = &rule
	}
	return &li, nil
}

// ProviderTag returns the highest-priority active provider tag for the
// placement code, or empty when none is configured.
func (p *Postgres) ProviderTag(ctx context.Context, placementCode string) (string, error) {
	var tag string
	err := p.DB.QueryRowContext(ctx, `SELECT pm.tag_template
		FROM provider_mappings pm
		JOIN placements pl ON pl.id = pm.placement_id
		WHERE pl.code = $1 AND pm.is_active
		ORDER BY pm.priority ASC
		LIMIT 1`, placementCode).Scan(&tag)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query provider tag: %w", err)
	}
	return tag, nil
}

// IncrementServedImpressions bumps the lifetime impression counter for a
// line item. Called by the event tracking layer, never by the decision
// engine; the UPDATE is atomic so concurrent impressions don't double-count.
func (p *Postgres) IncrementServedImpressions(ctx context.Context, lineItemID string) error {
	_, err := p.DB.ExecContext(ctx,
		`UPDATE line_items SET served_impressions = served_impressions + 1 WHERE id = $1`, lineItemID)
	if err != nil {
		return fmt.Errorf("increment served impressions: %w", err)
	}
	return nil
}

// ===== Placements =====

func (p *Postgres) ListPlacements(ctx context.Context) ([]models.Placement, error) {
	rows, err := p.DB.QueryContext(ctx, `SELECT id, code, name, width, height FROM placements ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("query placements: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()
	var out []models.Placement
	for rows.Next() {
		var pl models.Placement
		if err := rows.Scan(&pl.ID, &pl.Code, &pl.Name, &pl.Width, &pl.Height); err != nil {
			return nil, fmt.Errorf("scan placement: %w", err)
		}
		out = append(out, pl)
	}
	return out, rows.Err()
}

func (p *Postgres) InsertPlacement(ctx context.Context, pl *models.Placement) error {
	if pl.ID == "" {
		pl.ID = uuid.NewString()
	}
	_, err := p.DB.ExecContext(ctx,
		`INSERT INTO placements (id, code, name, width, height) VALUES ($1,$2,$3,$4,$5)`,
		pl.ID, pl.Code, pl.Name, pl.Width, pl.Height)
	if err != nil {
		return fmt.Errorf("insert placement: %w", err)
	}
	return nil
}

func (p *Postgres) UpdatePlacement(ctx context.Context, pl models.Placement) error {
	res, err := p.DB.ExecContext(ctx,
		`UPDATE placements SET code=$2, name=$3, width=$4, height=$5 WHERE id=$1`,
		pl.ID, pl.Code, pl.Name, pl.Width, pl.Height)
	if err != nil {
		return fmt.Errorf("update placement: %w", err)
	}
	return requireRow(res)
}

func (p *Postgres) DeletePlacement(ctx context.Context, id string) error {
	res, err := p.DB.ExecContext(ctx, `DELETE FROM placements WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete placement: %w", err)
	}
	return requireRow(res)
}

// ===== Campaigns =====

func (p *Postgres) ListCampaigns(ctx context.Context) ([]models.Campaign, error) {
	rows, err := p.DB.QueryContext(ctx, `SELECT id, name, status FROM campaigns ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query campaigns: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()
	var out []models.Campaign
	for rows.Next() {
		var c models.Campaign
		if err := rows.Scan(&c.ID, &c.Name, &c.Status); err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (p *Postgres) InsertCampaign(ctx context.Context, c *models.Campaign) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Status == "" {
		c.Status = models.StatusActive
	}
	_, err := p.DB.ExecContext(ctx,
		`INSERT INTO campaigns (id, name, status) VALUES ($1,$2,$3)`, c.ID, c.Name, c.Status)
	if err != nil {
		return fmt.Errorf("insert campaign: %w", err)
	}
	return nil
}

func (p *Postgres) UpdateCampaign(ctx context.Context, c models.Campaign) error {
	res, err := p.DB.ExecContext(ctx,
		`UPDATE campaigns SET name=$2, status=$3 WHERE id=$1`, c.ID, c.Name, c.Status)
	if err != nil {
		return fmt.Errorf("update campaign: %w", err)
	}
	return requireRow(res)
}

func (p *Postgres) DeleteCampaign(ctx context.Context, id string) error {
	res, err := p.DB.ExecContext(ctx, `DELETE FROM campaigns WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete campaign: %w", err)
	}
	return requireRow(res)
}

// ===== Creatives =====

func (p *Postgres) ListCreatives(ctx context.Context) ([]models.Creative, error) {
	rows, err := p.DB.QueryContext(ctx,
		`SELECT id, type, file_url, third_party_tag, click_url_template, width, height FROM creatives`)
	if err != nil {
		return nil, fmt.Errorf("query creatives: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()
	var out []models.Creative
	for rows.Next() {
		var c models.Creative
		var fileURL, tag, clickURL sql.NullString
		if err := rows.Scan(&c.ID, &c.Type, &fileURL, &tag, &clickURL, &c.Width, &c.Height); err != nil {
			return nil, fmt.Errorf("scan creative: %w", err)
		}
		c.FileURL = fileURL.String
		c.ThirdPartyTag = tag.String
		c.ClickURLTemplate = clickURL.String
		out = append(out, c)
	}
	return out, rows.Err()
}

func (p *Postgres) InsertCreative(ctx context.Context, c *models.Creative) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Type == "" {
		c.Type = models.CreativeTypeBanner
	}
	_, err := p.DB.ExecContext(ctx,
		`INSERT INTO creatives (id, type, file_url, third_party_tag, click_url_template, width, height)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		c.ID, c.Type, c.FileURL, c.ThirdPartyTag, c.ClickURLTemplate, c.Width, c.Height)
	if err != nil {
		return fmt.Errorf("insert creative: %w", err)
	}
	return nil
}

func (p *Postgres) UpdateCreative(ctx context.Context, c models.Creative) error {
	res, err := p.DB.ExecContext(ctx,
		`UPDATE creatives SET type=$2, file_url=$3, third_party_tag=$4, click_url_template=$5, width=$6, height=$7 WHERE id=$1`,
		c.ID, c.Type, c.FileURL, c.ThirdPartyTag, c.ClickURLTemplate, c.Width, c.Height)
	if err != nil {
		return fmt.Errorf("update creative: %w", err)
	}
	return requireRow(res)
}

func (p *Postgres) DeleteCreative(ctx context.Context, id string) error {
	res, err := p.DB.ExecContext(ctx, `DELETE FROM creatives WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete creative: %w", err)
	}
	return requireRow(res)
}

// ===== Line items =====

func (p *Postgres) InsertLineItem(ctx context.Context, li *models.LineItem) error {
	if li.ID == "" {
		li.ID = uuid.NewString()
	}
	if li.Status == "" {
		li.Status = models.StatusActive
	}
	targeting, err := encodeTargeting(li.Targeting)
	if err != nil {
		return err
	}
	_, err = p.DB.ExecContext(ctx,
		`INSERT INTO line_items (id, creative_id, campaign_id, placement_id, name, priority, weight,
			status, targeting, start_at, end_at, rotation_strategy, served_impressions,
			max_impressions_total, max_impressions_daily, freq_cap_count, freq_cap_window_seconds)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
		li.ID, li.CreativeID, li.CampaignID, li.PlacementID, li.Name, li.Priority, li.Weight,
		li.Status, targeting, li.StartAt, li.EndAt, nullString(li.RotationStrategy), li.ServedImpressions,
		nullInt(li.MaxImpressionsTotal), nullInt(li.MaxImpressionsDaily),
		li.FreqCapCount, int(li.FreqCapWindow/time.Second))
	if err != nil {
		return fmt.Errorf("insert line item: %w", err)
	}
	return nil
}

func (p *Postgres) UpdateLineItem(ctx context.Context, li models.LineItem) error {
	targeting, err := encodeTargeting(li.Targeting)
	if err != nil {
		return err
	}
	res, err := p.DB.ExecContext(ctx,
		`UPDATE line_items SET creative_id=$2, campaign_id=$3, placement_id=$4, name=$5, priority=$6,
			weight=$7, status=$8, targeting=$9, start_at=$10, end_at=$11, rotation_strategy=$12,
			max_impressions_total=$13, max_impressions_daily=$14, freq_cap_count=$15, freq_cap_window_seconds=$16
		 WHERE id=$1`,
		li.ID, li.CreativeID, li.CampaignID, li.PlacementID, li.Name, li.Priority,
		li.Weight, li.Status, targeting, li.StartAt, li.EndAt, nullString(li.RotationStrategy),
		nullInt(li.MaxImpressionsTotal), nullInt(li.MaxImpressionsDaily),
		li.FreqCapCount, int(li.FreqCapWindow/time.Second))
	if err != nil {
		return fmt.Errorf("update line item: %w", err)
	}
	return requireRow(res)
}

func (p *Postgres) DeleteLineItem(ctx context.Context, id string) error {
	res, err := p.DB.ExecContext(ctx, `DELETE FROM line_items WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete line item: %w", err)
	}
	return requireRow(res)
}

// ===== Provider mappings =====

func (p *Postgres) ListProviderMappings(ctx context.Context) ([]models.ProviderMapping, error) {
	rows, err := p.DB.QueryContext(ctx,
		`SELECT id, placement_id, tag_template, priority, is_active FROM provider_mappings ORDER BY priority`)
	if err != nil {
		return nil, fmt.Errorf("query provider mappings: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()
	var out []models.ProviderMapping
	for rows.Next() {
		var m models.ProviderMapping
		if err := rows.Scan(&m.ID, &m.PlacementID, &m.TagTemplate, &m.Priority, &m.IsActive); err != nil {
			return nil, fmt.Errorf("scan provider mapping: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (p *Postgres) InsertProviderMapping(ctx context.Context, m *models.ProviderMapping) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	_, err := p.DB.ExecContext(ctx,
		`INSERT INTO provider_mappings (id, placement_id, tag_template, priority, is_active)
		 VALUES ($1,$2,$3,$4,$5)`,
		m.ID, m.PlacementID, m.TagTemplate, m.Priority, m.IsActive)
	if err != nil {
		return fmt.Errorf("insert provider mapping: %w", err)
	}
	return nil
}

func encodeTargeting(rule *models.TargetingRule) ([]byte, error) {
	if rule == nil {
		return nil, nil
	}
	data, err := json.Marshal(rule)
	if err != nil {
		return nil, fmt.Errorf("encode targeting: %w", err)
	}
	return data, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
