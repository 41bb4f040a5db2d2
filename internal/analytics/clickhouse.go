package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	_ "github.com/ClickHouse/clickhouse-go/v2"
)

// Event types recorded by the decision and tracking endpoints.
const (
	EventAdRequest  = "ad_request"
	EventAdServed   = "ad_served"
	EventNoAd       = "no_ad"
	EventImpression = "impression"
	EventClick      = "click"
	EventView       = "view"
	EventConvert    = "convert"
)

// ErrUnavailable is returned when the analytics DB is not configured.
var ErrUnavailable = fmt.Errorf("analytics unavailable")

// Recorder defines the interface for analytics operations. Implementations
// should return ErrUnavailable when underlying storage is not configured.
type Recorder interface {
	// RecordEvent records a single analytics event.
	RecordEvent(ctx context.Context, ev Event) error
}

// Event mirrors a row in the ad_events table.
type Event struct {
	Timestamp     time.Time `json:"timestamp"`
	EventType     string    `json:"event_type"`
	RequestID     string    `json:"request_id"`
	PlacementCode string    `json:"placement_code"`
	LineItemID    *string   `json:"line_item_id"`
	CreativeID    *string   `json:"creative_id"`
	CampaignID    *string   `json:"campaign_id"`
	AnonID        string    `json:"anon_id"`
	UserID        *string   `json:"user_id"`
	DeviceType    *string   `json:"device_type"`
	Country       *string   `json:"country"`
	Region        *string   `json:"region"`
	City          *string   `json:"city"`
	Reason        *string   `json:"reason,omitempty"`
	Strategy      *string   `json:"strategy,omitempty"`
}

// Analytics wraps a ClickHouse DB connection.
type Analytics struct {
	DB *sql.DB
}

// InitClickHouse connects to ClickHouse and ensures the ad_events table exists.
func InitClickHouse(dsn string) (*Analytics, error) {
	ch, err := sql.Open("clickhouse", dsn)
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}
	ch.SetMaxOpenConns(25)
	if err := ch.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}
	create := `CREATE TABLE IF NOT EXISTS ad_events (
       timestamp      DateTime,
       event_type     String,
       request_id     String,
       placement_code String,
       line_item_id   Nullable(String),
       creative_id    Nullable(String),
       campaign_id    Nullable(String),
       anon_id        String,
       user_id        Nullable(String),
       device_type    Nullable(String),
       country        Nullable(String),
       region         Nullable(String),
       city           Nullable(String),
       reason         Nullable(String),
       strategy       Nullable(String)
   ) ENGINE=MergeTree() ORDER BY (event_type, timestamp)`
	if _, err := ch.ExecContext(context.Background(), create); err != nil {
		return nil, fmt.Errorf("clickhouse create table: %w", err)
	}

	zap.L().Info("Connected to ClickHouse")
	return &Analytics{DB: ch}, nil
}

// RecordEvent inserts a single event row into the ad_events table.
func (a *Analytics) RecordEvent(ctx context.Context, ev Event) error {
	if a == nil || a.DB == nil {
		return ErrUnavailable
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	stmt := `INSERT INTO ad_events (timestamp, event_type, request_id, placement_code, line_item_id, creative_id, campaign_id, anon_id, user_id, device_type, country, region, city, reason, strategy) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := a.DB.ExecContext(ctx, stmt,
		ev.Timestamp, ev.EventType, ev.RequestID, ev.PlacementCode,
		nullStr(ev.LineItemID), nullStr(ev.CreativeID), nullStr(ev.CampaignID),
		ev.AnonID, nullStr(ev.UserID), nullStr(ev.DeviceType),
		nullStr(ev.Country), nullStr(ev.Region), nullStr(ev.City),
		nullStr(ev.Reason), nullStr(ev.Strategy)); err != nil {
		zap.L().Error("clickhouse insert failed", zap.Error(err), zap.String("event_type", ev.EventType))
		return fmt.Errorf("insert %s event: %w", ev.EventType, err)
	}
	return nil
}

// GetEventsByRequestID returns all events for a given request ID ordered by timestamp.
func (a *Analytics) GetEventsByRequestID(ctx context.Context, id string) ([]Event, error) {
	if a == nil || a.DB == nil {
		return nil, ErrUnavailable
	}
	query := `SELECT timestamp, event_type, request_id, placement_code, line_item_id, creative_id, campaign_id, anon_id, user_id, device_type, country, region, city, reason, strategy FROM ad_events WHERE request_id=? ORDER BY timestamp`
	rows, err := a.DB.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			zap.L().Warn("rows close", zap.Error(err))
		}
	}()

	var events []Event
	for rows.Next() {
		var ev Event
		if err := rows.Scan(&ev.Timestamp, &ev.EventType, &ev.RequestID, &ev.PlacementCode,
			&ev.LineItemID, &ev.CreativeID, &ev.CampaignID, &ev.AnonID, &ev.UserID,
			&ev.DeviceType, &ev.Country, &ev.Region, &ev.City, &ev.Reason, &ev.Strategy); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return events, nil
}

// Close terminates the ClickHouse connection.
func (a *Analytics) Close() {
	if a != nil && a.DB != nil {
		if err := a.DB.Close(); err != nil {
			zap.L().Error("clickhouse close", zap.Error(err))
		}
	}
}

func nullStr(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// StrPtr returns a pointer to s, or nil when s is empty. Handy for filling
// optional Event fields.
func StrPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
