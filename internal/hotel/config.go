// Package hotel stores per-hotel settings the orchestrator consults: whether
// automated replies are allowed, the persona name pools and staff domains.
package hotel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds hotel-specific settings.
type Config struct {
	HotelID          string              `json:"hotel_id"`
	Name             string              `json:"name"`
	AutoReplyEnabled bool                `json:"auto_reply_enabled"`
	Personas         map[string][]string `json:"personas,omitempty"` // language -> display names
	CommissionRate   float64             `json:"commission_rate"`
	Currency         string              `json:"currency,omitempty"`
	Timezone         string              `json:"timezone"`
	StaffDomains     []string            `json:"staff_domains,omitempty"`
	UpdatedAt        time.Time           `json:"updated_at,omitempty"`
}

// DefaultConfig returns the settings used for a hotel with nothing stored.
func DefaultConfig(hotelID string) *Config {
	return &Config{
		HotelID:          hotelID,
		AutoReplyEnabled: true,
		CommissionRate:   0.15,
		Currency:         "USD",
		Timezone:         "UTC",
	}
}

// PersonaNames returns the configured names for a language, if any.
func (c *Config) PersonaNames(language string) []string {
	if c == nil || len(c.Personas) == 0 {
		return nil
	}
	return c.Personas[strings.ToLower(strings.TrimSpace(language))]
}

// Location returns the hotel's time zone, falling back to UTC.
func (c *Config) Location() *time.Location {
	if c == nil || c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DisplayName returns the hotel name or its id.
func (c *Config) DisplayName() string {
	if c == nil {
		return ""
	}
	if strings.TrimSpace(c.Name) != "" {
		return c.Name
	}
	return c.HotelID
}

// Store persists hotel configs in Redis as JSON.
type Store struct {
	redis *redis.Client
}

func NewStore(redisClient *redis.Client) *Store {
	if redisClient == nil {
		panic("hotel: redis client required")
	}
	return &Store{redis: redisClient}
}

func (s *Store) key(hotelID string) string {
	return fmt.Sprintf("hotel_config:%s", hotelID)
}

// Get retrieves hotel config, returning defaults when none is stored.
func (s *Store) Get(ctx context.Context, hotelID string) (*Config, error) {
	data, err := s.redis.Get(ctx, s.key(hotelID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return DefaultConfig(hotelID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("hotel: get config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("hotel: unmarshal config: %w", err)
	}
	if cfg.HotelID == "" {
		cfg.HotelID = hotelID
	}
	return &cfg, nil
}

// Set saves hotel config.
func (s *Store) Set(ctx context.Context, cfg *Config) error {
	if cfg == nil || strings.TrimSpace(cfg.HotelID) == "" {
		return errors.New("hotel: config requires hotel id")
	}
	cfg.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("hotel: marshal config: %w", err)
	}
	if err := s.redis.Set(ctx, s.key(cfg.HotelID), data, 0).Err(); err != nil {
		return fmt.Errorf("hotel: set config: %w", err)
	}
	return nil
}

// SetAutoReply flips the automated-reply switch for a hotel.
func (s *Store) SetAutoReply(ctx context.Context, hotelID string, enabled bool) error {
	cfg, err := s.Get(ctx, hotelID)
	if err != nil {
		return fmt.Errorf("hotel: set auto reply: %w", err)
	}
	cfg.AutoReplyEnabled = enabled
	return s.Set(ctx, cfg)
}
