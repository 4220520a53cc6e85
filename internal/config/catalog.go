package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tidwall/jsonc"

	"github.com/iliyamo/bus-seat-reservation/internal/model"
)

// DefaultCatalog is the fleet served when BUS_CATALOG_FILE is unset.
func DefaultCatalog() []model.Bus {
	return []model.Bus{
		{ID: "B1", Route: "Kolhapur → Mumbai", Rows: 5, SeatsPerRow: 4, PricePerSeat: 300},
		{ID: "B2", Route: "Nagpur → Sangli", Rows: 5, SeatsPerRow: 4, PricePerSeat: 350},
		{ID: "B3", Route: "Pune → Bangalore", Rows: 5, SeatsPerRow: 4, PricePerSeat: 400},
		{ID: "B4", Route: "Delhi → Chandigarh", Rows: 5, SeatsPerRow: 4, PricePerSeat: 250},
	}
}

// LoadCatalog reads a JSON array of buses from path, or returns
// DefaultCatalog when path is empty.  The file may use JSONC comments and
// trailing commas.  Entries are validated here so a bad
// file fails at startup; duplicate ids are rejected by the inventory.
func LoadCatalog(path string) ([]model.Bus, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read bus catalog: %w", err)
	}
	var buses []model.Bus
	if err := json.Unmarshal(jsonc.ToJSON(data), &buses); err != nil {
		return nil, fmt.Errorf("parse bus catalog %s: %w", path, err)
	}
	if len(buses) == 0 {
		return nil, fmt.Errorf("bus catalog %s is empty", path)
	}
	for _, b := range buses {
		if err := b.Validate(); err != nil {
			return nil, fmt.Errorf("bus catalog %s: %w", path, err)
		}
	}
	return buses, nil
}
