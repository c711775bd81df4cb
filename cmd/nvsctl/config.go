package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tailscale/hujson"

	"github.com/sectorfs/nvs/device"
)

// Config describes an image's geometry. It can live next to the image
// as a HuJSON file (comments and trailing commas allowed) so the exact
// flash layout travels with the dump it was taken from.
type Config struct {
	SectorSize     uint16 `json:"sector_size"`
	SectorCount    uint16 `json:"sector_count"`
	Offset         int64  `json:"offset"`
	WriteBlockSize int    `json:"write_block_size"`
	EraseValue     uint8  `json:"erase_value"`
	PageSize       int    `json:"page_size"`
	CacheSlots     int    `json:"cache_slots"`
}

// DefaultConfig matches a common small NOR flash partition.
func DefaultConfig() Config {
	return Config{
		SectorSize:     4096,
		SectorCount:    4,
		WriteBlockSize: 4,
		EraseValue:     0xFF,
		PageSize:       4096,
		CacheSlots:     64,
	}
}

// LoadConfig reads a HuJSON geometry file over the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("invalid JSONC in %s: %w", path, err)
	}
	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Params converts the config to device parameters.
func (c Config) Params() device.Parameters {
	return device.Parameters{
		WriteBlockSize: c.WriteBlockSize,
		EraseValue:     c.EraseValue,
		PageSize:       c.PageSize,
	}
}

// ImageSize is the byte size an image with this geometry needs.
func (c Config) ImageSize() int {
	return int(c.Offset) + int(c.SectorSize)*int(c.SectorCount)
}
