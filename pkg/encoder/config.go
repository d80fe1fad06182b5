package encoder

import "fmt"

// Config is the encoder configuration.
// It is owned by the surrounding service configuration and mutated by calibration and by property writes.
type Config struct {
	Mode     Mode `yaml:"mode"`
	UseIndex bool `yaml:"use_index"`
	// PreCalibrated means Offset is valid without running the offset calibration.
	// The encoder becomes ready as soon as the index is found.
	PreCalibrated      bool    `yaml:"pre_calibrated"`
	IdxSearchSpeed     float64 `yaml:"idx_search_speed"` // [rad/s electrical]
	ZeroCountOnFindIdx bool    `yaml:"zero_count_on_find_idx"`
	CPR                int32   `yaml:"cpr"`
	// Offset is the count at electrical phase zero, OffsetFloat the sub-count part of it.
	Offset                 int32   `yaml:"offset"`
	OffsetFloat            float64 `yaml:"offset_float"`
	CalibRange             float64 `yaml:"calib_range"`
	Bandwidth              float64 `yaml:"bandwidth"` // [rad/s]
	IgnoreIllegalHallState bool    `yaml:"ignore_illegal_hall_state"`
	AbsSPICSGPIOPin        uint16  `yaml:"abs_spi_cs_gpio_pin"`
}

// NewConfig returns the default configuration of a CUI-AMT102 style incremental encoder.
func NewConfig() *Config {
	return &Config{
		Mode:               ModeIncremental,
		IdxSearchSpeed:     10,
		ZeroCountOnFindIdx: true,
		CPR:                2048 * 4,
		CalibRange:         0.02,
		Bandwidth:          1000,
	}
}

// Validate checks the values the estimator cannot run without.
func (c *Config) Validate() error {
	if c.CPR <= 0 {
		return fmt.Errorf("%w: cpr must be positive, got %d", ErrInvalidValue, c.CPR)
	}
	if c.Bandwidth <= 0 {
		return fmt.Errorf("%w: bandwidth must be positive, got %v", ErrInvalidValue, c.Bandwidth)
	}
	if c.CalibRange <= 0 {
		return fmt.Errorf("%w: calib_range must be positive, got %v", ErrInvalidValue, c.CalibRange)
	}
	if _, ok := modeNames[c.Mode]; !ok {
		return fmt.Errorf("%w: unknown encoder mode %v", ErrInvalidValue, c.Mode)
	}
	return nil
}
