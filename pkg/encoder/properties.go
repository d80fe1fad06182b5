package encoder

import (
	"fmt"
	"sort"
	"strings"

	"github.com/womat/debug"
	"gopkg.in/yaml.v2"
)

// property is one entry of the management property tree.
// A nil set marks a read only property.
type property struct {
	get func(e *Encoder) interface{}
	set func(e *Encoder, value string) error
}

var properties = map[string]property{
	"error": {
		get: func(e *Encoder) interface{} { return uint32(e.Errors()) },
		set: func(e *Encoder, s string) error {
			v, err := parseValue[uint32](s)
			if err != nil {
				return err
			}
			e.ClearErrors(Error(v))
			return nil
		},
	},
	"is_ready":    {get: func(e *Encoder) interface{} { return e.IsReady() }},
	"index_found": {get: func(e *Encoder) interface{} { return e.IndexFound() }},
	"shadow_count": {
		get: func(e *Encoder) interface{} { return e.ShadowCount() },
		set: func(e *Encoder, s string) error {
			v, err := parseValue[int32](s)
			if err != nil {
				return err
			}
			e.SetLinearCount(v)
			return nil
		},
	},
	"count_in_cpr": {
		get: func(e *Encoder) interface{} { return e.CountInCPR() },
		set: func(e *Encoder, s string) error {
			v, err := parseValue[int32](s)
			if err != nil {
				return err
			}
			e.SetCircularCount(v, false)
			return nil
		},
	},
	"interpolation": stateField(func(e *Encoder) *float64 { return &e.interpolation }),
	"phase":         stateField(func(e *Encoder) *float64 { return &e.phase }),
	"pos_estimate":  stateField(func(e *Encoder) *float64 { return &e.posEstimate }),
	"pos_cpr":       stateField(func(e *Encoder) *float64 { return &e.posCPR }),
	"vel_estimate":  stateField(func(e *Encoder) *float64 { return &e.velEstimate }),
	"pos_abs":       stateField(func(e *Encoder) *int32 { return &e.posAbs }),
	"hall_state": {
		get: func(e *Encoder) interface{} { return e.HallState() },
		set: func(e *Encoder, s string) error {
			v, err := parseValue[uint8](s)
			if err != nil {
				return err
			}
			e.SetHallState(v)
			return nil
		},
	},
	"spi_error_rate": {get: func(e *Encoder) interface{} {
		e.mu.Lock()
		defer e.mu.Unlock()
		return e.spiErrorRate
	}},

	"config.mode":                      configField(func(c *Config) *Mode { return &c.Mode }, modeChanged),
	"config.use_index":                 configField(func(c *Config) *bool { return &c.UseIndex }, nil),
	"config.pre_calibrated":            configField(func(c *Config) *bool { return &c.PreCalibrated }, nil),
	"config.idx_search_speed":          configField(func(c *Config) *float64 { return &c.IdxSearchSpeed }, nil),
	"config.zero_count_on_find_idx":    configField(func(c *Config) *bool { return &c.ZeroCountOnFindIdx }, nil),
	"config.cpr":                       configField(func(c *Config) *int32 { return &c.CPR }, nil),
	"config.offset":                    configField(func(c *Config) *int32 { return &c.Offset }, nil),
	"config.offset_float":              configField(func(c *Config) *float64 { return &c.OffsetFloat }, nil),
	"config.calib_range":               configField(func(c *Config) *float64 { return &c.CalibRange }, nil),
	"config.bandwidth":                 configField(func(c *Config) *float64 { return &c.Bandwidth }, bandwidthChanged),
	"config.ignore_illegal_hall_state": configField(func(c *Config) *bool { return &c.IgnoreIllegalHallState }, nil),
	"config.abs_spi_cs_gpio_pin":       configField(func(c *Config) *uint16 { return &c.AbsSPICSGPIOPin }, csPinChanged),
}

func modeChanged(e *Encoder) error {
	if !e.Mode().IsAbsolute() {
		return nil
	}
	return e.AbsSPIInit()
}

func csPinChanged(e *Encoder) error {
	return e.AbsSPICSPinInit()
}

func bandwidthChanged(e *Encoder) error {
	e.UpdatePLLGains()
	return nil
}

// parseValue decodes a property value written as a yaml scalar.
func parseValue[T any](s string) (T, error) {
	var v T
	if strings.TrimSpace(s) == "" {
		return v, fmt.Errorf("%w: empty value", ErrInvalidValue)
	}
	if err := yaml.Unmarshal([]byte(s), &v); err != nil {
		return v, fmt.Errorf("%w: %q: %v", ErrInvalidValue, s, err)
	}
	return v, nil
}

// stateField is a read write estimator field.
func stateField[T any](field func(e *Encoder) *T) property {
	return property{
		get: func(e *Encoder) interface{} {
			e.mu.Lock()
			defer e.mu.Unlock()
			return *field(e)
		},
		set: func(e *Encoder, s string) error {
			v, err := parseValue[T](s)
			if err != nil {
				return err
			}
			e.mu.Lock()
			*field(e) = v
			e.mu.Unlock()
			return nil
		},
	}
}

// configField is a config field, changed is called after a successful write.
func configField[T any](field func(c *Config) *T, changed func(e *Encoder) error) property {
	return property{
		get: func(e *Encoder) interface{} {
			e.mu.Lock()
			defer e.mu.Unlock()
			return *field(e.config)
		},
		set: func(e *Encoder, s string) error {
			v, err := parseValue[T](s)
			if err != nil {
				return err
			}

			e.mu.Lock()
			f := field(e.config)
			old := *f
			*f = v
			if err := e.config.Validate(); err != nil {
				*f = old
				e.mu.Unlock()
				return err
			}
			e.mu.Unlock()

			if changed != nil {
				return changed(e)
			}
			return nil
		},
	}
}

// Properties returns the names of all properties in sorted order.
func Properties() []string {
	names := make([]string, 0, len(properties))
	for name := range properties {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns the value of a property.
func (e *Encoder) Get(name string) (interface{}, error) {
	p, ok := properties[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProperty, name)
	}
	return p.get(e), nil
}

// Set writes a property. The value is parsed as a yaml scalar, e.g. "8192", "true" or "spi_abs_ams".
func (e *Encoder) Set(name, value string) error {
	p, ok := properties[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownProperty, name)
	}
	if p.set == nil {
		return fmt.Errorf("%w: %q", ErrReadOnly, name)
	}

	if err := p.set(e, value); err != nil {
		return fmt.Errorf("set %v: %w", name, err)
	}

	debug.DebugLog.Printf("encoder property %v set to %v", name, value)
	return nil
}

// Values returns all properties by name.
func (e *Encoder) Values() map[string]interface{} {
	values := make(map[string]interface{}, len(properties))
	for name, p := range properties {
		values[name] = p.get(e)
	}
	return values
}
