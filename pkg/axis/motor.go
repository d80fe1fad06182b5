package axis

import (
	"fmt"
	"sync"

	"rotorenc/pkg/encoder"
)

// MotorConfig holds the electrical parameters of the motor.
type MotorConfig struct {
	PolePairs          int               `yaml:"pole_pairs"`
	CalibrationCurrent float64           `yaml:"calibration_current"` // [A]
	PhaseResistance    float64           `yaml:"phase_resistance"`    // [Ohm]
	Type               encoder.MotorType `yaml:"type"`
	// Direction is written by the encoder offset calibration.
	Direction int `yaml:"direction"`
}

// NewMotorConfig returns the parameters of a small hobby motor.
func NewMotorConfig() *MotorConfig {
	return &MotorConfig{
		PolePairs:          7,
		CalibrationCurrent: 10,
		PhaseResistance:    0.05,
		Type:               encoder.MotorTypeHighCurrent,
		Direction:          1,
	}
}

// VoltageOutput applies a voltage vector in the stationary frame to the motor phases.
type VoltageOutput interface {
	SetVoltage(alpha, beta float64) error
}

// Motor connects the motor parameters with the voltage output.
type Motor struct {
	mu     sync.Mutex
	config *MotorConfig
	output VoltageOutput
}

// NewMotor creates a motor. A nil output refuses every voltage command.
func NewMotor(config *MotorConfig, output VoltageOutput) *Motor {
	return &Motor{config: config, output: output}
}

func (m *Motor) PolePairs() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.config.PolePairs
}

func (m *Motor) CalibrationCurrent() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.config.CalibrationCurrent
}

func (m *Motor) PhaseResistance() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.config.PhaseResistance
}

func (m *Motor) Type() encoder.MotorType {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.config.Type
}

func (m *Motor) Direction() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.config.Direction
}

func (m *Motor) SetDirection(dir int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config.Direction = dir
}

// EnqueueVoltage passes the voltage vector to the output.
func (m *Motor) EnqueueVoltage(alpha, beta float64) error {
	if m.output == nil {
		return ErrNoVoltageOutput
	}
	if err := m.output.SetVoltage(alpha, beta); err != nil {
		return fmt.Errorf("set voltage: %w", err)
	}
	return nil
}
