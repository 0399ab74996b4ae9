// Package inverterio drives a real battery inverter over Modbus/TCP,
// standing in for the simulated battery.Model behind the
// controlloop.BatteryActuator interface, the way the teacher's
// powerpack.PowerPack stands in for powerpack.PowerPackMock.
package inverterio

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/simonvetter/modbus"
)

const (
	powerSetpointRegister = 100 // holding register, float32, kW (+ve discharge)
	socRegister           = 200 // input register, float32, kWh
	modbusTimeout         = 2 * time.Second
)

// ModbusBattery drives a battery inverter over Modbus/TCP. It implements
// controlloop.BatteryActuator. Like the teacher's modbus.Client, it
// tracks connection health and reconnects lazily on the next call after
// an error rather than failing permanently.
type ModbusBattery struct {
	host            string
	client          *modbus.ModbusClient
	shouldReconnect bool
	logger          *slog.Logger
}

// NewModbusBattery connects to the inverter at host (e.g. "10.0.0.5:502").
func NewModbusBattery(host string) (*ModbusBattery, error) {
	b := &ModbusBattery{
		host:   host,
		logger: slog.Default().With("inverter_host", host),
	}

	if err := b.connect(); err != nil {
		return nil, err
	}

	return b, nil
}

func (b *ModbusBattery) connect() error {
	client, err := modbus.NewClient(&modbus.ClientConfiguration{
		URL:     fmt.Sprintf("tcp://%s", b.host),
		Timeout: modbusTimeout,
	})
	if err != nil {
		return fmt.Errorf("create modbus client: %w", err)
	}

	if err := client.Open(); err != nil {
		return fmt.Errorf("open modbus client: %w", err)
	}

	b.client = client
	b.shouldReconnect = false

	return nil
}

func (b *ModbusBattery) reconnectIfNecessary() error {
	if !b.shouldReconnect {
		return nil
	}

	b.client.Close()

	if err := b.connect(); err != nil {
		return err
	}

	b.logger.Info("Reconnected to inverter")

	return nil
}

// ApplySetpoint writes pKW (+ve discharge, -ve charge) to the inverter's
// power setpoint register.
func (b *ModbusBattery) ApplySetpoint(pKW float64) error {
	if err := b.reconnectIfNecessary(); err != nil {
		return fmt.Errorf("reconnect: %w", err)
	}

	if err := b.client.WriteFloat32(powerSetpointRegister, float32(pKW)); err != nil {
		b.shouldReconnect = true
		return fmt.Errorf("write power setpoint: %w", err)
	}

	return nil
}

// ReadSOC reads the inverter's reported stored energy, in kWh.
func (b *ModbusBattery) ReadSOC() (float64, error) {
	if err := b.reconnectIfNecessary(); err != nil {
		return 0, fmt.Errorf("reconnect: %w", err)
	}

	soc, err := b.client.ReadFloat32(socRegister, modbus.INPUT_REGISTER)
	if err != nil {
		b.shouldReconnect = true
		return 0, fmt.Errorf("read soc: %w", err)
	}

	return float64(soc), nil
}

// Close releases the underlying Modbus/TCP connection.
func (b *ModbusBattery) Close() error {
	return b.client.Close()
}
