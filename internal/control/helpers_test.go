package control

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/actuator-core/internal/audit"
	"github.com/nerrad567/actuator-core/internal/device"
	"github.com/nerrad567/actuator-core/internal/transport/fake"
)

var epoch = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

// testClock is a settable clock.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock { return &testClock{now: epoch} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordingObserver captures events for assertions.
type recordingObserver struct {
	mu        sync.Mutex
	accepted  []Command
	rejected  []error
	outcomes  []audit.Outcome
	estop     []EmergencyState
	maxDepth  int
	lastDepth [2]int
}

func (o *recordingObserver) CommandAccepted(cmd Command) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.accepted = append(o.accepted, cmd)
}

func (o *recordingObserver) CommandRejected(_ Origin, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rejected = append(o.rejected, err)
}

func (o *recordingObserver) ExecutionRecorded(out audit.Outcome) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, out)
}

func (o *recordingObserver) EmergencyStopChanged(s EmergencyState) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.estop = append(o.estop, s)
}

func (o *recordingObserver) QueueDepth(queued, pending int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.lastDepth = [2]int{queued, pending}
	if pending > o.maxDepth {
		o.maxDepth = pending
	}
}

func testEnvelope() Envelope {
	return Envelope{
		QuantityTemperature:    {Min: 10, Max: 40, MaxRatePerHour: 5},
		QuantityHumidity:       {Min: 30, Max: 95, MaxRatePerHour: 15},
		QuantityCO2:            {Min: 300, Max: 1500, MaxRatePerHour: 400},
		QuantityLightIntensity: {Min: 0, Max: 2000, MaxRatePerHour: 1000},
		QuantityPH:             {Min: 5, Max: 7, MaxRatePerHour: 0.5},
		QuantityEC:             {Min: 0.5, Max: 3.5, MaxRatePerHour: 0.5},
	}
}

func testParameterMap() ParameterMap {
	return ParameterMap{
		"temperature":         {Quantity: QuantityTemperature, Category: device.CategoryClimate, Parameter: "setpoint"},
		"humidity":            {Quantity: QuantityHumidity, Category: device.CategoryClimate, Parameter: "humidity_setpoint"},
		"co2":                 {Quantity: QuantityCO2, Category: device.CategoryGas, Parameter: "co2_setpoint"},
		"light_intensity":     {Quantity: QuantityLightIntensity, Category: device.CategoryLighting, Parameter: "intensity"},
		"ph":                  {Quantity: QuantityPH, Category: device.CategoryAcidity, Parameter: "ph_setpoint"},
		"irrigation_duration": {Category: device.CategoryIrrigation, Parameter: "duration"},
	}
}

func testStrategy() Strategy {
	return Strategy{
		Mode:                   ModeAssisted,
		ConfidenceThreshold:    0.8,
		SafetyOverrides:        true,
		EmergencyStopEnabled:   true,
		ApprovalRequired:       []string{"ph", "ec"},
		MaxSimultaneousChanges: 5,
		ValidationWindow:       time.Hour,
	}
}

func testDevices() []device.Device {
	return []device.Device{
		{
			ID: "hvac_zone_a", Name: "HVAC Zone A", Category: device.CategoryClimate, Zone: "a",
			Transport: device.TransportSimulated,
			Parameters: map[string]device.Parameter{
				"setpoint":          {Address: 1, Kind: device.KindFloat, Min: 5, Max: 45, Unit: "°C"},
				"humidity_setpoint": {Address: 2, Kind: device.KindFloat, Min: 20, Max: 100, Unit: "%"},
			},
		},
		{
			ID: "hvac_zone_b", Name: "HVAC Zone B", Category: device.CategoryClimate, Zone: "b",
			Transport: device.TransportSimulated,
			Parameters: map[string]device.Parameter{
				"setpoint": {Address: 1, Kind: device.KindFloat, Min: 5, Max: 45, Unit: "°C"},
			},
		},
		{
			ID: "irrigation_1", Name: "Irrigation 1", Category: device.CategoryIrrigation, Zone: "a",
			Transport: device.TransportSimulated,
			Parameters: map[string]device.Parameter{
				"duration": {Address: 10, Kind: device.KindInteger, Min: 0, Max: 3600, Unit: "s"},
				"valve":    {Address: 11, Kind: device.KindBoolean},
			},
		},
		{
			ID: "co2_injector", Name: "CO2 Injector", Category: device.CategoryGas,
			Transport: device.TransportSimulated,
			Parameters: map[string]device.Parameter{
				"co2_setpoint": {Address: 20, Kind: device.KindFloat, Min: 0, Max: 2000, Unit: "ppm"},
			},
		},
		{
			ID: "ph_doser", Name: "pH Doser", Category: device.CategoryAcidity,
			Transport: device.TransportSimulated,
			Parameters: map[string]device.Parameter{
				"ph_setpoint": {Address: 30, Kind: device.KindFloat, Min: 4, Max: 8},
			},
		},
	}
}

type fixture struct {
	ctrl     *Controller
	registry *device.Registry
	adapter  *fake.Adapter
	clock    *testClock
	trail    *audit.Trail
	observer *recordingObserver
}

func newFixture(t *testing.T, mutate ...func(*Options)) *fixture {
	t.Helper()

	registry := device.NewRegistry(nil)
	for _, d := range testDevices() {
		if _, err := registry.Register(context.Background(), d); err != nil {
			t.Fatalf("Register(%s) error = %v", d.ID, err)
		}
	}

	opts := Options{
		Strategy:         testStrategy(),
		Envelope:         testEnvelope(),
		ParameterMap:     testParameterMap(),
		Priority:         PriorityPolicy{HealthScoreThreshold: 70, IntensityThreshold: 0.8},
		TransportTimeout: time.Second,
		DispatchInterval: 10 * time.Millisecond,
	}
	for _, m := range mutate {
		m(&opts)
	}

	f := &fixture{
		registry: registry,
		adapter:  fake.New(),
		clock:    newTestClock(),
		trail:    audit.NewTrail(100, 50),
		observer: &recordingObserver{},
	}
	ctrl, err := New(opts, Deps{
		Registry:  registry,
		Transport: f.adapter,
		Trail:     f.trail,
		Clock:     f.clock,
		Observer:  f.observer,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	f.ctrl = ctrl
	return f
}

func (f *fixture) submit(t *testing.T, deviceID, parameter string, v device.Value) (Command, error) {
	t.Helper()
	return f.ctrl.SubmitCommand(context.Background(), CommandRequest{
		DeviceID:  deviceID,
		Parameter: parameter,
		Value:     v,
		Origin:    OriginOperator,
	})
}

func (f *fixture) mustSubmit(t *testing.T, deviceID, parameter string, v device.Value) Command {
	t.Helper()
	cmd, err := f.submit(t, deviceID, parameter, v)
	if err != nil {
		t.Fatalf("SubmitCommand(%s.%s=%s) error = %v", deviceID, parameter, v, err)
	}
	return cmd
}

func num(v float64) device.Value { return device.NumberValue(v) }

func ptr[T any](v T) *T { return &v }
