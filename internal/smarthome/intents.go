// Package smarthome implements the fulfillment side of the smart-home
// protocol: the device directory, state queries and intent dispatch.
package smarthome

import "encoding/json"

// Intent names sent by the smart-home platform
const (
	IntentSync    = "action.devices.SYNC"
	IntentQuery   = "action.devices.QUERY"
	IntentExecute = "action.devices.EXECUTE"
)

// Device and command status values
const (
	StatusSuccess = "SUCCESS"
	StatusError   = "ERROR"
)

// SensorTimerRemaining is the sensor state carrying minutes to arrival
const SensorTimerRemaining = "TimerRemainingSec"

// Request is the fulfillment envelope posted by the platform
type Request struct {
	RequestID string  `json:"requestId"`
	Inputs    []Input `json:"inputs"`
}

// Input carries one intent and its intent-specific payload
type Input struct {
	Intent  string          `json:"intent"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response is the fulfillment envelope returned to the platform.
// RequestID always echoes the request.
type Response struct {
	RequestID string `json:"requestId"`
	Payload   any    `json:"payload"`
}

// SyncPayload lists the devices exposed to the platform
type SyncPayload struct {
	AgentUserID string   `json:"agentUserId"`
	Devices     []Device `json:"devices"`
}

// DeviceRef identifies a device in QUERY and EXECUTE payloads
type DeviceRef struct {
	ID string `json:"id"`
}

// QueryRequest is the payload of a QUERY input
type QueryRequest struct {
	Devices []DeviceRef `json:"devices"`
}

// QueryPayload maps device ids to their current state
type QueryPayload struct {
	Devices map[string]DeviceState `json:"devices"`
}

// DeviceState is the wire form of a device state snapshot
type DeviceState struct {
	Online                 bool          `json:"online"`
	Status                 string        `json:"status"`
	CurrentSensorStateData []SensorState `json:"currentSensorStateData"`
}

// SensorState reports one numeric sensor reading
type SensorState struct {
	Name     string `json:"name"`
	RawValue int    `json:"rawValue"`
}

// ExecutePayload reports the outcome of EXECUTE commands
type ExecutePayload struct {
	Commands []CommandResult `json:"commands"`
}

// CommandResult is the status of a command for a set of devices
type CommandResult struct {
	IDs    []string `json:"ids"`
	Status string   `json:"status"`
}
