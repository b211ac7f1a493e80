//go:build grpc

// Package proto holds the message types of the pin gRPC service.
//
// The types are hand-written Go structs carried by a JSON codec, so the
// build does not need protoc.
package proto

// SetPinRequest applies or schedules a mode on one pin.
type SetPinRequest struct {
	Gpio       int32  `json:"gpio"`
	State      string `json:"state"`
	DelayMs    int64  `json:"delay_ms,omitempty"`
	DurationMs int64  `json:"duration_ms,omitempty"`
}

// SetPinResponse describes the accepted operation.
type SetPinResponse struct {
	OperationId   string `json:"operation_id"`
	Gpio          int32  `json:"gpio"`
	State         string `json:"state"`
	Applied       bool   `json:"applied"`
	ApplyAtUnixMs int64  `json:"apply_at_unix_ms"`
}

// BatchEntry is one immediate operation of a batch.
type BatchEntry struct {
	Gpio  int32  `json:"gpio"`
	State string `json:"state"`
}

// ApplyBatchRequest carries entries applied independently, in order.
type ApplyBatchRequest struct {
	Entries []*BatchEntry `json:"entries"`
}

// BatchFailure reports one rejected entry.
type BatchFailure struct {
	Index int32  `json:"index"`
	Gpio  int32  `json:"gpio"`
	Error string `json:"error"`
}

// ApplyBatchResponse lists the rejected entries; the rest were applied.
type ApplyBatchResponse struct {
	Applied  int32           `json:"applied"`
	Failures []*BatchFailure `json:"failures,omitempty"`
}

// PinRequest names a single pin.
type PinRequest struct {
	Gpio int32 `json:"gpio"`
}

// ReadPinResponse is a digital read.
type ReadPinResponse struct {
	Gpio  int32  `json:"gpio"`
	State string `json:"state"`
}

// ReadADCResponse is a raw analog read.
type ReadADCResponse struct {
	Gpio  int32 `json:"gpio"`
	Value int32 `json:"value"`
}

// BlinkRequest starts a blink; IntervalMs 0 stops it.
type BlinkRequest struct {
	Gpio       int32 `json:"gpio"`
	IntervalMs int64 `json:"interval_ms"`
}

// BlinkResponse reports what the request did.
type BlinkResponse struct {
	Blinking bool `json:"blinking"`
	Stopped  bool `json:"stopped,omitempty"`
}

// Empty is an empty message.
type Empty struct{}

// PinStatus mirrors the engine's per-pin view.
type PinStatus struct {
	Gpio            int32  `json:"gpio"`
	State           string `json:"state"`
	Mode            string `json:"mode,omitempty"`
	PendingMode     string `json:"pending_mode,omitempty"`
	OperationId     string `json:"operation_id,omitempty"`
	ApplyAtUnixMs   int64  `json:"apply_at_unix_ms,omitempty"`
	RevertAtUnixMs  int64  `json:"revert_at_unix_ms,omitempty"`
	Blinking        bool   `json:"blinking"`
	BlinkIntervalMs int64  `json:"blink_interval_ms,omitempty"`
}

// ListPinsResponse covers every pin in range.
type ListPinsResponse struct {
	Pins []*PinStatus `json:"pins"`
}

// StatusResponse carries uptime and engine counters.
type StatusResponse struct {
	UptimeSeconds int64  `json:"uptime_seconds"`
	Applied       uint64 `json:"applied"`
	Reverted      uint64 `json:"reverted"`
	Scheduled     uint64 `json:"scheduled"`
	Dropped       uint64 `json:"dropped"`
	StoreFailures uint64 `json:"store_failures"`
}
