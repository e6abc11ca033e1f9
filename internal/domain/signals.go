package domain

// Signal names the telemetry channels the daemon publishes on. The
// transport maps each signal to its own topic/address; the core only
// ever refers to these names.
type Signal string

const (
	SignalStatus             Signal = "status"
	SignalOngoing            Signal = "backup_ongoing"
	SignalLastStart          Signal = "last_start"
	SignalLastEnd            Signal = "last_end"
	SignalLastStatus         Signal = "last_status"
	SignalBackupCount        Signal = "backup_count"
	SignalLastSuccessful     Signal = "last_successful_file"
	SignalProgress           Signal = "progress"
	SignalProgressDetailed   Signal = "progress_detailed"
	SignalEstimatedRemaining Signal = "estimated_time_remaining"
	SignalElapsedTime        Signal = "elapsed_time"
	SignalDataTransferred    Signal = "data_transferred"
	SignalWriteSpeed         Signal = "last_write_speed"
	SignalShareStatus        Signal = "smb_status"
	SignalCompressionState   Signal = "compression_enabled/state"
)

// ShareStatus values published on SignalShareStatus.
const (
	ShareOnline  = "online"
	ShareOffline = "offline"
	ShareError   = "error"
)

// EventSink receives typed telemetry events from the core. Retained
// publishes are for values an observer must see immediately after
// (re)subscribing; everything else is best-effort live telemetry.
type EventSink interface {
	Publish(sig Signal, payload string)
	PublishRetained(sig Signal, payload string)
}
