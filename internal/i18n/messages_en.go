package i18n

// englishMessages contains all English translations.
var englishMessages = map[string]string{
	// Error messages
	"error.device.unreachable":     "Unable to reach the playback device (%d failed attempts).",
	"error.playback.start_failed":  "Couldn't start playback on the device.",
	"error.playback.skip_failed":   "Couldn't skip on the device.",
	"error.context.load_failed":    "Couldn't load the tracks of this %s.",
	"error.storage.restore_failed": "Saved queue couldn't be read, starting with an empty queue.",

	// Device status
	"status.device.active":   "Playing on device",
	"status.device.idle":     "No active playback",
	"status.device.unknown":  "Waiting for the playback device",
	"status.device.degraded": "Playback device unavailable",

	// Queue messages
	"queue.empty":     "The queue is empty.",
	"queue.end":       "End of queue reached.",
	"queue.restored":  "Restored %d tracks from the last session.",
	"queue.duplicate": "%s is already in the queue.",

	// Format helpers
	"format.track":       "%s - %s",
	"format.placeholder": "Unknown track (%s)",
}
