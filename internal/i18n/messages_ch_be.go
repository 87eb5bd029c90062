package i18n

// berneseGermanMessages contains all Bernese Swiss German (Bärndütsch) translations
var berneseGermanMessages = map[string]string{
	// Error messages
	"error.device.unreachable":     "S Abspiugrät isch nid erreichbar (%d Versüech fäugschlage).",
	"error.playback.start_failed":  "Ha d Wiedergab uf em Grät nid chönne starte.",
	"error.playback.skip_failed":   "Ha uf em Grät nid chönne wyterspringe.",
	"error.context.load_failed":    "Ha d Lieder vo däm %s nid chönne lade.",
	"error.storage.restore_failed": "D gspycherti Warteschlange isch kaputt, es fat mit ere läre a.",

	// Device status
	"status.device.active":   "Louft uf em Grät",
	"status.device.idle":     "Nüt am Loufe",
	"status.device.unknown":  "Warte uf z Abspiugrät",
	"status.device.degraded": "Abspiugrät nid verfüegbar",

	// Queue messages
	"queue.empty":     "D Warteschlange isch lär.",
	"queue.end":       "Ändi vo dr Warteschlange.",
	"queue.restored":  "%d Lieder vo dr letschte Sitzig wiederhergsteut.",
	"queue.duplicate": "%s isch scho i dr Warteschlange.",

	// Format helpers
	"format.track":       "%s - %s",
	"format.placeholder": "Unbekannts Lied (%s)",
}
