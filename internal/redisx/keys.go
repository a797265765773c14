package redisx

const (
	// Cart hash per user: cart:{user_id}, field = track_id, value = item JSON
	KeyCart = "cart:%d"

	// Distributed lock per exclusive track: lock:track:{track_id}
	KeyTrackLock = "lock:track:%d"
)
