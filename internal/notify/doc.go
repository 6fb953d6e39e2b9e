// Package notify fans bus events out to observers: websocket clients of the
// dashboard and, optionally, a Redis pub/sub channel. Every message is the
// event's JSON form {"type","time","data"}.
package notify
