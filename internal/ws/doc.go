// Package ws streams analysis snapshots to WebSocket subscribers at
// /ws/stream.
//
// Every message carries the GET /api/v1/snapshot payload under "data" and an
// event naming why it was sent:
//
//	connected  sent once, right after the upgrade
//	tick       sent every broadcast interval
//	refresh    sent after Notify; "sources" lists the recomputed source IDs
//
// Sources notified before a refresh goes out are coalesced into one message.
// Subscribers whose queue is full are disconnected. All origins are accepted;
// restrict them at the reverse proxy.
package ws
