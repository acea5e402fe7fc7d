// Package server is the websocket transport in front of the room hub.
//
// Each connection gets a Client that registers with the hub, turns inbound
// frames into hub calls and writes hub deliveries back as text frames. The
// package also serves the small HTTP surface (health, room listing, stats and
// metrics) and owns graceful shutdown of live sessions.
package server
