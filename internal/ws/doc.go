// Package ws carries plugin instances over WebSocket.
//
// A remote plugin connects to /plugins/connect with its origin pair and
// mode as query parameters. Once attached, frames are JSON envelopes:
//
// Plugin → host:
//   - storage: {id, op, name, data} record operation on the plugin's node
//   - ack: shutdown acknowledged
//   - message: {payload} for the embedding application
//   - any other type is forwarded untouched
//
// Host → plugin:
//   - hello: {instance_id, node_id} sent once after attach
//   - reply: {id, status, data, names, error} answer to a storage request
//   - update: {payload}
//   - shutdown: finish pending writes and ack
//
// Closing the socket terminates the instance.
package ws
