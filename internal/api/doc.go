// Package api provides the HTTP REST API and WebSocket server for VirtuaPlant.
//
// It exposes the live PLC tags, tag writes, recorded history and health to
// dashboards and scripts. WebSocket clients receive tag changes and fill
// completions as they happen.
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Tag writes through the API are validated against the tag's domain. They
// are otherwise as uncoordinated as any Modbus client's.
package api
