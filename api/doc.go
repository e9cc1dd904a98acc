/*
Package api defines the wire types and server configuration shared by the
collection provisioning HTTP server and its clients.

# Endpoints

	POST /api/collections               start provisioning (signed)
	GET  /api/collections               list committed collections
	GET  /api/collections/{identifier}  resolve an identifier
	GET  /api/creators                  list the creator set
	GET  /api/requests/{request_id}     provisioning request status

POST requests must carry SignatureHeader, a signature over the request body
in the format produced by github.com/flashbots/go-utils/signature. The
recovered address is the caller checked against the creator set.

Subpackages:
  - collections: the chi handler serving the endpoints above
  - clients: an HTTP client implementing CollectionsProvider
*/
package api
