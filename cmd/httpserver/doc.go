// Package main (cmd/httpserver) runs the collection provisioning server.
//
// The server wires the storage backends, the creator set, the identifier
// registry and the request journal into the provisioning workflow, attaches
// an issuer (simulated or onchain) whose completions are dispatched back to
// the workflow, and serves the collections API over HTTP.
//
// On start the creator set is initialized from --creator (or the config file).
// The first start persists it; later starts must supply the same set.
// Journaled requests left in flight by a previous process are reported and
// their identifiers stay reserved.
//
// Example usage with the simulated issuer:
//
//	collection-provisioning-server \
//	    --listen-addr=0.0.0.0:8080 \
//	    --creator=0x0123456789abcdef0123456789abcdef01234567 \
//	    --storage=file:///var/lib/collections
//
// Example usage against an issuer contract:
//
//	collection-provisioning-server \
//	    --config=/etc/collections.yaml \
//	    --issuer=onchain \
//	    --rpc-addr=http://localhost:8545 \
//	    --issuer-contract=0x00000000000000000000000000000000000000c0 \
//	    --storage=sqlite:///var/lib/collections/db.sqlite \
//	    --storage=s3://bucket/collections?region=eu-west-1
package main
