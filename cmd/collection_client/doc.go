// Package main (cmd/collection_client) is a command line client for the
// collection provisioning server.
//
// Subcommands:
//
//	create    start provisioning; signs the request with --private-key
//	get       resolve an identifier to its token identifier
//	list      list committed collections
//	creators  list the creator set
//	status    show a provisioning request
//
// Example:
//
//	collection-client --private-key=$CREATOR_KEY create \
//	    --identifier=cats --name=Cats --ticker=CAT \
//	    --owner=0x00000000000000000000000000000000000000ee \
//	    --payment=50000000000000000 --wait
package main
