/*
Package clients provides the HTTP client for the collection provisioning API.

CollectionsClient implements api.CollectionsProvider. Create requests are
signed with a github.com/flashbots/go-utils/signature Signer; the server
authorizes the recovered address against its creator set.

# Example Usage

	signer, _ := signature.NewSignerFromHexPrivateKey("your-private-key-hex")
	client := clients.NewCollectionsClient("http://localhost:8080", signer, 10*time.Second)

	resp, err := client.CreateCollection(api.CreateCollectionRequest{
	    Identifier: "cats",
	    Name:       "Cats",
	    Ticker:     "CAT",
	    Owner:      owner,
	    Payment:    interfaces.NewAmountFromUint64(50000000000000000),
	})

	status, err := client.GetRequestStatus(resp.RequestID)
*/
package clients
