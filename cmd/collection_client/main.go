package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ruteri/collection-provisioning-backend/api"
	"github.com/ruteri/collection-provisioning-backend/api/clients"
	"github.com/ruteri/collection-provisioning-backend/cmd/flags"
	"github.com/ruteri/collection-provisioning-backend/interfaces"
	"github.com/urfave/cli/v2"
)

var flagTimeout = &cli.DurationFlag{
	Name:  "timeout",
	Value: 30 * time.Second,
	Usage: "HTTP request timeout",
}

var createFlags = []cli.Flag{
	&cli.StringFlag{Name: "identifier", Required: true, Usage: "caller-chosen collection identifier"},
	&cli.StringFlag{Name: "name", Required: true, Usage: "collection display name"},
	&cli.StringFlag{Name: "ticker", Required: true, Usage: "collection ticker"},
	&cli.StringFlag{Name: "owner", Required: true, Usage: "address receiving roles and ownership"},
	&cli.StringFlag{Name: "payment", Required: true, Usage: "issue payment forwarded to the issuer, in base units"},
	&cli.BoolFlag{Name: "wait", Usage: "poll the request status until it completes or fails"},
}

func main() {
	app := &cli.App{
		Name:  "collection-client",
		Usage: "Request and query collections on a provisioning server",
		Flags: []cli.Flag{
			flags.ServerAddrFlag,
			flags.PrivateKeyFlag,
			flagTimeout,
		},
		Commands: []*cli.Command{
			{
				Name:  "create",
				Usage: "start provisioning a collection (requires --private-key of a creator)",
				Flags: createFlags,
				Action: func(cCtx *cli.Context) error {
					c, err := newClient(cCtx)
					if err != nil {
						return err
					}
					return c.create(cCtx)
				},
			},
			{
				Name:      "get",
				Usage:     "resolve an identifier to its token identifier",
				ArgsUsage: "<identifier>",
				Action: func(cCtx *cli.Context) error {
					c, err := newClient(cCtx)
					if err != nil {
						return err
					}
					if cCtx.NArg() != 1 {
						return fmt.Errorf("expected one identifier")
					}
					resp, err := c.provider.GetCollection(cCtx.Args().First())
					if err != nil {
						return err
					}
					return printJSON(resp)
				},
			},
			{
				Name:  "list",
				Usage: "list committed collections",
				Action: func(cCtx *cli.Context) error {
					c, err := newClient(cCtx)
					if err != nil {
						return err
					}
					resp, err := c.provider.ListCollections()
					if err != nil {
						return err
					}
					return printJSON(resp)
				},
			},
			{
				Name:  "creators",
				Usage: "list the creator set",
				Action: func(cCtx *cli.Context) error {
					c, err := newClient(cCtx)
					if err != nil {
						return err
					}
					resp, err := c.provider.GetCreators()
					if err != nil {
						return err
					}
					return printJSON(resp)
				},
			},
			{
				Name:      "status",
				Usage:     "show a provisioning request",
				ArgsUsage: "<request-id>",
				Action: func(cCtx *cli.Context) error {
					c, err := newClient(cCtx)
					if err != nil {
						return err
					}
					if cCtx.NArg() != 1 {
						return fmt.Errorf("expected one request id")
					}
					resp, err := c.provider.GetRequestStatus(cCtx.Args().First())
					if err != nil {
						return err
					}
					return printJSON(resp)
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

type client struct {
	provider api.CollectionsProvider
}

func newClient(cCtx *cli.Context) (*client, error) {
	signer, err := flags.Signer(cCtx)
	if err != nil {
		return nil, fmt.Errorf("could not load private key: %w", err)
	}

	return &client{
		provider: clients.NewCollectionsClient(cCtx.String(flags.ServerAddrFlag.Name), signer, cCtx.Duration(flagTimeout.Name)),
	}, nil
}

func (c *client) create(cCtx *cli.Context) error {
	owner, err := interfaces.NewAddressFromHex(cCtx.String("owner"))
	if err != nil {
		return fmt.Errorf("could not parse owner address: %w", err)
	}
	payment, err := interfaces.ParseAmount(cCtx.String("payment"))
	if err != nil {
		return err
	}

	resp, err := c.provider.CreateCollection(api.CreateCollectionRequest{
		Identifier: cCtx.String("identifier"),
		Name:       cCtx.String("name"),
		Ticker:     cCtx.String("ticker"),
		Owner:      owner,
		Payment:    payment,
	})
	if err != nil {
		return err
	}

	if !cCtx.Bool("wait") {
		return printJSON(resp)
	}

	for {
		status, err := c.provider.GetRequestStatus(resp.RequestID)
		if err != nil {
			return err
		}
		if status.Stage.Terminal() {
			return printJSON(status)
		}
		time.Sleep(time.Second)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
