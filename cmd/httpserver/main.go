package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"math/big"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ruteri/collection-provisioning-backend/api/collections"
	"github.com/ruteri/collection-provisioning-backend/cmd/flags"
	"github.com/ruteri/collection-provisioning-backend/config"
	"github.com/ruteri/collection-provisioning-backend/creators"
	"github.com/ruteri/collection-provisioning-backend/httpserver"
	"github.com/ruteri/collection-provisioning-backend/interfaces"
	"github.com/ruteri/collection-provisioning-backend/issuer"
	"github.com/ruteri/collection-provisioning-backend/provisioning"
	"github.com/ruteri/collection-provisioning-backend/registry"
	"github.com/ruteri/collection-provisioning-backend/storage"
	"github.com/urfave/cli/v2"
)

var serverFlags []cli.Flag = []cli.Flag{
	&cli.StringFlag{
		Name:  "listen-addr",
		Value: "127.0.0.1:8080",
		Usage: "address to listen on for API",
	},
	&cli.StringFlag{
		Name:  "config",
		Usage: "YAML configuration file; flags override its values",
	},
	&cli.StringSliceFlag{
		Name:  "creator",
		Usage: "address allowed to create collections (repeatable); fixed at first start",
	},
	&cli.StringSliceFlag{
		Name:  "storage",
		Usage: "storage backend URI (repeatable): file://, memory://, s3://, vault://, ipfs://, sqlite://, postgres://",
	},
	&cli.StringFlag{
		Name:  "issuer",
		Value: config.IssuerSimulated,
		Usage: "issuer implementation: 'simulated' or 'onchain'",
	},
	flags.RpcAddrFlag,
	&cli.StringFlag{
		Name:  "issuer-contract",
		Usage: "address of the issuer system contract (onchain issuer)",
	},
	&cli.StringFlag{
		Name:    "issuer-key",
		EnvVars: []string{"ISSUER_PRIVATE_KEY"},
		Usage:   "hex-encoded key submitting issuer transactions (onchain issuer)",
	},
	&cli.Int64Flag{
		Name:  "chain-id",
		Usage: "chain id used to sign issuer transactions (onchain issuer)",
	},
	&cli.IntFlag{
		Name:  "workers",
		Usage: "number of goroutines handling issuer completions",
	},
	flags.MaxBodyBytesFlag,
	flags.LogServiceFlagFn("collection-provisioning"),
}

func main() {
	app := &cli.App{
		Name:  "collection-provisioning-server",
		Usage: "Serve the collection provisioning API",
		Flags: append(serverFlags, flags.CommonFlags...),
		Action: func(cCtx *cli.Context) error {
			logger := flags.SetupLogger(cCtx)
			ctx := context.Background()

			cfg, err := loadConfig(cCtx)
			if err != nil {
				logger.Error("Invalid configuration", "err", err)
				return err
			}

			locations, err := cfg.StorageLocations()
			if err != nil {
				return err
			}
			storageFactory := storage.NewStorageBackendFactory(logger)
			backend, err := storageFactory.CreateMultiBackend(locations)
			if err != nil {
				logger.Error("Failed to create storage backend", "err", err)
				return err
			}
			logger.Info("Storage configured", "location", backend.LocationURI())

			creatorAddrs, err := cfg.CreatorAddresses()
			if err != nil {
				return err
			}
			gate := creators.NewCreatorSet(backend, logger)
			if err := gate.Initialize(ctx, creatorAddrs); err != nil {
				logger.Error("Failed to initialize creator set", "err", err)
				return err
			}

			dispatcher := provisioning.NewDispatcher(cfg.QueueSize, cfg.Workers, logger)

			externalIssuer, closeIssuer, err := createIssuer(cfg.Issuer, dispatcher, logger)
			if err != nil {
				logger.Error("Failed to create issuer", "err", err)
				return err
			}
			defer closeIssuer()

			workflow := provisioning.NewWorkflow(gate, registry.NewRegistry(backend, logger), externalIssuer, provisioning.NewJournal(backend, logger), logger)

			pending, err := workflow.Recover(ctx)
			if err != nil {
				logger.Error("Failed to recover journaled requests", "err", err)
				return err
			}
			if len(pending) > 0 {
				logger.Warn("Requests were in flight before restart and need operator attention", "count", len(pending))
			}

			dispatcher.Start(workflow)

			server, err := httpserver.New(flags.ConfigureServer(cCtx, logger, cCtx.String("listen-addr")), collections.NewHandler(workflow, logger))
			if err != nil {
				logger.Error("Failed to create server", "err", err)
				return err
			}
			server.RunInBackground()

			exit := make(chan os.Signal, 1)
			signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

			logger.Info("Server is running, press Ctrl+C to stop")
			<-exit
			logger.Info("Shutdown signal received")

			server.Shutdown()
			dispatcher.Stop()
			logger.Info("Server shutdown complete")

			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// loadConfig reads the optional config file and applies flag overrides.
func loadConfig(cCtx *cli.Context) (*config.Config, error) {
	cfg := &config.Config{}
	if path := cCtx.String("config"); path != "" {
		parsed, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = parsed
	}

	if cCtx.IsSet("creator") {
		cfg.Creators = cCtx.StringSlice("creator")
	}
	if cCtx.IsSet("storage") {
		cfg.Storage = cCtx.StringSlice("storage")
	}
	if cCtx.IsSet("issuer") || cfg.Issuer.Kind == "" {
		cfg.Issuer.Kind = cCtx.String("issuer")
	}
	if cCtx.IsSet(flags.RpcAddrFlag.Name) || cfg.Issuer.RPCAddr == "" {
		cfg.Issuer.RPCAddr = cCtx.String(flags.RpcAddrFlag.Name)
	}
	if cCtx.IsSet("issuer-contract") {
		cfg.Issuer.Contract = cCtx.String("issuer-contract")
	}
	if key := cCtx.String("issuer-key"); key != "" {
		cfg.Issuer.PrivateKey = key
	}
	if cCtx.IsSet("chain-id") {
		cfg.Issuer.ChainID = cCtx.Int64("chain-id")
	}
	if cCtx.IsSet("workers") {
		cfg.Workers = cCtx.Int("workers")
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func createIssuer(cfg config.IssuerConfig, sink interfaces.CompletionSink, logger *slog.Logger) (interfaces.ExternalIssuer, func(), error) {
	switch cfg.Kind {
	case config.IssuerSimulated:
		logger.Warn("Using simulated issuer, collections are not issued on any ledger")
		return issuer.NewSimulatedIssuer(issuer.SimulatedIssuerConfig{Delay: cfg.Delay}, sink, logger), func() {}, nil

	case config.IssuerOnchain:
		logger.Info("Connecting to Ethereum RPC", "address", cfg.RPCAddr)
		ethClient, err := ethclient.Dial(cfg.RPCAddr)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to dial RPC: %w", err)
		}

		contract, err := interfaces.NewAddressFromHex(cfg.Contract)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid issuer contract: %w", err)
		}

		key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
		if err != nil {
			return nil, nil, fmt.Errorf("invalid issuer key: %w", err)
		}

		chainID := big.NewInt(cfg.ChainID)
		if cfg.ChainID == 0 {
			if chainID, err = ethClient.ChainID(context.Background()); err != nil {
				return nil, nil, fmt.Errorf("failed to query chain id: %w", err)
			}
		}
		auth, err := bind.NewKeyedTransactorWithChainID(key, chainID)
		if err != nil {
			return nil, nil, err
		}

		onchain, err := issuer.NewOnchainIssuer(ethClient, ethClient, contract.Common(), sink, logger)
		if err != nil {
			return nil, nil, err
		}
		onchain.SetTransactOpts(auth)
		if cfg.PollInterval > 0 {
			onchain.SetPollInterval(cfg.PollInterval)
		}
		if cfg.ReceiptTimeout > 0 {
			onchain.SetReceiptTimeout(cfg.ReceiptTimeout)
		}

		logger.Info("Using onchain issuer",
			"contract", contract.String(),
			"sender", crypto.PubkeyToAddress(key.PublicKey).Hex(),
			"chain_id", chainID.String())
		return onchain, func() {
			onchain.Close()
			ethClient.Close()
		}, nil

	default:
		return nil, nil, fmt.Errorf("invalid issuer: %s", cfg.Kind)
	}
}
