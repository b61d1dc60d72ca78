package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nikbrunner/bmsync/internal/config"
	"github.com/nikbrunner/bmsync/internal/devserver"
	"github.com/nikbrunner/bmsync/internal/logger"
)

const provisionTimeout = 2 * time.Minute

var errNoTable = errors.New("server.table is not set")

func newServeCmd(configPath *string) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a local bookmarks API with realtime notifications",
		Long: `Serves the bookmarks GraphQL API on /graphql (POST for queries and
mutations, websocket upgrade for subscriptions). Bookmarks live in memory
unless server.table names a DynamoDB table.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadServer(*configPath)
			if err != nil {
				return err
			}
			log, err := logger.New(cfg.Log.Level, cfg.Log.File)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			repo, err := newRepository(cmd.Context(), cfg.Server, log)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Server.Addr
			}

			srv := devserver.New(repo, devserver.Options{
				APIKey: cfg.Server.APIKey,
				Logger: log,
			})
			return srv.ListenAndServe(cmd.Context(), addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

func newProvisionCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "provision",
		Short: "Create the DynamoDB table used by serve",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadServer(*configPath)
			if err != nil {
				return err
			}
			if cfg.Server.Table == "" {
				return errNoTable
			}
			log, err := logger.New(cfg.Log.Level, cfg.Log.File)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			client, err := newDynamoClient(cmd.Context(), cfg.Server)
			if err != nil {
				return err
			}
			repo := devserver.NewDynamoRepository(client, cfg.Server.Table, log)
			created, err := repo.EnsureTable(cmd.Context(), provisionTimeout)
			if err != nil {
				return err
			}
			if created {
				fmt.Fprintf(cmd.OutOrStdout(), "Created table %s\n", cfg.Server.Table)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Table %s already exists\n", cfg.Server.Table)
			}
			return nil
		},
	}
}

func newRepository(ctx context.Context, cfg config.Server, log *zap.Logger) (devserver.Repository, error) {
	if cfg.Table == "" {
		log.Info("using in-memory repository")
		return devserver.NewMemoryRepository(), nil
	}
	client, err := newDynamoClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	log.Info("using DynamoDB repository", zap.String("table", cfg.Table))
	return devserver.NewDynamoRepository(client, cfg.Table, log), nil
}

func newDynamoClient(ctx context.Context, cfg config.Server) (*dynamodb.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.DynamoEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.DynamoEndpoint)
		}
	}), nil
}
