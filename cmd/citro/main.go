// Command citro is an operator CLI for the Citro exchange client.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	json "github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"

	"github.com/citrohq/citro-go/client"
	"github.com/citrohq/citro-go/config"
	"github.com/citrohq/citro-go/internal/observability"
	"github.com/citrohq/citro-go/orders"
	"github.com/citrohq/citro-go/rpc"
	"github.com/citrohq/citro-go/schema"
	"github.com/citrohq/citro-go/stream"
)

var version = "dev"

func main() {
	app := &cli.App{
		Name:    "citro",
		Usage:   "Citro exchange client",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML settings file (env overrides still apply)",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Value:   "info",
				Usage:   "log level (debug, info, warn, error)",
			},
		},
		Before: func(c *cli.Context) error {
			_ = godotenv.Load()
			observability.SetLogger(observability.NewLogrusLogger(observability.LogrusOptions{
				Level: c.String("log-level"),
			}))
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "markets",
				Usage: "list trading rules",
				Flags: []cli.Flag{symbolFlag(false)},
				Action: func(c *cli.Context) error {
					return withClient(c, func(ctx context.Context, cl *client.Client) error {
						var symbols []string
						if s := c.String("symbol"); s != "" {
							symbols = append(symbols, s)
						}
						listed, err := cl.Markets().FetchMarkets(ctx, schema.CategorySpot, symbols...)
						if err != nil {
							return err
						}
						return printJSON(listed)
					})
				},
			},
			{
				Name:  "wallets",
				Usage: "list account balances",
				Action: func(c *cli.Context) error {
					return withClient(c, func(ctx context.Context, cl *client.Client) error {
						balances, err := cl.Account().Wallets(ctx)
						if err != nil {
							return err
						}
						return printJSON(balances)
					})
				},
			},
			orderCommand(),
			{
				Name:  "orders",
				Usage: "list order history",
				Flags: []cli.Flag{
					symbolFlag(false),
					&cli.IntFlag{Name: "page", Value: 1},
					&cli.IntFlag{Name: "page-size", Value: 50},
				},
				Action: func(c *cli.Context) error {
					return withClient(c, func(ctx context.Context, cl *client.Client) error {
						listed, err := cl.Trading().ListOrders(ctx, rpc.OrdersQuery{
							Symbol:   c.String("symbol"),
							Page:     c.Int("page"),
							PageSize: c.Int("page-size"),
						})
						if err != nil {
							return err
						}
						return printJSON(listed)
					})
				},
			},
			watchCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func symbolFlag(required bool) cli.Flag {
	return &cli.StringFlag{
		Name:     "symbol",
		Aliases:  []string{"s"},
		Usage:    "trading pair, e.g. BTC/USDT",
		Required: required,
	}
}

func orderCommand() *cli.Command {
	return &cli.Command{
		Name:  "order",
		Usage: "create, cancel, or inspect orders",
		Subcommands: []*cli.Command{
			{
				Name:  "create",
				Usage: "validate and submit an order",
				Flags: []cli.Flag{
					symbolFlag(true),
					&cli.StringFlag{Name: "side", Required: true, Usage: "buy or sell"},
					&cli.StringFlag{Name: "type", Value: "limit", Usage: "market, limit, or stop_limit"},
					&cli.StringFlag{Name: "amount", Usage: "BASE quantity (exclusive with --total)"},
					&cli.StringFlag{Name: "total", Usage: "QUOTE amount (exclusive with --amount)"},
					&cli.StringFlag{Name: "price", Usage: "limit price"},
					&cli.StringFlag{Name: "stop-price", Usage: "stop trigger price"},
					&cli.StringFlag{Name: "reference-price", Usage: "best-effort price for market-order checks"},
				},
				Action: func(c *cli.Context) error {
					return withClient(c, func(ctx context.Context, cl *client.Client) error {
						req := schema.OrderRequest{
							Symbol: c.String("symbol"),
							Side:   schema.Side(c.String("side")),
							Type:   schema.OrderType(c.String("type")),
						}
						var err error
						if req.Amount, err = decimalFlag(c, "amount"); err != nil {
							return err
						}
						if req.Total, err = decimalFlag(c, "total"); err != nil {
							return err
						}
						if req.Price, err = decimalFlag(c, "price"); err != nil {
							return err
						}
						if req.StopPrice, err = decimalFlag(c, "stop-price"); err != nil {
							return err
						}
						var opts []orders.Option
						if ref, err := decimalFlag(c, "reference-price"); err != nil {
							return err
						} else if ref != nil {
							opts = append(opts, orders.WithReferencePrice(*ref))
						}
						order, err := cl.Trading().CreateOrder(ctx, req, opts...)
						if err != nil {
							return err
						}
						return printJSON(order)
					})
				},
			},
			{
				Name:  "cancel",
				Usage: "cancel an open order",
				Flags: []cli.Flag{&cli.StringFlag{Name: "id", Required: true}},
				Action: func(c *cli.Context) error {
					return withClient(c, func(ctx context.Context, cl *client.Client) error {
						order, err := cl.Trading().CancelOrder(ctx, c.String("id"))
						if err != nil {
							return err
						}
						return printJSON(order)
					})
				},
			},
			{
				Name:  "get",
				Usage: "fetch an order projection",
				Flags: []cli.Flag{&cli.StringFlag{Name: "id", Required: true}},
				Action: func(c *cli.Context) error {
					return withClient(c, func(ctx context.Context, cl *client.Client) error {
						order, err := cl.Trading().GetOrder(ctx, c.String("id"))
						if err != nil {
							return err
						}
						return printJSON(order)
					})
				},
			},
		},
	}
}

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "stream channels until interrupted",
		Flags: []cli.Flag{
			symbolFlag(false),
			&cli.StringFlag{Name: "interval", Value: "1m", Usage: "kline interval"},
			&cli.StringSliceFlag{
				Name:  "channel",
				Value: cli.NewStringSlice("orderbook"),
				Usage: "channel families: wallets, orderbook, klines, coins",
			},
		},
		Action: func(c *cli.Context) error {
			return withClient(c, func(ctx context.Context, cl *client.Client) error {
				manager := cl.Stream()
				if err := manager.Start(ctx); err != nil {
					return err
				}
				printFrame := func(frame stream.Frame) {
					kind := "delta"
					if frame.Snapshot {
						kind = "snapshot"
					}
					fmt.Printf("%s [%s] %s\n", frame.Key, kind, frame.Data)
				}
				for _, channel := range c.StringSlice("channel") {
					key, err := channelKey(channel, c.String("symbol"), c.String("interval"))
					if err != nil {
						return err
					}
					if err := manager.Subscribe(key, printFrame); err != nil {
						return err
					}
				}
				for {
					select {
					case <-ctx.Done():
						return nil
					case err := <-manager.Errors():
						observability.Log().Warn("stream error", observability.F("error", err.Error()))
					}
				}
			})
		},
	}
}

func channelKey(family, symbol, interval string) (stream.ChannelKey, error) {
	switch stream.Family(family) {
	case stream.FamilyWallets:
		return stream.Wallets(), nil
	case stream.FamilyOrderbook:
		return stream.Orderbook(symbol), nil
	case stream.FamilyKlines:
		return stream.Klines(symbol, interval), nil
	case stream.FamilyCoins:
		return stream.Coins(symbol), nil
	default:
		return stream.ChannelKey{}, fmt.Errorf("unknown channel family %q", family)
	}
}

func withClient(c *cli.Context, fn func(context.Context, *client.Client) error) error {
	cfg, err := loadSettings(c)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cl, err := client.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := cl.Close(shutdownCtx); err != nil {
			observability.Log().Error("shutdown", observability.F("error", err.Error()))
		}
	}()
	return fn(ctx, cl)
}

func loadSettings(c *cli.Context) (config.Settings, error) {
	if path := c.String("config"); path != "" {
		cfg, err := config.LoadFile(path)
		if err != nil {
			return config.Settings{}, err
		}
		// Environment still wins over the file for credentials.
		env := config.FromEnv()
		return config.Apply(cfg, config.WithCredentials(env.Credentials.APIKey, env.Credentials.APISecret)), nil
	}
	return config.FromEnv(), nil
}

func decimalFlag(c *cli.Context, name string) (*decimal.Decimal, error) {
	raw := c.String(name)
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, fmt.Errorf("flag --%s: %w", name, err)
	}
	return &d, nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
