package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/ariefcatur/go-inventory-orders/internal/config"
	"github.com/ariefcatur/go-inventory-orders/internal/postgres"
)

func main() {
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "migrate",
		Usage: "manage the orders database schema",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "dsn",
				Usage:   "postgres connection string",
				EnvVars: []string{"POSTGRES_DSN"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "up",
				Usage: "apply all pending migrations",
				Action: withMigrator(func(m *migrate.Migrate) error {
					if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
						return err
					}
					return nil
				}),
			},
			{
				Name:  "down",
				Usage: "roll back migrations",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "steps", Value: 1, Usage: "number of migrations to roll back, 0 for all"},
				},
				Action: func(c *cli.Context) error {
					return withMigrator(func(m *migrate.Migrate) error {
						var err error
						if n := c.Int("steps"); n > 0 {
							err = m.Steps(-n)
						} else {
							err = m.Down()
						}
						if err != nil && !errors.Is(err, migrate.ErrNoChange) {
							return err
						}
						return nil
					})(c)
				},
			},
			{
				Name:  "version",
				Usage: "print the current schema version",
				Action: withMigrator(func(m *migrate.Migrate) error {
					v, dirty, err := m.Version()
					if errors.Is(err, migrate.ErrNilVersion) {
						fmt.Println("no migrations applied")
						return nil
					}
					if err != nil {
						return err
					}
					fmt.Printf("version %d dirty=%t\n", v, dirty)
					return nil
				}),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func withMigrator(fn func(*migrate.Migrate) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		dsn := c.String("dsn")
		if dsn == "" {
			cfg, err := config.LoadBase()
			if err != nil {
				return err
			}
			dsn = cfg.PostgresDSN
		}

		pool, err := pgxpool.New(context.Background(), dsn)
		if err != nil {
			return fmt.Errorf("connect: %w", err)
		}
		defer pool.Close()

		m, closeFn, err := postgres.NewMigrator(pool)
		if err != nil {
			return err
		}
		defer closeFn()

		if err := fn(m); err != nil {
			return err
		}
		log.WithField("command", c.Command.Name).Info("migrate done")
		return nil
	}
}
